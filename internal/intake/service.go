// Package intake is the HTTP front door: it parses and validates the
// invocation record, resolves the store credential, and dispatches the
// run on the fast-sync or async path.
package intake

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/recaplab/recap/internal/assistant"
	"github.com/recaplab/recap/internal/pipeline"
	"github.com/recaplab/recap/internal/runs"
)

// Runner executes summarization runs. Satisfied by
// *pipeline.Orchestrator.
type Runner interface {
	Execute(ctx context.Context, store pipeline.RecordStore, req pipeline.Request) (pipeline.Outcome, error)
	ExecuteAsync(ctx context.Context, store pipeline.RecordStore, req pipeline.Request, runID string)
}

// StoreFactory builds a store client scoped to one invocation's
// instance and credential.
type StoreFactory func(instanceURL, accessToken string) pipeline.RecordStore

// Service wires intake HTTP handlers to the pipeline.
type Service struct {
	runner           Runner
	newStore         StoreFactory
	journal          runs.Store // optional; nil disables run lookup
	profiles         assistant.Pair
	maxBodySizeBytes int
}

func NewService(runner Runner, newStore StoreFactory, journal runs.Store, profiles assistant.Pair, maxBodySizeMB int) *Service {
	if runner == nil {
		panic("intake: runner must not be nil")
	}
	if newStore == nil {
		panic("intake: store factory must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 5 // default to 5MB
	}
	return &Service{
		runner:           runner,
		newStore:         newStore,
		journal:          journal,
		profiles:         profiles,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
	}
}

// RegisterRoutes registers the intake service routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/summaries", s.SummarizeHandler)
	r.GET("/v1/runs/:id", s.RunStatusHandler)
}
