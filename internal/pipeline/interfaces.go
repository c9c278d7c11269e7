// Package pipeline implements the summarization pipeline: fetch,
// period grouping, concurrent per-period generation, quarterly
// aggregation, idempotent batched persistence, and the two execution
// modes (fast-sync and async with callback).
package pipeline

import (
	"context"
	"encoding/json"

	"github.com/recaplab/recap/internal/assistant"
	"github.com/recaplab/recap/internal/crm"
)

// RecordStore is the external relational store boundary: paginated
// queries plus batched writes with allow-partial-success semantics.
// One implementation is crm.Client, built per run.
type RecordStore interface {
	Query(ctx context.Context, q string) (crm.QueryPage, error)
	QueryMore(ctx context.Context, nextRecordsURL string) (crm.QueryPage, error)
	CreateAll(ctx context.Context, objectName string, records []map[string]interface{}) ([]crm.SaveResult, error)
	UpdateAll(ctx context.Context, objectName string, records []map[string]interface{}) ([]crm.SaveResult, error)
}

// ConversationService is the generative-AI service boundary.
// Implemented by assistant.Client.
type ConversationService interface {
	CreateConversation(ctx context.Context) (string, error)
	DeleteConversation(ctx context.Context, conversationID string) error
	PostMessage(ctx context.Context, conversationID, content, fileID string) error
	RunToCompletion(ctx context.Context, conversationID, profileID string, fn assistant.ForcedFunction) (json.RawMessage, error)
	UploadTransientFile(ctx context.Context, filename string, content []byte) (string, error)
	DeleteTransientFile(ctx context.Context, fileID string) error
}

// Notifier delivers the async mode's terminal callback.
type Notifier interface {
	Notify(ctx context.Context, cb Callback, processResult, message string) error
}

// RunJournal records async run state transitions. Journal failures
// are bookkeeping problems, never pipeline failures; callers log and
// continue.
type RunJournal interface {
	MarkRunning(ctx context.Context, runID string) error
	MarkFinished(ctx context.Context, runID string, succeeded bool, message string, monthly, quarterly, generationErrors int) error
}
