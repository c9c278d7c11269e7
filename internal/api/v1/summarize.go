package v1

import (
	"fmt"
	"strings"

	"github.com/recaplab/recap/internal/core/summary"
)

// FunctionSpec names the structured-output function the AI service is
// forced to call, with its JSON-schema parameters forwarded verbatim.
type FunctionSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// SummarizeRequest is the invocation record for one summarization run.
// It separates the "Envelope" (subject, credential, dispatch flags)
// from the "Letter" (query, instructions, output schemas).
type SummarizeRequest struct {
	// --- Envelope ---

	// SubjectID is the store record the summaries hang off.
	SubjectID string `json:"subjectId"`

	// UserID identifies the actor on whose behalf the run executes.
	// Echoed in the terminal callback.
	UserID string `json:"userId,omitempty"`

	// InstanceURL is the base URL of the caller's store instance.
	// A store client is built per run; credentials are never shared
	// across runs.
	InstanceURL string `json:"instanceUrl"`

	// AccessToken authenticates against the store instance. An
	// Authorization bearer header on the request overrides it.
	AccessToken string `json:"accessToken,omitempty"`

	// RecencyMonths selects fast-sync mode when > 0: the query is
	// narrowed to the last N months and the caller waits for the result.
	RecencyMonths int `json:"recencyMonths,omitempty"`

	// CallbackURL receives the terminal status of an async run.
	CallbackURL  string `json:"callbackUrl,omitempty"`
	SendCallback bool   `json:"sendCallback,omitempty"`

	// --- Letter ---

	// Query selects the activity records to summarize. Must order by
	// creation date for stable grouping.
	Query string `json:"query"`

	// ObjectName is the store object summaries are written to.
	ObjectName string `json:"objectName"`

	MonthlyInstructions   string `json:"monthlyInstructions"`
	QuarterlyInstructions string `json:"quarterlyInstructions"`

	MonthlyFunction   FunctionSpec `json:"monthlyFunction"`
	QuarterlyFunction FunctionSpec `json:"quarterlyFunction"`

	// Existing maps period keys ("Mar 2024", "Q1 2024") to identifiers
	// of already-persisted summary records, deciding create vs update.
	Existing map[string]string `json:"existingSummaries,omitempty"`
}

// Validate ensures the invocation has all required attributes. The
// access token is checked by the intake layer because a bearer header
// may supply it.
func (r *SummarizeRequest) Validate() error {
	if strings.TrimSpace(r.SubjectID) == "" {
		return fmt.Errorf("subjectId is required")
	}
	if strings.TrimSpace(r.InstanceURL) == "" {
		return fmt.Errorf("instanceUrl is required")
	}
	if strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("query is required")
	}
	if strings.TrimSpace(r.ObjectName) == "" {
		return fmt.Errorf("objectName is required")
	}
	if strings.TrimSpace(r.MonthlyInstructions) == "" {
		return fmt.Errorf("monthlyInstructions is required")
	}
	if strings.TrimSpace(r.QuarterlyInstructions) == "" {
		return fmt.Errorf("quarterlyInstructions is required")
	}
	if strings.TrimSpace(r.MonthlyFunction.Name) == "" {
		return fmt.Errorf("monthlyFunction.name is required")
	}
	if strings.TrimSpace(r.QuarterlyFunction.Name) == "" {
		return fmt.Errorf("quarterlyFunction.name is required")
	}
	if r.RecencyMonths < 0 {
		return fmt.Errorf("recencyMonths must be >= 0")
	}
	if r.SendCallback && strings.TrimSpace(r.CallbackURL) == "" {
		return fmt.Errorf("callbackUrl is required when sendCallback is set")
	}
	return nil
}

// SummarizeResponse is returned from the intake endpoint. Sync runs
// carry the generated results inline, keyed year -> period, plus any
// per-period generation failures; async runs carry the journaled run
// identifier only.
type SummarizeResponse struct {
	Status string `json:"status"` // completed | accepted
	RunID  string `json:"runId,omitempty"`

	Monthly         summary.ResultSet         `json:"monthly,omitempty"`
	Quarterly       summary.ResultSet         `json:"quarterly,omitempty"`
	MonthlyErrors   []summary.GenerationError `json:"monthlyErrors,omitempty"`
	QuarterlyErrors []summary.GenerationError `json:"quarterlyErrors,omitempty"`

	MonthlyCount     int `json:"monthlyCount,omitempty"`
	QuarterlyCount   int `json:"quarterlyCount,omitempty"`
	GenerationErrors int `json:"generationErrors,omitempty"`
}
