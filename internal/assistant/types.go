package assistant

// ForcedFunction names the structured-output call the service must
// make: free-text answers are not accepted. Parameters is the
// caller-supplied JSON-schema shape, forwarded verbatim.
type ForcedFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Pair holds the two resolved service profile identifiers. Resolved
// once at startup and threaded into the orchestrator explicitly; there
// is no package-level assistant state.
type Pair struct {
	MonthlyID   string
	QuarterlyID string
}

// run statuses the polling loop reacts to.
const (
	runStatusQueued         = "queued"
	runStatusInProgress     = "in_progress"
	runStatusRequiresAction = "requires_action"
	runStatusCompleted      = "completed"
	runStatusFailed         = "failed"
	runStatusCancelled      = "cancelled"
	runStatusExpired        = "expired"
	runStatusIncomplete     = "incomplete"
)
