package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/recaplab/recap/internal/assistant"
	"github.com/recaplab/recap/internal/core/summary"
)

// Request is one parsed invocation: everything a single pipeline run
// needs. The existing-record index and credential are scoped to this
// run only.
type Request struct {
	SubjectID string
	Query     string

	MonthlyInstructions   string
	QuarterlyInstructions string
	MonthlyFunction       assistant.ForcedFunction
	QuarterlyFunction     assistant.ForcedFunction

	// Existing maps period keys ("Mar 2024", "Q1 2024") to store
	// record identifiers. Read-only; decides create vs update.
	Existing map[string]string

	ObjectName string
	UserID     string

	// RecencyMonths > 0 selects fast-sync mode and narrows the query
	// to the last N months.
	RecencyMonths int

	Callback     Callback
	SendCallback bool

	Profiles assistant.Pair
}

// Outcome is the full result of one run: summaries keyed by
// year/period plus the accumulated per-unit generation errors, split
// by phase.
type Outcome struct {
	Monthly         summary.ResultSet         `json:"monthly"`
	Quarterly       summary.ResultSet         `json:"quarterly"`
	MonthlyErrors   []summary.GenerationError `json:"monthlyErrors"`
	QuarterlyErrors []summary.GenerationError `json:"quarterlyErrors"`
	MonthlyStats    PersistStats              `json:"-"`
	QuarterlyStats  PersistStats              `json:"-"`
}

func (o Outcome) generationErrorCount() int {
	return len(o.MonthlyErrors) + len(o.QuarterlyErrors)
}

// Orchestrator sequences a full pipeline run and selects between the
// fast-sync and async execution modes.
type Orchestrator struct {
	generator     *Generator
	notifier      Notifier
	journal       RunJournal // optional; nil disables journaling
	maxConcurrent int
}

// NewOrchestrator wires the pipeline. journal may be nil.
func NewOrchestrator(generator *Generator, notifier Notifier, journal RunJournal, maxConcurrent int) *Orchestrator {
	if generator == nil {
		panic("pipeline: generator must not be nil")
	}
	if notifier == nil {
		panic("pipeline: notifier must not be nil")
	}
	return &Orchestrator{
		generator:     generator,
		notifier:      notifier,
		journal:       journal,
		maxConcurrent: maxConcurrent,
	}
}

// Execute runs the forward pipeline: fetch, group, monthly fan-out,
// monthly persist, quarterly aggregate, quarterly persist. Step-level
// failures abort and propagate; per-unit and per-record failures are
// absorbed into the outcome.
func (o *Orchestrator) Execute(ctx context.Context, store RecordStore, req Request) (Outcome, error) {
	outcome := Outcome{
		Monthly:   make(summary.ResultSet),
		Quarterly: make(summary.ResultSet),
	}

	query := req.Query
	if req.RecencyMonths > 0 {
		query = narrowToRecentMonths(query, req.RecencyMonths)
	}

	records, err := FetchAll(ctx, store, query)
	if err != nil {
		return outcome, err
	}

	index := summary.GroupByPeriod(records)
	executor := NewFanOutExecutor(o.generator, o.maxConcurrent)
	persister := NewPersister(store, req.ObjectName, req.SubjectID)

	monthlyUnits := BuildMonthlyUnits(index, req.MonthlyInstructions, req.MonthlyFunction, req.Profiles.MonthlyID)
	monthly := executor.Run(ctx, monthlyUnits)
	outcome.Monthly = monthly.Results
	outcome.MonthlyErrors = monthly.Errors

	outcome.MonthlyStats, err = persister.Persist(ctx, monthly.Results, CategoryMonthly, req.Existing)
	if err != nil {
		return outcome, err
	}

	quarterlyUnits := BuildQuarterlyUnits(monthly.Results, req.QuarterlyInstructions, req.QuarterlyFunction, req.Profiles.QuarterlyID)
	quarterly := executor.Run(ctx, quarterlyUnits)
	outcome.Quarterly = TransformQuarterly(quarterly.Results)
	outcome.QuarterlyErrors = quarterly.Errors

	outcome.QuarterlyStats, err = persister.Persist(ctx, outcome.Quarterly, CategoryQuarterly, req.Existing)
	if err != nil {
		return outcome, err
	}

	slog.Info("[Orchestrator] Run complete",
		"subject_id", req.SubjectID,
		"monthly", outcome.Monthly.Count(),
		"quarterly", outcome.Quarterly.Count(),
		"generation_errors", outcome.generationErrorCount())
	return outcome, nil
}

// ExecuteAsync runs the pipeline detached from the triggering request
// and delivers exactly one terminal callback. Partial generation
// failures do not flip the outcome; only step-level failures do.
// Callback delivery failure is logged, nothing more.
func (o *Orchestrator) ExecuteAsync(ctx context.Context, store RecordStore, req Request, runID string) {
	o.journalRunning(ctx, runID)

	outcome, err := o.Execute(ctx, store, req)
	if err != nil {
		slog.Error("[Orchestrator] Async run failed",
			"run_id", runID, "subject_id", req.SubjectID, "error", err)
		o.journalFinished(ctx, runID, false, err.Error(), outcome)
		o.deliverCallback(ctx, req, ProcessFailed, err.Error())
		return
	}

	message := successMessage(outcome)
	o.journalFinished(ctx, runID, true, message, outcome)
	o.deliverCallback(ctx, req, ProcessSuccess, message)
}

func (o *Orchestrator) deliverCallback(ctx context.Context, req Request, processResult, message string) {
	if !req.SendCallback {
		return
	}
	if err := o.notifier.Notify(ctx, req.Callback, processResult, message); err != nil {
		slog.Error("[Orchestrator] Callback delivery failed",
			"subject_id", req.SubjectID, "error", err)
	}
}

func (o *Orchestrator) journalRunning(ctx context.Context, runID string) {
	if o.journal == nil || runID == "" {
		return
	}
	if err := o.journal.MarkRunning(ctx, runID); err != nil {
		slog.Warn("[Orchestrator] Journal update failed", "run_id", runID, "error", err)
	}
}

func (o *Orchestrator) journalFinished(ctx context.Context, runID string, succeeded bool, message string, outcome Outcome) {
	if o.journal == nil || runID == "" {
		return
	}
	err := o.journal.MarkFinished(ctx, runID, succeeded, message,
		outcome.Monthly.Count(), outcome.Quarterly.Count(), outcome.generationErrorCount())
	if err != nil {
		slog.Warn("[Orchestrator] Journal update failed", "run_id", runID, "error", err)
	}
}

func successMessage(outcome Outcome) string {
	if n := outcome.generationErrorCount(); n > 0 {
		return fmt.Sprintf("completed with %d generation error(s)", n)
	}
	return "completed"
}

// narrowToRecentMonths rewrites the fetch query with a last-N-months
// filter clause, joining with AND when the query already filters and
// inserting before any trailing ORDER BY / GROUP BY / LIMIT.
func narrowToRecentMonths(query string, months int) string {
	clause := fmt.Sprintf("CreatedDate = LAST_N_MONTHS:%d", months)
	upper := strings.ToUpper(query)

	insertAt := len(query)
	for _, marker := range []string{" ORDER BY ", " GROUP BY ", " LIMIT "} {
		if idx := strings.Index(upper, marker); idx >= 0 && idx < insertAt {
			insertAt = idx
		}
	}

	connector := " WHERE "
	if strings.Contains(upper, " WHERE ") {
		connector = " AND "
	}

	head := strings.TrimRight(query[:insertAt], " ")
	return head + connector + clause + query[insertAt:]
}
