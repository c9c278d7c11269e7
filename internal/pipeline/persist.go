package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/recaplab/recap/internal/core/summary"
	"github.com/recaplab/recap/internal/crm"
)

// Summary categories written to the store.
const (
	CategoryMonthly   = "Monthly"
	CategoryQuarterly = "Quarterly"
)

// PersistStats counts per-record outcomes of one persistence step.
type PersistStats struct {
	Created int
	Updated int
	Failed  int
}

// Persister maps generated summaries onto the store schema and
// performs idempotent batched upsert: a period whose lookup key
// resolves in the existing-record index becomes an update carrying
// that identifier, everything else a create.
type Persister struct {
	store      RecordStore
	objectName string
	parentID   string
}

// NewPersister creates a Persister writing summaries under the given
// parent record into the named store object.
func NewPersister(store RecordStore, objectName, parentID string) *Persister {
	if store == nil {
		panic("pipeline: record store must not be nil")
	}
	return &Persister{store: store, objectName: objectName, parentID: parentID}
}

// Persist classifies every period entry into the create or update
// batch, then submits each batch once in allow-partial-success mode.
// Individual record failures are logged with the store's detail and
// counted, never raised; a failed batch submission is fatal for the
// step.
func (p *Persister) Persist(ctx context.Context, results summary.ResultSet, category string, existing map[string]string) (PersistStats, error) {
	var creates, updates []map[string]interface{}
	for year, byPeriod := range results {
		for _, res := range byPeriod {
			key := lookupKey(category, res.Period, year)
			payload := p.buildPayload(res, category, key)
			if existingID, ok := existing[key]; ok {
				payload["Id"] = existingID
				updates = append(updates, payload)
			} else {
				creates = append(creates, payload)
			}
		}
	}

	stats := PersistStats{}
	created, err := p.store.CreateAll(ctx, p.objectName, creates)
	if err != nil {
		return stats, fmt.Errorf("submit create batch: %w", err)
	}
	stats.Created, stats.Failed = tallyOutcomes("create", created, stats.Failed)

	updated, err := p.store.UpdateAll(ctx, p.objectName, updates)
	if err != nil {
		return stats, fmt.Errorf("submit update batch: %w", err)
	}
	stats.Updated, stats.Failed = tallyOutcomes("update", updated, stats.Failed)

	slog.Info("[Persister] Batch persisted",
		"category", category,
		"created", stats.Created,
		"updated", stats.Updated,
		"failed", stats.Failed)
	return stats, nil
}

// buildPayload maps one result onto the store record shape. Every
// string field is truncated to the store's field-size ceiling.
func (p *Persister) buildPayload(res summary.Result, category, key string) map[string]interface{} {
	serialized, err := json.Marshal(res.AIOutput)
	if err != nil {
		// AIOutput came from decoded JSON, so this is unreachable in
		// practice; persist an empty object rather than dropping.
		serialized = []byte("{}")
	}
	detail := detailText(res.AIOutput, string(serialized))

	return map[string]interface{}{
		"Name":                     summary.Truncate(key),
		"Parent_Record_Id__c":      summary.Truncate(p.parentID),
		"Summary_Category__c":      category,
		"Period_Label__c":          summary.Truncate(res.Period),
		"Year__c":                  strconv.Itoa(res.Year),
		"Summary__c":               summary.Truncate(string(serialized)),
		"Summary_Details__c":       summary.Truncate(detail),
		"Summary_Details_Plain__c": summary.Truncate(plainText(detail)),
		"Number_of_Records__c":     res.SourceCount,
		"Start_Date__c":            res.StartDate,
	}
}

func lookupKey(category, period string, year int) string {
	if category == CategoryQuarterly {
		return summary.QuarterlyKey(period, year)
	}
	return summary.MonthlyKey(period, year)
}

func tallyOutcomes(op string, outcomes []crm.SaveResult, failed int) (int, int) {
	succeeded := 0
	for _, outcome := range outcomes {
		if outcome.Success {
			succeeded++
			continue
		}
		failed++
		details := make([]string, 0, len(outcome.Errors))
		for _, e := range outcome.Errors {
			details = append(details, e.String())
		}
		slog.Warn("[Persister] Record "+op+" failed",
			"record_id", outcome.ID,
			"detail", strings.Join(details, "; "))
	}
	return succeeded, failed
}

// detailText extracts a human-readable detail string from the AI
// output, falling back to the serialized object.
func detailText(output map[string]interface{}, fallback string) string {
	if s, ok := output["summary"].(string); ok && s != "" {
		return s
	}
	return fallback
}

// plainText strips HTML tags from AI-generated rich text so the store
// gets a plain variant alongside it.
func plainText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
