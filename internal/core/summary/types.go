package summary

import (
	"encoding/json"
	"time"
)

// Record is one row fetched from the external store. It is immutable
// once fetched; Fields carries the free-form domain attributes as
// returned by the store, minus transport bookkeeping.
type Record struct {
	// ID is the store-assigned record identifier.
	ID string `json:"Id"`

	// CreatedDate is the raw creation timestamp string as returned by
	// the store. Parsing happens at grouping time; records whose
	// timestamp does not parse are dropped there.
	CreatedDate string `json:"CreatedDate"`

	// Fields holds every other attribute of the row.
	Fields map[string]interface{} `json:"-"`
}

// MarshalJSON flattens Fields alongside the named attributes so a
// record serializes the way the store returned it. Prompt embedding
// and attachment upload both rely on this shape.
func (r Record) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(r.Fields)+2)
	for k, v := range r.Fields {
		flat[k] = v
	}
	if r.ID != "" {
		flat["Id"] = r.ID
	}
	if r.CreatedDate != "" {
		flat["CreatedDate"] = r.CreatedDate
	}
	return json.Marshal(flat)
}

// MonthGroup is one month's worth of records within a year, in fetch order.
type MonthGroup struct {
	Month   string // full English month name, e.g. "March"
	Records []Record
}

// PeriodIndex maps year -> ordered month groups. Each month name
// appears at most once per year; month order is first-seen order, not
// calendar order.
type PeriodIndex map[int][]MonthGroup

// Result is one generated summary for a period. Never mutated after
// creation; the orchestrator owns it for the duration of one run.
type Result struct {
	Period     string `json:"period"` // "March" for monthly, "Q1" for quarterly
	Year       int    `json:"year"`
	MonthIndex int    `json:"monthIndex"` // 0-11; quarterly results carry the quarter's first month
	// AIOutput is the opaque structured object the AI service returned.
	AIOutput map[string]interface{} `json:"aiOutput"`
	// SourceCount is the number of records (monthly) or monthly
	// summaries (quarterly) that fed the generation.
	SourceCount int `json:"sourceCount"`
	// StartDate is the ISO date (UTC) the period begins on.
	StartDate string `json:"startDate"`
}

// ResultSet is the keyed output structure results are placed into:
// year -> period label -> result. Each key is written by exactly one
// generation unit, so concurrent placement is race-free by
// construction once guarded.
type ResultSet map[int]map[string]Result

// Put places a result under its (year, period) key.
func (rs ResultSet) Put(r Result) {
	byPeriod, ok := rs[r.Year]
	if !ok {
		byPeriod = make(map[string]Result)
		rs[r.Year] = byPeriod
	}
	byPeriod[r.Period] = r
}

// Count returns the total number of results across all years.
func (rs ResultSet) Count() int {
	n := 0
	for _, byPeriod := range rs {
		n += len(byPeriod)
	}
	return n
}

// GenerationError records one period's failed generation. Accumulated,
// never propagated as a run failure.
type GenerationError struct {
	Period  string `json:"period"`
	Message string `json:"message"`
}

// ParseTimestamp parses a store creation timestamp in UTC. The store
// emits RFC3339 with numeric offsets ("2024-03-05T14:21:07.000+0000"
// or "...Z"); both forms are accepted.
func ParseTimestamp(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05.000-0700",
		"2006-01-02T15:04:05-0700",
	} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
