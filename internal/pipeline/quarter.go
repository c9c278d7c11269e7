package pipeline

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/recaplab/recap/internal/assistant"
	"github.com/recaplab/recap/internal/core/summary"
)

// quarterKey identifies one (year, quarter) group.
type quarterKey struct {
	Year    int
	Quarter int
}

// BuildQuarterlyUnits regroups monthly results by fiscal quarter and
// builds one generation unit per non-empty quarter. Unit inputs are
// the quarter's monthly AI outputs in calendar-month order, not raw
// records. The instruction template is parameterized with the quarter
// label and year: "{quarter}" and "{year}" tokens are substituted when
// present, otherwise a period line is appended.
func BuildQuarterlyUnits(monthly summary.ResultSet, instructions string, fn assistant.ForcedFunction, profileID string) []Unit {
	groups := make(map[quarterKey][]summary.Result)
	for year, byPeriod := range monthly {
		for _, res := range byPeriod {
			key := quarterKey{Year: year, Quarter: summary.QuarterOf(res.MonthIndex)}
			groups[key] = append(groups[key], res)
		}
	}

	var units []Unit
	for key, members := range groups {
		sort.Slice(members, func(i, j int) bool {
			return members[i].MonthIndex < members[j].MonthIndex
		})

		inputs := make([]map[string]interface{}, 0, len(members))
		sourceCount := 0
		for _, m := range members {
			inputs = append(inputs, m.AIOutput)
			sourceCount += m.SourceCount
		}

		label := summary.QuarterLabel(key.Quarter)
		units = append(units, Unit{
			Year:        key.Year,
			Period:      label,
			MonthIndex:  summary.QuarterFirstMonth(key.Quarter),
			SourceCount: sourceCount,
			StartDate:   summary.QuarterStartDate(key.Year, key.Quarter),
			Input: GenerationInput{
				Instructions: parameterizeQuarterly(instructions, label, key.Year),
				Items:        inputs,
				ItemCount:    len(inputs),
				Function:     fn,
				ProfileID:    profileID,
			},
		})
	}
	return units
}

func parameterizeQuarterly(instructions, quarterLabel string, year int) string {
	yearText := strconv.Itoa(year)
	if strings.Contains(instructions, "{quarter}") || strings.Contains(instructions, "{year}") {
		out := strings.ReplaceAll(instructions, "{quarter}", quarterLabel)
		return strings.ReplaceAll(out, "{year}", yearText)
	}
	return fmt.Sprintf("%s\n\nPeriod: %s %s", instructions, quarterLabel, yearText)
}

// quarterEntry is the validated shape of one quarterly AI output.
// HasCount records whether the output carried an activity count at
// all; an explicit zero must not fall back to the source count.
type quarterEntry struct {
	Summary       string
	ActivityCount int
	HasCount      bool
	StartDate     string
}

// errMalformedQuarter marks AI output that does not carry the expected
// year -> quarter nesting. The quarter then contributes nothing.
type errMalformedQuarter struct {
	reason string
}

func (e *errMalformedQuarter) Error() string {
	return "malformed quarterly output: " + e.reason
}

// TransformQuarterly validates each quarterly result's AI output and
// normalizes it for persistence. The output must nest as
// year -> quarter entry with a summary string; the activity count and
// start date are optional, the start date defaulting to the quarter's
// first calendar day. Malformed outputs are logged and dropped; the
// run continues.
func TransformQuarterly(results summary.ResultSet) summary.ResultSet {
	transformed := make(summary.ResultSet)
	for year, byPeriod := range results {
		for label, res := range byPeriod {
			entry, err := parseQuarterEntry(res)
			if err != nil {
				slog.Warn("[Quarterly] Dropping malformed output",
					"year", year, "quarter", label, "error", err)
				continue
			}

			startDate := entry.StartDate
			if startDate == "" {
				startDate = res.StartDate
			}
			count := res.SourceCount
			if entry.HasCount {
				count = entry.ActivityCount
			}
			transformed.Put(summary.Result{
				Period:     res.Period,
				Year:       res.Year,
				MonthIndex: res.MonthIndex,
				AIOutput: map[string]interface{}{
					"summary":       entry.Summary,
					"activityCount": count,
					"startdate":     startDate,
				},
				SourceCount: count,
				StartDate:   startDate,
			})
		}
	}
	return transformed
}

func parseQuarterEntry(res summary.Result) (quarterEntry, error) {
	yearNode, ok := res.AIOutput[strconv.Itoa(res.Year)]
	if !ok {
		return quarterEntry{}, &errMalformedQuarter{reason: "missing year entry"}
	}
	yearMap, ok := yearNode.(map[string]interface{})
	if !ok {
		return quarterEntry{}, &errMalformedQuarter{reason: "year entry is not an object"}
	}
	quarterNode, ok := yearMap[res.Period]
	if !ok {
		return quarterEntry{}, &errMalformedQuarter{reason: "missing quarter entry"}
	}
	quarterMap, ok := quarterNode.(map[string]interface{})
	if !ok {
		return quarterEntry{}, &errMalformedQuarter{reason: "quarter entry is not an object"}
	}

	entry := quarterEntry{}
	if s, ok := quarterMap["summary"].(string); ok && s != "" {
		entry.Summary = s
	} else {
		return quarterEntry{}, &errMalformedQuarter{reason: "missing summary text"}
	}
	// Numbers arrive as float64 from generic JSON decoding.
	if n, ok := quarterMap["activityCount"].(float64); ok {
		entry.ActivityCount = int(n)
		entry.HasCount = true
	}
	if s, ok := quarterMap["startdate"].(string); ok {
		entry.StartDate = s
	}
	return entry, nil
}
