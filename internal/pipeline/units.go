package pipeline

import (
	"github.com/recaplab/recap/internal/assistant"
	"github.com/recaplab/recap/internal/core/summary"
)

// BuildMonthlyUnits turns a period index into one generation unit per
// (year, month) group. Unit order follows the index's first-seen month
// order; execution order is irrelevant since placement is keyed.
func BuildMonthlyUnits(index summary.PeriodIndex, instructions string, fn assistant.ForcedFunction, profileID string) []Unit {
	var units []Unit
	for year, months := range index {
		for _, group := range months {
			monthIdx := summary.MonthIndex(group.Month)
			if monthIdx < 0 {
				continue
			}
			units = append(units, Unit{
				Year:        year,
				Period:      group.Month,
				MonthIndex:  monthIdx,
				SourceCount: len(group.Records),
				StartDate:   summary.MonthStartDate(year, monthIdx),
				Input: GenerationInput{
					Instructions: instructions,
					Items:        group.Records,
					ItemCount:    len(group.Records),
					Function:     fn,
					ProfileID:    profileID,
				},
			})
		}
	}
	return units
}
