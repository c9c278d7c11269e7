package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/recaplab/recap/internal/assistant"
	"github.com/recaplab/recap/internal/core/summary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monthUnit(year int, month string, marker string) Unit {
	idx := summary.MonthIndex(month)
	return Unit{
		Year:        year,
		Period:      month,
		MonthIndex:  idx,
		SourceCount: 1,
		StartDate:   summary.MonthStartDate(year, idx),
		Input: GenerationInput{
			Instructions: "Summarize the month.",
			Items:        []map[string]string{{"marker": marker}},
			ItemCount:    1,
			Function:     assistant.ForcedFunction{Name: "store_summary"},
			ProfileID:    "asst-m",
		},
	}
}

func TestFanOut_ZeroUnitsShortCircuits(t *testing.T) {
	svc := newMockConversation()
	executor := NewFanOutExecutor(NewGenerator(svc), 0)

	out := executor.Run(context.Background(), nil)

	assert.Equal(t, 0, out.Results.Count())
	assert.Empty(t, out.Errors)
	assert.Zero(t, svc.nextConv, "no service call expected for zero units")
}

func TestFanOut_AccountingInvariant(t *testing.T) {
	// Every unit settles as exactly one result or one error.
	svc := newMockConversation()
	svc.failOn = []string{"apr-fail", "jun-fail"}
	executor := NewFanOutExecutor(NewGenerator(svc), 0)

	units := []Unit{
		monthUnit(2024, "March", "mar-ok"),
		monthUnit(2024, "April", "apr-fail"),
		monthUnit(2024, "May", "may-ok"),
		monthUnit(2024, "June", "jun-fail"),
	}
	out := executor.Run(context.Background(), units)

	assert.Equal(t, len(units), out.Results.Count()+len(out.Errors))
	assert.Equal(t, 2, out.Results.Count())
	assert.Len(t, out.Errors, 2)
}

func TestFanOut_FailureIsolation(t *testing.T) {
	// Scenario: one of three monthly units fails; the other two land
	// correctly keyed and the error list has length one.
	svc := newMockConversation()
	svc.failOn = []string{"apr-fail"}
	executor := NewFanOutExecutor(NewGenerator(svc), 0)

	units := []Unit{
		monthUnit(2024, "March", "mar-ok"),
		monthUnit(2024, "April", "apr-fail"),
		monthUnit(2024, "May", "may-ok"),
	}
	out := executor.Run(context.Background(), units)

	require.Len(t, out.Errors, 1)
	assert.Equal(t, "April 2024", out.Errors[0].Period)
	assert.Contains(t, out.Errors[0].Message, "simulated failure")

	require.Contains(t, out.Results, 2024)
	assert.Contains(t, out.Results[2024], "March")
	assert.Contains(t, out.Results[2024], "May")
	assert.NotContains(t, out.Results[2024], "April")
	assert.Equal(t, "generated", out.Results[2024]["March"].AIOutput["summary"])
}

func TestFanOut_BoundedConcurrency(t *testing.T) {
	svc := newMockConversation()
	executor := NewFanOutExecutor(NewGenerator(svc), 2)

	units := make([]Unit, 0, 8)
	months := []string{"January", "February", "March", "April", "May", "June", "July", "August"}
	for _, m := range months {
		units = append(units, monthUnit(2024, m, fmt.Sprintf("%s-ok", m)))
	}
	out := executor.Run(context.Background(), units)

	assert.Equal(t, 8, out.Results.Count())
	assert.Empty(t, out.Errors)
	assert.LessOrEqual(t, svc.peakUse, 2, "semaphore must cap in-flight generations")
}

func TestGenerator_CleansUpConversation(t *testing.T) {
	svc := newMockConversation()
	svc.failOn = []string{"doomed"}
	gen := NewGenerator(svc)

	_, err := gen.Generate(context.Background(), GenerationInput{
		Instructions: "Summarize.",
		Items:        []map[string]string{{"marker": "doomed"}},
		ItemCount:    1,
		Function:     assistant.ForcedFunction{Name: "store_summary"},
	})
	require.Error(t, err)
	assert.Equal(t, []string{"conv-1"}, svc.deletedConvs, "conversation released on the failure path")
}

func TestGenerator_AttachmentModeForLargeInputs(t *testing.T) {
	svc := newMockConversation()
	gen := NewGenerator(svc)

	// Item count at the threshold forces the side channel even though
	// the serialized prompt is small.
	items := make([]map[string]string, itemCountThreshold)
	for i := range items {
		items[i] = map[string]string{"i": fmt.Sprint(i)}
	}
	_, err := gen.Generate(context.Background(), GenerationInput{
		Instructions: "Summarize.",
		Items:        items,
		ItemCount:    len(items),
		Function:     assistant.ForcedFunction{Name: "store_summary"},
	})
	require.NoError(t, err)

	require.Len(t, svc.uploads, 1)
	assert.Equal(t, svc.uploads, svc.deletedFiles, "uploaded file released after the call")
	assert.Contains(t, svc.messages["conv-1"], attachmentNote)
}
