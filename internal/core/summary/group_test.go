package summary

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupByPeriod_BasicGrouping(t *testing.T) {
	records := []Record{
		{ID: "a", CreatedDate: "2024-03-05T14:21:07.000+0000"},
		{ID: "b", CreatedDate: "2024-03-18T09:00:00.000+0000"},
		{ID: "c", CreatedDate: "2024-04-01T00:30:00.000+0000"},
		{ID: "d", CreatedDate: "2023-12-31T23:59:59.000+0000"},
	}

	index := GroupByPeriod(records)

	require.Len(t, index, 2)
	require.Len(t, index[2024], 2)
	assert.Equal(t, "March", index[2024][0].Month)
	assert.Equal(t, []string{"a", "b"}, recordIDs(index[2024][0].Records))
	assert.Equal(t, "April", index[2024][1].Month)
	require.Len(t, index[2023], 1)
	assert.Equal(t, "December", index[2023][0].Month)
}

func TestGroupByPeriod_NoDuplicateMonthPerYear(t *testing.T) {
	// Interleave two months; each must appear exactly once.
	records := []Record{
		{ID: "1", CreatedDate: "2024-05-01T10:00:00.000+0000"},
		{ID: "2", CreatedDate: "2024-06-01T10:00:00.000+0000"},
		{ID: "3", CreatedDate: "2024-05-20T10:00:00.000+0000"},
		{ID: "4", CreatedDate: "2024-06-20T10:00:00.000+0000"},
	}

	index := GroupByPeriod(records)

	require.Len(t, index[2024], 2)
	seen := map[string]bool{}
	for _, g := range index[2024] {
		require.False(t, seen[g.Month], "month %s grouped twice", g.Month)
		seen[g.Month] = true
	}
	assert.Equal(t, []string{"1", "3"}, recordIDs(index[2024][0].Records))
	assert.Equal(t, []string{"2", "4"}, recordIDs(index[2024][1].Records))
}

func TestGroupByPeriod_DropsUnparsableTimestamps(t *testing.T) {
	records := []Record{
		{ID: "ok", CreatedDate: "2024-01-15T08:00:00.000+0000"},
		{ID: "empty", CreatedDate: ""},
		{ID: "garbage", CreatedDate: "not-a-date"},
	}

	index := GroupByPeriod(records)

	require.Len(t, index, 1)
	require.Len(t, index[2024], 1)
	assert.Equal(t, []string{"ok"}, recordIDs(index[2024][0].Records))
}

func TestGroupByPeriod_UTCBoundary(t *testing.T) {
	// 23:30 on Jan 31 at +0700 is Jan 31 16:30 UTC; 01:30 on Feb 1 at
	// -0800 is Feb 1 09:30 UTC. Assignment follows the UTC clock.
	records := []Record{
		{ID: "jan", CreatedDate: "2024-01-31T23:30:00.000+0700"},
		{ID: "feb", CreatedDate: "2024-02-01T01:30:00.000-0800"},
		{ID: "rolls", CreatedDate: "2024-01-31T23:30:00.000-0800"}, // Feb 1 07:30 UTC
	}

	index := GroupByPeriod(records)

	require.Len(t, index[2024], 2)
	assert.Equal(t, "January", index[2024][0].Month)
	assert.Equal(t, []string{"jan"}, recordIDs(index[2024][0].Records))
	assert.Equal(t, "February", index[2024][1].Month)
	assert.Equal(t, []string{"feb", "rolls"}, recordIDs(index[2024][1].Records))
}

func TestGroupByPeriod_IdempotentUnderReapplication(t *testing.T) {
	records := []Record{
		{ID: "a", CreatedDate: "2024-03-05T14:21:07.000+0000"},
		{ID: "b", CreatedDate: "2024-04-18T09:00:00.000+0000"},
	}

	first := GroupByPeriod(records)
	second := GroupByPeriod(records)

	assert.Equal(t, first, second)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short"))

	long := strings.Repeat("x", MaxFieldLength+100)
	got := Truncate(long)
	assert.Len(t, got, MaxFieldLength)

	exact := strings.Repeat("y", MaxFieldLength)
	assert.Equal(t, exact, Truncate(exact))

	assert.Equal(t, "", Truncate(""))
}

func TestTruncateCountsCharacters(t *testing.T) {
	// Two bytes per character; a byte-based cut would halve the
	// allowance and could split a sequence mid-rune.
	long := strings.Repeat("é", MaxFieldLength+50)
	got := Truncate(long)

	assert.Equal(t, MaxFieldLength, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got))

	exact := strings.Repeat("é", MaxFieldLength)
	assert.Equal(t, exact, Truncate(exact))
}

func recordIDs(records []Record) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}
