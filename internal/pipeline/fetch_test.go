package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/recaplab/recap/internal/core/summary"
	"github.com/recaplab/recap/internal/crm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchAll_FollowsPaginationInOrder(t *testing.T) {
	store := &mockStore{
		pages: []crm.QueryPage{
			{
				Done:           false,
				NextRecordsURL: "/query/next-1",
				Records:        []summary.Record{{ID: "a"}, {ID: "b"}},
			},
			{
				Done:           false,
				NextRecordsURL: "/query/next-2",
				Records:        []summary.Record{{ID: "c"}},
			},
			{
				Done:    true,
				Records: []summary.Record{{ID: "d"}},
			},
		},
	}

	start := time.Now()
	records, err := FetchAll(context.Background(), store, "SELECT Id FROM Task")
	elapsed := time.Since(start)
	require.NoError(t, err)

	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
	assert.Equal(t, []string{"SELECT Id FROM Task"}, store.queries)
	assert.Equal(t, []string{"/query/next-1", "/query/next-2"}, store.locators)

	// Two page boundaries, 200ms pacing each.
	assert.GreaterOrEqual(t, elapsed, 2*pageDelay)
}

func TestFetchAll_SinglePageSkipsPacing(t *testing.T) {
	store := &mockStore{
		pages: []crm.QueryPage{
			{Done: true, Records: []summary.Record{{ID: "only"}}},
		},
	}

	start := time.Now()
	records, err := FetchAll(context.Background(), store, "q")
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Less(t, time.Since(start), pageDelay)
	assert.Empty(t, store.locators)
}

func TestFetchAll_PageFailureIsFatal(t *testing.T) {
	store := &mockStore{
		pages: []crm.QueryPage{
			{Done: false, NextRecordsURL: "/query/next", Records: []summary.Record{{ID: "a"}}},
		},
		moreErr: errors.New("locator expired"),
	}

	_, err := FetchAll(context.Background(), store, "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locator expired")
}

func TestFetchAll_QueryFailureIsFatal(t *testing.T) {
	store := &mockStore{queryErr: errors.New("malformed query")}

	_, err := FetchAll(context.Background(), store, "SELEKT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed query")
}
