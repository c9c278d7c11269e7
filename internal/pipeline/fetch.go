package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/recaplab/recap/internal/core/summary"
)

// pageDelay is the fixed pacing between consecutive page fetches.
// Applied unconditionally to respect upstream rate limits.
const pageDelay = 200 * time.Millisecond

// FetchAll retrieves every record matching the query, following the
// store's pagination until done. Output preserves store order. Any
// page failure fails the whole fetch; there is no partial-page retry.
func FetchAll(ctx context.Context, store RecordStore, query string) ([]summary.Record, error) {
	page, err := store.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	records := page.Records
	for !page.Done {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pageDelay):
		}

		page, err = store.QueryMore(ctx, page.NextRecordsURL)
		if err != nil {
			return nil, fmt.Errorf("query more records: %w", err)
		}
		records = append(records, page.Records...)
	}

	slog.Info("[Fetcher] Fetch complete", "records", len(records))
	return records, nil
}
