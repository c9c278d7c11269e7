// Package crm is the REST client for the external relational store.
// A Client is scoped to one instance URL / access token pair and is
// created per pipeline run, never shared across runs.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/recaplab/recap/internal/core/summary"
)

const defaultAPIVersion = "v59.0"

// Client talks to the store's query and collection endpoints.
type Client struct {
	instanceURL string
	accessToken string
	apiVersion  string
	httpClient  *http.Client
}

// New creates a store client for one run. A nil httpClient gets a
// default with a 30s timeout.
func New(instanceURL, accessToken string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		instanceURL: strings.TrimRight(instanceURL, "/"),
		accessToken: accessToken,
		apiVersion:  defaultAPIVersion,
		httpClient:  httpClient,
	}
}

// QueryPage is one page of query results. Done=false means the store
// holds more pages behind NextRecordsURL.
type QueryPage struct {
	TotalSize      int
	Done           bool
	NextRecordsURL string
	Records        []summary.Record
}

// SaveResult is the per-record outcome of a batched create or update.
type SaveResult struct {
	ID      string      `json:"id"`
	Success bool        `json:"success"`
	Errors  []SaveError `json:"errors"`
}

// SaveError is the store's error detail for one failed record.
type SaveError struct {
	StatusCode string   `json:"statusCode"`
	Message    string   `json:"message"`
	Fields     []string `json:"fields"`
}

func (e SaveError) String() string {
	return fmt.Sprintf("%s: %s", e.StatusCode, e.Message)
}

// Query runs a query and returns its first page.
func (c *Client) Query(ctx context.Context, q string) (QueryPage, error) {
	endpoint := fmt.Sprintf("%s/services/data/%s/query?q=%s",
		c.instanceURL, c.apiVersion, url.QueryEscape(q))
	return c.fetchPage(ctx, endpoint)
}

// QueryMore follows a pagination locator returned by a previous page.
func (c *Client) QueryMore(ctx context.Context, nextRecordsURL string) (QueryPage, error) {
	endpoint := nextRecordsURL
	if strings.HasPrefix(endpoint, "/") {
		endpoint = c.instanceURL + endpoint
	}
	return c.fetchPage(ctx, endpoint)
}

func (c *Client) fetchPage(ctx context.Context, endpoint string) (QueryPage, error) {
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return QueryPage{}, err
	}

	var raw struct {
		TotalSize      int                      `json:"totalSize"`
		Done           bool                     `json:"done"`
		NextRecordsURL string                   `json:"nextRecordsUrl"`
		Records        []map[string]interface{} `json:"records"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return QueryPage{}, fmt.Errorf("decode query response: %w", err)
	}

	page := QueryPage{
		TotalSize:      raw.TotalSize,
		Done:           raw.Done,
		NextRecordsURL: raw.NextRecordsURL,
		Records:        make([]summary.Record, 0, len(raw.Records)),
	}
	for _, row := range raw.Records {
		page.Records = append(page.Records, rowToRecord(row))
	}
	return page, nil
}

// CreateAll submits one batched create in allow-partial-success mode:
// an individual record's failure does not abort the rest of the batch.
func (c *Client) CreateAll(ctx context.Context, objectName string, records []map[string]interface{}) ([]SaveResult, error) {
	return c.submitBatch(ctx, http.MethodPost, objectName, records)
}

// UpdateAll submits one batched update in allow-partial-success mode.
// Each record must carry its "Id" field.
func (c *Client) UpdateAll(ctx context.Context, objectName string, records []map[string]interface{}) ([]SaveResult, error) {
	return c.submitBatch(ctx, http.MethodPatch, objectName, records)
}

func (c *Client) submitBatch(ctx context.Context, method, objectName string, records []map[string]interface{}) ([]SaveResult, error) {
	if len(records) == 0 {
		return nil, nil
	}

	// Collection records need the sobject type attribute stamped in.
	stamped := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		withType := make(map[string]interface{}, len(rec)+1)
		for k, v := range rec {
			withType[k] = v
		}
		withType["attributes"] = map[string]string{"type": objectName}
		stamped = append(stamped, withType)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"allOrNone": false,
		"records":   stamped,
	})
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}

	endpoint := fmt.Sprintf("%s/services/data/%s/composite/sobjects", c.instanceURL, c.apiVersion)
	body, err := c.do(ctx, method, endpoint, payload)
	if err != nil {
		return nil, err
	}

	var results []SaveResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("decode batch response: %w", err)
	}
	return results, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build store request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("store request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read store response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("store returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// rowToRecord lifts a raw query row into a Record, stripping the
// transport-level attributes object.
func rowToRecord(row map[string]interface{}) summary.Record {
	rec := summary.Record{Fields: make(map[string]interface{}, len(row))}
	for k, v := range row {
		switch k {
		case "attributes":
			// transport bookkeeping, not a domain field
		case "Id":
			if s, ok := v.(string); ok {
				rec.ID = s
			}
		case "CreatedDate":
			if s, ok := v.(string); ok {
				rec.CreatedDate = s
			}
		default:
			rec.Fields[k] = v
		}
	}
	return rec
}
