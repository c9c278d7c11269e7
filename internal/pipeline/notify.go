package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// callbackTimeout bounds one delivery attempt. There are no retries:
// a failed delivery is logged by the caller and dropped.
const callbackTimeout = 30 * time.Second

// Process results carried in the callback body.
const (
	ProcessSuccess = "Success"
	ProcessFailed  = "Failed"
)

// Callback is the caller-supplied delivery target for one async run.
type Callback struct {
	URL         string
	AccessToken string
	SubjectID   string
	UserID      string
}

// CallbackNotifier posts the terminal status of an async run to the
// caller's endpoint, bearer-authenticated with the run's original
// credential.
type CallbackNotifier struct {
	httpClient *http.Client
}

// NewCallbackNotifier creates a notifier. A nil httpClient gets a
// default bounded by the delivery timeout.
func NewCallbackNotifier(httpClient *http.Client) *CallbackNotifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: callbackTimeout}
	}
	return &CallbackNotifier{httpClient: httpClient}
}

// Notify delivers exactly one status POST. Non-2xx responses and
// transport failures are returned as errors for the caller to log;
// there is no further escalation path.
func (n *CallbackNotifier) Notify(ctx context.Context, cb Callback, processResult, message string) error {
	payload, err := json.Marshal(map[string]string{
		"subjectId":     cb.SubjectID,
		"userId":        cb.UserID,
		"status":        "Completed",
		"processResult": processResult,
		"message":       message,
	})
	if err != nil {
		return fmt.Errorf("encode callback: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, callbackTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cb.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cb.AccessToken)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("callback delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("callback returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
