// Package assistant is the REST client for the external generative-AI
// service: conversation threads, messages, forced-function runs polled
// to completion, and the transient file side channel used for
// oversized payloads.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL      = "https://api.openai.com/v1"
	defaultPollInterval = time.Second
)

// Client talks to the AI service's threads, runs and files endpoints.
type Client struct {
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	httpClient   *http.Client
}

// New creates an AI service client. Empty baseURL and zero
// pollInterval get service defaults; a nil httpClient gets a default
// without a global timeout (runs are polled to completion, bounded
// only by the service's own run lifecycle).
func New(baseURL, apiKey string, pollInterval time.Duration, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		pollInterval: pollInterval,
		httpClient:   httpClient,
	}
}

// CreateConversation opens a new thread and returns its identifier.
func (c *Client) CreateConversation(ctx context.Context) (string, error) {
	body, err := c.doJSON(ctx, http.MethodPost, "/threads", map[string]interface{}{})
	if err != nil {
		return "", fmt.Errorf("create conversation: %w", err)
	}
	var thread struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &thread); err != nil {
		return "", fmt.Errorf("decode conversation: %w", err)
	}
	return thread.ID, nil
}

// DeleteConversation removes a thread. Best-effort cleanup path.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	_, err := c.doJSON(ctx, http.MethodDelete, "/threads/"+conversationID, nil)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

// PostMessage appends a user message to a thread. A non-empty fileID
// attaches the transient file uploaded for oversized inputs.
func (c *Client) PostMessage(ctx context.Context, conversationID, content, fileID string) error {
	payload := map[string]interface{}{
		"role":    "user",
		"content": content,
	}
	if fileID != "" {
		payload["attachments"] = []map[string]interface{}{
			{
				"file_id": fileID,
				"tools":   []map[string]string{{"type": "file_search"}},
			},
		}
	}
	_, err := c.doJSON(ctx, http.MethodPost, "/threads/"+conversationID+"/messages", payload)
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	return nil
}

// RunToCompletion starts a run with a forced structured-output call
// and polls until the service either surfaces that call or reaches a
// terminal non-call state. On success it returns the call's raw
// argument JSON. Completion without the call, and any failed terminal
// state, return an error carrying the service's diagnostic.
func (c *Client) RunToCompletion(ctx context.Context, conversationID, profileID string, fn ForcedFunction) (json.RawMessage, error) {
	payload := map[string]interface{}{
		"assistant_id": profileID,
		"tools": []map[string]interface{}{
			{"type": "function", "function": fn},
		},
		"tool_choice": map[string]interface{}{
			"type":     "function",
			"function": map[string]string{"name": fn.Name},
		},
	}
	body, err := c.doJSON(ctx, http.MethodPost, "/threads/"+conversationID+"/runs", payload)
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	var started runState
	if err := json.Unmarshal(body, &started); err != nil {
		return nil, fmt.Errorf("decode run: %w", err)
	}

	return c.pollRun(ctx, conversationID, started.ID, fn.Name)
}

type runState struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	RequiredAction *struct {
		SubmitToolOutputs struct {
			ToolCalls []struct {
				Function struct {
					Name      string          `json:"name"`
					Arguments json.RawMessage `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"submit_tool_outputs"`
	} `json:"required_action"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

func (c *Client) pollRun(ctx context.Context, conversationID, runID, wantFunction string) (json.RawMessage, error) {
	for {
		body, err := c.doJSON(ctx, http.MethodGet, "/threads/"+conversationID+"/runs/"+runID, nil)
		if err != nil {
			return nil, fmt.Errorf("poll run: %w", err)
		}
		var state runState
		if err := json.Unmarshal(body, &state); err != nil {
			return nil, fmt.Errorf("decode run state: %w", err)
		}

		switch state.Status {
		case runStatusQueued, runStatusInProgress:
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.pollInterval):
			}

		case runStatusRequiresAction:
			args, err := extractForcedCall(state, wantFunction)
			// The run stays open waiting for tool outputs we will never
			// submit; cancel it so the service can release it.
			c.cancelRun(ctx, conversationID, runID)
			return args, err

		case runStatusCompleted:
			return nil, fmt.Errorf("run completed without the %s call", wantFunction)

		case runStatusFailed, runStatusCancelled, runStatusExpired, runStatusIncomplete:
			return nil, fmt.Errorf("run ended %s: %s", state.Status, diagnostic(state))

		default:
			return nil, fmt.Errorf("run in unexpected state %s: %s", state.Status, diagnostic(state))
		}
	}
}

func extractForcedCall(state runState, wantFunction string) (json.RawMessage, error) {
	if state.RequiredAction == nil {
		return nil, fmt.Errorf("run requires action but carries no tool calls")
	}
	for _, call := range state.RequiredAction.SubmitToolOutputs.ToolCalls {
		if call.Function.Name == wantFunction {
			args := call.Function.Arguments
			// The service encodes arguments as a JSON string; unwrap it
			// so callers get the bare object.
			var unwrapped string
			if err := json.Unmarshal(args, &unwrapped); err == nil {
				args = json.RawMessage(unwrapped)
			}
			return args, nil
		}
	}
	return nil, fmt.Errorf("run did not call %s", wantFunction)
}

func diagnostic(state runState) string {
	if state.LastError != nil && state.LastError.Message != "" {
		return state.LastError.Message
	}
	return "no diagnostic provided"
}

func (c *Client) cancelRun(ctx context.Context, conversationID, runID string) {
	if _, err := c.doJSON(ctx, http.MethodPost, "/threads/"+conversationID+"/runs/"+runID+"/cancel", map[string]interface{}{}); err != nil {
		slog.Warn("[Assistant] Run cancel failed", "run_id", runID, "error", err)
	}
}

// UploadTransientFile uploads content for attachment-mode generation
// and returns the file identifier.
func (c *Client) UploadTransientFile(ctx context.Context, filename string, content []byte) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("purpose", "assistants"); err != nil {
		return "", fmt.Errorf("encode upload: %w", err)
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("encode upload: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return "", fmt.Errorf("encode upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("encode upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", &buf)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.setCommonHeaders(req)

	body, err := c.send(req)
	if err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}
	var file struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &file); err != nil {
		return "", fmt.Errorf("decode upload: %w", err)
	}
	return file.ID, nil
}

// DeleteTransientFile removes an uploaded file. Called on every exit
// path of an attachment-mode generation.
func (c *Client) DeleteTransientFile(ctx context.Context, fileID string) error {
	if _, err := c.doJSON(ctx, http.MethodDelete, "/files/"+fileID, nil); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setCommonHeaders(req)

	return c.send(req)
}

func (c *Client) setCommonHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")
}

func (c *Client) send(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
