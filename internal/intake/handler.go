package intake

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	v1 "github.com/recaplab/recap/internal/api/v1"
	"github.com/recaplab/recap/internal/assistant"
	httperr "github.com/recaplab/recap/internal/core/errors"
	"github.com/recaplab/recap/internal/pipeline"
	"github.com/recaplab/recap/internal/runs"
)

const (
	msgReadBodyFailed = "Failed to read request body"
	msgInvalidJSON    = "Invalid JSON body"
	msgNoCredential   = "No store credential provided"
	msgRunNotFound    = "Run not found"
)

// intakeError carries the structured HTTP error shape from a helper
// back to the handler. Helpers return this instead of writing to
// gin.Context directly, keeping them decoupled from HTTP.
type intakeError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *intakeError) Error() string {
	return e.message
}

// SummarizeHandler handles HTTP POST requests for summarization runs.
func (s *Service) SummarizeHandler(c *gin.Context) {
	req, payloadSize, err := s.parseRequest(c)
	if err != nil {
		writeError(c, err)
		return
	}

	token, err := resolveCredential(c, req)
	if err != nil {
		writeError(c, err)
		return
	}

	if verr := req.Validate(); verr != nil {
		slog.Warn("Envelope validation failed", "error", verr, "subject_id", req.SubjectID)
		writeError(c, &intakeError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpValidationError,
			message:    verr.Error(),
		})
		return
	}

	slog.Info("Received summarization request",
		"subject_id", req.SubjectID,
		"user_id", req.UserID,
		"recency_months", req.RecencyMonths,
		"send_callback", req.SendCallback,
		"payload_size", payloadSize)

	store := s.newStore(req.InstanceURL, token)
	preq := s.toPipelineRequest(req, token)

	if req.RecencyMonths > 0 {
		s.runSync(c, store, preq)
		return
	}
	s.runAsync(c, store, preq)
}

// RunStatusHandler serves the journaled state of one async run.
func (s *Service) RunStatusHandler(c *gin.Context) {
	runID := c.Param("id")
	if s.journal == nil {
		writeError(c, &intakeError{
			statusCode: http.StatusNotFound,
			errorType:  httperr.HttpRunNotFoundError,
			message:    msgRunNotFound,
		})
		return
	}

	run, err := s.journal.GetRun(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, runs.ErrNotFound) {
			writeError(c, &intakeError{
				statusCode: http.StatusNotFound,
				errorType:  httperr.HttpRunNotFoundError,
				message:    msgRunNotFound,
			})
			return
		}
		slog.Error("Failed to fetch run", "run_id", runID, "error", err)
		writeError(c, &intakeError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    "Failed to fetch run",
		})
		return
	}

	c.JSON(http.StatusOK, run)
}

// runSync executes the fast-sync path inside the request lifetime and
// returns the generated results inline.
func (s *Service) runSync(c *gin.Context, store pipeline.RecordStore, preq pipeline.Request) {
	outcome, err := s.runner.Execute(c.Request.Context(), store, preq)
	if err != nil {
		slog.Error("Fast-sync run failed", "subject_id", preq.SubjectID, "error", err)
		writeError(c, &intakeError{
			statusCode: http.StatusBadGateway,
			errorType:  httperr.HttpPipelineError,
			message:    err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, v1.SummarizeResponse{
		Status:           "completed",
		Monthly:          outcome.Monthly,
		Quarterly:        outcome.Quarterly,
		MonthlyErrors:    outcome.MonthlyErrors,
		QuarterlyErrors:  outcome.QuarterlyErrors,
		MonthlyCount:     outcome.Monthly.Count(),
		QuarterlyCount:   outcome.Quarterly.Count(),
		GenerationErrors: len(outcome.MonthlyErrors) + len(outcome.QuarterlyErrors),
	})
}

// runAsync journals the run, detaches it from the request lifetime,
// and acknowledges immediately. Journal failures never block the run.
func (s *Service) runAsync(c *gin.Context, store pipeline.RecordStore, preq pipeline.Request) {
	runID := uuid.NewString()
	if s.journal != nil {
		err := s.journal.CreateRun(c.Request.Context(), &runs.Run{
			ID:        runID,
			SubjectID: preq.SubjectID,
			UserID:    preq.UserID,
		})
		if err != nil {
			slog.Warn("Failed to journal run", "run_id", runID, "error", err)
		}
	}

	// The run outlives the request; its terminal state goes out via the
	// callback and the journal, never this response.
	go s.runner.ExecuteAsync(context.Background(), store, preq, runID)

	c.JSON(http.StatusAccepted, v1.SummarizeResponse{
		Status: "accepted",
		RunID:  runID,
	})
}

// parseRequest reads the raw request body under the size limit and
// binds it into a SummarizeRequest.
func (s *Service) parseRequest(c *gin.Context) (*v1.SummarizeRequest, int, *intakeError) {
	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		return nil, 0, &intakeError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return nil, len(bodyBytes), &intakeError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	var req v1.SummarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		return nil, len(bodyBytes), &intakeError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		}
	}

	return &req, len(bodyBytes), nil
}

// resolveCredential picks the store access token: an Authorization
// bearer header wins over the token in the body; having neither is a
// hard reject.
func resolveCredential(c *gin.Context, req *v1.SummarizeRequest) (string, *intakeError) {
	if header := c.GetHeader("Authorization"); header != "" {
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token != "" && token != header {
			return token, nil
		}
	}
	if req.AccessToken != "" {
		return req.AccessToken, nil
	}

	slog.Warn("Request carries no store credential", "subject_id", req.SubjectID)
	return "", &intakeError{
		statusCode: http.StatusUnauthorized,
		errorType:  httperr.HttpUnauthorizedError,
		message:    msgNoCredential,
	}
}

// toPipelineRequest maps the wire invocation onto the pipeline's
// request type.
func (s *Service) toPipelineRequest(req *v1.SummarizeRequest, token string) pipeline.Request {
	return pipeline.Request{
		SubjectID:             req.SubjectID,
		Query:                 req.Query,
		MonthlyInstructions:   req.MonthlyInstructions,
		QuarterlyInstructions: req.QuarterlyInstructions,
		MonthlyFunction:       toForcedFunction(req.MonthlyFunction),
		QuarterlyFunction:     toForcedFunction(req.QuarterlyFunction),
		Existing:              req.Existing,
		ObjectName:            req.ObjectName,
		UserID:                req.UserID,
		RecencyMonths:         req.RecencyMonths,
		Callback: pipeline.Callback{
			URL:         req.CallbackURL,
			AccessToken: token,
			SubjectID:   req.SubjectID,
			UserID:      req.UserID,
		},
		SendCallback: req.SendCallback,
		Profiles:     s.profiles,
	}
}

func toForcedFunction(fn v1.FunctionSpec) assistant.ForcedFunction {
	return assistant.ForcedFunction{
		Name:        fn.Name,
		Description: fn.Description,
		Parameters:  fn.Parameters,
	}
}

// writeError serializes an intakeError as the JSON HTTP response.
func writeError(c *gin.Context, err *intakeError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
