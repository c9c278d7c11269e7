package errors

const (
	HttpInternalError     = "internal_error"
	HttpInvalidJsonError  = "invalid_json"
	HttpValidationError   = "validation_failed"
	HttpUnauthorizedError = "unauthorized"
	HttpRunNotFoundError  = "run_not_found"
	HttpPipelineError     = "pipeline_failed"
)

// ErrorResponse is the error response body for intake errors.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
