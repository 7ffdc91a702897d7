// Package dto provides Data Transfer Objects for HTTP request/response handling.
package dto

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/callrelay/internal/domain"
	"github.com/jsamuelsen/callrelay/internal/platform/logging"
)

// ErrorResponse is the standard error envelope for all error responses.
type ErrorResponse struct {
	Error   ErrorDetail `json:"error"`
	TraceID string      `json:"traceId,omitempty"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	// Code is a machine-readable error code (e.g., "NOT_FOUND", "BUSY").
	Code string `json:"code"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// Details holds field-level messages for validation errors.
	Details map[string]string `json:"details,omitempty"`
}

// Error codes for machine-readable error identification.
const (
	ErrorCodeNotFound    = "NOT_FOUND"
	ErrorCodeNoRule      = "NO_RULE"
	ErrorCodeConflict    = "CONFLICT"
	ErrorCodeValidation  = "VALIDATION_ERROR"
	ErrorCodeBadRequest  = "BAD_REQUEST"
	ErrorCodeBusy        = "BUSY"
	ErrorCodeUnavailable = "SERVICE_UNAVAILABLE"
	ErrorCodeTimeout     = "TIMEOUT"
	ErrorCodeInternal    = "INTERNAL_ERROR"
)

// NewErrorResponse creates a new error response with the given code and message.
func NewErrorResponse(code, message string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}
}

// NewErrorResponseWithDetails creates an error response with field details.
func NewErrorResponseWithDetails(code, message string, details map[string]string) *ErrorResponse {
	resp := NewErrorResponse(code, message)
	resp.Error.Details = details

	return resp
}

// WithTraceID adds a trace ID to the error response.
func (e *ErrorResponse) WithTraceID(traceID string) *ErrorResponse {
	e.TraceID = traceID
	return e
}

// HTTPStatusFromCode maps error codes to HTTP status codes.
func HTTPStatusFromCode(code string) int {
	switch code {
	case ErrorCodeNotFound, ErrorCodeNoRule:
		return http.StatusNotFound
	case ErrorCodeConflict:
		return http.StatusConflict
	case ErrorCodeValidation, ErrorCodeBadRequest:
		return http.StatusBadRequest
	case ErrorCodeBusy, ErrorCodeUnavailable:
		return http.StatusServiceUnavailable
	case ErrorCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// MapDomainError maps an error to a status code and response body. Errors
// that are not domain errors become a generic 500 so internals do not leak.
func MapDomainError(err error) (int, *ErrorResponse) {
	code := codeFor(err)
	if code == ErrorCodeInternal {
		return http.StatusInternalServerError, NewErrorResponse(code, "an internal error occurred")
	}

	resp := NewErrorResponse(code, err.Error())

	var ve *domain.ValidationError
	if errors.As(err, &ve) && ve.Field != "" {
		resp.Error.Details = map[string]string{ve.Field: ve.Message}
	}

	return HTTPStatusFromCode(code), resp
}

func codeFor(err error) string {
	switch {
	case domain.IsNoRule(err):
		return ErrorCodeNoRule
	case domain.IsNotFound(err):
		return ErrorCodeNotFound
	case domain.IsDuplicateRegistration(err):
		return ErrorCodeConflict
	case domain.IsValidation(err):
		return ErrorCodeValidation
	case domain.IsBusy(err):
		return ErrorCodeBusy
	case domain.IsUnavailable(err):
		return ErrorCodeUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorCodeTimeout
	default:
		return ErrorCodeInternal
	}
}

// HandleError writes the response for err. Internal errors are logged with
// their full text since the client only sees a generic message.
func HandleError(c *gin.Context, err error) {
	status, resp := MapDomainError(err)
	resp.TraceID = traceID(c)

	if status == http.StatusInternalServerError {
		ctx := c.Request.Context()
		logging.FromContext(ctx).ErrorContext(ctx, "internal error",
			slog.String("error", err.Error()),
			slog.String("trace_id", resp.TraceID),
		)
	}

	_ = c.Error(err)
	c.JSON(status, resp)
}

// HandleErrorCode writes an adapter-level error that has no domain error behind it.
func HandleErrorCode(c *gin.Context, code, message string) {
	c.JSON(HTTPStatusFromCode(code), NewErrorResponse(code, message).WithTraceID(traceID(c)))
}

// HandleValidationErrors writes a 400 with field-level messages.
func HandleValidationErrors(c *gin.Context, fields map[string]string) {
	resp := NewErrorResponseWithDetails(ErrorCodeValidation, "request validation failed", fields)
	c.JSON(http.StatusBadRequest, resp.WithTraceID(traceID(c)))
}

// AbortWithErrorCode aborts the chain with the given code.
func AbortWithErrorCode(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(HTTPStatusFromCode(code), NewErrorResponse(code, message).WithTraceID(traceID(c)))
}

func traceID(c *gin.Context) string {
	if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}

	return ""
}
