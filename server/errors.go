package server

import (
	goerrors "errors"
	"fmt"
	"maps"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/propagation"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/lockwatch/lockdash/trace"
)

// IAPIError is an error that maps onto the JSON error envelope.
type IAPIError interface {
	ErrorCode() string
	Message() string
	HTTPStatus() int
	Details() map[string]any
}

// APIResponse is the envelope for every JSON response.
type APIResponse struct {
	Data  any               `json:"data,omitempty"`
	Error *APIErrorResponse `json:"error,omitempty"`
	Meta  map[string]any    `json:"meta"`
}

// APIErrorResponse is the error portion of an APIResponse.
type APIErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// BaseAPIError provides a basic implementation of IAPIError.
type BaseAPIError struct {
	code       string
	message    string
	httpStatus int
	details    map[string]any
}

// NewBaseAPIError creates a new base API error.
func NewBaseAPIError(code, message string, httpStatus int) *BaseAPIError {
	return &BaseAPIError{
		code:       code,
		message:    message,
		httpStatus: httpStatus,
		details:    make(map[string]any),
	}
}

func (e *BaseAPIError) ErrorCode() string { return e.code }
func (e *BaseAPIError) Message() string   { return e.message }
func (e *BaseAPIError) HTTPStatus() int   { return e.httpStatus }

// Details returns a copy of the error details.
func (e *BaseAPIError) Details() map[string]any {
	if e.details == nil {
		return nil
	}
	cp := make(map[string]any, len(e.details))
	maps.Copy(cp, e.details)
	return cp
}

// WithDetails adds details to the error.
func (e *BaseAPIError) WithDetails(key string, value any) *BaseAPIError {
	e.details[key] = value
	return e
}

func (e *BaseAPIError) Error() string {
	if e == nil {
		return ""
	}
	if e.code == "" {
		return e.message
	}
	return e.code + ": " + e.message
}

// NewNotFoundError creates a 404 error for resource.
func NewNotFoundError(resource string) *BaseAPIError {
	return NewBaseAPIError("NOT_FOUND", fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// NewConflictError creates a 409 error.
func NewConflictError(message string) *BaseAPIError {
	return NewBaseAPIError("CONFLICT", message, http.StatusConflict)
}

// NewTooManyRequestsError creates a 429 error.
func NewTooManyRequestsError(message string) *BaseAPIError {
	if message == "" {
		message = "Rate limit exceeded"
	}
	return NewBaseAPIError("TOO_MANY_REQUESTS", message, http.StatusTooManyRequests)
}

// NewServiceUnavailableError creates a 503 error.
func NewServiceUnavailableError(message string) *BaseAPIError {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	return NewBaseAPIError("SERVICE_UNAVAILABLE", message, http.StatusServiceUnavailable)
}

var _ IAPIError = (*BaseAPIError)(nil)

func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr IAPIError
	if goerrors.As(err, &apiErr) {
		_ = s.formatErrorResponse(c, apiErr)
		return
	}

	status := http.StatusInternalServerError
	msg := "Internal server error"
	var he *echo.HTTPError
	if goerrors.As(err, &he) {
		status = he.Code
		switch m := he.Message.(type) {
		case string:
			msg = m
		case error:
			msg = m.Error()
		}
	}

	if !s.cfg.App.Debug && status == http.StatusInternalServerError {
		msg = "An error occurred while processing your request"
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("request_id", requestID(c)).Msg("Unhandled error")
	}

	base := NewBaseAPIError(statusToErrorCode(status), msg, status)
	if s.cfg.App.Debug {
		_ = base.WithDetails("error", err.Error())
	}
	_ = s.formatErrorResponse(c, base)
}

func statusToErrorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case http.StatusTooManyRequests:
		return "TOO_MANY_REQUESTS"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}

func (s *Server) formatErrorResponse(c echo.Context, apiErr IAPIError) error {
	resp := &APIErrorResponse{
		Code:    apiErr.ErrorCode(),
		Message: apiErr.Message(),
	}
	if s.cfg.App.Debug {
		if details := apiErr.Details(); len(details) > 0 {
			resp.Details = details
		}
	}

	injectTraceParent(c)
	return c.JSON(apiErr.HTTPStatus(), APIResponse{Error: resp, Meta: meta(c)})
}

func formatSuccessResponse(c echo.Context, status int, data any) error {
	injectTraceParent(c)
	return c.JSON(status, APIResponse{Data: data, Meta: meta(c)})
}

func meta(c echo.Context) map[string]any {
	m := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"requestId": requestID(c),
	}
	if sc := oteltrace.SpanContextFromContext(c.Request().Context()); sc.HasTraceID() {
		m["traceId"] = sc.TraceID().String()
	}
	return m
}

// requestID returns the request ID, assigning one if no middleware has.
func requestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	if id, ok := trace.RequestIDFromContext(c.Request().Context()); ok {
		return id
	}
	id := trace.NewID()
	c.Response().Header().Set(echo.HeaderXRequestID, id)
	return id
}

// injectTraceParent writes the W3C traceparent of the active span, if any.
func injectTraceParent(c echo.Context) {
	propagation.TraceContext{}.Inject(c.Request().Context(), propagation.HeaderCarrier(c.Response().Header()))
}
