package errors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// retryAfterSeconds is advertised on 503 responses; breakers half-open well within it
const retryAfterSeconds = 5

// ErrorResponse represents the API error response format
type ErrorResponse struct {
	Error     bool                   `json:"error"`
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
}

// ErrorHandler renders errors as JSON. In debug mode causes and stack traces
// are included in the body.
type ErrorHandler struct {
	logger *zap.Logger
	debug  bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger, debug bool) *ErrorHandler {
	return &ErrorHandler{logger: logger, debug: debug}
}

// Handle processes an error and sends an HTTP response. A request whose
// client has gone away gets no body.
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	requestID, traceID := requestIDs(r)
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		h.logger.Debug("Client closed request",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID),
		)
		return
	}

	appErr := h.classify(err)
	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}

	response := ErrorResponse{
		Error:     true,
		Type:      string(appErr.Type),
		Message:   appErr.Message,
		Code:      appErr.Code,
		Details:   appErr.Details,
		RequestID: requestID,
		TraceID:   traceID,
	}
	if h.debug {
		response.Details = withDebugDetails(appErr)
	}

	h.log(r, appErr, status, requestID, traceID)

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	h.sendJSON(w, status, response)
}

// classify maps any error onto an AppError. Unknown errors become internal
// errors whose message is hidden outside debug mode.
func (h *ErrorHandler) classify(err error) *AppError {
	if appErr := GetAppError(err); appErr != nil {
		return appErr
	}

	switch {
	case errors.Is(err, ErrCircuitOpen):
		return NewUnavailableError("cache").WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewTimeoutError("dashboard query").WithCause(err)
	}

	message := "An internal error occurred"
	if h.debug {
		message = err.Error()
	}
	return newError(ErrorTypeInternal, http.StatusInternalServerError, message, err)
}

func withDebugDetails(appErr *AppError) map[string]interface{} {
	details := make(map[string]interface{}, len(appErr.Details)+2)
	for k, v := range appErr.Details {
		details[k] = v
	}
	if appErr.Cause != nil {
		details["cause"] = appErr.Cause.Error()
	}
	if appErr.StackTrace != "" {
		details["stack_trace"] = appErr.StackTrace
	}
	return details
}

// log writes 5xx at error level and client errors at warn
func (h *ErrorHandler) log(r *http.Request, err *AppError, status int, requestID, traceID string) {
	fields := []zap.Field{
		zap.String("error_type", string(err.Type)),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("request_id", requestID),
	}
	if traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	if err.Code != "" {
		fields = append(fields, zap.String("error_code", err.Code))
	}
	if err.Cause != nil {
		fields = append(fields, zap.Error(err.Cause))
	}
	if err.Details != nil {
		fields = append(fields, zap.Any("details", err.Details))
	}

	level := zapcore.InfoLevel
	switch {
	case status >= 500:
		level = zapcore.ErrorLevel
	case status >= 400:
		level = zapcore.WarnLevel
	}
	if ce := h.logger.Check(level, err.Message); ce != nil {
		ce.Write(fields...)
	}
}

// requestIDs reads the chi request id and the active span's trace id
func requestIDs(r *http.Request) (string, string) {
	requestID := middleware.GetReqID(r.Context())
	if requestID == "" {
		requestID = r.Header.Get("X-Request-ID")
	}
	var traceID string
	if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	return requestID, traceID
}

func (h *ErrorHandler) sendJSON(w http.ResponseWriter, status int, data ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}

// Respond writes appErr without logging. Middleware that rejects requests
// before a handler runs uses it so every error body has the same shape.
func Respond(w http.ResponseWriter, r *http.Request, appErr *AppError) {
	requestID, traceID := requestIDs(r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:     true,
		Type:      string(appErr.Type),
		Message:   appErr.Message,
		RequestID: requestID,
		TraceID:   traceID,
	})
}
