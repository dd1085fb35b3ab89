package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/mapgame-session-go/internal/dispatch"
)

// writeJSONError writes JSON error response
func writeJSONError(w http.ResponseWriter, data interface{}) error {
	return json.NewEncoder(w).Encode(data)
}

// ErrorBuilder helps construct structured errors with context
type ErrorBuilder struct {
	errType   string
	message   string
	context   map[string]interface{}
	requestID string
	cause     error
}

// NewError creates a new error builder
func NewError(errType, message string) *ErrorBuilder {
	return &ErrorBuilder{
		errType: errType,
		message: message,
		context: make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (eb *ErrorBuilder) WithContext(key string, value interface{}) *ErrorBuilder {
	eb.context[key] = value
	return eb
}

// WithRequestID adds request ID to the error
func (eb *ErrorBuilder) WithRequestID(requestID string) *ErrorBuilder {
	eb.requestID = requestID
	return eb
}

// WithCause adds the underlying cause error
func (eb *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	eb.cause = err
	if err != nil {
		eb.context["cause"] = err.Error()
	}
	return eb
}

// Build creates the final EngineError
func (eb *ErrorBuilder) Build() EngineError {
	return EngineError{
		Type:      eb.errType,
		Message:   eb.message,
		Context:   eb.context,
		RequestID: eb.requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// kindStatus maps a dispatcher failure kind to its error type and HTTP status.
var kindStatus = map[dispatch.Kind]struct {
	errType string
	status  int
}{
	dispatch.KindInvalidToken:           {ErrTypeInvalidToken, http.StatusNotFound},
	dispatch.KindSessionNotFound:        {ErrTypeSessionNotFound, http.StatusNotFound},
	dispatch.KindInvalidSession:         {ErrTypeInvalidSession, http.StatusGone},
	dispatch.KindDefinitionNotFound:     {ErrTypeDefinitionNotFound, http.StatusNotFound},
	dispatch.KindAccessDenied:           {ErrTypeAccessDenied, http.StatusForbidden},
	dispatch.KindOutOfRange:             {ErrTypeOutOfRange, http.StatusBadRequest},
	dispatch.KindInvalidArguments:       {ErrTypeInvalidArguments, http.StatusBadRequest},
	dispatch.KindUnknownFunction:        {ErrTypeUnknownFunction, http.StatusBadRequest},
	dispatch.KindBackwardJumpDisallowed: {ErrTypeJumpDisallowed, http.StatusConflict},
	dispatch.KindForwardJumpDisallowed:  {ErrTypeJumpDisallowed, http.StatusConflict},
	dispatch.KindStorage:                {ErrTypeStorage, http.StatusServiceUnavailable},
	dispatch.KindInternal:               {ErrTypeInternal, http.StatusInternalServerError},
}

// classifyError returns the error type and HTTP status for an engine or
// dispatcher error.
func classifyError(err error) (string, int) {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTypeTimeout, http.StatusGatewayTimeout
	}
	if m, ok := kindStatus[dispatch.Classify(err)]; ok {
		return m.errType, m.status
	}
	return ErrTypeInternal, http.StatusInternalServerError
}

// ErrorHandler provides centralized error handling with logging
type ErrorHandler struct {
	logger         *log.Logger
	securityLogger *SecurityLogger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *log.Logger, securityLogger *SecurityLogger) *ErrorHandler {
	return &ErrorHandler{
		logger:         logger,
		securityLogger: securityLogger,
	}
}

// HandleError converts an engine error into a structured response
func (eh *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetReqID(r.Context())

	var engineErr EngineError
	if errors.As(err, &engineErr) {
		eh.logError(r, engineErr, http.StatusInternalServerError)
		eh.writeErrorResponse(w, http.StatusInternalServerError, engineErr)
		return
	}

	errType, status := classifyError(err)
	message := err.Error()
	if status >= 500 {
		// Store and driver detail stays in the logs.
		message = http.StatusText(status)
	}
	engineErr = NewError(errType, message).
		WithRequestID(requestID).
		WithContext("path", routePath(r)).
		WithContext("method", r.Method).
		Build()

	eh.logger.Printf("request_failed request_id=%s path=%s cause=%q", requestID, routePath(r), err.Error())
	eh.logError(r, engineErr, status)
	eh.writeErrorResponse(w, status, engineErr)
}

// HandleValidationError handles validation-specific errors
func (eh *ErrorHandler) HandleValidationError(w http.ResponseWriter, r *http.Request, field, message string) {
	requestID := middleware.GetReqID(r.Context())

	engineErr := NewError(ErrTypeValidation, fmt.Sprintf("Validation failed: %s", message)).
		WithRequestID(requestID).
		WithContext("field", field).
		WithContext("path", routePath(r)).
		WithContext("method", r.Method).
		Build()

	eh.securityLogger.LogSecurityEvent(
		requestID,
		"validation_failure",
		message,
		map[string]interface{}{
			"field": field,
			"path":  routePath(r),
		},
		r.RemoteAddr,
	)

	eh.logError(r, engineErr, http.StatusBadRequest)
	eh.writeErrorResponse(w, http.StatusBadRequest, engineErr)
}

// HandleInvokeFailure writes a failed dispatcher result with the status its
// failure kind maps to.
func (eh *ErrorHandler) HandleInvokeFailure(w http.ResponseWriter, r *http.Request, function string, res dispatch.Result, err error) {
	requestID := middleware.GetReqID(r.Context())
	errType, status := classifyError(err)

	eh.logger.Printf(
		"invoke_failed request_id=%s function=%q kind=%s type=%s category=%s status=%d",
		requestID, function, res.Error.Kind, errType, GetErrorCategory(errType), status,
	)
	if GetErrorCategory(errType) == CategoryPolicy {
		eh.securityLogger.LogSecurityEvent(requestID, "policy_violation", string(res.Error.Kind),
			map[string]interface{}{"function": function}, r.RemoteAddr)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.Header().Set("X-Error-Type", errType)
	w.Header().Set("X-Error-Category", string(GetErrorCategory(errType)))
	w.WriteHeader(status)
	if err := writeJSONError(w, InvokeResponse{Result: res, Function: function, RequestID: requestID}); err != nil {
		eh.logger.Printf("response_encode_failed request_id=%s error=%v", requestID, err)
	}
}

// logError logs the error with appropriate level and context
func (eh *ErrorHandler) logError(r *http.Request, engineErr EngineError, status int) {
	category := GetErrorCategory(engineErr.Type)

	logLevel := "ERROR"
	if category == CategoryValidation || category == CategoryPolicy || (category == CategorySession && status < 500) {
		logLevel = "WARN"
	}

	logFields := map[string]interface{}{
		"level":      logLevel,
		"type":       engineErr.Type,
		"category":   category,
		"message":    engineErr.Message,
		"status":     status,
		"request_id": engineErr.RequestID,
		"timestamp":  engineErr.Timestamp,
		"method":     r.Method,
		"path":       routePath(r),
		"remote_ip":  r.RemoteAddr,
	}
	for key, value := range eh.securityLogger.sanitizeContext(engineErr.Context) {
		logFields[key] = value
	}

	eh.logger.Printf(
		"error_occurred level=%s type=%s category=%s status=%d request_id=%s path=%s message=%q context=%+v",
		logLevel, engineErr.Type, category, status, engineErr.RequestID, routePath(r), engineErr.Message, logFields,
	)
}

// writeErrorResponse writes the error response as JSON
func (eh *ErrorHandler) writeErrorResponse(w http.ResponseWriter, status int, engineErr EngineError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.Header().Set("X-Error-Type", engineErr.Type)
	w.Header().Set("X-Error-Category", string(GetErrorCategory(engineErr.Type)))
	w.WriteHeader(status)

	if err := writeJSONError(w, engineErr); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// RecoveryHandler provides panic recovery with structured error logging
func (eh *ErrorHandler) RecoveryHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				requestID := middleware.GetReqID(r.Context())

				eh.logger.Printf(
					"panic_recovered request_id=%s path=%s method=%s panic=%v",
					requestID, routePath(r), r.Method, rvr,
				)

				engineErr := NewError(ErrTypeInternal, "Internal server error").
					WithRequestID(requestID).
					WithContext("path", routePath(r)).
					WithContext("method", r.Method).
					Build()

				eh.writeErrorResponse(w, http.StatusInternalServerError, engineErr)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// routePath reports the matched route pattern so session tokens embedded in
// URLs never reach the logs.
func routePath(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
