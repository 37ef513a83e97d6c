// Package errors provides the gateway's standardized error type:
// every handler failure (bad request, missing script, internal
// failure) is wrapped into a SimError carrying the HTTP status and
// structured fields LogError and WriteError both key off, instead of
// each handler constructing its own status/message pair by hand.
// Adapter-layer only: nothing inside the simulation core returns a
// SimError; the compiler and VM have their own structured error
// types.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrorType classifies a SimError for status-code mapping and logging.
type ErrorType string

const (
	ValidationError    ErrorType = "validation_error"
	NotFoundError      ErrorType = "not_found"
	UnauthorizedError  ErrorType = "unauthorized"
	ForbiddenError     ErrorType = "forbidden"
	ConflictError      ErrorType = "conflict"
	InternalError      ErrorType = "internal_error"
	ExternalError      ErrorType = "external_error"
	DatabaseError      ErrorType = "database_error"
	RateLimitError     ErrorType = "rate_limit_error"
)

// SimError is the gateway's standardized error shape.
type SimError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Code       string                 `json:"code,omitempty"`
	StatusCode int                    `json:"status_code"`
	Timestamp  time.Time              `json:"timestamp"`
	RequestID  string                 `json:"request_id,omitempty"`
	Cause      error                  `json:"-"`
}

func (e *SimError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Type, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *SimError) Unwrap() error { return e.Cause }

func (e *SimError) Is(target error) bool {
	t, ok := target.(*SimError)
	return ok && e.Type == t.Type
}

// WithDetail attaches a structured field, returned for chaining.
func (e *SimError) WithDetail(key string, value interface{}) *SimError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithRequestID sets the request id a handler read off its context.
func (e *SimError) WithRequestID(id string) *SimError {
	e.RequestID = id
	return e
}

// NewError builds a SimError with its default status code for typ.
func NewError(typ ErrorType, message string) *SimError {
	return &SimError{
		Type:       typ,
		Message:    message,
		StatusCode: defaultStatusCode(typ),
		Timestamp:  time.Now(),
	}
}

func NewValidationError(message string) *SimError   { return NewError(ValidationError, message) }
func NewNotFoundError(resource string) *SimError {
	return NewError(NotFoundError, fmt.Sprintf("%s not found", resource))
}
func NewUnauthorizedError(message string) *SimError { return NewError(UnauthorizedError, message) }
func NewForbiddenError(message string) *SimError    { return NewError(ForbiddenError, message) }
func NewConflictError(message string) *SimError     { return NewError(ConflictError, message) }
func NewInternalError(message string) *SimError      { return NewError(InternalError, message) }
func NewDatabaseError(operation, message string) *SimError {
	return NewError(DatabaseError, fmt.Sprintf("database %s failed: %s", operation, message)).
		WithDetail("operation", operation)
}
func NewRateLimitError(message string) *SimError { return NewError(RateLimitError, message) }

// NewExternalError builds an ExternalError naming the failing service,
// the cache layer's constructor for every Redis client-call failure.
func NewExternalError(service, message string) *SimError {
	return NewError(ExternalError, fmt.Sprintf("%s: %s", service, message)).WithDetail("service", service)
}

// WrapError attaches cause to a fresh SimError of typ, or returns nil
// if cause is nil so callers can write `if err := WrapError(...); err
// != nil` without a separate nil check.
func WrapError(cause error, typ ErrorType, message string) *SimError {
	if cause == nil {
		return nil
	}
	err := NewError(typ, message)
	err.Cause = cause
	if existing, ok := cause.(*SimError); ok && err.RequestID == "" {
		err.RequestID = existing.RequestID
	}
	return err
}

func defaultStatusCode(typ ErrorType) int {
	switch typ {
	case ValidationError:
		return http.StatusBadRequest
	case NotFoundError:
		return http.StatusNotFound
	case UnauthorizedError:
		return http.StatusUnauthorized
	case ForbiddenError:
		return http.StatusForbidden
	case ConflictError:
		return http.StatusConflict
	case RateLimitError:
		return http.StatusTooManyRequests
	case ExternalError:
		return http.StatusBadGateway
	case DatabaseError, InternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// LogError logs err at a level keyed off its SimError type (client
// errors at Info, auth/conflict at Warn, everything else at Error),
// attaching its structured fields alongside context.
func LogError(logger *zap.Logger, err error, context ...zap.Field) {
	if err == nil {
		return
	}
	fields := append(context, zap.Error(err))

	simErr, ok := err.(*SimError)
	if !ok {
		logger.Error("unhandled error", fields...)
		return
	}

	fields = append(fields,
		zap.String("error_type", string(simErr.Type)),
		zap.Int("status_code", simErr.StatusCode),
		zap.String("request_id", simErr.RequestID),
	)
	for key, value := range simErr.Details {
		fields = append(fields, zap.Any("detail_"+key, value))
	}

	switch simErr.Type {
	case ValidationError, NotFoundError:
		logger.Info("client error", fields...)
	case UnauthorizedError, ForbiddenError, ConflictError, RateLimitError:
		logger.Warn("request rejected", fields...)
	case ExternalError:
		logger.Error("external service error", fields...)
	default:
		logger.Error("internal error", fields...)
	}
}

// errorResponse is the JSON body WriteError serializes.
type errorResponse struct {
	Error *SimError `json:"error"`
}

// WriteError logs err and writes its JSON representation with the
// matching HTTP status. A non-SimError is wrapped as InternalError
// first so the response body never leaks a bare Go error string to a
// client.
func WriteError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	simErr, ok := err.(*SimError)
	if !ok {
		simErr = WrapError(err, InternalError, "an internal error occurred")
	}
	if simErr.RequestID == "" {
		simErr.RequestID = r.Header.Get("X-Request-ID")
	}

	LogError(logger, simErr,
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("remote_addr", r.RemoteAddr),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(simErr.StatusCode)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: simErr})
}

// RequireNotEmpty returns a ValidationError if value is empty.
func RequireNotEmpty(value, fieldName string) error {
	if value == "" {
		return NewValidationError(fmt.Sprintf("%s is required", fieldName))
	}
	return nil
}
