package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/services"
)

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response. A nil body writes the status only.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	payload, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Failed to encode response", "component", "http", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(payload)
}

type errorBody struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields,omitempty"`
}

// ErrorResponse creates a JSON error response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(errorBody{Error: message})
}

// BadRequestError responds 400 with message.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// NotFoundError responds 404 with message.
func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// ValidationErrorResponse reports every field problem at once.
func ValidationErrorResponse(verr *core.ValidationError) *ResponseBuilder {
	return NewResponse().
		Status(http.StatusUnprocessableEntity).
		JSON(errorBody{Error: "validation failed", Fields: verr.Fields})
}

// ServiceErrorResponse maps a service error to its HTTP form. Unknown errors
// become a 500 without leaking the cause.
func ServiceErrorResponse(err error) *ResponseBuilder {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		return ValidationErrorResponse(verr)
	case errors.Is(err, auth.ErrInvalidCredentials):
		return ErrorResponse(http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
	case errors.Is(err, core.ErrUnauthorized):
		return ErrorResponse(http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError("transaction not found")
	case errors.Is(err, core.ErrConflict):
		return ErrorResponse(http.StatusConflict, "already exists")
	case errors.Is(err, services.ErrImportTooLarge):
		return ErrorResponse(http.StatusRequestEntityTooLarge, services.ErrImportTooLarge.Error())
	case errors.Is(err, core.ErrInvalidDate):
		return ErrorResponse(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, errTimeout):
		return ErrorResponse(http.StatusGatewayTimeout, "storage timeout")
	default:
		return InternalServerError("internal error")
	}
}
