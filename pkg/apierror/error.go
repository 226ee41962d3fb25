package apierror

import (
	"encoding/json"
	"net/http"
)

// Error represents a structured API error response.
//
// Upstream outcomes the browser client branches on (rejected login,
// maintenance) are written with status 200 and success=false.
type Error struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"code"`
	Message     string `json:"error"`
	Maintenance bool   `json:"maintenance,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Fields returns the flat error envelope.
func (e *Error) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"success": false,
		"error":   e.Message,
		"code":    e.Code,
	}
	if e.Maintenance {
		fields["maintenance"] = true
	}
	return fields
}

// ToJSON converts the error to JSON bytes.
func (e *Error) ToJSON() []byte {
	data, _ := json.Marshal(e.Fields())
	return data
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *Error {
	return &Error{
		StatusCode: http.StatusBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
	}
}

// Unauthorized creates a 401 Unauthorized error.
func Unauthorized(message string) *Error {
	if message == "" {
		message = "未认证，请先登录"
	}
	return &Error{
		StatusCode: http.StatusUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
	}
}

// Forbidden creates a 403 Forbidden error.
func Forbidden(message string) *Error {
	if message == "" {
		message = "Access denied"
	}
	return &Error{
		StatusCode: http.StatusForbidden,
		Code:       "FORBIDDEN",
		Message:    message,
	}
}

// NotFound creates a 404 Not Found error.
func NotFound(message string) *Error {
	if message == "" {
		message = "Resource not found"
	}
	return &Error{
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    message,
	}
}

// MethodNotAllowed creates a 405 error for a known path with the wrong method.
func MethodNotAllowed(message string) *Error {
	if message == "" {
		message = "请求方法不支持"
	}
	return &Error{
		StatusCode: http.StatusMethodNotAllowed,
		Code:       "METHOD_NOT_ALLOWED",
		Message:    message,
	}
}

// UpstreamRejected reports a refusal by the identity provider or game
// backend (bad credentials, expired cookie, invalid code).
func UpstreamRejected(message string) *Error {
	return &Error{
		StatusCode: http.StatusOK,
		Code:       "UPSTREAM_REJECTED",
		Message:    message,
	}
}

// UpstreamUnavailable reports a failed or malformed upstream call.
func UpstreamUnavailable(message string) *Error {
	return &Error{
		StatusCode: http.StatusOK,
		Code:       "UPSTREAM_UNAVAILABLE",
		Message:    message,
	}
}

// Maintenance reports scheduled downtime or rate limiting upstream.
func Maintenance(message string) *Error {
	if message == "" {
		message = "服务器维护中，请稍后再试"
	}
	return &Error{
		StatusCode:  http.StatusOK,
		Code:        "MAINTENANCE",
		Message:     message,
		Maintenance: true,
	}
}

// InternalError creates a 500 Internal Server Error.
func InternalError(message string) *Error {
	if message == "" {
		message = "服务器错误"
	}
	return &Error{
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
	}
}

// ServiceUnavailable creates a 503 Service Unavailable error.
func ServiceUnavailable(message string) *Error {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	return &Error{
		StatusCode: http.StatusServiceUnavailable,
		Code:       "SERVICE_UNAVAILABLE",
		Message:    message,
	}
}
