package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"valshop-api/pkg/apierror"
)

// Fields is a flat response body. The browser client reads top-level keys,
// so payloads are not wrapped in a data envelope.
type Fields map[string]interface{}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// OK sends a 200 response with success=true merged into fields.
func OK(w http.ResponseWriter, fields Fields) {
	body := make(Fields, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["success"] = true
	JSON(w, http.StatusOK, body)
}

// Fail sends an in-band failure: status 200, success=false and extra fields.
func Fail(w http.ResponseWriter, fields Fields) {
	body := make(Fields, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["success"] = false
	JSON(w, http.StatusOK, body)
}

// Error sends an error response.
func Error(w http.ResponseWriter, err error) {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(apiErr.StatusCode)
		_, _ = w.Write(apiErr.ToJSON())
		return
	}

	// Default to internal server error
	internalErr := apierror.InternalError("")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(internalErr.StatusCode)
	_, _ = w.Write(internalErr.ToJSON())
}

// ErrorWith sends apiErr's envelope with extra fields alongside it.
func ErrorWith(w http.ResponseWriter, apiErr *apierror.Error, fields Fields) {
	body := make(Fields, len(fields)+4)
	for k, v := range fields {
		body[k] = v
	}
	for k, v := range apiErr.Fields() {
		body[k] = v
	}
	JSON(w, apiErr.StatusCode, body)
}
