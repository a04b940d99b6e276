// Package httputil provides HTTP response helpers and middleware.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bissquit/newsletter/internal/domain"
)

// JSON writes data as a JSON response body.
func JSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// Text writes a plain text response.
func Text(w http.ResponseWriter, statusCode int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(text)); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// Success writes a JSON response with {"data": ...} envelope.
func Success(w http.ResponseWriter, status int, data any) {
	JSON(w, status, map[string]any{"data": data})
}

// Error writes a JSON response with {"error": {"message": ...}} envelope.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]any{
		"error": map[string]string{"message": message},
	})
}

// ValidationError writes a 400 response. Rejected domain values are echoed
// back as field details.
func ValidationError(w http.ResponseWriter, err error) {
	errBody := map[string]any{"message": "validation error"}

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		errBody["details"] = []map[string]string{{
			"field":   validationErr.Field,
			"value":   validationErr.Value,
			"message": validationErr.Error(),
		}}
	} else {
		errBody["details"] = err.Error()
	}

	JSON(w, http.StatusBadRequest, map[string]any{"error": errBody})
}
