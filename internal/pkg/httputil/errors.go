package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/bissquit/newsletter/internal/domain"
	"github.com/bissquit/newsletter/internal/pkg/ctxlog"
)

// ErrorMapping defines how a domain error maps to an HTTP response.
type ErrorMapping struct {
	Error   error
	Status  int
	Message string // if empty, uses err.Error()
}

// HandleError maps err to an HTTP response. Domain validation errors always
// map to 400; other errors go through mappings, and anything unmatched is
// logged and returned as 500.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		ValidationError(w, err)
		return
	}

	for _, m := range mappings {
		if errors.Is(err, m.Error) {
			msg := m.Message
			if msg == "" {
				msg = err.Error()
			}
			Error(w, m.Status, msg)
			return
		}
	}
	ctxlog.FromContext(ctx).Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal error")
}
