package subscriptions

import (
	"net/http"
	"time"

	"github.com/bissquit/newsletter/internal/domain"
	"github.com/bissquit/newsletter/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

// Handler handles HTTP requests for subscriptions.
type Handler struct {
	service *Service
}

// NewHandler creates a new subscriptions handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers subscription routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/subscriptions", h.Subscribe)
}

// SubscriberResponse is the JSON view of a stored subscriber.
type SubscriberResponse struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Status       string    `json:"status"`
	SubscribedAt time.Time `json:"subscribed_at"`
	EmailSent    bool      `json:"email_sent"`
}

var subscribeErrors = []httputil.ErrorMapping{
	{Error: ErrAlreadySubscribed, Status: http.StatusConflict},
}

// Subscribe handles POST /subscriptions with form fields name and email.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid form body")
		return
	}

	newSubscriber, err := domain.NewSubscriberFromForm(r.PostForm.Get("email"), r.PostForm.Get("name"))
	if err != nil {
		httputil.ValidationError(w, err)
		return
	}

	result, err := h.service.Subscribe(r.Context(), newSubscriber)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, subscribeErrors)
		return
	}

	httputil.Success(w, http.StatusOK, SubscriberResponse{
		ID:           result.Subscriber.ID,
		Email:        result.Subscriber.Email,
		Name:         result.Subscriber.Name,
		Status:       string(result.Subscriber.Status),
		SubscribedAt: result.Subscriber.SubscribedAt,
		EmailSent:    result.EmailSent,
	})
}
