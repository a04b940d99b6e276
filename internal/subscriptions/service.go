package subscriptions

import (
	"context"
	"fmt"
	"html"

	"github.com/bissquit/newsletter/internal/domain"
	"github.com/bissquit/newsletter/internal/pkg/ctxlog"
	"github.com/bissquit/newsletter/internal/pkg/metrics"
)

const welcomeSubject = "Welcome to our newsletter!"

// EmailSender delivers a single transactional email.
type EmailSender interface {
	SendEmail(ctx context.Context, recipient domain.SubscriberEmail, subject, htmlBody, textBody string) error
}

// Service implements signup logic.
type Service struct {
	repo    Repository
	sender  EmailSender
	baseURL string
}

// NewService creates a new subscriptions service. sender may be nil, in which
// case no welcome email is sent.
func NewService(repo Repository, sender EmailSender, baseURL string) *Service {
	return &Service{
		repo:    repo,
		sender:  sender,
		baseURL: baseURL,
	}
}

// SubscribeResult is the outcome of a signup.
type SubscribeResult struct {
	Subscriber *domain.Subscriber
	EmailSent  bool
}

// Subscribe stores the subscriber and then sends a welcome email.
// A delivery failure does not fail the signup: it is logged and reported
// through EmailSent.
func (s *Service) Subscribe(ctx context.Context, sub domain.NewSubscriber) (*SubscribeResult, error) {
	stored, err := s.repo.Create(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("store subscriber: %w", err)
	}
	metrics.SubscriptionsCreated.Inc()

	ctx = ctxlog.With(ctx, "subscriber_id", stored.ID)
	logger := ctxlog.FromContext(ctx)
	logger.Info("subscriber stored")

	result := &SubscribeResult{Subscriber: stored}
	if s.sender == nil {
		return result, nil
	}

	htmlBody, textBody := welcomeBodies(sub.Name, s.baseURL)
	if err := s.sender.SendEmail(ctx, sub.Email, welcomeSubject, htmlBody, textBody); err != nil {
		logger.Warn("failed to send welcome email", "error", err)
		return result, nil
	}

	result.EmailSent = true
	return result, nil
}

func welcomeBodies(name domain.SubscriberName, baseURL string) (htmlBody, textBody string) {
	htmlBody = fmt.Sprintf(
		"<p>Hi %s,</p><p>Thanks for subscribing to our newsletter.</p><p><a href=\"%s\">%s</a></p>",
		html.EscapeString(name.String()), html.EscapeString(baseURL), html.EscapeString(baseURL),
	)
	textBody = fmt.Sprintf("Hi %s,\n\nThanks for subscribing to our newsletter.\n%s\n", name.String(), baseURL)
	return htmlBody, textBody
}
