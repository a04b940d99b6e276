// Package subscriptions handles newsletter signups.
package subscriptions

import (
	"context"
	"errors"

	"github.com/bissquit/newsletter/internal/domain"
)

// Repository errors.
var (
	ErrAlreadySubscribed  = errors.New("email is already subscribed")
	ErrSubscriberNotFound = errors.New("subscriber not found")
)

// Repository defines the interface for subscriber storage.
type Repository interface {
	Create(ctx context.Context, subscriber domain.NewSubscriber) (*domain.Subscriber, error)
	GetByEmail(ctx context.Context, email domain.SubscriberEmail) (*domain.Subscriber, error)
}
