// Package postgres provides PostgreSQL implementation of subscriptions repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/newsletter/internal/domain"
	"github.com/bissquit/newsletter/internal/subscriptions"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Repository implements subscriptions.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a new subscriber.
func (r *Repository) Create(ctx context.Context, sub domain.NewSubscriber) (*domain.Subscriber, error) {
	subscriber := &domain.Subscriber{
		ID:           uuid.NewString(),
		Email:        sub.Email.String(),
		Name:         sub.Name.String(),
		Status:       domain.SubscriptionStatusPending,
		SubscribedAt: time.Now().UTC(),
	}

	query := `
		INSERT INTO subscriptions (id, email, name, status, subscribed_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING subscribed_at
	`
	err := r.db.QueryRow(ctx, query,
		subscriber.ID,
		subscriber.Email,
		subscriber.Name,
		subscriber.Status,
		subscriber.SubscribedAt,
	).Scan(&subscriber.SubscribedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, subscriptions.ErrAlreadySubscribed
		}
		return nil, fmt.Errorf("insert subscriber: %w", err)
	}

	return subscriber, nil
}

// GetByEmail retrieves a subscriber by email address.
func (r *Repository) GetByEmail(ctx context.Context, email domain.SubscriberEmail) (*domain.Subscriber, error) {
	query := `
		SELECT id, email, name, status, subscribed_at
		FROM subscriptions
		WHERE email = $1
	`
	var subscriber domain.Subscriber
	err := r.db.QueryRow(ctx, query, email.String()).Scan(
		&subscriber.ID,
		&subscriber.Email,
		&subscriber.Name,
		&subscriber.Status,
		&subscriber.SubscribedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, subscriptions.ErrSubscriberNotFound
		}
		return nil, fmt.Errorf("get subscriber: %w", err)
	}
	return &subscriber, nil
}
