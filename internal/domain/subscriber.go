package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rivo/uniseg"
)

// MaxSubscriberNameLength is the maximum name length in grapheme clusters.
const MaxSubscriberNameLength = 256

const forbiddenNameCharacters = `/()"<>\{}`

// Validation errors.
var (
	ErrInvalidSubscriberName  = errors.New("invalid subscriber name")
	ErrInvalidSubscriberEmail = errors.New("invalid subscriber email")
)

// ValidationError reports a rejected input value.
type ValidationError struct {
	Field string
	Value string
	kind  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%q is not a valid subscriber %s", e.Value, e.Field)
}

// Is reports whether target is the sentinel error for the rejected field.
func (e *ValidationError) Is(target error) bool {
	return target == e.kind
}

// emailValidator is safe for concurrent use once built.
var emailValidator = validator.New()

// SubscriberName is a name that passed ParseSubscriberName.
// The zero value is not a valid name.
type SubscriberName struct {
	value string
}

// ParseSubscriberName validates raw and wraps it.
// A name must be non-blank, at most MaxSubscriberNameLength user-perceived
// characters long and free of the characters / ( ) " < > \ { }.
func ParseSubscriberName(raw string) (SubscriberName, error) {
	isBlank := strings.TrimSpace(raw) == ""
	isTooLong := uniseg.GraphemeClusterCount(raw) > MaxSubscriberNameLength
	hasForbidden := strings.ContainsAny(raw, forbiddenNameCharacters)

	if isBlank || isTooLong || hasForbidden {
		return SubscriberName{}, &ValidationError{Field: "name", Value: raw, kind: ErrInvalidSubscriberName}
	}
	return SubscriberName{value: raw}, nil
}

func (n SubscriberName) String() string {
	return n.value
}

// SubscriberEmail is an address that passed ParseSubscriberEmail.
type SubscriberEmail struct {
	value string
}

// ParseSubscriberEmail validates raw as an email address (local@domain.tld).
func ParseSubscriberEmail(raw string) (SubscriberEmail, error) {
	if err := emailValidator.Var(raw, "required,email"); err != nil {
		return SubscriberEmail{}, &ValidationError{Field: "email", Value: raw, kind: ErrInvalidSubscriberEmail}
	}
	return SubscriberEmail{value: raw}, nil
}

func (e SubscriberEmail) String() string {
	return e.value
}

// NewSubscriber is a signup request whose fields are already validated.
type NewSubscriber struct {
	Email SubscriberEmail
	Name  SubscriberName
}

// NewSubscriberFromForm parses untrusted form values into a NewSubscriber.
// The name is checked first, so a request with both fields invalid reports the name.
func NewSubscriberFromForm(email, name string) (NewSubscriber, error) {
	parsedName, err := ParseSubscriberName(name)
	if err != nil {
		return NewSubscriber{}, err
	}
	parsedEmail, err := ParseSubscriberEmail(email)
	if err != nil {
		return NewSubscriber{}, err
	}
	return NewSubscriber{Email: parsedEmail, Name: parsedName}, nil
}

// SubscriptionStatus is the lifecycle state of a stored subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending_confirmation"
	SubscriptionStatusConfirmed SubscriptionStatus = "confirmed"
)

// Subscriber is a stored subscription.
type Subscriber struct {
	ID           string
	Email        string
	Name         string
	Status       SubscriptionStatus
	SubscribedAt time.Time
}
