// Package secret provides a string wrapper that hides its value from formatting,
// serialization and structured logging.
package secret

import (
	"encoding/json"
	"log/slog"
)

const redacted = "[REDACTED]"

// Secret holds a sensitive string. Use Expose to read it.
type Secret struct {
	value string
}

// New wraps value.
func New(value string) Secret {
	return Secret{value: value}
}

// Expose returns the raw value. Never pass the result to a logger.
func (s Secret) Expose() string {
	return s.value
}

// IsZero reports whether the secret is empty.
func (s Secret) IsZero() bool {
	return s.value == ""
}

func (s Secret) String() string {
	return redacted
}

// GoString keeps the value out of %#v output.
func (s Secret) GoString() string {
	return "secret.Secret(" + redacted + ")"
}

// LogValue implements slog.LogValuer.
func (s Secret) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

// MarshalJSON implements json.Marshaler.
func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(redacted)
}

// MarshalText implements encoding.TextMarshaler.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so config decoders can
// fill a Secret from a plain string.
func (s *Secret) UnmarshalText(text []byte) error {
	s.value = string(text)
	return nil
}
