// Package email provides a client for the transactional email delivery API.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bissquit/newsletter/internal/domain"
	"github.com/bissquit/newsletter/internal/pkg/ctxlog"
	"github.com/bissquit/newsletter/internal/pkg/secret"
)

const (
	defaultTimeout = 10 * time.Second

	// TokenHeader carries the server API token.
	TokenHeader = "X-Postmark-Server-Token"

	maxErrorBodyBytes = 512
)

// Config holds email client configuration.
type Config struct {
	BaseURL            string
	Sender             domain.SubscriberEmail
	AuthorizationToken secret.Secret
	Timeout            time.Duration
}

// Client sends email through the delivery API. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	sender     domain.SubscriberEmail
	token      secret.Secret
}

// NewClient creates a new email client. A zero Timeout uses a 10s default.
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	slog.Info("email client configured",
		"base_url", config.BaseURL,
		"sender", config.Sender.String(),
		"timeout", config.Timeout,
	)

	return &Client{
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		sender:  config.Sender,
		token:   config.AuthorizationToken,
	}
}

// sendEmailRequest field names follow the provider's casing.
type sendEmailRequest struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendEmail issues a single POST to {base_url}/email. It does not retry.
// Transport failures and non-2xx responses are returned as *DeliveryError.
func (c *Client) SendEmail(ctx context.Context, recipient domain.SubscriberEmail, subject, htmlBody, textBody string) error {
	start := time.Now()
	err := c.send(ctx, recipient, subject, htmlBody, textBody)
	recordSendDuration(time.Since(start))

	if err != nil {
		recordSent(statusFailed)
		ctxlog.FromContext(ctx).Warn("email delivery failed", "error", err)
		return err
	}

	recordSent(statusSent)
	ctxlog.FromContext(ctx).Debug("email sent", "subject", subject)
	return nil
}

func (c *Client) send(ctx context.Context, recipient domain.SubscriberEmail, subject, htmlBody, textBody string) error {
	body, err := json.Marshal(sendEmailRequest{
		From:     c.sender.String(),
		To:       recipient.String(),
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/email", bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Message: "create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(TokenHeader, c.token.Expose())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &DeliveryError{Message: "send request", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	return c.handleResponse(resp)
}

func (c *Client) handleResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return &DeliveryError{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
}

// ErrDelivery matches every *DeliveryError via errors.Is.
var ErrDelivery = errors.New("email delivery failed")

// DeliveryError reports a request that could not be completed or was
// rejected by the provider.
type DeliveryError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *DeliveryError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("email delivery: %s: %v", e.Message, e.Err)
	case e.StatusCode > 0:
		return fmt.Sprintf("email delivery: status %d: %s", e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("email delivery: %s", e.Message)
	}
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Is reports whether target is ErrDelivery.
func (e *DeliveryError) Is(target error) bool { return target == ErrDelivery }
