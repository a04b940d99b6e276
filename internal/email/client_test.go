package email

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bissquit/newsletter/internal/domain"
	"github.com/bissquit/newsletter/internal/pkg/ctxlog"
	"github.com/bissquit/newsletter/internal/pkg/secret"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEmail(t *testing.T, raw string) domain.SubscriberEmail {
	t.Helper()
	e, err := domain.ParseSubscriberEmail(raw)
	require.NoError(t, err)
	return e
}

func newTestClient(t *testing.T, baseURL string, timeout time.Duration) *Client {
	t.Helper()
	return NewClient(Config{
		BaseURL:            baseURL,
		Sender:             mustEmail(t, "newsletter@example.com"),
		AuthorizationToken: secret.New("server-token"),
		Timeout:            timeout,
	})
}

func TestNewClient_Defaults(t *testing.T) {
	client := newTestClient(t, "http://localhost:8025/", 0)

	assert.Equal(t, defaultTimeout, client.httpClient.Timeout)
	assert.Equal(t, "http://localhost:8025", client.baseURL)
}

func TestNewClient_AppliesTimeout(t *testing.T) {
	client := newTestClient(t, "http://localhost:8025", 1500*time.Millisecond)
	assert.Equal(t, 1500*time.Millisecond, client.httpClient.Timeout)
}

func TestClient_SendEmail_SendsExpectedRequest(t *testing.T) {
	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)

		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/email", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "server-token", r.Header.Get(TokenHeader))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		for _, field := range []string{"From", "To", "Subject", "HtmlBody", "TextBody"} {
			assert.Contains(t, body, field)
		}
		assert.Equal(t, "newsletter@example.com", body["From"])
		assert.Equal(t, "ursula@example.com", body["To"])
		assert.Equal(t, "Welcome!", body["Subject"])
		assert.Equal(t, "<p>Hello</p>", body["HtmlBody"])
		assert.Equal(t, "Hello", body["TextBody"])

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, time.Second)
	before := testutil.ToFloat64(emailsSent.WithLabelValues(statusSent))

	err := client.SendEmail(context.Background(), mustEmail(t, "ursula@example.com"), "Welcome!", "<p>Hello</p>", "Hello")

	require.NoError(t, err)
	assert.Equal(t, int32(1), requests.Load())
	assert.Equal(t, before+1, testutil.ToFloat64(emailsSent.WithLabelValues(statusSent)))
}

func TestClient_SendEmail_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	unreachable := server.URL
	server.Close()

	client := newTestClient(t, unreachable, time.Second)

	err := client.SendEmail(context.Background(), mustEmail(t, "ursula@example.com"), "subject", "<p>html</p>", "text")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDelivery)

	var deliveryErr *DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Zero(t, deliveryErr.StatusCode)
	assert.Error(t, deliveryErr.Err)
}

func TestClient_SendEmail_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(t, server.URL, 50*time.Millisecond)

	start := time.Now()
	err := client.SendEmail(context.Background(), mustEmail(t, "ursula@example.com"), "subject", "<p>html</p>", "text")

	require.ErrorIs(t, err, ErrDelivery)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClient_SendEmail_ErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "unprocessable", status: http.StatusUnprocessableEntity, body: `{"ErrorCode":300,"Message":"Invalid email request"}`},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"ErrorCode":10,"Message":"Bad or missing API token"}`},
		{name: "server error", status: http.StatusInternalServerError, body: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL, time.Second)

			err := client.SendEmail(context.Background(), mustEmail(t, "ursula@example.com"), "subject", "<p>html</p>", "text")

			var deliveryErr *DeliveryError
			require.ErrorAs(t, err, &deliveryErr)
			assert.Equal(t, tt.status, deliveryErr.StatusCode)
			assert.Equal(t, tt.body, deliveryErr.Message)
			assert.NotContains(t, err.Error(), "server-token")
		})
	}
}

func TestClient_SendEmail_LogsThroughContextLogger(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil)).With("request_id", "req-42")
	ctx := ctxlog.WithLogger(context.Background(), logger)

	client := newTestClient(t, server.URL, time.Second)
	err := client.SendEmail(ctx, mustEmail(t, "ursula@example.com"), "subject", "<p>html</p>", "text")
	require.ErrorIs(t, err, ErrDelivery)

	out := buf.String()
	assert.Contains(t, out, `"msg":"email delivery failed"`)
	assert.Contains(t, out, `"request_id":"req-42"`)
	assert.NotContains(t, out, "server-token")
}

func TestClient_SendEmail_Concurrent(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, time.Second)
	recipient := mustEmail(t, "ursula@example.com")

	const n = 20
	errs := make(chan error, n)
	for range n {
		go func() {
			errs <- client.SendEmail(context.Background(), recipient, "subject", "<p>html</p>", "text")
		}()
	}
	for range n {
		assert.NoError(t, <-errs)
	}
	assert.Equal(t, int32(n), requests.Load())
}

func TestDeliveryError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *DeliveryError
		want string
	}{
		{
			name: "transport",
			err:  &DeliveryError{Message: "send request", Err: io.ErrUnexpectedEOF},
			want: "email delivery: send request: unexpected EOF",
		},
		{
			name: "status",
			err:  &DeliveryError{StatusCode: 422, Message: "invalid"},
			want: "email delivery: status 422: invalid",
		},
		{
			name: "message only",
			err:  &DeliveryError{Message: "create request"},
			want: "email delivery: create request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}
