package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// MaxRetries is the maximum number of retry attempts for transient errors
	MaxRetries = 3

	// DefaultBackoff is the initial backoff duration for exponential backoff
	DefaultBackoff = 500 * time.Millisecond
)

// SessionContext supplies the bearer token for outgoing requests and
// receives session-boundary events. It replaces ambient token storage so
// the transport stays testable without a browser-style global.
type SessionContext interface {
	// Token returns the current bearer token, or "" for anonymous requests.
	Token() string
	// HandleUnauthorized is called once per 401 response. Implementations
	// clear the stored token/user and redirect to login.
	HandleUnauthorized()
}

type ctxKey struct{}

// credentialExchangeKey marks requests whose 401 is a normal outcome (wrong
// credentials on login), not an expired session.
var credentialExchangeKey ctxKey

// WithCredentialExchange marks the request context as a credential exchange:
// a 401 response is returned to the caller without firing the session's
// unauthorized hook. A failed login must not tear down an existing session.
func WithCredentialExchange(ctx context.Context) context.Context {
	return context.WithValue(ctx, credentialExchangeKey, true)
}

func isCredentialExchange(ctx context.Context) bool {
	v, _ := ctx.Value(credentialExchangeKey).(bool)
	return v
}

// Transport wraps http.Client with authentication and retry logic.
// Automatically injects:
// - Authorization: Bearer <token> (when the session holds one)
// - X-Correlation-ID: <uuid>
//
// Retry policy (bounded at MaxRetries attempts, exponential backoff):
// - network/transport failures: retried
// - 429 Too Many Requests: retried, respecting Retry-After
// - 5xx: retried
// - 404: never retried (terminal not-found, not a transient fault)
// - 401: never retried; treated as a session boundary — the session's
//   HandleUnauthorized hook fires and the response propagates to the caller.
//   Requests marked WithCredentialExchange skip the hook: their 401 means
//   rejected credentials, not an expired session.
type Transport struct {
	baseURL    string
	httpClient *http.Client
	session    SessionContext // nil for always-anonymous clients
}

// NewTransport creates an authenticated transport for the given API base URL.
// Pass nil session for anonymous-only access to public endpoints.
func NewTransport(baseURL string, session SessionContext) *Transport {
	return &Transport{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		session:    session,
	}
}

// BaseURL returns the API base URL the transport targets.
func (t *Transport) BaseURL() string {
	return t.baseURL
}

// Do executes an HTTP request with auth header injection and retry logic.
// This is the main entry point for all HTTP requests.
func (t *Transport) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	correlationID := uuid.New().String()

	logger := log.With().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("correlationId", correlationID).
		Logger()

	return t.doWithRetry(ctx, req, &logger, correlationID, 0)
}

// doWithRetry handles bounded retries for transient failures
func (t *Transport) doWithRetry(ctx context.Context, req *http.Request, logger *zerolog.Logger, correlationID string, retryCount int) (*http.Response, error) {
	// Clone request (body may need to be re-sent on retry)
	reqClone, err := cloneRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to clone request: %w", err)
	}

	reqClone.Header.Set("X-Correlation-ID", correlationID)

	// Inject bearer token fresh on each attempt; absence of a token is a
	// valid anonymous state for public list/detail endpoints
	if t.session != nil {
		if token := t.session.Token(); token != "" {
			reqClone.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
			logger.Debug().Msg("injected bearer token")
		}
	}

	start := time.Now()
	resp, err := t.httpClient.Do(reqClone)
	duration := time.Since(start)

	if err != nil {
		logger.Warn().Err(err).Dur("duration", duration).Msg("HTTP request failed")
		return t.retryTransient(ctx, req, logger, correlationID, retryCount, 0, err)
	}

	logger.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Int("retryCount", retryCount).
		Msg("HTTP request completed")

	switch {
	case resp.StatusCode == http.StatusUnauthorized: // 401
		if isCredentialExchange(ctx) {
			// Rejected login attempt, not a session expiry
			return resp, nil
		}
		return t.handleUnauthorized(resp, logger)

	case resp.StatusCode == http.StatusTooManyRequests: // 429
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		resp.Body.Close()
		return t.retryTransient(ctx, req, logger, correlationID, retryCount, retryAfter,
			&APIError{Status: http.StatusTooManyRequests, Message: "rate limited"})

	case resp.StatusCode >= 500: // server errors are transient
		status := resp.StatusCode
		resp.Body.Close()
		return t.retryTransient(ctx, req, logger, correlationID, retryCount, 0,
			&APIError{Status: status})

	default:
		// Success or non-retryable client error (404 included) - return as-is
		return resp, nil
	}
}

// handleUnauthorized treats 401 as a session-boundary event: the session's
// hook fires (clearing token/user) and the response returns to the caller
// unretried.
func (t *Transport) handleUnauthorized(resp *http.Response, logger *zerolog.Logger) (*http.Response, error) {
	logger.Warn().Msg("401 Unauthorized - invalidating session")
	if t.session != nil {
		t.session.HandleUnauthorized()
	}
	return resp, nil
}

// retryTransient retries a failed attempt after a backoff, or gives up once
// the retry budget is spent.
func (t *Transport) retryTransient(ctx context.Context, req *http.Request, logger *zerolog.Logger, correlationID string, retryCount int, wait time.Duration, cause error) (*http.Response, error) {
	if retryCount >= MaxRetries-1 {
		logger.Warn().Int("attempts", retryCount+1).Msg("retry budget exhausted")
		return nil, fmt.Errorf("request failed after %d attempts: %w", retryCount+1, cause)
	}

	// Exponential backoff unless the server told us how long to wait
	if wait == 0 {
		wait = DefaultBackoff * time.Duration(1<<retryCount)
	}

	logger.Debug().
		Dur("backoff", wait).
		Int("retryCount", retryCount).
		Msg("retrying after transient failure")

	select {
	case <-time.After(wait):
		return t.doWithRetry(ctx, req, logger, correlationID, retryCount+1)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// cloneRequest creates a copy of an HTTP request for retry
// Preserves the request body by reading and restoring it
func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		// Restore original request body
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}

	reqClone, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}

	// Copy headers (auth is re-injected per attempt)
	for k, v := range req.Header {
		if k == "Authorization" {
			continue
		}
		reqClone.Header[k] = v
	}

	return reqClone, nil
}

// parseRetryAfter parses the Retry-After header
// Supports both integer seconds and HTTP-date format
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(value); err == nil {
		duration := time.Until(t)
		if duration > 0 {
			return duration
		}
	}

	return 0
}
