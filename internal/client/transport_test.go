package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// mockSession is a scriptable SessionContext.
type mockSession struct {
	mu                sync.Mutex
	token             string
	unauthorizedCalls int
}

func (m *mockSession) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *mockSession) HandleUnauthorized() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.unauthorizedCalls++
}

func TestTransport_HeaderInjection(t *testing.T) {
	var capturedHeaders http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedHeaders = r.Header
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sess := &mockSession{token: "test-token-123"}
	transport := NewTransport(server.URL, sess)

	req, _ := http.NewRequest("GET", server.URL+"/test", nil)
	resp, err := transport.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if auth := capturedHeaders.Get("Authorization"); auth != "Bearer test-token-123" {
		t.Errorf("unexpected Authorization header: %s", auth)
	}
	if corr := capturedHeaders.Get("X-Correlation-ID"); corr == "" {
		t.Error("missing X-Correlation-ID header")
	}
}

func TestTransport_AnonymousRequest(t *testing.T) {
	var capturedHeaders http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedHeaders = r.Header
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	// Empty token: anonymous access to public endpoints is valid
	transport := NewTransport(server.URL, &mockSession{})

	req, _ := http.NewRequest("GET", server.URL+"/test", nil)
	resp, err := transport.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if auth := capturedHeaders.Get("Authorization"); auth != "" {
		t.Errorf("unexpected Authorization header on anonymous request: %s", auth)
	}
}

func TestTransport_RetryOn5xx(t *testing.T) {
	callCount := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		if callCount < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	transport := NewTransport(server.URL, &mockSession{})

	req, _ := http.NewRequest("GET", server.URL+"/test", nil)
	resp, err := transport.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 after retries, got %d", resp.StatusCode)
	}
	if callCount != 3 {
		t.Errorf("expected 3 attempts, got %d", callCount)
	}
}

func TestTransport_RetryBudgetExhausted(t *testing.T) {
	callCount := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	transport := NewTransport(server.URL, &mockSession{})

	req, _ := http.NewRequest("GET", server.URL+"/test", nil)
	_, err := transport.Do(context.Background(), req)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if callCount != MaxRetries {
		t.Errorf("expected %d attempts, got %d", MaxRetries, callCount)
	}
}

func TestTransport_NoRetryOn404(t *testing.T) {
	callCount := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	transport := NewTransport(server.URL, &mockSession{})

	req, _ := http.NewRequest("GET", server.URL+"/test", nil)
	resp, err := transport.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	// 404 is terminal: exactly one attempt, response handed to caller
	if callCount != 1 {
		t.Errorf("404 was retried: %d attempts", callCount)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestTransport_UnauthorizedInvalidatesSession(t *testing.T) {
	callCount := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	sess := &mockSession{token: "stale-token"}
	transport := NewTransport(server.URL, sess)

	req, _ := http.NewRequest("GET", server.URL+"/test", nil)
	resp, err := transport.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if callCount != 1 {
		t.Errorf("401 was retried: %d attempts", callCount)
	}
	if sess.unauthorizedCalls != 1 {
		t.Errorf("expected 1 unauthorized callback, got %d", sess.unauthorizedCalls)
	}
	if sess.Token() != "" {
		t.Error("token not cleared after 401")
	}
}

func TestTransport_RequestBodyPreservedAcrossRetries(t *testing.T) {
	var bodies []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if len(bodies) < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	transport := NewTransport(server.URL, &mockSession{})

	req, _ := http.NewRequest("POST", server.URL+"/test", strings.NewReader(`{"name":"x"}`))
	resp, err := transport.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	for i, b := range bodies {
		if b != `{"name":"x"}` {
			t.Errorf("attempt %d body = %q", i+1, b)
		}
	}
}
