package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLogin_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/v1/auth/login" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		var creds map[string]string
		json.NewDecoder(r.Body).Decode(&creds)
		if creds["email"] != "admin@savor.dev" {
			t.Errorf("email = %s", creds["email"])
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"token": "issued-token",
				"user":  map[string]any{"name": "Dev Admin"},
			},
		})
	}))
	defer server.Close()

	api := New(server.URL, nil)
	result, err := api.Login(context.Background(), "admin@savor.dev", "admin")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if result.Token != "issued-token" {
		t.Errorf("token = %s", result.Token)
	}
	if result.User["name"] != "Dev Admin" {
		t.Errorf("user = %v", result.User)
	}
}

// A wrong-password 401 is a rejected credential exchange, not a session
// expiry: the existing session must survive and its unauthorized hook must
// not run.
func TestLogin_RejectedCredentialsKeepSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid credentials"})
	}))
	defer server.Close()

	sess := &mockSession{token: "existing-token"}
	api := New(server.URL, sess)

	_, err := api.Login(context.Background(), "admin@savor.dev", "wrong")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}

	if sess.unauthorizedCalls != 0 {
		t.Errorf("failed login fired the unauthorized hook %d times", sess.unauthorizedCalls)
	}
	if sess.Token() != "existing-token" {
		t.Error("failed login cleared the stored token")
	}
}
