package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// LoginResult is the payload of a successful login.
type LoginResult struct {
	Token string         `json:"token"`
	User  map[string]any `json:"user"`
}

// Login exchanges credentials for a bearer token. The caller stores the
// token in its session context; Login itself does not mutate session state.
// A rejected login (401) does not invalidate an existing session.
func (a *API) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	ctx = WithCredentialExchange(ctx)
	body, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/v1/auth/login", a.transport.BaseURL())
	req, err := http.NewRequestWithContext(ctx, "POST", reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.transport.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read login response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiErrorFromBody(resp.StatusCode, respBody)
	}

	var env struct {
		Data LoginResult `json:"data"`
	}
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("malformed login response: %w", err)
	}
	if env.Data.Token == "" {
		return nil, fmt.Errorf("login response missing token")
	}
	return &env.Data, nil
}
