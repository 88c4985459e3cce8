// Package session holds the client's authentication state as an explicit,
// injected object. The transport asks it for the current token and notifies
// it on 401 responses; nothing reads ambient global storage.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// Session is the client's session context. It is safe for concurrent use.
type Session struct {
	mu             sync.RWMutex
	token          string
	user           map[string]any
	onUnauthorized func()
}

// New creates a session holding the given token ("" = anonymous).
func New(token string) *Session {
	return &Session{token: token}
}

// OnUnauthorized registers the hook fired when the server answers 401.
// The hook runs after the token and user have been cleared; a CLI prompts
// for re-login, a UI redirects to the login view.
func (s *Session) OnUnauthorized(fn func()) {
	s.mu.Lock()
	s.onUnauthorized = fn
	s.mu.Unlock()
}

// Token returns the current bearer token, or "" when anonymous.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns the authenticated user's profile, if a login stored one.
func (s *Session) User() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// SetToken stores a new bearer token and optional user profile. The token's
// expiry is inspected (without signature verification, the server remains
// authoritative) so an already-expired token is rejected up front.
func (s *Session) SetToken(token string, user map[string]any) error {
	if token != "" {
		if exp, ok := tokenExpiry(token); ok && time.Now().After(exp) {
			return fmt.Errorf("token already expired at %s", exp.Format(time.RFC3339))
		}
	}

	s.mu.Lock()
	s.token = token
	s.user = user
	s.mu.Unlock()
	return nil
}

// Clear drops the token and user, returning the session to anonymous.
func (s *Session) Clear() {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()
}

// HandleUnauthorized implements the transport's session-boundary contract:
// a 401 clears the stored token/user, then the registered hook runs.
func (s *Session) HandleUnauthorized() {
	s.mu.Lock()
	hadToken := s.token != ""
	s.token = ""
	s.user = nil
	fn := s.onUnauthorized
	s.mu.Unlock()

	if hadToken {
		log.Info().Msg("session invalidated by 401 response")
	}
	if fn != nil {
		fn()
	}
}

// ExpiresAt returns the expiry claim of the current token. ok is false for
// anonymous sessions and tokens without a readable exp claim.
func (s *Session) ExpiresAt() (time.Time, bool) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	if token == "" {
		return time.Time{}, false
	}
	return tokenExpiry(token)
}

// tokenExpiry parses the exp claim without verifying the signature.
// The client only uses this to warn about stale tokens; validation is the
// server's job.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
