package stubapi

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

type ctxKey string

const (
	ctxUserID ctxKey = "uid"
	ctxRole   ctxKey = "role"
)

// JWTCfg holds JWT authentication configuration for the stub server.
type JWTCfg struct {
	HS256Secret string // HMAC secret for HS256 tokens
	TokenTTL    time.Duration
}

// IssueToken mints an HS256 bearer token for the given user.
func IssueToken(cfg JWTCfg, userID, role string) (string, error) {
	ttl := cfg.TokenTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.HS256Secret))
}

// AuthMiddleware validates a bearer token when one is present and stores
// the subject and role in the request context. A missing token passes
// through as an anonymous request — public list/detail reads accept it;
// handlers that need an identity call requireAdmin. An invalid
// or expired token is a hard 401 regardless of route.
func AuthMiddleware(cfg JWTCfg) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := ""
			if h := r.Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
				tok = h[7:]
			}

			if tok != "" {
				claims := jwt.MapClaims{}
				t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
					if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, jwt.ErrSignatureInvalid
					}
					return []byte(cfg.HS256Secret), nil
				})
				if err != nil || !t.Valid {
					log.Warn().Err(err).Msg("jwt validation failed")
					writeError(w, http.StatusUnauthorized, "unauthorized")
					return
				}

				ctx := r.Context()
				if sub, ok := claims["sub"].(string); ok {
					ctx = context.WithValue(ctx, ctxUserID, sub)
				}
				if role, ok := claims["role"].(string); ok {
					ctx = context.WithValue(ctx, ctxRole, role)
				}
				r = r.WithContext(ctx)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// UserID retrieves the authenticated subject from context, "" if anonymous.
func UserID(ctx context.Context) string {
	if uid, ok := ctx.Value(ctxUserID).(string); ok {
		return uid
	}
	return ""
}

// Role retrieves the authenticated role from context, "" if anonymous.
func Role(ctx context.Context) string {
	if role, ok := ctx.Value(ctxRole).(string); ok {
		return role
	}
	return ""
}
