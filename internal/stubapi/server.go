package stubapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Server holds dependencies for the stub API handlers.
type Server struct {
	Store Store
	JWT   JWTCfg
}

// Routes creates the HTTP router serving the platform wire contract.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(CorrelationMiddleware)

	// Health check (unauthenticated)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	})

	r.Post("/v1/auth/login", s.Login)

	r.Route("/v1/{resource}", func(r chi.Router) {
		r.Use(AuthMiddleware(s.JWT))
		r.Get("/", s.ListEntities)
		r.Post("/", s.CreateEntity)
		r.Get("/{id}", s.GetEntity)
		r.Put("/{id}", s.UpdateEntity)
		r.Delete("/{id}", s.DeleteEntity)
	})

	return r
}

// CorrelationMiddleware reads X-Correlation-ID and echoes it on the
// response, generating one when the client did not send it. All request
// logs carry the id for end-to-end tracing against client logs.
func CorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		w.Header().Set("X-Correlation-ID", correlationID)

		logger := log.With().Str("correlation_id", correlationID).Logger()
		ctx := logger.WithContext(r.Context())

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

// writeError writes the error envelope clients decode
func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg, "message": msg})
}

// parsePage parses a 1-based page query param
func parsePage(q string) int {
	n, err := strconv.Atoi(q)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// parseLimit parses a limit query param with default and max
func parseLimit(q string, def, max int) int {
	if q == "" {
		return def
	}
	n, err := strconv.Atoi(q)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// totalPages computes the page count for a total under a page size.
// Zero items means zero pages.
func totalPages(total, perPage int) int {
	if total == 0 {
		return 0
	}
	pages := total / perPage
	if total%perPage > 0 {
		pages++
	}
	return pages
}
