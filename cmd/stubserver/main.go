// Command stubserver runs a development stand-in for the Savor platform
// API. It serves the production wire contract from an in-memory seed
// dataset, or from Postgres when -dsn is given.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/savorhq/savor-go/internal/db"
	"github.com/savorhq/savor-go/internal/stubapi"
)

var (
	addr      = flag.String("addr", env("HTTP_ADDR", ":8081"), "HTTP listen address")
	dsn       = flag.String("dsn", env("DATABASE_URL", ""), "Postgres DSN (empty = in-memory store)")
	jwtSecret = flag.String("jwt-secret", env("JWT_HS256_SECRET", "dev-secret-change-in-production"), "HS256 secret for issued tokens")
	noSeed    = flag.Bool("no-seed", false, "Skip seeding the in-memory dataset")
)

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.With().Str("service", "savor-stubserver").Logger()
	if env("ENV", "dev") == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	ctx := context.Background()

	var store stubapi.Store
	if *dsn != "" {
		pool, err := db.Open(ctx, *dsn)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		defer pool.Close()

		pgStore, err := stubapi.NewPGStore(ctx, pool)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize postgres store")
		}
		store = pgStore
		log.Info().Msg("using postgres store")
	} else {
		mem := stubapi.NewMemStore()
		if !*noSeed {
			mem.Seed()
			log.Info().Msg("seeded in-memory dataset")
		}
		store = mem
	}

	srv := &stubapi.Server{
		Store: store,
		JWT:   stubapi.JWTCfg{HS256Secret: *jwtSecret},
	}

	httpServer := &http.Server{
		Addr:         *addr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", *addr).Msg("starting stub API server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("server stopped")
}
