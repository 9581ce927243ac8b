package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-duel/internal/config"
	"github.com/gokatarajesh/trivia-duel/internal/identity"
	"github.com/gokatarajesh/trivia-duel/internal/logging"
	"github.com/gokatarajesh/trivia-duel/internal/metrics"
	"github.com/gokatarajesh/trivia-duel/internal/session"
	httperrors "github.com/gokatarajesh/trivia-duel/pkg/http/errors"
)

// Dependencies are the handlers and clients the routes need. Pool and Redis are nil
// on the memory backend.
type Dependencies struct {
	Pool     *pgxpool.Pool
	Redis    redis.UniversalClient
	Metrics  *metrics.Collector
	Identity *identity.Manager
	Sessions *session.Manager
}

// NewHTTPServer wires the operational routes, identity issuance and the session socket.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, deps Dependencies) *http.Server {
	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: NewRouter(logger, deps),
	}
}

func NewRouter(logger zerolog.Logger, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics.Handler())
	}

	mux.HandleFunc("/v1/ping", func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.IntoContext(r.Context(), logger)
		if err := pingDependencies(ctx, deps.Pool, deps.Redis); err != nil {
			logging.FromContext(ctx).Error().Err(err).Msg("dependency ping failed")
			httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeUpstreamError, "Dependency unavailable")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	if deps.Identity != nil {
		mux.Handle("/v1/identity", identity.Handler(deps.Identity, logger))
		if deps.Sessions != nil {
			mux.Handle("/ws/session", identity.Middleware(deps.Identity, logger)(http.HandlerFunc(deps.Sessions.HandleWebSocket)))
		}
	}

	return mux
}

func pingDependencies(ctx context.Context, pool *pgxpool.Pool, rdb redis.UniversalClient) error {
	if pool != nil {
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if rdb != nil {
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}
