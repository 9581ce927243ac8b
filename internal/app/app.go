package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-duel/internal/config"
	"github.com/gokatarajesh/trivia-duel/internal/db/repository"
	"github.com/gokatarajesh/trivia-duel/internal/events"
	"github.com/gokatarajesh/trivia-duel/internal/fetchguard"
	"github.com/gokatarajesh/trivia-duel/internal/identity"
	"github.com/gokatarajesh/trivia-duel/internal/logging"
	"github.com/gokatarajesh/trivia-duel/internal/match"
	"github.com/gokatarajesh/trivia-duel/internal/match/scoring"
	"github.com/gokatarajesh/trivia-duel/internal/matchmaking"
	"github.com/gokatarajesh/trivia-duel/internal/metrics"
	"github.com/gokatarajesh/trivia-duel/internal/question"
	"github.com/gokatarajesh/trivia-duel/internal/question/external"
	"github.com/gokatarajesh/trivia-duel/internal/realtime"
	"github.com/gokatarajesh/trivia-duel/internal/room"
	"github.com/gokatarajesh/trivia-duel/internal/server"
	"github.com/gokatarajesh/trivia-duel/internal/session"
	"github.com/gokatarajesh/trivia-duel/pkg/http/ws"
)

// completionClaimTTL bounds how long a crashed finalizer can block its room.
const completionClaimTTL = 30 * time.Second

// Application aggregates shared infrastructure (store, realtime, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool     *pgxpool.Pool
	redis    *redis.Client
	http     *http.Server
	sessions *session.Manager
}

// New bootstraps the logger, the room backend, question loading and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env, cfg.LogLevel)
	logger.Info().Str("backend", cfg.Backend).Str("question_provider", cfg.Questions.Provider).Msg("starting application bootstrap")

	a := &Application{cfg: cfg, logger: logger}

	var (
		backend room.Backend
		claims  match.CompletionGuard
		cache   question.BatchCache
	)
	switch cfg.Backend {
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.pool = pool
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})

		rooms := repository.NewRoomRepository(repository.New(pool))
		backend = realtime.NewBackend(rooms, a.redis, logger)
		claims = match.NewRedisCompletionGuard(a.redis, completionClaimTTL)
		cache = question.NewCache(a.redis, cfg.Questions.CacheTTL)
	default:
		backend = room.NewMemoryBackend()
		claims = match.NewLocalCompletionGuard()
		logger.Warn().Msg("memory backend: rooms are only shared within this process")
	}

	provider, err := newProvider(cfg.Questions, logger)
	if err != nil {
		return nil, err
	}
	questions := question.NewService(provider, cache, question.NewBank(nil), question.ServiceOptions{
		FetchTimeout: cfg.Questions.FetchTimeout,
		RetryDelay:   cfg.Questions.RetryDelay,
		Overfetch:    cfg.Questions.SingleOverfetch,
	}, logger)

	scorer := scoring.NewEngine(scoring.Config{
		MaxPoints: cfg.Game.MaxPoints,
		MaxTime:   cfg.Game.QuestionTime,
	})
	collector := metrics.New()
	guard := fetchguard.New(cfg.FetchGuard.ReleaseGrace, logger)

	coordinator := matchmaking.NewCoordinator(backend, backend, questions, guard, collector, matchmaking.Options{
		Enabled:       cfg.Matchmaking.Enabled,
		QuestionCount: cfg.Matchmaking.QuestionCount,
		Timeout:       cfg.Matchmaking.Timeout,
		RetryInterval: cfg.Matchmaking.RetryInterval,
	}, logger)

	a.sessions = session.NewManager(ws.NewHub(logger), session.Deps{
		Questions:  questions,
		Guard:      guard,
		Matchmaker: coordinator,
		Scorer:     scorer,
		Metrics:    collector,
		Multi: match.MultiplayerDeps{
			Rooms:      backend,
			Feed:       backend,
			Stream:     events.NewStream(backend, logger),
			Aggregator: match.NewAggregator(backend, backend, scorer, logger),
			Claims:     claims,
		},
	}, session.Options{
		QuestionCount: cfg.Game.QuestionCount,
		AutoExpire:    cfg.Game.AutoExpire,
		OpponentGrace: cfg.Game.OpponentGrace,
	}, logger)

	deps := server.Dependencies{
		Pool:     a.pool,
		Metrics:  collector,
		Identity: identity.NewManager([]byte(cfg.Security.IdentitySecret), cfg.Security.IdentityTTL),
		Sessions: a.sessions,
	}
	// A nil *redis.Client must not become a non-nil interface.
	if a.redis != nil {
		deps.Redis = a.redis
	}
	a.http = server.NewHTTPServer(cfg, logger, deps)
	return a, nil
}

func newProvider(cfg config.Questions, logger zerolog.Logger) (question.Provider, error) {
	httpClient := &http.Client{Timeout: cfg.FetchTimeout}
	switch cfg.Provider {
	case "opentdb":
		client := external.NewOpenTDBClient(external.OpenTDBOptions{
			BaseURL:     cfg.OpenTDBURL,
			HTTPClient:  httpClient,
			MinInterval: cfg.OpenTDBInterval,
		})
		return question.NewOpenTDBProvider(client, logger), nil
	case "triviaapi":
		client := external.NewTriviaAPIClient(cfg.TriviaAPIURL, cfg.TriviaAPIKey, httpClient)
		return question.NewTriviaAPIProvider(client), nil
	default:
		return nil, fmt.Errorf("unknown question provider %q", cfg.Provider)
	}
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown.
	a.sessions.Shutdown()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	if a.pool != nil {
		a.pool.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error().Err(err).Msg("redis shutdown error")
		}
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}
