package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"trivia-duel"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"127.0.0.1:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`
	Backend                 string        `env:"BACKEND" envDefault:"memory"`
	LogLevel                string        `env:"LOG_LEVEL" envDefault:"info"`

	Postgres    Postgres
	Redis       Redis
	Security    Security
	Game        Game
	Questions   Questions
	Matchmaking Matchmaking
	FetchGuard  FetchGuard
}

// Postgres captures connection info for the shared room store.
type Postgres struct {
	Host     string `env:"PG_HOST" envDefault:"localhost"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER" envDefault:""`
	Password string `env:"PG_PASSWORD" envDefault:""`
	Database string `env:"PG_DATABASE" envDefault:""`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
}

func (p Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// Redis backs realtime fan-out, the question cache and completion claims.
type Redis struct {
	Addr     string `env:"REDIS_ADDR" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Security stores secrets for signing identity tokens.
type Security struct {
	IdentitySecret string        `env:"IDENTITY_SECRET,notEmpty"`
	IdentityTTL    time.Duration `env:"IDENTITY_TTL" envDefault:"720h"`
}

// Game groups gameplay constants.
type Game struct {
	QuestionTime  time.Duration `env:"QUESTION_SECONDS" envDefault:"65s"`
	QuestionCount int           `env:"QUESTION_COUNT" envDefault:"10"`
	MaxPoints     int           `env:"MAX_POINTS_PER_QUESTION" envDefault:"1000"`
	AutoExpire    bool          `env:"AUTO_EXPIRE_TIMERS" envDefault:"true"`
	OpponentGrace time.Duration `env:"OPPONENT_GRACE" envDefault:"2m"`
}

// Questions configures the upstream source and the load path.
type Questions struct {
	Provider        string        `env:"QUESTION_PROVIDER" envDefault:"opentdb"`
	OpenTDBURL      string        `env:"OPENTDB_URL" envDefault:"https://opentdb.com"`
	OpenTDBInterval time.Duration `env:"OPENTDB_MIN_INTERVAL" envDefault:"5s"`
	TriviaAPIURL    string        `env:"TRIVIA_API_URL" envDefault:"https://the-trivia-api.com/api"`
	TriviaAPIKey    string        `env:"TRIVIA_API_KEY" envDefault:""`
	FetchTimeout    time.Duration `env:"QUESTION_FETCH_TIMEOUT" envDefault:"5s"`
	RetryDelay      time.Duration `env:"QUESTION_RETRY_DELAY" envDefault:"1s"`
	CacheTTL        time.Duration `env:"QUESTION_CACHE_TTL" envDefault:"5m"`
	SingleOverfetch int           `env:"QUESTION_OVERFETCH" envDefault:"2"`
}

// Matchmaking governs room discovery.
type Matchmaking struct {
	Enabled       bool          `env:"MATCHMAKING_ENABLED" envDefault:"true"`
	Timeout       time.Duration `env:"MATCHMAKING_TIMEOUT" envDefault:"60s"`
	QuestionCount int           `env:"MATCH_QUESTION_COUNT" envDefault:"10"`
	RetryInterval time.Duration `env:"MATCHMAKING_RETRY_INTERVAL" envDefault:"500ms"`
}

type FetchGuard struct {
	ReleaseGrace time.Duration `env:"FETCH_GUARD_RELEASE_GRACE" envDefault:"100ms"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements the env tags cannot express.
func (a *App) Validate() error {
	var errs []error
	switch a.Backend {
	case BackendMemory:
	case BackendPostgres:
		if a.Postgres.User == "" || a.Postgres.Database == "" {
			errs = append(errs, errors.New("PG_USER and PG_DATABASE are required for the postgres backend"))
		}
		if a.Redis.Addr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown BACKEND %q", a.Backend))
	}
	switch a.Questions.Provider {
	case "opentdb", "triviaapi":
	default:
		errs = append(errs, fmt.Errorf("unknown QUESTION_PROVIDER %q", a.Questions.Provider))
	}
	if a.Game.QuestionCount <= 0 || a.Matchmaking.QuestionCount <= 0 {
		errs = append(errs, errors.New("question counts must be positive"))
	}
	if a.Game.QuestionTime <= 0 {
		errs = append(errs, errors.New("QUESTION_SECONDS must be positive"))
	}
	return errors.Join(errs...)
}
