package match

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-duel/internal/fetchguard"
	"github.com/gokatarajesh/trivia-duel/internal/match/scoring"
	"github.com/gokatarajesh/trivia-duel/internal/question"
)

// StartStatus tells the caller whether Start loaded a new game or skipped as a no-op.
type StartStatus string

const (
	StartLoaded          StartStatus = "loaded"
	StartSkippedInFlight StartStatus = "skipped_in_flight"
	StartSkippedGuard    StartStatus = "skipped_guard"
	StartSkippedCached   StartStatus = "skipped_cached"
)

// QuestionLoader is the single-player load path of the question service.
type QuestionLoader interface {
	Load(ctx context.Context, req question.LoadRequest) (question.LoadResult, error)
}

// GameResult is the frozen outcome of a single-player game.
type GameResult struct {
	Score        int                 `json:"score"`
	CorrectCount int                 `json:"correct_count"`
	Answers      []scoring.Answer    `json:"answers"`
	Questions    []question.Question `json:"questions"`
}

// SinglePlayer drives a local game against questions loaded for one category.
type SinglePlayer struct {
	*Engine

	loader QuestionLoader
	guard  *fetchguard.Guard
	logger zerolog.Logger

	mu             sync.Mutex
	loading        bool
	loadedCategory string
	source         string
}

func NewSinglePlayer(loader QuestionLoader, guard *fetchguard.Guard, opts EngineOptions) *SinglePlayer {
	logger := opts.Logger.With().Str("component", "single_player").Logger()
	opts.Logger = logger
	return &SinglePlayer{
		Engine: NewEngine(opts),
		loader: loader,
		guard:  guard,
		logger: logger,
	}
}

// Start loads count questions for category and begins a new game. It returns a skipped status
// without error when a load is already running here, when another load holds the fetch guard,
// or when an unfinished game for the same category already has enough questions.
func (s *SinglePlayer) Start(ctx context.Context, count int, category string) (StartStatus, error) {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return StartSkippedInFlight, nil
	}
	if s.guard.Blocks(category, fetchguard.ModeSingle) {
		s.mu.Unlock()
		return StartSkippedGuard, nil
	}
	if s.loadedCategory == category && len(s.Engine.Questions()) >= count && !s.Engine.Ended() {
		s.mu.Unlock()
		return StartSkippedCached, nil
	}
	if err := s.guard.Acquire(category, fetchguard.ModeSingle); err != nil {
		s.mu.Unlock()
		if errors.Is(err, fetchguard.ErrFetchInProgress) {
			return StartSkippedGuard, nil
		}
		return "", err
	}
	s.loading = true
	s.loadedCategory = category
	s.mu.Unlock()

	defer func() {
		s.guard.Release()
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	s.Engine.MarkLoading()
	res, err := s.loader.Load(ctx, question.LoadRequest{Count: count, Category: category})
	if err != nil {
		s.mu.Lock()
		s.loadedCategory = ""
		s.mu.Unlock()
		s.Engine.Reset()
		return "", err
	}

	s.mu.Lock()
	s.source = res.Source
	s.mu.Unlock()
	s.logger.Info().
		Str("category", category).
		Int("requested", count).
		Int("selected", len(res.Questions)).
		Str("source", res.Source).
		Msg("single-player game loaded")
	s.Engine.Begin(res.Questions)
	return StartLoaded, nil
}

// Source reports where the current question set came from.
func (s *SinglePlayer) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Result returns the frozen outcome. ok is false until the game has ended.
func (s *SinglePlayer) Result() (GameResult, bool) {
	final, ended := s.Engine.Final()
	if !ended {
		return GameResult{}, false
	}
	return GameResult{
		Score:        final.Score,
		CorrectCount: final.CorrectCount,
		Answers:      s.Engine.Answers(),
		Questions:    s.Engine.Questions(),
	}, true
}
