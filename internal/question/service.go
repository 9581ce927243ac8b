package question

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-duel/internal/question/external"
)

// ServiceOptions tunes the load path; zero values pick defaults.
type ServiceOptions struct {
	FetchTimeout time.Duration
	RetryDelay   time.Duration
	// Overfetch multiplies the requested count for single-player loads.
	Overfetch int
}

// Service orchestrates the upstream provider, the batch cache and the bundled bank.
type Service struct {
	provider Provider
	cache    BatchCache
	bank     *Bank
	opts     ServiceOptions
	logger   zerolog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewService(provider Provider, cache BatchCache, bank *Bank, opts ServiceOptions, logger zerolog.Logger) *Service {
	if bank == nil {
		bank = NewBank(nil)
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 5 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if opts.Overfetch <= 0 {
		opts.Overfetch = 2
	}
	return &Service{
		provider: provider,
		cache:    cache,
		bank:     bank,
		opts:     opts,
		logger:   logger.With().Str("component", "question_service").Logger(),
		sleep:    sleepCtx,
	}
}

// Bank exposes the fallback set to the matchmaking host path.
func (s *Service) Bank() *Bank {
	return s.bank
}

// FetchBatch makes a single upstream attempt and returns valid questions only.
func (s *Service) FetchBatch(ctx context.Context, amount int, category string) ([]Question, error) {
	if s.provider == nil {
		return nil, external.ErrEmptyResults
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	qs, err := s.provider.Fetch(ctx, amount, category)
	if err != nil {
		return nil, err
	}
	qs = validOnly(qs)
	if len(qs) == 0 {
		return nil, external.ErrEmptyResults
	}
	return qs, nil
}

// Load selects req.Count questions for a single-player game. An upstream rejection of the
// category is fatal; every other upstream failure is retried once and then served from the bank.
func (s *Service) Load(ctx context.Context, req LoadRequest) (LoadResult, error) {
	if req.Count <= 0 {
		return LoadResult{}, fmt.Errorf("load questions: count must be positive, got %d", req.Count)
	}
	amount := req.Count * s.opts.Overfetch
	log := s.logger.With().Str("category", req.Category).Int("count", req.Count).Logger()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, req.Category, amount)
		if err != nil {
			log.Warn().Err(err).Msg("question cache read failed")
		} else if len(cached) > 0 {
			return LoadResult{Questions: shuffleTake(append([]Question(nil), cached...), req.Count), Source: SourceCache}, nil
		}
	}

	qs, err := s.FetchBatch(ctx, amount, req.Category)
	if err != nil && !errors.Is(err, external.ErrInvalidParameter) && ctx.Err() == nil {
		log.Warn().Err(err).Dur("retry_in", s.opts.RetryDelay).Msg("question fetch failed, retrying once")
		if serr := s.sleep(ctx, s.opts.RetryDelay); serr != nil {
			return LoadResult{}, serr
		}
		qs, err = s.FetchBatch(ctx, amount, req.Category)
	}

	switch {
	case errors.Is(err, external.ErrInvalidParameter):
		log.Error().Err(err).Msg("upstream rejected category")
		return LoadResult{}, fmt.Errorf("%w: %s", ErrInvalidCategory, req.Category)
	case err != nil:
		if ctx.Err() != nil {
			return LoadResult{}, ctx.Err()
		}
		log.Warn().Err(err).Msg("question fetch failed twice, using bundled questions")
		picked := s.bank.Pick(req.Category, req.Count)
		if len(picked) == 0 {
			return LoadResult{}, ErrNoQuestions
		}
		return LoadResult{Questions: picked, Source: SourceFallback}, nil
	}

	if req.Category != "" {
		if n := CategoryAffinity(qs, req.Category); n < len(qs) {
			log.Debug().Int("matching", n).Int("total", len(qs)).Msg("upstream labels differ from requested category")
		}
	}
	if s.cache != nil {
		if cerr := s.cache.Set(ctx, req.Category, amount, qs); cerr != nil {
			log.Warn().Err(cerr).Msg("question cache write failed")
		}
	}
	return LoadResult{Questions: shuffleTake(qs, req.Count), Source: SourceUpstream}, nil
}

func validOnly(qs []Question) []Question {
	out := qs[:0:0]
	for _, q := range qs {
		if q.Valid() {
			out = append(out, q)
		}
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
