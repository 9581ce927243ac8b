package match

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-duel/internal/match/scoring"
	"github.com/gokatarajesh/trivia-duel/internal/question"
)

type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhasePlaying Phase = "playing"
	PhaseEnded   Phase = "ended"
)

// Rejection reasons reported in SubmitResult.
const (
	ReasonInactive        = "game_inactive"
	ReasonNoQuestion      = "no_current_question"
	ReasonAlreadyAnswered = "already_answered"
	ReasonTimerExpired    = "timer_expired"
)

// SubmitResult is the outcome of one answer attempt. Rejections are not errors.
type SubmitResult struct {
	Accepted bool   `json:"accepted"`
	Correct  bool   `json:"correct"`
	Points   int    `json:"points"`
	Reason   string `json:"reason,omitempty"`
}

// Recorder persists one answer entry before the engine commits it.
type Recorder interface {
	Record(ctx context.Context, a scoring.Answer, correct bool) error
}

// EngineOptions configures an Engine. Zero values pick defaults.
type EngineOptions struct {
	Scorer   *scoring.Engine
	Recorder Recorder
	Now      func() time.Time
	Logger   zerolog.Logger

	// AutoExpire arms a countdown per presented question that fires OnTimerExpired.
	AutoExpire bool

	// OnChange is called after every committed state change, outside the engine lock.
	OnChange func(Snapshot)
}

// Engine is the per-session question state machine shared by both game modes.
type Engine struct {
	mu        sync.Mutex
	scorer    *scoring.Engine
	recorder  Recorder
	now       func() time.Time
	countdown *Countdown
	logger    zerolog.Logger
	onChange  func(Snapshot)

	phase       Phase
	questions   []question.Question
	index       int
	answered    bool
	expired     bool
	active      bool
	ended       bool
	presentedAt time.Time
	answers     []scoring.Answer
	recorded    map[int]bool
	final       scoring.Tally
}

func NewEngine(opts EngineOptions) *Engine {
	if opts.Scorer == nil {
		opts.Scorer = scoring.NewEngine(scoring.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	e := &Engine{
		scorer:   opts.Scorer,
		recorder: opts.Recorder,
		now:      opts.Now,
		logger:   opts.Logger,
		onChange: opts.OnChange,
		phase:    PhaseIdle,
		recorded: make(map[int]bool),
	}
	if opts.AutoExpire {
		e.countdown = NewCountdown(opts.Scorer.Config().MaxTime)
	}
	return e
}

// QuestionTime is the per-question limit.
func (e *Engine) QuestionTime() time.Duration {
	return e.scorer.Config().MaxTime
}

// MarkLoading moves an idle or finished engine into the loading phase.
func (e *Engine) MarkLoading() {
	e.mu.Lock()
	e.phase = PhaseLoading
	e.mu.Unlock()
	e.notify()
}

// Begin resets all per-session state and presents the first question.
func (e *Engine) Begin(questions []question.Question) {
	e.mu.Lock()
	e.questions = questions
	e.index = 0
	e.answered = false
	e.expired = false
	e.active = true
	e.ended = false
	e.answers = nil
	e.recorded = make(map[int]bool, len(questions))
	e.final = scoring.Tally{}
	e.phase = PhasePlaying
	e.presentLocked()
	e.mu.Unlock()
	e.notify()
}

// Reset returns the engine to idle, dropping any loaded questions.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.stopCountdown()
	e.questions = nil
	e.index = 0
	e.answered, e.expired, e.active, e.ended = false, false, false, false
	e.answers = nil
	e.recorded = make(map[int]bool)
	e.final = scoring.Tally{}
	e.phase = PhaseIdle
	e.mu.Unlock()
	e.notify()
}

// SubmitAnswer records the player's choice for the current question.
func (e *Engine) SubmitAnswer(ctx context.Context, answerIndex int) (SubmitResult, error) {
	e.mu.Lock()
	res, changed, err := e.submitLocked(ctx, answerIndex)
	e.mu.Unlock()
	if changed {
		e.notify()
	}
	return res, err
}

func (e *Engine) submitLocked(ctx context.Context, answerIndex int) (SubmitResult, bool, error) {
	switch {
	case !e.active:
		return SubmitResult{Reason: ReasonInactive}, false, nil
	case e.index >= len(e.questions):
		return SubmitResult{Reason: ReasonNoQuestion}, false, nil
	case e.answered:
		return SubmitResult{Reason: ReasonAlreadyAnswered}, false, nil
	case e.expired:
		return SubmitResult{Reason: ReasonTimerExpired}, false, nil
	}

	elapsed := e.now().Sub(e.presentedAt)
	if elapsed > e.QuestionTime() {
		_, err := e.expireLocked(ctx, -1)
		return SubmitResult{Reason: ReasonTimerExpired}, true, err
	}
	// Events store whole milliseconds; score on the same value.
	elapsed = elapsed.Round(time.Millisecond)

	q := e.questions[e.index]
	correct := answerIndex == q.CorrectAnswer
	entry := scoring.Answer{
		QuestionIndex: e.index,
		QuestionID:    q.ID,
		AnswerIndex:   answerIndex,
		Elapsed:       elapsed,
		Timestamp:     e.now(),
	}
	if err := e.record(ctx, entry, correct); err != nil {
		return SubmitResult{}, false, fmt.Errorf("submit answer: %w", err)
	}
	e.answered = true
	e.stopCountdown()

	res := SubmitResult{Accepted: true, Correct: correct, Points: e.scorer.QuestionScore(correct, elapsed)}
	if e.index+1 >= len(e.questions) {
		e.endLocked(ctx)
	}
	return res, true, nil
}

// OnTimerExpired records a zero-score non-answer for the current question.
// It is a no-op once the question is answered or expired, or the game is over.
func (e *Engine) OnTimerExpired(ctx context.Context) error {
	e.mu.Lock()
	changed, err := e.expireLocked(ctx, -1)
	e.mu.Unlock()
	if changed {
		e.notify()
	}
	return err
}

// expireLocked handles an expiry. index >= 0 restricts it to that question.
func (e *Engine) expireLocked(ctx context.Context, index int) (bool, error) {
	if !e.active || e.ended || e.answered || e.expired || e.index >= len(e.questions) {
		return false, nil
	}
	if index >= 0 && index != e.index {
		return false, nil
	}

	q := e.questions[e.index]
	entry := scoring.Answer{
		QuestionIndex: e.index,
		QuestionID:    q.ID,
		AnswerIndex:   scoring.NoAnswer,
		Elapsed:       e.QuestionTime(),
		Timestamp:     e.now(),
	}
	// A failed write leaves the question open for another expiry.
	if err := e.record(ctx, entry, false); err != nil {
		return false, fmt.Errorf("record expired question: %w", err)
	}
	e.expired = true
	e.answered = true
	e.stopCountdown()

	if e.index+1 >= len(e.questions) {
		e.endLocked(ctx)
	}
	return true, nil
}

// Advance moves to the next question. It is a no-op while the game is inactive.
func (e *Engine) Advance() {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	e.index++
	e.answered = false
	e.expired = false
	e.presentLocked()
	e.mu.Unlock()
	e.notify()
}

// End stops the game, back-fills every question without an entry and freezes the tally.
// Repeated calls have no effect.
func (e *Engine) End(ctx context.Context) {
	e.mu.Lock()
	changed := e.endLocked(ctx)
	e.mu.Unlock()
	if changed {
		e.notify()
	}
}

func (e *Engine) endLocked(ctx context.Context) bool {
	if e.ended {
		return false
	}
	e.active = false
	e.ended = true
	e.phase = PhaseEnded
	e.stopCountdown()

	for i, q := range e.questions {
		if e.recorded[i] {
			continue
		}
		entry := scoring.Answer{
			QuestionIndex: i,
			QuestionID:    q.ID,
			AnswerIndex:   scoring.NoAnswer,
			Elapsed:       e.QuestionTime(),
			Timestamp:     e.now(),
		}
		if err := e.record(ctx, entry, false); err != nil {
			e.logger.Warn().Err(err).Int("question_index", i).Msg("back-fill failed")
		}
	}
	if e.index < len(e.questions) && e.recorded[e.index] {
		e.answered = true
	}

	e.final = e.scorer.TallyLocal(e.questions, e.answers)
	e.logger.Info().Int("score", e.final.Score).Int("correct", e.final.CorrectCount).Msg("game ended")
	return true
}

// record persists then commits one entry. Caller holds mu.
func (e *Engine) record(ctx context.Context, a scoring.Answer, correct bool) error {
	if e.recorder != nil {
		if err := e.recorder.Record(ctx, a, correct); err != nil {
			return err
		}
	}
	e.answers = append(e.answers, a)
	e.recorded[a.QuestionIndex] = true
	return nil
}

// presentLocked restarts the timer reference for the current question.
func (e *Engine) presentLocked() {
	e.presentedAt = e.now()
	if e.countdown == nil || e.index >= len(e.questions) {
		e.stopCountdown()
		return
	}
	idx := e.index
	e.countdown.Start(func() {
		e.mu.Lock()
		changed, err := e.expireLocked(context.Background(), idx)
		e.mu.Unlock()
		if err != nil {
			e.logger.Warn().Err(err).Int("question_index", idx).Msg("timer expiry not recorded")
		}
		if changed {
			e.notify()
		}
	})
}

func (e *Engine) stopCountdown() {
	if e.countdown != nil {
		e.countdown.Stop()
	}
}

func (e *Engine) notify() {
	if e.onChange != nil {
		e.onChange(e.Snapshot())
	}
}

// Snapshot is the per-frame view the presentation layer renders.
type Snapshot struct {
	Phase          Phase              `json:"phase"`
	Question       *question.Question `json:"question,omitempty"`
	Index          int                `json:"index"`
	Total          int                `json:"total"`
	Answered       bool               `json:"answered"`
	TimerExpired   bool               `json:"timer_expired"`
	Active         bool               `json:"active"`
	Ended          bool               `json:"ended"`
	Complete       bool               `json:"complete"`
	QuestionTimeMs int64              `json:"question_time_ms"`
	Score          int                `json:"score"`
	CorrectCount   int                `json:"correct_count"`
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		Phase:          e.phase,
		Index:          e.index,
		Total:          len(e.questions),
		Answered:       e.answered,
		TimerExpired:   e.expired,
		Active:         e.active,
		Ended:          e.ended,
		Complete:       e.completeLocked(),
		QuestionTimeMs: e.QuestionTime().Milliseconds(),
	}
	if e.index < len(e.questions) {
		q := e.questions[e.index]
		s.Question = &q
	}
	if e.ended {
		s.Score, s.CorrectCount = e.final.Score, e.final.CorrectCount
	} else {
		running := e.scorer.TallyLocal(e.questions, e.answers)
		s.Score, s.CorrectCount = running.Score, running.CorrectCount
	}
	return s
}

// Complete reports whether every question has exactly one recorded entry.
func (e *Engine) Complete() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.completeLocked()
}

func (e *Engine) completeLocked() bool {
	return len(e.questions) > 0 && len(e.recorded) >= len(e.questions)
}

// Questions returns a copy of the loaded question set.
func (e *Engine) Questions() []question.Question {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]question.Question(nil), e.questions...)
}

// Answers returns a copy of the local answer log in question order.
func (e *Engine) Answers() []scoring.Answer {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := append([]scoring.Answer(nil), e.answers...)
	sortAnswers(out)
	return out
}

// Final is the tally frozen by End. ok is false before the game ended.
func (e *Engine) Final() (scoring.Tally, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.final, e.ended
}

func (e *Engine) Ended() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ended
}

func sortAnswers(a []scoring.Answer) {
	sort.SliceStable(a, func(i, j int) bool { return a[i].QuestionIndex < a[j].QuestionIndex })
}

func (e *Engine) stopCountdownSafe() {
	e.mu.Lock()
	e.stopCountdown()
	e.mu.Unlock()
}
