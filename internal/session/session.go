// Package session speaks the player-facing WebSocket protocol: one Session per connection,
// driving either a single-player game or a matchmade duel.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-duel/internal/fetchguard"
	"github.com/gokatarajesh/trivia-duel/internal/identity"
	"github.com/gokatarajesh/trivia-duel/internal/logging"
	"github.com/gokatarajesh/trivia-duel/internal/match"
	"github.com/gokatarajesh/trivia-duel/internal/match/scoring"
	"github.com/gokatarajesh/trivia-duel/internal/matchmaking"
	"github.com/gokatarajesh/trivia-duel/internal/metrics"
	"github.com/gokatarajesh/trivia-duel/internal/room"
	httperrors "github.com/gokatarajesh/trivia-duel/pkg/http/errors"
	"github.com/gokatarajesh/trivia-duel/pkg/http/ws"
)

const (
	ModeSingle = "single"
	ModeMulti  = "multi"
)

// Sender is the outbound half of a connection.
type Sender interface {
	Send(msg ws.Message) error
}

// Matchmaker starts a background find-or-create attempt.
type Matchmaker interface {
	Matchmake(ctx context.Context, p matchmaking.Player, category string) *matchmaking.Ticket
}

// Deps are shared by every session of the process.
type Deps struct {
	Questions  match.QuestionLoader
	Guard      *fetchguard.Guard
	Matchmaker Matchmaker
	Multi      match.MultiplayerDeps
	Scorer     *scoring.Engine
	Metrics    *metrics.Collector
}

type Options struct {
	QuestionCount int
	AutoExpire    bool
	OpponentGrace time.Duration
}

// Session owns at most one game at a time. Starting a new one tears the previous down.
type Session struct {
	player identity.Player
	out    Sender
	deps   Deps
	opts   Options
	logger zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	closed     bool
	mode       string
	single     *match.SinglePlayer
	multi      *match.Multiplayer
	ticket     *matchmaking.Ticket
	recheck    *time.Timer
	finalizing bool
	rerun      bool
	delivered  bool
}

// New builds a session whose lifetime is bounded by ctx. It logs through the logger carried by ctx.
func New(ctx context.Context, player identity.Player, out Sender, deps Deps, opts Options) *Session {
	if opts.QuestionCount <= 0 {
		opts.QuestionCount = 10
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Session{
		player: player,
		out:    out,
		deps:   deps,
		opts:   opts,
		logger: logging.FromContext(ctx).With().Str("component", "session").Str("player_id", player.ID).Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Handle routes one client message. Failures are reported to the client; the returned
// error only signals that the reply itself could not be queued.
func (s *Session) Handle(msg ws.Message) error {
	switch msg.Type {
	case ws.TypeStartSingle:
		return s.handleStartSingle(msg)
	case ws.TypeFindMatch:
		return s.handleFindMatch(msg)
	case ws.TypeCancelMatch:
		return s.handleCancelMatch()
	case ws.TypeSubmitAnswer:
		return s.handleSubmitAnswer(msg)
	case ws.TypeAdvance:
		return s.withEngine(msg.RequestID, func(e *match.Engine) error {
			e.Advance()
			return nil
		})
	case ws.TypeTimerExpired:
		return s.withEngine(msg.RequestID, func(e *match.Engine) error {
			return e.OnTimerExpired(s.ctx)
		})
	case ws.TypeCalculateResults:
		return s.handleCalculateResults(msg.RequestID)
	case ws.TypeLeave:
		s.teardown()
		return nil
	case ws.TypePing:
		return s.send(ws.TypePong, nil, msg.RequestID)
	default:
		return s.sendError(msg.RequestID, httperrors.New(httperrors.ErrCodeUnknownMessageType, "Unknown message type: "+msg.Type, nil))
	}
}

func (s *Session) handleStartSingle(msg ws.Message) error {
	var req ws.StartSinglePayload
	if err := msg.DecodePayload(&req); err != nil {
		return s.sendError(msg.RequestID, httperrors.New(httperrors.ErrCodeInvalidPayload, "Invalid start_single payload", err))
	}
	if req.Count <= 0 {
		req.Count = s.opts.QuestionCount
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.mode == ModeMulti {
		s.teardownLocked()
	}
	if s.single == nil {
		s.single = match.NewSinglePlayer(s.deps.Questions, s.deps.Guard, match.EngineOptions{
			Scorer:     s.deps.Scorer,
			AutoExpire: s.opts.AutoExpire,
			Logger:     s.logger,
			OnChange:   func(match.Snapshot) { s.pushState() },
		})
	}
	s.mode = ModeSingle
	s.delivered = false
	sp := s.single
	s.mu.Unlock()

	go func() {
		started := time.Now()
		status, err := sp.Start(s.ctx, req.Count, req.Category)
		if err != nil {
			if s.ctx.Err() == nil {
				_ = s.sendError(msg.RequestID, classify(err, httperrors.ErrCodeStartFailed))
			}
			return
		}
		s.mu.Lock()
		abandoned := s.closed || s.mode != ModeSingle
		s.mu.Unlock()
		if abandoned {
			sp.Reset()
			return
		}
		if status == match.StartLoaded {
			s.deps.Metrics.QuestionLoad(ModeSingle, sp.Source(), time.Since(started).Seconds())
		}
		_ = s.send(ws.TypeStarted, ws.StartedPayload{Mode: ModeSingle, Status: string(status), Source: sp.Source()}, msg.RequestID)
	}()
	return nil
}

func (s *Session) handleFindMatch(msg ws.Message) error {
	var req ws.FindMatchPayload
	if err := msg.DecodePayload(&req); err != nil {
		return s.sendError(msg.RequestID, httperrors.New(httperrors.ErrCodeInvalidPayload, "Invalid find_match payload", err))
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.ticket != nil {
		s.mu.Unlock()
		return s.sendError(msg.RequestID, httperrors.New(httperrors.ErrCodeConflict, "Matchmaking already in progress", nil))
	}
	reset := s.teardownLocked()
	s.mode = ModeMulti
	ticket := s.deps.Matchmaker.Matchmake(s.ctx, matchmaking.Player{ID: s.player.ID, Username: s.player.Username}, req.Category)
	s.ticket = ticket
	s.mu.Unlock()
	reset()

	go s.awaitMatch(ticket, req.Category, msg.RequestID)
	return nil
}

func (s *Session) awaitMatch(t *matchmaking.Ticket, category, requestID string) {
	select {
	case <-t.Hosting():
		if pending, ok := t.Pending(); ok {
			_ = s.send(ws.TypeMatchmakingWaiting, ws.MatchmakingWaitingPayload{
				RoomID:   pending.RoomID.String(),
				Category: pending.Room.Category,
			}, requestID)
		}
		<-t.Done()
	case <-t.Done():
	}

	s.mu.Lock()
	if s.ticket == t {
		s.ticket = nil
	}
	s.mu.Unlock()

	res, err := t.Result()
	switch {
	case errors.Is(err, matchmaking.ErrMatchmakingTimeout):
		_ = s.send(ws.TypeMatchmakingTimeout, ws.MatchmakingTimeoutPayload{Reason: "no opponent joined in time"}, requestID)
		return
	case errors.Is(err, matchmaking.ErrCancelled), errors.Is(err, context.Canceled):
		return
	case err != nil:
		_ = s.sendError(requestID, classify(err, httperrors.ErrCodeMatchmakingFailed))
		return
	}

	r := res.Room
	_ = s.send(ws.TypeMatchFound, ws.MatchFoundPayload{
		RoomID:       res.RoomID.String(),
		PlayerNumber: res.PlayerNumber,
		Category:     r.Category,
		Players: []ws.Player{
			{PlayerID: r.Player1ID, Username: r.Player1Username},
			{PlayerID: r.Player2ID, Username: r.Player2Username},
		},
	}, requestID)

	if err := s.startMulti(res, category); err != nil && s.ctx.Err() == nil {
		_ = s.sendError(requestID, classify(err, httperrors.ErrCodeStartFailed))
	}
}

func (s *Session) startMulti(res matchmaking.Result, category string) error {
	s.mu.Lock()
	if s.closed || s.mode != ModeMulti {
		s.mu.Unlock()
		return nil
	}
	m := match.NewMultiplayer(s.deps.Multi, match.MultiplayerOptions{
		RoomID:        res.RoomID,
		PlayerID:      s.player.ID,
		Category:      category,
		OpponentGrace: s.opts.OpponentGrace,
		Engine: match.EngineOptions{
			Scorer:     s.deps.Scorer,
			AutoExpire: s.opts.AutoExpire,
			Logger:     s.logger,
		},
		OnUpdate: s.onMultiUpdate,
	})
	s.multi = m
	s.delivered = false
	s.mu.Unlock()

	if err := m.Start(s.ctx); err != nil {
		m.Close()
		s.mu.Lock()
		if s.multi == m {
			s.multi = nil
		}
		s.mu.Unlock()
		return err
	}
	return s.send(ws.TypeStarted, ws.StartedPayload{Mode: ModeMulti, Status: string(match.StartLoaded)}, "")
}

func (s *Session) handleCancelMatch() error {
	s.mu.Lock()
	t := s.ticket
	s.mu.Unlock()
	if t != nil {
		t.Cancel()
	}
	return nil
}

func (s *Session) handleSubmitAnswer(msg ws.Message) error {
	var req ws.SubmitAnswerPayload
	if err := msg.DecodePayload(&req); err != nil {
		return s.sendError(msg.RequestID, httperrors.New(httperrors.ErrCodeInvalidPayload, "Invalid submit_answer payload", err))
	}
	e, mode := s.engine()
	if e == nil {
		return s.sendError(msg.RequestID, httperrors.New(httperrors.ErrCodeNoActiveGame, "No game in progress", nil))
	}

	// Captured before submitting; the engine may end the game and move on.
	snap := e.Snapshot()
	res, err := e.SubmitAnswer(s.ctx, req.AnswerIndex)
	if err != nil {
		s.deps.Metrics.Answer(mode, "error")
		return s.sendError(msg.RequestID, classify(err, httperrors.ErrCodeSubmitFailed))
	}

	payload := ws.AnswerResultPayload{
		Accepted: res.Accepted,
		Correct:  res.Correct,
		Points:   res.Points,
		Reason:   res.Reason,
	}
	switch {
	case !res.Accepted:
		s.deps.Metrics.Answer(mode, "rejected")
	case res.Correct:
		s.deps.Metrics.Answer(mode, "correct")
	default:
		s.deps.Metrics.Answer(mode, "incorrect")
	}
	if res.Accepted && snap.Question != nil {
		correct := snap.Question.CorrectAnswer
		payload.CorrectAnswer = &correct
	}
	return s.send(ws.TypeAnswerResult, payload, msg.RequestID)
}

func (s *Session) withEngine(requestID string, fn func(e *match.Engine) error) error {
	e, _ := s.engine()
	if e == nil {
		return s.sendError(requestID, httperrors.New(httperrors.ErrCodeNoActiveGame, "No game in progress", nil))
	}
	if err := fn(e); err != nil {
		return s.sendError(requestID, classify(err, httperrors.ErrCodeSubmitFailed))
	}
	return nil
}

func (s *Session) engine() (*match.Engine, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.mode == ModeSingle && s.single != nil:
		return s.single.Engine, ModeSingle
	case s.mode == ModeMulti && s.multi != nil:
		return s.multi.Engine, ModeMulti
	default:
		return nil, ""
	}
}

func (s *Session) handleCalculateResults(requestID string) error {
	s.mu.Lock()
	mode, sp := s.mode, s.single
	s.mu.Unlock()

	switch {
	case mode == ModeSingle && sp != nil:
		sp.End(s.ctx)
		res, ok := sp.Result()
		if !ok {
			return s.sendError(requestID, httperrors.New(httperrors.ErrCodeNoActiveGame, "No game to score", nil))
		}
		return s.send(ws.TypeResults, ResultsPayload{Mode: ModeSingle, Final: true, Single: &res}, requestID)
	case mode == ModeMulti:
		s.mu.Lock()
		m := s.multi
		s.mu.Unlock()
		if m == nil {
			return s.sendError(requestID, httperrors.New(httperrors.ErrCodeNoActiveGame, "No game to score", nil))
		}
		go s.finalize(requestID)
		return nil
	default:
		return s.sendError(requestID, httperrors.New(httperrors.ErrCodeNoActiveGame, "No game to score", nil))
	}
}

// finalize computes multiplayer results and sends them. Provisional results are re-checked when
// the opponent finishes, when the room completes elsewhere and once the grace period runs out.
func (s *Session) finalize(requestID string) {
	s.mu.Lock()
	if s.finalizing {
		s.rerun = true
		s.mu.Unlock()
		return
	}
	s.finalizing = true
	s.mu.Unlock()

	for {
		s.mu.Lock()
		m, done := s.multi, s.delivered
		s.rerun = false
		s.mu.Unlock()
		if m == nil || done || s.ctx.Err() != nil {
			break
		}

		res, err := m.CalculateResults(s.ctx)
		if err != nil {
			_ = s.sendError(requestID, classify(err, httperrors.ErrCodeResultsFailed))
		} else {
			_ = s.send(ws.TypeResults, ResultsPayload{Mode: ModeMulti, Final: res.Final, Multi: &res}, requestID)
			s.afterResults(m, res)
		}

		s.mu.Lock()
		again := s.rerun && !s.delivered
		s.mu.Unlock()
		if !again {
			break
		}
	}

	s.mu.Lock()
	s.finalizing = false
	s.mu.Unlock()
}

func (s *Session) afterResults(m *match.Multiplayer, res match.MultiplayerResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.multi != m {
		return
	}
	if res.Final {
		s.delivered = true
		if s.recheck != nil {
			s.recheck.Stop()
			s.recheck = nil
		}
		// One count per room: the winner reports it, or the host on a tie.
		switch {
		case res.Outcome == scoring.OutcomeWin:
			s.deps.Metrics.RoomCompleted("decided")
		case res.Outcome == scoring.OutcomeTie && res.Self.Slot == 1:
			s.deps.Metrics.RoomCompleted("tie")
		}
		return
	}
	if s.recheck == nil && !s.closed {
		grace := s.opts.OpponentGrace
		if grace <= 0 {
			grace = 2 * time.Minute
		}
		s.recheck = time.AfterFunc(grace, func() {
			s.mu.Lock()
			s.recheck = nil
			s.mu.Unlock()
			s.finalize("")
		})
	}
}

func (s *Session) onMultiUpdate(snap match.MultiSnapshot) {
	s.pushMultiState(snap)

	s.mu.Lock()
	waiting := s.multi != nil && !s.delivered && (s.recheck != nil || s.finalizing)
	s.mu.Unlock()

	opponentDone := snap.Total > 0 && snap.OpponentLatestIndex >= snap.Total-1
	roomDone := snap.RoomStatus == room.StatusCompleted
	if roomDone || (waiting && opponentDone) {
		go s.finalize("")
	}
}

func (s *Session) pushState() {
	s.mu.Lock()
	sp, mode := s.single, s.mode
	s.mu.Unlock()
	if sp == nil || mode != ModeSingle {
		return
	}
	_ = s.send(ws.TypeState, singleView(sp.Snapshot()), "")
}

func (s *Session) pushMultiState(snap match.MultiSnapshot) {
	_ = s.send(ws.TypeState, multiView(snap), "")
}

// teardown stops whatever game or matchmaking attempt is running.
func (s *Session) teardown() {
	s.mu.Lock()
	reset := s.teardownLocked()
	s.mu.Unlock()
	reset()
}

// teardownLocked detaches the current game. The returned func resets the single-player
// engine and must run without s.mu held.
func (s *Session) teardownLocked() func() {
	reset := func() {}
	if s.ticket != nil {
		s.ticket.Cancel()
		s.ticket = nil
	}
	if s.multi != nil {
		s.multi.Close()
		s.multi = nil
	}
	if s.recheck != nil {
		s.recheck.Stop()
		s.recheck = nil
	}
	if s.single != nil && s.mode == ModeSingle {
		reset = s.single.Reset
	}
	s.mode = ""
	s.delivered = false
	return reset
}

// Close tears the session down. Later callbacks send nothing.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	reset := s.teardownLocked()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	reset()
}

func (s *Session) send(t string, payload any, requestID string) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil
	}
	msg, err := ws.NewMessage(t, payload, requestID)
	if err != nil {
		s.logger.Error().Err(err).Str("type", t).Msg("encode message")
		return err
	}
	if err := s.out.Send(msg); err != nil {
		s.logger.Debug().Err(err).Str("type", t).Msg("send failed")
		return err
	}
	return nil
}

func (s *Session) sendError(requestID string, e *httperrors.Error) error {
	if e.Err != nil {
		s.logger.Warn().Err(e.Err).Str("code", e.Code).Msg("request failed")
	}
	return s.send(ws.TypeError, ws.ErrorPayload{Code: e.Code, Message: e.Message}, requestID)
}
