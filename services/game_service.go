// services/game_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/liargame/config"
	"github.com/wfunc/liargame/game"
	"github.com/wfunc/liargame/logger"
	"github.com/wfunc/liargame/models"
	"github.com/wfunc/liargame/persistence"
	"github.com/wfunc/liargame/session"
	"github.com/wfunc/liargame/turn"
)

// GameService runs one request against a session: lock, load, apply the
// human action, advance the bots, save, record.
type GameService struct {
	store    persistence.Store
	locks    *session.Registry
	words    game.WordSource
	rnd      game.Random
	cfg      config.GameConfig
	metrics  Metrics
	notifier Notifier
	advancer *turn.Advancer
}

type Option func(*GameService)

func WithRandom(rnd game.Random) Option {
	return func(s *GameService) { s.rnd = rnd }
}

func WithMetrics(m Metrics) Option {
	return func(s *GameService) { s.metrics = m }
}

func WithNotifier(n Notifier) Option {
	return func(s *GameService) { s.notifier = n }
}

func WithGameConfig(cfg config.GameConfig) Option {
	return func(s *GameService) { s.cfg = cfg }
}

func NewGameService(store persistence.Store, locks *session.Registry, gen turn.TextGenerator, words game.WordSource, opts ...Option) *GameService {
	s := &GameService{
		store:    store,
		locks:    locks,
		words:    words,
		cfg:      config.Defaults().Game,
		metrics:  nopMetrics{},
		notifier: nopNotifier{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rnd == nil {
		s.rnd = game.NewRandom(0)
	}
	s.advancer = turn.NewAdvancer(gen, s.rnd, policyFrom(s.cfg))
	return s
}

func policyFrom(cfg config.GameConfig) turn.Policy {
	return turn.Policy{
		AmbiguousPool:     cfg.AmbiguousBots,
		FixedDescriptions: cfg.FixedDescriptionMap(),
		Authoritative:     cfg.Authoritative,
		SupporterCount:    cfg.SupporterCount,
		DecoyLine:         cfg.DecoyLine,
	}
}

func (s *GameService) acquire(ctx context.Context, sessionID string) (*session.Lock, error) {
	start := time.Now()
	lock, err := s.locks.Acquire(ctx, sessionID, s.cfg.LockTimeout)
	s.metrics.ObserveLockWait(time.Since(start), err == nil)
	return lock, err
}

func (s *GameService) load(ctx context.Context, sessionID string) (*models.SessionState, *game.RoundState, error) {
	state, err := s.store.LoadSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, persistence.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		if errors.Is(err, persistence.ErrCorruptState) {
			logger.Log.Errorf("Session %s holds a corrupt envelope: %v", sessionID, err)
			return nil, nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
		}
		return nil, nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if len(state.Round) == 0 {
		return nil, nil, fmt.Errorf("%w: %s has no round", ErrInvalidSession, sessionID)
	}
	round, err := game.Decode(state.Round)
	if err != nil {
		logger.Log.Errorf("Session %s holds a corrupt round: %v", sessionID, err)
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	round.Bind(s.words, s.rnd)
	if state.VotesCast == nil {
		state.VotesCast = make(map[string]string)
	}
	return state, round, nil
}

func (s *GameService) save(ctx context.Context, sessionID string, state *models.SessionState, round *game.RoundState) error {
	data, err := round.Encode()
	if err != nil {
		return fmt.Errorf("encode round: %w", err)
	}
	state.Round = data
	state.Phase = round.Phase().String()
	state.MidCheckDone = round.MidCheckDone()
	if err := s.store.SaveSession(ctx, sessionID, state); err != nil {
		return fmt.Errorf("save session %s: %w", sessionID, err)
	}
	return nil
}

// record writes an audit event. Failures are logged and never fail the
// request.
func (s *GameService) record(ctx context.Context, sessionID, eventType string, payload map[string]any) {
	err := s.store.RecordEvent(ctx, models.Event{
		SessionID: sessionID,
		Type:      eventType,
		Payload:   payload,
		CreatedAt: time.Now(),
	})
	if err != nil {
		logger.Log.Warnf("Record %s for session %s failed: %v", eventType, sessionID, err)
	}
}

func (s *GameService) transcript(ctx context.Context, sessionID string, msg turn.Message) {
	err := s.store.AppendTranscript(ctx, models.TranscriptMessage{
		SessionID: sessionID,
		Sender:    msg.Sender,
		Name:      msg.Name,
		Content:   msg.Content,
		Phase:     msg.Phase.String(),
		CreatedAt: time.Now(),
	})
	if err != nil {
		logger.Log.Warnf("Append transcript for session %s failed: %v", sessionID, err)
	}
}

// StartRound builds the roster, starts a round and saves it. An empty
// SessionID gets a fresh one. An existing session is replaced.
func (s *GameService) StartRound(ctx context.Context, req StartRequest) (*StepResult, error) {
	human := strings.TrimSpace(req.ParticipantName)
	if human == "" {
		return nil, fmt.Errorf("%w: missing participantName", ErrInvalidAction)
	}
	aiCount := req.AICount
	if aiCount <= 0 {
		aiCount = s.cfg.AICount
	}
	if aiCount < 2 {
		return nil, fmt.Errorf("%w: aiCount must be >= 2, got %d", ErrInvalidAction, aiCount)
	}
	useDecoy := s.cfg.UseDecoy
	if req.UseDecoy != nil {
		useDecoy = *req.UseDecoy
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	lock, err := s.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	round := game.NewRoundState(s.words, s.rnd)
	if err := round.AddParticipant(human, false); err != nil {
		return nil, err
	}
	for i := 1; i <= aiCount; i++ {
		if err := round.AddParticipant(s.cfg.BotPrefix+strconv.Itoa(i), true); err != nil {
			return nil, err
		}
	}
	if err := round.StartRound(1, useDecoy); err != nil {
		return nil, err
	}

	state := &models.SessionState{
		ParticipantName: human,
		VotesCast:       make(map[string]string),
		AICount:         aiCount,
		UseDecoy:        useDecoy,
	}
	if err := s.save(ctx, sessionID, state, round); err != nil {
		return nil, err
	}
	s.recordStarted(ctx, sessionID, human, round, aiCount, useDecoy)
	s.metrics.RoundStarted()

	return &StepResult{
		SessionID: sessionID,
		View:      round.View(human),
		Messages:  []turn.Message{},
	}, nil
}

func (s *GameService) recordStarted(ctx context.Context, sessionID, human string, round *game.RoundState, aiCount int, useDecoy bool) {
	s.record(ctx, sessionID, models.EventGameStarted, map[string]any{
		"participantName": human,
		"round":           round.Round(),
		"aiCount":         aiCount,
		"useDecoy":        useDecoy,
		"category":        round.Category(),
		"keyword":         round.Keyword(),
		"liar":            round.Liar(),
		"decoy":           round.Decoy(),
		"turnOrder":       round.TurnOrder(),
	})
}

// Step applies one human action, then advances the automated participants.
// A rejected action changes nothing and saves nothing.
func (s *GameService) Step(ctx context.Context, req StepRequest) (*StepResult, error) {
	if req.SessionID == "" {
		return nil, fmt.Errorf("%w: missing sessionId", ErrInvalidAction)
	}
	lock, err := s.acquire(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	state, round, err := s.load(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	human := state.ParticipantName
	startPhase := round.Phase()

	msg, event, err := s.applyHuman(round, state, human, req.Action)
	if err != nil {
		logger.Log.Infof("Session %s: %s by %s rejected: %v", req.SessionID, req.Action.Type, human, err)
		return nil, err
	}

	res := s.advancer.Advance(ctx, round, human, s.budget(req.Action), state.VotesCast)

	if err := s.save(ctx, req.SessionID, state, round); err != nil {
		return nil, err
	}

	messages := make([]turn.Message, 0, len(res.Messages)+1)
	if event != nil {
		s.record(ctx, req.SessionID, event.Type, event.Payload)
	}
	if msg != nil {
		s.transcript(ctx, req.SessionID, *msg)
		messages = append(messages, *msg)
	}
	s.recordAI(ctx, req.SessionID, res)
	messages = append(messages, res.Messages...)

	out := &StepResult{
		SessionID: req.SessionID,
		View:      round.View(human),
		Messages:  messages,
		Need:      need(round),
		Stop:      res.Stop,
	}
	if result, ok := round.Result(); ok {
		out.Result = out.View.Result
		if startPhase != game.PhaseEnded {
			s.record(ctx, req.SessionID, models.EventGameEnded, map[string]any{
				"winnerSide": result.WinnerSide,
				"liar":       result.Liar,
				"suspect":    result.Suspect,
				"keyword":    result.Keyword,
				"category":   result.Category,
				"votes":      state.VotesCast,
				"tally":      result.Votes,
			})
			s.metrics.RoundEnded(result.WinnerSide)
			logger.Log.Infof("Session %s ended: %s wins (liar %s, suspect %s)", req.SessionID, result.WinnerSide, result.Liar, result.Suspect)
		}
	}
	s.metrics.ObserveStep(req.Action.Type, res.Steps, res.Stop)

	// Watchers are served outside the session lock.
	lock.Release()
	s.notify(req.SessionID, round, messages)
	return out, nil
}

func (s *GameService) budget(action Action) int {
	if action.MaxAISteps != nil {
		if *action.MaxAISteps < 0 {
			return turn.Unbounded
		}
		return *action.MaxAISteps
	}
	if action.Type == ActionNoop {
		return s.cfg.NoopSteps
	}
	return turn.Unbounded
}

// applyHuman applies the action to round. It returns the transcript line
// and audit event of the action, either of which may be nil.
func (s *GameService) applyHuman(round *game.RoundState, state *models.SessionState, human string, action Action) (*turn.Message, *models.Event, error) {
	text := strings.TrimSpace(action.Text)
	switch action.Type {
	case ActionDescription:
		if text == "" {
			return nil, nil, fmt.Errorf("%w: missing description text", ErrInvalidAction)
		}
		if err := round.SubmitDescription(human, text); err != nil {
			return nil, nil, err
		}
		return humanLine(human, text, game.PhaseDescription),
			&models.Event{Type: models.EventHumanDescribe, Payload: map[string]any{"by": human, "text": text}}, nil

	case ActionDiscussion:
		if text == "" {
			return nil, nil, fmt.Errorf("%w: missing discussion text", ErrInvalidAction)
		}
		if round.Phase() == game.PhaseDiscussion && !round.MidCheckDone() {
			return nil, nil, ErrCheckpointPending
		}
		if err := round.SubmitDiscussion(human, text); err != nil {
			return nil, nil, err
		}
		return humanLine(human, text, game.PhaseDiscussion),
			&models.Event{Type: models.EventHumanDiscuss, Payload: map[string]any{"by": human, "text": text}}, nil

	case ActionMidCheck:
		suspect := strings.TrimSpace(action.SuspectName)
		if err := round.RecordMidCheckpoint(suspect, action.Confidence); err != nil {
			return nil, nil, err
		}
		payload := map[string]any{"suspectName": suspect, "turnOrder": round.TurnOrder()}
		if action.Confidence != nil {
			payload["confidence"] = *action.Confidence
		}
		return nil, &models.Event{Type: models.EventHumanMidCheck, Payload: payload}, nil

	case ActionVote:
		target := strings.TrimSpace(action.TargetName)
		if target == "" {
			return nil, nil, fmt.Errorf("%w: missing targetName", ErrInvalidAction)
		}
		if err := round.CastVote(human, target); err != nil {
			return nil, nil, err
		}
		state.VotesCast[human] = target
		payload := map[string]any{"by": human, "target": target}
		if action.Confidence != nil {
			payload["confidence"] = *action.Confidence
		}
		return nil, &models.Event{Type: models.EventHumanVote, Payload: payload}, nil

	case ActionFinalGuess:
		guess := strings.TrimSpace(action.Guess)
		if guess == "" {
			guess = text
		}
		if guess == "" {
			return nil, nil, fmt.Errorf("%w: missing guess", ErrInvalidAction)
		}
		if err := round.SubmitFinalGuess(human, guess); err != nil {
			return nil, nil, err
		}
		return humanLine(human, turn.FinalGuessPrefix+guess, game.PhaseFinalGuess),
			&models.Event{Type: models.EventHumanGuess, Payload: map[string]any{"by": human, "guess": guess}}, nil

	case ActionNoop:
		return nil, nil, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown action type %q", ErrInvalidAction, action.Type)
	}
}

func humanLine(name, content string, phase game.Phase) *turn.Message {
	return &turn.Message{Sender: SenderHuman, Name: name, Content: content, Phase: phase}
}

var aiEvents = map[turn.ActionKind]string{
	turn.ActionDescription: models.EventAIDescribe,
	turn.ActionDiscussion:  models.EventAIDiscuss,
	turn.ActionVote:        models.EventAIVote,
	turn.ActionFinalGuess:  models.EventAIGuess,
}

func (s *GameService) recordAI(ctx context.Context, sessionID string, res turn.Result) {
	for _, a := range res.Actions {
		payload := map[string]any{"by": a.By, "fallback": a.Fallback}
		switch a.Kind {
		case turn.ActionVote:
			payload["target"] = a.Target
		case turn.ActionDiscussion:
			payload["text"] = a.Text
			payload["stance"] = a.Stance
			payload["target"] = a.Target
		default:
			payload["text"] = a.Text
		}
		s.record(ctx, sessionID, aiEvents[a.Kind], payload)
	}
	for _, m := range res.Messages {
		s.transcript(ctx, sessionID, m)
	}
}

func (s *GameService) notify(sessionID string, round *game.RoundState, messages []turn.Message) {
	update := Update{SessionID: sessionID, Phase: round.Phase(), Messages: messages}
	if result, ok := round.Result(); ok {
		update.Result = &result
	}
	s.notifier.Notify(update)
}

func need(round *game.RoundState) string {
	if round.Phase() == game.PhaseDiscussion && !round.MidCheckDone() {
		return NeedMidCheck
	}
	return ""
}

// View presents the session to viewer, the session's human when empty.
func (s *GameService) View(ctx context.Context, sessionID, viewer string) (*StepResult, error) {
	lock, err := s.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	state, round, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if viewer == "" {
		viewer = state.ParticipantName
	}
	view := round.View(viewer)
	return &StepResult{
		SessionID: sessionID,
		View:      view,
		Messages:  []turn.Message{},
		Need:      need(round),
		Result:    view.Result,
	}, nil
}

// Reset starts the next round with the same roster.
func (s *GameService) Reset(ctx context.Context, sessionID string) (*StepResult, error) {
	lock, err := s.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	state, round, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	previous := round.Phase()
	round.ResetForNextRound()
	if err := round.StartRound(1, state.UseDecoy); err != nil {
		return nil, err
	}
	state.VotesCast = make(map[string]string)
	if err := s.save(ctx, sessionID, state, round); err != nil {
		return nil, err
	}

	s.record(ctx, sessionID, models.EventGameReset, map[string]any{"round": round.Round(), "from": previous})
	s.recordStarted(ctx, sessionID, state.ParticipantName, round, state.AICount, state.UseDecoy)
	s.metrics.RoundStarted()

	lock.Release()
	s.notify(sessionID, round, nil)

	return &StepResult{
		SessionID: sessionID,
		View:      round.View(state.ParticipantName),
		Messages:  []turn.Message{},
	}, nil
}

// Events returns the audit trail of a session.
func (s *GameService) Events(ctx context.Context, sessionID string) ([]models.Event, error) {
	return s.store.ListEvents(ctx, sessionID)
}

func (s *GameService) Transcript(ctx context.Context, sessionID string) ([]models.TranscriptMessage, error) {
	return s.store.ListTranscript(ctx, sessionID)
}
