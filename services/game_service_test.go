package services

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/liargame/config"
	"github.com/wfunc/liargame/game"
	"github.com/wfunc/liargame/models"
	"github.com/wfunc/liargame/persistence"
	"github.com/wfunc/liargame/session"
	"github.com/wfunc/liargame/turn"
)

const human = "Alice"

type MockGenerator struct{}

func (MockGenerator) Describe(_ context.Context, req turn.DescribeRequest) (string, error) {
	return req.Speaker + " describes", nil
}

func (MockGenerator) Discuss(_ context.Context, req turn.DiscussRequest) (string, error) {
	return req.Speaker + " suspects " + req.Target, nil
}

func (MockGenerator) Vote(_ context.Context, req turn.VoteRequest) (string, error) {
	return req.Candidates[0], nil
}

func (MockGenerator) FinalGuess(context.Context, turn.GuessRequest) (string, error) {
	return "Banana", nil
}

type fixedWords struct{}

func (fixedWords) PickTopic() (string, string, bool) { return "Fruit", "Apple", true }

type MockNotifier struct {
	mu      sync.Mutex
	Updates []Update
}

func (m *MockNotifier) Notify(u Update) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Updates = append(m.Updates, u)
}

type MockMetrics struct {
	LockWaits int
	Steps     int
	Started   int
	Ended     []game.Role
}

func (m *MockMetrics) ObserveLockWait(time.Duration, bool) { m.LockWaits++ }
func (m *MockMetrics) ObserveStep(string, int, turn.StopReason) { m.Steps++ }
func (m *MockMetrics) RoundStarted() { m.Started++ }
func (m *MockMetrics) RoundEnded(w game.Role) { m.Ended = append(m.Ended, w) }

// failingStore loses every event and transcript line.
type failingStore struct {
	*persistence.Memory
}

func (failingStore) RecordEvent(context.Context, models.Event) error {
	return errors.New("disk full")
}

func (failingStore) AppendTranscript(context.Context, models.TranscriptMessage) error {
	return errors.New("disk full")
}

type fixture struct {
	svc     *GameService
	store   *persistence.Memory
	locks   *session.Registry
	notify  *MockNotifier
	metrics *MockMetrics
}

func newFixture(t *testing.T, seed int64, mutate ...func(*config.GameConfig)) *fixture {
	t.Helper()
	cfg := config.Defaults().Game
	cfg.UseDecoy = false
	cfg.LockTimeout = time.Second
	for _, m := range mutate {
		m(&cfg)
	}
	f := &fixture{
		store:   persistence.NewMemory(),
		locks:   session.NewRegistry(),
		notify:  &MockNotifier{},
		metrics: &MockMetrics{},
	}
	f.svc = NewGameService(f.store, f.locks, MockGenerator{}, fixedWords{},
		WithRandom(rand.New(rand.NewSource(seed))),
		WithGameConfig(cfg),
		WithNotifier(f.notify),
		WithMetrics(f.metrics),
	)
	return f
}

func (f *fixture) start(t *testing.T) *StepResult {
	t.Helper()
	res, err := f.svc.StartRound(context.Background(), StartRequest{SessionID: "s1", ParticipantName: human})
	if err != nil {
		t.Fatalf("StartRound: %v", err)
	}
	return res
}

func (f *fixture) step(t *testing.T, action Action) *StepResult {
	t.Helper()
	res, err := f.svc.Step(context.Background(), StepRequest{SessionID: "s1", Action: action})
	if err != nil {
		t.Fatalf("Step(%s): %v", action.Type, err)
	}
	return res
}

func (f *fixture) round(t *testing.T) *game.RoundState {
	t.Helper()
	state, err := f.store.LoadSession(context.Background(), "s1")
	if err != nil {
		t.Fatal(err)
	}
	r, err := game.Decode(state.Round)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func (f *fixture) events(t *testing.T, typ string) []models.Event {
	t.Helper()
	all, err := f.store.ListEvents(context.Background(), "s1")
	if err != nil {
		t.Fatal(err)
	}
	var out []models.Event
	for _, e := range all {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func humanVoted(v game.View) bool {
	for _, p := range v.Public.Participants {
		if p.Name == human {
			return p.HasVoted
		}
	}
	return false
}

// nextAction picks what the human does given the last response.
func nextAction(res *StepResult) Action {
	v := res.View
	switch {
	case res.Need == NeedMidCheck:
		return Action{Type: ActionMidCheck, SuspectName: "Bot_2"}
	case v.Phase == game.PhaseDescription && v.Public.Current == human:
		return Action{Type: ActionDescription, Text: "it is round"}
	case v.Phase == game.PhaseDiscussion && v.Public.Current == human:
		return Action{Type: ActionDiscussion, Text: "Bot_2 sounds off"}
	case v.Phase == game.PhaseVoting && !humanVoted(v):
		return Action{Type: ActionVote, TargetName: "Bot_1"}
	case v.Phase == game.PhaseFinalGuess && v.Private.Role == game.RoleLiar:
		return Action{Type: ActionFinalGuess, Guess: "Apple"}
	default:
		return Action{Type: ActionNoop}
	}
}

// play drives the session to ENDED and returns every response.
func (f *fixture) play(t *testing.T, res *StepResult) []*StepResult {
	t.Helper()
	var all []*StepResult
	for i := 0; res.View.Phase != game.PhaseEnded; i++ {
		if i > 200 {
			t.Fatalf("round did not end, stuck in %s (need %q)", res.View.Phase, res.Need)
		}
		res = f.step(t, nextAction(res))
		all = append(all, res)
	}
	return all
}

func TestStartRound(t *testing.T) {
	f := newFixture(t, 1)
	res := f.start(t)

	if res.SessionID != "s1" || res.View.Phase != game.PhaseDescription {
		t.Fatalf("start = %s %s", res.SessionID, res.View.Phase)
	}
	if len(res.View.Public.Participants) != 5 {
		t.Errorf("participants = %d, want 5", len(res.View.Public.Participants))
	}
	if res.View.Private.Name != human {
		t.Errorf("view is for %q", res.View.Private.Name)
	}
	started := f.events(t, models.EventGameStarted)
	if len(started) != 1 || started[0].Payload["keyword"] != "Apple" {
		t.Errorf("GAME_STARTED events = %+v", started)
	}
	if f.metrics.Started != 1 {
		t.Errorf("RoundStarted called %d times", f.metrics.Started)
	}

	state, err := f.store.LoadSession(context.Background(), "s1")
	if err != nil {
		t.Fatal(err)
	}
	if state.ParticipantName != human || state.Phase != "DESCRIPTION" || state.AICount != 4 {
		t.Errorf("saved state %+v", state)
	}
}

func TestStartRound_GeneratesSessionID(t *testing.T) {
	f := newFixture(t, 1)
	res, err := f.svc.StartRound(context.Background(), StartRequest{ParticipantName: human, AICount: 3})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := uuid.Parse(res.SessionID); err != nil {
		t.Errorf("session id %q is not a uuid", res.SessionID)
	}
	if len(res.View.Public.Participants) != 4 {
		t.Errorf("participants = %d, want 4", len(res.View.Public.Participants))
	}
}

func TestStartRound_Invalid(t *testing.T) {
	f := newFixture(t, 1)
	tests := []struct {
		name string
		req  StartRequest
		want error
	}{
		{"missing name", StartRequest{ParticipantName: "  "}, ErrInvalidAction},
		{"too few bots", StartRequest{ParticipantName: human, AICount: 1}, ErrInvalidAction},
		{"name clashes with a bot", StartRequest{ParticipantName: "Bot_2"}, game.ErrDuplicateParticipant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.StartRound(context.Background(), tt.req); !errors.Is(err, tt.want) {
				t.Errorf("StartRound = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStep_PlaysToTheEnd(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		f := newFixture(t, seed)
		all := f.play(t, f.start(t))
		last := all[len(all)-1]

		if last.Result == nil {
			t.Fatalf("seed %d: ended without a result", seed)
		}
		if ended := f.events(t, models.EventGameEnded); len(ended) != 1 {
			t.Errorf("seed %d: %d GAME_ENDED events, want 1", seed, len(ended))
		}
		if len(f.metrics.Ended) != 1 {
			t.Errorf("seed %d: RoundEnded called %d times", seed, len(f.metrics.Ended))
		}
		if n := len(f.events(t, models.EventHumanMidCheck)); n != 1 {
			t.Errorf("seed %d: %d mid-check events", seed, n)
		}
		if n := len(f.events(t, models.EventAIVote)); n != 4 {
			t.Errorf("seed %d: %d AI vote events, want 4", seed, n)
		}

		state, _ := f.store.LoadSession(context.Background(), "s1")
		if len(state.VotesCast) != 5 || state.VotesCast[human] != "Bot_1" {
			t.Errorf("seed %d: votes cast %v", seed, state.VotesCast)
		}
		transcript, _ := f.store.ListTranscript(context.Background(), "s1")
		if len(transcript) < 10 {
			t.Errorf("seed %d: transcript has %d lines, want descriptions and discussion", seed, len(transcript))
		}

		// A noop after the end changes nothing and records no second ending.
		after := f.step(t, Action{Type: ActionNoop})
		if after.Stop != turn.StopEnded || len(f.events(t, models.EventGameEnded)) != 1 {
			t.Errorf("seed %d: step after end stop=%s", seed, after.Stop)
		}
	}
}

func TestStep_NoopBudget(t *testing.T) {
	f := newFixture(t, 3)
	f.start(t)
	r := f.round(t)
	if cur, _ := r.CurrentParticipant(); cur.Name == human {
		f.step(t, Action{Type: ActionDescription, Text: "round and red"})
	}

	res := f.step(t, Action{Type: ActionNoop})
	if len(res.Messages) > 1 {
		t.Errorf("noop ran %d turns, want at most 1", len(res.Messages))
	}

	zero := 0
	res = f.step(t, Action{Type: ActionNoop, MaxAISteps: &zero})
	if len(res.Messages) != 0 || res.Stop != turn.StopNoBudget {
		t.Errorf("zero budget: %d messages, stop %s", len(res.Messages), res.Stop)
	}
}

func TestStep_NeedsMidCheck(t *testing.T) {
	f := newFixture(t, 5)
	res := f.start(t)
	for res.View.Phase == game.PhaseDescription {
		res = f.step(t, nextAction(res))
	}
	if res.Need != NeedMidCheck {
		t.Fatalf("Need = %q in %s", res.Need, res.View.Phase)
	}

	_, err := f.svc.Step(context.Background(), StepRequest{SessionID: "s1", Action: Action{Type: ActionDiscussion, Text: "hmm"}})
	if !errors.Is(err, ErrCheckpointPending) || !errors.Is(err, game.ErrInvalidPrecondition) {
		t.Errorf("discussion before mid-check = %v", err)
	}

	res = f.step(t, Action{Type: ActionMidCheck, SuspectName: "Bot_3"})
	if res.Need != "" {
		t.Errorf("Need after mid-check = %q", res.Need)
	}
	order := res.View.Public.TurnOrder
	if order[0] != human {
		t.Errorf("human should open the discussion, order %v", order)
	}
	if res.Stop != turn.StopHumanTurn {
		t.Errorf("stop = %s, want human_turn", res.Stop)
	}
}

func TestStep_RejectionsLeaveStateUnchanged(t *testing.T) {
	f := newFixture(t, 7)
	f.start(t)
	before, _ := f.store.LoadSession(context.Background(), "s1")

	tests := []struct {
		name   string
		action Action
		want   error
	}{
		{"vote during description", Action{Type: ActionVote, TargetName: "Bot_1"}, game.ErrWrongPhase},
		{"missing text", Action{Type: ActionDescription, Text: " "}, ErrInvalidAction},
		{"missing target", Action{Type: ActionVote}, ErrInvalidAction},
		{"missing guess", Action{Type: ActionFinalGuess}, ErrInvalidAction},
		{"unknown type", Action{Type: "dance"}, ErrInvalidAction},
		{"guess during description", Action{Type: ActionFinalGuess, Guess: "Apple"}, game.ErrWrongPhase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Step(context.Background(), StepRequest{SessionID: "s1", Action: tt.action})
			if !errors.Is(err, tt.want) {
				t.Fatalf("Step = %v, want %v", err, tt.want)
			}
		})
	}

	after, _ := f.store.LoadSession(context.Background(), "s1")
	if string(after.Round) != string(before.Round) {
		t.Error("rejected actions changed the saved round")
	}
}

func TestStep_NotYourTurn(t *testing.T) {
	for seed := int64(1); seed < 100; seed++ {
		f := newFixture(t, seed)
		res := f.start(t)
		if res.View.Public.Current == human {
			continue
		}
		_, err := f.svc.Step(context.Background(), StepRequest{SessionID: "s1", Action: Action{Type: ActionDescription, Text: "mine"}})
		if !errors.Is(err, game.ErrNotYourTurn) {
			t.Fatalf("out of turn description = %v", err)
		}
		return
	}
	t.Fatal("no seed starts with a bot")
}

func TestStep_SessionErrors(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	if _, err := f.svc.Step(ctx, StepRequest{SessionID: "nope", Action: Action{Type: ActionNoop}}); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("missing session = %v", err)
	}
	if _, err := f.svc.Step(ctx, StepRequest{Action: Action{Type: ActionNoop}}); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("missing session id = %v", err)
	}

	f.store.PutRaw("bad", []byte(`{"participant_name":"Alice","round":{"phase":"BOGUS","current_round":1}}`))
	_, err := f.svc.Step(ctx, StepRequest{SessionID: "bad", Action: Action{Type: ActionNoop}})
	if !errors.Is(err, ErrInvalidSession) || !errors.Is(err, game.ErrDataCorruption) {
		t.Errorf("corrupt session = %v", err)
	}

	f.store.PutRaw("broken", []byte(`{"participant_name":`))
	_, err = f.svc.Step(ctx, StepRequest{SessionID: "broken", Action: Action{Type: ActionNoop}})
	if !errors.Is(err, ErrInvalidSession) || !errors.Is(err, persistence.ErrCorruptState) {
		t.Errorf("unparsable envelope = %v", err)
	}
	if _, err := f.svc.View(ctx, "broken", ""); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("view of unparsable envelope = %v", err)
	}

	f.store.PutRaw("empty", []byte(`{"participant_name":"Alice"}`))
	if _, err := f.svc.View(ctx, "empty", ""); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("session without round = %v", err)
	}
}

func TestStep_Busy(t *testing.T) {
	f := newFixture(t, 1, func(c *config.GameConfig) { c.LockTimeout = 20 * time.Millisecond })
	f.start(t)

	held, err := f.locks.Acquire(context.Background(), "s1", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.Step(context.Background(), StepRequest{SessionID: "s1", Action: Action{Type: ActionNoop}})
	if !errors.Is(err, session.ErrSessionBusy) {
		t.Errorf("Step while locked = %v, want ErrSessionBusy", err)
	}
	held.Release()

	if _, err := f.svc.Step(context.Background(), StepRequest{SessionID: "s1", Action: Action{Type: ActionNoop}}); err != nil {
		t.Errorf("Step after release: %v", err)
	}
}

func TestView(t *testing.T) {
	f := newFixture(t, 2)
	f.start(t)
	liar := f.round(t).Liar()
	ctx := context.Background()

	res, err := f.svc.View(ctx, "s1", liar)
	if err != nil {
		t.Fatal(err)
	}
	if res.View.Private.Keyword != game.HiddenKeyword {
		t.Errorf("liar sees keyword %q", res.View.Private.Keyword)
	}

	res, err = f.svc.View(ctx, "s1", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.View.Private.Name != human {
		t.Errorf("default viewer = %q", res.View.Private.Name)
	}
	if _, err := f.svc.View(ctx, "missing", ""); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("View(missing) = %v", err)
	}
}

func TestReset(t *testing.T) {
	f := newFixture(t, 4)
	f.play(t, f.start(t))

	res, err := f.svc.Reset(context.Background(), "s1")
	if err != nil {
		t.Fatal(err)
	}
	if res.View.Phase != game.PhaseDescription || res.View.Public.Round != 2 {
		t.Errorf("after reset: %s round %d", res.View.Phase, res.View.Public.Round)
	}
	state, _ := f.store.LoadSession(context.Background(), "s1")
	if len(state.VotesCast) != 0 || state.MidCheckDone {
		t.Errorf("reset kept round data: %+v", state)
	}
	if len(f.events(t, models.EventGameReset)) != 1 || len(f.events(t, models.EventGameStarted)) != 2 {
		t.Error("reset should record GAME_RESET and a second GAME_STARTED")
	}

	// The second round plays out like the first.
	f.play(t, res)
}

func TestStep_NotifiesWatchers(t *testing.T) {
	f := newFixture(t, 6)
	all := f.play(t, f.start(t))

	if len(f.notify.Updates) != len(all) {
		t.Fatalf("%d updates for %d steps", len(f.notify.Updates), len(all))
	}
	last := f.notify.Updates[len(f.notify.Updates)-1]
	if last.Phase != game.PhaseEnded || last.Result == nil || last.Result.Keyword != "Apple" {
		t.Errorf("final update %+v", last)
	}
	if f.metrics.Steps != len(all) {
		t.Errorf("ObserveStep called %d times for %d steps", f.metrics.Steps, len(all))
	}
}

// MockLockingNotifier takes the session lock from inside Notify, as a
// watcher that reads the session back would.
type MockLockingNotifier struct {
	locks *session.Registry
	mu    sync.Mutex
	Free  []bool
}

func (m *MockLockingNotifier) Notify(u Update) {
	lock, err := m.locks.Acquire(context.Background(), u.SessionID, 20*time.Millisecond)
	if err == nil {
		lock.Release()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Free = append(m.Free, err == nil)
}

func TestStep_NotifiesOutsideSessionLock(t *testing.T) {
	f := newFixture(t, 6)
	watcher := &MockLockingNotifier{locks: f.locks}
	f.svc = NewGameService(f.store, f.locks, MockGenerator{}, fixedWords{},
		WithRandom(rand.New(rand.NewSource(6))),
		WithGameConfig(f.svc.cfg),
		WithNotifier(watcher),
	)
	f.start(t)
	f.step(t, Action{Type: ActionNoop})
	if _, err := f.svc.Reset(context.Background(), "s1"); err != nil {
		t.Fatal(err)
	}

	if len(watcher.Free) != 2 {
		t.Fatalf("%d notifications, want 2", len(watcher.Free))
	}
	for i, free := range watcher.Free {
		if !free {
			t.Errorf("notification %d ran while the session was locked", i)
		}
	}
	// The deferred release after an early one leaves the lock usable.
	f.step(t, Action{Type: ActionNoop})
}

func TestStep_StoreFailuresAreNotFatal(t *testing.T) {
	store := failingStore{Memory: persistence.NewMemory()}
	svc := NewGameService(store, session.NewRegistry(), MockGenerator{}, fixedWords{},
		WithRandom(rand.New(rand.NewSource(1))))

	res, err := svc.StartRound(context.Background(), StartRequest{SessionID: "s1", ParticipantName: human})
	if err != nil {
		t.Fatalf("StartRound with failing event store: %v", err)
	}
	if _, err := svc.Step(context.Background(), StepRequest{SessionID: res.SessionID, Action: Action{Type: ActionNoop}}); err != nil {
		t.Fatalf("Step with failing event store: %v", err)
	}
}
