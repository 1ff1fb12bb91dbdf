package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/wfunc/liargame/config"
	"github.com/wfunc/liargame/models"
)

// testStore runs the behaviour every backend must share.
func testStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.LoadSession(ctx, "missing"); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("LoadSession(missing) = %v, want ErrRecordNotFound", err)
	}
	if err := store.SaveSession(ctx, "s1", nil); !errors.Is(err, ErrNilState) {
		t.Fatalf("SaveSession(nil) = %v, want ErrNilState", err)
	}

	state := &models.SessionState{
		ParticipantName: "Alice",
		Phase:           "DESCRIPTION",
		Round:           json.RawMessage(`{"phase":"DESCRIPTION"}`),
		VotesCast:       map[string]string{},
		AICount:         4,
	}
	if err := store.SaveSession(ctx, "s1", state); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	state.Phase = "VOTING"
	state.VotesCast = map[string]string{"Alice": "Bot_1"}
	state.MidCheckDone = true
	if err := store.SaveSession(ctx, "s1", state); err != nil {
		t.Fatalf("SaveSession (update): %v", err)
	}

	got, err := store.LoadSession(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if got.ParticipantName != "Alice" || got.Phase != "VOTING" || !got.MidCheckDone || got.AICount != 4 {
		t.Errorf("loaded state %+v", got)
	}
	if got.VotesCast["Alice"] != "Bot_1" {
		t.Errorf("VotesCast = %v", got.VotesCast)
	}
	var round map[string]any
	if err := json.Unmarshal(got.Round, &round); err != nil || round["phase"] != "DESCRIPTION" {
		t.Errorf("round payload %s (%v)", got.Round, err)
	}

	for _, typ := range []string{models.EventGameStarted, models.EventAIDescribe} {
		if err := store.RecordEvent(ctx, models.Event{SessionID: "s1", Type: typ, Payload: map[string]any{"name": "Bot_1"}}); err != nil {
			t.Fatalf("RecordEvent: %v", err)
		}
	}
	if err := store.RecordEvent(ctx, models.Event{SessionID: "other", Type: models.EventGameStarted}); err != nil {
		t.Fatalf("RecordEvent(other): %v", err)
	}
	events, err := store.ListEvents(ctx, "s1")
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 2 || events[0].Type != models.EventGameStarted || events[1].Type != models.EventAIDescribe {
		t.Fatalf("events %+v", events)
	}
	if events[1].Payload["name"] != "Bot_1" || events[0].CreatedAt.IsZero() {
		t.Errorf("event payload/time lost: %+v", events[1])
	}

	lines := []models.TranscriptMessage{
		{SessionID: "s1", Sender: models.SenderHuman, Name: "Alice", Content: "It is red.", Phase: "DESCRIPTION"},
		{SessionID: "s1", Sender: models.SenderAI, Name: "Bot_1", Content: "Crunchy.", Phase: "DESCRIPTION"},
	}
	for _, l := range lines {
		if err := store.AppendTranscript(ctx, l); err != nil {
			t.Fatalf("AppendTranscript: %v", err)
		}
	}
	transcript, err := store.ListTranscript(ctx, "s1")
	if err != nil {
		t.Fatalf("ListTranscript: %v", err)
	}
	if len(transcript) != 2 || transcript[0].Name != "Alice" || transcript[1].Content != "Crunchy." {
		t.Errorf("transcript %+v", transcript)
	}
	if empty, _ := store.ListTranscript(ctx, "nobody"); len(empty) != 0 {
		t.Errorf("transcript for unknown session: %+v", empty)
	}
}

func TestMemory(t *testing.T) {
	store := NewMemory()
	defer store.Close()
	testStore(t, store)
}

func TestMemory_Isolation(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	state := &models.SessionState{ParticipantName: "Alice", VotesCast: map[string]string{}}
	if err := store.SaveSession(ctx, "s", state); err != nil {
		t.Fatal(err)
	}
	state.VotesCast["Alice"] = "Bot_1"

	got, _ := store.LoadSession(ctx, "s")
	if len(got.VotesCast) != 0 {
		t.Error("store shares memory with the caller")
	}
}

func TestMemory_PutRaw(t *testing.T) {
	store := NewMemory()
	store.PutRaw("bad", []byte("{not json"))
	_, err := store.LoadSession(context.Background(), "bad")
	if !errors.Is(err, ErrCorruptState) || errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("LoadSession of garbage = %v, want ErrCorruptState", err)
	}
}

func TestNewStore(t *testing.T) {
	store, err := NewStore(config.DatabaseConfig{Driver: "memory"})
	if err != nil {
		t.Fatalf("NewStore(memory): %v", err)
	}
	if _, ok := store.(*Memory); !ok {
		t.Errorf("NewStore(memory) returned %T", store)
	}
	if _, err := NewStore(config.DatabaseConfig{Driver: "mongo"}); !errors.Is(err, config.ErrUnknownDriver) {
		t.Errorf("NewStore(mongo) = %v, want ErrUnknownDriver", err)
	}
}
