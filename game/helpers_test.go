package game

import (
	"math/rand"
	"strconv"
	"testing"
)

// MockWords is a WordSource that hands out one fixed topic.
type MockWords struct {
	Category string
	Keyword  string
	Empty    bool
	Calls    int
}

func (m *MockWords) PickTopic() (string, string, bool) {
	m.Calls++
	if m.Empty {
		return "", "", false
	}
	return m.Category, m.Keyword, true
}

func newWords() *MockWords {
	return &MockWords{Category: "Fruit", Keyword: "Apple"}
}

// newRound registers one human and n bots.
func newRound(t *testing.T, seed int64, bots int) *RoundState {
	t.Helper()
	r := NewRoundState(newWords(), rand.New(rand.NewSource(seed)))
	if err := r.AddParticipant("Alice", false); err != nil {
		t.Fatalf("AddParticipant(Alice): %v", err)
	}
	for i := 1; i <= bots; i++ {
		if err := r.AddParticipant(botName(i), true); err != nil {
			t.Fatalf("AddParticipant(%s): %v", botName(i), err)
		}
	}
	return r
}

func botName(i int) string {
	return "Bot_" + strconv.Itoa(i)
}

func startedRound(t *testing.T, seed int64) *RoundState {
	t.Helper()
	r := newRound(t, seed, 4)
	if err := r.StartRound(1, true); err != nil {
		t.Fatalf("StartRound: %v", err)
	}
	return r
}

func mustOK(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func describeAll(t *testing.T, r *RoundState) {
	t.Helper()
	for r.Phase() == PhaseDescription {
		cur, _ := r.CurrentParticipant()
		mustOK(t, r.SubmitDescription(cur.Name, "about "+cur.Name))
	}
}

func discussAll(t *testing.T, r *RoundState) {
	t.Helper()
	for r.Phase() == PhaseDiscussion {
		cur, _ := r.CurrentParticipant()
		mustOK(t, r.SubmitDiscussion(cur.Name, cur.Name+" has thoughts"))
	}
}

func votingRound(t *testing.T, seed int64) *RoundState {
	t.Helper()
	r := startedRound(t, seed)
	describeAll(t, r)
	mustOK(t, r.RecordMidCheckpoint("", nil))
	discussAll(t, r)
	if r.Phase() != PhaseVoting {
		t.Fatalf("phase = %s, want VOTING", r.Phase())
	}
	return r
}

// voteAll has every participant vote for target.
func voteAll(t *testing.T, r *RoundState, target string) {
	t.Helper()
	for _, name := range r.TurnOrder() {
		mustOK(t, r.CastVote(name, target))
	}
}

func encode(t *testing.T, r *RoundState) string {
	t.Helper()
	data, err := r.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return string(data)
}
