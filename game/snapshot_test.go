package game

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestSnapshot_RoundTripEveryPhase(t *testing.T) {
	stages := map[string]func(t *testing.T) *RoundState{
		"ready": func(t *testing.T) *RoundState { return newRound(t, 1, 4) },
		"description": func(t *testing.T) *RoundState {
			r := startedRound(t, 2)
			cur, _ := r.CurrentParticipant()
			mustOK(t, r.SubmitDescription(cur.Name, "round and red"))
			return r
		},
		"discussion": func(t *testing.T) *RoundState {
			r := startedRound(t, 3)
			describeAll(t, r)
			c := 40
			mustOK(t, r.RecordMidCheckpoint("Bot_2", &c))
			cur, _ := r.CurrentParticipant()
			mustOK(t, r.SubmitDiscussion(cur.Name, "Bot_2 was vague"))
			return r
		},
		"voting": func(t *testing.T) *RoundState {
			r := votingRound(t, 4)
			order := r.TurnOrder()
			mustOK(t, r.CastVote(order[0], order[1]))
			return r
		},
		"final guess": func(t *testing.T) *RoundState {
			r := votingRound(t, 5)
			voteAll(t, r, r.Liar())
			return r
		},
		"ended": func(t *testing.T) *RoundState {
			r := votingRound(t, 6)
			voteAll(t, r, r.Liar())
			mustOK(t, r.SubmitFinalGuess(r.Liar(), "Apple"))
			return r
		},
	}

	for name, build := range stages {
		t.Run(name, func(t *testing.T) {
			r := build(t)
			first := encode(t, r)

			got, err := Decode([]byte(first))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if again := encode(t, got); again != first {
				t.Errorf("round trip differs:\n%s\n%s", first, again)
			}
			if got.Phase() != r.Phase() || got.TurnIndex() != r.TurnIndex() {
				t.Errorf("phase/index %s/%d, want %s/%d", got.Phase(), got.TurnIndex(), r.Phase(), r.TurnIndex())
			}
			if !equalStrings(got.TurnOrder(), r.TurnOrder()) {
				t.Errorf("turn order %v, want %v", got.TurnOrder(), r.TurnOrder())
			}
			if len(got.Descriptions()) != len(r.Descriptions()) || len(got.DiscussionLog()) != len(r.DiscussionLog()) {
				t.Error("records lost in round trip")
			}
			for n, votes := range r.Tally() {
				if got.Tally()[n] != votes {
					t.Errorf("tally for %s = %d, want %d", n, got.Tally()[n], votes)
				}
			}
		})
	}
}

func TestSnapshot_DecodedRoundContinues(t *testing.T) {
	r := startedRound(t, 8)
	got, err := Decode([]byte(encode(t, r)))
	if err != nil {
		t.Fatal(err)
	}
	got.Bind(newWords(), nil)
	describeAll(t, got)
	mustOK(t, got.RecordMidCheckpoint("", nil))
	if got.Phase() != PhaseDiscussion {
		t.Errorf("phase = %s", got.Phase())
	}
}

func TestDecode_Corruption(t *testing.T) {
	base := encode(t, votingRound(t, 10))

	mutate := func(t *testing.T, f func(m map[string]any)) []byte {
		t.Helper()
		var m map[string]any
		if err := json.Unmarshal([]byte(base), &m); err != nil {
			t.Fatal(err)
		}
		f(m)
		data, err := json.Marshal(m)
		if err != nil {
			t.Fatal(err)
		}
		return data
	}
	players := func(m map[string]any) map[string]any { return m["players"].(map[string]any) }

	tests := []struct {
		name string
		data func(t *testing.T) []byte
	}{
		{"not json", func(t *testing.T) []byte { return []byte("{oops") }},
		{"unknown phase", func(t *testing.T) []byte {
			return mutate(t, func(m map[string]any) { m["phase"] = "LOBBY" })
		}},
		{"unknown name in turn order", func(t *testing.T) []byte {
			return mutate(t, func(m map[string]any) {
				order := m["turn_order"].([]any)
				order[0] = "Ghost"
			})
		}},
		{"duplicate in turn order", func(t *testing.T) []byte {
			return mutate(t, func(m map[string]any) {
				order := m["turn_order"].([]any)
				order[1] = order[0]
			})
		}},
		{"two liars", func(t *testing.T) []byte {
			return mutate(t, func(m map[string]any) {
				for _, p := range players(m) {
					p.(map[string]any)["role"] = "LIAR"
				}
			})
		}},
		{"unknown role", func(t *testing.T) []byte {
			return mutate(t, func(m map[string]any) {
				players(m)["Alice"].(map[string]any)["role"] = "JESTER"
			})
		}},
		{"liar reference", func(t *testing.T) []byte {
			return mutate(t, func(m map[string]any) { m["liar"] = "Ghost" })
		}},
		{"winner before end", func(t *testing.T) []byte {
			return mutate(t, func(m map[string]any) { m["winner"] = "CITIZEN" })
		}},
		{"turn index out of range", func(t *testing.T) []byte {
			return mutate(t, func(m map[string]any) {
				m["phase"] = "DISCUSSION"
				m["turn_index"] = 9
			})
		}},
		{"human decoy", func(t *testing.T) []byte {
			return mutate(t, func(m map[string]any) {
				m["decoy"] = "Alice"
				players(m)["Alice"].(map[string]any)["is_decoy"] = true
			})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data(t))
			if !errors.Is(err, ErrDataCorruption) {
				t.Fatalf("err = %v, want ErrDataCorruption", err)
			}
		})
	}
}
