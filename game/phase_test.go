package game

import "testing"

func TestPhase_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to Phase
		want     bool
	}{
		{PhaseReady, PhaseDescription, true},
		{PhaseDescription, PhaseDiscussion, true},
		{PhaseDiscussion, PhaseVoting, true},
		{PhaseVoting, PhaseFinalGuess, true},
		{PhaseVoting, PhaseEnded, true},
		{PhaseFinalGuess, PhaseEnded, true},
		{PhaseReady, PhaseVoting, false},
		{PhaseDiscussion, PhaseDescription, false},
		{PhaseEnded, PhaseReady, false},
		{PhaseEnded, PhaseDescription, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPhase_Valid(t *testing.T) {
	if !PhaseFinalGuess.Valid() {
		t.Error("FINAL_GUESS should be valid")
	}
	if Phase("LOBBY").Valid() {
		t.Error("LOBBY should not be valid")
	}
	if !Role("").Valid() || Role("JESTER").Valid() {
		t.Error("role validity is wrong")
	}
}
