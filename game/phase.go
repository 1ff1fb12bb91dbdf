package game

// Phase is a named stage of the round.
type Phase string

const (
	PhaseReady       Phase = "READY"
	PhaseDescription Phase = "DESCRIPTION"
	PhaseDiscussion  Phase = "DISCUSSION"
	PhaseVoting      Phase = "VOTING"
	PhaseFinalGuess  Phase = "FINAL_GUESS"
	PhaseEnded       Phase = "ENDED"
)

// transitions lists the forward edges of the round. Reset to READY is
// allowed from every phase and is not listed here.
var transitions = map[Phase][]Phase{
	PhaseReady:       {PhaseDescription},
	PhaseDescription: {PhaseDiscussion},
	PhaseDiscussion:  {PhaseVoting},
	PhaseVoting:      {PhaseFinalGuess, PhaseEnded},
	PhaseFinalGuess:  {PhaseEnded},
	PhaseEnded:       nil,
}

func (p Phase) String() string {
	return string(p)
}

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	_, ok := transitions[p]
	return ok
}

// CanTransitionTo reports whether next directly follows p.
func (p Phase) CanTransitionTo(next Phase) bool {
	for _, to := range transitions[p] {
		if to == next {
			return true
		}
	}
	return false
}

// TakesTurns reports whether the turn cursor is meaningful in p.
func (p Phase) TakesTurns() bool {
	return p == PhaseDescription || p == PhaseDiscussion
}
