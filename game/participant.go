package game

// Participant is one player of a round. RoundState owns the instances;
// callers only ever see copies.
type Participant struct {
	Name          string
	Role          Role
	Automated     bool
	Decoy         bool
	HasDescribed  bool
	HasVoted      bool
	VotesReceived int
}

// IsLiar reports whether the participant holds the liar role.
func (p Participant) IsLiar() bool {
	return p.Role == RoleLiar
}

func (p *Participant) resetRound() {
	p.Role = RoleUnassigned
	p.Decoy = false
	p.HasDescribed = false
	p.HasVoted = false
	p.VotesReceived = 0
}
