package game

import (
	"fmt"

	"github.com/wfunc/liargame/logger"
)

// CastVote records voter's vote for target. Once everyone has voted the
// round is tallied.
func (r *RoundState) CastVote(voter, target string) error {
	if err := r.require(PhaseVoting); err != nil {
		return err
	}
	v, ok := r.participants[voter]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParticipant, voter)
	}
	t, ok := r.participants[target]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}
	if v.HasVoted {
		return fmt.Errorf("%w: %q", ErrAlreadyVoted, voter)
	}

	t.VotesReceived++
	v.HasVoted = true
	r.votes[voter] = target

	if r.allVoted() {
		r.resolveVotes()
	}
	return nil
}

// NextVoter returns the first participant in turn order who has not voted.
func (r *RoundState) NextVoter() (Participant, bool) {
	for _, name := range r.turnOrder {
		if p := r.participants[name]; !p.HasVoted {
			return *p, true
		}
	}
	return Participant{}, false
}

func (r *RoundState) allVoted() bool {
	for _, p := range r.participants {
		if !p.HasVoted {
			return false
		}
	}
	return true
}

// resolveVotes picks the participant with the most votes; a tie goes to
// the earliest in turn order.
func (r *RoundState) resolveVotes() {
	best := -1
	for _, name := range r.turnOrder {
		if n := r.participants[name].VotesReceived; n > best {
			best = n
			r.suspect = name
		}
	}

	if r.suspect == r.liar {
		logger.Log.Infof("Round %d: liar %s caught with %d votes", r.round, r.suspect, best)
		r.enter(PhaseFinalGuess)
		return
	}
	r.winner = RoleLiar
	logger.Log.Infof("Round %d: %s voted out, liar %s wins", r.round, r.suspect, r.liar)
	r.enter(PhaseEnded)
}

// Tally returns votes received per participant.
func (r *RoundState) Tally() map[string]int {
	out := make(map[string]int, len(r.participants))
	for name, p := range r.participants {
		out[name] = p.VotesReceived
	}
	return out
}
