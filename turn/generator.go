package turn

import (
	"context"

	"github.com/wfunc/liargame/game"
)

// DescribeRequest asks for a one-line hint about the keyword. Keyword is
// empty for the liar. Participants with a scripted line never reach the
// generator.
type DescribeRequest struct {
	Speaker  string
	Category string
	Keyword  string
	Prior    []game.DescriptionEntry
	Decoy    bool
}

type DiscussRequest struct {
	Speaker       string
	Category      string
	Keyword       string
	Descriptions  []game.DescriptionEntry
	Log           []game.DiscussionEntry
	HumanHint     string
	Stance        Stance
	Target        string
	Authoritative bool
	Decoy         bool
}

// VoteRequest asks for one name out of Candidates.
type VoteRequest struct {
	Voter        string
	Candidates   []string
	Category     string
	Keyword      string
	Descriptions []game.DescriptionEntry
	Log          []game.DiscussionEntry
}

type GuessRequest struct {
	Guesser      string
	Category     string
	Descriptions []game.DescriptionEntry
	Log          []game.DiscussionEntry
}

// TextGenerator produces what automated participants say. Errors are
// recovered by the Advancer and never end the round.
type TextGenerator interface {
	Describe(ctx context.Context, req DescribeRequest) (string, error)
	Discuss(ctx context.Context, req DiscussRequest) (string, error)
	Vote(ctx context.Context, req VoteRequest) (string, error)
	FinalGuess(ctx context.Context, req GuessRequest) (string, error)
}
