package game

import (
	"errors"
	"fmt"
)

// ErrInvalidPrecondition is wrapped by every rejected action. The round is
// left untouched whenever it is returned.
var ErrInvalidPrecondition = errors.New("invalid precondition")

// ErrDataCorruption is returned when a stored snapshot cannot be turned
// back into a valid round.
var ErrDataCorruption = errors.New("corrupt round state")

var (
	ErrRoundEnded           = fmt.Errorf("%w: round has ended", ErrInvalidPrecondition)
	ErrWrongPhase           = fmt.Errorf("%w: wrong phase", ErrInvalidPrecondition)
	ErrNotYourTurn          = fmt.Errorf("%w: not your turn", ErrInvalidPrecondition)
	ErrAlreadyVoted         = fmt.Errorf("%w: already voted", ErrInvalidPrecondition)
	ErrUnknownParticipant   = fmt.Errorf("%w: unknown participant", ErrInvalidPrecondition)
	ErrUnknownTarget        = fmt.Errorf("%w: unknown vote target", ErrInvalidPrecondition)
	ErrDuplicateParticipant = fmt.Errorf("%w: duplicate participant", ErrInvalidPrecondition)
	ErrInvalidName          = fmt.Errorf("%w: participant name is empty", ErrInvalidPrecondition)
	ErrNotEnoughPlayers     = fmt.Errorf("%w: at least %d participants are required", ErrInvalidPrecondition, MinParticipants)
	ErrLiarCount            = fmt.Errorf("%w: only a single liar is supported", ErrInvalidPrecondition)
	ErrNoTopic              = fmt.Errorf("%w: word source has no topic", ErrInvalidPrecondition)
	ErrNotLiar              = fmt.Errorf("%w: only the liar may guess", ErrInvalidPrecondition)
	ErrCheckpointNotAllowed = fmt.Errorf("%w: checkpoint is only allowed before the first discussion turn", ErrInvalidPrecondition)
)

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDataCorruption, fmt.Sprintf(format, args...))
}
