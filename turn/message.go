package turn

import "github.com/wfunc/liargame/game"

// SenderAI marks messages produced by automated participants.
const SenderAI = "ai"

// Message is one line emitted by an automated participant.
type Message struct {
	Sender  string     `json:"sender"`
	Name    string     `json:"name"`
	Content string     `json:"content"`
	Phase   game.Phase `json:"phase"`
}

type ActionKind string

const (
	ActionDescription ActionKind = "description"
	ActionDiscussion  ActionKind = "discussion"
	ActionVote        ActionKind = "vote"
	ActionFinalGuess  ActionKind = "final_guess"
)

// Action is one applied automated move, including votes, which emit no
// message.
type Action struct {
	Kind     ActionKind `json:"kind"`
	By       string     `json:"by"`
	Text     string     `json:"text,omitempty"`
	Target   string     `json:"target,omitempty"`
	Stance   Stance     `json:"stance,omitempty"`
	Fallback bool       `json:"fallback,omitempty"`
}

// StopReason says why Advance returned.
type StopReason string

const (
	StopEnded              StopReason = "ended"
	StopNotStarted         StopReason = "not_started"
	StopHumanTurn          StopReason = "human_turn"
	StopAwaitingCheckpoint StopReason = "awaiting_checkpoint"
	StopVotingBlocked      StopReason = "voting_blocked"
	StopGuessMade          StopReason = "guess_made"
	StopAwaitingHumanGuess StopReason = "awaiting_human_guess"
	StopBudget             StopReason = "budget"
	StopNoBudget           StopReason = "no_budget"
	StopRejected           StopReason = "rejected"
)

// Result is everything one Advance call did.
type Result struct {
	Messages []Message
	Actions  []Action
	Steps    int
	Stop     StopReason
}
