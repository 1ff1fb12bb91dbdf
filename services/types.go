package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/wfunc/liargame/game"
	"github.com/wfunc/liargame/turn"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidSession  = errors.New("invalid session")
	ErrInvalidAction   = errors.New("invalid action")
	// ErrCheckpointPending rejects a human discussion line before the
	// mid-round check, which can no longer be recorded once discussion starts.
	ErrCheckpointPending = fmt.Errorf("%w: mid-check required before discussion", game.ErrInvalidPrecondition)
)

// Action types accepted by Step.
const (
	ActionDescription = "description"
	ActionDiscussion  = "discussion"
	ActionMidCheck    = "mid_check"
	ActionVote        = "vote"
	ActionFinalGuess  = "final_guess"
	ActionNoop        = "noop"
)

// NeedMidCheck tells the client the discussion waits for the mid-round check.
const NeedMidCheck = "mid-check"

const SenderHuman = "human"

type StartRequest struct {
	SessionID       string `json:"sessionId"`
	ParticipantName string `json:"participantName"`
	AICount         int    `json:"aiCount"`
	UseDecoy        *bool  `json:"useDecoy,omitempty"`
}

type Action struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	SuspectName string `json:"suspectName,omitempty"`
	Confidence  *int   `json:"confidence,omitempty"`
	TargetName  string `json:"targetName,omitempty"`
	Guess       string `json:"guess,omitempty"`
	// MaxAISteps bounds the automated turns run after the action. Nil means
	// unbounded, except for noop which defaults to game.noop_steps.
	MaxAISteps *int `json:"maxAiSteps,omitempty"`
}

type StepRequest struct {
	SessionID string `json:"sessionId"`
	Action    Action `json:"action"`
}

// StepResult is the response to every GameService call.
type StepResult struct {
	SessionID string          `json:"sessionId"`
	View      game.View       `json:"view"`
	Messages  []turn.Message  `json:"messages"`
	Need      string          `json:"need,omitempty"`
	Result    *game.Result    `json:"result,omitempty"`
	Stop      turn.StopReason `json:"stop,omitempty"`
}

// Update is what a session's watchers are told after a step.
type Update struct {
	SessionID string         `json:"sessionId"`
	Phase     game.Phase     `json:"phase"`
	Messages  []turn.Message `json:"messages"`
	Result    *game.Result   `json:"result,omitempty"`
}

// Notifier is told about every saved step.
type Notifier interface {
	Notify(update Update)
}

// Metrics receives service-level measurements.
type Metrics interface {
	ObserveLockWait(wait time.Duration, acquired bool)
	ObserveStep(action string, steps int, stop turn.StopReason)
	RoundStarted()
	RoundEnded(winner game.Role)
}

type nopMetrics struct{}

func (nopMetrics) ObserveLockWait(time.Duration, bool) {}
func (nopMetrics) ObserveStep(string, int, turn.StopReason) {}
func (nopMetrics) RoundStarted() {}
func (nopMetrics) RoundEnded(game.Role) {}

type nopNotifier struct{}

func (nopNotifier) Notify(Update) {}
