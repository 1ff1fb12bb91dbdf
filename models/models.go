// models/models.go
package models

import (
	"encoding/json"
	"time"
)

// Event types written to the audit trail.
const (
	EventGameStarted   = "GAME_STARTED"
	EventGameEnded     = "GAME_ENDED"
	EventGameReset     = "GAME_RESET"
	EventHumanDescribe = "HUMAN_DESCRIPTION"
	EventHumanDiscuss  = "HUMAN_DISCUSSION"
	EventHumanMidCheck = "HUMAN_MID_CHECK"
	EventHumanVote     = "HUMAN_VOTE"
	EventHumanGuess    = "HUMAN_FINAL_GUESS"
	EventAIDescribe    = "AI_DESCRIPTION"
	EventAIDiscuss     = "AI_DISCUSSION"
	EventAIVote        = "AI_VOTE"
	EventAIGuess       = "AI_FINAL_GUESS"
)

// Transcript senders.
const (
	SenderHuman = "human"
	SenderAI    = "ai"
)

// SessionState 会话状态: the envelope saved per session. Round holds the
// encoded game round.
type SessionState struct {
	ParticipantName string            `json:"participant_name"`
	Phase           string            `json:"phase"`
	Round           json.RawMessage   `json:"round"`
	VotesCast       map[string]string `json:"votes_cast"`
	MidCheckDone    bool              `json:"mid_check_done"`
	AICount         int               `json:"ai_count"`
	UseDecoy        bool              `json:"use_decoy"`
}

// Event 审计事件
type Event struct {
	SessionID string         `json:"session_id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// TranscriptMessage is one line of a session's conversation.
type TranscriptMessage struct {
	SessionID string    `json:"session_id"`
	Sender    string    `json:"sender"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	Phase     string    `json:"phase"`
	CreatedAt time.Time `json:"created_at"`
}
