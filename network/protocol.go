package network

const (
	MsgTypeHeartbeat  = 1
	MsgTypeStartRound = 101
	MsgTypeWatch      = 102
	MsgTypeStep       = 201
	MsgTypeView       = 301
	MsgTypeMessages   = 302
	MsgTypeRoundEnded = 305
	MsgTypeError      = 400
)

// WatchRequest subscribes a connection to a session's updates.
type WatchRequest struct {
	SessionID string `json:"sessionId"`
}

// ViewRequest asks for a fresh view of a session.
type ViewRequest struct {
	SessionID string `json:"sessionId"`
	Viewer    string `json:"viewer,omitempty"`
}

// ErrorBody is the payload of a MsgTypeError packet. InReplyTo is the
// message id that failed.
type ErrorBody struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error"`
	InReplyTo uint16 `json:"inReplyTo,omitempty"`
}
