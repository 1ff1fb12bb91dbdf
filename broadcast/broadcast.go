// broadcast/broadcast.go
package broadcast

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/wfunc/liargame/logger"
	"github.com/wfunc/liargame/network"
	"github.com/wfunc/liargame/services"
)

var (
	ErrNoWatchers = errors.New("session has no watchers")
)

// Sender is the part of a connection the hub needs.
type Sender interface {
	Send(msgID uint16, data []byte) error
}

// 广播接口
type Broadcaster interface {
	Publish(sessionID string, msgID uint16, data []byte) error
}

// Hub fans session updates out to the websocket connections watching them.
// A connection watches at most one session.
type Hub struct {
	watchers map[string]map[Sender]struct{}
	sessions map[Sender]string
	mutex    sync.RWMutex
}

var (
	_ Broadcaster       = (*Hub)(nil)
	_ services.Notifier = (*Hub)(nil)
)

func NewHub() *Hub {
	return &Hub{
		watchers: make(map[string]map[Sender]struct{}),
		sessions: make(map[Sender]string),
	}
}

// Subscribe makes conn watch sessionID, leaving any session it watched.
func (h *Hub) Subscribe(sessionID string, conn Sender) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.removeLocked(conn)
	set, ok := h.watchers[sessionID]
	if !ok {
		set = make(map[Sender]struct{})
		h.watchers[sessionID] = set
	}
	set[conn] = struct{}{}
	h.sessions[conn] = sessionID
}

func (h *Hub) Unsubscribe(conn Sender) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.removeLocked(conn)
}

func (h *Hub) removeLocked(conn Sender) {
	sessionID, ok := h.sessions[conn]
	if !ok {
		return
	}
	delete(h.sessions, conn)
	set := h.watchers[sessionID]
	delete(set, conn)
	if len(set) == 0 {
		delete(h.watchers, sessionID)
	}
}

// Watchers counts the connections watching sessionID.
func (h *Hub) Watchers(sessionID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.watchers[sessionID])
}

// Publish sends one packet to every watcher of sessionID. A watcher whose
// send fails is dropped.
func (h *Hub) Publish(sessionID string, msgID uint16, data []byte) error {
	// Get a copy of the watchers
	h.mutex.RLock()
	conns := make([]Sender, 0, len(h.watchers[sessionID]))
	for c := range h.watchers[sessionID] {
		conns = append(conns, c)
	}
	h.mutex.RUnlock()

	if len(conns) == 0 {
		return ErrNoWatchers
	}
	for _, c := range conns {
		if err := c.Send(msgID, data); err != nil {
			logger.Log.Warnf("Dropping watcher of session %s: %v", sessionID, err)
			h.Unsubscribe(c)
		}
	}
	return nil
}

// Notify publishes a step's messages, then the result when the round ended.
func (h *Hub) Notify(update services.Update) {
	if h.Watchers(update.SessionID) == 0 {
		return
	}
	data, err := json.Marshal(update)
	if err != nil {
		logger.Log.Errorf("Encode update for session %s: %v", update.SessionID, err)
		return
	}
	_ = h.Publish(update.SessionID, network.MsgTypeMessages, data)

	if update.Result == nil {
		return
	}
	result, err := json.Marshal(update.Result)
	if err != nil {
		logger.Log.Errorf("Encode result for session %s: %v", update.SessionID, err)
		return
	}
	_ = h.Publish(update.SessionID, network.MsgTypeRoundEnded, result)
}
