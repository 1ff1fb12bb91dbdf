package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/wfunc/liargame/models"
)

// Memory keeps everything in process. Sessions are stored encoded so a
// caller never shares memory with the store.
type Memory struct {
	sessions   map[string][]byte
	events     map[string][]models.Event
	transcript map[string][]models.TranscriptMessage
	mutex      sync.RWMutex
}

func NewMemory() *Memory {
	return &Memory{
		sessions:   make(map[string][]byte),
		events:     make(map[string][]models.Event),
		transcript: make(map[string][]models.TranscriptMessage),
	}
}

func (m *Memory) LoadSession(_ context.Context, sessionID string) (*models.SessionState, error) {
	m.mutex.RLock()
	data, ok := m.sessions[sessionID]
	m.mutex.RUnlock()
	if !ok {
		return nil, ErrRecordNotFound
	}
	var state models.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: decode session %s: %v", ErrCorruptState, sessionID, err)
	}
	return &state, nil
}

func (m *Memory) SaveSession(_ context.Context, sessionID string, state *models.SessionState) error {
	if state == nil {
		return ErrNilState
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sessionID, err)
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[sessionID] = data
	return nil
}

// PutRaw stores data as the session's state verbatim.
func (m *Memory) PutRaw(sessionID string, data []byte) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[sessionID] = append([]byte(nil), data...)
}

func (m *Memory) RecordEvent(_ context.Context, event models.Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.events[event.SessionID] = append(m.events[event.SessionID], event)
	return nil
}

func (m *Memory) AppendTranscript(_ context.Context, msg models.TranscriptMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.transcript[msg.SessionID] = append(m.transcript[msg.SessionID], msg)
	return nil
}

func (m *Memory) ListEvents(_ context.Context, sessionID string) ([]models.Event, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return append([]models.Event(nil), m.events[sessionID]...), nil
}

func (m *Memory) ListTranscript(_ context.Context, sessionID string) ([]models.TranscriptMessage, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return append([]models.TranscriptMessage(nil), m.transcript[sessionID]...), nil
}

func (m *Memory) Close() error {
	return nil
}
