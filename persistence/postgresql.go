// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/wfunc/liargame/models"
)

const queryTimeout = 5 * time.Second

// PostgreSQL 数据库实现 (database/sql + lib/pq)
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(dsn string) (*PostgreSQL, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init tables: %w", err)
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
            id SERIAL PRIMARY KEY,
            session_id VARCHAR(64) UNIQUE NOT NULL,
            phase VARCHAR(32) NOT NULL,
            state_json JSONB NOT NULL,
            created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS events (
            id SERIAL PRIMARY KEY,
            session_id VARCHAR(64) NOT NULL,
            type VARCHAR(64) NOT NULL,
            payload JSONB,
            created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS context_messages (
            id SERIAL PRIMARY KEY,
            session_id VARCHAR(64) NOT NULL,
            sender VARCHAR(16) NOT NULL,
            name VARCHAR(255),
            content TEXT,
            phase VARCHAR(32),
            created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
        )`,
		// 创建索引以提高查询性能
		`CREATE INDEX IF NOT EXISTS idx_events_session_id ON events(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_context_messages_session_id ON context_messages(session_id)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// LoadSession 加载会话状态
func (p *PostgreSQL) LoadSession(ctx context.Context, sessionID string) (*models.SessionState, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var data []byte
	query := `SELECT state_json FROM sessions WHERE session_id = $1`
	if err := p.db.QueryRowContext(ctx, query, sessionID).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	var state models.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: decode session %s: %v", ErrCorruptState, sessionID, err)
	}
	return &state, nil
}

// SaveSession 保存会话状态 (UPSERT)
func (p *PostgreSQL) SaveSession(ctx context.Context, sessionID string, state *models.SessionState) error {
	if state == nil {
		return ErrNilState
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sessionID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
        INSERT INTO sessions (session_id, phase, state_json)
        VALUES ($1, $2, $3)
        ON CONFLICT (session_id)
        DO UPDATE SET phase = $2, state_json = $3, updated_at = CURRENT_TIMESTAMP
    `
	_, err = p.db.ExecContext(ctx, query, sessionID, state.Phase, data)
	return err
}

func (p *PostgreSQL) RecordEvent(ctx context.Context, event models.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `INSERT INTO events (session_id, type, payload, created_at) VALUES ($1, $2, $3, $4)`
	_, err = p.db.ExecContext(ctx, query, event.SessionID, event.Type, payload, event.CreatedAt)
	return err
}

func (p *PostgreSQL) AppendTranscript(ctx context.Context, msg models.TranscriptMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
        INSERT INTO context_messages (session_id, sender, name, content, phase, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	_, err := p.db.ExecContext(ctx, query, msg.SessionID, msg.Sender, msg.Name, msg.Content, msg.Phase, msg.CreatedAt)
	return err
}

func (p *PostgreSQL) ListEvents(ctx context.Context, sessionID string) ([]models.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT type, payload, created_at FROM events WHERE session_id = $1 ORDER BY id`
	rows, err := p.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		ev := models.Event{SessionID: sessionID}
		var payload []byte
		if err := rows.Scan(&ev.Type, &payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &ev.Payload); err != nil {
				return nil, fmt.Errorf("decode event payload: %w", err)
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (p *PostgreSQL) ListTranscript(ctx context.Context, sessionID string) ([]models.TranscriptMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
        SELECT sender, COALESCE(name, ''), COALESCE(content, ''), COALESCE(phase, ''), created_at
        FROM context_messages WHERE session_id = $1 ORDER BY id
    `
	rows, err := p.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.TranscriptMessage
	for rows.Next() {
		msg := models.TranscriptMessage{SessionID: sessionID}
		if err := rows.Scan(&msg.Sender, &msg.Name, &msg.Content, &msg.Phase, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
