// persistence/interface.go
package persistence

import (
	"context"
	"fmt"

	"github.com/wfunc/liargame/config"
	"github.com/wfunc/liargame/models"
)

// Store 存储接口: session state plus the append-only audit trail.
type Store interface {
	LoadSession(ctx context.Context, sessionID string) (*models.SessionState, error)
	SaveSession(ctx context.Context, sessionID string, state *models.SessionState) error
	RecordEvent(ctx context.Context, event models.Event) error
	AppendTranscript(ctx context.Context, msg models.TranscriptMessage) error
	ListEvents(ctx context.Context, sessionID string) ([]models.Event, error)
	ListTranscript(ctx context.Context, sessionID string) ([]models.TranscriptMessage, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
	ErrNilState       = fmt.Errorf("nil session state")

	// ErrCorruptState means the stored session envelope does not parse.
	ErrCorruptState = fmt.Errorf("corrupt session state")
)

// NewStore opens the backend named by cfg.Driver.
func NewStore(cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemory(), nil
	case "gorm":
		return NewGormPostgreSQL(cfg.Postgres.DSN())
	case "postgres":
		return NewPostgreSQL(cfg.Postgres.DSN())
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownDriver, cfg.Driver)
	}
}
