// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wfunc/liargame/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(dsn string) (*GormPostgreSQL, error) {
	// 配置GORM日志
	gormLogger := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold: time.Second,
			LogLevel:      gormlogger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &GormPostgreSQL{db: db}, nil
}

// autoMigrate 自动迁移表结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormSession{},
		&models.GormEvent{},
		&models.GormContextMessage{},
	)
}

// LoadSession 加载会话状态
func (p *GormPostgreSQL) LoadSession(ctx context.Context, sessionID string) (*models.SessionState, error) {
	var row models.GormSession
	if err := p.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	var state models.SessionState
	if err := json.Unmarshal(row.StateJSON, &state); err != nil {
		return nil, fmt.Errorf("%w: decode session %s: %v", ErrCorruptState, sessionID, err)
	}
	return &state, nil
}

// SaveSession upserts the session row.
func (p *GormPostgreSQL) SaveSession(ctx context.Context, sessionID string, state *models.SessionState) error {
	if state == nil {
		return ErrNilState
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sessionID, err)
	}

	row := models.GormSession{
		SessionID: sessionID,
		Phase:     state.Phase,
		StateJSON: datatypes.JSON(data),
	}
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"phase", "state_json", "updated_at"}),
	}).Create(&row).Error
}

func (p *GormPostgreSQL) RecordEvent(ctx context.Context, event models.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}
	row := models.GormEvent{
		SessionID: event.SessionID,
		Type:      event.Type,
		Payload:   datatypes.JSON(payload),
		CreatedAt: event.CreatedAt,
	}
	return p.db.WithContext(ctx).Create(&row).Error
}

func (p *GormPostgreSQL) AppendTranscript(ctx context.Context, msg models.TranscriptMessage) error {
	row := models.GormContextMessage{
		SessionID: msg.SessionID,
		Sender:    msg.Sender,
		Name:      msg.Name,
		Content:   msg.Content,
		Phase:     msg.Phase,
		CreatedAt: msg.CreatedAt,
	}
	return p.db.WithContext(ctx).Create(&row).Error
}

func (p *GormPostgreSQL) ListEvents(ctx context.Context, sessionID string) ([]models.Event, error) {
	var rows []models.GormEvent
	if err := p.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}

	events := make([]models.Event, 0, len(rows))
	for _, row := range rows {
		ev := models.Event{SessionID: row.SessionID, Type: row.Type, CreatedAt: row.CreatedAt}
		if len(row.Payload) > 0 {
			if err := json.Unmarshal(row.Payload, &ev.Payload); err != nil {
				return nil, fmt.Errorf("decode event %d: %w", row.ID, err)
			}
		}
		events = append(events, ev)
	}
	return events, nil
}

func (p *GormPostgreSQL) ListTranscript(ctx context.Context, sessionID string) ([]models.TranscriptMessage, error) {
	var rows []models.GormContextMessage
	if err := p.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}

	msgs := make([]models.TranscriptMessage, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, models.TranscriptMessage{
			SessionID: row.SessionID,
			Sender:    row.Sender,
			Name:      row.Name,
			Content:   row.Content,
			Phase:     row.Phase,
			CreatedAt: row.CreatedAt,
		})
	}
	return msgs, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
