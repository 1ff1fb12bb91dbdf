// models/gorm_models.go
package models

import (
	"time"

	"gorm.io/datatypes"
)

// GormSession 会话表
type GormSession struct {
	ID        uint           `gorm:"primaryKey"`
	SessionID string         `gorm:"uniqueIndex;not null"`
	Phase     string         `gorm:"not null"`
	StateJSON datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (GormSession) TableName() string { return "sessions" }

// GormEvent 事件表
type GormEvent struct {
	ID        uint           `gorm:"primaryKey"`
	SessionID string         `gorm:"index;not null"`
	Type      string         `gorm:"not null"`
	Payload   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"index"`
}

func (GormEvent) TableName() string { return "events" }

// GormContextMessage 对话记录表
type GormContextMessage struct {
	ID        uint   `gorm:"primaryKey"`
	SessionID string `gorm:"index;not null"`
	Sender    string `gorm:"not null"`
	Name      string
	Content   string `gorm:"type:text"`
	Phase     string
	CreatedAt time.Time
}

func (GormContextMessage) TableName() string { return "context_messages" }
