package kafka

import (
	"time"

	"github.com/google/uuid"
)

// OutboxRecord is the gorm shape of outbox_events, used for migrations only.
type OutboxRecord struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	RequestID     *string   `gorm:"size:100"`
	AggregateType string    `gorm:"size:50;not null"`
	AggregateID   uuid.UUID `gorm:"type:uuid;not null"`
	EventType     string    `gorm:"size:100;not null"`
	Topic         string    `gorm:"size:200;not null"`
	Payload       []byte    `gorm:"type:jsonb;not null"`
	Status        string    `gorm:"size:20;not null;default:pending;index:idx_outbox_dispatch,priority:1"`
	RetryCount    int       `gorm:"not null;default:0"`
	ErrorMessage  *string   `gorm:"size:500"`
	NextRetryAt   *time.Time `gorm:"index:idx_outbox_dispatch,priority:2"`
	ProcessedAt   *time.Time
	CreatedAt     time.Time `gorm:"not null;default:now()"`
	UpdatedAt     time.Time `gorm:"not null;default:now()"`
}

func (OutboxRecord) TableName() string { return "outbox_events" }
