package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReminderKind string

const (
	KindDeadline    ReminderKind = "deadline"
	KindDailyDigest ReminderKind = "daily_digest"
)

type DeliveryStatus string

const (
	StatusSent    DeliveryStatus = "sent"
	StatusFailed  DeliveryStatus = "failed"
	StatusBounced DeliveryStatus = "bounced"
)

// ReminderLog is one append-only ledger row. UserID and TaskID are weak
// references: the referenced rows may have been deleted since.
type ReminderLog struct {
	ID            string         `gorm:"primaryKey;type:varchar(36)"`
	UserID        uint           `gorm:"index:idx_reminder_logs_lookup,priority:1;not null"`
	TaskID        uint           `gorm:"index:idx_reminder_logs_lookup,priority:2;not null"`
	Kind          ReminderKind   `gorm:"type:varchar(20);index:idx_reminder_logs_lookup,priority:3;not null"`
	LeadDays      int            `gorm:"index:idx_reminder_logs_lookup,priority:4;not null"`
	DueAtSnapshot time.Time      `gorm:"not null"`
	Status        DeliveryStatus `gorm:"type:varchar(10);not null"`
	ErrorDetail   *string
	CreatedAt     time.Time `gorm:"index"`
}

func (r *ReminderLog) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.DueAtSnapshot = r.DueAtSnapshot.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	return nil
}
