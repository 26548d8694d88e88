package model

import (
	"time"

	"gorm.io/gorm"
)

// Task is an academic deadline owned by one user.
type Task struct {
	ID          uint      `gorm:"primaryKey"`
	UserID      uint      `gorm:"index:idx_tasks_user_due,priority:1;not null"`
	Title       string    `gorm:"not null"`
	Category    string
	DueAt       time.Time `gorm:"index:idx_tasks_user_due,priority:2"`
	Notes       string
	IsPriority  bool
	IsRecurring bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BeforeSave keeps due dates in UTC so range queries compare consistently on every driver.
func (t *Task) BeforeSave(*gorm.DB) error {
	t.DueAt = t.DueAt.UTC()
	return nil
}
