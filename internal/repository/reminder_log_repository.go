package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"deadline-tracker/internal/model"
)

// UnknownTaskTitle labels ledger rows whose task has since been deleted.
const UnknownTaskTitle = "unknown"

// RecordInput describes one delivery outcome to append to the ledger.
type RecordInput struct {
	UserID        uint
	TaskID        uint
	Kind          model.ReminderKind
	LeadDays      int
	DueAtSnapshot time.Time
	Status        model.DeliveryStatus
	ErrorDetail   string
}

// HistoryEntry is a ledger row resolved for display.
type HistoryEntry struct {
	ID          string               `json:"id"`
	TaskID      uint                 `json:"taskId"`
	TaskTitle   string               `json:"taskTitle"`
	Kind        model.ReminderKind   `json:"kind"`
	LeadDays    int                  `json:"leadDays"`
	DueAt       time.Time            `json:"dueAt"`
	Status      model.DeliveryStatus `json:"status"`
	ErrorDetail string               `json:"errorDetail,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
}

// ReminderLogRepository is the reminder ledger: the only place that decides
// whether a reminder was already delivered.
type ReminderLogRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewReminderLogRepository(db *gorm.DB) *ReminderLogRepository {
	return &ReminderLogRepository{db: db, now: time.Now}
}

// WithClock overrides the clock used to stamp new entries.
func (r *ReminderLogRepository) WithClock(now func() time.Time) *ReminderLogRepository {
	return &ReminderLogRepository{db: r.db, now: now}
}

// WasSent reports whether a sent entry exists for the exact tuple.
func (r *ReminderLogRepository) WasSent(ctx context.Context, userID, taskID uint, kind model.ReminderKind, leadDays int) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.ReminderLog{}).
		Where("user_id = ? AND task_id = ? AND kind = ? AND lead_days = ? AND status = ?",
			userID, taskID, kind, leadDays, model.StatusSent).
		Limit(1).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check reminder log: %w", err)
	}
	return count > 0, nil
}

// Record appends an entry. When a sent deadline entry for the same tuple already
// exists the insert is skipped and the existing entry is returned.
func (r *ReminderLogRepository) Record(ctx context.Context, in RecordInput) (*model.ReminderLog, error) {
	entry := &model.ReminderLog{
		UserID:        in.UserID,
		TaskID:        in.TaskID,
		Kind:          in.Kind,
		LeadDays:      in.LeadDays,
		DueAtSnapshot: in.DueAtSnapshot,
		Status:        in.Status,
		CreatedAt:     r.now().UTC(),
	}
	if in.Kind == model.KindDailyDigest {
		entry.LeadDays = 0
	}
	if in.ErrorDetail != "" {
		detail := in.ErrorDetail
		entry.ErrorDetail = &detail
	}

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(entry)
	if res.Error != nil {
		return nil, fmt.Errorf("record reminder: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return entry, nil
	}

	existing, err := r.findSent(ctx, in.UserID, in.TaskID, in.Kind, entry.LeadDays)
	if err != nil {
		return nil, fmt.Errorf("record reminder: %w", err)
	}
	return existing, nil
}

func (r *ReminderLogRepository) findSent(ctx context.Context, userID, taskID uint, kind model.ReminderKind, leadDays int) (*model.ReminderLog, error) {
	var entry model.ReminderLog
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND task_id = ? AND kind = ? AND lead_days = ? AND status = ?",
			userID, taskID, kind, leadDays, model.StatusSent).
		Order("created_at ASC").
		First(&entry).Error
	if err != nil {
		return nil, fmt.Errorf("find sent entry: %w", err)
	}
	return &entry, nil
}

// DigestSentSince reports whether the user got a digest at or after since.
func (r *ReminderLogRepository) DigestSentSince(ctx context.Context, userID uint, since time.Time) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.ReminderLog{}).
		Where("user_id = ? AND kind = ? AND status = ? AND created_at >= ?",
			userID, model.KindDailyDigest, model.StatusSent, since.UTC()).
		Limit(1).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check digest log: %w", err)
	}
	return count > 0, nil
}

// PurgeOlderThan deletes entries created before cutoff and returns how many were removed.
func (r *ReminderLogRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff.UTC()).Delete(&model.ReminderLog{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge reminder logs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

type historyRow struct {
	model.ReminderLog
	TaskTitle *string
}

// History returns the user's most recent ledger entries. Entries whose task
// no longer exists are labelled UnknownTaskTitle.
func (r *ReminderLogRepository) History(ctx context.Context, userID uint, limit int) ([]HistoryEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var rows []historyRow
	err := r.db.WithContext(ctx).
		Table("reminder_logs AS l").
		Select("l.*, t.title AS task_title").
		Joins("LEFT JOIN tasks t ON t.id = l.task_id").
		Where("l.user_id = ?", userID).
		Order("l.created_at DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("reminder history: %w", err)
	}

	entries := make([]HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entry := HistoryEntry{
			ID:        row.ID,
			TaskID:    row.TaskID,
			Kind:      row.Kind,
			LeadDays:  row.LeadDays,
			DueAt:     row.DueAtSnapshot,
			Status:    row.Status,
			CreatedAt: row.CreatedAt,
		}
		switch {
		case row.Kind == model.KindDailyDigest:
			entry.TaskTitle = "daily digest"
		case row.TaskTitle == nil:
			entry.TaskTitle = UnknownTaskTitle
		default:
			entry.TaskTitle = *row.TaskTitle
		}
		if row.ErrorDetail != nil {
			entry.ErrorDetail = *row.ErrorDetail
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
