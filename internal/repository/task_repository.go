package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"deadline-tracker/internal/model"
)

// TaskRepository is the task directory.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if task == nil || task.UserID == 0 || task.Title == "" {
		return ErrInvalidPayload
	}
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	return &task, nil
}

// ListByUser returns all of a user's tasks, soonest deadline first.
func (r *TaskRepository) ListByUser(ctx context.Context, userID uint) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("due_at ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Update saves an edited task. Ledger rows logged against the old due date are left alone.
func (r *TaskRepository) Update(ctx context.Context, task *model.Task) error {
	if task == nil || task.ID == 0 {
		return ErrInvalidPayload
	}
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("user_id = ? AND id = ?", task.UserID, task.ID).
		Updates(map[string]interface{}{
			"title":        task.Title,
			"category":     task.Category,
			"due_at":       task.DueAt.UTC(),
			"notes":        task.Notes,
			"is_priority":  task.IsPriority,
			"is_recurring": task.IsRecurring,
		})
	if res.Error != nil {
		return fmt.Errorf("update task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Delete removes a task owned by the given user.
func (r *TaskRepository) Delete(ctx context.Context, userID, taskID uint) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).Delete(&model.Task{})
	if res.Error != nil {
		return fmt.Errorf("delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// ListDueBetween returns the user's tasks due within [start, end], both inclusive.
func (r *TaskRepository) ListDueBetween(ctx context.Context, userID uint, start, end time.Time) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND due_at >= ? AND due_at <= ?", userID, start.UTC(), end.UTC()).
		Order("due_at ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks due: %w", err)
	}
	return tasks, nil
}

// ListDueAfter returns at most limit tasks due within (after, until], soonest first.
func (r *TaskRepository) ListDueAfter(ctx context.Context, userID uint, after, until time.Time, limit int) ([]model.Task, error) {
	var tasks []model.Task
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND due_at > ? AND due_at <= ?", userID, after.UTC(), until.UTC()).
		Order("due_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list upcoming tasks: %w", err)
	}
	return tasks, nil
}
