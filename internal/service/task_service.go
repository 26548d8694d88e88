package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"deadline-tracker/internal/model"
	"deadline-tracker/internal/repository"
)

// TaskInput represents data required to create or replace a task.
type TaskInput struct {
	Title       string
	Category    string
	DueAt       time.Time
	Notes       string
	IsPriority  bool
	IsRecurring bool
}

// TaskService wraps task-related business logic.
type TaskService struct {
	taskRepo *repository.TaskRepository
}

func NewTaskService(taskRepo *repository.TaskRepository) *TaskService {
	return &TaskService{taskRepo: taskRepo}
}

func (s *TaskService) CreateTask(ctx context.Context, user *model.User, input TaskInput) (*model.Task, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	task := model.Task{
		UserID:      user.ID,
		Title:       strings.TrimSpace(input.Title),
		Category:    strings.TrimSpace(input.Category),
		DueAt:       input.DueAt,
		Notes:       input.Notes,
		IsPriority:  input.IsPriority,
		IsRecurring: input.IsRecurring,
	}
	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *TaskService) ListTasks(ctx context.Context, user *model.User) ([]model.Task, error) {
	return s.taskRepo.ListByUser(ctx, user.ID)
}

func (s *TaskService) GetTask(ctx context.Context, user *model.User, taskID uint) (*model.Task, error) {
	return s.taskRepo.FindByID(ctx, user.ID, taskID)
}

// UpdateTask replaces the editable fields of a task. Moving the due date does
// not touch reminders already recorded for the old date.
func (s *TaskService) UpdateTask(ctx context.Context, user *model.User, taskID uint, input TaskInput) (*model.Task, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	task, err := s.taskRepo.FindByID(ctx, user.ID, taskID)
	if err != nil {
		return nil, err
	}
	task.Title = strings.TrimSpace(input.Title)
	task.Category = strings.TrimSpace(input.Category)
	task.DueAt = input.DueAt
	task.Notes = input.Notes
	task.IsPriority = input.IsPriority
	task.IsRecurring = input.IsRecurring

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask removes a task. Ledger entries referring to it are kept.
func (s *TaskService) DeleteTask(ctx context.Context, user *model.User, taskID uint) error {
	return s.taskRepo.Delete(ctx, user.ID, taskID)
}

func (in TaskInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", repository.ErrInvalidPayload)
	}
	if in.DueAt.IsZero() {
		return fmt.Errorf("%w: due date is required", repository.ErrInvalidPayload)
	}
	return nil
}
