package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"deadline-tracker/internal/model"
	"deadline-tracker/internal/repository"
	"deadline-tracker/internal/service"
)

// UserLookup resolves the authenticated caller.
type UserLookup interface {
	Get(ctx context.Context, userID uint) (*model.User, error)
}

// ReminderRunner is the part of the reminder scheduler exposed over HTTP.
type ReminderRunner interface {
	RunDeadlineCheckForUser(ctx context.Context, userID uint) (int, error)
	Status() service.Status
}

// HistoryReader lists a user's delivery history.
type HistoryReader interface {
	History(ctx context.Context, userID uint, limit int) ([]repository.HistoryEntry, error)
}

// Handler holds the collaborators of every HTTP endpoint.
type Handler struct {
	users     *service.UserService
	tasks     *service.TaskService
	reminders ReminderRunner
	history   HistoryReader
	log       *zap.Logger
}

func NewHandler(users *service.UserService, tasks *service.TaskService, reminders ReminderRunner, history HistoryReader, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{users: users, tasks: tasks, reminders: reminders, history: history, log: log}
}

type registerRequest struct {
	Name        string `json:"name" binding:"max=100"`
	Email       string `json:"email" binding:"required,email"`
	StudentID   string `json:"studentId" binding:"max=50"`
	CollegeName string `json:"collegeName" binding:"max=200"`
}

type preferencesRequest struct {
	Enabled        *bool   `json:"enabled"`
	LeadTimes      []int   `json:"leadTimes" binding:"omitempty,max=10,dive,min=0,max=30"`
	DailyDigest    *bool   `json:"dailyDigest"`
	ReminderTime   *string `json:"reminderTime" binding:"omitempty,hhmm"`
	TelegramChatID *int64  `json:"telegramChatId"`
	UnlinkTelegram bool    `json:"unlinkTelegram"`
}

type taskRequest struct {
	Title       string    `json:"title" binding:"required,max=200"`
	Category    string    `json:"category" binding:"max=50"`
	DueAt       time.Time `json:"dueAt" binding:"required"`
	Notes       string    `json:"notes" binding:"max=2000"`
	IsPriority  bool      `json:"isPriority"`
	IsRecurring bool      `json:"isRecurring"`
}

func (r taskRequest) input() service.TaskInput {
	return service.TaskInput{
		Title:       r.Title,
		Category:    r.Category,
		DueAt:       r.DueAt,
		Notes:       r.Notes,
		IsPriority:  r.IsPriority,
		IsRecurring: r.IsRecurring,
	}
}

type taskResponse struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	DueAt       time.Time `json:"dueAt"`
	Notes       string    `json:"notes,omitempty"`
	IsPriority  bool      `json:"isPriority"`
	IsRecurring bool      `json:"isRecurring"`
}

func newTaskResponse(t model.Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Category:    t.Category,
		DueAt:       t.DueAt,
		Notes:       t.Notes,
		IsPriority:  t.IsPriority,
		IsRecurring: t.IsRecurring,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindingMessage(err)})
		return
	}
	user, err := h.users.Register(c.Request.Context(), service.RegisterInput{
		Name:        req.Name,
		Email:       req.Email,
		StudentID:   req.StudentID,
		CollegeName: req.CollegeName,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":          user.ID,
		"email":       user.Email,
		"preferences": service.PreferencesOf(user),
	})
}

func (h *Handler) GetPreferences(c *gin.Context) {
	prefs, err := h.users.Preferences(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (h *Handler) UpdatePreferences(c *gin.Context) {
	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindingMessage(err)})
		return
	}
	prefs, err := h.users.UpdatePreferences(c.Request.Context(), currentUser(c).ID, service.PreferencesInput{
		Enabled:        req.Enabled,
		LeadTimes:      req.LeadTimes,
		DailyDigest:    req.DailyDigest,
		ReminderTime:   req.ReminderTime,
		TelegramChatID: req.TelegramChatID,
		UnlinkTelegram: req.UnlinkTelegram,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Reminder preferences updated", "preferences": prefs})
}

// TestReminder runs the deadline check for the caller right away.
func (h *Handler) TestReminder(c *gin.Context) {
	user := currentUser(c)
	sent, err := h.reminders.RunDeadlineCheckForUser(c.Request.Context(), user.ID)
	switch {
	case errors.Is(err, service.ErrRemindersDisabled):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email reminders are disabled"})
		return
	case err != nil && sent == 0:
		h.fail(c, err)
		return
	case err != nil:
		h.log.Warn("manual reminder run partially failed", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"message": "Test reminders processed", "remindersSent": sent})
}

func (h *Handler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := h.history.History(c.Request.Context(), currentUser(c).ID, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

func (h *Handler) SchedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.reminders.Status())
}

func (h *Handler) ListTasks(c *gin.Context) {
	tasks, err := h.tasks.ListTasks(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, newTaskResponse(t))
	}
	c.JSON(http.StatusOK, gin.H{"tasks": out})
}

func (h *Handler) CreateTask(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindingMessage(err)})
		return
	}
	task, err := h.tasks.CreateTask(c.Request.Context(), currentUser(c), req.input())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTaskResponse(*task))
}

func (h *Handler) GetTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	task, err := h.tasks.GetTask(c.Request.Context(), currentUser(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(*task))
}

func (h *Handler) UpdateTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindingMessage(err)})
		return
	}
	task, err := h.tasks.UpdateTask(c.Request.Context(), currentUser(c), id, req.input())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(*task))
}

func (h *Handler) DeleteTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	if err := h.tasks.DeleteTask(c.Request.Context(), currentUser(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func taskID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return 0, false
	}
	return uint(id), true
}

// fail maps domain errors onto HTTP statuses.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrUserNotFound), errors.Is(err, repository.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrInvalidPayload):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrJobRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
