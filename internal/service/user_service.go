package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"deadline-tracker/internal/model"
	"deadline-tracker/internal/repository"
)

// MaxLeadDays bounds how far ahead a reminder may be requested.
const MaxLeadDays = 30

var (
	ErrChatLinked    = errors.New("chat is already linked to another account")
	ErrAccountLinked = errors.New("account is already linked to another chat")
)

// RegisterInput holds the directory fields of a new student.
type RegisterInput struct {
	Name        string
	Email       string
	StudentID   string
	CollegeName string
}

// Preferences is the reminder configuration exposed to users.
type Preferences struct {
	Enabled        bool   `json:"enabled"`
	LeadTimes      []int  `json:"leadTimes"`
	DailyDigest    bool   `json:"dailyDigest"`
	ReminderTime   string `json:"reminderTime"`
	Email          string `json:"email"`
	TelegramLinked bool   `json:"telegramLinked"`
	TelegramChatID *int64 `json:"telegramChatId,omitempty"`
}

// PreferencesInput is a partial preference change. Nil fields are left as is.
type PreferencesInput struct {
	Enabled        *bool
	LeadTimes      []int
	DailyDigest    *bool
	ReminderTime   *string
	TelegramChatID *int64
	UnlinkTelegram bool
}

// UserService manages students and their reminder preferences.
type UserService struct {
	userRepo *repository.UserRepository
}

func NewUserService(userRepo *repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// Register creates a student with reminders enabled and default lead times.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", repository.ErrInvalidPayload)
	}
	user := &model.User{
		Name:             strings.TrimSpace(input.Name),
		Email:            email,
		StudentID:        strings.TrimSpace(input.StudentID),
		CollegeName:      strings.TrimSpace(input.CollegeName),
		RemindersEnabled: true,
		LeadTimes:        append(model.LeadTimes(nil), model.DefaultLeadTimes...),
		ReminderTime:     model.DefaultReminderTime,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, userID uint) (*model.User, error) {
	return s.userRepo.FindByID(ctx, userID)
}

// FindByChat returns the user linked to a Telegram chat.
func (s *UserService) FindByChat(ctx context.Context, chatID int64) (*model.User, error) {
	return s.userRepo.FindByTelegramChatID(ctx, chatID)
}

// LinkTelegram attaches a Telegram chat to the account registered under email.
// Links are never moved: a chat or account that is linked elsewhere must be
// unlinked first. Linking again to the same account is a no-op.
func (s *UserService) LinkTelegram(ctx context.Context, email string, chatID int64) (*model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if user.TelegramChatID != nil && *user.TelegramChatID == chatID {
		return user, nil
	}

	prev, err := s.userRepo.FindByTelegramChatID(ctx, chatID)
	switch {
	case err == nil && prev.ID != user.ID:
		return nil, ErrChatLinked
	case err != nil && !errors.Is(err, repository.ErrUserNotFound):
		return nil, err
	}
	if user.TelegramChatID != nil && *user.TelegramChatID != 0 {
		return nil, ErrAccountLinked
	}
	return s.userRepo.UpdatePreferences(ctx, user.ID, repository.PreferencesUpdate{TelegramChatID: &chatID})
}

func (s *UserService) Preferences(ctx context.Context, userID uint) (Preferences, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return Preferences{}, err
	}
	return PreferencesOf(user), nil
}

// UpdatePreferences validates and stores a preference change.
func (s *UserService) UpdatePreferences(ctx context.Context, userID uint, input PreferencesInput) (Preferences, error) {
	upd := repository.PreferencesUpdate{
		Enabled:        input.Enabled,
		DailyDigest:    input.DailyDigest,
		TelegramChatID: input.TelegramChatID,
		UnlinkTelegram: input.UnlinkTelegram,
	}

	if input.LeadTimes != nil {
		for _, d := range input.LeadTimes {
			if d < 0 || d > MaxLeadDays {
				return Preferences{}, fmt.Errorf("%w: lead days must be between 0 and %d, got %d",
					repository.ErrInvalidPayload, MaxLeadDays, d)
			}
		}
		leads, _ := model.LeadTimes(input.LeadTimes).Normalize()
		upd.LeadTimes = &leads
	}

	if input.ReminderTime != nil {
		if _, err := time.Parse("15:04", *input.ReminderTime); err != nil {
			return Preferences{}, fmt.Errorf("%w: reminder time must be HH:MM", repository.ErrInvalidPayload)
		}
		upd.ReminderTime = input.ReminderTime
	}

	user, err := s.userRepo.UpdatePreferences(ctx, userID, upd)
	if err != nil {
		return Preferences{}, err
	}
	return PreferencesOf(user), nil
}

// PreferencesOf projects a user onto the preferences view, filling defaults.
func PreferencesOf(user *model.User) Preferences {
	leads, _ := user.LeadTimes.Normalize()
	reminderTime := user.ReminderTime
	if reminderTime == "" {
		reminderTime = model.DefaultReminderTime
	}
	return Preferences{
		Enabled:        user.RemindersEnabled,
		LeadTimes:      []int(leads),
		DailyDigest:    user.DailyDigest,
		ReminderTime:   reminderTime,
		Email:          user.Email,
		TelegramLinked: user.TelegramChatID != nil,
		TelegramChatID: user.TelegramChatID,
	}
}
