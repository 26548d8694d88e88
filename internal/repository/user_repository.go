package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"deadline-tracker/internal/model"
)

// PreferencesUpdate carries a partial reminder preference change; nil fields are left as they are.
type PreferencesUpdate struct {
	Enabled        *bool
	LeadTimes      *model.LeadTimes
	DailyDigest    *bool
	ReminderTime   *string
	TelegramChatID *int64
	UnlinkTelegram bool
}

// UserRepository is the user directory.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create registers a user, filling in default reminder preferences.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if user == nil || user.Email == "" {
		return ErrInvalidPayload
	}
	if user.LeadTimes == nil {
		user.LeadTimes = append(model.LeadTimes(nil), model.DefaultLeadTimes...)
	}
	if user.ReminderTime == "" {
		user.ReminderTime = model.DefaultReminderTime
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// FindByTelegramChatID returns the user linked to a Telegram chat.
func (r *UserRepository) FindByTelegramChatID(ctx context.Context, chatID int64) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("telegram_chat_id = ?", chatID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user by chat: %w", err)
	}
	return &user, nil
}

// ListWithRemindersEnabled returns every user who opted into reminders, ordered by id.
func (r *UserRepository) ListWithRemindersEnabled(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Where("reminders_enabled = ?", true).
		Order("id ASC").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list reminder users: %w", err)
	}
	return users, nil
}

// ListWithDigestEnabled returns users with reminders and the daily digest both enabled.
func (r *UserRepository) ListWithDigestEnabled(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Where("reminders_enabled = ? AND daily_digest = ?", true, true).
		Order("id ASC").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list digest users: %w", err)
	}
	return users, nil
}

// UpdatePreferences applies a partial preference change and returns the stored user.
func (r *UserRepository) UpdatePreferences(ctx context.Context, userID uint, upd PreferencesUpdate) (*model.User, error) {
	user, err := r.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if upd.Enabled != nil {
		updates["reminders_enabled"] = *upd.Enabled
	}
	if upd.LeadTimes != nil {
		updates["lead_times"] = *upd.LeadTimes
	}
	if upd.DailyDigest != nil {
		updates["daily_digest"] = *upd.DailyDigest
	}
	if upd.ReminderTime != nil {
		updates["reminder_time"] = *upd.ReminderTime
	}
	switch {
	case upd.UnlinkTelegram:
		updates["telegram_chat_id"] = nil
	case upd.TelegramChatID != nil:
		updates["telegram_chat_id"] = *upd.TelegramChatID
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := r.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update preferences: %w", err)
	}
	return r.FindByID(ctx, userID)
}
