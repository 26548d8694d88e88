package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// DefaultLeadTimes are used when a user has not chosen their own reminder days.
var DefaultLeadTimes = LeadTimes{1, 3, 7}

// DefaultReminderTime is the preferred local time of day for reminders.
const DefaultReminderTime = "17:30"

// User stores a student and their reminder preferences.
type User struct {
	ID             uint   `gorm:"primaryKey"`
	Name           string
	Email          string `gorm:"uniqueIndex;not null"`
	StudentID      string
	CollegeName    string
	TelegramChatID *int64

	RemindersEnabled bool
	LeadTimes        LeadTimes `gorm:"type:text"`
	DailyDigest      bool
	ReminderTime     string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName falls back to the email when no name was given.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// LeadTimes is the list of days before a deadline at which reminders fire.
// It is stored as a JSON array.
type LeadTimes []int

func (l LeadTimes) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]int(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *LeadTimes) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("scan lead times: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*l = nil
		return nil
	}
	var days []int
	if err := json.Unmarshal(raw, &days); err != nil {
		return fmt.Errorf("scan lead times: %w", err)
	}
	*l = days
	return nil
}

// Normalize returns the valid lead times ascending and without duplicates,
// plus the entries that were rejected. An empty list yields the defaults.
func (l LeadTimes) Normalize() (valid LeadTimes, rejected []int) {
	if len(l) == 0 {
		return append(LeadTimes(nil), DefaultLeadTimes...), nil
	}
	seen := make(map[int]struct{}, len(l))
	for _, d := range l {
		if d < 0 {
			rejected = append(rejected, d)
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		valid = append(valid, d)
	}
	sort.Ints(valid)
	return valid, rejected
}
