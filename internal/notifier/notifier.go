// Package notifier renders reminder messages and hands them to a delivery
// transport. Deciding whether a reminder is a duplicate is not its job.
package notifier

import (
	"context"
	"errors"
	"fmt"

	"deadline-tracker/internal/model"
)

// Notifier delivers reminder messages to a user.
type Notifier interface {
	SendDeadlineBatch(ctx context.Context, user model.User, tasks []model.Task, leadDays int) error
	SendDigest(ctx context.Context, user model.User, today, upcoming []model.Task) error
}

// Category classifies a delivery failure for logging and ledger bookkeeping.
type Category string

const (
	CategoryAuth       Category = "auth"
	CategoryConnection Category = "connection"
	CategoryRecipient  Category = "recipient"
	CategoryOther      Category = "other"
)

// ErrUnreachable is returned when a user has no address on a channel.
var ErrUnreachable = errors.New("user not reachable on channel")

// DeliveryError is returned by every Notifier implementation on failure.
type DeliveryError struct {
	Category Category
	Channel  string
	Err      error
}

func (e *DeliveryError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s delivery failed (%s): %v", e.Channel, e.Category, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CategoryOf extracts the failure category, defaulting to CategoryOther.
func CategoryOf(err error) Category {
	var dErr *DeliveryError
	if errors.As(err, &dErr) {
		return dErr.Category
	}
	return CategoryOther
}

// StatusFor maps a delivery result onto a ledger status.
func StatusFor(err error) model.DeliveryStatus {
	switch {
	case err == nil:
		return model.StatusSent
	case CategoryOf(err) == CategoryRecipient:
		return model.StatusBounced
	default:
		return model.StatusFailed
	}
}
