package notifier

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"deadline-tracker/internal/model"
)

// Channel is a Notifier bound to one transport.
type Channel interface {
	Notifier
	Name() string
	Reachable(user model.User) bool
}

// Fanout delivers through every channel a user is reachable on. Delivery
// counts as successful when at least one channel accepted the message.
type Fanout struct {
	channels []Channel
	log      *zap.Logger
}

func NewFanout(log *zap.Logger, channels ...Channel) *Fanout {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fanout{channels: channels, log: log}
}

func (f *Fanout) SendDeadlineBatch(ctx context.Context, user model.User, tasks []model.Task, leadDays int) error {
	return f.each(user, func(c Channel) error {
		return c.SendDeadlineBatch(ctx, user, tasks, leadDays)
	})
}

func (f *Fanout) SendDigest(ctx context.Context, user model.User, today, upcoming []model.Task) error {
	return f.each(user, func(c Channel) error {
		return c.SendDigest(ctx, user, today, upcoming)
	})
}

func (f *Fanout) each(user model.User, send func(Channel) error) error {
	var (
		firstErr  error
		attempted int
		delivered int
	)
	for _, c := range f.channels {
		if !c.Reachable(user) {
			continue
		}
		attempted++
		if err := send(c); err != nil {
			f.log.Warn("channel delivery failed",
				zap.String("channel", c.Name()),
				zap.Uint("user_id", user.ID),
				zap.String("category", string(CategoryOf(err))),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		delivered++
	}

	switch {
	case delivered > 0:
		return nil
	case attempted == 0:
		return &DeliveryError{Category: CategoryRecipient, Channel: "fanout", Err: ErrUnreachable}
	default:
		var dErr *DeliveryError
		if errors.As(firstErr, &dErr) {
			return dErr
		}
		return &DeliveryError{Category: CategoryOther, Channel: "fanout", Err: firstErr}
	}
}

// LogNotifier is the dry-run transport used when no SMTP server is configured.
type LogNotifier struct {
	renderer *Renderer
	log      *zap.Logger
}

func NewLogNotifier(renderer *Renderer, log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{renderer: renderer, log: log}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Reachable(user model.User) bool { return user.Email != "" }

func (n *LogNotifier) SendDeadlineBatch(_ context.Context, user model.User, tasks []model.Task, leadDays int) error {
	msg, err := n.renderer.DeadlineBatch(user, tasks, leadDays)
	if err != nil {
		return &DeliveryError{Category: CategoryOther, Channel: n.Name(), Err: err}
	}
	n.log.Info("deadline reminder (dry run)", zap.String("to", user.Email), zap.String("subject", msg.Subject))
	return nil
}

func (n *LogNotifier) SendDigest(_ context.Context, user model.User, today, upcoming []model.Task) error {
	msg, err := n.renderer.Digest(user, today, upcoming)
	if err != nil {
		return &DeliveryError{Category: CategoryOther, Channel: n.Name(), Err: err}
	}
	n.log.Info("digest (dry run)", zap.String("to", user.Email), zap.String("subject", msg.Subject),
		zap.Int("today", len(today)), zap.Int("upcoming", len(upcoming)))
	return nil
}
