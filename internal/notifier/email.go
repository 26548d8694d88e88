package notifier

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"deadline-tracker/internal/model"
)

const channelEmail = "email"

// EmailConfig holds SMTP settings.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// EmailNotifier delivers reminders over SMTP.
type EmailNotifier struct {
	client   mailSender
	from     string
	renderer *Renderer
	log      *zap.Logger
}

func NewEmailNotifier(cfg EmailConfig, renderer *Renderer, log *zap.Logger) (*EmailNotifier, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return newEmailNotifier(client, cfg.From, renderer, log), nil
}

func newEmailNotifier(client mailSender, from string, renderer *Renderer, log *zap.Logger) *EmailNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &EmailNotifier{client: client, from: from, renderer: renderer, log: log}
}

func (n *EmailNotifier) Name() string { return channelEmail }

func (n *EmailNotifier) Reachable(user model.User) bool {
	return strings.TrimSpace(user.Email) != ""
}

func (n *EmailNotifier) SendDeadlineBatch(ctx context.Context, user model.User, tasks []model.Task, leadDays int) error {
	msg, err := n.renderer.DeadlineBatch(user, tasks, leadDays)
	if err != nil {
		return &DeliveryError{Category: CategoryOther, Channel: channelEmail, Err: err}
	}
	if err := n.send(ctx, user.Email, msg); err != nil {
		return err
	}
	n.log.Info("deadline email sent", zap.Uint("user_id", user.ID), zap.Int("tasks", len(tasks)), zap.Int("lead_days", leadDays))
	return nil
}

func (n *EmailNotifier) SendDigest(ctx context.Context, user model.User, today, upcoming []model.Task) error {
	msg, err := n.renderer.Digest(user, today, upcoming)
	if err != nil {
		return &DeliveryError{Category: CategoryOther, Channel: channelEmail, Err: err}
	}
	if err := n.send(ctx, user.Email, msg); err != nil {
		return err
	}
	n.log.Info("digest email sent", zap.Uint("user_id", user.ID))
	return nil
}

func (n *EmailNotifier) send(ctx context.Context, to string, rendered Message) error {
	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return &DeliveryError{Category: CategoryOther, Channel: channelEmail, Err: fmt.Errorf("sender address: %w", err)}
	}
	if err := msg.To(to); err != nil {
		return &DeliveryError{Category: CategoryRecipient, Channel: channelEmail, Err: fmt.Errorf("recipient address: %w", err)}
	}
	msg.Subject(rendered.Subject)
	msg.SetBodyString(mail.TypeTextPlain, rendered.Text)
	msg.AddAlternativeString(mail.TypeTextHTML, rendered.HTML)

	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		return &DeliveryError{Category: classifySMTP(err), Channel: channelEmail, Err: err}
	}
	return nil
}

func classifySMTP(err error) Category {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		switch {
		case tpErr.Code == 530 || tpErr.Code == 534 || tpErr.Code == 535:
			return CategoryAuth
		case tpErr.Code >= 550 && tpErr.Code <= 553:
			return CategoryRecipient
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return CategoryConnection
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "auth") || strings.Contains(msg, "535"):
		return CategoryAuth
	case strings.Contains(msg, "dial") || strings.Contains(msg, "connection") || strings.Contains(msg, "timeout"):
		return CategoryConnection
	case strings.Contains(msg, "recipient") || strings.Contains(msg, "550"):
		return CategoryRecipient
	}
	return CategoryOther
}
