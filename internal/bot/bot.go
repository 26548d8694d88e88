package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"deadline-tracker/internal/model"
	"deadline-tracker/internal/repository"
	"deadline-tracker/internal/service"
)

const (
	menuLabelTasks  = "📋 My tasks"
	menuLabelRemind = "⏰ Check reminders"
	menuLabelHelp   = "ℹ️ Help"

	maxListedTasks = 15
)

// ReminderRunner triggers the deadline check for one user.
type ReminderRunner interface {
	RunDeadlineCheckForUser(ctx context.Context, userID uint) (int, error)
}

type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot lets students link their Telegram chat to their account so reminders
// reach them there, and answers a few read-only commands.
type Bot struct {
	api       *tgbotapi.BotAPI
	out       messageSender
	users     *service.UserService
	tasks     *service.TaskService
	reminders ReminderRunner
	loc       *time.Location
	now       func() time.Time
	log       *zap.Logger
}

func New(api *tgbotapi.BotAPI, users *service.UserService, tasks *service.TaskService, reminders ReminderRunner, loc *time.Location, log *zap.Logger) *Bot {
	b := newBot(api, users, tasks, reminders, loc, log)
	b.api = api
	return b
}

func newBot(out messageSender, users *service.UserService, tasks *service.TaskService, reminders ReminderRunner, loc *time.Location, log *zap.Logger) *Bot {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Bot{
		out:       out,
		users:     users,
		tasks:     tasks,
		reminders: reminders,
		loc:       loc,
		now:       time.Now,
		log:       log.With(zap.String("component", "telegram_bot")),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		if update.Message == nil || update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			continue
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			b.log.Warn("handle message", zap.Int64("chat_id", update.Message.Chat.ID), zap.Error(err))
		}
	}
	return ctx.Err()
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	if msg.IsCommand() {
		b.log.Debug("command", zap.Int64("chat_id", msg.Chat.ID), zap.String("command", msg.Command()))
		return b.handleCommand(ctx, msg)
	}

	switch strings.TrimSpace(msg.Text) {
	case menuLabelTasks:
		return b.handleTasks(ctx, msg)
	case menuLabelRemind:
		return b.handleRemind(ctx, msg)
	case menuLabelHelp:
		return b.handleHelp(msg)
	}
	return b.sendText(msg.Chat.ID, "I did not understand that. Send /help for the list of commands.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "link":
		return b.handleLink(ctx, msg)
	case "unlink":
		return b.handleUnlink(ctx, msg)
	case "tasks":
		return b.handleTasks(ctx, msg)
	case "remind":
		return b.handleRemind(ctx, msg)
	case "digest":
		return b.handleDigest(ctx, msg)
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}

	if user, err := b.users.FindByChat(ctx, msg.Chat.ID); err == nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf(
			"👋 Hi %s! This chat is linked to <b>%s</b>. Deadline reminders will arrive here.",
			escape(name), escape(user.Email)))
	}

	text := fmt.Sprintf(
		"👋 Hi %s!\n<b>I send reminders about your academic deadlines.</b>\n\n"+
			"Link this chat to your account with\n/link your@email.edu\n\nThen see /help for commands.",
		escape(name))
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Commands</b>\n" +
		"• /link &lt;email&gt; - receive reminders in this chat\n" +
		"• /unlink - stop receiving reminders here\n" +
		"• /tasks - upcoming deadlines\n" +
		"• /remind - check for due reminders now\n" +
		"• /digest on|off - daily summary"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleLink(ctx context.Context, msg *tgbotapi.Message) error {
	email := strings.TrimSpace(msg.CommandArguments())
	if email == "" {
		return b.sendText(msg.Chat.ID, "Usage: /link your@email.edu")
	}
	user, err := b.users.LinkTelegram(ctx, email, msg.Chat.ID)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return b.sendText(msg.Chat.ID, "No account is registered with that email.")
	case errors.Is(err, service.ErrChatLinked):
		return b.sendText(msg.Chat.ID, "This chat is already linked to another account. Send /unlink first.")
	case errors.Is(err, service.ErrAccountLinked):
		b.log.Warn("link refused, account linked to another chat", zap.Int64("chat_id", msg.Chat.ID))
		return b.sendText(msg.Chat.ID, "That account is already linked to another chat. Unlink it there first.")
	case err != nil:
		return err
	}
	b.log.Info("telegram chat linked", zap.Uint("user_id", user.ID))
	return b.sendText(msg.Chat.ID, fmt.Sprintf(
		"✅ Linked to <b>%s</b>. Reminders will now arrive here too.\n"+
			"Note: email ownership is not verified. If this is not your account, send /unlink.",
		escape(user.Email)))
}

func (b *Bot) handleUnlink(ctx context.Context, msg *tgbotapi.Message) error {
	user, ok, err := b.linkedUser(ctx, msg.Chat.ID)
	if !ok || err != nil {
		return err
	}
	if _, err := b.users.UpdatePreferences(ctx, user.ID, service.PreferencesInput{UnlinkTelegram: true}); err != nil {
		return err
	}
	return b.sendText(msg.Chat.ID, "This chat is no longer linked. Email reminders continue as before.")
}

func (b *Bot) handleTasks(ctx context.Context, msg *tgbotapi.Message) error {
	user, ok, err := b.linkedUser(ctx, msg.Chat.ID)
	if !ok || err != nil {
		return err
	}
	tasks, err := b.tasks.ListTasks(ctx, user)
	if err != nil {
		return err
	}
	return b.sendText(msg.Chat.ID, formatTaskList(tasks, b.now(), b.loc))
}

func (b *Bot) handleRemind(ctx context.Context, msg *tgbotapi.Message) error {
	user, ok, err := b.linkedUser(ctx, msg.Chat.ID)
	if !ok || err != nil {
		return err
	}
	sent, err := b.reminders.RunDeadlineCheckForUser(ctx, user.ID)
	switch {
	case errors.Is(err, service.ErrRemindersDisabled):
		return b.sendText(msg.Chat.ID, "Reminders are switched off for your account.")
	case err != nil && sent == 0:
		b.log.Warn("manual reminder run failed", zap.Uint("user_id", user.ID), zap.Error(err))
		return b.sendText(msg.Chat.ID, "Could not check reminders right now, please try later.")
	case sent == 0:
		return b.sendText(msg.Chat.ID, "Nothing new is due. You are all caught up 🎉")
	default:
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Sent reminders for %d task(s).", sent))
	}
}

func (b *Bot) handleDigest(ctx context.Context, msg *tgbotapi.Message) error {
	user, ok, err := b.linkedUser(ctx, msg.Chat.ID)
	if !ok || err != nil {
		return err
	}
	var on bool
	switch strings.ToLower(strings.TrimSpace(msg.CommandArguments())) {
	case "on":
		on = true
	case "off":
		on = false
	default:
		return b.sendText(msg.Chat.ID, "Usage: /digest on or /digest off")
	}
	if _, err := b.users.UpdatePreferences(ctx, user.ID, service.PreferencesInput{DailyDigest: &on}); err != nil {
		return err
	}
	if on {
		return b.sendText(msg.Chat.ID, "📚 Daily summary switched on.")
	}
	return b.sendText(msg.Chat.ID, "Daily summary switched off.")
}

// linkedUser resolves the chat's account, telling the chat how to link when it is not.
func (b *Bot) linkedUser(ctx context.Context, chatID int64) (*model.User, bool, error) {
	user, err := b.users.FindByChat(ctx, chatID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, false, b.sendText(chatID, "This chat is not linked yet. Use /link your@email.edu")
	}
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.out.Send(msg)
	return err
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelTasks),
			tgbotapi.NewKeyboardButton(menuLabelRemind),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func formatTaskList(tasks []model.Task, now time.Time, loc *time.Location) string {
	var upcoming []model.Task
	for _, t := range tasks {
		if !t.DueAt.Before(now) {
			upcoming = append(upcoming, t)
		}
	}
	if len(upcoming) == 0 {
		return "No upcoming deadlines 🎉"
	}

	var sb strings.Builder
	sb.WriteString("📋 <b>Upcoming deadlines</b>\n")
	for i, t := range upcoming {
		if i == maxListedTasks {
			sb.WriteString(fmt.Sprintf("…and %d more", len(upcoming)-maxListedTasks))
			break
		}
		sb.WriteString(formatTask(t, now, loc))
	}
	return strings.TrimSpace(sb.String())
}

func formatTask(task model.Task, now time.Time, loc *time.Location) string {
	icon := "🟢"
	if task.DueAt.Sub(now) <= 24*time.Hour {
		icon = "⏳"
	}
	var sb strings.Builder
	sb.WriteString(icon + " ")
	if task.IsPriority {
		sb.WriteString("🌟 ")
	}
	sb.WriteString("<b>" + escape(task.Title) + "</b>")
	if c := strings.TrimSpace(task.Category); c != "" {
		sb.WriteString(" <i>(" + escape(c) + ")</i>")
	}
	sb.WriteString("\n   due " + task.DueAt.In(loc).Format("Mon 02 Jan 15:04") + "\n")
	return sb.String()
}

func escape(s string) string {
	return html.EscapeString(s)
}
