package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"deadline-tracker/internal/model"
	"deadline-tracker/internal/repository"
)

// clockNow is a Tuesday noon, far from any DST change.
var clockNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db     *gorm.DB
	users  *repository.UserRepository
	tasks  *repository.TaskRepository
	ledger *repository.ReminderLogRepository
	sender *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.NewDB("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name), zap.NewNop())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	return &fixture{
		db:     db,
		users:  repository.NewUserRepository(db),
		tasks:  repository.NewTaskRepository(db),
		ledger: repository.NewReminderLogRepository(db).WithClock(func() time.Time { return clockNow }),
		sender: &recordingNotifier{},
	}
}

func (f *fixture) scheduler(opts SchedulerOptions) *ReminderScheduler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return NewReminderScheduler(Deps{
		Users:    f.users,
		Tasks:    f.tasks,
		Ledger:   f.ledger,
		Notifier: f.sender,
		Now:      func() time.Time { return clockNow },
	}, opts, nil, zap.NewNop())
}

func (f *fixture) user(t *testing.T, email string, leads ...int) *model.User {
	t.Helper()
	u := &model.User{Name: "Student", Email: email, RemindersEnabled: true, LeadTimes: model.LeadTimes(leads)}
	if err := f.users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (f *fixture) task(t *testing.T, userID uint, title string, due time.Time) *model.Task {
	t.Helper()
	task := &model.Task{UserID: userID, Title: title, DueAt: due}
	if err := f.tasks.Create(context.Background(), task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func (f *fixture) ledgerRows(t *testing.T) []model.ReminderLog {
	t.Helper()
	var rows []model.ReminderLog
	if err := f.db.Order("created_at, task_id").Find(&rows).Error; err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	return rows
}

type deadlineCall struct {
	UserID   uint
	TaskIDs  []uint
	LeadDays int
}

type digestCall struct {
	UserID   uint
	Today    int
	Upcoming int
}

// recordingNotifier records every call and fails for users listed in failFor.
type recordingNotifier struct {
	mu        sync.Mutex
	deadlines []deadlineCall
	digests   []digestCall
	failFor   map[uint]error

	// entered and release make the next send block until released.
	entered chan struct{}
	release chan struct{}
}

func (n *recordingNotifier) block() {
	if n.entered == nil {
		return
	}
	n.entered <- struct{}{}
	<-n.release
}

func (n *recordingNotifier) SendDeadlineBatch(_ context.Context, user model.User, tasks []model.Task, leadDays int) error {
	n.block()
	n.mu.Lock()
	defer n.mu.Unlock()
	ids := make([]uint, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	n.deadlines = append(n.deadlines, deadlineCall{UserID: user.ID, TaskIDs: ids, LeadDays: leadDays})
	return n.failFor[user.ID]
}

func (n *recordingNotifier) SendDigest(_ context.Context, user model.User, today, upcoming []model.Task) error {
	n.block()
	n.mu.Lock()
	defer n.mu.Unlock()
	n.digests = append(n.digests, digestCall{UserID: user.ID, Today: len(today), Upcoming: len(upcoming)})
	return n.failFor[user.ID]
}

func (n *recordingNotifier) deadlineCalls() []deadlineCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]deadlineCall(nil), n.deadlines...)
}

func (n *recordingNotifier) digestCalls() []digestCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]digestCall(nil), n.digests...)
}
