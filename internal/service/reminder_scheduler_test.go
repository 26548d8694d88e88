package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"deadline-tracker/internal/model"
	"deadline-tracker/internal/notifier"
	"deadline-tracker/internal/repository"
)

func TestDeadlineCheckDeliversAtMostOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.scheduler(SchedulerOptions{})

	u := f.user(t, "u@uni.edu", 1, 3, 7)
	task := f.task(t, u.ID, "essay", clockNow.AddDate(0, 0, 3))

	report, err := s.RunDeadlineCheck(ctx)
	if err != nil {
		t.Fatalf("first tick: %v", err)
	}
	if report.Sent != 1 || report.Users != 1 {
		t.Fatalf("first report = %+v", report)
	}

	report, err = s.RunDeadlineCheck(ctx)
	if err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if report.Sent != 0 {
		t.Fatalf("second tick sent %d, want 0", report.Sent)
	}

	calls := f.sender.deadlineCalls()
	if len(calls) != 1 || calls[0].LeadDays != 3 || calls[0].TaskIDs[0] != task.ID {
		t.Fatalf("calls = %+v", calls)
	}
	rows := f.ledgerRows(t)
	if len(rows) != 1 {
		t.Fatalf("ledger rows = %d, want 1", len(rows))
	}
	if rows[0].Status != model.StatusSent || rows[0].LeadDays != 3 || rows[0].TaskID != task.ID {
		t.Fatalf("ledger row = %+v", rows[0])
	}
}

func TestDeadlineCheckWindowsByCalendarDay(t *testing.T) {
	f := newFixture(t)
	s := f.scheduler(SchedulerOptions{})
	u := f.user(t, "w@uni.edu", 1)

	start, end := DayWindow(clockNow, time.UTC, 1)
	first := f.task(t, u.ID, "start of day", start)
	last := f.task(t, u.ID, "end of day", end.Truncate(time.Second))
	f.task(t, u.ID, "next day", end.Add(time.Nanosecond))
	f.task(t, u.ID, "today", clockNow.Add(time.Hour))

	if _, err := s.RunDeadlineCheck(context.Background()); err != nil {
		t.Fatal(err)
	}
	calls := f.sender.deadlineCalls()
	if len(calls) != 1 {
		t.Fatalf("calls = %+v, want one batch", calls)
	}
	got := calls[0].TaskIDs
	if len(got) != 2 || got[0] != first.ID || got[1] != last.ID {
		t.Fatalf("batch = %v, want [%d %d]", got, first.ID, last.ID)
	}
}

func TestDeadlineCheckLeadThreeBoundaries(t *testing.T) {
	day := time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		due  time.Time
		want bool
	}{
		{"start of target day", day, true},
		{"last second of target day", day.Add(23*time.Hour + 59*time.Minute + 59*time.Second), true},
		{"just after target day", day.AddDate(0, 0, 1).Add(time.Second), false},
		{"day before target", day.Add(-time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			s := f.scheduler(SchedulerOptions{})
			u := f.user(t, "edge@uni.edu", 3)
			f.task(t, u.ID, "task", tt.due)

			report, err := s.RunDeadlineCheck(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if got := report.Sent == 1; got != tt.want {
				t.Fatalf("due %s sent = %d, want included=%v", tt.due, report.Sent, tt.want)
			}
		})
	}
}

func TestDeadlineCheckBatchesPerLeadTime(t *testing.T) {
	f := newFixture(t)
	s := f.scheduler(SchedulerOptions{})
	u := f.user(t, "b@uni.edu", 7, 1, 1, -2)

	f.task(t, u.ID, "quiz", clockNow.AddDate(0, 0, 1))
	f.task(t, u.ID, "lab", clockNow.AddDate(0, 0, 1).Add(time.Hour))
	f.task(t, u.ID, "project", clockNow.AddDate(0, 0, 7))

	report, err := s.RunDeadlineCheck(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Sent != 3 {
		t.Fatalf("sent = %d, want 3", report.Sent)
	}
	calls := f.sender.deadlineCalls()
	if len(calls) != 2 {
		t.Fatalf("calls = %+v", calls)
	}
	if calls[0].LeadDays != 1 || len(calls[0].TaskIDs) != 2 || calls[1].LeadDays != 7 {
		t.Fatalf("batches out of order or incomplete: %+v", calls)
	}
}

func TestDeadlineCheckIsolatesFailingUsers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.scheduler(SchedulerOptions{})

	a := f.user(t, "a@uni.edu", 1)
	b := f.user(t, "b@uni.edu", 1)
	c := f.user(t, "c@uni.edu", 1)
	for _, u := range []*model.User{a, b, c} {
		f.task(t, u.ID, "task", clockNow.AddDate(0, 0, 1))
	}
	f.sender.failFor = map[uint]error{
		b.ID: &notifier.DeliveryError{Category: notifier.CategoryConnection, Channel: "email", Err: errors.New("connection refused")},
	}

	report, err := s.RunDeadlineCheck(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Sent != 2 || report.Failed != 1 {
		t.Fatalf("report = %+v", report)
	}

	status := map[uint]model.DeliveryStatus{}
	for _, row := range f.ledgerRows(t) {
		status[row.UserID] = row.Status
		if row.UserID == b.ID && (row.ErrorDetail == nil || *row.ErrorDetail == "") {
			t.Fatal("failed entry must carry error detail")
		}
	}
	if status[a.ID] != model.StatusSent || status[b.ID] != model.StatusFailed || status[c.ID] != model.StatusSent {
		t.Fatalf("statuses = %v", status)
	}

	// The failed user is retried on the next tick, the others are not.
	f.sender.failFor = nil
	report, err = s.RunDeadlineCheck(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Sent != 1 {
		t.Fatalf("retry sent = %d, want 1", report.Sent)
	}
	calls := f.sender.deadlineCalls()
	if last := calls[len(calls)-1]; last.UserID != b.ID {
		t.Fatalf("retried user %d, want %d", last.UserID, b.ID)
	}
}

func TestDeadlineCheckRecordsBounces(t *testing.T) {
	f := newFixture(t)
	s := f.scheduler(SchedulerOptions{})
	u := f.user(t, "gone@uni.edu", 3)
	f.task(t, u.ID, "report", clockNow.AddDate(0, 0, 3))
	f.sender.failFor = map[uint]error{
		u.ID: &notifier.DeliveryError{Category: notifier.CategoryRecipient, Channel: "email", Err: errors.New("550 no such user")},
	}

	if _, err := s.RunDeadlineCheck(context.Background()); err != nil {
		t.Fatal(err)
	}
	rows := f.ledgerRows(t)
	if len(rows) != 1 || rows[0].Status != model.StatusBounced {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestSameDayTasksNeedLeadZero(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.scheduler(SchedulerOptions{})

	u := f.user(t, "gap@uni.edu", 1)
	f.task(t, u.ID, "due today", clockNow.Add(3*time.Hour))

	if report, _ := s.RunDeadlineCheck(ctx); report.Sent != 0 {
		t.Fatalf("lead 1 must not match a task due today, sent %d", report.Sent)
	}

	leads := model.LeadTimes{0, 1}
	if _, err := f.users.UpdatePreferences(ctx, u.ID, repository.PreferencesUpdate{LeadTimes: &leads}); err != nil {
		t.Fatal(err)
	}
	report, err := s.RunDeadlineCheck(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Sent != 1 || f.sender.deadlineCalls()[0].LeadDays != 0 {
		t.Fatalf("lead 0 report = %+v", report)
	}
}

type failingUsers struct{ err error }

func (f failingUsers) ListWithRemindersEnabled(context.Context) ([]model.User, error) {
	return nil, f.err
}
func (f failingUsers) ListWithDigestEnabled(context.Context) ([]model.User, error) {
	return nil, f.err
}
func (f failingUsers) FindByID(context.Context, uint) (*model.User, error) { return nil, f.err }

func TestDirectoryReadFailureAbortsTick(t *testing.T) {
	f := newFixture(t)
	sender := &recordingNotifier{}
	s := NewReminderScheduler(Deps{
		Users:    failingUsers{err: errors.New("connection reset")},
		Tasks:    f.tasks,
		Ledger:   f.ledger,
		Notifier: sender,
		Now:      func() time.Time { return clockNow },
	}, SchedulerOptions{Location: time.UTC}, nil, zap.NewNop())

	if _, err := s.RunDeadlineCheck(context.Background()); !errors.Is(err, ErrDirectoryRead) {
		t.Fatalf("deadline err = %v, want ErrDirectoryRead", err)
	}
	if _, err := s.RunDigestCheck(context.Background()); !errors.Is(err, ErrDirectoryRead) {
		t.Fatalf("digest err = %v, want ErrDirectoryRead", err)
	}
	if len(sender.deadlineCalls())+len(sender.digestCalls()) != 0 {
		t.Fatal("notifier must not be called")
	}
	if rows := f.ledgerRows(t); len(rows) != 0 {
		t.Fatalf("ledger rows = %d, want 0", len(rows))
	}

	// The guard is released after a failed tick.
	if st := s.Status(); len(st.Running) != 0 {
		t.Fatalf("running = %v", st.Running)
	}
}

func TestOverlappingTickIsSkipped(t *testing.T) {
	f := newFixture(t)
	f.sender.entered = make(chan struct{})
	f.sender.release = make(chan struct{})
	s := f.scheduler(SchedulerOptions{})

	u := f.user(t, "slow@uni.edu", 1)
	f.task(t, u.ID, "task", clockNow.AddDate(0, 0, 1))

	done := make(chan error, 1)
	go func() {
		_, err := s.RunDeadlineCheck(context.Background())
		done <- err
	}()
	<-f.sender.entered

	if st := s.Status(); len(st.Running) != 1 || st.Running[0] != string(JobDeadlineCheck) {
		t.Fatalf("running = %v", st.Running)
	}
	if _, err := s.RunDeadlineCheck(context.Background()); !errors.Is(err, ErrJobRunning) {
		t.Fatalf("overlapping tick err = %v, want ErrJobRunning", err)
	}
	// Other jobs are guarded independently.
	if _, err := s.RunRetentionSweep(context.Background()); err != nil {
		t.Fatalf("sweep during deadline check: %v", err)
	}

	close(f.sender.release)
	if err := <-done; err != nil {
		t.Fatalf("first tick: %v", err)
	}
	if calls := f.sender.deadlineCalls(); len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
}

// panickingNotifier panics for one user and records sends for everyone else.
type panickingNotifier struct {
	*recordingNotifier
	panicFor uint
}

func (p *panickingNotifier) SendDeadlineBatch(ctx context.Context, user model.User, tasks []model.Task, leadDays int) error {
	if user.ID == p.panicFor {
		panic("transport blew up")
	}
	return p.recordingNotifier.SendDeadlineBatch(ctx, user, tasks, leadDays)
}

func (p *panickingNotifier) SendDigest(ctx context.Context, user model.User, today, upcoming []model.Task) error {
	if user.ID == p.panicFor {
		panic("transport blew up")
	}
	return p.recordingNotifier.SendDigest(ctx, user, today, upcoming)
}

func TestPanicForOneUserDoesNotStopOthers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "a@uni.edu", 1)
	b := f.user(t, "b@uni.edu", 1)
	f.task(t, a.ID, "a task", clockNow.AddDate(0, 0, 1))
	bTask := f.task(t, b.ID, "b task", clockNow.AddDate(0, 0, 1))

	s := NewReminderScheduler(Deps{
		Users: f.users, Tasks: f.tasks, Ledger: f.ledger,
		Notifier: &panickingNotifier{recordingNotifier: f.sender, panicFor: a.ID},
		Now:      func() time.Time { return clockNow },
	}, SchedulerOptions{Location: time.UTC}, nil, zap.NewNop())

	report, err := s.RunDeadlineCheck(ctx)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if report.Users != 2 || report.Sent != 1 || report.UserErrors != 1 {
		t.Fatalf("report = %+v", report)
	}
	calls := f.sender.deadlineCalls()
	if len(calls) != 1 || calls[0].UserID != b.ID {
		t.Fatalf("calls = %+v, want one batch for user b", calls)
	}
	rows := f.ledgerRows(t)
	if len(rows) != 1 || rows[0].UserID != b.ID || rows[0].TaskID != bTask.ID || rows[0].Status != model.StatusSent {
		t.Fatalf("ledger rows = %+v", rows)
	}
	if st := s.Status(); len(st.Running) != 0 {
		t.Fatalf("guard not released: %v", st.Running)
	}

	if _, err := s.RunDeadlineCheckForUser(ctx, a.ID); err == nil {
		t.Fatal("manual run for panicking user returned no error")
	}
}

func TestDigestPanicForOneUserDoesNotStopOthers(t *testing.T) {
	f := newFixture(t)
	a := f.user(t, "a@uni.edu", 1)
	b := f.user(t, "b@uni.edu", 1)
	for _, u := range []*model.User{a, b} {
		on := true
		if _, err := f.users.UpdatePreferences(context.Background(), u.ID, repository.PreferencesUpdate{DailyDigest: &on}); err != nil {
			t.Fatal(err)
		}
		f.task(t, u.ID, "today", clockNow.Add(time.Hour))
	}

	s := NewReminderScheduler(Deps{
		Users: f.users, Tasks: f.tasks, Ledger: f.ledger,
		Notifier: &panickingNotifier{recordingNotifier: f.sender, panicFor: a.ID},
		Now:      func() time.Time { return clockNow },
	}, SchedulerOptions{Location: time.UTC}, nil, zap.NewNop())

	report, err := s.RunDigestCheck(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if report.Sent != 1 || report.Failed != 1 {
		t.Fatalf("report = %+v", report)
	}
	if calls := f.sender.digestCalls(); len(calls) != 1 || calls[0].UserID != b.ID {
		t.Fatalf("digest calls = %+v", calls)
	}
}

type fakeLease struct {
	ok       bool
	err      error
	released int
}

func (l *fakeLease) Acquire(context.Context, string, time.Duration) (func(), bool, error) {
	if l.err != nil || !l.ok {
		return nil, l.ok, l.err
	}
	return func() { l.released++ }, true, nil
}

func TestLease(t *testing.T) {
	tests := []struct {
		name    string
		lease   *fakeLease
		wantErr error
	}{
		{"acquired", &fakeLease{ok: true}, nil},
		{"held elsewhere", &fakeLease{ok: false}, ErrJobRunning},
		{"redis down fails open", &fakeLease{err: errors.New("dial tcp: refused")}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			s := NewReminderScheduler(Deps{
				Users: f.users, Tasks: f.tasks, Ledger: f.ledger, Notifier: f.sender,
				Lease: tt.lease,
				Now:   func() time.Time { return clockNow },
			}, SchedulerOptions{Location: time.UTC}, nil, zap.NewNop())

			_, err := s.RunRetentionSweep(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.lease.ok && tt.lease.released != 1 {
				t.Fatalf("lease released %d times", tt.lease.released)
			}
		})
	}
}

func TestRunDeadlineCheckForUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.scheduler(SchedulerOptions{})

	u := f.user(t, "manual@uni.edu", 3)
	f.task(t, u.ID, "thesis", clockNow.AddDate(0, 0, 3))
	other := f.user(t, "other@uni.edu", 3)
	f.task(t, other.ID, "other", clockNow.AddDate(0, 0, 3))

	sent, err := s.RunDeadlineCheckForUser(ctx, u.ID)
	if err != nil || sent != 1 {
		t.Fatalf("first manual run: sent=%d err=%v", sent, err)
	}
	sent, err = s.RunDeadlineCheckForUser(ctx, u.ID)
	if err != nil || sent != 0 {
		t.Fatalf("second manual run: sent=%d err=%v", sent, err)
	}
	for _, call := range f.sender.deadlineCalls() {
		if call.UserID != u.ID {
			t.Fatalf("manual run touched user %d", call.UserID)
		}
	}

	if _, err := s.RunDeadlineCheckForUser(ctx, 9999); !errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("unknown user err = %v", err)
	}

	off := false
	if _, err := f.users.UpdatePreferences(ctx, u.ID, repository.PreferencesUpdate{Enabled: &off}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RunDeadlineCheckForUser(ctx, u.ID); !errors.Is(err, ErrRemindersDisabled) {
		t.Fatalf("disabled user err = %v", err)
	}
}

func digestUser(t *testing.T, f *fixture, email string) *model.User {
	t.Helper()
	u := f.user(t, email, 1)
	on := true
	if _, err := f.users.UpdatePreferences(context.Background(), u.ID, repository.PreferencesUpdate{DailyDigest: &on}); err != nil {
		t.Fatal(err)
	}
	return u
}

func TestDigestSkipsUsersWithNothingDue(t *testing.T) {
	f := newFixture(t)
	s := f.scheduler(SchedulerOptions{DigestOncePerDay: true})
	digestUser(t, f, "empty@uni.edu")
	f.user(t, "nodigest@uni.edu", 1)

	report, err := s.RunDigestCheck(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Users != 1 || report.Skipped != 1 || report.Sent != 0 {
		t.Fatalf("report = %+v", report)
	}
	if len(f.sender.digestCalls()) != 0 {
		t.Fatal("empty digest must not be sent")
	}
	if rows := f.ledgerRows(t); len(rows) != 0 {
		t.Fatalf("empty digest wrote %d ledger rows", len(rows))
	}
}

func TestDigestContents(t *testing.T) {
	f := newFixture(t)
	s := f.scheduler(SchedulerOptions{})
	u := digestUser(t, f, "digest@uni.edu")

	_, todayEnd := DayWindow(clockNow, time.UTC, 0)
	f.task(t, u.ID, "due today", clockNow.Add(2*time.Hour))
	f.task(t, u.ID, "overdue this morning", clockNow.Add(-2*time.Hour))
	for i := 0; i < 12; i++ {
		f.task(t, u.ID, fmt.Sprintf("upcoming %d", i), todayEnd.Add(time.Duration(i+1)*time.Hour))
	}
	f.task(t, u.ID, "beyond a week", clockNow.AddDate(0, 0, 8))

	report, err := s.RunDigestCheck(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Sent != 1 {
		t.Fatalf("report = %+v", report)
	}
	calls := f.sender.digestCalls()
	if len(calls) != 1 || calls[0].Today != 2 || calls[0].Upcoming != digestUpcomingLimit {
		t.Fatalf("digest = %+v", calls)
	}

	rows := f.ledgerRows(t)
	if len(rows) != 1 || rows[0].Kind != model.KindDailyDigest || rows[0].TaskID != 0 || rows[0].Status != model.StatusSent {
		t.Fatalf("digest ledger = %+v", rows)
	}
	if !rows[0].DueAtSnapshot.Equal(StartOfDay(clockNow, time.UTC)) {
		t.Fatalf("snapshot = %v", rows[0].DueAtSnapshot)
	}
}

func TestDigestOncePerDay(t *testing.T) {
	tests := []struct {
		name       string
		oncePerDay bool
		wantCalls  int
	}{
		{"hardened", true, 1},
		{"every tick", false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			s := f.scheduler(SchedulerOptions{DigestOncePerDay: tt.oncePerDay})
			u := digestUser(t, f, "once@uni.edu")
			f.task(t, u.ID, "exam", clockNow.Add(time.Hour))

			for i := 0; i < 2; i++ {
				if _, err := s.RunDigestCheck(context.Background()); err != nil {
					t.Fatal(err)
				}
			}
			if got := len(f.sender.digestCalls()); got != tt.wantCalls {
				t.Fatalf("digests sent = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestDigestFailureIsRetried(t *testing.T) {
	f := newFixture(t)
	s := f.scheduler(SchedulerOptions{DigestOncePerDay: true})
	u := digestUser(t, f, "retry@uni.edu")
	f.task(t, u.ID, "exam", clockNow.Add(time.Hour))
	f.sender.failFor = map[uint]error{u.ID: errors.New("smtp timeout")}

	report, err := s.RunDigestCheck(context.Background())
	if err != nil || report.Failed != 1 {
		t.Fatalf("report = %+v err = %v", report, err)
	}
	f.sender.failFor = nil
	report, err = s.RunDigestCheck(context.Background())
	if err != nil || report.Sent != 1 {
		t.Fatalf("retry report = %+v err = %v", report, err)
	}
}

func TestRetentionSweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.scheduler(SchedulerOptions{Retention: 90 * 24 * time.Hour})

	old := f.ledger.WithClock(func() time.Time { return clockNow.AddDate(0, 0, -91) })
	if _, err := old.Record(ctx, repository.RecordInput{UserID: 1, TaskID: 1, Kind: model.KindDeadline, LeadDays: 1, Status: model.StatusSent}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ledger.Record(ctx, repository.RecordInput{UserID: 1, TaskID: 2, Kind: model.KindDeadline, LeadDays: 1, Status: model.StatusSent}); err != nil {
		t.Fatal(err)
	}

	removed, err := s.RunRetentionSweep(ctx)
	if err != nil || removed != 1 {
		t.Fatalf("removed = %d err = %v", removed, err)
	}
	if rows := f.ledgerRows(t); len(rows) != 1 || rows[0].TaskID != 2 {
		t.Fatalf("remaining = %+v", rows)
	}
}

func TestStartStopStatus(t *testing.T) {
	f := newFixture(t)
	s := f.scheduler(SchedulerOptions{DeadlineAt: "17:30", DigestAt: "18:15", SweepAt: "02:00"})

	if st := s.Status(); st.Initialized || st.ActiveJobCount != 0 {
		t.Fatalf("before start: %+v", st)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if st := s.Status(); !st.Initialized || st.ActiveJobCount != 3 {
		t.Fatalf("after start: %+v", st)
	}
	s.Stop()
	if st := s.Status(); st.Initialized || st.ActiveJobCount != 0 {
		t.Fatalf("after stop: %+v", st)
	}
}

func TestDeadlinePolicy(t *testing.T) {
	f := newFixture(t)

	daily := f.scheduler(SchedulerOptions{DeadlineAt: "08:00"})
	if p, ok := daily.deadlinePolicy().(Daily); !ok || p.At != "08:00" {
		t.Fatalf("default policy = %#v", daily.deadlinePolicy())
	}

	every := f.scheduler(SchedulerOptions{DeadlineAt: "08:00", DeadlineEvery: 30 * time.Minute})
	if p, ok := every.deadlinePolicy().(Every); !ok || p.Interval != 30*time.Minute {
		t.Fatalf("interval policy = %#v", every.deadlinePolicy())
	}
	if err := every.Start(); err != nil {
		t.Fatal(err)
	}
	defer every.Stop()
	if st := every.Status(); st.ActiveJobCount != 3 {
		t.Fatalf("status = %+v", st)
	}
}

func TestStartRejectsBadClock(t *testing.T) {
	f := newFixture(t)
	s := f.scheduler(SchedulerOptions{DeadlineAt: "25:00", DigestAt: "18:15", SweepAt: "02:00"})
	if err := s.Start(); err == nil {
		t.Fatal("expected error for invalid time")
	}
	if s.Status().Initialized {
		t.Fatal("scheduler must not be initialized after a failed start")
	}
}
