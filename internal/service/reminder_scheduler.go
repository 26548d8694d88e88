package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"deadline-tracker/internal/metrics"
	"deadline-tracker/internal/model"
	"deadline-tracker/internal/notifier"
	"deadline-tracker/internal/repository"
)

const (
	digestUpcomingDays  = 7
	digestUpcomingLimit = 10
	defaultLeaseTTL     = 10 * time.Minute
)

type JobName string

const (
	JobDeadlineCheck  JobName = "deadline_check"
	JobDigestCheck    JobName = "digest_check"
	JobRetentionSweep JobName = "retention_sweep"
)

var (
	ErrJobRunning        = errors.New("job already running")
	ErrDirectoryRead     = errors.New("directory read failed")
	ErrRemindersDisabled = errors.New("email reminders are disabled")
)

// UserDirectory is the read side of the user store the scheduler depends on.
type UserDirectory interface {
	ListWithRemindersEnabled(ctx context.Context) ([]model.User, error)
	ListWithDigestEnabled(ctx context.Context) ([]model.User, error)
	FindByID(ctx context.Context, id uint) (*model.User, error)
}

// TaskDirectory is the read side of the task store the scheduler depends on.
type TaskDirectory interface {
	ListDueBetween(ctx context.Context, userID uint, start, end time.Time) ([]model.Task, error)
	ListDueAfter(ctx context.Context, userID uint, after, until time.Time, limit int) ([]model.Task, error)
}

// Ledger records delivery outcomes and answers "was this already sent".
type Ledger interface {
	WasSent(ctx context.Context, userID, taskID uint, kind model.ReminderKind, leadDays int) (bool, error)
	Record(ctx context.Context, in repository.RecordInput) (*model.ReminderLog, error)
	DigestSentSince(ctx context.Context, userID uint, since time.Time) (bool, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Lease is an optional cross-process mutual exclusion for jobs.
type Lease interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error)
}

// Deps are the collaborators of the reminder scheduler. Lease and Now are optional.
type Deps struct {
	Users    UserDirectory
	Tasks    TaskDirectory
	Ledger   Ledger
	Notifier notifier.Notifier
	Lease    Lease
	Now      func() time.Time
}

// SchedulerOptions configure recurrence and retention.
type SchedulerOptions struct {
	Location         *time.Location
	DeadlineAt       string
	DeadlineEvery    time.Duration
	DigestAt         string
	SweepAt          string
	Retention        time.Duration
	DigestOncePerDay bool
	JobTimeout       time.Duration
}

type DeadlineReport struct {
	Users      int `json:"users"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
	UserErrors int `json:"userErrors"`
}

type DigestReport struct {
	Users   int `json:"users"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Status is the externally visible scheduler state.
type Status struct {
	Initialized    bool     `json:"initialized"`
	ActiveJobCount int      `json:"activeJobCount"`
	Running        []string `json:"running"`
}

// ReminderScheduler drives deadline reminders, daily digests and the ledger
// retention sweep. It is the only component with a notion of "now".
type ReminderScheduler struct {
	users    UserDirectory
	tasks    TaskDirectory
	ledger   Ledger
	notifier notifier.Notifier
	lease    Lease
	now      func() time.Time

	opts    SchedulerOptions
	jobs    *SchedulerService
	log     *zap.Logger
	running map[JobName]*atomic.Bool

	mu          sync.Mutex
	initialized bool
}

func NewReminderScheduler(deps Deps, opts SchedulerOptions, jobs *SchedulerService, log *zap.Logger) *ReminderScheduler {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.DeadlineAt == "" {
		opts.DeadlineAt = "17:30"
	}
	if opts.DigestAt == "" {
		opts.DigestAt = "18:15"
	}
	if opts.SweepAt == "" {
		opts.SweepAt = "02:00"
	}
	if opts.Retention <= 0 {
		opts.Retention = 90 * 24 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	if jobs == nil {
		jobs = NewSchedulerService(opts.Location, nil)
	}
	return &ReminderScheduler{
		users:    deps.Users,
		tasks:    deps.Tasks,
		ledger:   deps.Ledger,
		notifier: deps.Notifier,
		lease:    deps.Lease,
		now:      now,
		opts:     opts,
		jobs:     jobs,
		log:      log.With(zap.String("component", "reminder_scheduler")),
		running: map[JobName]*atomic.Bool{
			JobDeadlineCheck:  new(atomic.Bool),
			JobDigestCheck:    new(atomic.Bool),
			JobRetentionSweep: new(atomic.Bool),
		},
	}
}

// Start registers the three recurring jobs and starts the timer loop.
func (s *ReminderScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		s.log.Warn("reminder scheduler already initialized")
		return nil
	}

	registrations := []struct {
		name   JobName
		policy TriggerPolicy
	}{
		{JobDeadlineCheck, s.deadlinePolicy()},
		{JobDigestCheck, Daily{At: s.opts.DigestAt}},
		{JobRetentionSweep, Weekly{Day: time.Sunday, At: s.opts.SweepAt}},
	}
	ids := make([]cron.EntryID, 0, len(registrations))
	for _, job := range registrations {
		name := job.name
		id, err := s.jobs.Schedule(job.policy, func() { s.trigger(name) })
		if err != nil {
			s.jobs.Stop()
			return fmt.Errorf("schedule %s: %w", name, err)
		}
		ids = append(ids, id)
	}

	s.jobs.Start()
	for i, job := range registrations {
		s.log.Info("job scheduled",
			zap.String("job", string(job.name)),
			zap.String("policy", job.policy.String()),
			zap.Time("next", s.jobs.Next(ids[i])))
	}
	s.initialized = true
	s.log.Info("reminder scheduler started")
	return nil
}

// deadlinePolicy fires the deadline check on an interval when one is
// configured, otherwise once a day.
func (s *ReminderScheduler) deadlinePolicy() TriggerPolicy {
	if s.opts.DeadlineEvery > 0 {
		return Every{Interval: s.opts.DeadlineEvery}
	}
	return Daily{At: s.opts.DeadlineAt}
}

// Stop halts all jobs, waiting for running ticks to finish.
func (s *ReminderScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return
	}
	s.jobs.Stop()
	s.initialized = false
	s.log.Info("reminder scheduler stopped")
}

func (s *ReminderScheduler) Status() Status {
	s.mu.Lock()
	initialized := s.initialized
	s.mu.Unlock()

	running := []string{}
	for name, flag := range s.running {
		if flag.Load() {
			running = append(running, string(name))
		}
	}
	sort.Strings(running)

	return Status{
		Initialized:    initialized,
		ActiveJobCount: s.jobs.EntryCount(),
		Running:        running,
	}
}

// trigger is the timer entry point for a job tick.
func (s *ReminderScheduler) trigger(job JobName) {
	ctx := context.Background()
	if s.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.JobTimeout)
		defer cancel()
	}

	var err error
	switch job {
	case JobDeadlineCheck:
		_, err = s.RunDeadlineCheck(ctx)
	case JobDigestCheck:
		_, err = s.RunDigestCheck(ctx)
	case JobRetentionSweep:
		_, err = s.RunRetentionSweep(ctx)
	}
	if err != nil && !errors.Is(err, ErrJobRunning) {
		s.log.Error("job tick failed", zap.String("job", string(job)), zap.Error(err))
	}
}

// guard runs fn unless the same job is already running, in this process or,
// when a lease is configured, anywhere else. Panics are turned into errors.
func (s *ReminderScheduler) guard(ctx context.Context, job JobName, fn func(ctx context.Context) error) (err error) {
	flag := s.running[job]
	if !flag.CompareAndSwap(false, true) {
		metrics.JobSkipped.WithLabelValues(string(job)).Inc()
		s.log.Warn("job still running, trigger skipped", zap.String("job", string(job)))
		return ErrJobRunning
	}
	defer flag.Store(false)

	if s.lease != nil {
		ttl := s.opts.JobTimeout
		if ttl <= 0 {
			ttl = defaultLeaseTTL
		}
		release, ok, leaseErr := s.lease.Acquire(ctx, string(job), ttl)
		switch {
		case leaseErr != nil:
			s.log.Warn("job lease unavailable, continuing", zap.String("job", string(job)), zap.Error(leaseErr))
		case !ok:
			metrics.JobSkipped.WithLabelValues(string(job)).Inc()
			s.log.Info("job running on another instance, trigger skipped", zap.String("job", string(job)))
			return ErrJobRunning
		default:
			defer release()
		}
	}

	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job, r)
		}
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.JobRuns.WithLabelValues(string(job), outcome).Inc()
		metrics.JobDuration.WithLabelValues(string(job)).Observe(time.Since(started).Seconds())
	}()

	return fn(ctx)
}

// RunDeadlineCheck sends one batched reminder per user and lead time for
// tasks whose due day matches, skipping tasks the ledger already has as sent.
func (s *ReminderScheduler) RunDeadlineCheck(ctx context.Context) (DeadlineReport, error) {
	var report DeadlineReport
	err := s.guard(ctx, JobDeadlineCheck, func(ctx context.Context) error {
		users, err := s.users.ListWithRemindersEnabled(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDirectoryRead, err)
		}
		report.Users = len(users)
		s.log.Info("processing deadline reminders", zap.Int("users", len(users)))

		now := s.now()
		for _, user := range users {
			var sent, failed int
			err := s.isolate(user.ID, func() (err error) {
				sent, failed, err = s.processUserDeadlines(ctx, user, now)
				return err
			})
			report.Sent += sent
			report.Failed += failed
			if err != nil {
				report.UserErrors++
				s.log.Error("deadline reminders for user failed",
					zap.Uint("user_id", user.ID), zap.Error(err))
			}
		}

		s.log.Info("deadline reminder check completed",
			zap.Int("sent", report.Sent),
			zap.Int("failed", report.Failed),
			zap.Int("user_errors", report.UserErrors))
		return nil
	})
	return report, err
}

// RunDeadlineCheckForUser runs the deadline check for a single user on demand.
// Ledger dedup still applies, so repeated calls never resend.
func (s *ReminderScheduler) RunDeadlineCheckForUser(ctx context.Context, userID uint) (int, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !user.RemindersEnabled {
		return 0, ErrRemindersDisabled
	}
	var sent int
	err = s.isolate(user.ID, func() (err error) {
		sent, _, err = s.processUserDeadlines(ctx, *user, s.now())
		return err
	})
	return sent, err
}

// isolate runs one user's share of a tick, turning a panic into that user's error.
func (s *ReminderScheduler) isolate(userID uint, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("user %d panicked: %v", userID, r)
		}
	}()
	return fn()
}

func (s *ReminderScheduler) processUserDeadlines(ctx context.Context, user model.User, now time.Time) (sent, failed int, err error) {
	leadTimes, rejected := user.LeadTimes.Normalize()
	if len(rejected) > 0 {
		s.log.Warn("ignoring invalid lead times",
			zap.Uint("user_id", user.ID), zap.Ints("rejected", rejected))
	}

	var errs []error
	for _, days := range leadTimes {
		start, end := DayWindow(now, s.opts.Location, days)
		tasks, err := s.tasks.ListDueBetween(ctx, user.ID, start, end)
		if err != nil {
			errs = append(errs, fmt.Errorf("lead %d: %w", days, err))
			continue
		}
		if len(tasks) == 0 {
			continue
		}

		batch, err := s.unsent(ctx, user.ID, tasks, days)
		if err != nil {
			errs = append(errs, fmt.Errorf("lead %d: %w", days, err))
			continue
		}
		if len(batch) == 0 {
			continue
		}

		sendErr := s.notifier.SendDeadlineBatch(ctx, user, batch, days)
		if err := s.recordBatch(ctx, user.ID, batch, days, sendErr); err != nil {
			errs = append(errs, fmt.Errorf("lead %d: %w", days, err))
		}

		if sendErr != nil {
			failed += len(batch)
			category := notifier.CategoryOf(sendErr)
			metrics.RemindersFailed.WithLabelValues(string(model.KindDeadline), string(category)).Add(float64(len(batch)))
			s.log.Warn("deadline reminder delivery failed",
				zap.Uint("user_id", user.ID),
				zap.Int("lead_days", days),
				zap.Int("tasks", len(batch)),
				zap.String("category", string(category)),
				zap.Error(sendErr))
			continue
		}

		sent += len(batch)
		metrics.RemindersSent.WithLabelValues(string(model.KindDeadline)).Add(float64(len(batch)))
		s.log.Info("deadline reminder sent",
			zap.Uint("user_id", user.ID),
			zap.Int("lead_days", days),
			zap.Int("tasks", len(batch)),
			zap.String("severity", string(notifier.SeverityFor(days))))
	}
	return sent, failed, errors.Join(errs...)
}

func (s *ReminderScheduler) unsent(ctx context.Context, userID uint, tasks []model.Task, leadDays int) ([]model.Task, error) {
	batch := make([]model.Task, 0, len(tasks))
	for _, task := range tasks {
		done, err := s.ledger.WasSent(ctx, userID, task.ID, model.KindDeadline, leadDays)
		if err != nil {
			return nil, err
		}
		if !done {
			batch = append(batch, task)
		}
	}
	return batch, nil
}

// recordBatch writes one ledger entry per task so later runs dedup per task.
func (s *ReminderScheduler) recordBatch(ctx context.Context, userID uint, batch []model.Task, leadDays int, sendErr error) error {
	status := notifier.StatusFor(sendErr)
	detail := ""
	if sendErr != nil {
		detail = sendErr.Error()
	}

	var errs []error
	for _, task := range batch {
		_, err := s.ledger.Record(ctx, repository.RecordInput{
			UserID:        userID,
			TaskID:        task.ID,
			Kind:          model.KindDeadline,
			LeadDays:      leadDays,
			DueAtSnapshot: task.DueAt,
			Status:        status,
			ErrorDetail:   detail,
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RunDigestCheck sends each opted-in user a summary of today's and the
// coming week's tasks. Users with nothing due are skipped.
func (s *ReminderScheduler) RunDigestCheck(ctx context.Context) (DigestReport, error) {
	var report DigestReport
	err := s.guard(ctx, JobDigestCheck, func(ctx context.Context) error {
		users, err := s.users.ListWithDigestEnabled(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDirectoryRead, err)
		}
		report.Users = len(users)
		s.log.Info("processing daily digests", zap.Int("users", len(users)))

		now := s.now()
		for _, user := range users {
			var sent bool
			err := s.isolate(user.ID, func() (err error) {
				sent, err = s.processUserDigest(ctx, user, now)
				return err
			})
			switch {
			case err != nil:
				report.Failed++
				s.log.Error("daily digest for user failed", zap.Uint("user_id", user.ID), zap.Error(err))
			case sent:
				report.Sent++
			default:
				report.Skipped++
			}
		}

		s.log.Info("daily digest processing completed",
			zap.Int("sent", report.Sent),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed))
		return nil
	})
	return report, err
}

func (s *ReminderScheduler) processUserDigest(ctx context.Context, user model.User, now time.Time) (bool, error) {
	todayStart, todayEnd := DayWindow(now, s.opts.Location, 0)

	if s.opts.DigestOncePerDay {
		done, err := s.ledger.DigestSentSince(ctx, user.ID, todayStart)
		if err != nil {
			return false, err
		}
		if done {
			s.log.Debug("digest already sent today", zap.Uint("user_id", user.ID))
			return false, nil
		}
	}

	today, err := s.tasks.ListDueBetween(ctx, user.ID, todayStart, todayEnd)
	if err != nil {
		return false, err
	}
	after, until := UpcomingWindow(now, s.opts.Location, digestUpcomingDays)
	upcoming, err := s.tasks.ListDueAfter(ctx, user.ID, after, until, digestUpcomingLimit)
	if err != nil {
		return false, err
	}

	if len(today) == 0 && len(upcoming) == 0 {
		s.log.Debug("no tasks to report in daily digest", zap.Uint("user_id", user.ID))
		return false, nil
	}

	sendErr := s.notifier.SendDigest(ctx, user, today, upcoming)
	detail := ""
	if sendErr != nil {
		detail = sendErr.Error()
	}
	if _, err := s.ledger.Record(ctx, repository.RecordInput{
		UserID:        user.ID,
		Kind:          model.KindDailyDigest,
		DueAtSnapshot: todayStart,
		Status:        notifier.StatusFor(sendErr),
		ErrorDetail:   detail,
	}); err != nil {
		s.log.Warn("record digest outcome", zap.Uint("user_id", user.ID), zap.Error(err))
	}

	if sendErr != nil {
		metrics.RemindersFailed.WithLabelValues(string(model.KindDailyDigest), string(notifier.CategoryOf(sendErr))).Inc()
		return false, sendErr
	}
	metrics.RemindersSent.WithLabelValues(string(model.KindDailyDigest)).Inc()
	s.log.Info("daily digest sent",
		zap.Uint("user_id", user.ID),
		zap.Int("today", len(today)),
		zap.Int("upcoming", len(upcoming)))
	return true, nil
}

// RunRetentionSweep purges ledger entries older than the retention window.
func (s *ReminderScheduler) RunRetentionSweep(ctx context.Context) (int64, error) {
	var removed int64
	err := s.guard(ctx, JobRetentionSweep, func(ctx context.Context) error {
		cutoff := s.now().Add(-s.opts.Retention)
		n, err := s.ledger.PurgeOlderThan(ctx, cutoff)
		if err != nil {
			return err
		}
		removed = n
		metrics.LedgerPurged.Add(float64(n))
		s.log.Info("reminder ledger cleaned up", zap.Int64("removed", n), zap.Time("cutoff", cutoff))
		return nil
	})
	return removed, err
}
