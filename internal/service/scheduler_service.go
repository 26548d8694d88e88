package service

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// TriggerPolicy describes when a job fires. Policies are plain data that
// render to a cron spec, so they can be checked without waiting for time to pass.
type TriggerPolicy interface {
	CronSpec() (string, error)
	String() string
}

// Daily fires once a day at the given HH:MM.
type Daily struct {
	At string
}

func (d Daily) CronSpec() (string, error) {
	hour, minute, err := parseClock(d.At)
	if err != nil {
		return "", err
	}
	// cron format: second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}

func (d Daily) String() string { return "daily at " + d.At }

// Weekly fires once a week on Day at HH:MM.
type Weekly struct {
	Day time.Weekday
	At  string
}

func (w Weekly) CronSpec() (string, error) {
	hour, minute, err := parseClock(w.At)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("0 %d %d * * %d", minute, hour, int(w.Day)), nil
}

func (w Weekly) String() string { return fmt.Sprintf("weekly on %s at %s", w.Day, w.At) }

// Every fires at a fixed interval, rounded to whole seconds.
type Every struct {
	Interval time.Duration
}

func (e Every) CronSpec() (string, error) {
	if e.Interval <= 0 {
		return "", fmt.Errorf("interval must be positive")
	}
	seconds := int(e.Interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return fmt.Sprintf("@every %ds", seconds), nil
}

func (e Every) String() string { return "every " + e.Interval.String() }

// SchedulerService wraps cron-based jobs.
type SchedulerService struct {
	cron *cron.Cron
}

func NewSchedulerService(loc *time.Location, logger *log.Logger) *SchedulerService {
	if loc == nil {
		loc = time.Local
	}
	opts := []cron.Option{cron.WithLocation(loc), cron.WithSeconds()}
	if logger != nil {
		cronLogger := cron.PrintfLogger(logger)
		opts = append(opts, cron.WithLogger(cronLogger), cron.WithChain(cron.Recover(cronLogger)))
	}
	return &SchedulerService{cron: cron.New(opts...)}
}

// Schedule registers job under the given trigger policy.
func (s *SchedulerService) Schedule(policy TriggerPolicy, job func()) (cron.EntryID, error) {
	spec, err := policy.CronSpec()
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, job)
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

// Stop halts the cron loop, waits for running jobs and drops all registrations.
func (s *SchedulerService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	for _, entry := range s.cron.Entries() {
		s.cron.Remove(entry.ID)
	}
}

// EntryCount returns the number of registered jobs.
func (s *SchedulerService) EntryCount() int {
	return len(s.cron.Entries())
}

// Next returns the next activation time of an entry.
func (s *SchedulerService) Next(id cron.EntryID) time.Time {
	return s.cron.Entry(id).Next
}

func parseClock(timeStr string) (hour, minute int, err error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", timeStr)
	}
	return hour, minute, nil
}
