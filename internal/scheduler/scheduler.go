// Package scheduler owns the periodic jobs: the notification scans,
// the daily digest and the cleanup placeholder.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps cron with named, single-flight jobs. If a tick fires
// while the previous run is still in flight, the tick is skipped.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
}

func New(loc *time.Location, log *slog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		log:  log,
	}
}

// AddInterval registers a job that runs every given duration.
func (s *Scheduler) AddInterval(name string, interval time.Duration, job func(context.Context) error) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	spec := fmt.Sprintf("@every %ds", seconds)
	return s.add(name, spec, job)
}

// AddDaily registers a job that runs once a day at HH:MM local time.
func (s *Scheduler) AddDaily(name, timeStr string, job func(context.Context) error) error {
	spec, err := buildDailySpec(timeStr)
	if err != nil {
		return err
	}
	return s.add(name, spec, job)
}

func (s *Scheduler) add(name, spec string, job func(context.Context) error) error {
	wrapped := cron.NewChain(
		cron.SkipIfStillRunning(&cronLogger{log: s.log, job: name}),
	).Then(cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := job(ctx); err != nil {
			s.log.Error("job run failed", "job", name, "error", err)
		}
	}))

	if _, err := s.cron.AddJob(spec, wrapped); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.log.Info("job scheduled", "job", name, "spec", spec)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func buildDailySpec(timeStr string) (string, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", timeStr)
	}
	// cron format: second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}

// cronLogger adapts slog to the cron.Logger interface so skipped
// overlapping runs show up in the log.
type cronLogger struct {
	log *slog.Logger
	job string
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	args := append([]any{"job", l.job}, keysAndValues...)
	l.log.Info(msg, args...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	args := append([]any{"job", l.job, "error", err}, keysAndValues...)
	l.log.Error(msg, args...)
}
