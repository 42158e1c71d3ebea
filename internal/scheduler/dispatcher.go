package scheduler

import (
	"context"
	"log/slog"
	"time"

	"todo-tracker/internal/model"
	"todo-tracker/internal/notify"
	"todo-tracker/internal/repository"
)

// Dispatcher runs the notification scans: it queries the task store,
// renders messages and hands them to the sender. One failing delivery
// never aborts the rest of the batch; delivery is at-least-once.
type Dispatcher struct {
	tasks          *repository.TaskRepository
	formatter      *notify.Formatter
	sender         notify.Sender
	log            *slog.Logger
	upcomingWindow time.Duration
	digestWindow   time.Duration

	now func() time.Time
}

func NewDispatcher(tasks *repository.TaskRepository, formatter *notify.Formatter, sender notify.Sender, log *slog.Logger, upcomingWindow, digestWindow time.Duration) *Dispatcher {
	return &Dispatcher{
		tasks:          tasks,
		formatter:      formatter,
		sender:         sender,
		log:            log,
		upcomingWindow: upcomingWindow,
		digestWindow:   digestWindow,
		now:            time.Now,
	}
}

// RunOverdueScan notifies owners of every open, unmuted task whose due
// date has passed.
func (d *Dispatcher) RunOverdueScan(ctx context.Context) error {
	now := d.now()
	tasks, err := d.tasks.ListOverdue(ctx, now)
	if err != nil {
		return err
	}
	d.log.Info("overdue scan", "tasks", len(tasks))

	for _, task := range tasks {
		d.deliver(ctx, task, d.formatter.Overdue(task, now), "overdue")
	}
	return nil
}

// RunUpcomingScan notifies owners of tasks due within the upcoming
// window.
func (d *Dispatcher) RunUpcomingScan(ctx context.Context) error {
	now := d.now()
	tasks, err := d.tasks.ListUpcoming(ctx, now, d.upcomingWindow)
	if err != nil {
		return err
	}
	d.log.Info("upcoming scan", "tasks", len(tasks))

	for _, task := range tasks {
		d.deliver(ctx, task, d.formatter.Upcoming(task, now), "upcoming")
	}
	return nil
}

// RunDailyDigest sends every profile one aggregate message covering its
// open tasks due within the digest window. Muted tasks are included:
// the mute flag scopes the overdue/upcoming alerts only.
func (d *Dispatcher) RunDailyDigest(ctx context.Context) error {
	now := d.now()
	tasks, err := d.tasks.ListDueBetween(ctx, now, now.Add(d.digestWindow))
	if err != nil {
		return err
	}

	byProfile := make(map[string][]model.Task)
	order := make([]string, 0)
	for _, task := range tasks {
		if _, seen := byProfile[task.ProfileID]; !seen {
			order = append(order, task.ProfileID)
		}
		byProfile[task.ProfileID] = append(byProfile[task.ProfileID], task)
	}
	d.log.Info("daily digest", "profiles", len(order))

	for _, profileID := range order {
		group := byProfile[profileID]
		if len(group) == 0 {
			continue
		}
		profile := group[0].Profile
		if profile.TelegramID == nil {
			d.log.Warn("digest skipped, no chat address", "profile_id", profileID)
			continue
		}
		msg := d.formatter.DailyDigest(group, now)
		if d.sender.Send(ctx, *profile.TelegramID, msg) {
			d.log.Info("digest sent", "profile_id", profileID, "tasks", len(group))
		} else {
			d.log.Error("digest delivery failed", "profile_id", profileID)
		}
	}
	return nil
}

// RunCleanup is a retention placeholder. It must run on cadence and
// never fail; real policy may land here later.
func (d *Dispatcher) RunCleanup(ctx context.Context) error {
	d.log.Info("cleanup run completed")
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, task model.Task, msg notify.Message, kind string) {
	if task.Profile.TelegramID == nil {
		d.log.Warn("notification skipped, no chat address", "task_id", task.ID, "kind", kind)
		return
	}
	if d.sender.Send(ctx, *task.Profile.TelegramID, msg) {
		d.log.Info("notification sent", "task_id", task.ID, "kind", kind)
	} else {
		d.log.Error("notification delivery failed", "task_id", task.ID, "kind", kind)
	}
}
