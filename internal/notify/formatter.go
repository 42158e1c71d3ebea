package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"todo-tracker/internal/model"
)

// Kind selects which notification text to render.
type Kind int

const (
	KindOverdue Kind = iota
	KindUpcoming
	KindDailyDigest
)

// MuteCallbackPrefix is the wire shape of the inbound mute action.
const MuteCallbackPrefix = "disable_notifications:"

const (
	noDescription = "Не указано"
	noCategories  = "Не указаны"
	noCategory    = "Без категории"
)

// Button is a single inline action attached to a message.
type Button struct {
	Label string
	Data  string
}

// Message is a rendered notification: HTML text plus an optional
// one-row control.
type Message struct {
	Text   string
	Button *Button
}

// MuteCallbackData builds the mute action token for a task.
func MuteCallbackData(taskID string) string {
	return MuteCallbackPrefix + taskID
}

// ParseMuteCallback extracts the task id from a mute action token.
func ParseMuteCallback(data string) (string, bool) {
	taskID, ok := strings.CutPrefix(data, MuteCallbackPrefix)
	if !ok || taskID == "" {
		return "", false
	}
	return taskID, true
}

// FormatLocal renders an absolute time in the display timezone as
// "YYYY-MM-DD HH:MM". This is the single conversion point for all
// user-facing timestamps.
func FormatLocal(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02 15:04")
}

// ParseLocal reads a "YYYY-MM-DD HH:MM" display-zone timestamp back
// into absolute UTC time.
func ParseLocal(value string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse local time %q: %w", value, err)
	}
	return t.UTC(), nil
}

// Formatter renders notification messages. It is stateless apart from
// the configured display timezone.
type Formatter struct {
	loc *time.Location
}

func NewFormatter(loc *time.Location) *Formatter {
	return &Formatter{loc: loc}
}

// Location exposes the display timezone for callers that parse input.
func (f *Formatter) Location() *time.Location {
	return f.loc
}

// Render dispatches on kind for single-task notifications.
func (f *Formatter) Render(task model.Task, kind Kind, now time.Time) Message {
	switch kind {
	case KindUpcoming:
		return f.Upcoming(task, now)
	default:
		return f.Overdue(task, now)
	}
}

// Overdue renders the overdue alert with the elapsed overdue duration
// and a mute control.
func (f *Formatter) Overdue(task model.Task, now time.Time) Message {
	var b strings.Builder
	b.WriteString("🚨 <b>ПРОСРОЧЕННАЯ ЗАДАЧА!</b>\n\n")
	f.writeTaskBody(&b, task)
	b.WriteString(fmt.Sprintf("\n⏰ Задача просрочена на %s", overdueAge(now.Sub(task.DueDate))))

	return Message{
		Text:   b.String(),
		Button: &Button{Label: "🔕 Не оповещать", Data: MuteCallbackData(task.ID)},
	}
}

// Upcoming renders the deadline reminder with the bucketed remaining
// time and a mute control.
func (f *Formatter) Upcoming(task model.Task, now time.Time) Message {
	var b strings.Builder
	b.WriteString("⚠️ <b>НАПОМИНАНИЕ О ДЕДЛАЙНЕ</b>\n\n")
	f.writeTaskBody(&b, task)
	b.WriteString(fmt.Sprintf("\n⏰ До дедлайна осталось: <b>%s</b>", untilDue(task.DueDate.Sub(now))))

	return Message{
		Text:   b.String(),
		Button: &Button{Label: "🔕 Не оповещать", Data: MuteCallbackData(task.ID)},
	}
}

// DailyDigest renders one aggregate message for a profile's tasks due
// within the next day. No per-task control: the digest is not mutable.
func (f *Formatter) DailyDigest(tasks []model.Task, now time.Time) Message {
	var b strings.Builder
	b.WriteString("📅 <b>ЕЖЕДНЕВНОЕ НАПОМИНАНИЕ</b>\n\n")
	b.WriteString("У вас есть задачи на ближайшие сутки:\n")

	for _, task := range tasks {
		b.WriteString(fmt.Sprintf("\n📋 <b>%s</b>\n", html.EscapeString(task.Title)))
		b.WriteString(fmt.Sprintf("⏰ %s\n", task.DueDate.In(f.loc).Format("15:04")))
		b.WriteString(fmt.Sprintf("🏷️ %s\n", categoryList(task.Categories, noCategory)))
	}

	b.WriteString(fmt.Sprintf("\nВсего задач: <b>%d</b>", len(tasks)))
	return Message{Text: b.String()}
}

func (f *Formatter) writeTaskBody(b *strings.Builder, task model.Task) {
	description := strings.TrimSpace(task.Description)
	if description == "" {
		description = noDescription
	} else {
		description = html.EscapeString(description)
	}

	b.WriteString(fmt.Sprintf("📋 <b>%s</b>\n", html.EscapeString(task.Title)))
	b.WriteString(fmt.Sprintf("📝 Описание: %s\n", description))
	b.WriteString(fmt.Sprintf("📅 Дедлайн: %s\n", FormatLocal(task.DueDate, f.loc)))
	b.WriteString(fmt.Sprintf("🏷️ Категории: %s\n", categoryList(task.Categories, noCategories)))
}

// overdueAge formats elapsed overdue time as "Hч Mм", dropping the
// hour part when it is zero.
func overdueAge(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dч %dм", hours, minutes)
	}
	return fmt.Sprintf("%dм", minutes)
}

// untilDue buckets remaining time: under an hour, whole hours up to a
// day, whole days beyond.
func untilDue(d time.Duration) string {
	hours := d.Hours()
	switch {
	case hours <= 1:
		return "менее часа"
	case hours <= 24:
		return fmt.Sprintf("%d часов", int(hours))
	default:
		return fmt.Sprintf("%d дней", int(hours/24))
	}
}

func categoryList(categories []model.Category, placeholder string) string {
	if len(categories) == 0 {
		return placeholder
	}
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, html.EscapeString(c.Name))
	}
	return strings.Join(names, ", ")
}
