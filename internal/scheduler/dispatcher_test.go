package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"todo-tracker/internal/model"
	"todo-tracker/internal/notify"
	"todo-tracker/internal/repository"
)

var testDBCounter atomic.Int64

type sentMessage struct {
	ChatID int64
	Msg    notify.Message
}

// fakeSender records deliveries and can fail selected chat ids.
type fakeSender struct {
	mu       sync.Mutex
	sent     []sentMessage
	failFor  map[int64]bool
	attempts int
}

func (s *fakeSender) Send(ctx context.Context, chatID int64, msg notify.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.failFor[chatID] {
		return false
	}
	s.sent = append(s.sent, sentMessage{ChatID: chatID, Msg: msg})
	return true
}

func (s *fakeSender) messages() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

type dispatcherFixture struct {
	db       *gorm.DB
	tasks    *repository.TaskRepository
	profiles *repository.ProfileRepository
	sender   *fakeSender
	d        *Dispatcher
	now      time.Time
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:disptest%d?mode=memory&cache=shared", testDBCounter.Add(1))
	db, err := repository.NewDB(dsn)
	require.NoError(t, err)

	tasks := repository.NewTaskRepository(db)
	sender := &fakeSender{failFor: make(map[int64]bool)}
	formatter := notify.NewFormatter(time.UTC)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &dispatcherFixture{
		db:       db,
		tasks:    tasks,
		profiles: repository.NewProfileRepository(db),
		sender:   sender,
		d:        NewDispatcher(tasks, formatter, sender, log, time.Hour, 24*time.Hour),
		now:      time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	f.d.now = func() time.Time { return f.now }
	return f
}

func (f *dispatcherFixture) profile(t *testing.T, telegramID int64) *model.Profile {
	t.Helper()
	profile, _, err := f.profiles.GetOrCreate(context.Background(), telegramID, fmt.Sprintf("u%d", telegramID), "", "")
	require.NoError(t, err)
	return profile
}

func (f *dispatcherFixture) addTask(t *testing.T, profileID, title string, due time.Time, mutate ...func(*model.Task)) *model.Task {
	t.Helper()
	task := &model.Task{Title: title, DueDate: due.UTC(), ProfileID: profileID}
	for _, m := range mutate {
		m(task)
	}
	require.NoError(t, f.tasks.Create(context.Background(), task))
	return task
}

func completed(task *model.Task) { task.IsCompleted = true }
func muted(task *model.Task)     { task.NotificationsDisabled = true }

func TestOverdueScanDeliversOncePerRun(t *testing.T) {
	f := newDispatcherFixture(t)
	profile := f.profile(t, 555)

	task := f.addTask(t, profile.ID, "Pay rent", f.now.Add(-time.Hour))

	require.NoError(t, f.d.RunOverdueScan(context.Background()))

	msgs := f.sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(555), msgs[0].ChatID)
	assert.Contains(t, msgs[0].Msg.Text, "Pay rent")
	require.NotNil(t, msgs[0].Msg.Button)
	assert.Equal(t, notify.MuteCallbackData(task.ID), msgs[0].Msg.Button.Data)
}

func TestScansExcludeCompletedTasks(t *testing.T) {
	f := newDispatcherFixture(t)
	profile := f.profile(t, 1)
	ctx := context.Background()

	f.addTask(t, profile.ID, "done overdue", f.now.Add(-time.Hour), completed)
	f.addTask(t, profile.ID, "done upcoming", f.now.Add(30*time.Minute), completed)
	f.addTask(t, profile.ID, "done and muted", f.now.Add(2*time.Hour), completed, muted)

	require.NoError(t, f.d.RunOverdueScan(ctx))
	require.NoError(t, f.d.RunUpcomingScan(ctx))
	require.NoError(t, f.d.RunDailyDigest(ctx))

	assert.Empty(t, f.sender.messages(), "completed tasks trigger nothing")
}

func TestMutedTasksSkipAlertsButStayInDigest(t *testing.T) {
	f := newDispatcherFixture(t)
	profile := f.profile(t, 1)
	ctx := context.Background()

	f.addTask(t, profile.ID, "muted overdue", f.now.Add(-time.Hour), muted)
	f.addTask(t, profile.ID, "muted soon", f.now.Add(2*time.Hour), muted)

	require.NoError(t, f.d.RunOverdueScan(ctx))
	require.NoError(t, f.d.RunUpcomingScan(ctx))
	assert.Empty(t, f.sender.messages(), "mute excludes overdue and upcoming alerts")

	// The daily digest deliberately ignores the mute flag.
	require.NoError(t, f.d.RunDailyDigest(ctx))
	msgs := f.sender.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Msg.Text, "muted soon")
}

func TestUpcomingScanBoundaries(t *testing.T) {
	f := newDispatcherFixture(t)
	profile := f.profile(t, 1)

	f.addTask(t, profile.ID, "in exactly one hour", f.now.Add(time.Hour))
	f.addTask(t, profile.ID, "in 25 hours", f.now.Add(25*time.Hour))
	f.addTask(t, profile.ID, "due now", f.now)

	require.NoError(t, f.d.RunUpcomingScan(context.Background()))

	msgs := f.sender.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Msg.Text, "in exactly one hour")
	assert.Contains(t, msgs[0].Msg.Text, "менее часа")
}

func TestDigestAggregatesPerProfile(t *testing.T) {
	f := newDispatcherFixture(t)
	alice := f.profile(t, 1)
	bob := f.profile(t, 2)

	f.addTask(t, alice.ID, "alice one", f.now.Add(2*time.Hour))
	f.addTask(t, alice.ID, "alice two", f.now.Add(3*time.Hour))
	f.addTask(t, bob.ID, "bob task", f.now.Add(4*time.Hour))
	f.addTask(t, alice.ID, "next week", f.now.Add(7*24*time.Hour))

	require.NoError(t, f.d.RunDailyDigest(context.Background()))

	msgs := f.sender.messages()
	require.Len(t, msgs, 2, "one digest per profile with due tasks")

	byChat := make(map[int64]string)
	for _, m := range msgs {
		byChat[m.ChatID] = m.Msg.Text
	}
	assert.Contains(t, byChat[1], "alice one")
	assert.Contains(t, byChat[1], "alice two")
	assert.Contains(t, byChat[1], "Всего задач: <b>2</b>")
	assert.NotContains(t, byChat[1], "next week")
	assert.Contains(t, byChat[2], "bob task")
}

func TestDeliveryFailureDoesNotAbortBatch(t *testing.T) {
	f := newDispatcherFixture(t)
	failing := f.profile(t, 1)
	healthy := f.profile(t, 2)
	f.sender.failFor[1] = true

	f.addTask(t, failing.ID, "will fail", f.now.Add(-time.Hour))
	f.addTask(t, healthy.ID, "will pass", f.now.Add(-time.Hour))

	require.NoError(t, f.d.RunOverdueScan(context.Background()))

	msgs := f.sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(2), msgs[0].ChatID)
	assert.Equal(t, 2, f.sender.attempts, "both deliveries were attempted")
}

func TestScanSkipsProfilesWithoutChatAddress(t *testing.T) {
	f := newDispatcherFixture(t)
	profile := f.profile(t, 1)

	// Detach the chat address; task management still works for such
	// profiles but nothing can be delivered.
	require.NoError(t, f.db.Model(&model.Profile{}).Where("id = ?", profile.ID).Update("telegram_id", nil).Error)
	f.addTask(t, profile.ID, "unreachable", f.now.Add(-time.Hour))

	require.NoError(t, f.d.RunOverdueScan(context.Background()))
	require.NoError(t, f.d.RunDailyDigest(context.Background()))

	assert.Empty(t, f.sender.messages())
}

func TestMuteStopsSubsequentOverdueScans(t *testing.T) {
	f := newDispatcherFixture(t)
	profile := f.profile(t, 555)
	ctx := context.Background()

	task := f.addTask(t, profile.ID, "Pay rent", f.now.Add(-time.Hour))

	require.NoError(t, f.d.RunOverdueScan(ctx))
	require.Len(t, f.sender.messages(), 1)

	// Simulate the inbound mute action for the token the alert carried.
	button := f.sender.messages()[0].Msg.Button
	require.NotNil(t, button)
	taskID, ok := notify.ParseMuteCallback(button.Data)
	require.True(t, ok)
	assert.Equal(t, task.ID, taskID)
	require.NoError(t, f.db.Model(&model.Task{}).Where("id = ?", taskID).Update("notifications_disabled", true).Error)

	require.NoError(t, f.d.RunOverdueScan(ctx))
	assert.Len(t, f.sender.messages(), 1, "muted task is no longer selected")
}

func TestCleanupNeverFails(t *testing.T) {
	f := newDispatcherFixture(t)
	assert.NoError(t, f.d.RunCleanup(context.Background()))
}

func TestOverdueMessageRendersDisplayTime(t *testing.T) {
	f := newDispatcherFixture(t)
	profile := f.profile(t, 1)

	due := f.now.Add(-90 * time.Minute)
	f.addTask(t, profile.ID, "late", due)

	require.NoError(t, f.d.RunOverdueScan(context.Background()))

	msgs := f.sender.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Msg.Text, due.Format("2006-01-02 15:04"))
	assert.True(t, strings.Contains(msgs[0].Msg.Text, "1ч 30м"))
}
