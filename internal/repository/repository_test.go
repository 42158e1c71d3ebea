package repository

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"todo-tracker/internal/model"
)

var testDBCounter atomic.Int64

// newTestDB opens an isolated in-memory database per test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repotest%d?mode=memory&cache=shared", testDBCounter.Add(1))
	db, err := NewDB(dsn)
	require.NoError(t, err)
	return db
}

func createProfile(t *testing.T, db *gorm.DB, telegramID int64) *model.Profile {
	t.Helper()
	profile, created, err := NewProfileRepository(db).GetOrCreate(context.Background(), telegramID, fmt.Sprintf("user%d", telegramID), "Test", "User")
	require.NoError(t, err)
	require.True(t, created)
	return profile
}

func createTask(t *testing.T, db *gorm.DB, profileID, title string, due time.Time) *model.Task {
	t.Helper()
	task := &model.Task{Title: title, DueDate: due.UTC(), ProfileID: profileID}
	require.NoError(t, NewTaskRepository(db).Create(context.Background(), task))
	return task
}
