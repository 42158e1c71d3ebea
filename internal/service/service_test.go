package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"todo-tracker/internal/model"
	"todo-tracker/internal/repository"
)

var testDBCounter atomic.Int64

type fixture struct {
	db         *gorm.DB
	tasks      *TaskService
	categories *CategoryService
	profiles   *ProfileService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:svctest%d?mode=memory&cache=shared", testDBCounter.Add(1))
	db, err := repository.NewDB(dsn)
	require.NoError(t, err)

	taskRepo := repository.NewTaskRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	profileRepo := repository.NewProfileRepository(db)

	return &fixture{
		db:         db,
		tasks:      NewTaskService(taskRepo, categoryRepo, profileRepo),
		categories: NewCategoryService(categoryRepo, taskRepo),
		profiles:   NewProfileService(profileRepo),
	}
}

func (f *fixture) profile(t *testing.T, telegramID int64) *model.Profile {
	t.Helper()
	profile, _, err := f.profiles.GetOrCreate(context.Background(), telegramID, "tester", "Test", "User")
	require.NoError(t, err)
	return profile
}

func (f *fixture) task(t *testing.T, profileID string, due time.Time) *model.Task {
	t.Helper()
	task, err := f.tasks.Create(context.Background(), CreateTaskInput{
		Title:     "task",
		DueDate:   &due,
		ProfileID: profileID,
	})
	require.NoError(t, err)
	return task
}
