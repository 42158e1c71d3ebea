package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"todo-tracker/internal/model"
	"todo-tracker/internal/repository"
)

// CreateTaskInput carries the data required to create a task.
type CreateTaskInput struct {
	Title       string
	Description string
	DueDate     *time.Time
	ProfileID   string
	CategoryIDs []string
}

// UpdateTaskInput carries optional field changes. ProfileID is accepted
// only to reject it: the owner is immutable after creation.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	DueDate     *time.Time
	CategoryIDs []string
	ProfileID   *string
}

// TaskStats aggregates per-profile task counters.
type TaskStats struct {
	Total          int64
	Completed      int64
	Overdue        int64
	CompletionRate float64
}

// TaskService wraps task business rules over the repositories.
type TaskService struct {
	tasks      *repository.TaskRepository
	categories *repository.CategoryRepository
	profiles   *repository.ProfileRepository
}

func NewTaskService(tasks *repository.TaskRepository, categories *repository.CategoryRepository, profiles *repository.ProfileRepository) *TaskService {
	return &TaskService{tasks: tasks, categories: categories, profiles: profiles}
}

func (s *TaskService) Create(ctx context.Context, input CreateTaskInput) (*model.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, &model.ValidationError{Field: "title", Reason: "is required"}
	}
	if input.DueDate == nil {
		return nil, &model.ValidationError{Field: "due_date", Reason: "is required"}
	}

	if _, err := s.profiles.FindByID(ctx, input.ProfileID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, &model.ValidationError{Field: "user", Reason: "does not exist"}
		}
		return nil, err
	}

	categories, err := s.resolveCategories(ctx, input.CategoryIDs)
	if err != nil {
		return nil, err
	}

	task := model.Task{
		Title:       title,
		Description: input.Description,
		DueDate:     input.DueDate.UTC(),
		ProfileID:   input.ProfileID,
		Categories:  categories,
	}
	if err := s.tasks.Create(ctx, &task); err != nil {
		return nil, err
	}
	return s.tasks.FindByID(ctx, task.ID)
}

func (s *TaskService) Get(ctx context.Context, taskID string) (*model.Task, error) {
	return s.tasks.FindByID(ctx, taskID)
}

func (s *TaskService) Update(ctx context.Context, taskID string, input UpdateTaskInput) (*model.Task, error) {
	if input.ProfileID != nil {
		return nil, &model.ValidationError{Field: "user", Reason: "is immutable"}
	}

	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, &model.ValidationError{Field: "title", Reason: "is required"}
		}
		task.Title = title
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.DueDate != nil {
		task.DueDate = input.DueDate.UTC()
	}

	if err := s.tasks.Save(ctx, task); err != nil {
		return nil, err
	}

	if input.CategoryIDs != nil {
		categories, err := s.resolveCategories(ctx, input.CategoryIDs)
		if err != nil {
			return nil, err
		}
		if err := s.tasks.ReplaceCategories(ctx, task, categories); err != nil {
			return nil, err
		}
	}

	return s.tasks.FindByID(ctx, task.ID)
}

// SetCompleted flips the completion flag. Idempotent.
func (s *TaskService) SetCompleted(ctx context.Context, taskID string, completed bool) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	task.IsCompleted = completed
	if err := s.tasks.Save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// SetNotificationsDisabled flips the per-task mute flag. Idempotent.
func (s *TaskService) SetNotificationsDisabled(ctx context.Context, taskID string, disabled bool) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	task.NotificationsDisabled = disabled
	if err := s.tasks.Save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) Delete(ctx context.Context, taskID string) error {
	return s.tasks.Delete(ctx, taskID)
}

func (s *TaskService) Query(ctx context.Context, filter repository.TaskFilter) ([]model.Task, error) {
	return s.tasks.Query(ctx, filter)
}

// Stats computes per-profile counters the way the admin screens expect.
func (s *TaskService) Stats(ctx context.Context, profileID string, now time.Time) (TaskStats, error) {
	if _, err := s.profiles.FindByID(ctx, profileID); err != nil {
		return TaskStats{}, err
	}
	total, completed, overdue, err := s.tasks.CountByProfile(ctx, profileID, now)
	if err != nil {
		return TaskStats{}, err
	}
	stats := TaskStats{Total: total, Completed: completed, Overdue: overdue}
	if total > 0 {
		stats.CompletionRate = float64(completed) / float64(total) * 100
	}
	return stats, nil
}

func (s *TaskService) resolveCategories(ctx context.Context, ids []string) ([]model.Category, error) {
	categories := make([]model.Category, 0, len(ids))
	for _, id := range ids {
		category, err := s.categories.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return nil, &model.ValidationError{Field: "categories", Reason: "contain an unknown id"}
			}
			return nil, err
		}
		categories = append(categories, *category)
	}
	return categories, nil
}
