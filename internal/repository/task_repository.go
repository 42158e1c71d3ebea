package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"todo-tracker/internal/model"
)

// TaskFilter narrows Query results. Zero values mean "no filter".
type TaskFilter struct {
	ProfileID  string
	TelegramID *int64
	Completed  *bool
	CategoryID string
	Search     string
	DueFrom    *time.Time
	DueTo      *time.Time
}

// TaskRepository handles persistence for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, taskID string) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).
		Preload("Categories").
		Preload("Profile").
		First(&task, "id = ?", taskID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	return &task, nil
}

// Save persists scalar field changes on an already loaded task.
func (r *TaskRepository) Save(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Omit("Categories", "Profile").Save(task).Error; err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// ReplaceCategories rewrites the category associations of a task.
func (r *TaskRepository) ReplaceCategories(ctx context.Context, task *model.Task, categories []model.Category) error {
	if err := r.db.WithContext(ctx).Model(task).Association("Categories").Replace(categories); err != nil {
		return fmt.Errorf("replace task categories: %w", err)
	}
	task.Categories = categories
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, taskID string) error {
	res := r.db.WithContext(ctx).Select("Categories").Delete(&model.Task{ID: taskID})
	if res.Error != nil {
		return fmt.Errorf("delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

// Query lists tasks matching the filter, newest created first.
func (r *TaskRepository) Query(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	q := r.db.WithContext(ctx).
		Model(&model.Task{}).
		Preload("Categories").
		Preload("Profile").
		Order("created_at DESC")

	if filter.ProfileID != "" {
		q = q.Where("profile_id = ?", filter.ProfileID)
	}
	if filter.TelegramID != nil {
		q = q.Where("profile_id IN (?)",
			r.db.Model(&model.Profile{}).Select("id").Where("telegram_id = ?", *filter.TelegramID))
	}
	if filter.Completed != nil {
		q = q.Where("is_completed = ?", *filter.Completed)
	}
	if filter.CategoryID != "" {
		q = q.Where("id IN (?)",
			r.db.Table("task_categories").Select("task_id").Where("category_id = ?", filter.CategoryID))
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where("title LIKE ? OR description LIKE ?", pattern, pattern)
	}
	if filter.DueFrom != nil {
		q = q.Where("due_date >= ?", *filter.DueFrom)
	}
	if filter.DueTo != nil {
		q = q.Where("due_date <= ?", *filter.DueTo)
	}

	var tasks []model.Task
	if err := q.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	return tasks, nil
}

// ListOverdue returns open, unmuted tasks whose due date has passed.
func (r *TaskRepository) ListOverdue(ctx context.Context, now time.Time) ([]model.Task, error) {
	return r.scan(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("due_date <= ? AND is_completed = ? AND notifications_disabled = ?", now, false, false)
	})
}

// ListUpcoming returns open, unmuted tasks due in (now, now+window].
func (r *TaskRepository) ListUpcoming(ctx context.Context, now time.Time, window time.Duration) ([]model.Task, error) {
	return r.scan(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("due_date > ? AND due_date <= ? AND is_completed = ? AND notifications_disabled = ?",
			now, now.Add(window), false, false)
	})
}

// ListDueBetween returns open tasks due in [from, to]. The mute flag is
// deliberately not filtered here; the daily digest includes muted tasks.
func (r *TaskRepository) ListDueBetween(ctx context.Context, from, to time.Time) ([]model.Task, error) {
	return r.scan(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("due_date >= ? AND due_date <= ? AND is_completed = ?", from, to, false)
	})
}

func (r *TaskRepository) scan(ctx context.Context, where func(*gorm.DB) *gorm.DB) ([]model.Task, error) {
	var tasks []model.Task
	q := r.db.WithContext(ctx).
		Preload("Categories").
		Preload("Profile").
		Order("created_at DESC")
	if err := where(q).Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("scan tasks: %w", err)
	}
	return tasks, nil
}

// CountByCategory reports how many tasks still reference the category.
func (r *TaskRepository) CountByCategory(ctx context.Context, categoryID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("task_categories").
		Where("category_id = ?", categoryID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count tasks by category: %w", err)
	}
	return count, nil
}

// CountByProfile returns total, completed and overdue task counts.
func (r *TaskRepository) CountByProfile(ctx context.Context, profileID string, now time.Time) (total, completed, overdue int64, err error) {
	db := r.db.WithContext(ctx).Model(&model.Task{})
	if err = db.Where("profile_id = ?", profileID).Count(&total).Error; err != nil {
		return 0, 0, 0, fmt.Errorf("count tasks: %w", err)
	}
	db = r.db.WithContext(ctx).Model(&model.Task{})
	if err = db.Where("profile_id = ? AND is_completed = ?", profileID, true).Count(&completed).Error; err != nil {
		return 0, 0, 0, fmt.Errorf("count completed tasks: %w", err)
	}
	db = r.db.WithContext(ctx).Model(&model.Task{})
	if err = db.Where("profile_id = ? AND is_completed = ? AND due_date < ?", profileID, false, now).Count(&overdue).Error; err != nil {
		return 0, 0, 0, fmt.Errorf("count overdue tasks: %w", err)
	}
	return total, completed, overdue, nil
}
