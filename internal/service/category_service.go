package service

import (
	"context"
	"strings"

	"todo-tracker/internal/model"
	"todo-tracker/internal/repository"
)

// DefaultCategories is the fixed set provisioned by the seed operation.
var DefaultCategories = []string{
	"Работа",
	"Личное",
	"Учёба",
	"Здоровье",
	"Финансы",
	"Дом",
	"Хобби",
	"Важное",
	"Срочное",
}

// CategoryService provides business rules around categories.
type CategoryService struct {
	categories *repository.CategoryRepository
	tasks      *repository.TaskRepository
}

func NewCategoryService(categories *repository.CategoryRepository, tasks *repository.TaskRepository) *CategoryService {
	return &CategoryService{categories: categories, tasks: tasks}
}

// GetOrCreate is idempotent by name: repeated calls return the same
// category and never create duplicates.
func (s *CategoryService) GetOrCreate(ctx context.Context, name string) (*model.Category, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, &model.ValidationError{Field: "name", Reason: "is required"}
	}
	return s.categories.GetOrCreate(ctx, name)
}

func (s *CategoryService) Get(ctx context.Context, id string) (*model.Category, error) {
	return s.categories.FindByID(ctx, id)
}

func (s *CategoryService) List(ctx context.Context) ([]model.Category, error) {
	return s.categories.List(ctx)
}

// Delete removes a category unless tasks still reference it.
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	count, err := s.tasks.CountByCategory(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return &model.ConflictError{Resource: "category", Reason: "still has associated tasks"}
	}
	return s.categories.Delete(ctx, id)
}

// TaskCount reports how many tasks reference the category.
func (s *CategoryService) TaskCount(ctx context.Context, id string) (int64, error) {
	return s.tasks.CountByCategory(ctx, id)
}

// SeedDefaults provisions the fixed default category set. Existing
// names are left untouched; returns how many were created.
func (s *CategoryService) SeedDefaults(ctx context.Context) (int, error) {
	created := 0
	for _, name := range DefaultCategories {
		_, wasCreated, err := s.categories.GetOrCreate(ctx, name)
		if err != nil {
			return created, err
		}
		if wasCreated {
			created++
		}
	}
	return created, nil
}
