package service

import (
	"context"

	"todo-tracker/internal/model"
	"todo-tracker/internal/repository"
)

// ProfileService exposes identity operations.
type ProfileService struct {
	profiles *repository.ProfileRepository
}

func NewProfileService(profiles *repository.ProfileRepository) *ProfileService {
	return &ProfileService{profiles: profiles}
}

// GetOrCreate returns the profile for a Telegram account, creating the
// backing account record on first contact. First-write-wins: an existing
// profile comes back unchanged.
func (s *ProfileService) GetOrCreate(ctx context.Context, telegramID int64, username, firstName, lastName string) (*model.Profile, bool, error) {
	if telegramID == 0 {
		return nil, false, &model.ValidationError{Field: "telegram_id", Reason: "is required"}
	}
	return s.profiles.GetOrCreate(ctx, telegramID, username, firstName, lastName)
}

func (s *ProfileService) Get(ctx context.Context, id string) (*model.Profile, error) {
	return s.profiles.FindByID(ctx, id)
}

func (s *ProfileService) List(ctx context.Context) ([]model.Profile, error) {
	return s.profiles.List(ctx)
}
