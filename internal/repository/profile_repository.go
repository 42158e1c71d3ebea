package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"todo-tracker/internal/model"
)

// ProfileRepository handles accounts and their Telegram-facing profiles.
type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetOrCreate returns the profile for the Telegram id, creating the
// account and profile on first contact. Existing records are returned
// unchanged: handle and name are first-write-wins.
func (r *ProfileRepository) GetOrCreate(ctx context.Context, telegramID int64, username, firstName, lastName string) (*model.Profile, bool, error) {
	db := r.db.WithContext(ctx)

	var profile model.Profile
	err := db.Preload("Account").Where("telegram_id = ?", telegramID).First(&profile).Error
	switch {
	case err == nil:
		return &profile, false, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, false, fmt.Errorf("find profile: %w", err)
	}

	derived := fmt.Sprintf("tg_%d", telegramID)
	if username == "" {
		username = derived
	}

	var account model.Account
	err = db.Where("username = ?", derived).First(&account).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		account = model.Account{
			Username:  derived,
			Email:     fmt.Sprintf("%d@tg.local", telegramID),
			FirstName: firstName,
			LastName:  lastName,
		}
		if err := db.Create(&account).Error; err != nil {
			return nil, false, fmt.Errorf("create account: %w", err)
		}
	case err != nil:
		return nil, false, fmt.Errorf("find account: %w", err)
	}

	profile = model.Profile{
		AccountID:        account.ID,
		Account:          account,
		TelegramID:       &telegramID,
		TelegramUsername: username,
	}
	if err := db.Omit("Account").Create(&profile).Error; err != nil {
		return nil, false, fmt.Errorf("create profile: %w", err)
	}
	return &profile, true, nil
}

func (r *ProfileRepository) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.WithContext(ctx).Preload("Account").First(&profile, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return &profile, nil
}

func (r *ProfileRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.WithContext(ctx).Preload("Account").Where("telegram_id = ?", telegramID).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return &profile, nil
}

func (r *ProfileRepository) List(ctx context.Context) ([]model.Profile, error) {
	var profiles []model.Profile
	if err := r.db.WithContext(ctx).Preload("Account").Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}
