package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account is the identity record behind a profile. Username is derived
// from the Telegram id and stays unique.
type Account struct {
	ID        string `gorm:"primaryKey;size:36"`
	Username  string `gorm:"uniqueIndex"`
	Email     string
	FirstName string
	LastName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// Profile binds an account to its Telegram delivery address.
// TelegramID is nullable: a profile without it can manage tasks but
// receives no notifications.
type Profile struct {
	ID               string `gorm:"primaryKey;size:36"`
	AccountID        string `gorm:"uniqueIndex;size:36"`
	Account          Account
	TelegramID       *int64 `gorm:"uniqueIndex"`
	TelegramUsername string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Tasks            []Task `gorm:"foreignKey:ProfileID;constraint:OnDelete:CASCADE"`
}

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
