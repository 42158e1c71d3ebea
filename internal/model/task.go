package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Task is a single tracked item. DueDate is stored in UTC; display
// conversion happens in the notify package only.
type Task struct {
	ID                    string `gorm:"primaryKey;size:36"`
	Title                 string
	Description           string
	DueDate               time.Time `gorm:"index"`
	ProfileID             string    `gorm:"index;size:36"`
	Profile               Profile
	Categories            []Category `gorm:"many2many:task_categories"`
	IsCompleted           bool       `gorm:"default:false"`
	NotificationsDisabled bool       `gorm:"default:false"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// IsOverdue reports whether the task is past due and still open.
// Computed at read time, never stored.
func (t *Task) IsOverdue(now time.Time) bool {
	return !t.IsCompleted && t.DueDate.Before(now)
}
