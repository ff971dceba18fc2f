package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email         string    `gorm:"uniqueIndex;not null" json:"email"`
	Username      string    `gorm:"uniqueIndex;not null" json:"username"`
	FullName      string    `json:"full_name"`
	PasswordHash  string    `gorm:"not null"             json:"-"`
	IsActive      bool      `gorm:"default:true"         json:"is_active"`
	VerifiedEmail bool      `gorm:"default:false"        json:"verified_email"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
