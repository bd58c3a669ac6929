package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserType string

const (
	UserTypeStudent UserType = "STUDENT"
	UserTypeStaff   UserType = "STAFF"
)

// Valid reports whether t is one of the known identity categories.
func (t UserType) Valid() bool {
	return t == UserTypeStudent || t == UserTypeStaff
}

type Role string

const (
	RoleVoter Role = "VOTER"
	RoleAdmin Role = "ADMIN"
)

// User is a member of the voter directory. Users are provisioned by admin
// import (or the seed command) and are never deleted by the API.
type User struct {
	ID                   uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	IdentificationNumber string          `gorm:"size:50;not null;uniqueIndex" json:"identification_number"`
	Email                string          `gorm:"size:255;not null;index" json:"email"`
	Name                 string          `gorm:"size:255;not null" json:"name"`
	UserType             UserType        `gorm:"size:20;not null;default:'STUDENT'" json:"user_type"`
	Role                 Role            `gorm:"size:20;not null;default:'VOTER'" json:"role"`
	PinHash              *string         `gorm:"size:100" json:"-"`
	Authenticators       []Authenticator `gorm:"foreignKey:UserID" json:"-"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
