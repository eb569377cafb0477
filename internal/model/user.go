package model

import (
	"time"

	"github.com/google/uuid"
)

// User is the minimal user row the messaging core keeps in sync with the
// account subsystem. Full profiles, credentials and settings live there,
// not here.
type User struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	DisplayName string    `json:"display_name" gorm:"size:100;not null"`
	Avatar      string    `json:"avatar" gorm:"size:500;default:''"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserProfile is the resolution shape returned by the user directory:
// just enough to label participants and senders.
type UserProfile struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Avatar      string    `json:"avatar"`
}

// Profile converts a user row to its directory shape.
func (u *User) Profile() UserProfile {
	return UserProfile{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Avatar:      u.Avatar,
	}
}
