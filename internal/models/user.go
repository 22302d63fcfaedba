package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents an end-user account stored in the database.
type User struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"` // Primary key.

	Email    string `gorm:"type:text;not null;uniqueIndex"` // Email address.
	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Name     string `gorm:"type:text;index"`                // Display name.

	HashedPassword string `gorm:"type:text;not null"` // Bcrypt password hash.

	IsActive    bool `gorm:"not null;default:true"`  // Whether the user can sign in.
	IsSuperuser bool `gorm:"not null;default:false"` // Administrative flag.
	HasAIAccess bool `gorm:"not null;default:false"` // Whether chat endpoints are allowed.

	CreatedAt        time.Time  `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt        *time.Time ``                               // Last profile update.
	LastSignInAt     *time.Time ``                               // Last successful sign-in.
	EmailConfirmedAt *time.Time ``                               // Email confirmation timestamp.
}
