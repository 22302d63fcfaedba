package models

import (
	"time"

	"github.com/google/uuid"
)

// Review difficulty grades reported by the client.
const (
	DifficultyEasy       = 1
	DifficultyMedium     = 2
	DifficultyHard       = 3
	DifficultyImpossible = 4
)

// Card is a flashcard owned by a single user. NextReviewAt and AppearsCount
// only ever move forward; the review fold in internal/review enforces that.
type Card struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"` // Primary key.

	Front string `gorm:"type:text;index"` // Prompt side.
	Back  string `gorm:"type:text"`       // Answer side.

	AppearsCount int       `gorm:"not null;default:0"`      // Times the card was shown.
	CreatedAt    time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	NextReviewAt time.Time `gorm:"not null"`                // Next due date.

	AuthorID uuid.UUID `gorm:"type:uuid;not null;index"` // Owning user.

	Reviews []CardReviewLog `gorm:"foreignKey:CardID;constraint:OnDelete:CASCADE"` // Review history.
}

// CardReviewLog is an append-only audit record of a single review event.
// It is never the source of truth for card state.
type CardReviewLog struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"` // Primary key.

	CardID uuid.UUID `gorm:"type:uuid;not null;index"` // Reviewed card.
	UserID uuid.UUID `gorm:"type:uuid;not null;index"` // Reviewing user.

	ReviewAt     time.Time `gorm:"not null"` // When the review happened.
	NextReviewAt time.Time `gorm:"not null"` // Due date proposed by the client.
	Difficulty   int       `gorm:"not null"` // Reported difficulty grade.
}
