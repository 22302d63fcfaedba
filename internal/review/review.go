// Package review folds a flashcard review submission into card state.
// The fold is pure and monotonic: due date and appearance count never
// regress, so retried or duplicate submissions are harmless.
package review

import (
	"time"

	"github.com/google/uuid"

	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/models"
)

// Submission is a client-reported review outcome.
type Submission struct {
	ReviewAt     time.Time
	NextReviewAt time.Time
	Difficulty   int
	AppearsCount int
}

// ValidDifficulty reports whether d is one of the defined grades.
func ValidDifficulty(d int) bool {
	return d >= models.DifficultyEasy && d <= models.DifficultyImpossible
}

// Apply folds a submission into the card and produces the audit log entry.
// The card's due date advances only when the proposed date is a later
// calendar day than the current one; the comparison is at date granularity.
func Apply(card models.Card, userID uuid.UUID, sub Submission) (models.Card, models.CardReviewLog) {
	if laterDay(sub.NextReviewAt, card.NextReviewAt) {
		card.NextReviewAt = sub.NextReviewAt
	}
	if sub.AppearsCount > card.AppearsCount {
		card.AppearsCount = sub.AppearsCount
	}

	entry := models.CardReviewLog{
		ID:           uuid.New(),
		CardID:       card.ID,
		UserID:       userID,
		ReviewAt:     sub.ReviewAt,
		NextReviewAt: sub.NextReviewAt,
		Difficulty:   sub.Difficulty,
	}
	return card, entry
}

// laterDay reports whether a falls on a later calendar day than b (UTC).
func laterDay(a, b time.Time) bool {
	if b.IsZero() {
		return !a.IsZero()
	}
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	if ay != by {
		return ay > by
	}
	if am != bm {
		return am > bm
	}
	return ad > bd
}
