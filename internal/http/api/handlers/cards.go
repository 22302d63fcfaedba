package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/auth"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/models"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/review"
)

// CardHandler manages flashcards and their review history. Every operation
// is scoped to the authenticated owner; foreign cards read as absent.
type CardHandler struct {
	db *gorm.DB
}

// NewCardHandler constructs a CardHandler.
func NewCardHandler(conn *gorm.DB) *CardHandler {
	return &CardHandler{db: conn}
}

type cardCreateRequest struct {
	Front        string     `json:"front"`
	Back         string     `json:"back"`
	NextReviewAt *time.Time `json:"nextReviewAt"`
}

type cardUpdateRequest struct {
	Front *string `json:"front"`
	Back  *string `json:"back"`
}

// cardReviewRequest carries one review submission. Clients send camelCase
// keys; the snake_case variants are accepted for the fields that had both
// spellings in the wild.
type cardReviewRequest struct {
	ReviewAt          time.Time  `json:"reviewAt"`
	NextReviewAt      time.Time  `json:"nextReviewAt"`
	NextReviewAtSnake *time.Time `json:"next_review_at"`
	Difficult         int        `json:"difficult"`
	AppearsCount      int        `json:"appearsCount"`
	AppearsCountSnake *int       `json:"appears_count"`
}

func reviewLogJSON(entry models.CardReviewLog) gin.H {
	return gin.H{
		"id":           entry.ID,
		"reviewAt":     entry.ReviewAt,
		"nextReviewAt": entry.NextReviewAt,
		"difficult":    entry.Difficulty,
	}
}

func cardJSON(card *models.Card) gin.H {
	reviews := make([]gin.H, 0, len(card.Reviews))
	for _, entry := range card.Reviews {
		reviews = append(reviews, reviewLogJSON(entry))
	}
	return gin.H{
		"id":           card.ID,
		"front":        card.Front,
		"back":         card.Back,
		"appearsCount": card.AppearsCount,
		"createdAt":    card.CreatedAt,
		"nextReviewAt": card.NextReviewAt,
		"reviews":      reviews,
	}
}

// findOwned loads a card that belongs to the caller. Absent and foreign
// cards are indistinguishable to the client.
func (h *CardHandler) findOwned(c *gin.Context, ownerID uuid.UUID, preloadReviews bool) (*models.Card, bool) {
	cardID, errParse := uuid.Parse(c.Param("id"))
	if errParse != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Card not found"})
		return nil, false
	}

	query := h.db.WithContext(c.Request.Context())
	if preloadReviews {
		query = query.Preload("Reviews", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("review_at ASC")
		})
	}

	var card models.Card
	errFind := query.Where("id = ? AND author_id = ?", cardID, ownerID).First(&card).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Card not found"})
			return nil, false
		}
		log.WithError(errFind).Error("card lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return nil, false
	}
	return &card, true
}

// List returns the caller's cards, oldest first.
func (h *CardHandler) List(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
		return
	}

	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var cards []models.Card
	errFind := h.db.WithContext(c.Request.Context()).
		Preload("Reviews", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("review_at ASC")
		}).
		Where("author_id = ?", identity.ID).
		Order("created_at ASC").
		Offset(offset).Limit(limit).
		Find(&cards).Error
	if errFind != nil {
		log.WithError(errFind).Error("card list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	out := make([]gin.H, 0, len(cards))
	for i := range cards {
		out = append(out, cardJSON(&cards[i]))
	}
	c.JSON(http.StatusOK, out)
}

// Get returns one owned card with its review history.
func (h *CardHandler) Get(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
		return
	}
	card, ok := h.findOwned(c, identity.ID, true)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, cardJSON(card))
}

// Create stores a new card for the caller.
func (h *CardHandler) Create(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
		return
	}

	var body cardCreateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Front) == "" || strings.TrimSpace(body.Back) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "front and back are required"})
		return
	}

	nextReview := time.Now().UTC()
	if body.NextReviewAt != nil {
		nextReview = *body.NextReviewAt
	}

	card := models.Card{
		ID:           uuid.New(),
		Front:        body.Front,
		Back:         body.Back,
		NextReviewAt: nextReview,
		AuthorID:     identity.ID,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&card).Error; errCreate != nil {
		log.WithError(errCreate).Error("card create failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusCreated, cardJSON(&card))
}

// Update changes the front and/or back of an owned card.
func (h *CardHandler) Update(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
		return
	}

	var body cardUpdateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	card, ok := h.findOwned(c, identity.ID, true)
	if !ok {
		return
	}
	if body.Front != nil {
		card.Front = *body.Front
	}
	if body.Back != nil {
		card.Back = *body.Back
	}
	errSave := h.db.WithContext(c.Request.Context()).Model(&models.Card{}).
		Where("id = ?", card.ID).
		Updates(map[string]any{"front": card.Front, "back": card.Back}).Error
	if errSave != nil {
		log.WithError(errSave).Error("card update failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, cardJSON(card))
}

// Delete removes an owned card together with its review history.
func (h *CardHandler) Delete(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
		return
	}

	card, ok := h.findOwned(c, identity.ID, false)
	if !ok {
		return
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errLogs := tx.Where("card_id = ?", card.ID).Delete(&models.CardReviewLog{}).Error; errLogs != nil {
			return errLogs
		}
		return tx.Delete(&models.Card{}, "id = ?", card.ID).Error
	})
	if errTx != nil {
		log.WithError(errTx).Error("card delete failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Review applies one review submission to an owned card. The card's due
// date and appearance count never move backwards; the submission itself is
// always appended to the history.
func (h *CardHandler) Review(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
		return
	}

	var body cardReviewRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	nextReviewAt := body.NextReviewAt
	if body.NextReviewAtSnake != nil {
		nextReviewAt = *body.NextReviewAtSnake
	}
	appearsCount := body.AppearsCount
	if body.AppearsCountSnake != nil {
		appearsCount = *body.AppearsCountSnake
	}
	if !review.ValidDifficulty(body.Difficult) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "difficult must be between 1 and 4"})
		return
	}
	if body.ReviewAt.IsZero() || nextReviewAt.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reviewAt and nextReviewAt are required"})
		return
	}

	card, ok := h.findOwned(c, identity.ID, true)
	if !ok {
		return
	}

	sub := review.Submission{
		ReviewAt:     body.ReviewAt,
		NextReviewAt: nextReviewAt,
		Difficulty:   body.Difficult,
		AppearsCount: appearsCount,
	}
	updated, entry := review.Apply(*card, identity.ID, sub)
	updated.Reviews = append(updated.Reviews, entry)

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		errSave := tx.Model(&models.Card{}).Where("id = ?", card.ID).
			Updates(map[string]any{
				"next_review_at": updated.NextReviewAt,
				"appears_count":  updated.AppearsCount,
			}).Error
		if errSave != nil {
			return errSave
		}
		return tx.Create(&entry).Error
	})
	if errTx != nil {
		log.WithError(errTx).Error("card review failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, cardJSON(&updated))
}
