package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/ai"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/auth"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/models"
)

// ChatHandler manages tutor chats. Every chat starts with a developer-role
// prompt message; user and assistant turns are appended as the conversation
// runs. The developer turn is sent to the provider but hidden from clients.
type ChatHandler struct {
	db *gorm.DB
	ai *ai.Client
}

// NewChatHandler constructs a ChatHandler.
func NewChatHandler(conn *gorm.DB, client *ai.Client) *ChatHandler {
	return &ChatHandler{db: conn, ai: client}
}

type chatCreateRequest struct {
	Title string `json:"title"`
	Theme string `json:"theme"`
}

type chatMessageRequest struct {
	Message string `json:"message"`
}

func messageJSON(msg *models.ChatMessage) gin.H {
	return gin.H{
		"id":         msg.ID,
		"role":       msg.Role,
		"content":    msg.Content,
		"created_at": msg.CreatedAt,
	}
}

func chatJSON(chat *models.Chat) gin.H {
	messages := make([]gin.H, 0, len(chat.Messages))
	for i := range chat.Messages {
		if chat.Messages[i].Role == models.RoleDeveloper {
			continue
		}
		messages = append(messages, messageJSON(&chat.Messages[i]))
	}
	return gin.H{
		"id":         chat.ID,
		"title":      chat.Title,
		"created_at": chat.CreatedAt,
		"messages":   messages,
	}
}

// findOwned loads a chat with its ordered message history. Foreign chats
// read as absent.
func (h *ChatHandler) findOwned(c *gin.Context, ownerID uuid.UUID) (*models.Chat, bool) {
	chatID, errParse := uuid.Parse(c.Param("id"))
	if errParse != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Chat not found"})
		return nil, false
	}

	var chat models.Chat
	errFind := h.db.WithContext(c.Request.Context()).
		Preload("Messages", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC")
		}).
		Where("id = ? AND author_id = ?", chatID, ownerID).
		First(&chat).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Chat not found"})
			return nil, false
		}
		log.WithError(errFind).Error("chat lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return nil, false
	}
	return &chat, true
}

// List returns the caller's chats, newest first.
func (h *ChatHandler) List(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
		return
	}

	var chats []models.Chat
	errFind := h.db.WithContext(c.Request.Context()).
		Preload("Messages", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC")
		}).
		Where("author_id = ?", identity.ID).
		Order("created_at DESC").
		Find(&chats).Error
	if errFind != nil {
		log.WithError(errFind).Error("chat list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	out := make([]gin.H, 0, len(chats))
	for i := range chats {
		out = append(out, chatJSON(&chats[i]))
	}
	c.JSON(http.StatusOK, out)
}

// Get returns one owned chat with its visible history.
func (h *ChatHandler) Get(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
		return
	}
	chat, ok := h.findOwned(c, identity.ID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, chatJSON(chat))
}

// Create opens a new chat seeded with the tutor prompt for its theme.
func (h *ChatHandler) Create(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
		return
	}

	var body chatCreateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	title := strings.TrimSpace(body.Title)
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	chat := models.Chat{
		ID:       uuid.New(),
		Title:    title,
		AuthorID: identity.ID,
	}
	seed := models.ChatMessage{
		ID:      uuid.New(),
		ChatID:  chat.ID,
		Role:    models.RoleDeveloper,
		Content: ai.SystemPrompt(body.Theme),
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&chat).Error; errCreate != nil {
			return errCreate
		}
		return tx.Create(&seed).Error
	})
	if errTx != nil {
		log.WithError(errTx).Error("chat create failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	chat.Messages = []models.ChatMessage{seed}
	c.JSON(http.StatusCreated, chatJSON(&chat))
}

// Delete removes an owned chat and its messages.
func (h *ChatHandler) Delete(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
		return
	}
	chat, ok := h.findOwned(c, identity.ID)
	if !ok {
		return
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errMsgs := tx.Where("chat_id = ?", chat.ID).Delete(&models.ChatMessage{}).Error; errMsgs != nil {
			return errMsgs
		}
		return tx.Delete(&models.Chat{}, "id = ?", chat.ID).Error
	})
	if errTx != nil {
		log.WithError(errTx).Error("chat delete failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}

// SendMessage appends a user turn, asks the provider for a reply and stores
// both messages. The user turn is only persisted once the provider answered.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
		return
	}

	var body chatMessageRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || strings.TrimSpace(body.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	chat, ok := h.findOwned(c, identity.ID)
	if !ok {
		return
	}

	userMsg := models.ChatMessage{
		ID:      uuid.New(),
		ChatID:  chat.ID,
		Role:    models.RoleUser,
		Content: body.Message,
	}
	history := append(append([]models.ChatMessage{}, chat.Messages...), userMsg)

	reply, errComplete := h.ai.Complete(c.Request.Context(), history)
	if errComplete != nil {
		log.WithError(errComplete).Error("chat completion failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "ai provider unavailable"})
		return
	}

	assistantMsg := models.ChatMessage{
		ID:      uuid.New(),
		ChatID:  chat.ID,
		Role:    models.RoleAssistant,
		Content: reply,
	}
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&userMsg).Error; errCreate != nil {
			return errCreate
		}
		return tx.Create(&assistantMsg).Error
	})
	if errTx != nil {
		log.WithError(errTx).Error("chat message persist failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, messageJSON(&assistantMsg))
}

// StreamMessage streams the assistant reply chunk by chunk as plain text.
// Messages are persisted only after the stream produced content; a stream
// that ends empty leaves the chat untouched, so the user turn it was
// answering is discarded with it.
func (h *ChatHandler) StreamMessage(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
		return
	}

	var body chatMessageRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || strings.TrimSpace(body.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	chat, ok := h.findOwned(c, identity.ID)
	if !ok {
		return
	}

	userMsg := models.ChatMessage{
		ID:      uuid.New(),
		ChatID:  chat.ID,
		Role:    models.RoleUser,
		Content: body.Message,
	}
	history := append(append([]models.ChatMessage{}, chat.Messages...), userMsg)

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)

	full, errStream := h.ai.Stream(c.Request.Context(), history, func(chunk string) error {
		if _, errWrite := c.Writer.WriteString(chunk); errWrite != nil {
			return errWrite
		}
		c.Writer.Flush()
		return nil
	})
	if errStream != nil {
		log.WithError(errStream).Error("chat stream failed")
		return
	}
	if full == "" {
		return
	}

	assistantMsg := models.ChatMessage{
		ID:      uuid.New(),
		ChatID:  chat.ID,
		Role:    models.RoleAssistant,
		Content: full,
	}
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&userMsg).Error; errCreate != nil {
			return errCreate
		}
		return tx.Create(&assistantMsg).Error
	})
	if errTx != nil {
		log.WithError(errTx).Error("chat stream persist failed")
	}
}
