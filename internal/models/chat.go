package models

import (
	"time"

	"github.com/google/uuid"
)

// Chat message roles sent to the AI provider.
const (
	RoleSystem    = "system"
	RoleDeveloper = "developer"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Chat is a conversation owned by a single user.
type Chat struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"` // Primary key.

	Title string `gorm:"type:text;not null"` // Display title.

	AuthorID uuid.UUID `gorm:"type:uuid;not null;index"` // Owning user.

	Messages []ChatMessage `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE"` // Ordered turns.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// ChatMessage is a single turn in a chat. The first message of every chat is
// the developer-role tutor prompt seeded at creation.
type ChatMessage struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"` // Primary key.

	ChatID uuid.UUID `gorm:"type:uuid;not null;index"` // Parent chat.

	Role    string `gorm:"type:text;not null"` // system | developer | user | assistant.
	Content string `gorm:"type:text;not null"` // Message body.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// TableName keeps the message table under its historical name.
func (ChatMessage) TableName() string { return "chat_message" }
