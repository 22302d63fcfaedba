package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Article is an ingested reading item. AuthorID is nullable: rows created by
// the ingestion job carry no author and are readable by every user.
type Article struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Title      string `gorm:"type:text;index"` // Headline.
	ContentURL string `gorm:"type:text"`       // Source URL.
	Content    string `gorm:"type:text"`       // Markdown body.

	AuthorID *uuid.UUID `gorm:"type:uuid;index"` // Owning user; nil for ingested rows.

	SourceMeta datatypes.JSON `gorm:"type:json"` // Scrape metadata (category, slug, byline).

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
