package db

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/models"
)

// Open connects to the database named by dsn, picking the dialect from its shape.
// TranslateError is enabled so unique violations surface as gorm.ErrDuplicatedKey
// on both dialects.
func Open(dsn string) (*gorm.DB, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, fmt.Errorf("open database: empty dsn")
	}

	cfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	}

	var dialector gorm.Dialector
	switch DialectFromDSN(trimmed) {
	case DialectPostgres:
		dialector = postgres.Open(trimmed)
	case DialectSQLite:
		dialector = sqlite.Open(trimmed)
	default:
		return nil, fmt.Errorf("open database: unsupported dsn %q", trimmed)
	}

	conn, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return conn, nil
}

// Migrate applies schema migrations for all persisted models.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("migrate: nil connection")
	}
	return conn.AutoMigrate(
		&models.User{},
		&models.TokenReference{},
		&models.TokenBlacklist{},
		&models.Card{},
		&models.CardReviewLog{},
		&models.Article{},
		&models.Chat{},
		&models.ChatMessage{},
	)
}
