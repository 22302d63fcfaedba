// Package articles runs article ingestion: pulling the latest publisher
// entries into the database and filling article bodies on demand. The
// latest-articles job runs detached from the request that triggers it.
package articles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/models"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/notify"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/scrape"
)

// Source names recorded in article metadata.
const (
	SourceTechCrunch = "techcrunch"
	SourceTabNews    = "tabnews"
)

// sourceMeta is the JSON payload stored in Article.SourceMeta.
type sourceMeta struct {
	Source        string `json:"source"`
	Category      string `json:"category,omitempty"`
	Slug          string `json:"slug,omitempty"`
	PublishedAt   string `json:"published_at,omitempty"`
	OwnerUsername string `json:"owner_username,omitempty"`
}

// Loader ingests publisher articles.
type Loader struct {
	db         *gorm.DB
	techcrunch *scrape.TechCrunchClient
	tabnews    *scrape.TabNewsClient
	notifier   *notify.Dispatcher
}

// NewLoader constructs a Loader.
func NewLoader(conn *gorm.DB, notifier *notify.Dispatcher) *Loader {
	return &Loader{
		db:         conn,
		techcrunch: scrape.NewTechCrunchClient(),
		tabnews:    scrape.NewTabNewsClient(),
		notifier:   notifier,
	}
}

// LoadLatestDetached starts LoadLatest on its own goroutine with a fresh
// context, so the triggering request returns immediately and job failures
// stay in the logs.
func (l *Loader) LoadLatestDetached() {
	go l.LoadLatest(context.Background())
}

// LoadLatest pulls the current TechCrunch and TabNews listings and stores
// entries whose URL is not yet known. Bodies stay empty until requested.
func (l *Loader) LoadLatest(ctx context.Context) {
	stored := 0
	stored += l.loadTechCrunch(ctx)
	stored += l.loadTabNews(ctx)
	if stored > 0 {
		l.notifier.ArticlesIngested(ctx, SourceTechCrunch+"+"+SourceTabNews, stored)
	}
	log.WithField("stored", stored).Info("article ingestion finished")
}

func (l *Loader) loadTechCrunch(ctx context.Context) int {
	posts, errFetch := l.techcrunch.LatestPosts(ctx)
	if errFetch != nil {
		log.WithError(errFetch).Warn("techcrunch listing failed")
		return 0
	}
	stored := 0
	for _, post := range posts {
		meta := sourceMeta{
			Source:        SourceTechCrunch,
			Category:      post.Category,
			Slug:          post.Slug,
			PublishedAt:   post.PublishedAt,
			OwnerUsername: post.OwnerUsername,
		}
		if l.storeListing(ctx, post.Title, post.URL, meta) {
			stored++
		}
	}
	return stored
}

func (l *Loader) loadTabNews(ctx context.Context) int {
	posts, errFetch := l.tabnews.MostRelevantPosts(ctx)
	if errFetch != nil {
		log.WithError(errFetch).Warn("tabnews listing failed")
		return 0
	}
	stored := 0
	for _, post := range posts {
		url := fmt.Sprintf("https://www.tabnews.com.br/%s/%s", post.OwnerUsername, post.Slug)
		meta := sourceMeta{
			Source:        SourceTabNews,
			Slug:          post.Slug,
			PublishedAt:   post.PublishedAt,
			OwnerUsername: post.OwnerUsername,
		}
		if l.storeListing(ctx, post.Title, url, meta) {
			stored++
		}
	}
	return stored
}

// storeListing inserts one listing entry unless its URL is already known.
func (l *Loader) storeListing(ctx context.Context, title, url string, meta sourceMeta) bool {
	if strings.TrimSpace(url) == "" {
		return false
	}
	var existing int64
	errCount := l.db.WithContext(ctx).Model(&models.Article{}).Where("content_url = ?", url).Count(&existing).Error
	if errCount != nil {
		log.WithError(errCount).Warn("article lookup failed")
		return false
	}
	if existing > 0 {
		return false
	}

	metaJSON, errMarshal := json.Marshal(meta)
	if errMarshal != nil {
		log.WithError(errMarshal).Warn("article metadata marshal failed")
		metaJSON = nil
	}
	article := models.Article{
		Title:      title,
		ContentURL: url,
		SourceMeta: datatypes.JSON(metaJSON),
	}
	if errCreate := l.db.WithContext(ctx).Create(&article).Error; errCreate != nil {
		log.WithError(errCreate).WithField("url", url).Warn("article insert failed")
		return false
	}
	return true
}

// LoadContent fetches the body for a stored article and persists it. The
// source client is picked from the article's metadata; articles without
// metadata default to the TechCrunch scraper.
func (l *Loader) LoadContent(ctx context.Context, article *models.Article) error {
	if strings.TrimSpace(article.ContentURL) == "" {
		return errors.New("article has no content url")
	}

	var meta sourceMeta
	if len(article.SourceMeta) > 0 {
		_ = json.Unmarshal(article.SourceMeta, &meta)
	}

	var (
		content  string
		errFetch error
	)
	switch meta.Source {
	case SourceTabNews:
		content, errFetch = l.tabnews.PostContent(ctx, meta.OwnerUsername, meta.Slug)
	default:
		content, errFetch = l.techcrunch.PostContent(ctx, article.ContentURL)
	}
	if errFetch != nil {
		return fmt.Errorf("load article content: %w", errFetch)
	}

	article.Content = content
	errUpdate := l.db.WithContext(ctx).Model(&models.Article{}).
		Where("id = ?", article.ID).
		Update("content", content).Error
	if errUpdate != nil {
		return fmt.Errorf("persist article content: %w", errUpdate)
	}
	return nil
}
