package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/articles"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/auth"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/db"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/models"
)

// ArticleHandler manages reading-material articles. Articles created by a
// user belong to that user; ingested articles have no author and are
// readable by everyone but writable only by superusers.
type ArticleHandler struct {
	db     *gorm.DB
	loader *articles.Loader
}

// NewArticleHandler constructs an ArticleHandler.
func NewArticleHandler(conn *gorm.DB, loader *articles.Loader) *ArticleHandler {
	return &ArticleHandler{db: conn, loader: loader}
}

type articleCreateRequest struct {
	Title      string `json:"title"`
	ContentURL string `json:"content_url"`
	Content    string `json:"content"`
}

type articleUpdateRequest struct {
	Title      *string `json:"title"`
	ContentURL *string `json:"content_url"`
	Content    *string `json:"content"`
}

func articleJSON(article *models.Article) gin.H {
	return gin.H{
		"id":          article.ID,
		"title":       article.Title,
		"content_url": article.ContentURL,
		"content":     article.Content,
		"author_id":   article.AuthorID,
		"source_meta": article.SourceMeta,
		"created_at":  article.CreatedAt,
		"updated_at":  article.UpdatedAt,
	}
}

// visibleScope narrows a query to articles the caller may read: their own
// plus every authorless ingested article.
func visibleScope(query *gorm.DB, callerID uuid.UUID) *gorm.DB {
	return query.Where("author_id IS NULL OR author_id = ?", callerID)
}

// findVisible loads an article the caller may read.
func (h *ArticleHandler) findVisible(c *gin.Context, callerID uuid.UUID) (*models.Article, bool) {
	articleID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return nil, false
	}

	var article models.Article
	errFind := visibleScope(h.db.WithContext(c.Request.Context()), callerID).
		Where("id = ?", articleID).
		First(&article).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
			return nil, false
		}
		log.WithError(errFind).Error("article lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return nil, false
	}
	return &article, true
}

// canMutate reports whether the caller may change the article. Authorless
// articles are writable only by superusers.
func canMutate(article *models.Article, identity auth.Identity) bool {
	if article.AuthorID == nil {
		return identity.IsSuperuser
	}
	return *article.AuthorID == identity.ID
}

// List returns visible articles, newest first. An optional search query
// filters on the title.
func (h *ArticleHandler) List(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
		return
	}

	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := visibleScope(h.db.WithContext(c.Request.Context()).Model(&models.Article{}), identity.ID)
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		query = query.Where(db.CaseInsensitiveLikeExpr(h.db, "title"), db.NormalizeLikePattern(h.db, "%"+search+"%"))
	}

	var list []models.Article
	errFind := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&list).Error
	if errFind != nil {
		log.WithError(errFind).Error("article list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	out := make([]gin.H, 0, len(list))
	for i := range list {
		out = append(out, articleJSON(&list[i]))
	}
	c.JSON(http.StatusOK, out)
}

// Get returns one visible article.
func (h *ArticleHandler) Get(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
		return
	}
	article, ok := h.findVisible(c, identity.ID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, articleJSON(article))
}

// Create stores a new article owned by the caller.
func (h *ArticleHandler) Create(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
		return
	}

	var body articleCreateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	authorID := identity.ID
	article := models.Article{
		Title:      body.Title,
		ContentURL: body.ContentURL,
		Content:    body.Content,
		AuthorID:   &authorID,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&article).Error; errCreate != nil {
		log.WithError(errCreate).Error("article create failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusCreated, articleJSON(&article))
}

// Update changes an article the caller may mutate.
func (h *ArticleHandler) Update(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
		return
	}

	var body articleUpdateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	article, ok := h.findVisible(c, identity.ID)
	if !ok {
		return
	}
	if !canMutate(article, identity) {
		c.JSON(http.StatusForbidden, gin.H{"error": "article is read-only"})
		return
	}

	updates := map[string]any{}
	if body.Title != nil {
		article.Title = *body.Title
		updates["title"] = *body.Title
	}
	if body.ContentURL != nil {
		article.ContentURL = *body.ContentURL
		updates["content_url"] = *body.ContentURL
	}
	if body.Content != nil {
		article.Content = *body.Content
		updates["content"] = *body.Content
	}
	if len(updates) > 0 {
		errSave := h.db.WithContext(c.Request.Context()).Model(&models.Article{}).
			Where("id = ?", article.ID).
			Updates(updates).Error
		if errSave != nil {
			log.WithError(errSave).Error("article update failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
	}
	c.JSON(http.StatusOK, articleJSON(article))
}

// Delete removes an article the caller may mutate.
func (h *ArticleHandler) Delete(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
		return
	}

	article, ok := h.findVisible(c, identity.ID)
	if !ok {
		return
	}
	if !canMutate(article, identity) {
		c.JSON(http.StatusForbidden, gin.H{"error": "article is read-only"})
		return
	}

	if errDelete := h.db.WithContext(c.Request.Context()).Delete(&models.Article{}, "id = ?", article.ID).Error; errDelete != nil {
		log.WithError(errDelete).Error("article delete failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Load kicks off the detached ingestion job and returns immediately.
func (h *ArticleHandler) Load(c *gin.Context) {
	h.loader.LoadLatestDetached()
	c.JSON(http.StatusOK, gin.H{"message": "Loading articles"})
}

// LoadContent fetches and persists the body of one visible article.
func (h *ArticleHandler) LoadContent(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
		return
	}

	article, ok := h.findVisible(c, identity.ID)
	if !ok {
		return
	}
	if article.Content == "" {
		if errLoad := h.loader.LoadContent(c.Request.Context(), article); errLoad != nil {
			log.WithError(errLoad).WithField("article_id", article.ID).Error("article content load failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "could not load article content"})
			return
		}
	}
	c.JSON(http.StatusOK, articleJSON(article))
}
