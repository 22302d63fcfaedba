package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/auth"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/models"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/security"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/token"
)

// AuthHandler manages sign-up, sign-in, sign-out and token refresh.
type AuthHandler struct {
	db     *gorm.DB
	tokens *token.Service
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(conn *gorm.DB, tokens *token.Service) *AuthHandler {
	return &AuthHandler{db: conn, tokens: tokens}
}

// signUpRequest defines the request body for user registration.
type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// signInRequest defines the request body for authentication.
type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// refreshRequest defines the request body for token rotation.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func userJSON(user *models.User) gin.H {
	return gin.H{
		"id":                 user.ID,
		"email":              user.Email,
		"username":           user.Username,
		"name":               user.Name,
		"is_active":          user.IsActive,
		"has_ai_access":      user.HasAIAccess,
		"created_at":         user.CreatedAt,
		"last_sign_in_at":    user.LastSignInAt,
		"email_confirmed_at": user.EmailConfirmedAt,
	}
}

func sessionJSON(pair token.Pair) gin.H {
	return gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"token_type":    "bearer",
		"expires_in":    int64(time.Until(pair.AccessExpiresAt).Seconds()),
		"expires_at":    pair.AccessExpiresAt.Unix(),
	}
}

// SignUp registers a new user and issues its first token pair.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var body signUpRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	username := strings.TrimSpace(body.Username)
	if email == "" || body.Password == "" || username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email, password and username are required"})
		return
	}

	ctx := c.Request.Context()
	var emailTaken int64
	if errCount := h.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&emailTaken).Error; errCount != nil {
		log.WithError(errCount).Error("sign-up lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if emailTaken > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		return
	}

	hash, errHash := security.HashPassword(body.Password)
	if errHash != nil {
		log.WithError(errHash).Error("password hash failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	user := models.User{
		ID:             uuid.New(),
		Email:          email,
		Username:       username,
		Name:           strings.TrimSpace(body.Name),
		HashedPassword: hash,
		IsActive:       true,
	}

	var pair token.Pair
	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&user).Error; errCreate != nil {
			return errCreate
		}
		issued, errIssue := h.tokens.Issue(ctx, tx, &user)
		if errIssue != nil {
			return errIssue
		}
		pair = issued
		return nil
	})
	if errTx != nil {
		if errors.Is(errTx, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "Username already taken"})
			return
		}
		log.WithError(errTx).Error("sign-up failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": userJSON(&user), "session": sessionJSON(pair)})
}

// SignIn authenticates a user and issues a fresh token pair.
func (h *AuthHandler) SignIn(c *gin.Context) {
	var body signInRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	ctx := c.Request.Context()
	var user models.User
	errFind := h.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		log.WithError(errFind).Error("sign-in lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if !security.VerifyPassword(user.HashedPassword, body.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if !user.IsActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "account disabled"})
		return
	}

	now := time.Now().UTC()
	user.LastSignInAt = &now

	var pair token.Pair
	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errUpdate := tx.Model(&models.User{}).Where("id = ?", user.ID).Update("last_sign_in_at", now).Error; errUpdate != nil {
			return errUpdate
		}
		issued, errIssue := h.tokens.Issue(ctx, tx, &user)
		if errIssue != nil {
			return errIssue
		}
		pair = issued
		return nil
	})
	if errTx != nil {
		log.WithError(errTx).Error("sign-in failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userJSON(&user), "session": sessionJSON(pair)})
}

// SignOut blacklists the presented access token.
func (h *AuthHandler) SignOut(c *gin.Context) {
	bearer, ok := auth.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
		return
	}
	if errRevoke := h.tokens.Revoke(c.Request.Context(), bearer); errRevoke != nil {
		if errors.Is(errRevoke, token.ErrUnauthorized) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
			return
		}
		log.WithError(errRevoke).Error("sign-out failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Successfully signed out"})
}

// Refresh rotates a refresh token into a new pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var body refreshRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || strings.TrimSpace(body.RefreshToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}

	pair, _, errRefresh := h.tokens.Refresh(c.Request.Context(), strings.TrimSpace(body.RefreshToken))
	if errRefresh != nil {
		if errors.Is(errRefresh, token.ErrUnauthorized) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
			return
		}
		log.WithError(errRefresh).Error("token refresh failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, sessionJSON(pair))
}

// Me returns the authenticated caller.
func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":                 identity.ID,
		"email":              identity.Email,
		"username":           identity.Username,
		"name":               identity.Name,
		"is_active":          identity.IsActive,
		"has_ai_access":      identity.HasAIAccess,
		"created_at":         identity.CreatedAt,
		"last_sign_in_at":    identity.LastSignInAt,
		"email_confirmed_at": identity.EmailConfirmedAt,
	})
}

// Verify confirms the presented token is valid.
func (h *AuthHandler) Verify(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Token is valid for user: " + identity.Email})
}
