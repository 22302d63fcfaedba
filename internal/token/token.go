// Package token implements the session token lifecycle: issuing signed
// access/refresh pairs, validating them against the blacklist, and the
// single-use refresh rotation protocol.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/config"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/models"
)

// Token type claim values.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// ErrUnauthorized is returned for every validation failure: bad signature,
// expiry, wrong type, blacklisted token, unknown reference or missing user.
// Callers must not surface which check failed.
var ErrUnauthorized = errors.New("could not validate credentials")

// Claims is the typed JWT payload. Tokens that do not parse into it are
// rejected.
type Claims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// Pair is a freshly minted access/refresh token pair.
type Pair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Service mints, validates, rotates and revokes token pairs. The signing
// secret and lifetimes are fixed at construction and read-only afterwards.
type Service struct {
	db         *gorm.DB
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewService constructs a Service from the JWT configuration.
func NewService(conn *gorm.DB, cfg config.JWTConfig) *Service {
	return &Service{
		db:         conn,
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessExpiry,
		refreshTTL: cfg.RefreshExpiry,
		now:        time.Now,
	}
}

// Mint signs a new token pair for the user without persisting anything.
func (s *Service) Mint(user *models.User) (Pair, error) {
	now := s.now().UTC()
	access, errAccess := s.sign(user.ID, TypeAccess, now, now.Add(s.accessTTL))
	if errAccess != nil {
		return Pair{}, fmt.Errorf("sign access token: %w", errAccess)
	}
	refresh, errRefresh := s.sign(user.ID, TypeRefresh, now, now.Add(s.refreshTTL))
	if errRefresh != nil {
		return Pair{}, fmt.Errorf("sign refresh token: %w", errRefresh)
	}
	return Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  now.Add(s.accessTTL),
		RefreshExpiresAt: now.Add(s.refreshTTL),
	}, nil
}

// Issue mints a pair and records its TokenReference through tx, so callers
// can commit issuance atomically with their own writes (sign-up, sign-in).
func (s *Service) Issue(ctx context.Context, tx *gorm.DB, user *models.User) (Pair, error) {
	pair, errMint := s.Mint(user)
	if errMint != nil {
		return Pair{}, errMint
	}
	ref := models.TokenReference{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}
	if errCreate := tx.WithContext(ctx).Create(&ref).Error; errCreate != nil {
		return Pair{}, fmt.Errorf("persist token reference: %w", errCreate)
	}
	return pair, nil
}

// Validate checks an access token and resolves its user. Order matters:
// blacklist membership is checked before the signature so revoked tokens
// stay dead even if the secret rotates.
func (s *Service) Validate(ctx context.Context, tokenStr string) (*models.User, *Claims, error) {
	blacklisted, errCheck := s.isBlacklisted(ctx, tokenStr)
	if errCheck != nil {
		return nil, nil, errCheck
	}
	if blacklisted {
		return nil, nil, ErrUnauthorized
	}

	claims, errParse := s.parse(tokenStr)
	if errParse != nil {
		return nil, nil, ErrUnauthorized
	}
	if claims.Type != TypeAccess {
		return nil, nil, ErrUnauthorized
	}

	user, errUser := s.userBySubject(ctx, claims.Subject)
	if errUser != nil {
		return nil, nil, errUser
	}
	return user, claims, nil
}

// Refresh rotates a token pair. The presented refresh token is valid exactly
// once: rotation blacklists both halves of the superseded pair and records
// the replacement reference in a single transaction.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Pair, *models.User, error) {
	blacklisted, errCheck := s.isBlacklisted(ctx, refreshToken)
	if errCheck != nil {
		return Pair{}, nil, errCheck
	}
	if blacklisted {
		return Pair{}, nil, ErrUnauthorized
	}

	var ref models.TokenReference
	errRef := s.db.WithContext(ctx).Where("refresh_token = ?", refreshToken).First(&ref).Error
	if errRef != nil {
		if errors.Is(errRef, gorm.ErrRecordNotFound) {
			return Pair{}, nil, ErrUnauthorized
		}
		return Pair{}, nil, fmt.Errorf("find token reference: %w", errRef)
	}

	claims, errParse := s.parse(refreshToken)
	if errParse != nil {
		return Pair{}, nil, ErrUnauthorized
	}
	if claims.Type != TypeRefresh {
		return Pair{}, nil, ErrUnauthorized
	}

	user, errUser := s.userBySubject(ctx, claims.Subject)
	if errUser != nil {
		return Pair{}, nil, errUser
	}

	pair, errMint := s.Mint(user)
	if errMint != nil {
		return Pair{}, nil, errMint
	}

	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows := []models.TokenBlacklist{
			{Token: ref.AccessToken},
			{Token: ref.RefreshToken},
		}
		if errBlacklist := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; errBlacklist != nil {
			return fmt.Errorf("blacklist rotated pair: %w", errBlacklist)
		}
		newRef := models.TokenReference{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}
		if errCreate := tx.Create(&newRef).Error; errCreate != nil {
			return fmt.Errorf("persist token reference: %w", errCreate)
		}
		return nil
	})
	if errTx != nil {
		return Pair{}, nil, errTx
	}
	return pair, user, nil
}

// Revoke blacklists a well-formed token at sign-out. The token must decode,
// expired or not; garbage strings are rejected as Unauthorized.
func (s *Service) Revoke(ctx context.Context, tokenStr string) error {
	if _, errParse := s.parseUnverifiedExpiry(tokenStr); errParse != nil {
		return ErrUnauthorized
	}
	row := models.TokenBlacklist{Token: tokenStr}
	if errCreate := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; errCreate != nil {
		return fmt.Errorf("blacklist token: %w", errCreate)
	}
	return nil
}

// SweepExpired deletes reference and blacklist rows whose tokens are past
// their natural expiry. Undecodable blacklist rows are removed too: they can
// never pass a signature check.
func (s *Service) SweepExpired(ctx context.Context) error {
	now := s.now().UTC()

	var refs []models.TokenReference
	if errFind := s.db.WithContext(ctx).Find(&refs).Error; errFind != nil {
		return fmt.Errorf("sweep: list references: %w", errFind)
	}
	for _, ref := range refs {
		exp, errParse := s.parseUnverifiedExpiry(ref.RefreshToken)
		if errParse == nil && exp.After(now) {
			continue
		}
		errDelete := s.db.WithContext(ctx).
			Where("access_token = ? AND refresh_token = ?", ref.AccessToken, ref.RefreshToken).
			Delete(&models.TokenReference{}).Error
		if errDelete != nil {
			return fmt.Errorf("sweep: delete reference: %w", errDelete)
		}
	}

	var revoked []models.TokenBlacklist
	if errFind := s.db.WithContext(ctx).Find(&revoked).Error; errFind != nil {
		return fmt.Errorf("sweep: list blacklist: %w", errFind)
	}
	for _, row := range revoked {
		exp, errParse := s.parseUnverifiedExpiry(row.Token)
		if errParse == nil && exp.After(now) {
			continue
		}
		if errDelete := s.db.WithContext(ctx).Where("token = ?", row.Token).Delete(&models.TokenBlacklist{}).Error; errDelete != nil {
			return fmt.Errorf("sweep: delete blacklist entry: %w", errDelete)
		}
	}
	return nil
}

func (s *Service) sign(subject uuid.UUID, tokenType string, issuedAt, expiresAt time.Time) (string, error) {
	claims := Claims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// parse verifies signature and expiry and requires a subject claim.
func (s *Service) parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return nil, ErrUnauthorized
	}
	if claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

// parseUnverifiedExpiry decodes a token without enforcing expiry and returns
// its exp claim. The signature is still checked.
func (s *Service) parseUnverifiedExpiry(tokenStr string) (time.Time, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil || !parsed.Valid {
		return time.Time{}, ErrUnauthorized
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrUnauthorized
	}
	return claims.ExpiresAt.Time, nil
}

func (s *Service) isBlacklisted(ctx context.Context, tokenStr string) (bool, error) {
	var count int64
	errCount := s.db.WithContext(ctx).Model(&models.TokenBlacklist{}).Where("token = ?", tokenStr).Count(&count).Error
	if errCount != nil {
		return false, fmt.Errorf("check blacklist: %w", errCount)
	}
	return count > 0, nil
}

func (s *Service) userBySubject(ctx context.Context, subject string) (*models.User, error) {
	id, errParse := uuid.Parse(subject)
	if errParse != nil {
		return nil, ErrUnauthorized
	}
	var user models.User
	errFind := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("load user: %w", errFind)
	}
	return &user, nil
}
