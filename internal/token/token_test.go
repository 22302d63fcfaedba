package token

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/config"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/models"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	errMigrate := conn.AutoMigrate(&models.User{}, &models.TokenReference{}, &models.TokenBlacklist{})
	if errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	svc := NewService(conn, config.JWTConfig{
		Secret:        "test-secret",
		AccessExpiry:  24 * time.Hour,
		RefreshExpiry: 30 * 24 * time.Hour,
	})
	return svc, conn
}

func newTestUser(t *testing.T, conn *gorm.DB) *models.User {
	t.Helper()
	user := models.User{
		ID:             uuid.New(),
		Email:          fmt.Sprintf("%s@example.com", uuid.NewString()[:8]),
		Username:       uuid.NewString()[:8],
		HashedPassword: "not-a-real-hash",
		IsActive:       true,
	}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	return &user
}

func TestIssueThenValidate_SameSubject(t *testing.T) {
	svc, conn := newTestService(t)
	user := newTestUser(t, conn)

	pair, errIssue := svc.Issue(context.Background(), conn, user)
	if errIssue != nil {
		t.Fatalf("issue: %v", errIssue)
	}

	got, claims, errValidate := svc.Validate(context.Background(), pair.AccessToken)
	if errValidate != nil {
		t.Fatalf("validate: %v", errValidate)
	}
	if got.ID != user.ID {
		t.Fatalf("expected subject %s, got %s", user.ID, got.ID)
	}
	if claims.Type != TypeAccess {
		t.Fatalf("expected access claims, got type %q", claims.Type)
	}

	var refCount int64
	if errCount := conn.Model(&models.TokenReference{}).Count(&refCount).Error; errCount != nil {
		t.Fatalf("count references: %v", errCount)
	}
	if refCount != 1 {
		t.Fatalf("expected 1 token reference, got %d", refCount)
	}
}

func TestValidate_RejectsRefreshTokenAsAccess(t *testing.T) {
	svc, conn := newTestService(t)
	user := newTestUser(t, conn)

	pair, errIssue := svc.Issue(context.Background(), conn, user)
	if errIssue != nil {
		t.Fatalf("issue: %v", errIssue)
	}
	if _, _, errValidate := svc.Validate(context.Background(), pair.RefreshToken); !errors.Is(errValidate, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", errValidate)
	}
}

func TestValidate_RejectsExpiredToken(t *testing.T) {
	svc, conn := newTestService(t)
	user := newTestUser(t, conn)

	pair, errIssue := svc.Issue(context.Background(), conn, user)
	if errIssue != nil {
		t.Fatalf("issue: %v", errIssue)
	}

	svc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	if _, _, errValidate := svc.Validate(context.Background(), pair.AccessToken); !errors.Is(errValidate, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for expired token, got %v", errValidate)
	}
}

func TestValidate_RejectsGarbageAndForeignSignature(t *testing.T) {
	svc, conn := newTestService(t)
	user := newTestUser(t, conn)

	if _, _, errValidate := svc.Validate(context.Background(), "not.a.token"); !errors.Is(errValidate, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for garbage, got %v", errValidate)
	}

	other := NewService(conn, config.JWTConfig{Secret: "other-secret", AccessExpiry: time.Hour, RefreshExpiry: time.Hour})
	pair, errMint := other.Mint(user)
	if errMint != nil {
		t.Fatalf("mint: %v", errMint)
	}
	if _, _, errValidate := svc.Validate(context.Background(), pair.AccessToken); !errors.Is(errValidate, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for foreign signature, got %v", errValidate)
	}
}

func TestValidate_RejectsMissingUser(t *testing.T) {
	svc, conn := newTestService(t)
	user := newTestUser(t, conn)

	pair, errIssue := svc.Issue(context.Background(), conn, user)
	if errIssue != nil {
		t.Fatalf("issue: %v", errIssue)
	}
	if errDelete := conn.Delete(&models.User{}, "id = ?", user.ID).Error; errDelete != nil {
		t.Fatalf("delete user: %v", errDelete)
	}
	if _, _, errValidate := svc.Validate(context.Background(), pair.AccessToken); !errors.Is(errValidate, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for missing user, got %v", errValidate)
	}
}

func TestRefresh_RotatesExactlyOnce(t *testing.T) {
	svc, conn := newTestService(t)
	user := newTestUser(t, conn)

	pair, errIssue := svc.Issue(context.Background(), conn, user)
	if errIssue != nil {
		t.Fatalf("issue: %v", errIssue)
	}

	newPair, gotUser, errRefresh := svc.Refresh(context.Background(), pair.RefreshToken)
	if errRefresh != nil {
		t.Fatalf("refresh: %v", errRefresh)
	}
	if gotUser.ID != user.ID {
		t.Fatalf("expected user %s, got %s", user.ID, gotUser.ID)
	}
	if newPair.AccessToken == pair.AccessToken || newPair.RefreshToken == pair.RefreshToken {
		t.Fatalf("expected a fresh pair after rotation")
	}

	// Replay of the rotated refresh token must be rejected.
	if _, _, errReplay := svc.Refresh(context.Background(), pair.RefreshToken); !errors.Is(errReplay, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized on replay, got %v", errReplay)
	}

	// The new pair stays usable.
	if _, _, errValidate := svc.Validate(context.Background(), newPair.AccessToken); errValidate != nil {
		t.Fatalf("validate new access token: %v", errValidate)
	}
}

func TestRefresh_InvalidatesOldAccessToken(t *testing.T) {
	svc, conn := newTestService(t)
	user := newTestUser(t, conn)

	pair, errIssue := svc.Issue(context.Background(), conn, user)
	if errIssue != nil {
		t.Fatalf("issue: %v", errIssue)
	}
	if _, _, errRefresh := svc.Refresh(context.Background(), pair.RefreshToken); errRefresh != nil {
		t.Fatalf("refresh: %v", errRefresh)
	}
	if _, _, errValidate := svc.Validate(context.Background(), pair.AccessToken); !errors.Is(errValidate, ErrUnauthorized) {
		t.Fatalf("expected old access token to be rejected after rotation, got %v", errValidate)
	}
}

func TestRefresh_RejectsUnissuedToken(t *testing.T) {
	svc, conn := newTestService(t)
	user := newTestUser(t, conn)

	// Minted but never persisted: no TokenReference row exists.
	pair, errMint := svc.Mint(user)
	if errMint != nil {
		t.Fatalf("mint: %v", errMint)
	}
	if _, _, errRefresh := svc.Refresh(context.Background(), pair.RefreshToken); !errors.Is(errRefresh, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unissued token, got %v", errRefresh)
	}
}

func TestRefresh_RejectsAccessTokenInRefreshSlot(t *testing.T) {
	svc, conn := newTestService(t)
	user := newTestUser(t, conn)

	pair, errIssue := svc.Issue(context.Background(), conn, user)
	if errIssue != nil {
		t.Fatalf("issue: %v", errIssue)
	}
	// Forge a reference row naming the access token in the refresh column.
	ref := models.TokenReference{AccessToken: pair.AccessToken, RefreshToken: pair.AccessToken}
	if errCreate := conn.Create(&ref).Error; errCreate != nil {
		t.Fatalf("create forged reference: %v", errCreate)
	}
	if _, _, errRefresh := svc.Refresh(context.Background(), pair.AccessToken); !errors.Is(errRefresh, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for access token, got %v", errRefresh)
	}
}

func TestRevoke_BlacklistsToken(t *testing.T) {
	svc, conn := newTestService(t)
	user := newTestUser(t, conn)

	pair, errIssue := svc.Issue(context.Background(), conn, user)
	if errIssue != nil {
		t.Fatalf("issue: %v", errIssue)
	}
	if errRevoke := svc.Revoke(context.Background(), pair.AccessToken); errRevoke != nil {
		t.Fatalf("revoke: %v", errRevoke)
	}
	if _, _, errValidate := svc.Validate(context.Background(), pair.AccessToken); !errors.Is(errValidate, ErrUnauthorized) {
		t.Fatalf("expected revoked token to be rejected, got %v", errValidate)
	}

	// Revoking twice stays idempotent.
	if errRevoke := svc.Revoke(context.Background(), pair.AccessToken); errRevoke != nil {
		t.Fatalf("second revoke: %v", errRevoke)
	}
}

func TestRevoke_RejectsUndecodableToken(t *testing.T) {
	svc, _ := newTestService(t)
	if errRevoke := svc.Revoke(context.Background(), "garbage"); !errors.Is(errRevoke, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", errRevoke)
	}
}

func TestSweepExpired_RemovesDeadRows(t *testing.T) {
	svc, conn := newTestService(t)
	user := newTestUser(t, conn)

	live, errIssue := svc.Issue(context.Background(), conn, user)
	if errIssue != nil {
		t.Fatalf("issue live pair: %v", errIssue)
	}

	short := NewService(conn, config.JWTConfig{Secret: "test-secret", AccessExpiry: time.Minute, RefreshExpiry: time.Minute})
	dead, errIssue := short.Issue(context.Background(), conn, user)
	if errIssue != nil {
		t.Fatalf("issue dead pair: %v", errIssue)
	}
	if errRevoke := short.Revoke(context.Background(), dead.AccessToken); errRevoke != nil {
		t.Fatalf("revoke dead access: %v", errRevoke)
	}

	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if errSweep := svc.SweepExpired(context.Background()); errSweep != nil {
		t.Fatalf("sweep: %v", errSweep)
	}

	var refs []models.TokenReference
	if errFind := conn.Find(&refs).Error; errFind != nil {
		t.Fatalf("list references: %v", errFind)
	}
	if len(refs) != 1 || refs[0].RefreshToken != live.RefreshToken {
		t.Fatalf("expected only the live reference to survive, got %d rows", len(refs))
	}

	var blacklisted int64
	if errCount := conn.Model(&models.TokenBlacklist{}).Count(&blacklisted).Error; errCount != nil {
		t.Fatalf("count blacklist: %v", errCount)
	}
	if blacklisted != 0 {
		t.Fatalf("expected expired blacklist entries to be removed, got %d", blacklisted)
	}
}
