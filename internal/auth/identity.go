// Package auth resolves bearer tokens into request identities and guards
// routes with gin middleware. Resolution is read-only: it never touches
// last-sign-in or any other user state.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/models"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/token"
)

// ErrForbidden marks a valid identity denied by policy (unconfirmed email,
// inactive account, missing AI access).
var ErrForbidden = errors.New("forbidden")

// Identity is the authenticated caller attached to downstream operations.
type Identity struct {
	ID          uuid.UUID
	Email       string
	Username    string
	Name        string
	IsActive    bool
	IsSuperuser bool
	HasAIAccess bool

	CreatedAt        time.Time
	LastSignInAt     *time.Time
	EmailConfirmedAt *time.Time
}

// Authenticator wraps the token service to authorize requests.
type Authenticator struct {
	tokens *token.Service
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(tokens *token.Service) *Authenticator {
	return &Authenticator{tokens: tokens}
}

// Authenticate resolves a bearer token into an Identity or fails with
// token.ErrUnauthorized.
func (a *Authenticator) Authenticate(ctx context.Context, bearer string) (Identity, error) {
	user, _, errValidate := a.tokens.Validate(ctx, bearer)
	if errValidate != nil {
		return Identity{}, errValidate
	}
	return identityFromUser(user), nil
}

// AuthenticateActive is the stricter variant: the identity must have a
// confirmed email address.
func (a *Authenticator) AuthenticateActive(ctx context.Context, bearer string) (Identity, error) {
	identity, errAuth := a.Authenticate(ctx, bearer)
	if errAuth != nil {
		return Identity{}, errAuth
	}
	if identity.EmailConfirmedAt == nil {
		return Identity{}, ErrForbidden
	}
	return identity, nil
}

func identityFromUser(user *models.User) Identity {
	return Identity{
		ID:               user.ID,
		Email:            user.Email,
		Username:         user.Username,
		Name:             user.Name,
		IsActive:         user.IsActive,
		IsSuperuser:      user.IsSuperuser,
		HasAIAccess:      user.HasAIAccess,
		CreatedAt:        user.CreatedAt,
		LastSignInAt:     user.LastSignInAt,
		EmailConfirmedAt: user.EmailConfirmedAt,
	}
}
