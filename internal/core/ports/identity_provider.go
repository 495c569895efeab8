package ports

import (
	"context"

	"github.com/planpal/social-system/internal/core/domain"
)

// IdentityChangedFunc receives the new active identity, or nil on sign-out.
type IdentityChangedFunc func(identity *domain.Identity)

// IdentityProvider abstracts the external authentication service. The social
// core never touches credentials or tokens directly; it reacts to identity
// changes delivered through OnIdentityChanged.
type IdentityProvider interface {
	// CreateIdentity registers a new principal. Fails with
	// domain.ErrEmailInUse or domain.ErrWeakPassword.
	CreateIdentity(ctx context.Context, email, password string) (*domain.Identity, error)

	// Authenticate verifies credentials and makes the identity active.
	// Fails with domain.ErrInvalidCredentials.
	Authenticate(ctx context.Context, email, password string) (*domain.Identity, error)

	// Invalidate ends the active session for the given identity. Calling it
	// for an identity that is not active is a no-op.
	Invalidate(ctx context.Context, identityID string) error

	// ChangePassword verifies the current password, then replaces it. Fails
	// with domain.ErrInvalidCredentials or domain.ErrWeakPassword.
	ChangePassword(ctx context.Context, identityID, currentPassword, newPassword string) error

	// Delete permanently removes an identity. Used as the compensating
	// action when the profile write fails right after CreateIdentity.
	Delete(ctx context.Context, identityID string) error

	// OnIdentityChanged registers a listener. The listener is invoked once
	// immediately with the current identity (nil until someone signs in)
	// and again on every future change.
	OnIdentityChanged(fn IdentityChangedFunc)
}
