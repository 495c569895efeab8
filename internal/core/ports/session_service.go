package ports

import (
	"context"

	"github.com/planpal/social-system/internal/core/domain"
)

// ProfileUpdate names the profile fields a caller may merge-patch. Nil
// pointers leave the corresponding field untouched.
type ProfileUpdate struct {
	Username       *string
	PhoneNumber    *string
	ProfilePicture *string
}

// SessionObserver receives session snapshots: once immediately on
// registration, then on every identity change. Invocations happen on
// whatever goroutine the provider's notification arrives on.
type SessionObserver func(session domain.Session)

// SessionService bridges the identity provider's asynchronous sign-in state
// to the locally cached UserProfile.
//
// Current and Observe expose the process-wide session (the bootstrapping
// state machine). The *For operations are keyed by an explicit identity id:
// HTTP handlers must use them with the id from the caller's token, never the
// process-wide state, so a request is always scoped to its own principal.
type SessionService interface {
	SignUp(ctx context.Context, email, password, username, phoneNumber string) (domain.Session, error)
	SignIn(ctx context.Context, email, password string) (domain.Session, error)
	// SignOut invalidates the session of identityID only. Idempotent: signing
	// out an identity that is not active is a no-op success.
	SignOut(ctx context.Context, identityID string) error
	Observe(fn SessionObserver)
	Current() domain.Session
	// SessionFor returns a snapshot scoped to identityID, fetching its
	// profile from the store. Fails with domain.ErrProfileMissing when the
	// identity has no profile document.
	SessionFor(ctx context.Context, identityID string) (domain.Session, error)
	// UpdateProfileFor merge-patches the given fields into identityID's
	// profile. Unspecified fields, the extension bag included, survive.
	UpdateProfileFor(ctx context.Context, identityID string, update ProfileUpdate) (*domain.UserProfile, error)
	// ChangePassword re-authenticates with the current password before
	// accepting the new one. Fails with domain.ErrInvalidCredentials or
	// domain.ErrWeakPassword.
	ChangePassword(ctx context.Context, identityID, currentPassword, newPassword string) error
}
