package domain

import (
	"errors"
	"time"
)

var ErrEmailInUse = errors.New("email already registered")
var ErrWeakPassword = errors.New("password too weak")
var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrIdentityNotFound = errors.New("identity not found")
var ErrNoActiveSession = errors.New("no active session")

// Identity is the opaque credential-backed principal issued by the identity
// provider. It carries no application data beyond the registration email.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// IdentityRecord is the persisted credential document backing an Identity.
type IdentityRecord struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// SessionState tracks the lifecycle of the process-wide session.
type SessionState string

const (
	// SessionBootstrapping holds until the first identity-provider callback
	// resolves. Entered once at construction, exited exactly once.
	SessionBootstrapping SessionState = "bootstrapping"
	SessionSignedIn      SessionState = "signed_in"
	SessionSignedOut     SessionState = "signed_out"
)

// Session is an immutable snapshot of the current authenticated state.
// Identity and Profile are nil while signed out or bootstrapping.
type Session struct {
	State    SessionState `json:"state"`
	Identity *Identity    `json:"identity,omitempty"`
	Profile  *UserProfile `json:"profile,omitempty"`
}

// SignedIn reports whether the snapshot carries an authenticated identity.
func (s Session) SignedIn() bool {
	return s.State == SessionSignedIn && s.Identity != nil
}
