// Package identity implements ports.IdentityProvider on top of a Mongo-backed
// credential store. It owns passwords and sessions; application data lives in
// the profile document, never here.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	passwordvalidator "github.com/wagslane/go-password-validator"
	"golang.org/x/crypto/bcrypt"

	"github.com/planpal/social-system/internal/core/domain"
	"github.com/planpal/social-system/internal/core/ports"
)

// defaultMinEntropy is the password strength floor in entropy bits. 50 bits
// roughly rejects short dictionary words while admitting normal passphrases.
const defaultMinEntropy = 50

// CredentialStore persists credential records. Implemented by the Mongo
// identity repository.
type CredentialStore interface {
	Create(ctx context.Context, rec *domain.IdentityRecord) error
	FindByEmail(ctx context.Context, email string) (*domain.IdentityRecord, error)
	FindByID(ctx context.Context, id string) (*domain.IdentityRecord, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
}

// Provider is the built-in identity provider. It tracks one active identity
// at a time and fans identity changes out to registered listeners, invoking
// each listener once immediately on registration (asynchronously, so callers
// observe the bootstrapping state before the first delivery).
type Provider struct {
	store      CredentialStore
	minEntropy float64
	log        zerolog.Logger

	mu        sync.Mutex
	current   *domain.Identity
	listeners []ports.IdentityChangedFunc
}

func NewProvider(store CredentialStore, minEntropy float64, log zerolog.Logger) *Provider {
	if minEntropy <= 0 {
		minEntropy = defaultMinEntropy
	}
	return &Provider{store: store, minEntropy: minEntropy, log: log}
}

// CreateIdentity registers a new principal and makes it the active identity,
// mirroring the register-then-signed-in behaviour mobile clients expect.
func (p *Provider) CreateIdentity(ctx context.Context, email, password string) (*domain.Identity, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, domain.ErrInvalidCredentials
	}

	if err := passwordvalidator.Validate(password, p.minEntropy); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrWeakPassword, err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	rec := &domain.IdentityRecord{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := p.store.Create(ctx, rec); err != nil {
		return nil, err
	}

	identity := &domain.Identity{ID: rec.ID, Email: rec.Email}
	p.setCurrent(identity)
	return identity, nil
}

// Authenticate verifies credentials and makes the identity active. Lookup
// misses and bad passwords collapse into ErrInvalidCredentials so callers
// cannot probe which emails are registered.
func (p *Provider) Authenticate(ctx context.Context, email, password string) (*domain.Identity, error) {
	rec, err := p.store.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}

	identity := &domain.Identity{ID: rec.ID, Email: rec.Email}
	p.setCurrent(identity)
	return identity, nil
}

// ChangePassword re-authenticates with the current password, then replaces
// the stored hash. The new password passes the same entropy gate as sign-up.
func (p *Provider) ChangePassword(ctx context.Context, identityID, currentPassword, newPassword string) error {
	rec, err := p.store.FindByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			return domain.ErrInvalidCredentials
		}
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(currentPassword)) != nil {
		return domain.ErrInvalidCredentials
	}

	if err := passwordvalidator.Validate(newPassword, p.minEntropy); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrWeakPassword, err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := p.store.UpdatePassword(ctx, identityID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	p.log.Info().Str("identity_id", identityID).Msg("password changed")
	return nil
}

// Invalidate ends the active session for identityID. A mismatched or absent
// active identity makes this a no-op.
func (p *Provider) Invalidate(_ context.Context, identityID string) error {
	p.mu.Lock()
	if p.current == nil || p.current.ID != identityID {
		p.mu.Unlock()
		return nil
	}
	p.current = nil
	listeners := append([]ports.IdentityChangedFunc(nil), p.listeners...)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(nil)
	}
	return nil
}

// Delete permanently removes the credential record. If the identity is
// currently active its session is invalidated first.
func (p *Provider) Delete(ctx context.Context, identityID string) error {
	if err := p.Invalidate(ctx, identityID); err != nil {
		return err
	}
	return p.store.Delete(ctx, identityID)
}

// OnIdentityChanged registers fn and schedules an immediate delivery of the
// current identity on a separate goroutine.
func (p *Provider) OnIdentityChanged(fn ports.IdentityChangedFunc) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	current := p.current
	p.mu.Unlock()

	go fn(current)
}

func (p *Provider) setCurrent(identity *domain.Identity) {
	p.mu.Lock()
	p.current = identity
	listeners := append([]ports.IdentityChangedFunc(nil), p.listeners...)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(identity)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
