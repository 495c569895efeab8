package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/planpal/social-system/internal/core/domain"
	"github.com/planpal/social-system/internal/core/ports"
	"github.com/planpal/social-system/internal/metrics"
)

const profileFetchTimeout = 10 * time.Second

// UsernameCache abstracts the lookup cache (Redis) mapping canonical
// usernames to profile ids.
type UsernameCache interface {
	Lookup(ctx context.Context, usernameLower string) (id string, ok bool, err error)
	Store(ctx context.Context, usernameLower, id string) error
	Invalidate(ctx context.Context, usernameLower string) error
}

// SessionService owns the process-wide session: the active identity plus a
// cached copy of its UserProfile. The canonical state transition always
// happens inside the identity-provider callback; SignIn/SignUp merely
// trigger it and then reconcile the cached profile.
type SessionService struct {
	provider ports.IdentityProvider
	profiles ports.ProfileRepository
	cache    UsernameCache
	log      zerolog.Logger

	mu           sync.Mutex
	state        domain.SessionState
	identity     *domain.Identity
	profile      *domain.UserProfile
	observers    []ports.SessionObserver
	bootstrapped bool
}

// NewSessionService constructs the session manager and subscribes to the
// provider. The provider's immediate callback exits the bootstrapping state.
func NewSessionService(provider ports.IdentityProvider, profiles ports.ProfileRepository, cache UsernameCache, log zerolog.Logger) *SessionService {
	s := &SessionService{
		provider: provider,
		profiles: profiles,
		cache:    cache,
		log:      log,
		state:    domain.SessionBootstrapping,
	}
	provider.OnIdentityChanged(s.handleIdentityChanged)
	return s
}

// handleIdentityChanged is the single place session state transitions.
func (s *SessionService) handleIdentityChanged(identity *domain.Identity) {
	var profile *domain.UserProfile
	if identity != nil {
		ctx, cancel := context.WithTimeout(context.Background(), profileFetchTimeout)
		p, err := s.profiles.Get(ctx, identity.ID)
		cancel()
		switch {
		case err == nil:
			profile = p
		case errors.Is(err, domain.ErrProfileNotFound):
			// Sign-up creates the identity before the profile document, so
			// the first callback can land in this window. SignUp adopts the
			// profile right after writing it.
			s.log.Debug().Str("identity_id", identity.ID).Msg("no profile yet for identity")
		default:
			s.log.Error().Err(err).Str("identity_id", identity.ID).Msg("profile fetch failed in identity callback")
		}
	}

	s.mu.Lock()
	s.bootstrapped = true
	s.identity = identity
	s.profile = profile
	if identity != nil {
		s.state = domain.SessionSignedIn
	} else {
		s.state = domain.SessionSignedOut
	}
	snapshot := s.snapshotLocked()
	observers := append([]ports.SessionObserver(nil), s.observers...)
	s.mu.Unlock()

	for _, fn := range observers {
		fn(snapshot)
	}
}

// SignUp creates a new identity, then the matching profile document with an
// empty friends relation. If the profile write fails, the freshly created
// identity is deleted as a compensating action rather than left orphaned.
func (s *SessionService) SignUp(ctx context.Context, email, password, username, phoneNumber string) (domain.Session, error) {
	lower := domain.NormalizeUsername(username)
	if lower == "" {
		return s.Current(), domain.ErrInvalidUsername
	}

	// Uniqueness is enforced by lookup-before-write, matching the store's
	// lack of a username constraint.
	if _, err := s.profiles.FindByUsername(ctx, lower); err == nil {
		return s.Current(), domain.ErrUsernameTaken
	} else if !errors.Is(err, domain.ErrProfileNotFound) {
		return s.Current(), fmt.Errorf("username check: %w", err)
	}

	identity, err := s.provider.CreateIdentity(ctx, email, password)
	if err != nil {
		if errors.Is(err, domain.ErrEmailInUse) {
			metrics.SignUpsTotal.WithLabelValues("conflict").Inc()
		} else {
			metrics.SignUpsTotal.WithLabelValues("error").Inc()
		}
		return s.Current(), err
	}

	now := time.Now().UTC()
	profile := &domain.UserProfile{
		ID:            identity.ID,
		Email:         identity.Email,
		Username:      username,
		UsernameLower: lower,
		PhoneNumber:   phoneNumber,
		Friends:       []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.profiles.Create(ctx, profile); err != nil {
		if delErr := s.provider.Delete(ctx, identity.ID); delErr != nil {
			s.log.Error().Err(delErr).Str("identity_id", identity.ID).Msg("compensating identity delete failed, identity orphaned")
		}
		return s.Current(), fmt.Errorf("create profile: %w", err)
	}

	if err := s.cache.Store(ctx, lower, identity.ID); err != nil {
		s.log.Warn().Err(err).Str("username", lower).Msg("username cache store failed")
	}

	metrics.SignUpsTotal.WithLabelValues("ok").Inc()
	s.log.Info().Str("identity_id", identity.ID).Str("username", username).Msg("user signed up")
	return s.adoptProfile(identity, profile), nil
}

// SignIn authenticates and fetches the matching profile. A valid identity
// without a profile document is a data-integrity anomaly surfaced as
// domain.ErrProfileMissing.
func (s *SessionService) SignIn(ctx context.Context, email, password string) (domain.Session, error) {
	identity, err := s.provider.Authenticate(ctx, email, password)
	if err != nil {
		metrics.SignInsTotal.WithLabelValues("rejected").Inc()
		return s.Current(), err
	}
	metrics.SignInsTotal.WithLabelValues("ok").Inc()

	profile, err := s.profiles.Get(ctx, identity.ID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			return s.Current(), domain.ErrProfileMissing
		}
		return s.Current(), fmt.Errorf("fetch profile: %w", err)
	}

	s.log.Info().Str("identity_id", identity.ID).Msg("user signed in")
	return s.adoptProfile(identity, profile), nil
}

// SignOut invalidates the session of identityID only. The provider no-ops
// when that identity is not the active one, so a caller can never end
// someone else's session.
func (s *SessionService) SignOut(ctx context.Context, identityID string) error {
	if identityID == "" {
		return nil
	}
	if err := s.provider.Invalidate(ctx, identityID); err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	s.log.Info().Str("identity_id", identityID).Msg("user signed out")
	return nil
}

// ChangePassword re-authenticates with the current password before the
// provider accepts the new one.
func (s *SessionService) ChangePassword(ctx context.Context, identityID, currentPassword, newPassword string) error {
	if err := s.provider.ChangePassword(ctx, identityID, currentPassword, newPassword); err != nil {
		return err
	}
	s.log.Info().Str("identity_id", identityID).Msg("password changed")
	return nil
}

// Observe registers fn and invokes it once immediately with the current
// snapshot. Future invocations arrive on the provider's callback goroutine.
func (s *SessionService) Observe(fn ports.SessionObserver) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	fn(snapshot)
}

// Current returns the session snapshot.
func (s *SessionService) Current() domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// RefreshProfile re-fetches the profile for the active identity and replaces
// the cached copy. No-op while signed out.
func (s *SessionService) RefreshProfile(ctx context.Context) (domain.Session, error) {
	s.mu.Lock()
	identity := s.identity
	s.mu.Unlock()

	if identity == nil {
		return s.Current(), nil
	}

	profile, err := s.profiles.Get(ctx, identity.ID)
	if err != nil {
		return s.Current(), fmt.Errorf("refresh profile: %w", err)
	}
	return s.adoptProfile(identity, profile), nil
}

// SessionFor returns a snapshot scoped to identityID, regardless of which
// identity the process-wide session currently tracks. When identityID is the
// active identity the fetched profile also refreshes the cached copy.
func (s *SessionService) SessionFor(ctx context.Context, identityID string) (domain.Session, error) {
	profile, err := s.profiles.Get(ctx, identityID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			return domain.Session{State: domain.SessionSignedOut}, domain.ErrProfileMissing
		}
		return domain.Session{State: domain.SessionSignedOut}, fmt.Errorf("fetch profile: %w", err)
	}

	identity := &domain.Identity{ID: identityID, Email: profile.Email}
	if s.isActive(identityID) {
		return s.adoptProfile(identity, profile), nil
	}
	return domain.Session{State: domain.SessionSignedIn, Identity: identity, Profile: profile.Clone()}, nil
}

// UpdateProfileFor merge-patches the given fields into identityID's profile,
// preserving everything unspecified, the extension bag included. The target
// is always the caller's own profile; the process-wide session is only
// refreshed when it happens to track the same identity.
func (s *SessionService) UpdateProfileFor(ctx context.Context, identityID string, update ports.ProfileUpdate) (*domain.UserProfile, error) {
	current, err := s.profiles.Get(ctx, identityID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			return nil, domain.ErrProfileMissing
		}
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	fields := map[string]any{}
	oldLower := current.UsernameLower
	var newLower string
	if update.Username != nil {
		newLower = domain.NormalizeUsername(*update.Username)
		if newLower == "" {
			return nil, domain.ErrInvalidUsername
		}
		if newLower != oldLower {
			if existing, err := s.profiles.FindByUsername(ctx, newLower); err == nil && existing.ID != identityID {
				return nil, domain.ErrUsernameTaken
			} else if err != nil && !errors.Is(err, domain.ErrProfileNotFound) {
				return nil, fmt.Errorf("username check: %w", err)
			}
		}
		fields["username"] = *update.Username
		fields["username_lower"] = newLower
	}
	if update.PhoneNumber != nil {
		fields["phone_number"] = *update.PhoneNumber
	}
	if update.ProfilePicture != nil {
		fields["profile_picture"] = *update.ProfilePicture
	}
	if len(fields) == 0 {
		return current, nil
	}
	fields["updated_at"] = time.Now().UTC()

	if err := s.profiles.Merge(ctx, identityID, fields); err != nil {
		return nil, fmt.Errorf("merge profile: %w", err)
	}

	if update.Username != nil && newLower != oldLower {
		if oldLower != "" {
			if err := s.cache.Invalidate(ctx, oldLower); err != nil {
				s.log.Warn().Err(err).Str("username", oldLower).Msg("username cache invalidate failed")
			}
		}
		if err := s.cache.Store(ctx, newLower, identityID); err != nil {
			s.log.Warn().Err(err).Str("username", newLower).Msg("username cache store failed")
		}
	}

	profile, err := s.profiles.Get(ctx, identityID)
	if err != nil {
		return nil, fmt.Errorf("reload profile: %w", err)
	}
	if s.isActive(identityID) {
		s.adoptProfile(&domain.Identity{ID: identityID, Email: profile.Email}, profile)
	}
	return profile, nil
}

func (s *SessionService) isActive(identityID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity != nil && s.identity.ID == identityID
}

// adoptProfile replaces the cached profile for identity without waiting for
// another provider callback, then notifies observers.
func (s *SessionService) adoptProfile(identity *domain.Identity, profile *domain.UserProfile) domain.Session {
	s.mu.Lock()
	if s.identity == nil || s.identity.ID != identity.ID {
		// A concurrent sign-out or identity switch won the race; keep the
		// canonical listener-driven state.
		snapshot := s.snapshotLocked()
		s.mu.Unlock()
		return snapshot
	}
	s.profile = profile
	snapshot := s.snapshotLocked()
	observers := append([]ports.SessionObserver(nil), s.observers...)
	s.mu.Unlock()

	for _, fn := range observers {
		fn(snapshot)
	}
	return snapshot
}

// snapshotLocked builds an isolated snapshot: the profile is cloned so an
// observer mutating it cannot corrupt the cached copy.
func (s *SessionService) snapshotLocked() domain.Session {
	return domain.Session{
		State:    s.state,
		Identity: s.identity,
		Profile:  s.profile.Clone(),
	}
}
