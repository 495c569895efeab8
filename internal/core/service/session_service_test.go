package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/planpal/social-system/internal/core/domain"
	"github.com/planpal/social-system/internal/core/ports"
)

// fakeProvider is a deterministic in-memory IdentityProvider. Unlike the real
// provider it does not deliver the initial listener callback on registration;
// tests drive it explicitly with fire, mirroring the window before the
// provider's asynchronous first delivery.
type fakeProvider struct {
	mu        sync.Mutex
	listeners []ports.IdentityChangedFunc
	creds     map[string]fakeCred // email → credentials
	current   *domain.Identity
	createErr error
	deleted   []string
}

type fakeCred struct {
	id       string
	password string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{creds: make(map[string]fakeCred)}
}

func (p *fakeProvider) seed(id, email, password string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.creds[email] = fakeCred{id: id, password: password}
}

func (p *fakeProvider) fire(identity *domain.Identity) {
	p.mu.Lock()
	p.current = identity
	listeners := append([]ports.IdentityChangedFunc(nil), p.listeners...)
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(identity)
	}
}

func (p *fakeProvider) CreateIdentity(_ context.Context, email, password string) (*domain.Identity, error) {
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.mu.Lock()
	if _, exists := p.creds[email]; exists {
		p.mu.Unlock()
		return nil, domain.ErrEmailInUse
	}
	id := "id-" + email
	p.creds[email] = fakeCred{id: id, password: password}
	p.mu.Unlock()

	identity := &domain.Identity{ID: id, Email: email}
	p.fire(identity)
	return identity, nil
}

func (p *fakeProvider) Authenticate(_ context.Context, email, password string) (*domain.Identity, error) {
	p.mu.Lock()
	cred, ok := p.creds[email]
	p.mu.Unlock()
	if !ok || cred.password != password {
		return nil, domain.ErrInvalidCredentials
	}
	identity := &domain.Identity{ID: cred.id, Email: email}
	p.fire(identity)
	return identity, nil
}

func (p *fakeProvider) ChangePassword(_ context.Context, identityID, currentPassword, newPassword string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for email, cred := range p.creds {
		if cred.id == identityID {
			if cred.password != currentPassword {
				return domain.ErrInvalidCredentials
			}
			p.creds[email] = fakeCred{id: cred.id, password: newPassword}
			return nil
		}
	}
	return domain.ErrInvalidCredentials
}

func (p *fakeProvider) Invalidate(_ context.Context, identityID string) error {
	p.mu.Lock()
	active := p.current != nil && p.current.ID == identityID
	p.mu.Unlock()
	if active {
		p.fire(nil)
	}
	return nil
}

func (p *fakeProvider) Delete(ctx context.Context, identityID string) error {
	if err := p.Invalidate(ctx, identityID); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for email, cred := range p.creds {
		if cred.id == identityID {
			delete(p.creds, email)
		}
	}
	p.deleted = append(p.deleted, identityID)
	return nil
}

func (p *fakeProvider) OnIdentityChanged(fn ports.IdentityChangedFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

type sessionRecorder struct {
	mu     sync.Mutex
	states []domain.SessionState
}

func (r *sessionRecorder) observe(s domain.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s.State)
}

func (r *sessionRecorder) seen() []domain.SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.SessionState(nil), r.states...)
}

func newSessionFixture() (*SessionService, *fakeProvider, *stubProfileRepo, *stubUsernameCache) {
	provider := newFakeProvider()
	repo := newStubProfileRepo()
	cache := newStubUsernameCache()
	svc := NewSessionService(provider, repo, cache, discardLogger)
	return svc, provider, repo, cache
}

// ---------------------------------------------------------------------------
// Bootstrap
// ---------------------------------------------------------------------------

func TestSessionService_ObserverSeesBootstrappingBeforeResolution(t *testing.T) {
	svc, provider, repo, _ := newSessionFixture()
	repo.seed("u1", "alice")
	provider.seed("u1", "alice@example.com", "correct horse battery")

	rec := &sessionRecorder{}
	svc.Observe(rec.observe)

	// Provider has not delivered its initial callback yet.
	if got := svc.Current(); got.State != domain.SessionBootstrapping {
		t.Fatalf("expected bootstrapping before provider callback, got %q", got.State)
	}

	provider.fire(nil)
	if got := svc.Current(); got.State != domain.SessionSignedOut {
		t.Fatalf("expected signed_out after nil callback, got %q", got.State)
	}

	if _, err := svc.SignIn(context.Background(), "alice@example.com", "correct horse battery"); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	states := rec.seen()
	if len(states) < 3 {
		t.Fatalf("expected at least 3 observations, got %v", states)
	}
	if states[0] != domain.SessionBootstrapping {
		t.Errorf("first observation must be bootstrapping, got %q", states[0])
	}
	if states[1] != domain.SessionSignedOut {
		t.Errorf("second observation must be signed_out, got %q", states[1])
	}
	if last := states[len(states)-1]; last != domain.SessionSignedIn {
		t.Errorf("final observation must be signed_in, got %q", last)
	}
}

func TestSessionService_ObserveDeliversImmediateSnapshot(t *testing.T) {
	svc, _, _, _ := newSessionFixture()

	var got *domain.Session
	svc.Observe(func(s domain.Session) {
		if got == nil {
			got = &s
		}
	})
	if got == nil {
		t.Fatal("observer not invoked on registration")
	}
	if got.State != domain.SessionBootstrapping || got.Identity != nil {
		t.Fatalf("expected empty bootstrapping snapshot, got %+v", got)
	}
}

// ---------------------------------------------------------------------------
// SignUp
// ---------------------------------------------------------------------------

func TestSessionService_SignUp_CreatesProfileWithEmptyFriends(t *testing.T) {
	svc, _, repo, cache := newSessionFixture()

	session, err := svc.SignUp(context.Background(), "alice@example.com", "correct horse battery", "Alice", "+15550001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.State != domain.SessionSignedIn {
		t.Fatalf("expected signed_in, got %q", session.State)
	}
	if session.Profile == nil {
		t.Fatal("expected adopted profile on session")
	}
	if session.Profile.Friends == nil || len(session.Profile.Friends) != 0 {
		t.Errorf("new profile must start with an empty (non-nil) friends list, got %v", session.Profile.Friends)
	}
	if session.Profile.UsernameLower != "alice" {
		t.Errorf("expected canonical username alice, got %q", session.Profile.UsernameLower)
	}

	stored, err := repo.Get(context.Background(), session.Identity.ID)
	if err != nil {
		t.Fatalf("profile not persisted: %v", err)
	}
	if stored.Email != "alice@example.com" {
		t.Errorf("unexpected stored email %q", stored.Email)
	}
	if id, ok := cache.entries["alice"]; !ok || id != session.Identity.ID {
		t.Errorf("username cache not primed: %v", cache.entries)
	}
}

func TestSessionService_SignUp_UsernameTaken(t *testing.T) {
	svc, _, repo, _ := newSessionFixture()
	repo.seed("u1", "Alice")

	if _, err := svc.SignUp(context.Background(), "other@example.com", "correct horse battery", "ALICE", ""); !errors.Is(err, domain.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestSessionService_SignUp_EmailInUse(t *testing.T) {
	svc, provider, _, _ := newSessionFixture()
	provider.seed("u1", "alice@example.com", "pw")

	if _, err := svc.SignUp(context.Background(), "alice@example.com", "correct horse battery", "newalice", ""); !errors.Is(err, domain.ErrEmailInUse) {
		t.Fatalf("expected ErrEmailInUse, got %v", err)
	}
}

func TestSessionService_SignUp_InvalidUsername(t *testing.T) {
	svc, _, _, _ := newSessionFixture()

	if _, err := svc.SignUp(context.Background(), "a@example.com", "correct horse battery", "   ", ""); !errors.Is(err, domain.ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
}

func TestSessionService_SignUp_ProfileWriteFailureDeletesIdentity(t *testing.T) {
	svc, provider, repo, _ := newSessionFixture()
	repo.createErr = errors.New("store unavailable")

	_, err := svc.SignUp(context.Background(), "alice@example.com", "correct horse battery", "alice", "")
	if err == nil {
		t.Fatal("expected error when profile write fails")
	}
	if len(provider.deleted) != 1 || provider.deleted[0] != "id-alice@example.com" {
		t.Fatalf("expected compensating identity delete, got %v", provider.deleted)
	}
	if got := svc.Current(); got.State != domain.SessionSignedOut {
		t.Fatalf("expected signed_out after rollback, got %q", got.State)
	}
}

// ---------------------------------------------------------------------------
// SignIn / SignOut
// ---------------------------------------------------------------------------

func TestSessionService_SignIn_Success(t *testing.T) {
	svc, provider, repo, _ := newSessionFixture()
	repo.seed("u1", "alice")
	provider.seed("u1", "alice@example.com", "correct horse battery")

	session, err := svc.SignIn(context.Background(), "alice@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.State != domain.SessionSignedIn {
		t.Fatalf("expected signed_in, got %q", session.State)
	}
	if session.Profile == nil || session.Profile.ID != "u1" {
		t.Fatalf("expected profile u1 on session, got %+v", session.Profile)
	}
}

func TestSessionService_SignIn_InvalidCredentials(t *testing.T) {
	svc, provider, repo, _ := newSessionFixture()
	repo.seed("u1", "alice")
	provider.seed("u1", "alice@example.com", "correct horse battery")

	if _, err := svc.SignIn(context.Background(), "alice@example.com", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.SignIn(context.Background(), "nobody@example.com", "whatever"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestSessionService_SignIn_MissingProfile(t *testing.T) {
	svc, provider, _, _ := newSessionFixture()
	provider.seed("u1", "alice@example.com", "correct horse battery")

	if _, err := svc.SignIn(context.Background(), "alice@example.com", "correct horse battery"); !errors.Is(err, domain.ErrProfileMissing) {
		t.Fatalf("expected ErrProfileMissing, got %v", err)
	}
}

func TestSessionService_SignOut_Idempotent(t *testing.T) {
	svc, provider, repo, _ := newSessionFixture()
	repo.seed("u1", "alice")
	provider.seed("u1", "alice@example.com", "correct horse battery")

	if _, err := svc.SignIn(context.Background(), "alice@example.com", "correct horse battery"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if err := svc.SignOut(context.Background(), "u1"); err != nil {
		t.Fatalf("first sign out: %v", err)
	}
	if got := svc.Current(); got.State != domain.SessionSignedOut || got.Identity != nil || got.Profile != nil {
		t.Fatalf("expected cleared signed_out session, got %+v", got)
	}
	if err := svc.SignOut(context.Background(), "u1"); err != nil {
		t.Fatalf("repeat sign out must be a no-op, got %v", err)
	}
}

func TestSessionService_SignOut_DoesNotEndOtherSessions(t *testing.T) {
	svc, provider, repo, _ := newSessionFixture()
	repo.seed("a1", "alice")
	repo.seed("b1", "bob")
	provider.seed("a1", "alice@example.com", "correct horse battery")
	provider.seed("b1", "bob@example.com", "correct horse battery")

	if _, err := svc.SignIn(context.Background(), "bob@example.com", "correct horse battery"); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	// Alice's token signs out while Bob holds the active session.
	if err := svc.SignOut(context.Background(), "a1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := svc.Current(); got.State != domain.SessionSignedIn || got.Identity.ID != "b1" {
		t.Fatalf("bob's session must survive alice's sign-out, got %+v", got)
	}
}

// ---------------------------------------------------------------------------
// Profile updates
// ---------------------------------------------------------------------------

func strptr(s string) *string { return &s }

func TestSessionService_UpdateProfile_PreservesUnspecifiedFields(t *testing.T) {
	svc, provider, repo, cache := newSessionFixture()
	p := repo.seed("u1", "alice", "b1", "c1")
	p.PhoneNumber = "+15550001"
	p.Extra = map[string]any{"events": []string{"ev1", "ev2"}}
	provider.seed("u1", "alice@example.com", "correct horse battery")

	if _, err := svc.SignIn(context.Background(), "alice@example.com", "correct horse battery"); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	updated, err := svc.UpdateProfileFor(context.Background(), "u1", ports.ProfileUpdate{Username: strptr("AliceRenamed")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Username != "AliceRenamed" || updated.UsernameLower != "alicerenamed" {
		t.Fatalf("username not updated: %+v", updated)
	}
	if len(updated.Friends) != 2 {
		t.Errorf("friends relation must survive the update, got %v", updated.Friends)
	}
	if updated.PhoneNumber != "+15550001" {
		t.Errorf("unspecified phone number must survive, got %q", updated.PhoneNumber)
	}
	if _, ok := updated.Extra["events"]; !ok {
		t.Errorf("extension fields must survive the update, got %v", updated.Extra)
	}

	if _, ok := cache.entries["alice"]; ok {
		t.Error("old username cache entry not invalidated")
	}
	if id := cache.entries["alicerenamed"]; id != "u1" {
		t.Errorf("new username not cached, got %q", id)
	}
}

func TestSessionService_UpdateProfileFor_UnknownIdentity(t *testing.T) {
	svc, _, _, _ := newSessionFixture()

	if _, err := svc.UpdateProfileFor(context.Background(), "ghost", ports.ProfileUpdate{Username: strptr("xyz")}); !errors.Is(err, domain.ErrProfileMissing) {
		t.Fatalf("expected ErrProfileMissing, got %v", err)
	}
}

func TestSessionService_UpdateProfileFor_ScopedToCaller(t *testing.T) {
	svc, provider, repo, _ := newSessionFixture()
	repo.seed("a1", "alice")
	repo.seed("b1", "bob")
	provider.seed("a1", "alice@example.com", "correct horse battery")
	provider.seed("b1", "bob@example.com", "correct horse battery")

	// Bob authenticated most recently, so the process-wide session is his.
	if _, err := svc.SignIn(context.Background(), "alice@example.com", "correct horse battery"); err != nil {
		t.Fatalf("sign in alice: %v", err)
	}
	if _, err := svc.SignIn(context.Background(), "bob@example.com", "correct horse battery"); err != nil {
		t.Fatalf("sign in bob: %v", err)
	}

	updated, err := svc.UpdateProfileFor(context.Background(), "a1", ports.ProfileUpdate{Username: strptr("renamed")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.ID != "a1" || updated.Username != "renamed" {
		t.Fatalf("update must target the caller's profile, got %+v", updated)
	}

	alice, _ := repo.Get(context.Background(), "a1")
	bob, _ := repo.Get(context.Background(), "b1")
	if alice.Username != "renamed" {
		t.Errorf("alice's document not updated: %+v", alice)
	}
	if bob.Username != "bob" {
		t.Errorf("bob's document must be untouched by alice's update: %+v", bob)
	}
	if got := svc.Current(); got.Identity.ID != "b1" || got.Profile.Username != "bob" {
		t.Errorf("active session must still be bob's, got %+v", got)
	}
}

func TestSessionService_UpdateProfileFor_UsernameTaken(t *testing.T) {
	svc, provider, repo, _ := newSessionFixture()
	repo.seed("u1", "alice")
	repo.seed("u2", "bob")
	provider.seed("u1", "alice@example.com", "correct horse battery")

	if _, err := svc.SignIn(context.Background(), "alice@example.com", "correct horse battery"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if _, err := svc.UpdateProfileFor(context.Background(), "u1", ports.ProfileUpdate{Username: strptr("BOB")}); !errors.Is(err, domain.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestSessionService_UpdateProfileFor_SameUsernameDifferentCase(t *testing.T) {
	svc, provider, repo, _ := newSessionFixture()
	repo.seed("u1", "alice")
	provider.seed("u1", "alice@example.com", "correct horse battery")

	if _, err := svc.SignIn(context.Background(), "alice@example.com", "correct horse battery"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	updated, err := svc.UpdateProfileFor(context.Background(), "u1", ports.ProfileUpdate{Username: strptr("ALICE")})
	if err != nil {
		t.Fatalf("re-casing own username must succeed, got %v", err)
	}
	if updated.Username != "ALICE" || updated.UsernameLower != "alice" {
		t.Fatalf("unexpected result: %+v", updated)
	}
}

func TestSessionService_SessionFor_ScopedToCaller(t *testing.T) {
	svc, provider, repo, _ := newSessionFixture()
	repo.seed("a1", "alice")
	repo.seed("b1", "bob")
	provider.seed("b1", "bob@example.com", "correct horse battery")

	if _, err := svc.SignIn(context.Background(), "bob@example.com", "correct horse battery"); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	session, err := svc.SessionFor(context.Background(), "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Profile == nil || session.Profile.ID != "a1" {
		t.Fatalf("expected alice's profile regardless of the active session, got %+v", session.Profile)
	}
	if session.Identity == nil || session.Identity.ID != "a1" {
		t.Fatalf("expected alice's identity, got %+v", session.Identity)
	}

	if _, err := svc.SessionFor(context.Background(), "ghost"); !errors.Is(err, domain.ErrProfileMissing) {
		t.Fatalf("expected ErrProfileMissing for unknown identity, got %v", err)
	}
}

func TestSessionService_ChangePassword(t *testing.T) {
	svc, provider, repo, _ := newSessionFixture()
	repo.seed("u1", "alice")
	provider.seed("u1", "alice@example.com", "old password phrase")

	if err := svc.ChangePassword(context.Background(), "u1", "wrong", "new password phrase"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong current password, got %v", err)
	}
	if err := svc.ChangePassword(context.Background(), "u1", "old password phrase", "new password phrase"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.SignIn(context.Background(), "alice@example.com", "new password phrase"); err != nil {
		t.Fatalf("new password must authenticate: %v", err)
	}
}

func TestSessionService_ObserverSnapshotsAreIsolated(t *testing.T) {
	svc, provider, repo, _ := newSessionFixture()
	repo.seed("u1", "alice", "b1")
	provider.seed("u1", "alice@example.com", "correct horse battery")

	var seen []domain.Session
	svc.Observe(func(s domain.Session) { seen = append(seen, s) })

	if _, err := svc.SignIn(context.Background(), "alice@example.com", "correct horse battery"); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	// A misbehaving observer mutating its snapshot must not corrupt the
	// service's cached profile.
	last := seen[len(seen)-1]
	if last.Profile == nil {
		t.Fatal("expected profile on signed-in snapshot")
	}
	last.Profile.Username = "mangled"
	last.Profile.Friends[0] = "mangled"

	if got := svc.Current(); got.Profile.Username != "alice" || got.Profile.Friends[0] != "b1" {
		t.Fatalf("cached profile corrupted by observer mutation: %+v", got.Profile)
	}
}

func TestSessionService_RefreshProfile_PicksUpExternalWrites(t *testing.T) {
	svc, provider, repo, _ := newSessionFixture()
	repo.seed("u1", "alice")
	provider.seed("u1", "alice@example.com", "correct horse battery")

	if _, err := svc.SignIn(context.Background(), "alice@example.com", "correct horse battery"); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	// Another actor adds a friend edge directly in the store.
	if err := repo.AddFriend(context.Background(), "u1", "b1"); err != nil {
		t.Fatalf("seed edge: %v", err)
	}

	session, err := svc.RefreshProfile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Profile == nil || !session.Profile.HasFriend("b1") {
		t.Fatalf("refresh must pick up the new edge, got %+v", session.Profile)
	}
}
