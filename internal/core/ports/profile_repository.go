package ports

import (
	"context"

	"github.com/planpal/social-system/internal/core/domain"
)

// ProfileRepository is the document store holding one UserProfile per
// identity id.
type ProfileRepository interface {
	// Create inserts a new profile document. The id must be unique.
	Create(ctx context.Context, profile *domain.UserProfile) error

	// Get retrieves a profile by identity id, or domain.ErrProfileNotFound.
	Get(ctx context.Context, id string) (*domain.UserProfile, error)

	// Merge patches only the given fields into the profile document,
	// leaving every other field (including the extension bag) untouched.
	Merge(ctx context.Context, id string, fields map[string]any) error

	// FindByUsername resolves a canonical (lowercased) username to at most
	// one profile, or domain.ErrProfileNotFound.
	FindByUsername(ctx context.Context, usernameLower string) (*domain.UserProfile, error)

	// FindByIDs resolves ids to profiles in one batch query. Missing ids
	// are silently skipped. Callers are responsible for keeping batches
	// within the store's IN-query ceiling.
	FindByIDs(ctx context.Context, ids []string) ([]*domain.UserProfile, error)

	// AddFriend appends friendID to the profile's friends set using the
	// store's atomic add-to-set primitive. Adding a present id is a no-op.
	AddFriend(ctx context.Context, id, friendID string) error

	// RemoveFriend removes friendID from the profile's friends set.
	// Removing an absent id is a no-op.
	RemoveFriend(ctx context.Context, id, friendID string) error

	// Scan walks every profile document, invoking fn for each. A non-nil
	// error from fn aborts the walk.
	Scan(ctx context.Context, fn func(*domain.UserProfile) error) error
}
