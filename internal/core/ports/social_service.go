package ports

import (
	"context"

	"github.com/planpal/social-system/internal/core/domain"
)

// SocialService maintains the symmetric friends relation and provides
// username-based discovery.
type SocialService interface {
	FindByUsername(ctx context.Context, username string) (*domain.UserProfile, error)

	// AddFriend resolves username and writes both sides of the relation.
	// Fails with domain.ErrProfileNotFound, domain.ErrSelfReference or
	// domain.ErrAlreadyFriends.
	AddFriend(ctx context.Context, selfID, username string) (*domain.UserProfile, error)

	// RemoveFriend removes the edge from both sides. Idempotent.
	RemoveFriend(ctx context.Context, selfID, targetID string) error

	// ListFriends resolves every friend id to a full profile, paging the
	// batch lookups, and returns them sorted by username.
	ListFriends(ctx context.Context, selfID string) ([]*domain.UserProfile, error)

	// Reconcile scans the whole store for asymmetric edges and schedules a
	// repair for each. Returns the number of repairs scheduled.
	Reconcile(ctx context.Context) (int, error)
}
