package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/planpal/social-system/internal/core/domain"
	"github.com/planpal/social-system/internal/core/ports"
	"github.com/planpal/social-system/internal/metrics"
)

// friendBatchLimit is the id-count ceiling of the store's IN-style batch
// lookup. Larger friend lists are resolved in multiple pages.
const friendBatchLimit = 30

// SocialService maintains the symmetric friends relation over profiles.
type SocialService struct {
	profiles ports.ProfileRepository
	cache    UsernameCache
	repairs  ports.RepairQueue
	log      zerolog.Logger
}

func NewSocialService(profiles ports.ProfileRepository, cache UsernameCache, repairs ports.RepairQueue, log zerolog.Logger) *SocialService {
	return &SocialService{profiles: profiles, cache: cache, repairs: repairs, log: log}
}

// FindByUsername performs an exact lookup on the canonical lowercased form,
// consulting the Redis cache before the store.
func (s *SocialService) FindByUsername(ctx context.Context, username string) (*domain.UserProfile, error) {
	lower := domain.NormalizeUsername(username)
	if lower == "" {
		return nil, domain.ErrProfileNotFound
	}

	if id, ok, err := s.cache.Lookup(ctx, lower); err != nil {
		s.log.Warn().Err(err).Str("username", lower).Msg("username cache lookup failed, falling back to store")
	} else if ok {
		profile, err := s.profiles.Get(ctx, id)
		if err == nil && profile.UsernameLower == lower {
			return profile, nil
		}
		// Stale entry: the username moved or the profile is gone.
		if invErr := s.cache.Invalidate(ctx, lower); invErr != nil {
			s.log.Warn().Err(invErr).Str("username", lower).Msg("username cache invalidate failed")
		}
	}

	profile, err := s.profiles.FindByUsername(ctx, lower)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Store(ctx, lower, profile.ID); err != nil {
		s.log.Warn().Err(err).Str("username", lower).Msg("username cache store failed")
	}
	return profile, nil
}

// AddFriend resolves username and writes both sides of the relation with the
// store's atomic add-to-set primitive. When the second write fails the edge
// is left asymmetric; a repair job is queued so the reverse side converges
// without waiting for either user to retry.
func (s *SocialService) AddFriend(ctx context.Context, selfID, username string) (*domain.UserProfile, error) {
	target, err := s.FindByUsername(ctx, username)
	if err != nil {
		metrics.FriendAddsTotal.WithLabelValues("not_found").Inc()
		return nil, err
	}

	if target.ID == selfID {
		metrics.FriendAddsTotal.WithLabelValues("self_reference").Inc()
		return nil, domain.ErrSelfReference
	}

	self, err := s.profiles.Get(ctx, selfID)
	if err != nil {
		metrics.FriendAddsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if self.HasFriend(target.ID) {
		metrics.FriendAddsTotal.WithLabelValues("already_friends").Inc()
		return nil, domain.ErrAlreadyFriends
	}

	if err := s.profiles.AddFriend(ctx, selfID, target.ID); err != nil {
		metrics.FriendAddsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("add friend (self side): %w", err)
	}

	if err := s.profiles.AddFriend(ctx, target.ID, selfID); err != nil {
		// Self side is already written. Schedule the reverse edge and
		// surface the failure; retrying AddFriend reports AlreadyFriends,
		// the repair queue is what restores symmetry.
		s.repairs.Enqueue(ports.RepairJob{ProfileID: target.ID, FriendID: selfID})
		metrics.FriendAddsTotal.WithLabelValues("partial").Inc()
		s.log.Error().Err(err).
			Str("self_id", selfID).
			Str("target_id", target.ID).
			Msg("reverse friend edge write failed, repair queued")
		return nil, fmt.Errorf("add friend (target side): %w", err)
	}

	metrics.FriendAddsTotal.WithLabelValues("ok").Inc()
	s.log.Info().Str("self_id", selfID).Str("target_id", target.ID).Msg("friends added")
	return target, nil
}

// RemoveFriend removes the edge from both sides, mirroring AddFriend's
// symmetry. Removing an absent edge is a success no-op.
func (s *SocialService) RemoveFriend(ctx context.Context, selfID, targetID string) error {
	if err := s.profiles.RemoveFriend(ctx, selfID, targetID); err != nil {
		metrics.FriendRemovesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("remove friend (self side): %w", err)
	}
	if err := s.profiles.RemoveFriend(ctx, targetID, selfID); err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			// Target account no longer exists; nothing to repair.
			metrics.FriendRemovesTotal.WithLabelValues("ok").Inc()
			return nil
		}
		metrics.FriendRemovesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("remove friend (target side): %w", err)
	}
	metrics.FriendRemovesTotal.WithLabelValues("ok").Inc()
	s.log.Info().Str("self_id", selfID).Str("target_id", targetID).Msg("friends removed")
	return nil
}

// ListFriends resolves every friend id to a full profile, paging batch
// lookups at friendBatchLimit ids each, and sorts the result by canonical
// username for deterministic output.
func (s *SocialService) ListFriends(ctx context.Context, selfID string) ([]*domain.UserProfile, error) {
	self, err := s.profiles.Get(ctx, selfID)
	if err != nil {
		return nil, err
	}

	friends := make([]*domain.UserProfile, 0, len(self.Friends))
	for start := 0; start < len(self.Friends); start += friendBatchLimit {
		end := start + friendBatchLimit
		if end > len(self.Friends) {
			end = len(self.Friends)
		}
		batch, err := s.profiles.FindByIDs(ctx, self.Friends[start:end])
		if err != nil {
			return nil, fmt.Errorf("resolve friends: %w", err)
		}
		friends = append(friends, batch...)
	}
	metrics.FriendListSize.Observe(float64(len(friends)))

	sort.Slice(friends, func(i, j int) bool {
		return friends[i].UsernameLower < friends[j].UsernameLower
	})
	return friends, nil
}

// Reconcile walks the whole store looking for asymmetric edges and queues a
// repair job for each missing reverse edge. Intended to run periodically or
// on demand from the admin endpoint.
func (s *SocialService) Reconcile(ctx context.Context) (int, error) {
	edges := make(map[string]map[string]bool)
	if err := s.profiles.Scan(ctx, func(p *domain.UserProfile) error {
		set := make(map[string]bool, len(p.Friends))
		for _, f := range p.Friends {
			set[f] = true
		}
		edges[p.ID] = set
		return nil
	}); err != nil {
		return 0, fmt.Errorf("reconcile scan: %w", err)
	}

	scheduled := 0
	for id, friends := range edges {
		for friendID := range friends {
			reverse, known := edges[friendID]
			if !known {
				// Dangling reference to a profile that no longer exists;
				// left alone, account deletion is out of scope here.
				continue
			}
			if !reverse[id] {
				s.repairs.Enqueue(ports.RepairJob{ProfileID: friendID, FriendID: id})
				scheduled++
			}
		}
	}

	if scheduled > 0 {
		s.log.Warn().Int("repairs", scheduled).Msg("asymmetric friend edges found")
	}
	return scheduled, nil
}
