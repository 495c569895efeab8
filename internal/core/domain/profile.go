package domain

import (
	"errors"
	"strings"
	"time"
)

var ErrProfileNotFound = errors.New("profile not found")
var ErrProfileMissing = errors.New("profile missing for identity")
var ErrUsernameTaken = errors.New("username already taken")
var ErrInvalidUsername = errors.New("invalid username")
var ErrSelfReference = errors.New("cannot add yourself as a friend")
var ErrAlreadyFriends = errors.New("already friends")
var ErrStoreUnavailable = errors.New("profile store unavailable")

// UserProfile is the application-level record describing a user, keyed by
// the id issued by the identity provider.
//
// Friends is a symmetric relation over profile ids: if A lists B, B must
// list A. Both sides are written in the same logical operation; the repair
// queue closes the gap when the second write fails.
type UserProfile struct {
	ID             string    `json:"id" bson:"_id"`
	Email          string    `json:"email" bson:"email"`
	Username       string    `json:"username" bson:"username"`
	UsernameLower  string    `json:"-" bson:"username_lower"`
	PhoneNumber    string    `json:"phone_number,omitempty" bson:"phone_number,omitempty"`
	ProfilePicture string    `json:"profile_picture,omitempty" bson:"profile_picture,omitempty"`
	Friends        []string  `json:"friends" bson:"friends"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at"`

	// Extra carries fields owned by features outside the social core
	// (events, tasks, memories, wishlist, saved places). They pass through
	// merge-patches untouched and are never interpreted here.
	Extra map[string]any `json:"extra,omitempty" bson:"extra,omitempty"`
}

// Clone returns a deep copy. Snapshots handed to observers are clones so a
// caller mutating one cannot corrupt the cached copy.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Friends != nil {
		clone.Friends = make([]string, len(p.Friends))
		copy(clone.Friends, p.Friends)
	}
	if p.Extra != nil {
		clone.Extra = make(map[string]any, len(p.Extra))
		for k, v := range p.Extra {
			clone.Extra[k] = v
		}
	}
	return &clone
}

// HasFriend reports whether id is already present in the friends relation.
func (p *UserProfile) HasFriend(id string) bool {
	for _, f := range p.Friends {
		if f == id {
			return true
		}
	}
	return false
}

// NormalizeUsername returns the canonical form used for uniqueness checks
// and lookups: trimmed and lowercased. The display form keeps its casing.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
