package handler

import "github.com/planpal/social-system/internal/core/domain"

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Request / Response types ---

type signUpRequest struct {
	Email       string `json:"email"        validate:"required,email"`
	Password    string `json:"password"     validate:"required,min=8"`
	Username    string `json:"username"     validate:"required,min=3,max=32"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,min=7,max=20"`
}

type signInRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	Token   string         `json:"token,omitempty"`
	Session domain.Session `json:"session"`
}

type updateProfileRequest struct {
	Username       *string `json:"username,omitempty"        validate:"omitempty,min=3,max=32"`
	PhoneNumber    *string `json:"phone_number,omitempty"    validate:"omitempty,min=7,max=20"`
	ProfilePicture *string `json:"profile_picture,omitempty" validate:"omitempty,url"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password"     validate:"required,min=8"`
}

type addFriendRequest struct {
	Username string `json:"username" validate:"required"`
}

// publicProfile is the discovery/friends-list view of another user. The
// friends relation and the extension bag stay private to their owner.
type publicProfile struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture,omitempty"`
}

func toPublicProfile(p *domain.UserProfile) publicProfile {
	return publicProfile{
		ID:             p.ID,
		Username:       p.Username,
		ProfilePicture: p.ProfilePicture,
	}
}

type friendsResponse struct {
	Friends []publicProfile `json:"friends"`
	Total   int             `json:"total"`
}

type reconcileResponse struct {
	RepairsScheduled int `json:"repairs_scheduled"`
}
