package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/planpal/social-system/internal/core/ports"
)

type SocialHandler struct {
	social ports.SocialService
}

func NewSocialHandler(social ports.SocialService) *SocialHandler {
	return &SocialHandler{social: social}
}

// FindUser resolves a username to a public profile.
//
// @Summary      Look up a user by username
// @Tags         social
// @Produce      json
// @Param        username  query     string  true  "Username, case-insensitive"
// @Success      200       {object}  publicProfile
// @Failure      404       {object}  errorResponse
// @Router       /users [get]
func (h *SocialHandler) FindUser(c echo.Context) error {
	username := c.QueryParam("username")
	if username == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username query parameter is required")
	}

	profile, err := h.social.FindByUsername(c.Request().Context(), username)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toPublicProfile(profile))
}

// AddFriend adds a mutual friendship between the caller and the user with
// the given username.
//
// @Summary      Add a friend by username
// @Tags         social
// @Accept       json
// @Produce      json
// @Param        body  body      addFriendRequest  true  "Friend's username"
// @Success      201   {object}  publicProfile
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /friends [post]
func (h *SocialHandler) AddFriend(c echo.Context) error {
	uid, err := ctxIdentityID(c)
	if err != nil {
		return err
	}

	var req addFriendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	friend, err := h.social.AddFriend(c.Request().Context(), uid, req.Username)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toPublicProfile(friend))
}

// RemoveFriend removes the friendship from both sides. Removing an absent
// friendship still returns 204.
func (h *SocialHandler) RemoveFriend(c echo.Context) error {
	uid, err := ctxIdentityID(c)
	if err != nil {
		return err
	}

	targetID := c.Param("id")
	if targetID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "friend id is required")
	}

	if err := h.social.RemoveFriend(c.Request().Context(), uid, targetID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ListFriends returns the caller's friends as public profiles, sorted by
// username.
func (h *SocialHandler) ListFriends(c echo.Context) error {
	uid, err := ctxIdentityID(c)
	if err != nil {
		return err
	}

	friends, err := h.social.ListFriends(c.Request().Context(), uid)
	if err != nil {
		return err
	}

	out := make([]publicProfile, 0, len(friends))
	for _, f := range friends {
		out = append(out, toPublicProfile(f))
	}
	return c.JSON(http.StatusOK, friendsResponse{Friends: out, Total: len(out)})
}

// Reconcile scans for asymmetric friend edges and schedules repairs.
func (h *SocialHandler) Reconcile(c echo.Context) error {
	scheduled, err := h.social.Reconcile(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reconcileResponse{RepairsScheduled: scheduled})
}
