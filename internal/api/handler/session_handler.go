package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/planpal/social-system/internal/core/domain"
	"github.com/planpal/social-system/internal/core/ports"
)

// TokenIssuer mints bearer tokens for freshly authenticated identities.
type TokenIssuer interface {
	Issue(identity *domain.Identity) (string, error)
}

type SessionHandler struct {
	sessions ports.SessionService
	tokens   TokenIssuer
}

func NewSessionHandler(sessions ports.SessionService, tokens TokenIssuer) *SessionHandler {
	return &SessionHandler{sessions: sessions, tokens: tokens}
}

// SignUp creates a new account: identity first, then the profile document.
//
// @Summary      Register a new user
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body      signUpRequest  true  "Registration details"
// @Success      201   {object}  sessionResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /auth/signup [post]
func (h *SessionHandler) SignUp(c echo.Context) error {
	var req signUpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	session, err := h.sessions.SignUp(c.Request().Context(), req.Email, req.Password, req.Username, req.PhoneNumber)
	if err != nil {
		return err
	}

	token, err := h.tokens.Issue(session.Identity)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sessionResponse{Token: token, Session: session})
}

// SignIn authenticates and returns a bearer token plus the session snapshot.
//
// @Summary      Sign in
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body      signInRequest  true  "Credentials"
// @Success      200   {object}  sessionResponse
// @Failure      401   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /auth/signin [post]
func (h *SessionHandler) SignIn(c echo.Context) error {
	var req signInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	session, err := h.sessions.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	token, err := h.tokens.Issue(session.Identity)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionResponse{Token: token, Session: session})
}

// SignOut invalidates the caller's session only. Idempotent: signing out
// while already signed out still returns 204.
func (h *SessionHandler) SignOut(c echo.Context) error {
	uid, err := ctxIdentityID(c)
	if err != nil {
		return err
	}
	if err := h.sessions.SignOut(c.Request().Context(), uid); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Current returns the session snapshot scoped to the caller's token.
func (h *SessionHandler) Current(c echo.Context) error {
	uid, err := ctxIdentityID(c)
	if err != nil {
		return err
	}
	session, err := h.sessions.SessionFor(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, session)
}

// Profile returns the full profile of the authenticated caller.
func (h *SessionHandler) Profile(c echo.Context) error {
	uid, err := ctxIdentityID(c)
	if err != nil {
		return err
	}
	session, err := h.sessions.SessionFor(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, session.Profile)
}

// UpdateProfile merge-patches the provided fields into the active profile.
//
// @Summary      Update profile fields
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body      updateProfileRequest  true  "Fields to merge"
// @Success      200   {object}  domain.UserProfile
// @Failure      401   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /profile [patch]
func (h *SessionHandler) UpdateProfile(c echo.Context) error {
	uid, err := ctxIdentityID(c)
	if err != nil {
		return err
	}

	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	profile, err := h.sessions.UpdateProfileFor(c.Request().Context(), uid, ports.ProfileUpdate{
		Username:       req.Username,
		PhoneNumber:    req.PhoneNumber,
		ProfilePicture: req.ProfilePicture,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

// ChangePassword re-authenticates the caller with their current password
// before accepting the new one.
//
// @Summary      Change password
// @Tags         session
// @Accept       json
// @Param        body  body  changePasswordRequest  true  "Current and new password"
// @Success      204
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /auth/password [post]
func (h *SessionHandler) ChangePassword(c echo.Context) error {
	uid, err := ctxIdentityID(c)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.sessions.ChangePassword(c.Request().Context(), uid, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
