package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pipeline-service/internal/middleware"
	"github.com/iliyamo/pipeline-service/internal/service"
)

// profileTimeFormat is the created_at layout of GET /me.
const profileTimeFormat = "2006-01-02 15:04:05"

// AuthHandler serves signup, login and the current user's profile.
type AuthHandler struct {
	auth *service.AuthService
	log  *slog.Logger
}

func NewAuthHandler(auth *service.AuthService, log *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, log: log}
}

type tokenResp struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type profileResp struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

// Signup registers a user.  The response carries no token; clients log in
// afterwards.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req service.SignupInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if _, err := h.auth.Signup(ctx, middleware.Store(c).Users, req); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "User created successfully"})
}

// Login accepts a JSON body or an OAuth2 password form and returns a bearer
// token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req service.LoginInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	tok, err := h.auth.Login(ctx, middleware.Store(c).Users, req)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, tokenResp{AccessToken: tok.Raw, TokenType: "bearer"})
}

// Me returns the authenticated user's profile, re-read from the store.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.auth.Profile(ctx, middleware.Store(c).Users, middleware.Principal(c).Username)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, profileResp{
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt.UTC().Format(profileTimeFormat),
	})
}
