package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/octobees/turmeric-buyers/internal/auth"
	"github.com/octobees/turmeric-buyers/internal/dto"
)

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	authenticator *auth.Authenticator
	ttlSeconds    int64
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(authenticator *auth.Authenticator, jwtManager *auth.JWTManager) *AuthHandler {
	return &AuthHandler{
		authenticator: authenticator,
		ttlSeconds:    int64(jwtManager.TTL().Seconds()),
	}
}

// Login handles POST /auth/login requests.
func (h *AuthHandler) Login(c echo.Context) error {
	var req dto.LoginRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}

	req.Email = strings.TrimSpace(req.Email)
	if err := c.Validate(&req); err != nil {
		return Error(c, http.StatusBadRequest, "email and password are required")
	}

	token, err := h.authenticator.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return Error(c, http.StatusUnauthorized, "invalid credentials")
		}
		return Error(c, http.StatusInternalServerError, "unable to authenticate")
	}

	return Success(c, http.StatusOK, "login successful", dto.LoginResponse{AccessToken: token, ExpiresIn: h.ttlSeconds})
}
