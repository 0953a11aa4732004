package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/skvorcov/auth_service/internal/logging"
	"github.com/skvorcov/auth_service/internal/service"
)

type AuthHTTP struct {
	Svc *service.AuthService
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func httpError(status int, code, message string) error {
	return echo.NewHTTPError(status, echo.Map{"code": code, "message": message})
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return httpError(http.StatusBadRequest, "MALFORMED_JSON", "invalid body")
	}

	pair, err := h.Svc.Register(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return httpError(http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		case errors.Is(err, service.ErrEmailAlreadyExists):
			return httpError(http.StatusConflict, "EMAIL_ALREADY_EXISTS", err.Error())
		default:
			l.Error("register_error", "status", 500, "error", err)
			return httpError(http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred")
		}
	}

	return c.JSON(http.StatusCreated, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return httpError(http.StatusBadRequest, "MALFORMED_JSON", "invalid body")
	}

	pair, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return httpError(http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		case errors.Is(err, service.ErrInvalidCredentials):
			l.Warn("login_failed", "status", 401)
			return httpError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
		default:
			l.Error("login_error", "status", 500, "error", err)
			return httpError(http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred")
		}
	}

	return c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if err := h.Svc.Logout(ctx, header); err != nil {
		l.Error("logout_error", "status", 500, "error", err)
		return httpError(http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred")
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("refresh_error", "status", 400, "error", err)
		return httpError(http.StatusBadRequest, "MALFORMED_JSON", "invalid body")
	}
	if req.RefreshToken == "" {
		return httpError(http.StatusBadRequest, "VALIDATION_ERROR", "refresh_token is required")
	}

	pair, err := h.Svc.Refresh(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefreshToken) {
			l.Warn("refresh_rejected", "status", 401)
			return httpError(http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "refresh token is invalid")
		}
		l.Error("refresh_error", "status", 500, "error", err)
		return httpError(http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred")
	}

	return c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}
