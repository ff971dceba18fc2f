package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/user_service/internal/events"
	"github.com/Skotchmaster/user_service/internal/logging"
	"github.com/Skotchmaster/user_service/internal/service"
)

type AuthHTTP struct {
	Svc      *service.AccountService
	Producer *events.Producer
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		Username string `form:"username" json:"username"`
		Password string `form:"password" json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, err := h.Svc.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) || errors.Is(err, service.ErrEmailNotVerified) {
			l.Warn("login_failed", "status", 401, "reason", err.Error())
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		l.Error("login_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	token, err := h.Svc.GenerateAccessToken(user)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot create token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create token")
	}

	l.Info("login_successful")
	return c.JSON(http.StatusOK, echo.Map{
		"access_token": token,
		"token_type":   "bearer",
	})
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
		Email    string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 422, "error", err)
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "invalid body")
	}
	if req.Username == "" || req.Password == "" || req.Email == "" || !strings.Contains(req.Email, "@") {
		l.Warn("register_error", "status", 422, "reason", "validation")
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "username, password and a valid email are required")
	}

	user, err := h.Svc.Register(ctx, req.Username, req.Password, req.FullName, req.Email)
	if err != nil {
		if errors.Is(err, service.ErrUsernameTaken) || errors.Is(err, service.ErrEmailTaken) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	if err := h.Svc.TriggerEmailVerification(ctx, user); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	event := map[string]any{
		"type":     "user_registered",
		"user_id":  user.ID,
		"username": user.Username,
	}
	if err := h.Producer.PublishEvent(ctx, user.ID.String(), event); err != nil {
		l.Error("event_publish_failed", "error", err)
	}

	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHTTP) ResendEmailVerification(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_resend_verification")

	var req struct {
		Username string `json:"username"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("resend_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if err := h.Svc.ResendEmailVerification(ctx, req.Username); err != nil {
		if errors.Is(err, service.ErrUserNotFound) || errors.Is(err, service.ErrAlreadyVerified) {
			l.Warn("resend_failed", "status", 400, "reason", err.Error())
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.NoContent(http.StatusAccepted)
}

func (h *AuthHTTP) VerifyEmail(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_verify_email")

	user, err := h.Svc.VerifyEmail(ctx, c.QueryParam("token"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			l.Warn("verify_email_failed", "status", 401)
			return echo.NewHTTPError(http.StatusUnauthorized, service.ErrInvalidToken.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	event := map[string]any{
		"type":     "email_verified",
		"user_id":  user.ID,
		"username": user.Username,
	}
	if err := h.Producer.PublishEvent(ctx, user.ID.String(), event); err != nil {
		l.Error("event_publish_failed", "error", err)
	}

	return c.JSON(http.StatusOK, user)
}
