package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/user_service/internal/logging"
	"github.com/Skotchmaster/user_service/internal/mail"
)

type EmailHTTP struct {
	Mailer mail.Sender
}

// SendEmail lets an authenticated user send an arbitrary transactional
// email through the provider.
func (h *EmailHTTP) SendEmail(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "email_send")

	var req struct {
		To      string `json:"to"`
		Subject string `json:"subject"`
		Content string `json:"content"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("send_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.To == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "recipient is required")
	}

	if err := h.Mailer.Send(ctx, req.To, req.Subject, req.Content); err != nil {
		l.Error("send_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, echo.Map{"status": "sent"})
}
