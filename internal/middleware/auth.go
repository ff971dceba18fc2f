package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/user_service/internal/models"
	"github.com/Skotchmaster/user_service/internal/service"
)

const userContextKey = "current_user"

type RequireUser struct {
	Svc *service.AccountService
}

func NewRequireUser(svc *service.AccountService) *RequireUser {
	return &RequireUser{Svc: svc}
}

// RequireAuth extracts the bearer token, resolves it to an account and puts
// the account into the request context for the handler.
func (m *RequireUser) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		}

		user, err := m.Svc.CurrentUser(c.Request().Context(), strings.TrimPrefix(header, prefix))
		if err != nil {
			if errors.Is(err, service.ErrInactiveUser) {
				return echo.NewHTTPError(http.StatusBadRequest, service.ErrInactiveUser.Error())
			}
			return echo.NewHTTPError(http.StatusUnauthorized, service.ErrInvalidToken.Error())
		}

		c.Set(userContextKey, user)
		return next(c)
	}
}

func UserFromContext(c echo.Context) (*models.User, bool) {
	user, ok := c.Get(userContextKey).(*models.User)
	return user, ok
}
