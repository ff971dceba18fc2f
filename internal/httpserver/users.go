package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/user_service/internal/middleware"
)

type UserHTTP struct{}

// Me echoes the account resolved by the bearer guard. The password hash is
// json-omitted on the model and never leaves the server.
func (h *UserHTTP) Me(c echo.Context) error {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
	}
	return c.JSON(http.StatusOK, user)
}
