package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/user_service/internal/middleware"
)

type Deps struct {
	AuthHandler  *AuthHTTP
	UserHandler  *UserHTTP
	EmailHandler *EmailHTTP
	Guard        *middleware.RequireUser
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})

	auth := e.Group("/auth")
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("/resend_email_verification", d.AuthHandler.ResendEmailVerification)
	auth.GET("/verify_email", d.AuthHandler.VerifyEmail)

	private := e.Group("", d.Guard.RequireAuth)
	private.GET("/users/me", d.UserHandler.Me)
	private.POST("/email", d.EmailHandler.SendEmail)
}
