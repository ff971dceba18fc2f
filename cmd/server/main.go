package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/user_service/internal/config"
	"github.com/Skotchmaster/user_service/internal/events"
	"github.com/Skotchmaster/user_service/internal/httpserver"
	"github.com/Skotchmaster/user_service/internal/logging"
	"github.com/Skotchmaster/user_service/internal/mail"
	"github.com/Skotchmaster/user_service/internal/middleware"
	"github.com/Skotchmaster/user_service/internal/models"
	"github.com/Skotchmaster/user_service/internal/repo"
	"github.com/Skotchmaster/user_service/internal/service"
	"github.com/Skotchmaster/user_service/pkg/db"
	pkg_hash "github.com/Skotchmaster/user_service/pkg/hash"
	loggingmw "github.com/Skotchmaster/user_service/pkg/middleware/logging"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	config.MustNonEmpty(configuration.JWT_SECRET, "JWT_SECRET")
	config.MustNonEmpty(configuration.SENDGRID_API_KEY, "SENDGRID_API_KEY")
	config.MustNonEmpty(configuration.APPLICATION_HOSTNAME, "APPLICATION_HOSTNAME")

	logger := logging.New(configuration.LOG_LEVEL)

	ctx := context.Background()
	dsn := db.DSN(
		configuration.DB_USER, configuration.DB_PASSWORD,
		configuration.DB_HOST, configuration.DB_PORT, configuration.DB_NAME,
	)
	database, err := db.Open(ctx, dsn)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	if err := database.AutoMigrate(&models.User{}); err != nil {
		log.Fatalf("db migrate error: %v", err)
	}

	userRepo := &repo.GormRepo{DB: database}
	mailer := mail.NewSendGridSender(configuration.SENDGRID_API_KEY, configuration.ADMIN_EMAIL)
	svc := &service.AccountService{
		Repo:      userRepo,
		Mailer:    mailer,
		JWTSecret: []byte(configuration.JWT_SECRET),
		Hostname:  configuration.APPLICATION_HOSTNAME,
	}

	var producer *events.Producer
	if configuration.KAFKA_ADDRESS != "" {
		producer = events.NewProducer([]string{configuration.KAFKA_ADDRESS}, "user_events")
	}

	seedAdmin(ctx, configuration, userRepo)

	e := echo.New()
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover(), echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		AuthHandler:  &httpserver.AuthHTTP{Svc: svc, Producer: producer},
		UserHandler:  &httpserver.UserHTTP{},
		EmailHandler: &httpserver.EmailHTTP{Mailer: mailer},
		Guard:        middleware.NewRequireUser(svc),
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", configuration.SERVER_PORT),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := database.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := producer.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}

// seedAdmin creates the configured admin account if it does not exist yet.
// Failures are logged and ignored, same as the rest of startup continues
// without an admin.
func seedAdmin(ctx context.Context, cfg *config.Config, r *repo.GormRepo) {
	if cfg.ADMIN_USERNAME == "" || cfg.ADMIN_EMAIL == "" || cfg.ADMIN_PASSWORD == "" {
		return
	}
	if _, err := r.UserByUsername(ctx, cfg.ADMIN_USERNAME); err == nil {
		return
	}

	pwHash, err := pkg_hash.HashPassword(cfg.ADMIN_PASSWORD)
	if err != nil {
		log.Printf("admin seed error: %v", err)
		return
	}
	admin := models.User{
		Email:         cfg.ADMIN_EMAIL,
		Username:      cfg.ADMIN_USERNAME,
		FullName:      cfg.ADMIN_FULL_NAME,
		PasswordHash:  pwHash,
		IsActive:      true,
		VerifiedEmail: true,
	}
	if err := r.CreateUser(ctx, &admin); err != nil {
		log.Printf("admin seed error for %s: %v", cfg.ADMIN_EMAIL, err)
	}
}
