package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Skotchmaster/user_service/internal/logging"
	"github.com/Skotchmaster/user_service/internal/mail"
	"github.com/Skotchmaster/user_service/internal/models"
	"github.com/Skotchmaster/user_service/internal/repo"
	"github.com/Skotchmaster/user_service/internal/tokens"
	pkg_hash "github.com/Skotchmaster/user_service/pkg/hash"
)

// TokenTTL applies to both session and email-verification tokens.
const TokenTTL = 30 * time.Minute

var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrEmailNotVerified   = errors.New("please verify your email address")
	ErrInvalidToken       = errors.New("could not validate credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrAlreadyVerified    = errors.New("email already verified")
	ErrInactiveUser       = errors.New("inactive user")
)

type AccountService struct {
	Repo      *repo.GormRepo
	Mailer    mail.Sender
	JWTSecret []byte
	Hostname  string
}

// Register creates an unverified account. The duplicate checks run before
// the insert; two racing registrations can both pass them, in which case
// the unique index rejects the loser with a plain DB error instead of the
// friendly conflict.
func (s *AccountService) Register(ctx context.Context, username, password, fullName, email string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "account.register", "username", username)

	if _, err := s.Repo.UserByUsername(ctx, username); err == nil {
		l.Warn("register_failed", "reason", "username_taken")
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	if _, err := s.Repo.UserByEmail(ctx, email); err == nil {
		l.Warn("register_failed", "reason", "email_taken")
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	pwHash, err := pkg_hash.HashPassword(password)
	if err != nil {
		l.Error("register_failed", "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	user := models.User{
		Email:        email,
		Username:     username,
		FullName:     fullName,
		PasswordHash: pwHash,
		IsActive:     true,
	}
	if err := s.Repo.CreateUser(ctx, &user); err != nil {
		l.Error("register_failed", "reason", "db_error", "error", err)
		return nil, err
	}

	l.Info("register_success", "user_id", user.ID)
	return &user, nil
}

// VerificationLink embeds a 30-minute verification token for the user's
// email address into the public confirm URL.
func (s *AccountService) VerificationLink(user *models.User) (string, error) {
	token, err := tokens.SignVerificationToken(user.Email, s.JWTSecret, TokenTTL)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/auth/verify_email?token=%s", s.Hostname, token), nil
}

func (s *AccountService) TriggerEmailVerification(ctx context.Context, user *models.User) error {
	l := logging.FromContext(ctx).With("svc", "account.verification_email", "username", user.Username)

	link, err := s.VerificationLink(user)
	if err != nil {
		l.Error("verification_email_failed", "reason", "cannot sign token", "error", err)
		return err
	}

	subject := fmt.Sprintf("Email verification for %s", s.Hostname)
	if err := s.Mailer.Send(ctx, user.Email, subject, link); err != nil {
		l.Error("verification_email_failed", "reason", "send_error", "error", err)
		return err
	}

	l.Info("verification_email_sent")
	return nil
}

// ResendEmailVerification re-sends the confirmation link for an account
// that has not verified its address yet.
func (s *AccountService) ResendEmailVerification(ctx context.Context, username string) error {
	user, err := s.Repo.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if user.VerifiedEmail {
		return ErrAlreadyVerified
	}
	return s.TriggerEmailVerification(ctx, user)
}

func (s *AccountService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "account.authenticate", "username", username)

	user, err := s.Repo.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Warn("authenticate_failed", "reason", "unknown_user")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !pkg_hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("authenticate_failed", "reason", "wrong_password")
		return nil, ErrInvalidCredentials
	}
	if !user.VerifiedEmail {
		l.Warn("authenticate_failed", "reason", "email_not_verified")
		return nil, ErrEmailNotVerified
	}
	return user, nil
}

func (s *AccountService) GenerateAccessToken(user *models.User) (string, error) {
	return tokens.SignAccessToken(user.Username, s.JWTSecret, TokenTTL)
}

// VerifyEmail confirms the address carried by a verification token and
// returns the updated user. Calling it twice succeeds both times.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "account.verify_email")

	claims, err := tokens.VerificationClaimsFromToken(token, s.JWTSecret)
	if err != nil {
		l.Warn("verify_email_failed", "reason", "invalid_token")
		return nil, ErrInvalidToken
	}

	user, err := s.Repo.MarkEmailVerified(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Warn("verify_email_failed", "reason", "unknown_email")
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	l.Info("verify_email_success", "username", user.Username)
	return user, nil
}

// CurrentUser resolves a bearer token's username claim to an account.
func (s *AccountService) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	claims, err := tokens.AccessClaimsFromToken(token, s.JWTSecret)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.Repo.UserByUsername(ctx, claims.Username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	return user, nil
}
