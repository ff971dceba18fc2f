package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is used when the caller passes a non-positive ttl.
const DefaultTTL = 15 * time.Minute

var ErrInvalidToken = errors.New("invalid token")

type AccessClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// VerificationClaims carries the email address being confirmed. The claim
// name tags the token's purpose so an access token can never pass as a
// verification token and vice versa.
type VerificationClaims struct {
	Email string `json:"email_verification"`
	jwt.RegisteredClaims
}

func SignAccessToken(username string, secret []byte, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	claims := AccessClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

func SignVerificationToken(email string, secret []byte, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	claims := VerificationClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

func AccessClaimsFromToken(tokenStr string, secret []byte) (*AccessClaims, error) {
	var claims AccessClaims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return secret, nil
	})
	if err != nil || !tkn.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Username == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func VerificationClaimsFromToken(tokenStr string, secret []byte) (*VerificationClaims, error) {
	var claims VerificationClaims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return secret, nil
	})
	if err != nil || !tkn.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Email == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
