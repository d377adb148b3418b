package auth

import (
	"fmt"
	"time"

	"my-chat-backend/domain"
	"my-chat-backend/errors"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "my-chat-backend"

// Claims is the payload of the tokens issued by the account service.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 tokens with a shared secret.
type Tokens struct {
	secret   []byte
	duration time.Duration
	now      func() time.Time
}

func NewTokens(secret string, duration time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), duration: duration, now: time.Now}
}

// Generate issues a token for userID. Production tokens come from the
// account service; this is used by tooling and tests.
func (t *Tokens) Generate(userID domain.UserID) (string, error) {
	now := t.now()
	claims := &Claims{
		UserID: string(userID),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(userID),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.duration)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Validate checks signature and expiry and returns the user of the token.
func (t *Tokens) Validate(tokenString string) (domain.UserID, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return "", errors.ErrInvalidToken
	}
	return domain.UserID(claims.UserID), nil
}
