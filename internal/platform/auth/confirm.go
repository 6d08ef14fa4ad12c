package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidConfirmToken = errors.New("invalid or expired confirmation token")

const confirmPurpose = "confirm"

type confirmClaims struct {
	jwt.RegisteredClaims
	Code    string `json:"code"`
	Purpose string `json:"purpose"`
}

// ConfirmationTokens signs one-click confirmation links for a reservation code.
type ConfirmationTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewConfirmationTokens(secret string, ttl time.Duration, now func() time.Time) *ConfirmationTokens {
	if now == nil {
		now = time.Now
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &ConfirmationTokens{secret: []byte(secret), ttl: ttl, now: now}
}

// Issue returns a signed token carrying code.
func (t *ConfirmationTokens) Issue(code string) (string, error) {
	now := t.now()
	claims := confirmClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		Code:    code,
		Purpose: confirmPurpose,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign confirmation token: %w", err)
	}
	return s, nil
}

// Parse verifies token and returns the reservation code it carries.
func (t *ConfirmationTokens) Parse(token string) (string, error) {
	claims := &confirmClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(t.now))
	if err != nil || !parsed.Valid || claims.Purpose != confirmPurpose || claims.Code == "" {
		return "", ErrInvalidConfirmToken
	}
	return claims.Code, nil
}
