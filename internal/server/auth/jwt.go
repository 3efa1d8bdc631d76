// Package auth holds session token, password hashing and identity context
// helpers shared by the gate, the authentication flow and the HTTP layer.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/bizdesk/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Identity is the verified content of a session token.
type Identity struct {
	ID        int64
	Username  string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Claims are the registered claims plus the user fields carried by a
// session token.
type Claims struct {
	jwt.RegisteredClaims
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// TokenIssuer mints and verifies HS256 session tokens.
type TokenIssuer struct {
	secret   []byte
	issuer   string
	validity time.Duration
	now      func() time.Time
}

func NewTokenIssuer(secret []byte, issuer string, validity time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: secret, issuer: issuer, validity: validity, now: time.Now}
}

// Validity is the lifetime of generated tokens.
func (t *TokenIssuer) Validity() time.Duration {
	return t.validity
}

// Generate returns a signed token for the user valid for the configured
// duration. Every token carries a fresh jti.
func (t *TokenIssuer) Generate(id int64, username, email string) (string, error) {
	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.validity)),
		},
		ID:       id,
		Username: username,
		Email:    email,
	})

	tokenString, err := token.SignedString(t.secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// Parse verifies signature and expiry and returns the identity. Expired
// tokens yield common.ErrTokenExpired, anything else common.ErrInvalidToken.
func (t *TokenIssuer) Parse(tokenString string) (Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(tk *jwt.Token) (interface{}, error) {
		if _, ok := tk.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tk.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, common.ErrTokenExpired
		}
		return Identity{}, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.ID == 0 {
		return Identity{}, common.ErrInvalidToken
	}

	id := Identity{ID: claims.ID, Username: claims.Username, Email: claims.Email}
	if claims.IssuedAt != nil {
		id.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}

	return id, nil
}
