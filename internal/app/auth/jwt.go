// Package auth issues and validates user access/refresh tokens, hashes
// passwords and project keys, and derives the daily-rotating IP hash secret.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes access from refresh tokens; both carry it in the
// jti-bearing claims so a stolen access token cannot be replayed as a
// refresh token even if the credential store lookup were somehow bypassed.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// Claims is the JWT payload for both access and refresh tokens.
type Claims struct {
	Type TokenType `json:"type"`
	jwt.RegisteredClaims
}

var ErrInvalidToken = errors.New("invalid token")

// TokenManager issues and validates HS256 JWTs. The jti minted for each
// token is also the key used in the Redis-backed CredentialStore, so
// revocation is enforced there, not by JWT expiry alone.
type TokenManager struct {
	secret []byte
}

func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret)}
}

// Issue signs a token of the given type for userID, returning the signed
// string and the jti the caller must register in the credential store.
func (m *TokenManager) Issue(userID string, typ TokenType, ttl time.Duration) (signed string, jti string, exp time.Time, err error) {
	jti = uuid.NewString()
	exp = time.Now().Add(ttl)
	claims := Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err = token.SignedString(m.secret)
	return signed, jti, exp, err
}

// Validate parses and signature/expiry-checks a token, returning its claims.
// It does NOT consult the credential store — callers must additionally check
// revocation there, since presence-as-validity is the source of truth for
// logout/rotation.
func (m *TokenManager) Validate(tokenString string, want TokenType) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != want {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
