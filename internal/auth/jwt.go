// Package auth mints and verifies the signed cookie that binds a browser to
// a dashboard session.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that does not resolve to a
// session ID: bad signature, wrong issuer, expired, or malformed claims.
var ErrInvalidToken = errors.New("auth: invalid session token")

type TokenConfig struct {
	Secret string
	Expiry time.Duration
	Issuer string
}

// sessionClaims carry the session ID as the subject. The subject is not a
// user: identity lives in the session itself and may still be anonymous.
type sessionClaims struct {
	jwt.RegisteredClaims
}

// CreateToken signs a token for the session ID. Each token gets a unique ID
// so two logins in the same second still produce distinct cookies.
func CreateToken(sessionID string, cfg TokenConfig) (string, error) {
	if cfg.Secret == "" {
		return "", errors.New("missing secret")
	}
	if sessionID == "" {
		return "", errors.New("missing sessionID")
	}
	if cfg.Expiry <= 0 {
		return "", errors.New("invalid expiry")
	}

	jtiBytes := make([]byte, 16)
	if _, err := rand.Read(jtiBytes); err != nil {
		return "", err
	}

	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.Expiry)),
			ID:        hex.EncodeToString(jtiBytes),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

// VerifyToken validates the token and returns the session ID it binds.
func VerifyToken(tokenString string, cfg TokenConfig) (string, error) {
	if cfg.Secret == "" {
		return "", errors.New("missing secret")
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &sessionClaims{},
		func(t *jwt.Token) (interface{}, error) {
			return []byte(cfg.Secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
