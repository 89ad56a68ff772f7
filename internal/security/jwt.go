package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errAuthDisabled = errors.New("admin session tokens not configured")

// jwtIssuer signs and verifies admin session tokens layered over API-key
// auth: a session carries the issuing principal's id as its subject so
// audit events stay attributable to a real principal even when the
// caller authenticates with a short-lived token instead of its raw key.
type jwtIssuer struct {
	secret []byte
	expiry time.Duration
}

func newJWTIssuer(secret string, expiry time.Duration) *jwtIssuer {
	return &jwtIssuer{secret: []byte(secret), expiry: expiry}
}

func (j *jwtIssuer) issue(principalID string) (string, error) {
	if strings.TrimSpace(principalID) == "" {
		return "", errors.New("principal id required")
	}
	claims := jwt.RegisteredClaims{
		Subject:   principalID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(j.expiry)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

func (j *jwtIssuer) validate(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return j.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("invalid admin session token")
	}
	return claims.Subject, nil
}
