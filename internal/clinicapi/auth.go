package clinicapi

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpired inspects a bearer token's exp claim without verifying the
// signature (verification is the backend's job). An expired token lets the
// client surface ErrUnauthorized before wasting a round trip; tokens that
// are not JWTs or carry no exp claim are passed through to the backend.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}
