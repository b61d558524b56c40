package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry reads the exp claim of a JWT bearer token without verifying the
// signature; the backend owns verification. ok is false for opaque tokens and
// JWTs without exp.
func TokenExpiry(token string) (exp time.Time, ok bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func TokenExpired(token string, now time.Time) bool {
	exp, ok := TokenExpiry(token)
	return ok && !exp.After(now)
}
