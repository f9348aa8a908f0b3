package backend

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// TokenExpiry returns the exp claim of a JWT bearer token without verifying it.
// ok is false for opaque tokens and tokens without exp.
func TokenExpiry(token string) (exp time.Time, ok bool) {
	if token == "" {
		return time.Time{}, false
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	date, err := parsed.Claims.GetExpirationTime()
	if err != nil || date == nil {
		return time.Time{}, false
	}
	return date.Time, true
}

func warnIfExpired(logger *logrus.Logger, token string, now time.Time) bool {
	exp, ok := TokenExpiry(token)
	if !ok || exp.After(now) {
		return false
	}
	logger.WithField("expired_at", exp.Format(time.RFC3339)).
		Warn("API token is expired; ingestion requests will likely be rejected")
	return true
}
