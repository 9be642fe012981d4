package auth

import (
	"errors"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
}

// SetLogLevel aligns the package logger with the application's level.
func SetLogLevel(level logrus.Level) {
	log.SetLevel(level)
}

var (
	// ErrDeclined is the single outward signal for an unknown user, a
	// non-matching secret, an expired or consumed token or a state
	// mismatch. Callers map it to a generic unauthorized response.
	ErrDeclined = errors.New("operation declined")

	// ErrInvalidToken is returned for any access token that fails
	// signature, issuer, audience or expiry checks.
	ErrInvalidToken = errors.New("invalid access token")

	// ErrSecretCollision is returned when every freshly generated refresh
	// token collided with a live one.
	ErrSecretCollision = errors.New("could not generate a unique refresh token")
)
