package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/franciscosanchezn/gin-account-api/internal/auth"
	"github.com/franciscosanchezn/gin-account-api/internal/models"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
}

// Context keys set by the authentication middleware.
const (
	ContextUser     = "user"
	ContextUserID   = "userID"
	ContextScopes   = "scopes"
	ContextClientID = "client_id" // empty for first-party tokens
	ContextAuthType = "auth_type"
	ContextSession  = "session"
)

// Authenticator resolves an access token to its user. *auth.Gateway
// satisfies it.
type Authenticator[T models.Identity] interface {
	Authenticate(ctx context.Context, accessToken string) (T, *auth.AccessClaims, error)
}

// BearerAuth authenticates requests with an RFC 6750 bearer token. When
// the Authorization header is absent the access token of the session
// cookie is accepted instead.
func BearerAuth[T models.Identity](authenticator Authenticator[T], realm, cookieName string) gin.HandlerFunc {
	challenge := fmt.Sprintf("Bearer realm=%q", realm)

	return func(c *gin.Context) {
		tokenString, authType, err := bearerToken(c, cookieName)
		if err != nil {
			c.Header("WWW-Authenticate", challenge)
			respondWithOAuth2Error(c, http.StatusUnauthorized, "invalid_request", err.Error())
			return
		}

		user, claims, err := authenticator.Authenticate(c.Request.Context(), tokenString)
		if err != nil {
			if !errors.Is(err, auth.ErrDeclined) {
				log.WithError(err).Error("Bearer authentication failed")
				respondWithOAuth2Error(c, http.StatusInternalServerError, "server_error", "Authentication is unavailable")
				return
			}
			c.Header("WWW-Authenticate", challenge+`, error="invalid_token"`)
			respondWithOAuth2Error(c, http.StatusUnauthorized, "invalid_token",
				"The access token is invalid or expired")
			return
		}

		setIdentity(c, user, claims, authType)
		c.Next()
	}
}

func bearerToken(c *gin.Context, cookieName string) (string, string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return "", "", errors.New("Authorization header must use Bearer scheme. Format: 'Bearer <token>'")
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if tokenString == "" {
			return "", "", errors.New("Bearer token is empty")
		}
		return tokenString, "bearer", nil
	}

	session, err := sessionFromCookie(c, cookieName)
	if err != nil {
		return "", "", errors.New("Missing Authorization header. A valid Bearer token is required.")
	}
	return session.AccessToken, "cookie", nil
}

// SessionAuth authenticates browser requests carrying the login cookie.
// The cookie's access token must still be valid and belong to the user
// named by the cookie.
func SessionAuth[T models.Identity](authenticator Authenticator[T], cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := sessionFromCookie(c, cookieName)
		if err != nil {
			c.JSON(http.StatusUnauthorized, models.NewAPIError(models.ErrSessionMissing, "Login required"))
			c.Abort()
			return
		}

		user, claims, err := authenticator.Authenticate(c.Request.Context(), session.AccessToken)
		if err != nil {
			if !errors.Is(err, auth.ErrDeclined) {
				log.WithError(err).Error("Session authentication failed")
				c.JSON(http.StatusInternalServerError, models.NewAPIError(models.ErrInternalServer, "Authentication is unavailable"))
				c.Abort()
				return
			}
			c.JSON(http.StatusUnauthorized, models.NewAPIError(models.ErrUnauthorized, "Session expired"))
			c.Abort()
			return
		}
		if user.GetUserID() != session.UserID {
			log.WithField("user_id", session.UserID).Warn("Session cookie user does not match its access token")
			c.JSON(http.StatusUnauthorized, models.NewAPIError(models.ErrUnauthorized, "Session expired"))
			c.Abort()
			return
		}

		c.Set(ContextSession, session)
		setIdentity(c, user, claims, "session")
		c.Next()
	}
}

func sessionFromCookie(c *gin.Context, cookieName string) (models.LoginCookie, error) {
	value, err := c.Cookie(cookieName)
	if err != nil || value == "" {
		return models.LoginCookie{}, errors.New("no session cookie")
	}
	session, err := models.DecodeLoginCookie(value)
	if err != nil {
		return models.LoginCookie{}, err
	}
	if session.AccessToken == "" {
		return models.LoginCookie{}, errors.New("session has no access token")
	}
	return session, nil
}

func setIdentity[T models.Identity](c *gin.Context, user T, claims *auth.AccessClaims, authType string) {
	c.Set(ContextUser, user)
	c.Set(ContextUserID, user.GetUserID())
	c.Set(ContextScopes, claims.Scopes())
	c.Set(ContextClientID, claims.ClientID)
	c.Set(ContextAuthType, authType)
}

// CurrentUser returns the user stored by BearerAuth or SessionAuth.
func CurrentUser[T models.Identity](c *gin.Context) (T, bool) {
	var zero T
	value, exists := c.Get(ContextUser)
	if !exists {
		return zero, false
	}
	user, ok := value.(T)
	return user, ok
}

// respondWithOAuth2Error responds with RFC 6750 compliant error format
func respondWithOAuth2Error(c *gin.Context, status int, errorCode, description string) {
	c.JSON(status, models.NewOAuth2Error(errorCode, description))
	c.Abort()
}
