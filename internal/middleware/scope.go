package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RequireScope rejects tokens that were not granted scope. First-party
// tokens issued without any scope are unrestricted; a token bound to an
// OAuth client must always carry scope explicitly.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get(ContextUserID)
		if !exists {
			respondWithOAuth2Error(c, http.StatusUnauthorized, "invalid_token", "User not authenticated")
			return
		}

		value, _ := c.Get(ContextScopes)
		scopes, _ := value.([]string)
		firstParty := clientID(c) == ""
		if (firstParty && len(scopes) == 0) || slices.Contains(scopes, scope) {
			c.Next()
			return
		}

		log.WithFields(logrus.Fields{
			"user_id":        userID,
			"client_id":      clientID(c),
			"required_scope": scope,
		}).Debug("Insufficient scope")
		c.Header("WWW-Authenticate", `Bearer error="insufficient_scope", scope="`+scope+`"`)
		respondWithOAuth2Error(c, http.StatusForbidden, "insufficient_scope",
			"The access token does not grant the "+scope+" scope")
	}
}

// FirstPartyOnly rejects access tokens that were issued to an OAuth client,
// whatever scope they carry.
func FirstPartyOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextUserID); !exists {
			respondWithOAuth2Error(c, http.StatusUnauthorized, "invalid_token", "User not authenticated")
			return
		}

		if client := clientID(c); client != "" {
			log.WithField("client_id", client).Debug("Client token used on a first-party route")
			c.Header("WWW-Authenticate", `Bearer error="insufficient_scope"`)
			respondWithOAuth2Error(c, http.StatusForbidden, "insufficient_scope",
				"OAuth client tokens cannot access this resource")
			return
		}
		c.Next()
	}
}

func clientID(c *gin.Context) string {
	value, _ := c.Get(ContextClientID)
	id, _ := value.(string)
	return id
}
