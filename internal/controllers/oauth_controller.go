package controllers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-oauth2/oauth2/v4"
	oautherrors "github.com/go-oauth2/oauth2/v4/errors"
	"github.com/sirupsen/logrus"

	"github.com/franciscosanchezn/gin-account-api/internal/auth"
	"github.com/franciscosanchezn/gin-account-api/internal/middleware"
	"github.com/franciscosanchezn/gin-account-api/internal/models"
	"github.com/franciscosanchezn/gin-account-api/internal/services"
)

// OAuthController serves the authorization_code and refresh_token flows.
type OAuthController struct {
	manager       *auth.Manager[*models.User]
	clientService services.ClientService
}

func NewOAuthController(manager *auth.Manager[*models.User], clientService services.ClientService) *OAuthController {
	return &OAuthController{manager: manager, clientService: clientService}
}

// TokenResponse is the RFC 6749 section 5.1 success body.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Authorize godoc
// @Summary Authorization endpoint
// @Description Issue an authorization code for the logged-in user and redirect back to the client
// @Tags OAuth2
// @Produce json
// @Param response_type query string true "Must be code"
// @Param client_id query string true "Client ID"
// @Param redirect_uri query string false "Registered redirect URI"
// @Param state query string false "Opaque value echoed back"
// @Param scope query string false "Space separated scopes"
// @Success 302
// @Failure 400 {object} models.OAuth2Error
// @Failure 401 {object} models.APIError
// @Router /api/v1/oauth/authorize [get]
func (oc *OAuthController) Authorize(c *gin.Context) {
	user, ok := middleware.CurrentUser[*models.User](c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.NewAPIError(models.ErrSessionMissing, "Login required"))
		return
	}

	clientID := c.Query("client_id")
	if clientID == "" {
		respondOAuthError(c, oautherrors.ErrInvalidRequest)
		return
	}
	client, err := oc.clientService.GetClientByID(c.Request.Context(), clientID)
	if errors.Is(err, services.ErrClientNotFound) {
		respondOAuthError(c, oautherrors.ErrInvalidClient)
		return
	}
	if err != nil {
		log.WithError(err).WithField("client_id", clientID).Error("Client lookup failed")
		respondOAuthError(c, oautherrors.ErrServerError)
		return
	}

	redirectURI, ok := resolveRedirect(client, c.Query("redirect_uri"))
	if !ok {
		// never redirect to an unregistered location
		respondOAuthError(c, oautherrors.ErrInvalidRequest)
		return
	}

	var state *string
	if value, present := c.GetQuery("state"); present {
		state = &value
	}

	target, err := url.Parse(redirectURI)
	if err != nil {
		respondOAuthError(c, oautherrors.ErrInvalidRequest)
		return
	}
	query := target.Query()
	if state != nil {
		query.Set("state", *state)
	}

	if oauth2.ResponseType(c.Query("response_type")) != oauth2.Code {
		query.Set("error", oautherrors.ErrUnsupportedResponseType.Error())
		target.RawQuery = query.Encode()
		c.Redirect(http.StatusFound, target.String())
		return
	}

	scope := strings.Fields(c.Query("scope"))
	code, err := oc.manager.NewClientCode(c.Request.Context(), user, client.ID, state, scope)
	if err != nil {
		log.WithError(err).WithField("client_id", client.ID).Error("Issuing authorization code failed")
		query.Set("error", oautherrors.ErrServerError.Error())
		target.RawQuery = query.Encode()
		c.Redirect(http.StatusFound, target.String())
		return
	}

	log.WithFields(logrus.Fields{
		"client_id": client.ID,
		"user_id":   user.ID,
	}).Info("Authorization code issued")

	query.Set("code", code.Code)
	if len(scope) > 0 {
		query.Set("scope", strings.Join(scope, " "))
	}
	target.RawQuery = query.Encode()
	c.Redirect(http.StatusFound, target.String())
}

// resolveRedirect picks the redirect target. An omitted redirect_uri is
// only accepted when the client registered exactly one.
func resolveRedirect(client *models.OAuthClient, requested string) (string, bool) {
	if requested == "" {
		if len(client.RedirectURIs) == 1 {
			return client.RedirectURIs[0], true
		}
		return "", false
	}
	return requested, client.AllowsRedirect(requested)
}

// Token godoc
// @Summary Token endpoint
// @Description Exchange an authorization code or rotate a client refresh token
// @Tags OAuth2
// @Accept x-www-form-urlencoded
// @Accept json
// @Produce json
// @Param grant_type formData string true "authorization_code or refresh_token"
// @Param client_id formData string true "Client ID"
// @Param client_secret formData string false "Client secret (authorization_code)"
// @Param code formData string false "Authorization code"
// @Param refresh_token formData string false "Refresh token"
// @Param state formData string false "State sent to the authorization endpoint"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} models.OAuth2Error
// @Failure 401 {object} models.OAuth2Error
// @Failure 500 {object} models.OAuth2Error
// @Router /api/v1/oauth/token [post]
func (oc *OAuthController) Token(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")

	var req models.TokenRequest
	if err := c.ShouldBind(&req); err != nil {
		respondOAuthError(c, oautherrors.ErrInvalidRequest)
		return
	}

	pair, err := oc.manager.Exchange(c.Request.Context(), req)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrDeclined):
		log.WithFields(logrus.Fields{
			"client_id":  req.ClientID,
			"grant_type": req.GrantType,
		}).Debug("Token request declined")
		respondOAuthError(c, oautherrors.ErrInvalidGrant)
		return
	case errors.Is(err, oautherrors.ErrInvalidRequest), errors.Is(err, oautherrors.ErrUnsupportedGrantType):
		respondOAuthError(c, err)
		return
	default:
		log.WithError(err).WithField("client_id", req.ClientID).Error("Token request failed")
		respondOAuthError(c, oautherrors.ErrServerError)
		return
	}

	c.JSON(http.StatusOK, TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(oc.manager.AccessTokenTTL().Seconds()),
	})
}

// respondOAuthError writes an RFC 6749 error body with the go-oauth2
// description. Client and grant failures answer 401, server errors 500,
// everything else 400.
func respondOAuthError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	switch err {
	case oautherrors.ErrInvalidClient, oautherrors.ErrInvalidGrant:
		status = http.StatusUnauthorized
	case oautherrors.ErrServerError:
		status = http.StatusInternalServerError
	}
	c.JSON(status, models.NewOAuth2Error(err.Error(), oautherrors.Descriptions[err]))
}
