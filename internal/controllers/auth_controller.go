package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/franciscosanchezn/gin-account-api/internal/auth"
	"github.com/franciscosanchezn/gin-account-api/internal/middleware"
	"github.com/franciscosanchezn/gin-account-api/internal/models"
	"github.com/franciscosanchezn/gin-account-api/internal/services"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
}

// CookieSettings controls the login cookie written by AuthController.
type CookieSettings struct {
	Name   string
	MaxAge time.Duration
	Secure bool
}

type AuthController struct {
	userService services.UserService
	manager     *auth.Manager[*models.User]
	cookie      CookieSettings
}

func NewAuthController(userService services.UserService, manager *auth.Manager[*models.User], cookie CookieSettings) *AuthController {
	return &AuthController{
		userService: userService,
		manager:     manager,
		cookie:      cookie,
	}
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	UserID       int    `json:"user_id"`
	RefreshToken string `json:"refresh_token"`
}

// Register godoc
// @Summary Register account
// @Description Create a user account with a random 8-digit user ID
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body credentialsRequest true "Username and password"
// @Success 201 {object} models.User
// @Failure 400 {object} models.APIError
// @Failure 409 {object} models.APIError
// @Failure 500 {object} models.APIError
// @Router /api/v1/auth/register [post]
func (ac *AuthController) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrValidationFailed, err.Error()))
		return
	}

	user, err := ac.userService.Register(c.Request.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, user)
	case errors.Is(err, services.ErrUserAlreadyExists):
		c.JSON(http.StatusConflict, models.NewAPIError(models.ErrUserExists, "Username is already taken"))
	case errors.Is(err, services.ErrInvalidUsername), errors.Is(err, services.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrValidationFailed, err.Error()))
	default:
		log.WithError(err).Error("Registration failed")
		c.JSON(http.StatusInternalServerError, models.NewAPIError(models.ErrInternalServer, "Registration failed"))
	}
}

// Login godoc
// @Summary Log in
// @Description Verify credentials, set the session cookie and return a token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body credentialsRequest true "Username and password"
// @Success 200 {object} models.TokenPair
// @Failure 400 {object} models.APIError
// @Failure 401 {object} models.APIError
// @Failure 500 {object} models.APIError
// @Router /api/v1/auth/login [post]
func (ac *AuthController) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrValidationFailed, err.Error()))
		return
	}

	ctx := c.Request.Context()
	user, err := ac.manager.VerifyLogin(ctx, req.Username, req.Password)
	if err != nil {
		ac.respondDeclinable(c, err, "Login failed")
		return
	}

	pair, err := ac.manager.CreateTokenPair(ctx, user, auth.PairOptions{})
	if err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("Token issuance failed")
		c.JSON(http.StatusInternalServerError, models.NewAPIError(models.ErrInternalServer, "Login failed"))
		return
	}

	if err := ac.setSession(c, user.ID, pair); err != nil {
		log.WithError(err).Error("Failed to write session cookie")
	}
	log.WithField("user_id", user.ID).Info("User logged in")
	c.JSON(http.StatusOK, pair)
}

// Refresh godoc
// @Summary Rotate refresh token
// @Description Consume a refresh token and return a new pair. The body is optional when the session cookie is present.
// @Tags auth
// @Accept json
// @Produce json
// @Param refresh body refreshRequest false "User ID and refresh token"
// @Success 200 {object} models.TokenPair
// @Failure 400 {object} models.APIError
// @Failure 401 {object} models.APIError
// @Failure 500 {object} models.APIError
// @Router /api/v1/auth/refresh [post]
func (ac *AuthController) Refresh(c *gin.Context) {
	req, ok := ac.refreshCredentials(c)
	if !ok {
		c.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrSessionMissing, "user_id and refresh_token are required"))
		return
	}

	pair, err := ac.manager.RefreshByUser(c.Request.Context(), req.UserID, req.RefreshToken, time.Time{})
	if err != nil {
		ac.clearSession(c)
		ac.respondDeclinable(c, err, "Refresh failed")
		return
	}

	if err := ac.setSession(c, req.UserID, pair); err != nil {
		log.WithError(err).Error("Failed to write session cookie")
	}
	c.JSON(http.StatusOK, pair)
}

// Logout godoc
// @Summary Log out
// @Description Revoke the refresh token and clear the session cookie
// @Tags auth
// @Accept json
// @Param refresh body refreshRequest false "User ID and refresh token"
// @Success 204
// @Failure 500 {object} models.APIError
// @Router /api/v1/auth/logout [post]
func (ac *AuthController) Logout(c *gin.Context) {
	req, ok := ac.refreshCredentials(c)
	ac.clearSession(c)
	if ok {
		err := ac.manager.Revoke(c.Request.Context(), req.UserID, req.RefreshToken)
		if err != nil && !errors.Is(err, auth.ErrDeclined) {
			log.WithError(err).Error("Revocation failed")
			c.JSON(http.StatusInternalServerError, models.NewAPIError(models.ErrInternalServer, "Logout failed"))
			return
		}
	}
	c.Status(http.StatusNoContent)
}

// Me godoc
// @Summary Current user
// @Description Return the authenticated user
// @Tags auth
// @Produce json
// @Success 200 {object} models.User
// @Failure 401 {object} models.OAuth2Error
// @Security BearerAuth
// @Router /api/v1/me [get]
func (ac *AuthController) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser[*models.User](c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.NewAPIError(models.ErrUnauthorized, "Not authenticated"))
		return
	}
	c.JSON(http.StatusOK, user)
}

// refreshCredentials takes the body when it names a token and falls back
// to the session cookie otherwise.
func (ac *AuthController) refreshCredentials(c *gin.Context) (refreshRequest, bool) {
	var req refreshRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			return req, false
		}
	}
	if req.UserID > 0 && req.RefreshToken != "" {
		return req, true
	}

	value, err := c.Cookie(ac.cookie.Name)
	if err != nil {
		return req, false
	}
	session, err := models.DecodeLoginCookie(value)
	if err != nil || session.UserID <= 0 || session.RefreshToken == "" {
		return req, false
	}
	return refreshRequest{UserID: session.UserID, RefreshToken: session.RefreshToken}, true
}

func (ac *AuthController) setSession(c *gin.Context, userID int, pair *models.TokenPair) error {
	value, err := models.LoginCookie{
		UserID:       userID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}.Encode()
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ac.cookie.Name, value, int(ac.cookie.MaxAge.Seconds()), "/", "", ac.cookie.Secure, true)
	return nil
}

func (ac *AuthController) clearSession(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ac.cookie.Name, "", -1, "/", "", ac.cookie.Secure, true)
}

func (ac *AuthController) respondDeclinable(c *gin.Context, err error, message string) {
	if errors.Is(err, auth.ErrDeclined) {
		c.JSON(http.StatusUnauthorized, models.NewAPIError(models.ErrInvalidCredentials, message))
		return
	}
	log.WithError(err).Error(message)
	c.JSON(http.StatusInternalServerError, models.NewAPIError(models.ErrInternalServer, message))
}
