package controllers

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/franciscosanchezn/gin-account-api/internal/middleware"
	"github.com/franciscosanchezn/gin-account-api/internal/models"
	"github.com/franciscosanchezn/gin-account-api/internal/services"
)

type ClientController struct {
	clientService services.ClientService
}

func NewClientController(clientService services.ClientService) *ClientController {
	return &ClientController{clientService: clientService}
}

type createClientRequest struct {
	RedirectURIs []string `json:"redirect_uris"`
}

// CreateClient godoc
// @Summary Create OAuth2 client
// @Description Register an OAuth2 client owned by the authenticated user. The secret is returned only once.
// @Tags OAuth2 Clients
// @Accept json
// @Produce json
// @Param client body createClientRequest false "Redirect URIs"
// @Success 201 {object} models.APIClient
// @Failure 400 {object} models.APIError
// @Failure 500 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/clients [post]
func (cc *ClientController) CreateClient(c *gin.Context) {
	var req createClientRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrValidationFailed, err.Error()))
			return
		}
	}
	for _, uri := range req.RedirectURIs {
		if parsed, err := url.Parse(uri); err != nil || !parsed.IsAbs() {
			c.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrValidationFailed, "redirect_uris must be absolute URLs",
				map[string]interface{}{"redirect_uri": uri}))
			return
		}
	}

	owner, ok := middleware.CurrentUser[*models.User](c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.NewAPIError(models.ErrUnauthorized, "Not authenticated"))
		return
	}

	client, err := cc.clientService.CreateClient(c.Request.Context(), owner, req.RedirectURIs)
	if err != nil {
		log.WithError(err).WithField("user_id", owner.ID).Error("Client registration failed")
		c.JSON(http.StatusInternalServerError, models.NewAPIError(models.ErrInternalServer, "client_creation_failed"))
		return
	}

	c.JSON(http.StatusCreated, client)
}

// ListClients godoc
// @Summary List OAuth2 clients
// @Description Get all OAuth2 clients owned by the authenticated user
// @Tags OAuth2 Clients
// @Produce json
// @Success 200 {array} models.OAuthClient
// @Failure 500 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/clients [get]
func (cc *ClientController) ListClients(c *gin.Context) {
	userID := c.GetInt(middleware.ContextUserID)
	clients, err := cc.clientService.GetClientsByUserID(c.Request.Context(), userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Listing clients failed")
		c.JSON(http.StatusInternalServerError, models.NewAPIError(models.ErrInternalServer, "failed_to_retrieve_clients"))
		return
	}

	c.JSON(http.StatusOK, clients)
}
