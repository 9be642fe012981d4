package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/franciscosanchezn/gin-account-api/internal/auth"
	"github.com/franciscosanchezn/gin-account-api/internal/middleware"
	"github.com/franciscosanchezn/gin-account-api/internal/models"
	"github.com/franciscosanchezn/gin-account-api/internal/services"
	"github.com/franciscosanchezn/gin-account-api/internal/store"
)

const testCookie = "as-login"

type testApp struct {
	router      *gin.Engine
	manager     *auth.Manager[*models.User]
	credentials *store.CredentialStore[*models.User]
	users       services.UserService
}

func setupTestApp(t *testing.T) *testApp {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, store.AutoMigrate(db))

	credentials := store.New(store.NewGormCollections(db))
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	codec := auth.NewTokenCodec("test-jwt-secret-key-32-characters", "http://localhost:8080", "http://localhost:8080/api/v1")
	manager := auth.NewManager(credentials, codec, hasher, auth.Lifetimes{})
	gateway := auth.NewGateway(codec, credentials)

	users := services.NewUserService(credentials, hasher)
	clients := services.NewClientService(credentials, manager)
	authController := NewAuthController(users, manager, CookieSettings{Name: testCookie, MaxAge: time.Hour})
	clientController := NewClientController(clients)
	oauthController := NewOAuthController(manager, clients)

	router := gin.New()
	v1 := router.Group("/api/v1")
	{
		authApi := v1.Group("/auth")
		authApi.POST("/register", authController.Register)
		authApi.POST("/login", authController.Login)
		authApi.POST("/refresh", authController.Refresh)
		authApi.POST("/logout", authController.Logout)

		bearer := middleware.BearerAuth[*models.User](gateway, "Account Token", testCookie)
		v1.GET("/me", bearer, middleware.RequireScope("profile"), authController.Me)
		v1.POST("/clients", bearer, middleware.FirstPartyOnly(), middleware.RequireScope("clients"), clientController.CreateClient)
		v1.GET("/clients", bearer, middleware.FirstPartyOnly(), middleware.RequireScope("clients"), clientController.ListClients)

		oauthApi := v1.Group("/oauth")
		oauthApi.GET("/authorize", middleware.SessionAuth[*models.User](gateway, testCookie), oauthController.Authorize)
		oauthApi.POST("/token", oauthController.Token)
	}

	return &testApp{router: router, manager: manager, credentials: credentials, users: users}
}

func (a *testApp) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func formRequest(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == testCookie {
			return cookie
		}
	}
	return nil
}

// registerAndLogin creates alice and returns her pair and session cookie.
func (a *testApp) registerAndLogin(t *testing.T) (*models.User, models.TokenPair, *http.Cookie) {
	t.Helper()
	user, err := a.users.Register(context.Background(), "alice", "password1")
	require.NoError(t, err)

	w := a.do(t, jsonRequest(t, http.MethodPost, "/api/v1/auth/login", gin.H{"username": "alice", "password": "password1"}))
	require.Equal(t, http.StatusOK, w.Code)

	var pair models.TokenPair
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pair))
	cookie := sessionCookie(w)
	require.NotNil(t, cookie)
	return user, pair, cookie
}
