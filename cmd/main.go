package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	_ "github.com/franciscosanchezn/gin-account-api/docs" // Import generated docs
	"github.com/franciscosanchezn/gin-account-api/internal/auth"
	"github.com/franciscosanchezn/gin-account-api/internal/config"
	"github.com/franciscosanchezn/gin-account-api/internal/controllers"
	"github.com/franciscosanchezn/gin-account-api/internal/database"
	"github.com/franciscosanchezn/gin-account-api/internal/middleware"
	"github.com/franciscosanchezn/gin-account-api/internal/models"
	"github.com/franciscosanchezn/gin-account-api/internal/services"
	"github.com/franciscosanchezn/gin-account-api/internal/store"
)

var (
	db               *gorm.DB
	configuration    *config.Config
	credentials      *store.CredentialStore[*models.User]
	gateway          *auth.Gateway[*models.User]
	authController   *controllers.AuthController
	clientController *controllers.ClientController
	oauthController  *controllers.OAuthController
)

// @title Account API
// @version 1.0
// @description Account service issuing rotating refresh tokens, JWT access tokens and OAuth2 authorization codes
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.
func main() {
	// Load environment variables
	loadDotenvFile()

	// Initialize logger
	setUpLogger()

	// Load configuration
	configuration = loadConfig()

	// Initialize database connection
	db = setupDatabase(configuration)

	// Build the credential store, token manager and controllers
	setupServices(configuration)

	// Initialize Gin router
	var router *gin.Engine = setupRouter()

	// Start the server
	log.Infof("Starting server on %s:%d", configuration.Host, configuration.Port)
	checkPanicErr(router.Run(fmt.Sprintf("%v:%d", configuration.Host, configuration.Port)))
}

// checkPanicErr checks if an error occurred and panics if it did
func checkPanicErr(err error) {
	if err != nil {
		panic(err)
	}
}

// loadDotenvFile loads environment variables from a .env file
// If the file is not found, it will log a warning and use system environment variables
func loadDotenvFile() {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found, using system environment variables")
	}
}

// setUpLogger initializes the logger with a JSON formatter and sets the log level based on the environment
func setUpLogger() {
	log.SetFormatter(&log.JSONFormatter{})
	environment := config.GetEnvWithDefault("APP_ENV", "development")
	switch environment {
	case "development":
		log.SetLevel(log.DebugLevel)
	case "production":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
	auth.SetLogLevel(log.GetLevel())

	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
}

// loadConfig loads the application configuration from environment variables
// It returns a Config struct or panics if there is an error
func loadConfig() *config.Config {
	conf, err := config.LoadConfig()
	checkPanicErr(err)
	if level, err := log.ParseLevel(conf.LogLevel); err == nil && conf.Environment != "production" {
		log.SetLevel(level)
		auth.SetLogLevel(level)
	}
	return conf
}

// setupDatabase opens the configured database and migrates the credential tables
func setupDatabase(conf *config.Config) *gorm.DB {
	dbConfig, err := database.FromConfig(conf)
	checkPanicErr(err)
	conn, err := database.Setup(dbConfig)
	checkPanicErr(err)
	return conn
}

// setupCodeCollection selects where authorization codes live
func setupCodeCollection(conf *config.Config, collections *store.Collections[*models.User]) {
	if conf.CodeStore != config.CodeStoreRedis {
		return
	}

	client := redis.NewClient(&redis.Options{
		Addr:     conf.RedisAddr,
		Password: conf.RedisPassword,
		DB:       conf.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	checkPanicErr(client.Ping(ctx).Err())

	collections.Codes = store.NewRedisCodeCollection(client, conf.CodeTTL)
	log.WithFields(log.Fields{
		"redis_addr": conf.RedisAddr,
		"code_ttl":   conf.CodeTTL.String(),
	}).Info("Authorization codes stored in Redis")
}

// setupServices wires the credential store, token manager, services and controllers
func setupServices(conf *config.Config) {
	collections := store.NewGormCollections(db)
	setupCodeCollection(conf, &collections)
	credentials = store.New(collections)

	hasher := auth.NewBcryptHasher(conf.BcryptCost)
	codec := auth.NewTokenCodec(conf.JWTSecret, conf.JWTIssuer, conf.JWTAudience)
	manager := auth.NewManager(credentials, codec, hasher, auth.Lifetimes{
		AccessToken:  conf.AccessTokenTTL,
		RefreshToken: conf.RefreshTokenTTL,
	})
	gateway = auth.NewGateway(codec, credentials)

	userService := services.NewUserService(credentials, hasher)
	clientService := services.NewClientService(credentials, manager)

	authController = controllers.NewAuthController(userService, manager, controllers.CookieSettings{
		Name:   conf.CookieName,
		MaxAge: conf.RefreshTokenTTL,
		Secure: conf.Environment == "production",
	})
	clientController = controllers.NewClientController(clientService)
	oauthController = controllers.NewOAuthController(manager, clientService)
}

// setupRouter initializes the Gin router and sets up the routes
// It returns the configured router
func setupRouter() *gin.Engine {
	router := gin.Default()
	setupRoutes(router)
	return router
}

// setupRoutes defines the routes for the Gin router
func setupRoutes(router *gin.Engine) {
	// Health check endpoint
	router.GET("/health", healthCheckHandler)

	bearer := middleware.BearerAuth[*models.User](gateway, configuration.JWTRealm, configuration.CookieName)
	session := middleware.SessionAuth[*models.User](gateway, configuration.CookieName)

	v1 := router.Group("/api/v1")
	{
		// Authentication routes
		authApi := v1.Group("/auth")
		{
			authApi.POST("/register", authController.Register)
			authApi.POST("/login", authController.Login)
			authApi.POST("/refresh", authController.Refresh)
			authApi.POST("/logout", authController.Logout)
		}

		v1.GET("/me", bearer, middleware.RequireScope("profile"), authController.Me)

		// Client management is reserved for first-party tokens
		clientApi := v1.Group("/clients")
		clientApi.Use(bearer, middleware.FirstPartyOnly(), middleware.RequireScope("clients"))
		{
			clientApi.POST("", clientController.CreateClient)
			clientApi.GET("", clientController.ListClients)
		}

		oauthApi := v1.Group("/oauth")
		{
			oauthApi.GET("/authorize", session, oauthController.Authorize)
			oauthApi.POST("/token", oauthController.Token)
		}
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// healthCheckHandler handles the health check endpoint
// @Summary Health check
// @Description Check if the service is running
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheckHandler(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK
	if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "gin-account-api",
	})
}
