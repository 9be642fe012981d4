package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/franciscosanchezn/gin-account-api/internal/auth"
	"github.com/franciscosanchezn/gin-account-api/internal/config"
	"github.com/franciscosanchezn/gin-account-api/internal/database"
	"github.com/franciscosanchezn/gin-account-api/internal/models"
	"github.com/franciscosanchezn/gin-account-api/internal/services"
	"github.com/franciscosanchezn/gin-account-api/internal/store"
)

func main() {
	// Parse command line flags
	username := flag.String("username", "dev", "Username of the client owner")
	password := flag.String("password", "dev-password-123", "Password used if the owner has to be created")
	redirect := flag.String("redirect", "http://localhost:3000/callback", "Redirect URI registered for the client")
	dbPath := flag.String("db", config.GetEnvWithDefault("DB_PATH", "account.sqlite"), "SQLite database file")
	flag.Parse()

	db, err := database.Setup(database.SQLite(*dbPath))
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	credentials := store.New(store.NewGormCollections(db))
	hasher := auth.NewBcryptHasher(auth.DefaultHashCost)
	codec := auth.NewTokenCodec(
		config.GetEnvWithDefault("JWT_SECRET", "secret"),
		config.GetEnvWithDefault("JWT_ISSUER", "http://localhost:8080"),
		config.GetEnvWithDefault("JWT_AUDIENCE", "http://localhost:8080/api/v1"),
	)
	manager := auth.NewManager(credentials, codec, hasher, auth.Lifetimes{})
	ctx := context.Background()

	owner, err := ownerFor(ctx, services.NewUserService(credentials, hasher), *username, *password)
	if err != nil {
		log.Fatal("Failed to get client owner:", err)
	}

	client, err := manager.CreateOAuthClient(ctx, owner, *redirect)
	if err != nil {
		log.Fatal("Failed to create client:", err)
	}

	fmt.Printf("✓ Development OAuth client created for '%s'!\n", owner.Username)
	fmt.Printf("Client ID: %s\n", client.ClientID)
	fmt.Printf("Client Secret: %s\n", client.ClientSecret)
	fmt.Printf("User ID: %d\n", owner.ID)
	fmt.Println("\nLog in, then open the authorization endpoint in the same browser:")
	fmt.Printf("http://localhost:8080/api/v1/oauth/authorize?response_type=code&client_id=%s&redirect_uri=%s&state=dev\n",
		client.ClientID, *redirect)
	fmt.Println("\nExchange the returned code:")
	fmt.Printf("curl -X POST http://localhost:8080/api/v1/oauth/token \\\n")
	fmt.Printf("  -d 'grant_type=authorization_code' \\\n")
	fmt.Printf("  -d 'client_id=%s' \\\n", client.ClientID)
	fmt.Printf("  -d 'client_secret=%s' \\\n", client.ClientSecret)
	fmt.Printf("  -d 'state=dev' \\\n")
	fmt.Printf("  -d 'code=<code>'\n")
}

// ownerFor finds the user or registers it with password
func ownerFor(ctx context.Context, users services.UserService, username, password string) (*models.User, error) {
	user, err := users.GetUserByUsername(ctx, username)
	if err == nil {
		fmt.Printf("Found existing user: %s (ID: %d)\n", user.Username, user.ID)
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	user, err = users.Register(ctx, username, password)
	if err != nil {
		return nil, err
	}
	fmt.Printf("Created new user: %s (ID: %d)\n", user.Username, user.ID)
	return user, nil
}
