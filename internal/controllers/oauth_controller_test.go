package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franciscosanchezn/gin-account-api/internal/models"
)

const testRedirect = "http://localhost:3000/callback"

func authorizeRequest(t *testing.T, cookie *http.Cookie, params url.Values) *http.Request {
	t.Helper()
	req := jsonRequest(t, http.MethodGet, "/api/v1/oauth/authorize?"+params.Encode(), nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

func TestAuthorizationCodeFlow(t *testing.T) {
	app := setupTestApp(t)
	user, _, cookie := app.registerAndLogin(t)

	client, err := app.manager.CreateOAuthClient(context.Background(), user, testRedirect)
	require.NoError(t, err)

	w := app.do(t, authorizeRequest(t, cookie, url.Values{
		"response_type": {"code"},
		"client_id":     {client.ClientID},
		"redirect_uri":  {testRedirect},
		"state":         {"xyz"},
		"scope":         {"read write"},
	}))
	require.Equal(t, http.StatusFound, w.Code)

	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "localhost:3000", location.Host)
	assert.Equal(t, "xyz", location.Query().Get("state"))
	assert.Equal(t, "read write", location.Query().Get("scope"))
	code := location.Query().Get("code")
	require.NotEmpty(t, code)

	tokenForm := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {client.ClientID},
		"client_secret": {client.ClientSecret},
		"code":          {code},
		"state":         {"xyz"},
	}
	w = app.do(t, formRequest("/api/v1/oauth/token", tokenForm))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	var tokens TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tokens))
	assert.Equal(t, "Bearer", tokens.TokenType)
	assert.EqualValues(t, 3600, tokens.ExpiresIn)

	t.Run("should refuse to reuse the code", func(t *testing.T) {
		w := app.do(t, formRequest("/api/v1/oauth/token", tokenForm))
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		var oauthErr models.OAuth2Error
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &oauthErr))
		assert.Equal(t, "invalid_grant", oauthErr.Error)
	})

	t.Run("should rotate the client refresh token", func(t *testing.T) {
		w := app.do(t, formRequest("/api/v1/oauth/token", url.Values{
			"grant_type":    {"refresh_token"},
			"client_id":     {client.ClientID},
			"refresh_token": {tokens.RefreshToken},
		}))
		require.Equal(t, http.StatusOK, w.Code)

		var rotated TokenResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rotated))
		assert.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)
	})

	t.Run("should limit the client token to its scope", func(t *testing.T) {
		req := jsonRequest(t, http.MethodGet, "/api/v1/me", nil)
		req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
		w := app.do(t, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Header().Get("WWW-Authenticate"), "insufficient_scope")
	})
}

func TestAuthorizeRejects(t *testing.T) {
	app := setupTestApp(t)
	user, _, cookie := app.registerAndLogin(t)

	client, err := app.manager.CreateOAuthClient(context.Background(), user, testRedirect)
	require.NoError(t, err)

	t.Run("should require a session", func(t *testing.T) {
		w := app.do(t, authorizeRequest(t, nil, url.Values{"response_type": {"code"}, "client_id": {client.ClientID}}))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("should not redirect to unregistered uri", func(t *testing.T) {
		w := app.do(t, authorizeRequest(t, cookie, url.Values{
			"response_type": {"code"},
			"client_id":     {client.ClientID},
			"redirect_uri":  {"http://evil.example/callback"},
		}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, w.Header().Get("Location"))
	})

	t.Run("should reject unknown client", func(t *testing.T) {
		w := app.do(t, authorizeRequest(t, cookie, url.Values{"response_type": {"code"}, "client_id": {"unknown"}}))
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		var oauthErr models.OAuth2Error
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &oauthErr))
		assert.Equal(t, "invalid_client", oauthErr.Error)
	})

	t.Run("should redirect unsupported response type with an error", func(t *testing.T) {
		w := app.do(t, authorizeRequest(t, cookie, url.Values{
			"response_type": {"token"},
			"client_id":     {client.ClientID},
			"state":         {"s1"},
		}))
		require.Equal(t, http.StatusFound, w.Code)

		location, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "unsupported_response_type", location.Query().Get("error"))
		assert.Equal(t, "s1", location.Query().Get("state"))
		assert.Empty(t, location.Query().Get("code"))
	})
}

func TestTokenEndpointErrors(t *testing.T) {
	app := setupTestApp(t)
	user, _, _ := app.registerAndLogin(t)

	client, err := app.manager.CreateOAuthClient(context.Background(), user, testRedirect)
	require.NoError(t, err)
	code, err := app.manager.NewClientCode(context.Background(), user, client.ClientID, nil, nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		form   url.Values
		status int
		error  string
	}{
		{
			name:   "missing grant type",
			form:   url.Values{"client_id": {client.ClientID}},
			status: http.StatusBadRequest,
			error:  "invalid_request",
		},
		{
			name:   "unsupported grant type",
			form:   url.Values{"grant_type": {"password"}, "client_id": {client.ClientID}},
			status: http.StatusBadRequest,
			error:  "unsupported_grant_type",
		},
		{
			name:   "missing code",
			form:   url.Values{"grant_type": {"authorization_code"}, "client_id": {client.ClientID}, "client_secret": {client.ClientSecret}},
			status: http.StatusBadRequest,
			error:  "invalid_request",
		},
		{
			name: "wrong secret",
			form: url.Values{
				"grant_type":    {"authorization_code"},
				"client_id":     {client.ClientID},
				"client_secret": {"wrong"},
				"code":          {code.Code},
			},
			status: http.StatusUnauthorized,
			error:  "invalid_grant",
		},
		{
			name: "state presented but never issued",
			form: url.Values{
				"grant_type":    {"authorization_code"},
				"client_id":     {client.ClientID},
				"client_secret": {client.ClientSecret},
				"code":          {code.Code},
				"state":         {"xyz"},
			},
			status: http.StatusUnauthorized,
			error:  "invalid_grant",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := app.do(t, formRequest("/api/v1/oauth/token", tt.form))
			assert.Equal(t, tt.status, w.Code)

			var oauthErr models.OAuth2Error
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &oauthErr))
			assert.Equal(t, tt.error, oauthErr.Error)
		})
	}
}

func TestClientTokenCannotActAsFirstParty(t *testing.T) {
	app := setupTestApp(t)
	user, _, _ := app.registerAndLogin(t)
	ctx := context.Background()

	client, err := app.manager.CreateOAuthClient(ctx, user, testRedirect)
	require.NoError(t, err)

	exchange := func(t *testing.T, scope []string) TokenResponse {
		t.Helper()
		code, err := app.manager.NewClientCode(ctx, user, client.ClientID, nil, scope)
		require.NoError(t, err)

		w := app.do(t, formRequest("/api/v1/oauth/token", url.Values{
			"grant_type":    {"authorization_code"},
			"client_id":     {client.ClientID},
			"client_secret": {client.ClientSecret},
			"code":          {code.Code},
		}))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var tokens TokenResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tokens))
		return tokens
	}

	bearer := func(method, path string, body interface{}, token string) *http.Request {
		req := jsonRequest(t, method, path, body)
		req.Header.Set("Authorization", "Bearer "+token)
		return req
	}

	t.Run("should refuse client registration with an unscoped token", func(t *testing.T) {
		tokens := exchange(t, nil)

		w := app.do(t, bearer(http.MethodPost, "/api/v1/clients",
			map[string][]string{"redirect_uris": {testRedirect}}, tokens.AccessToken))
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = app.do(t, bearer(http.MethodGet, "/api/v1/clients", nil, tokens.AccessToken))
		assert.Equal(t, http.StatusForbidden, w.Code)

		clients, err := app.credentials.ClientsByOwner(ctx, user.ID)
		require.NoError(t, err)
		assert.Len(t, clients, 1)
	})

	t.Run("should refuse profile access with an unscoped token", func(t *testing.T) {
		tokens := exchange(t, nil)

		w := app.do(t, bearer(http.MethodGet, "/api/v1/me", nil, tokens.AccessToken))
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Header().Get("WWW-Authenticate"), "insufficient_scope")
	})

	t.Run("should refuse client registration even when granted the clients scope", func(t *testing.T) {
		tokens := exchange(t, []string{"clients"})

		w := app.do(t, bearer(http.MethodPost, "/api/v1/clients",
			map[string][]string{"redirect_uris": {testRedirect}}, tokens.AccessToken))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("should honour an explicitly granted scope", func(t *testing.T) {
		tokens := exchange(t, []string{"profile"})

		w := app.do(t, bearer(http.MethodGet, "/api/v1/me", nil, tokens.AccessToken))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
