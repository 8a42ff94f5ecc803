// ABOUTME: Tests for the Google OAuth loopback flow
// ABOUTME: Drives the callback server with a fake token endpoint
package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harperreed/sponsordesk/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func tokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.Form.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","token_type":"Bearer","refresh_token":"rt","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Scopes:       Scopes,
		Endpoint:     oauth2.Endpoint{AuthURL: "https://accounts.test/auth", TokenURL: tokenURL},
	}
}

// follow plays the browser: it reads the consent URL and hits the callback.
func follow(t *testing.T, code func(state string) url.Values) func(string) error {
	return func(consent string) error {
		u, err := url.Parse(consent)
		require.NoError(t, err)
		q := u.Query()
		redirect := q.Get("redirect_uri")
		assert.Contains(t, redirect, "/oauth/callback")
		assert.Equal(t, "offline", q.Get("access_type"))

		resp, err := http.Get(redirect + "?" + code(q.Get("state")).Encode())
		if err != nil {
			return err
		}
		return resp.Body.Close()
	}
}

func TestAuthorize(t *testing.T) {
	srv := tokenServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	token, err := Authorize(ctx, testConfig(srv.URL), "127.0.0.1:0", follow(t, func(state string) url.Values {
		return url.Values{"state": {state}, "code": {"the-code"}}
	}))
	require.NoError(t, err)
	assert.Equal(t, "at", token.AccessToken)
	assert.Equal(t, "rt", token.RefreshToken)
}

func TestAuthorizeDenied(t *testing.T) {
	srv := tokenServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := Authorize(ctx, testConfig(srv.URL), "127.0.0.1:0", follow(t, func(state string) url.Values {
		return url.Values{"state": {state}, "error": {"access_denied"}}
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_denied")
}

func TestAuthorizeRejectsForeignState(t *testing.T) {
	srv := tokenServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := Authorize(ctx, testConfig(srv.URL), "127.0.0.1:0", follow(t, func(string) url.Values {
		return url.Values{"state": {"forged"}, "code": {"the-code"}}
	}))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOAuthConfig(t *testing.T) {
	_, err := OAuthConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))

	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"installed":{"client_id":"id","client_secret":"s",
		"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token",
		"redirect_uris":["http://localhost"]}}`), 0600))

	config, err := OAuthConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "id", config.ClientID)
	assert.Equal(t, Scopes, config.Scopes)
}

func TestNewServicesRequiresToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"installed":{"client_id":"id","client_secret":"s",
		"token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost"]}}`), 0600))

	_, _, err := NewServices(context.Background(), path, filepath.Join(t.TempDir(), "token.json"))
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
}
