// ABOUTME: OAuth flow for the Google Workspace importers and the Gmail mailer
// ABOUTME: Runs a loopback callback server, exchanges the code and stores the token
package sync

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/harperreed/sponsordesk/apperr"
	"github.com/harperreed/sponsordesk/mail"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const callbackPath = "/oauth/callback"

// Scopes covers sending notifications and reading correspondence.
var Scopes = []string{
	gmail.GmailSendScope,
	gmail.GmailReadonlyScope,
	calendar.CalendarReadonlyScope,
}

// OAuthConfig loads a Google OAuth client file.
func OAuthConfig(credentialsPath string) (*oauth2.Config, error) {
	creds, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, apperr.Configuration("failed to read google credentials: %v", err)
	}
	config, err := google.ConfigFromJSON(creds, Scopes...)
	if err != nil {
		return nil, apperr.Configuration("invalid google credentials: %v", err)
	}
	return config, nil
}

// Authorize runs the browser consent flow. It listens on addr, hands the
// consent URL to open and waits for Google to redirect back.
func Authorize(ctx context.Context, config *oauth2.Config, addr string, open func(url string) error) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start callback listener: %w", err)
	}

	cfg := *config
	cfg.RedirectURL = "http://" + listener.Addr().String() + callbackPath

	state, err := randomState()
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	type outcome struct {
		token *oauth2.Token
		err   error
	}
	done := make(chan outcome, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		if msg := r.URL.Query().Get("error"); msg != "" {
			http.Error(w, "authorization denied", http.StatusBadRequest)
			done <- outcome{err: fmt.Errorf("authorization denied: %s", msg)}
			return
		}

		token, err := cfg.Exchange(ctx, r.URL.Query().Get("code"))
		if err != nil {
			http.Error(w, "token exchange failed", http.StatusInternalServerError)
			done <- outcome{err: fmt.Errorf("failed to exchange code: %w", err)}
			return
		}
		_, _ = fmt.Fprintln(w, "Authorization complete. You can close this window.")
		done <- outcome{token: token}
	})

	server := &http.Server{Handler: mux}
	go func() { _ = server.Serve(listener) }()
	defer func() { _ = server.Close() }()

	if err := open(cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)); err != nil {
		return nil, err
	}

	select {
	case res := <-done:
		return res.token, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AuthorizeAndSave runs Authorize and stores the token at tokenPath.
func AuthorizeAndSave(ctx context.Context, credentialsPath, tokenPath, addr string, open func(url string) error) error {
	config, err := OAuthConfig(credentialsPath)
	if err != nil {
		return err
	}
	token, err := Authorize(ctx, config, addr, open)
	if err != nil {
		return err
	}
	return mail.SaveToken(tokenPath, token)
}

// NewServices builds Gmail and Calendar clients from a saved token.
func NewServices(ctx context.Context, credentialsPath, tokenPath string) (*gmail.Service, *calendar.Service, error) {
	config, err := OAuthConfig(credentialsPath)
	if err != nil {
		return nil, nil, err
	}
	token, err := mail.LoadToken(tokenPath)
	if err != nil {
		return nil, nil, apperr.Configuration("%v (run `sponsordesk google auth` first)", err)
	}

	client := config.Client(ctx, token)
	gmailService, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	calendarService, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}
	return gmailService, calendarService, nil
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", errors.New("failed to generate oauth state")
	}
	return hex.EncodeToString(b), nil
}
