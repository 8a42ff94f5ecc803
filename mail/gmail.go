// ABOUTME: Gmail API mailer for outbound notifications
// ABOUTME: Loads OAuth credentials and tokens from XDG paths and sends raw RFC 822 messages
package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	netmail "net/mail"
	"os"
	"path/filepath"
	"time"

	"github.com/harperreed/sponsordesk/apperr"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailOptions locates the OAuth client credentials and the saved token.
type GmailOptions struct {
	From            string
	SenderName      string
	CredentialsPath string
	TokenPath       string
}

type GmailMailer struct {
	service *gmail.Service
	from    netmail.Address
	logger  *zap.Logger
}

// NewGmailMailer builds a mailer from a Google OAuth client file and a token
// previously saved with SaveToken.
func NewGmailMailer(ctx context.Context, opts GmailOptions, logger *zap.Logger) (*GmailMailer, error) {
	creds, err := os.ReadFile(opts.CredentialsPath)
	if err != nil {
		return nil, apperr.Configuration("failed to read gmail credentials: %v", err)
	}

	config, err := google.ConfigFromJSON(creds, gmail.GmailSendScope)
	if err != nil {
		return nil, apperr.Configuration("invalid gmail credentials: %v", err)
	}

	token, err := LoadToken(opts.TokenPath)
	if err != nil {
		return nil, apperr.Configuration("%v", err)
	}

	service, err := gmail.NewService(ctx, option.WithHTTPClient(config.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return newGmailMailer(service, opts, logger), nil
}

func newGmailMailer(service *gmail.Service, opts GmailOptions, logger *zap.Logger) *GmailMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GmailMailer{
		service: service,
		from:    netmail.Address{Name: opts.SenderName, Address: opts.From},
		logger:  logger,
	}
}

func (m *GmailMailer) Send(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}

	raw := m.build(msg, time.Now())
	sent, err := m.service.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.Info("email sent",
		zap.String("to", msg.To),
		zap.String("template", msg.Template),
		zap.String("message_id", sent.Id))
	return nil
}

func (m *GmailMailer) build(msg Message, now time.Time) []byte {
	to := netmail.Address{Name: msg.ToName, Address: msg.To}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", m.from.String())
	fmt.Fprintf(&buf, "To: %s\r\n", to.String())
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", now.UTC().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(msg.Body)
	return buf.Bytes()
}

// SaveToken writes an OAuth token with owner-only permissions.
func SaveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	return nil
}

// LoadToken reads a token saved by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var token oauth2.Token
	if err := json.NewDecoder(f).Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}

	return &token, nil
}
