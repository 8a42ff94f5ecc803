// ABOUTME: REST adapter for the external e-signature provider
// ABOUTME: Talks to the v6 agreements API with OAuth bearer tokens and bounded retries
package signing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/apperr"
	"github.com/harperreed/sponsordesk/config"
	"github.com/harperreed/sponsordesk/models"
	"github.com/harperreed/sponsordesk/retry"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const apiPrefix = "/api/rest/v6"

// ExternalOptions configures ExternalProvider.
type ExternalOptions struct {
	Name        string
	BaseURL     string
	TokenSource oauth2.TokenSource
	// HTTPClient is the transport under the OAuth layer. Defaults to http.DefaultClient.
	HTTPClient *http.Client
	Retry      retry.Config
}

type ExternalProvider struct {
	name    string
	baseURL string
	client  *http.Client
	retry   retry.Config
	logger  *zap.Logger
}

func NewExternalProvider(opts ExternalOptions, logger *zap.Logger) (*ExternalProvider, error) {
	if opts.BaseURL == "" {
		return nil, apperr.Configuration("external signing provider base URL is not set")
	}
	if opts.TokenSource == nil {
		return nil, apperr.Configuration("external signing provider credentials are not set")
	}
	if opts.Name == "" {
		opts.Name = "Adobe Sign"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx := context.Background()
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}

	return &ExternalProvider{
		name:    opts.Name,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		client:  oauth2.NewClient(ctx, opts.TokenSource),
		retry:   opts.Retry,
		logger:  logger.With(zap.String("provider", opts.Name)),
	}, nil
}

// NewExternalProviderFromConfig exchanges the configured refresh token for
// access tokens as needed. It returns nil, nil when nothing is configured.
func NewExternalProviderFromConfig(cfg config.SigningConfig, retryCfg retry.Config, logger *zap.Logger) (*ExternalProvider, error) {
	if !cfg.Configured() {
		return nil, nil
	}

	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	return NewExternalProvider(ExternalOptions{
		Name:        cfg.ProviderName,
		BaseURL:     cfg.BaseURL,
		TokenSource: oc.TokenSource(context.Background(), &oauth2.Token{RefreshToken: cfg.RefreshToken}),
		Retry:       retryCfg,
	}, logger)
}

func (p *ExternalProvider) Kind() string { return models.ProviderExternal }

func (p *ExternalProvider) UploadTransientDocument(ctx context.Context, data []byte, filename string) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("File-Name", filename)
	_ = w.WriteField("Mime-Type", "application/pdf")

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="File"; filename=%q`, filename))
	h.Set("Content-Type", "application/pdf")
	part, err := w.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}

	var out struct {
		TransientDocumentID string `json:"transientDocumentId"`
	}
	err = p.do(ctx, true, http.MethodPost, "/transientDocuments", w.FormDataContentType(), body.Bytes(), &out)
	if err != nil {
		return "", err
	}
	return out.TransientDocumentID, nil
}

type participantSet struct {
	MemberInfos []memberInfo `json:"memberInfos"`
	Order       int          `json:"order"`
	Role        string       `json:"role"`
}

type memberInfo struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type agreementInfo struct {
	FileInfos           []FileInfo       `json:"fileInfos"`
	Name                string           `json:"name"`
	ParticipantSetsInfo []participantSet `json:"participantSetsInfo"`
	SignatureType       string           `json:"signatureType"`
	State               string           `json:"state"`
	Message             string           `json:"message,omitempty"`
	ExternalID          *externalID      `json:"externalId,omitempty"`
}

type externalID struct {
	ID string `json:"id"`
}

// CreateAgreement is not retried: a repeated POST would send a second agreement.
func (p *ExternalProvider) CreateAgreement(ctx context.Context, req AgreementRequest) (*Agreement, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	info := agreementInfo{
		FileInfos: req.FileInfos,
		Name:      req.Name,
		ParticipantSetsInfo: []participantSet{{
			MemberInfos: []memberInfo{{Email: req.ParticipantEmail, Name: req.ParticipantName}},
			Order:       1,
			Role:        "SIGNER",
		}},
		SignatureType: "ESIGN",
		State:         "IN_PROCESS",
		Message:       req.Message,
	}
	if req.RecordID != uuid.Nil {
		info.ExternalID = &externalID{ID: req.RecordID.String()}
	}

	payload, err := json.Marshal(info)
	if err != nil {
		return nil, err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := p.do(ctx, false, http.MethodPost, "/agreements", "application/json", payload, &created); err != nil {
		return nil, err
	}

	agreement := &Agreement{
		ID:               created.ID,
		Name:             req.Name,
		Status:           models.AgreementOutForSignature,
		ParticipantEmail: req.ParticipantEmail,
	}

	// The signing URL is only available once the provider finished processing
	// the document, so a miss here is not fatal.
	if signingURL, err := p.signingURL(ctx, created.ID); err != nil {
		p.logger.Warn("signing url not available yet", zap.String("agreement_id", created.ID), zap.Error(err))
	} else {
		agreement.SigningURL = signingURL
	}

	return agreement, nil
}

func (p *ExternalProvider) signingURL(ctx context.Context, id string) (string, error) {
	var out struct {
		SigningURLSetInfos []struct {
			SigningURLs []struct {
				Email    string `json:"email"`
				EsignURL string `json:"esignUrl"`
			} `json:"signingUrls"`
		} `json:"signingUrlSetInfos"`
	}
	if err := p.do(ctx, false, http.MethodGet, "/agreements/"+url.PathEscape(id)+"/signingUrls", "", nil, &out); err != nil {
		return "", err
	}
	for _, set := range out.SigningURLSetInfos {
		for _, u := range set.SigningURLs {
			if u.EsignURL != "" {
				return u.EsignURL, nil
			}
		}
	}
	return "", fmt.Errorf("no signing url for agreement %s", id)
}

func (p *ExternalProvider) GetAgreement(ctx context.Context, id string) (*Agreement, error) {
	var out Agreement
	if err := p.do(ctx, true, http.MethodGet, "/agreements/"+url.PathEscape(id), "", nil, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		out.ID = id
	}
	return &out, nil
}

func (p *ExternalProvider) SendReminder(ctx context.Context, id string) (*Reminder, error) {
	payload, _ := json.Marshal(map[string]interface{}{
		"status": "ACTIVE",
		"note":   "Reminder: this agreement is waiting for your signature.",
	})

	var out Reminder
	if err := p.do(ctx, false, http.MethodPost, "/agreements/"+url.PathEscape(id)+"/reminders", "application/json", payload, &out); err != nil {
		return nil, err
	}
	if out.Status == "" {
		out.Status = "ACTIVE"
	}
	return &out, nil
}

func (p *ExternalProvider) CancelAgreement(ctx context.Context, id string) error {
	payload, _ := json.Marshal(map[string]interface{}{
		"state": models.AgreementCancelled,
		"agreementCancellationInfo": map[string]interface{}{
			"notifyOthers": false,
		},
	})

	err := p.do(ctx, true, http.MethodPut, "/agreements/"+url.PathEscape(id)+"/state", "application/json", payload, nil)
	if err == nil {
		return nil
	}

	// Cancelling an already cancelled agreement is rejected by the provider;
	// treat it as done when the remote state confirms it.
	if apperr.Is(err, apperr.KindProvider) {
		if current, getErr := p.GetAgreement(ctx, id); getErr == nil && current.Status == models.AgreementCancelled {
			return nil
		}
	}
	return err
}

func (p *ExternalProvider) do(ctx context.Context, retryable bool, method, path, contentType string, body []byte, out interface{}) error {
	call := func(ctx context.Context) error {
		return p.roundTrip(ctx, method, path, contentType, body, out)
	}
	if !retryable {
		return call(ctx)
	}
	return retry.Do(ctx, p.retry, p.logger, method+" "+path, call)
}

func (p *ExternalProvider) roundTrip(ctx context.Context, method, path, contentType string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+apiPrefix+path, reader)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return apperr.ProviderFailure(p.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperr.ProviderFailure(p.name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := apperr.Provider(p.name, resp.StatusCode)
		if msg := strings.TrimSpace(string(data)); msg != "" {
			perr.Err = fmt.Errorf("%s", msg)
		}
		p.logger.Warn("provider request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return perr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.ProviderFailure(p.name, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
