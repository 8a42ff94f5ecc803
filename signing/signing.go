// ABOUTME: Signing provider abstraction shared by the external and self-hosted backends
// ABOUTME: Defines agreement types, the Provider capability set and per-conference selection
package signing

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/apperr"
	"github.com/harperreed/sponsordesk/db"
	"github.com/harperreed/sponsordesk/models"
)

// FileInfo references an uploaded transient document.
type FileInfo struct {
	TransientDocumentID string `json:"transientDocumentId"`
}

// AgreementRequest describes a document to send for signature. Vars feeds
// the notification email of backends that send their own.
type AgreementRequest struct {
	Name             string
	ParticipantEmail string
	ParticipantName  string
	Message          string
	FileInfos        []FileInfo
	RecordID         uuid.UUID
	Vars             map[string]string
}

// Agreement is the provider's view of a document out for signature.
type Agreement struct {
	ID               string `json:"id"`
	Name             string `json:"name,omitempty"`
	Status           string `json:"status"`
	ParticipantEmail string `json:"participantEmail,omitempty"`
	SigningURL       string `json:"signingUrl,omitempty"`
}

type Reminder struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Provider is one signing backend bound to its credentials.
type Provider interface {
	Kind() string
	UploadTransientDocument(ctx context.Context, data []byte, filename string) (string, error)
	CreateAgreement(ctx context.Context, req AgreementRequest) (*Agreement, error)
	GetAgreement(ctx context.Context, id string) (*Agreement, error)
	SendReminder(ctx context.Context, id string) (*Reminder, error)
	// CancelAgreement moves the agreement to CANCELLED. Cancelling twice is not an error.
	CancelAgreement(ctx context.Context, id string) error
}

// Completer is implemented by backends whose agreements are completed by a
// local callback rather than by the remote service.
type Completer interface {
	Complete(ctx context.Context, q db.Querier, id string) (*models.SigningToken, error)
}

func validateRequest(req AgreementRequest) error {
	fields := map[string]string{}
	if strings.TrimSpace(req.Name) == "" {
		fields["name"] = "is required"
	}
	if !strings.Contains(req.ParticipantEmail, "@") {
		fields["participant_email"] = "is required"
	}
	if len(req.FileInfos) == 0 {
		fields["file_infos"] = "at least one document is required"
	}
	if len(fields) > 0 {
		return apperr.Validation(fields)
	}
	return nil
}

// Selector picks the provider configured for a conference.
type Selector struct {
	providers map[string]Provider
}

// NewSelector registers providers by kind. Nil providers are skipped so an
// unconfigured backend stays unselectable.
func NewSelector(providers ...Provider) *Selector {
	s := &Selector{providers: map[string]Provider{}}
	for _, p := range providers {
		if p != nil {
			s.providers[p.Kind()] = p
		}
	}
	return s
}

// Get returns the provider of the given kind.
func (s *Selector) Get(kind string) (Provider, error) {
	if kind == "" {
		kind = models.ProviderSelfHosted
	}
	p, ok := s.providers[kind]
	if !ok {
		return nil, apperr.Configuration("signing provider %q is not configured", kind)
	}
	return p, nil
}

// For returns the provider the conference is configured with.
func (s *Selector) For(conf *models.Conference) (Provider, error) {
	return s.Get(conf.SigningProvider)
}

// ForRecord prefers the provider that created the record's agreement, so a
// conference switching providers does not orphan agreements in flight.
func (s *Selector) ForRecord(rec *models.SponsorForConference, conf *models.Conference) (Provider, error) {
	if rec.SigningProvider != "" {
		return s.Get(rec.SigningProvider)
	}
	return s.For(conf)
}

// PortalURL is where a sponsor signs with the self-hosted provider.
func PortalURL(baseURL, token string) string {
	return fmt.Sprintf("%s/sponsor/portal/%s", strings.TrimRight(baseURL, "/"), token)
}

// OnboardingURL is where a sponsor fills in contacts and billing details.
func OnboardingURL(baseURL, token string) string {
	return fmt.Sprintf("%s/sponsor/onboarding/%s", strings.TrimRight(baseURL, "/"), token)
}
