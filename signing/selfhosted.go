// ABOUTME: Self-hosted signing backend using portal links instead of a remote service
// ABOUTME: Issues opaque tokens, emails the portal URL and completes agreements on callback
package signing

import (
	"context"
	"database/sql"
	"fmt"
	"path"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/apperr"
	"github.com/harperreed/sponsordesk/clock"
	"github.com/harperreed/sponsordesk/db"
	"github.com/harperreed/sponsordesk/mail"
	"github.com/harperreed/sponsordesk/models"
	"github.com/harperreed/sponsordesk/storage"
	"go.uber.org/zap"
)

const selfHostedName = "self-hosted signing"

// SelfHostedProvider keeps agreements in the local database. There is no
// remote status to poll: tokens move to SIGNED only through Complete.
type SelfHostedProvider struct {
	db      *sql.DB
	store   storage.Store
	mailer  mail.Mailer
	clock   clock.Clock
	baseURL string
	logger  *zap.Logger
}

func NewSelfHostedProvider(database *sql.DB, store storage.Store, mailer mail.Mailer, clk clock.Clock, baseURL string, logger *zap.Logger) *SelfHostedProvider {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SelfHostedProvider{
		db:      database,
		store:   store,
		mailer:  mailer,
		clock:   clk,
		baseURL: baseURL,
		logger:  logger.With(zap.String("provider", models.ProviderSelfHosted)),
	}
}

func (p *SelfHostedProvider) Kind() string { return models.ProviderSelfHosted }

// UploadTransientDocument stores the document and returns its storage key.
func (p *SelfHostedProvider) UploadTransientDocument(ctx context.Context, data []byte, filename string) (string, error) {
	key := path.Join("signing", uuid.NewString(), path.Base(filename))
	if err := p.store.Put(ctx, key, data, "application/pdf"); err != nil {
		return "", apperr.ProviderFailure(selfHostedName, err)
	}
	return key, nil
}

// CreateAgreement issues a portal token and emails its URL to the participant.
// The token and the uploaded document are removed again when the email
// cannot be sent.
func (p *SelfHostedProvider) CreateAgreement(ctx context.Context, req AgreementRequest) (*Agreement, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	token := &models.SigningToken{
		Token:            uuid.NewString(),
		RecordID:         req.RecordID,
		Name:             req.Name,
		ParticipantEmail: req.ParticipantEmail,
		DocumentKey:      req.FileInfos[0].TransientDocumentID,
		Status:           models.AgreementOutForSignature,
		CreatedAt:        p.clock.Now(),
	}
	if err := db.CreateSigningToken(ctx, p.db, token); err != nil {
		p.discardDocument(ctx, token.DocumentKey)
		return nil, fmt.Errorf("failed to store signing token: %w", err)
	}

	agreement := &Agreement{
		ID:               token.Token,
		Name:             token.Name,
		Status:           token.Status,
		ParticipantEmail: token.ParticipantEmail,
		SigningURL:       PortalURL(p.baseURL, token.Token),
	}

	if err := p.notify(ctx, models.TemplateContractSent, agreement, req.ParticipantName, req.Vars); err != nil {
		if delErr := db.DeleteSigningToken(ctx, p.db, token.Token); delErr != nil {
			p.logger.Error("failed to remove unsent signing token", zap.String("token", token.Token), zap.Error(delErr))
		}
		p.discardDocument(ctx, token.DocumentKey)
		return nil, apperr.ProviderFailure(selfHostedName, err)
	}

	return agreement, nil
}

func (p *SelfHostedProvider) discardDocument(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := p.store.Delete(ctx, key); err != nil {
		p.logger.Warn("failed to remove unsent document", zap.String("key", key), zap.Error(err))
	}
}

func (p *SelfHostedProvider) GetAgreement(ctx context.Context, id string) (*Agreement, error) {
	token, err := db.GetSigningToken(ctx, p.db, id)
	if err != nil {
		return nil, err
	}
	return p.agreement(token), nil
}

// SendReminder emails the portal link again with the contract-reminder template.
func (p *SelfHostedProvider) SendReminder(ctx context.Context, id string) (*Reminder, error) {
	token, err := db.GetSigningToken(ctx, p.db, id)
	if err != nil {
		return nil, err
	}
	if token.Status != models.AgreementOutForSignature {
		return nil, apperr.InvalidField("status", "agreement is "+token.Status)
	}

	vars, name, err := p.recordVars(ctx, token.RecordID)
	if err != nil {
		return nil, err
	}

	if err := p.notify(ctx, models.TemplateContractReminder, p.agreement(token), name, vars); err != nil {
		return nil, apperr.ProviderFailure(selfHostedName, err)
	}

	return &Reminder{ID: uuid.NewString(), Status: "ACTIVE"}, nil
}

func (p *SelfHostedProvider) CancelAgreement(ctx context.Context, id string) error {
	token, err := db.GetSigningToken(ctx, p.db, id)
	if err != nil {
		return err
	}
	switch token.Status {
	case models.AgreementCancelled:
		return nil
	case models.AgreementSigned:
		return apperr.InvalidField("status", "agreement is already signed")
	}
	return db.SetSigningTokenStatus(ctx, p.db, id, models.AgreementCancelled, p.clock.Now())
}

// Complete marks a portal agreement signed. It is the completion callback
// that drives signature status for this backend.
func (p *SelfHostedProvider) Complete(ctx context.Context, q db.Querier, id string) (*models.SigningToken, error) {
	token, err := db.GetSigningToken(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if token.Status != models.AgreementOutForSignature {
		return nil, apperr.InvalidField("status", "agreement is "+token.Status)
	}

	now := p.clock.Now()
	if err := db.SetSigningTokenStatus(ctx, q, id, models.AgreementSigned, now); err != nil {
		return nil, err
	}
	token.Status = models.AgreementSigned
	token.CompletedAt = &now
	return token, nil
}

// Document returns the stored document behind a token, for the portal.
func (p *SelfHostedProvider) Document(ctx context.Context, id string) ([]byte, error) {
	token, err := db.GetSigningToken(ctx, p.db, id)
	if err != nil {
		return nil, err
	}
	if token.DocumentKey == "" {
		return nil, apperr.NotFound("document", id)
	}
	return p.store.Get(ctx, token.DocumentKey)
}

func (p *SelfHostedProvider) agreement(token *models.SigningToken) *Agreement {
	return &Agreement{
		ID:               token.Token,
		Name:             token.Name,
		Status:           token.Status,
		ParticipantEmail: token.ParticipantEmail,
		SigningURL:       PortalURL(p.baseURL, token.Token),
	}
}

func (p *SelfHostedProvider) recordVars(ctx context.Context, recordID uuid.UUID) (map[string]string, string, error) {
	rec, err := db.GetRecord(ctx, p.db, recordID)
	if err != nil {
		return nil, "", err
	}
	sponsor, err := db.GetSponsor(ctx, p.db, rec.SponsorID)
	if err != nil {
		return nil, "", err
	}
	conf, err := db.GetConference(ctx, p.db, rec.ConferenceID)
	if err != nil {
		return nil, "", err
	}
	var tier *models.Tier
	if rec.TierID != nil {
		if tier, err = db.GetTier(ctx, p.db, *rec.TierID); err != nil && !apperr.Is(err, apperr.KindNotFound) {
			return nil, "", err
		}
	}

	vars := mail.RecordVars(rec, sponsor, conf, tier, conf.OrganizerName)
	vars["reminder_number"] = fmt.Sprint(rec.ReminderCount + 1)
	return vars, rec.SignerName, nil
}

func (p *SelfHostedProvider) notify(ctx context.Context, slug string, agreement *Agreement, name string, vars map[string]string) error {
	tmpl, err := mail.LoadTemplate(ctx, p.db, slug)
	if err != nil {
		return err
	}

	merged := map[string]string{}
	for k, v := range vars {
		merged[k] = v
	}
	merged["signing_url"] = agreement.SigningURL
	merged["agreement_name"] = agreement.Name

	msg, missing := mail.Compose(tmpl, agreement.ParticipantEmail, name, merged)
	if len(missing) > 0 {
		p.logger.Warn("email template has unknown variables", zap.String("template", slug), zap.Strings("missing", missing))
	}
	return p.mailer.Send(ctx, msg)
}
