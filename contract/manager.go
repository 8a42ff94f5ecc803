// ABOUTME: Contract lifecycle for sponsor pipeline records
// ABOUTME: Generates contract PDFs, sends them for signature and records signature events
package contract

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/apperr"
	"github.com/harperreed/sponsordesk/clock"
	"github.com/harperreed/sponsordesk/db"
	"github.com/harperreed/sponsordesk/document"
	"github.com/harperreed/sponsordesk/mail"
	"github.com/harperreed/sponsordesk/models"
	"github.com/harperreed/sponsordesk/render"
	"github.com/harperreed/sponsordesk/signing"
	"github.com/harperreed/sponsordesk/status"
	"github.com/harperreed/sponsordesk/storage"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Options holds the organizer-facing settings used in generated documents and emails.
type Options struct {
	SenderName string
}

type Manager struct {
	db      *sql.DB
	store   storage.Store
	signers *signing.Selector
	mailer  mail.Mailer
	clock   clock.Clock
	opts    Options
	logger  *zap.Logger
}

func NewManager(database *sql.DB, store storage.Store, signers *signing.Selector, mailer mail.Mailer, clk clock.Clock, opts Options, logger *zap.Logger) *Manager {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		db:      database,
		store:   store,
		signers: signers,
		mailer:  mailer,
		clock:   clk,
		opts:    opts,
		logger:  logger,
	}
}

// Generated is the outcome of GenerateContract.
type Generated struct {
	Record    *models.SponsorForConference `json:"record"`
	Asset     *models.Asset                `json:"asset"`
	Agreement *signing.Agreement           `json:"agreement"`
	// PlainText is the substituted contract body without formatting.
	PlainText string `json:"plain_text"`
	// Missing lists placeholders the template uses but no variable filled.
	Missing []string `json:"missing,omitempty"`
}

type recordContext struct {
	rec     *models.SponsorForConference
	sponsor *models.Sponsor
	conf    *models.Conference
	tier    *models.Tier
}

func (m *Manager) load(ctx context.Context, q db.Querier, recordID uuid.UUID) (*recordContext, error) {
	rec, err := db.GetRecord(ctx, q, recordID)
	if err != nil {
		return nil, err
	}
	sponsor, err := db.GetSponsor(ctx, q, rec.SponsorID)
	if err != nil {
		return nil, err
	}
	conf, err := db.GetConference(ctx, q, rec.ConferenceID)
	if err != nil {
		return nil, err
	}

	rc := &recordContext{rec: rec, sponsor: sponsor, conf: conf}
	if rec.TierID != nil {
		tier, err := db.GetTier(ctx, q, *rec.TierID)
		if err != nil && !apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
		rc.tier = tier
	}
	return rc, nil
}

func (rc *recordContext) agreementName() string {
	return fmt.Sprintf("%s - %s", rc.sponsor.Name, rc.conf.Title)
}

// signer returns the record's signer, falling back to the sponsor's primary contact.
func (rc *recordContext) signer() (string, string) {
	name, email := rc.rec.SignerName, rc.rec.SignerEmail
	if c := rc.sponsor.PrimaryContact(); c != nil {
		if email == "" {
			email = c.Email
		}
		if name == "" {
			name = c.Name
		}
	}
	return name, email
}

// GenerateContract renders the record's contract, stores it and sends it for
// signature. When the provider rejects the dispatch the record is left as it was.
func (m *Manager) GenerateContract(ctx context.Context, recordID uuid.UUID, actor string) (*Generated, error) {
	rc, err := m.load(ctx, m.db, recordID)
	if err != nil {
		return nil, err
	}

	tmpl, err := db.ResolveContractTemplate(ctx, m.db, rc.conf, rc.rec.ContractTemplateID)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, apperr.Configuration("no contract template configured for conference %q", rc.conf.Title)
	}
	if err != nil {
		return nil, err
	}

	signerName, signerEmail := rc.signer()
	if signerEmail == "" {
		return nil, apperr.InvalidField("signer_email", "record has no signer email and the sponsor has no contact")
	}

	vars := mail.RecordVars(rc.rec, rc.sponsor, rc.conf, rc.tier, m.opts.SenderName)
	vars["signer_name"] = signerName
	vars["signer_email"] = signerEmail

	blocks, missing := render.SubstituteBlocks(tmpl.Blocks, vars)
	title, missingTitle := render.Substitute(tmpl.Title, vars)
	missing = mergeMissing(missing, missingTitle)
	if len(missing) > 0 {
		m.logger.Warn("contract template has unknown variables",
			zap.String("record_id", recordID.String()), zap.Strings("missing", missing))
	}

	now := m.clock.Now()
	pdf, err := document.RenderContract(document.Contract{
		Title:  title,
		Blocks: blocks,
		Footer: rc.agreementName(),
	})
	if err != nil {
		return nil, err
	}

	pdf = m.attest(pdf, document.Attestation{
		Event:          document.EventContractSent,
		AgreementName:  rc.agreementName(),
		TransactionID:  ulid.Make().String(),
		SignerName:     signerName,
		SignerEmail:    signerEmail,
		OrganizerName:  rc.conf.OrganizerName,
		ContractSentAt: &now,
	}, recordID)

	provider, err := m.signers.For(rc.conf)
	if err != nil {
		return nil, err
	}

	asset := newAsset(recordID, contractFilename(rc), pdf, now)
	if err := m.store.Put(ctx, asset.StorageKey, pdf, asset.MimeType); err != nil {
		return nil, fmt.Errorf("failed to store contract: %w", err)
	}

	agreement, err := m.dispatch(ctx, provider, rc, pdf, asset.Filename, signerName, signerEmail, vars)
	if err != nil {
		m.removeBlob(ctx, asset.StorageKey)
		return nil, err
	}

	previous := *rc.rec
	rec := rc.rec
	var activities []*models.Activity
	for _, step := range []struct {
		axis  status.Axis
		value string
	}{
		{status.AxisContract, status.ContractSent},
		{status.AxisSignature, status.SignaturePending},
	} {
		if a, err := applyAxis(rec, step.axis, step.value, actor, now); err != nil {
			return nil, err
		} else if a != nil {
			activities = append(activities, a)
		}
	}

	rec.ContractSentAt = &now
	rec.ContractSignedAt = nil
	rec.OrganizerSignedAt = nil
	rec.OrganizerSignedBy = ""
	rec.SignerName = signerName
	rec.SignerEmail = signerEmail
	rec.SigningURL = agreement.SigningURL
	rec.SigningProvider = provider.Kind()
	rec.AgreementID = agreement.ID
	rec.PortalToken = ""
	if provider.Kind() == models.ProviderSelfHosted {
		rec.PortalToken = agreement.ID
	}
	rec.ReminderCount = 0
	rec.ContractAssetID = &asset.ID
	rec.ContractTemplateID = &tmpl.ID

	activities = append(activities, &models.Activity{
		SponsorForConferenceID: rec.ID,
		Type:                   models.ActivityContractSent,
		Description:            fmt.Sprintf("Contract sent to %s for signature", signerEmail),
		Metadata: models.ActivityMetadata{
			Timestamp: &now,
			AdditionalData: map[string]interface{}{
				"agreement_id": agreement.ID,
				"provider":     provider.Kind(),
				"asset_id":     asset.ID.String(),
				"template_id":  tmpl.ID.String(),
			},
		},
		CreatedBy: actor,
		CreatedAt: now,
	})

	err = db.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		if err := db.CreateAsset(ctx, tx, asset); err != nil {
			return err
		}
		if err := db.UpdateRecord(ctx, tx, rec); err != nil {
			return err
		}
		return db.AppendActivities(ctx, tx, activities)
	})
	if err != nil {
		m.removeBlob(ctx, asset.StorageKey)
		if cancelErr := provider.CancelAgreement(ctx, agreement.ID); cancelErr != nil {
			m.logger.Warn("failed to cancel agreement after save failure", zap.String("agreement_id", agreement.ID), zap.Error(cancelErr))
		}
		return nil, apperr.Transaction(err)
	}

	m.retirePrevious(ctx, &previous, rc.conf)

	m.logger.Info("contract sent",
		zap.String("record_id", rec.ID.String()),
		zap.String("provider", provider.Kind()),
		zap.String("agreement_id", agreement.ID))

	return &Generated{
		Record:    rec,
		Asset:     asset,
		Agreement: agreement,
		PlainText: render.PlainText(blocks),
		Missing:   missing,
	}, nil
}

func (m *Manager) dispatch(ctx context.Context, provider signing.Provider, rc *recordContext, pdf []byte, filename, signerName, signerEmail string, vars map[string]string) (*signing.Agreement, error) {
	docID, err := provider.UploadTransientDocument(ctx, pdf, filename)
	if err != nil {
		return nil, asProviderError(provider, err)
	}

	agreement, err := provider.CreateAgreement(ctx, signing.AgreementRequest{
		Name:             rc.agreementName(),
		ParticipantEmail: signerEmail,
		ParticipantName:  signerName,
		Message:          fmt.Sprintf("Sponsorship agreement for %s", rc.conf.Title),
		FileInfos:        []signing.FileInfo{{TransientDocumentID: docID}},
		RecordID:         rc.rec.ID,
		Vars:             vars,
	})
	if err != nil {
		return nil, asProviderError(provider, err)
	}
	return agreement, nil
}

// retirePrevious cancels the agreement and drops the document a regenerated
// contract replaced. Both are best effort.
func (m *Manager) retirePrevious(ctx context.Context, previous *models.SponsorForConference, conf *models.Conference) {
	if previous.AgreementID != "" && previous.SignatureStatus == status.SignaturePending {
		if provider, err := m.signers.ForRecord(previous, conf); err != nil {
			m.logger.Warn("cannot cancel previous agreement", zap.String("agreement_id", previous.AgreementID), zap.Error(err))
		} else if err := provider.CancelAgreement(ctx, previous.AgreementID); err != nil {
			m.logger.Warn("failed to cancel previous agreement", zap.String("agreement_id", previous.AgreementID), zap.Error(err))
		}
	}

	if previous.ContractAssetID != nil {
		asset, err := db.DeleteAssetIfUnreferenced(ctx, m.db, *previous.ContractAssetID)
		if err != nil {
			m.logger.Warn("failed to drop previous contract", zap.String("asset_id", previous.ContractAssetID.String()), zap.Error(err))
			return
		}
		if asset != nil {
			storage.RemoveAll(ctx, m.store, []models.Asset{*asset}, m.logger)
		}
	}
}

// attest appends an attestation page. On failure the unmodified document is
// kept so the save itself never fails on the audit page.
func (m *Manager) attest(pdf []byte, a document.Attestation, recordID uuid.UUID) []byte {
	out, err := document.AppendAttestation(pdf, a)
	if err != nil {
		m.logger.Error("failed to append attestation page",
			zap.String("record_id", recordID.String()),
			zap.String("event", a.Event),
			zap.Error(err))
		return pdf
	}
	return out
}

func (m *Manager) removeBlob(ctx context.Context, key string) {
	if err := m.store.Delete(ctx, key); err != nil {
		m.logger.Warn("failed to remove blob", zap.String("key", key), zap.Error(err))
	}
}

// SignatureEvent describes a completed signature. The organizer counter-sign
// block is recorded only when both organizer fields are set.
type SignatureEvent struct {
	SignedAt          *time.Time
	SignerName        string
	OrganizerName     string
	OrganizerSignedAt *time.Time
	Actor             string
}

// RecordSignatureEvent marks the record signed, appends the signed attestation
// page to its contract and notifies the signer. Recording an already signed
// record returns it unchanged.
func (m *Manager) RecordSignatureEvent(ctx context.Context, recordID uuid.UUID, ev SignatureEvent) (*models.SponsorForConference, error) {
	return m.recordSignature(ctx, recordID, ev, nil)
}

func (m *Manager) recordSignature(ctx context.Context, recordID uuid.UUID, ev SignatureEvent, inTx func(tx *sql.Tx) error) (*models.SponsorForConference, error) {
	rc, err := m.load(ctx, m.db, recordID)
	if err != nil {
		return nil, err
	}
	rec := rc.rec
	if rec.SignatureStatus == status.SignatureSigned && inTx == nil {
		return rec, nil
	}

	now := m.clock.Now()
	signedAt := now
	if ev.SignedAt != nil {
		signedAt = ev.SignedAt.UTC()
	}
	if ev.SignerName != "" {
		rec.SignerName = ev.SignerName
	}

	var organizerBy string
	var organizerAt *time.Time
	if ev.OrganizerName != "" && ev.OrganizerSignedAt != nil {
		organizerBy = ev.OrganizerName
		t := ev.OrganizerSignedAt.UTC()
		organizerAt = &t
	}

	var activities []*models.Activity
	for _, step := range []struct {
		axis  status.Axis
		value string
	}{
		{status.AxisSignature, status.SignatureSigned},
		{status.AxisContract, status.ContractSigned},
	} {
		a, err := applyAxis(rec, step.axis, step.value, ev.Actor, now)
		if err != nil {
			return nil, err
		}
		if a != nil {
			activities = append(activities, a)
		}
	}
	rec.ContractSignedAt = &signedAt
	if organizerAt != nil {
		rec.OrganizerSignedBy = organizerBy
		rec.OrganizerSignedAt = organizerAt
	}

	signer := rec.SignerName
	if signer == "" {
		signer = rec.SignerEmail
	}
	activities = append(activities, &models.Activity{
		SponsorForConferenceID: rec.ID,
		Type:                   models.ActivityContractSigned,
		Description:            fmt.Sprintf("Contract signed by %s", signer),
		Metadata: models.ActivityMetadata{
			Timestamp:      &signedAt,
			AdditionalData: map[string]interface{}{"agreement_id": rec.AgreementID},
		},
		CreatedBy: ev.Actor,
		CreatedAt: now,
	})

	asset, newKey, err := m.signedDocument(ctx, rc, document.Attestation{
		Event:             document.EventContractSigned,
		AgreementName:     rc.agreementName(),
		TransactionID:     rec.AgreementID,
		SignerName:        rec.SignerName,
		SignerEmail:       rec.SignerEmail,
		OrganizerName:     rc.conf.OrganizerName,
		ContractSentAt:    rec.ContractSentAt,
		SignedAt:          &signedAt,
		OrganizerSignedBy: organizerBy,
		OrganizerSignedAt: organizerAt,
	})
	if err != nil {
		return nil, err
	}
	var oldKey string
	if asset != nil {
		oldKey = asset.StorageKey
		if newKey != "" {
			asset.StorageKey = newKey
		}
	}

	err = db.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		if inTx != nil {
			if err := inTx(tx); err != nil {
				return err
			}
		}
		if asset != nil && newKey != "" {
			if err := db.UpdateAsset(ctx, tx, asset); err != nil {
				return err
			}
		}
		if err := db.UpdateRecord(ctx, tx, rec); err != nil {
			return err
		}
		return db.AppendActivities(ctx, tx, activities)
	})
	if err != nil {
		if newKey != "" {
			m.removeBlob(ctx, newKey)
		}
		if apperr.KindOf(err) == apperr.KindInternal {
			return nil, apperr.Transaction(err)
		}
		return nil, err
	}
	if newKey != "" && oldKey != "" && oldKey != newKey {
		m.removeBlob(ctx, oldKey)
	}

	m.notifySigned(ctx, rc)

	return rec, nil
}

// signedDocument appends the signed attestation to the current contract and
// stores the result under a new key. The asset row is updated by the caller.
func (m *Manager) signedDocument(ctx context.Context, rc *recordContext, a document.Attestation) (*models.Asset, string, error) {
	if rc.rec.ContractAssetID == nil {
		return nil, "", nil
	}

	asset, err := db.GetAsset(ctx, m.db, *rc.rec.ContractAssetID)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}

	base, err := m.store.Get(ctx, asset.StorageKey)
	if err != nil {
		m.logger.Error("contract document missing, signing without attestation",
			zap.String("asset_id", asset.ID.String()), zap.Error(err))
		return nil, "", nil
	}

	out, err := document.AppendAttestation(base, a)
	if err != nil {
		m.logger.Error("failed to append attestation page",
			zap.String("record_id", rc.rec.ID.String()),
			zap.String("event", a.Event),
			zap.Error(err))
		return nil, "", nil
	}

	key := fmt.Sprintf("contracts/%s/%s-signed-%s.pdf", rc.rec.ID, asset.ID, ulid.Make())
	if err := m.store.Put(ctx, key, out, asset.MimeType); err != nil {
		return nil, "", fmt.Errorf("failed to store signed contract: %w", err)
	}

	sum := sha256.Sum256(out)
	asset.Size = int64(len(out))
	asset.SHA256 = hex.EncodeToString(sum[:])
	return asset, key, nil
}

func (m *Manager) notifySigned(ctx context.Context, rc *recordContext) {
	rec := rc.rec
	if rec.SignerEmail == "" {
		return
	}

	key := mail.DispatchKey(models.TemplateContractSigned, rec.ID, 1)
	if done, err := db.DispatchRecorded(ctx, m.db, key); err == nil && done {
		return
	}

	tmpl, err := mail.LoadTemplate(ctx, m.db, models.TemplateContractSigned)
	if err != nil {
		m.logger.Warn("no contract-signed template", zap.Error(err))
		return
	}
	msg, _ := mail.Compose(tmpl, rec.SignerEmail, rec.SignerName,
		mail.RecordVars(rec, rc.sponsor, rc.conf, rc.tier, m.opts.SenderName))

	if err := m.mailer.Send(ctx, msg); err != nil {
		m.logger.Warn("failed to send contract-signed notification",
			zap.String("record_id", rec.ID.String()), zap.Error(err))
		return
	}
	if err := db.RecordDispatch(ctx, m.db, key, rec.ID, models.TemplateContractSigned, rec.SignerEmail, m.clock.Now()); err != nil {
		m.logger.Warn("failed to record dispatch", zap.String("key", key), zap.Error(err))
	}
}

// CompletePortalSigning is the self-hosted completion callback. The token
// and the record are updated in one transaction.
func (m *Manager) CompletePortalSigning(ctx context.Context, token, signerName string) (*models.SponsorForConference, error) {
	rec, err := db.FindRecordByPortalToken(ctx, m.db, token)
	if err != nil {
		return nil, err
	}

	provider, err := m.signers.Get(models.ProviderSelfHosted)
	if err != nil {
		return nil, err
	}
	completer, ok := provider.(signing.Completer)
	if !ok {
		return nil, apperr.Configuration("signing provider %q cannot complete portal agreements", provider.Kind())
	}

	return m.recordSignature(ctx, rec.ID, SignatureEvent{SignerName: signerName, Actor: "portal"}, func(tx *sql.Tx) error {
		_, err := completer.Complete(ctx, tx, token)
		return err
	})
}

// SendSigningReminder asks the record's provider to remind the signer.
func (m *Manager) SendSigningReminder(ctx context.Context, recordID uuid.UUID, actor string) (*signing.Reminder, error) {
	rc, err := m.load(ctx, m.db, recordID)
	if err != nil {
		return nil, err
	}
	rec := rc.rec
	if rec.SignatureStatus != status.SignaturePending || rec.AgreementID == "" {
		return nil, apperr.InvalidField("signature_status", "no agreement is waiting for signature")
	}

	provider, err := m.signers.ForRecord(rec, rc.conf)
	if err != nil {
		return nil, err
	}

	reminder, err := provider.SendReminder(ctx, rec.AgreementID)
	if err != nil {
		return nil, asProviderError(provider, err)
	}

	now := m.clock.Now()
	if err := db.AppendActivity(ctx, m.db, &models.Activity{
		SponsorForConferenceID: rec.ID,
		Type:                   models.ActivityContractReminderSent,
		Description:            "Signing reminder sent through " + provider.Kind(),
		Metadata: models.ActivityMetadata{
			Timestamp:      &now,
			AdditionalData: map[string]interface{}{"reminder_id": reminder.ID, "manual": true},
		},
		CreatedBy: actor,
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}

	return reminder, nil
}

// RefreshSignatureStatus pulls the agreement state from the provider and
// applies it to the record.
func (m *Manager) RefreshSignatureStatus(ctx context.Context, recordID uuid.UUID, actor string) (*models.SponsorForConference, error) {
	rc, err := m.load(ctx, m.db, recordID)
	if err != nil {
		return nil, err
	}
	if rc.rec.AgreementID == "" {
		return nil, apperr.InvalidField("agreement_id", "record has no agreement")
	}

	provider, err := m.signers.ForRecord(rc.rec, rc.conf)
	if err != nil {
		return nil, err
	}
	agreement, err := provider.GetAgreement(ctx, rc.rec.AgreementID)
	if err != nil {
		return nil, asProviderError(provider, err)
	}

	return m.applyAgreementStatus(ctx, rc.rec, agreement.Status, nil, actor)
}

// Provider webhook events.
const (
	EventWorkflowCompleted = "AGREEMENT_WORKFLOW_COMPLETED"
	EventRecalled          = "AGREEMENT_RECALLED"
	EventRejected          = "AGREEMENT_REJECTED"
	EventExpired           = "AGREEMENT_EXPIRED"
)

// RecordAgreementEvent applies a provider webhook event to the record that
// owns the agreement. Unknown events are ignored.
func (m *Manager) RecordAgreementEvent(ctx context.Context, agreementID, event string, at *time.Time) (*models.SponsorForConference, error) {
	rec, err := db.FindRecordByAgreement(ctx, m.db, agreementID)
	if err != nil {
		return nil, err
	}

	var agreementStatus string
	switch event {
	case EventWorkflowCompleted:
		agreementStatus = models.AgreementSigned
	case EventRecalled, EventRejected:
		agreementStatus = models.AgreementCancelled
	case EventExpired:
		agreementStatus = models.AgreementExpired
	default:
		m.logger.Debug("ignoring provider event", zap.String("event", event), zap.String("agreement_id", agreementID))
		return rec, nil
	}

	return m.applyAgreementStatus(ctx, rec, agreementStatus, at, "webhook")
}

func (m *Manager) applyAgreementStatus(ctx context.Context, rec *models.SponsorForConference, agreementStatus string, at *time.Time, actor string) (*models.SponsorForConference, error) {
	var target string
	switch strings.ToUpper(agreementStatus) {
	case models.AgreementSigned:
		return m.RecordSignatureEvent(ctx, rec.ID, SignatureEvent{SignedAt: at, Actor: actor})
	case models.AgreementCancelled:
		target = status.SignatureRejected
	case models.AgreementExpired:
		target = status.SignatureExpired
	default:
		return rec, nil
	}

	now := m.clock.Now()
	activity, err := applyAxis(rec, status.AxisSignature, target, actor, now)
	if err != nil || activity == nil {
		return rec, err
	}

	err = db.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		if err := db.UpdateRecord(ctx, tx, rec); err != nil {
			return err
		}
		return db.AppendActivity(ctx, tx, activity)
	})
	if err != nil {
		return nil, apperr.Transaction(err)
	}
	return rec, nil
}

// applyAxis moves rec along one axis and returns the history entry, or nil
// when the value is unchanged.
func applyAxis(rec *models.SponsorForConference, axis status.Axis, value, actor string, now time.Time) (*models.Activity, error) {
	change, err := status.Transition(axis, status.Get(rec, axis), value)
	if err != nil {
		return nil, err
	}
	if change.NoOp() {
		return nil, nil
	}
	change.Apply(rec, now)
	return change.Activity(rec.ID, actor, now), nil
}

func asProviderError(provider signing.Provider, err error) error {
	if apperr.KindOf(err) != apperr.KindInternal {
		return err
	}
	return apperr.ProviderFailure(provider.Kind(), err)
}

func newAsset(recordID uuid.UUID, filename string, data []byte, now time.Time) *models.Asset {
	id := uuid.New()
	sum := sha256.Sum256(data)
	return &models.Asset{
		ID:         id,
		Filename:   filename,
		MimeType:   "application/pdf",
		Size:       int64(len(data)),
		SHA256:     hex.EncodeToString(sum[:]),
		StorageKey: fmt.Sprintf("contracts/%s/%s.pdf", recordID, id),
		CreatedAt:  now,
	}
}

func contractFilename(rc *recordContext) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ' || r == '-' || r == '_':
			return '-'
		}
		return -1
	}, rc.agreementName())
	return strings.Trim(name, "-") + ".pdf"
}

func mergeMissing(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, list := range [][]string{a, b} {
		for _, k := range list {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}
