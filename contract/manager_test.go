// ABOUTME: Tests for contract generation and signature recording
// ABOUTME: Drives the manager with the self-hosted backend and a scripted external provider
package contract

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	gosync "sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/apperr"
	"github.com/harperreed/sponsordesk/clock"
	"github.com/harperreed/sponsordesk/db"
	"github.com/harperreed/sponsordesk/document"
	"github.com/harperreed/sponsordesk/mail"
	"github.com/harperreed/sponsordesk/models"
	"github.com/harperreed/sponsordesk/pipeline"
	"github.com/harperreed/sponsordesk/render"
	"github.com/harperreed/sponsordesk/signing"
	"github.com/harperreed/sponsordesk/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu    gosync.Mutex
	blobs map[string][]byte
}

func newMemStore() *memStore { return &memStore{blobs: map[string][]byte{}} }

func (s *memStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (s *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, apperr.NotFound("blob", key)
	}
	return data, nil
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

// scriptedProvider plays the external backend.
type scriptedProvider struct {
	createErr error
	status    string
	created   int
	cancelled []string
	reminded  []string
}

func (p *scriptedProvider) Kind() string { return models.ProviderExternal }

func (p *scriptedProvider) UploadTransientDocument(ctx context.Context, data []byte, filename string) (string, error) {
	return "td-" + filename, nil
}

func (p *scriptedProvider) CreateAgreement(ctx context.Context, req signing.AgreementRequest) (*signing.Agreement, error) {
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.created++
	return &signing.Agreement{
		ID:         "ag-" + uuid.NewString(),
		Status:     models.AgreementOutForSignature,
		SigningURL: "https://sign.test/" + req.ParticipantEmail,
	}, nil
}

func (p *scriptedProvider) GetAgreement(ctx context.Context, id string) (*signing.Agreement, error) {
	return &signing.Agreement{ID: id, Status: p.status}, nil
}

func (p *scriptedProvider) SendReminder(ctx context.Context, id string) (*signing.Reminder, error) {
	p.reminded = append(p.reminded, id)
	return &signing.Reminder{ID: "rem-1", Status: "ACTIVE"}, nil
}

func (p *scriptedProvider) CancelAgreement(ctx context.Context, id string) error {
	p.cancelled = append(p.cancelled, id)
	return nil
}

type fixture struct {
	db       *sql.DB
	store    *memStore
	outbox   *mail.Outbox
	external *scriptedProvider
	clock    *clock.Fixed
	manager  *Manager
	conf     *models.Conference
	record   *models.SponsorForConference
}

func setup(t *testing.T, provider string, withTemplate bool) *fixture {
	t.Helper()
	ctx := context.Background()

	database, err := db.OpenDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	sponsor := &models.Sponsor{
		Name:           "Acme AS",
		ContactPersons: []models.ContactPerson{{Name: "Kari Nordmann", Email: "kari@acme.test", IsPrimary: true}},
	}
	require.NoError(t, db.CreateSponsor(ctx, database, sponsor))

	start := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	conf := &models.Conference{Title: "DevConf 2026", City: "Oslo", StartDate: &start, OrganizerName: "DevConf AS", SigningProvider: provider}
	require.NoError(t, db.CreateConference(ctx, database, conf))

	tier := &models.Tier{ConferenceID: conf.ID, Title: "Gold", Price: 5000000, Currency: "NOK", Kind: models.TierStandard}
	require.NoError(t, db.CreateTier(ctx, database, tier))

	if withTemplate {
		require.NoError(t, db.CreateContractTemplate(ctx, database, &models.ContractTemplate{
			ConferenceID: conf.ID,
			Title:        "Sponsorship agreement {{sponsor_name}}",
			Blocks: render.BlocksFromText("# Parties\n\n{{sponsor_name}} sponsors {{conference_title}} in {{conference_city}} as {{tier_name}}.\n\n" +
				"## Price\n\n{{contract_value}} {{contract_currency}}"),
			IsDefault: true,
		}))
	}

	rec := &models.SponsorForConference{
		SponsorID:        sponsor.ID,
		ConferenceID:     conf.ID,
		TierID:           &tier.ID,
		ContractValue:    5000000,
		ContractCurrency: "NOK",
	}
	require.NoError(t, db.CreateRecord(ctx, database, rec))

	store := newMemStore()
	outbox := &mail.Outbox{}
	clk := clock.NewFixed(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	external := &scriptedProvider{status: models.AgreementOutForSignature}
	selfHosted := signing.NewSelfHostedProvider(database, store, outbox, clk, "https://sponsors.test", nil)

	return &fixture{
		db:       database,
		store:    store,
		outbox:   outbox,
		external: external,
		clock:    clk,
		manager:  NewManager(database, store, signing.NewSelector(selfHosted, external), outbox, clk, Options{SenderName: "Sponsor Team"}, nil),
		conf:     conf,
		record:   rec,
	}
}

func (f *fixture) reload(t *testing.T) *models.SponsorForConference {
	t.Helper()
	rec, err := db.GetRecord(context.Background(), f.db, f.record.ID)
	require.NoError(t, err)
	return rec
}

func (f *fixture) pages(t *testing.T, rec *models.SponsorForConference) int {
	t.Helper()
	require.NotNil(t, rec.ContractAssetID)
	asset, err := db.GetAsset(context.Background(), f.db, *rec.ContractAssetID)
	require.NoError(t, err)
	data, err := f.store.Get(context.Background(), asset.StorageKey)
	require.NoError(t, err)
	n, err := document.PageCount(data)
	require.NoError(t, err)
	return n
}

func TestGenerateContractWithoutTemplate(t *testing.T) {
	f := setup(t, models.ProviderSelfHosted, false)

	_, err := f.manager.GenerateContract(context.Background(), f.record.ID, "ola")
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
	assert.Equal(t, status.ContractNone, f.reload(t).ContractStatus)
	assert.Zero(t, f.store.len())
}

func TestGenerateContractUnknownRecord(t *testing.T) {
	f := setup(t, models.ProviderSelfHosted, true)
	_, err := f.manager.GenerateContract(context.Background(), uuid.New(), "ola")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestGenerateContractSelfHosted(t *testing.T) {
	ctx := context.Background()
	f := setup(t, models.ProviderSelfHosted, true)

	gen, err := f.manager.GenerateContract(ctx, f.record.ID, "ola")
	require.NoError(t, err)
	assert.Empty(t, gen.Missing)
	assert.Contains(t, gen.PlainText, "Acme AS sponsors DevConf 2026 in Oslo as Gold.")
	assert.Contains(t, gen.PlainText, "50,000.00 NOK")

	rec := f.reload(t)
	assert.Equal(t, status.ContractSent, rec.ContractStatus)
	assert.Equal(t, status.SignaturePending, rec.SignatureStatus)
	assert.Equal(t, models.ProviderSelfHosted, rec.SigningProvider)
	assert.Equal(t, gen.Agreement.ID, rec.PortalToken)
	assert.Equal(t, "https://sponsors.test/sponsor/portal/"+rec.PortalToken, rec.SigningURL)
	assert.Equal(t, "kari@acme.test", rec.SignerEmail)
	require.NotNil(t, rec.ContractSentAt)
	assert.True(t, rec.ContractSentAt.Equal(f.clock.Now()))
	assert.Zero(t, rec.ReminderCount)

	assert.Equal(t, 2, f.pages(t, rec))

	n, err := db.CountActivities(ctx, f.db, rec.ID, models.ActivityContractSent)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = db.CountActivities(ctx, f.db, rec.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	sent := f.outbox.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Body, rec.SigningURL)
}

func TestDeleteRecordRemovesSelfHostedSigningCopy(t *testing.T) {
	ctx := context.Background()
	f := setup(t, models.ProviderSelfHosted, true)

	_, err := f.manager.GenerateContract(ctx, f.record.ID, "ola")
	require.NoError(t, err)
	assert.Equal(t, 2, f.store.len(), "contract asset and signing copy")

	svc := pipeline.NewService(f.db, f.store, f.clock, nil)
	plan, err := svc.DeleteRecord(ctx, f.record.ID, db.DeleteOptions{DeleteContractAsset: true})
	require.NoError(t, err)
	assert.Len(t, plan.AssetIDs, 1)
	assert.Len(t, plan.DocumentKeys, 1)
	assert.Zero(t, f.store.len())
}

func TestGenerateContractSelfHostedEmailFailureStoresNothing(t *testing.T) {
	ctx := context.Background()
	f := setup(t, models.ProviderSelfHosted, true)
	f.outbox.Fail(errors.New("mail down"))

	_, err := f.manager.GenerateContract(ctx, f.record.ID, "ola")
	require.Error(t, err)
	assert.Zero(t, f.store.len())
	assert.Equal(t, status.ContractNone, f.reload(t).ContractStatus)
}

func TestGenerateContractProviderFailureLeavesRecord(t *testing.T) {
	ctx := context.Background()
	f := setup(t, models.ProviderExternal, true)
	f.external.createErr = apperr.Provider("Adobe Sign", 500)

	_, err := f.manager.GenerateContract(ctx, f.record.ID, "ola")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindProvider))

	rec := f.reload(t)
	assert.Equal(t, status.ContractNone, rec.ContractStatus)
	assert.Equal(t, status.SignatureNotStarted, rec.SignatureStatus)
	assert.Nil(t, rec.ContractAssetID)
	assert.Nil(t, rec.ContractSentAt)
	assert.Zero(t, f.store.len())

	n, err := db.CountActivities(ctx, f.db, rec.ID, "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRegenerateCancelsPreviousAgreement(t *testing.T) {
	ctx := context.Background()
	f := setup(t, models.ProviderExternal, true)

	first, err := f.manager.GenerateContract(ctx, f.record.ID, "ola")
	require.NoError(t, err)
	second, err := f.manager.GenerateContract(ctx, f.record.ID, "ola")
	require.NoError(t, err)

	assert.Equal(t, []string{first.Agreement.ID}, f.external.cancelled)
	assert.NotEqual(t, first.Asset.ID, second.Asset.ID)

	_, err = db.GetAsset(ctx, f.db, first.Asset.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, 1, f.store.len())
}

func TestRecordSignatureEventAppendsAttestation(t *testing.T) {
	ctx := context.Background()
	f := setup(t, models.ProviderExternal, true)

	_, err := f.manager.GenerateContract(ctx, f.record.ID, "ola")
	require.NoError(t, err)

	f.clock.Advance(48 * time.Hour)
	signedAt := f.clock.Now().Add(-time.Hour)
	orgAt := f.clock.Now()

	rec, err := f.manager.RecordSignatureEvent(ctx, f.record.ID, SignatureEvent{
		SignedAt:          &signedAt,
		SignerName:        "Kari Nordmann",
		OrganizerName:     "Ola Organizer",
		OrganizerSignedAt: &orgAt,
		Actor:             "ola",
	})
	require.NoError(t, err)
	assert.Equal(t, status.SignatureSigned, rec.SignatureStatus)
	assert.Equal(t, status.ContractSigned, rec.ContractStatus)
	assert.Equal(t, "Ola Organizer", rec.OrganizerSignedBy)

	stored := f.reload(t)
	require.NotNil(t, stored.ContractSignedAt)
	assert.True(t, stored.ContractSignedAt.Equal(signedAt))
	assert.Equal(t, 3, f.pages(t, stored))
	assert.Equal(t, 1, f.store.len())

	again, err := f.manager.RecordSignatureEvent(ctx, f.record.ID, SignatureEvent{Actor: "ola"})
	require.NoError(t, err)
	assert.Equal(t, status.SignatureSigned, again.SignatureStatus)
	assert.Equal(t, 3, f.pages(t, f.reload(t)))

	signedMails := 0
	for _, m := range f.outbox.Sent() {
		if m.Template == models.TemplateContractSigned {
			signedMails++
		}
	}
	assert.Equal(t, 1, signedMails)
}

func TestRecordSignatureEventIgnoresHalfOrganizerBlock(t *testing.T) {
	ctx := context.Background()
	f := setup(t, models.ProviderExternal, true)

	_, err := f.manager.GenerateContract(ctx, f.record.ID, "ola")
	require.NoError(t, err)

	rec, err := f.manager.RecordSignatureEvent(ctx, f.record.ID, SignatureEvent{OrganizerName: "Ola Organizer"})
	require.NoError(t, err)
	assert.Empty(t, rec.OrganizerSignedBy)
	assert.Nil(t, rec.OrganizerSignedAt)
}

func TestCompletePortalSigning(t *testing.T) {
	ctx := context.Background()
	f := setup(t, models.ProviderSelfHosted, true)

	gen, err := f.manager.GenerateContract(ctx, f.record.ID, "ola")
	require.NoError(t, err)

	rec, err := f.manager.CompletePortalSigning(ctx, gen.Agreement.ID, "Kari N.")
	require.NoError(t, err)
	assert.Equal(t, status.SignatureSigned, rec.SignatureStatus)
	assert.Equal(t, "Kari N.", rec.SignerName)

	token, err := db.GetSigningToken(ctx, f.db, gen.Agreement.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AgreementSigned, token.Status)

	_, err = f.manager.CompletePortalSigning(ctx, gen.Agreement.ID, "Kari N.")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.manager.CompletePortalSigning(ctx, "unknown", "x")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestRefreshSignatureStatus(t *testing.T) {
	ctx := context.Background()
	f := setup(t, models.ProviderExternal, true)

	_, err := f.manager.RefreshSignatureStatus(ctx, f.record.ID, "ola")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.manager.GenerateContract(ctx, f.record.ID, "ola")
	require.NoError(t, err)

	rec, err := f.manager.RefreshSignatureStatus(ctx, f.record.ID, "ola")
	require.NoError(t, err)
	assert.Equal(t, status.SignaturePending, rec.SignatureStatus)

	f.external.status = models.AgreementExpired
	rec, err = f.manager.RefreshSignatureStatus(ctx, f.record.ID, "ola")
	require.NoError(t, err)
	assert.Equal(t, status.SignatureExpired, rec.SignatureStatus)
	assert.Equal(t, status.SignatureExpired, f.reload(t).SignatureStatus)
}

func TestRecordAgreementEvent(t *testing.T) {
	ctx := context.Background()
	f := setup(t, models.ProviderExternal, true)

	gen, err := f.manager.GenerateContract(ctx, f.record.ID, "ola")
	require.NoError(t, err)

	rec, err := f.manager.RecordAgreementEvent(ctx, gen.Agreement.ID, "AGREEMENT_ACTION_DELEGATED", nil)
	require.NoError(t, err)
	assert.Equal(t, status.SignaturePending, rec.SignatureStatus)

	rec, err = f.manager.RecordAgreementEvent(ctx, gen.Agreement.ID, EventWorkflowCompleted, nil)
	require.NoError(t, err)
	assert.Equal(t, status.SignatureSigned, rec.SignatureStatus)

	_, err = f.manager.RecordAgreementEvent(ctx, "unknown", EventWorkflowCompleted, nil)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSendSigningReminder(t *testing.T) {
	ctx := context.Background()
	f := setup(t, models.ProviderExternal, true)

	_, err := f.manager.SendSigningReminder(ctx, f.record.ID, "ola")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	gen, err := f.manager.GenerateContract(ctx, f.record.ID, "ola")
	require.NoError(t, err)

	rem, err := f.manager.SendSigningReminder(ctx, f.record.ID, "ola")
	require.NoError(t, err)
	assert.Equal(t, "rem-1", rem.ID)
	assert.Equal(t, []string{gen.Agreement.ID}, f.external.reminded)

	n, err := db.CountActivities(ctx, f.db, f.record.ID, models.ActivityContractReminderSent)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, f.reload(t).ReminderCount)
}
