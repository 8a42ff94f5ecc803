// ABOUTME: Tests for pipeline status mutations, notes and cascading deletes
// ABOUTME: Runs against a temporary SQLite database and a directory blob store
package pipeline

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/apperr"
	"github.com/harperreed/sponsordesk/clock"
	"github.com/harperreed/sponsordesk/db"
	"github.com/harperreed/sponsordesk/models"
	"github.com/harperreed/sponsordesk/status"
	"github.com/harperreed/sponsordesk/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

type fixture struct {
	db      *sql.DB
	store   *storage.DirStore
	svc     *Service
	sponsor *models.Sponsor
	conf    *models.Conference
}

func setup(t *testing.T) *fixture {
	t.Helper()
	database, err := db.OpenDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	store, err := storage.NewDirStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	sponsor := &models.Sponsor{Name: "Acme AS"}
	require.NoError(t, db.CreateSponsor(ctx, database, sponsor))
	conf := &models.Conference{Title: "DevConf 2026"}
	require.NoError(t, db.CreateConference(ctx, database, conf))

	return &fixture{
		db:      database,
		store:   store,
		svc:     NewService(database, store, clock.NewFixed(testNow), nil),
		sponsor: sponsor,
		conf:    conf,
	}
}

func (f *fixture) record(t *testing.T) *models.SponsorForConference {
	t.Helper()
	rec, err := f.svc.AddToPipeline(context.Background(), AddInput{
		SponsorID:    f.sponsor.ID,
		ConferenceID: f.conf.ID,
		Actor:        "organizer@devconf.test",
	})
	require.NoError(t, err)
	return rec
}

func TestUpdateStatusRecordsChangeAndActivity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	rec := f.record(t)

	updated, err := f.svc.UpdateStatus(ctx, rec.ID, status.AxisPipeline, status.Contacted, "ola")
	require.NoError(t, err)
	assert.Equal(t, status.Contacted, updated.Status)
	require.NotNil(t, updated.ContactInitiatedAt)
	assert.True(t, updated.ContactInitiatedAt.Equal(testNow))

	stored, err := db.GetRecord(ctx, f.db, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, status.Contacted, stored.Status)

	activities, err := f.svc.ListActivities(ctx, rec.ID, 0)
	require.NoError(t, err)
	require.Len(t, activities, 2)
	last := activities[1]
	assert.Equal(t, models.ActivityStageChange, last.Type)
	assert.Equal(t, status.Prospect, last.Metadata.OldValue)
	assert.Equal(t, status.Contacted, last.Metadata.NewValue)
	assert.Equal(t, "ola", last.CreatedBy)
}

func TestUpdateStatusSameValueIsNoOp(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	rec := f.record(t)

	_, err := f.svc.UpdateStatus(ctx, rec.ID, status.AxisPipeline, status.Prospect, "ola")
	require.NoError(t, err)

	n, err := db.CountActivities(ctx, f.db, rec.ID, models.ActivityStageChange)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpdateStatusRejectsUnknownValue(t *testing.T) {
	f := setup(t)
	rec := f.record(t)

	_, err := f.svc.UpdateStatus(context.Background(), rec.ID, status.AxisInvoice, "shipped", "ola")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	stored, err := db.GetRecord(context.Background(), f.db, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, status.InvoiceNotSent, stored.InvoiceStatus)
}

func TestUpdateStatusUnknownRecord(t *testing.T) {
	f := setup(t)
	_, err := f.svc.UpdateStatus(context.Background(), uuid.New(), status.AxisPipeline, status.Contacted, "ola")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestUpdateStatusAllowsAnyOrder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	rec := f.record(t)

	_, err := f.svc.UpdateStatus(ctx, rec.ID, status.AxisInvoice, status.InvoicePaid, "ola")
	require.NoError(t, err)
	back, err := f.svc.UpdateStatus(ctx, rec.ID, status.AxisInvoice, status.InvoiceNotSent, "ola")
	require.NoError(t, err)
	assert.Equal(t, status.InvoiceNotSent, back.InvoiceStatus)
	assert.NotNil(t, back.InvoicePaidAt)
}

func TestBulkUpdateStatusReportsPartialSuccess(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	rec := f.record(t)

	other := &models.Sponsor{Name: "Beta AS"}
	require.NoError(t, db.CreateSponsor(ctx, f.db, other))
	second, err := f.svc.AddToPipeline(ctx, AddInput{SponsorID: other.ID, ConferenceID: f.conf.ID})
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, second.ID, status.AxisPipeline, status.Negotiating, "ola")
	require.NoError(t, err)

	missing := uuid.New()
	result, err := f.svc.BulkUpdateStatus(ctx, []uuid.UUID{rec.ID, second.ID, missing}, status.AxisPipeline, status.Negotiating, "ola")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Unchanged)
	assert.Equal(t, 1, result.Failed)
	assert.Contains(t, result.Errors, missing.String())
}

func TestAddToPipelineUsesTierPrice(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tier := &models.Tier{ConferenceID: f.conf.ID, Title: "Gold", Price: 5000000, Currency: "NOK"}
	require.NoError(t, db.CreateTier(ctx, f.db, tier))
	addon := &models.Tier{ConferenceID: f.conf.ID, Title: "Booth", Price: 1000000, Currency: "NOK", Kind: models.TierAddon}
	require.NoError(t, db.CreateTier(ctx, f.db, addon))

	rec, err := f.svc.AddToPipeline(ctx, AddInput{
		SponsorID:    f.sponsor.ID,
		ConferenceID: f.conf.ID,
		TierID:       &tier.ID,
		AddonTierIDs: []uuid.UUID{addon.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(6000000), rec.ContractValue)
	assert.Equal(t, "NOK", rec.ContractCurrency)
	assert.Equal(t, status.Prospect, rec.Status)
	assert.Equal(t, status.SignatureNotStarted, rec.SignatureStatus)
}

func TestAddToPipelineRejectsDuplicate(t *testing.T) {
	f := setup(t)
	f.record(t)

	_, err := f.svc.AddToPipeline(context.Background(), AddInput{SponsorID: f.sponsor.ID, ConferenceID: f.conf.ID})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Contains(t, apperr.FieldsOf(err), "sponsor_id")
}

func TestAddToPipelineUnknownSponsor(t *testing.T) {
	f := setup(t)
	_, err := f.svc.AddToPipeline(context.Background(), AddInput{SponsorID: uuid.New(), ConferenceID: f.conf.ID})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestListBoard(t *testing.T) {
	f := setup(t)
	rec := f.record(t)

	cards, err := f.svc.ListBoard(context.Background(), f.conf.ID)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, rec.ID, cards[0].Record.ID)
	assert.Equal(t, "Acme AS", cards[0].SponsorName)

	_, err = f.svc.ListBoard(context.Background(), uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestAddNote(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	rec := f.record(t)

	note, err := f.svc.AddNote(ctx, rec.ID, models.ActivityCall, "  Called about booth size ", "ola")
	require.NoError(t, err)
	assert.Equal(t, "Called about booth size", note.Description)
	assert.NotEmpty(t, note.ID)

	_, err = f.svc.AddNote(ctx, rec.ID, "fax", "hello", "ola")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.AddNote(ctx, rec.ID, models.ActivityNote, "   ", "ola")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestLogActivitiesPartialSuccess(t *testing.T) {
	f := setup(t)
	rec := f.record(t)

	result := f.svc.LogActivities(context.Background(), []*models.Activity{
		{SponsorForConferenceID: rec.ID, Type: models.ActivityEmail, Description: "Sent deck"},
		{SponsorForConferenceID: rec.ID, Type: models.ActivityNote},
	})
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Logged)
	assert.Equal(t, 1, result.Failed)
	assert.Contains(t, result.Errors, "1")
}

func TestDeleteRecordRemovesBlob(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	rec := f.record(t)

	asset := &models.Asset{Filename: "contract.pdf", MimeType: "application/pdf", StorageKey: "contracts/x/contract.pdf"}
	require.NoError(t, f.store.Put(ctx, asset.StorageKey, []byte("%PDF"), asset.MimeType))
	require.NoError(t, db.CreateAsset(ctx, f.db, asset))
	rec.ContractAssetID = &asset.ID
	require.NoError(t, db.UpdateRecord(ctx, f.db, rec))

	plan, err := f.svc.DeleteRecord(ctx, rec.ID, db.DeleteOptions{DeleteContractAsset: true})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{asset.ID}, plan.AssetIDs)
	assert.NotEmpty(t, plan.ActivityIDs)

	_, err = f.store.Get(ctx, asset.StorageKey)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = db.GetRecord(ctx, f.db, rec.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeleteRecordKeepsAssetByDefault(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	rec := f.record(t)

	asset := &models.Asset{Filename: "contract.pdf", MimeType: "application/pdf", StorageKey: "contracts/y/contract.pdf"}
	require.NoError(t, f.store.Put(ctx, asset.StorageKey, []byte("%PDF"), asset.MimeType))
	require.NoError(t, db.CreateAsset(ctx, f.db, asset))
	rec.ContractAssetID = &asset.ID
	require.NoError(t, db.UpdateRecord(ctx, f.db, rec))

	_, err := f.svc.DeleteRecord(ctx, rec.ID, db.DeleteOptions{})
	require.NoError(t, err)

	data, err := f.store.Get(ctx, asset.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), data)
}

func TestDeleteSponsorCascades(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	rec := f.record(t)

	plan, err := f.svc.DeleteSponsor(ctx, f.sponsor.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{rec.ID}, plan.RecordIDs)

	_, err = db.GetSponsor(ctx, f.db, f.sponsor.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.svc.DeleteSponsor(ctx, f.sponsor.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
