// ABOUTME: Tests for cascading deletes and the asset reference guard
// ABOUTME: Covers shared assets, duplicate references and transactional rollback
package db

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/apperr"
	"github.com/harperreed/sponsordesk/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteSponsorForConferenceRemovesDependents(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	sponsor := seedSponsor(t, database, "acme")
	rec := seedRecord(t, database, sponsor.ID, seedConference(t, database).ID)
	asset := seedAsset(t, database, "contracts/acme.pdf")
	rec.ContractAssetID = &asset.ID
	require.NoError(t, UpdateRecord(ctx, database, rec))
	seedActivity(t, database, rec.ID, "first")
	seedActivity(t, database, rec.ID, "second")

	plan, err := DeleteSponsorForConference(ctx, database, rec.ID, DeleteOptions{DeleteContractAsset: true})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{rec.ID}, plan.RecordIDs)
	assert.Len(t, plan.ActivityIDs, 2)
	require.Len(t, plan.Assets, 1)
	assert.Equal(t, "contracts/acme.pdf", plan.Assets[0].StorageKey)

	_, err = GetRecord(ctx, database, rec.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = GetAsset(ctx, database, asset.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	// The sponsor itself is untouched.
	_, err = GetSponsor(ctx, database, sponsor.ID)
	assert.NoError(t, err)
}

func TestDeleteSponsorKeepsSharedAgreement(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	shared := seedAsset(t, database, "agreements/shared.pdf")
	first := seedSponsor(t, database, "first")
	second := seedSponsor(t, database, "second")
	for _, s := range []uuid.UUID{first.ID, second.ID} {
		sp, err := GetSponsor(ctx, database, s)
		require.NoError(t, err)
		sp.AgreementAssetID = &shared.ID
		require.NoError(t, UpdateSponsor(ctx, database, sp))
	}

	plan, err := DeleteSponsor(ctx, database, first.ID)
	require.NoError(t, err)
	assert.Empty(t, plan.Assets)
	assert.Equal(t, []uuid.UUID{shared.ID}, plan.RetainedAssetIDs)

	_, err = GetAsset(ctx, database, shared.ID)
	require.NoError(t, err, "asset still referenced by the second sponsor")

	plan, err = DeleteSponsor(ctx, database, second.ID)
	require.NoError(t, err)
	require.Len(t, plan.Assets, 1)
	assert.Equal(t, shared.ID, plan.Assets[0].ID)
}

func TestDeleteSponsorRemovesDuplicateReferenceOnce(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	asset := seedAsset(t, database, "contracts/same.pdf")
	sponsor := seedSponsor(t, database, "acme")
	sponsor.AgreementAssetID = &asset.ID
	require.NoError(t, UpdateSponsor(ctx, database, sponsor))

	rec := seedRecord(t, database, sponsor.ID, seedConference(t, database).ID)
	rec.ContractAssetID = &asset.ID
	require.NoError(t, UpdateRecord(ctx, database, rec))
	seedActivity(t, database, rec.ID, "note")

	plan, err := DeleteSponsor(ctx, database, sponsor.ID)
	require.NoError(t, err)
	assert.Len(t, plan.RecordIDs, 1)
	assert.Len(t, plan.ActivityIDs, 1)
	assert.Equal(t, []uuid.UUID{asset.ID}, plan.AssetIDs)
	assert.Empty(t, plan.RetainedAssetIDs)

	_, err = GetSponsor(ctx, database, sponsor.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeleteSponsorRollsBackOnFailure(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	sponsor := seedSponsor(t, database, "acme")
	rec := seedRecord(t, database, sponsor.ID, seedConference(t, database).ID)
	seedActivity(t, database, rec.ID, "must survive")

	_, err := database.Exec(`
		CREATE TRIGGER block_sponsor_delete BEFORE DELETE ON sponsors
		BEGIN SELECT RAISE(ABORT, 'sponsor delete blocked'); END;
	`)
	require.NoError(t, err)

	_, err = DeleteSponsor(ctx, database, sponsor.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindTransaction))

	n, err := CountActivities(ctx, database, rec.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = GetRecord(ctx, database, rec.ID)
	assert.NoError(t, err)
}

func TestDeleteMissingRecordIsNotFound(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	_, err := DeleteSponsorForConference(context.Background(), database, uuid.New(), DeleteOptions{})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeleteRecordKeepsContractAssetUnlessAsked(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	asset := seedAsset(t, database, "contracts/keep.pdf")
	rec := seedRecord(t, database, seedSponsor(t, database, "acme").ID, seedConference(t, database).ID)
	rec.ContractAssetID = &asset.ID
	require.NoError(t, UpdateRecord(ctx, database, rec))

	plan, err := DeleteSponsorForConference(ctx, database, rec.ID, DeleteOptions{})
	require.NoError(t, err)
	assert.Empty(t, plan.Assets)

	_, err = GetAsset(ctx, database, asset.ID)
	assert.NoError(t, err)
}

func TestAssetReferencedHonoursExclusions(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	asset := seedAsset(t, database, "contracts/x.pdf")
	rec := seedRecord(t, database, seedSponsor(t, database, "acme").ID, seedConference(t, database).ID)
	rec.ContractAssetID = &asset.ID
	require.NoError(t, UpdateRecord(ctx, database, rec))

	referenced, err := AssetReferenced(ctx, database, asset.ID, Exclusions{})
	require.NoError(t, err)
	assert.True(t, referenced)

	referenced, err = AssetReferenced(ctx, database, asset.ID, Exclusions{RecordIDs: []uuid.UUID{rec.ID}})
	require.NoError(t, err)
	assert.False(t, referenced)
}

func TestDeleteRecordsSharingContractAsset(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	shared := seedAsset(t, database, "contracts/shared.pdf")
	first := seedRecord(t, database, seedSponsor(t, database, "acme").ID, seedConference(t, database).ID)
	second := seedRecord(t, database, seedSponsor(t, database, "globex").ID, seedConference(t, database).ID)
	for _, rec := range []*models.SponsorForConference{first, second} {
		rec.ContractAssetID = &shared.ID
		require.NoError(t, UpdateRecord(ctx, database, rec))
	}

	plan, err := DeleteSponsorForConference(ctx, database, first.ID, DeleteOptions{DeleteContractAsset: true})
	require.NoError(t, err)
	assert.Empty(t, plan.Assets)
	assert.Equal(t, []uuid.UUID{shared.ID}, plan.RetainedAssetIDs)

	_, err = GetAsset(ctx, database, shared.ID)
	require.NoError(t, err, "asset still referenced by the second record")

	plan, err = DeleteSponsorForConference(ctx, database, second.ID, DeleteOptions{DeleteContractAsset: true})
	require.NoError(t, err)
	assert.Empty(t, plan.RetainedAssetIDs)
	require.Len(t, plan.Assets, 1)
	assert.Equal(t, shared.ID, plan.Assets[0].ID)

	_, err = GetAsset(ctx, database, shared.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeleteSponsorWithRecordsSharingAsset(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	shared := seedAsset(t, database, "contracts/shared.pdf")
	sponsor := seedSponsor(t, database, "acme")
	for i := 0; i < 2; i++ {
		rec := seedRecord(t, database, sponsor.ID, seedConference(t, database).ID)
		rec.ContractAssetID = &shared.ID
		require.NoError(t, UpdateRecord(ctx, database, rec))
	}

	plan, err := DeleteSponsor(ctx, database, sponsor.ID)
	require.NoError(t, err)
	assert.Len(t, plan.RecordIDs, 2)
	assert.Equal(t, []uuid.UUID{shared.ID}, plan.AssetIDs)
	require.Len(t, plan.Assets, 1)
	assert.Empty(t, plan.RetainedAssetIDs)

	_, err = GetAsset(ctx, database, shared.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeletePlanCollectsSigningDocuments(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	rec := seedRecord(t, database, seedSponsor(t, database, "acme").ID, seedConference(t, database).ID)
	for _, key := range []string{"signing/a/contract.pdf", "signing/b/contract.pdf", ""} {
		require.NoError(t, CreateSigningToken(ctx, database, &models.SigningToken{
			Token:            uuid.NewString(),
			RecordID:         rec.ID,
			Name:             "Acme - Cloud Native Day",
			ParticipantEmail: "kari@acme.test",
			DocumentKey:      key,
		}))
	}

	plan, err := DeleteSponsorForConference(ctx, database, rec.ID, DeleteOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"signing/a/contract.pdf", "signing/b/contract.pdf"}, plan.DocumentKeys)

	var n int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM signing_tokens`).Scan(&n))
	assert.Zero(t, n)
}
