// ABOUTME: Cascading deletes for pipeline records and sponsors
// ABOUTME: Plans owned activities and unreferenced assets, then removes everything in one transaction
package db

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/apperr"
	"github.com/harperreed/sponsordesk/models"
)

// DeleteOptions tunes DeleteSponsorForConference.
type DeleteOptions struct {
	// DeleteContractAsset also removes the record's contract document when
	// nothing outside the delete references it.
	DeleteContractAsset bool
}

// DeletePlan lists everything a cascade removes. Assets holds the metadata of
// deleted assets and DocumentKeys the signing copies of removed tokens, so the
// caller can remove their blobs after the commit.
type DeletePlan struct {
	SponsorIDs       []uuid.UUID
	RecordIDs        []uuid.UUID
	ActivityIDs      []string
	AssetIDs         []uuid.UUID
	RetainedAssetIDs []uuid.UUID
	Assets           []models.Asset
	DocumentKeys     []string
}

type deleteRoots struct {
	sponsorIDs     []uuid.UUID
	recordIDs      []uuid.UUID
	includeRecords bool // consider record contract assets
}

// DeleteSponsorForConference removes one pipeline record with its history,
// signing tokens and dispatch ledger. With DeleteContractAsset the contract
// document goes too unless something else still references it.
func DeleteSponsorForConference(ctx context.Context, db *sql.DB, id uuid.UUID, opts DeleteOptions) (*DeletePlan, error) {
	return cascadeDelete(ctx, db, deleteRoots{
		recordIDs:      []uuid.UUID{id},
		includeRecords: opts.DeleteContractAsset,
	})
}

// DeleteSponsor removes a sponsor, every pipeline record it owns and their
// dependents. Assets shared with other sponsors survive.
func DeleteSponsor(ctx context.Context, db *sql.DB, sponsorID uuid.UUID) (*DeletePlan, error) {
	return cascadeDelete(ctx, db, deleteRoots{
		sponsorIDs:     []uuid.UUID{sponsorID},
		includeRecords: true,
	})
}

func cascadeDelete(ctx context.Context, db *sql.DB, roots deleteRoots) (*DeletePlan, error) {
	var plan *DeletePlan

	err := WithTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		plan, err = buildDeletePlan(ctx, tx, roots)
		if err != nil {
			return err
		}
		return executeDeletePlan(ctx, tx, plan)
	})
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
		return nil, apperr.Transaction(err)
	}

	return plan, nil
}

func buildDeletePlan(ctx context.Context, tx *sql.Tx, roots deleteRoots) (*DeletePlan, error) {
	plan := &DeletePlan{SponsorIDs: roots.sponsorIDs}
	seen := map[uuid.UUID]bool{}
	var candidates []uuid.UUID
	addCandidate := func(id *uuid.UUID) {
		if id != nil && !seen[*id] {
			seen[*id] = true
			candidates = append(candidates, *id)
		}
	}

	for _, sponsorID := range roots.sponsorIDs {
		sponsor, err := GetSponsor(ctx, tx, sponsorID)
		if err != nil {
			return nil, err
		}
		addCandidate(sponsor.AgreementAssetID)

		records, err := ListRecords(ctx, tx, RecordFilter{SponsorID: &sponsorID})
		if err != nil {
			return nil, err
		}
		for i := range records {
			plan.RecordIDs = append(plan.RecordIDs, records[i].ID)
			if roots.includeRecords {
				addCandidate(records[i].ContractAssetID)
			}
		}
	}

	for _, recordID := range roots.recordIDs {
		rec, err := GetRecord(ctx, tx, recordID)
		if err != nil {
			return nil, err
		}
		plan.RecordIDs = append(plan.RecordIDs, rec.ID)
		if roots.includeRecords {
			addCandidate(rec.ContractAssetID)
		}
	}

	activityIDs, err := ActivityIDsForRecords(ctx, tx, plan.RecordIDs)
	if err != nil {
		return nil, err
	}
	plan.ActivityIDs = activityIDs

	documentKeys, err := SigningDocumentKeys(ctx, tx, plan.RecordIDs)
	if err != nil {
		return nil, err
	}
	plan.DocumentKeys = documentKeys

	// Duplicates were folded above, so an asset referenced twice by the
	// plan's own rows is checked and deleted once.
	exclude := Exclusions{SponsorIDs: plan.SponsorIDs, RecordIDs: plan.RecordIDs}
	for _, assetID := range candidates {
		referenced, err := AssetReferenced(ctx, tx, assetID, exclude)
		if err != nil {
			return nil, err
		}
		if referenced {
			plan.RetainedAssetIDs = append(plan.RetainedAssetIDs, assetID)
			continue
		}

		asset, err := GetAsset(ctx, tx, assetID)
		if apperr.Is(err, apperr.KindNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		plan.AssetIDs = append(plan.AssetIDs, assetID)
		plan.Assets = append(plan.Assets, *asset)
	}

	return plan, nil
}

func executeDeletePlan(ctx context.Context, tx *sql.Tx, plan *DeletePlan) error {
	if len(plan.RecordIDs) > 0 {
		in := placeholders(len(plan.RecordIDs))
		args := idArgs(plan.RecordIDs)

		for _, stmt := range []string{
			`DELETE FROM activities WHERE sponsor_for_conference_id IN (` + in + `)`,
			`DELETE FROM signing_tokens WHERE record_id IN (` + in + `)`,
			`DELETE FROM email_dispatches WHERE record_id IN (` + in + `)`,
			`DELETE FROM imported_items WHERE record_id IN (` + in + `)`,
			`DELETE FROM sponsor_for_conference WHERE id IN (` + in + `)`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
				return err
			}
		}
	}

	if len(plan.SponsorIDs) > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sponsors WHERE id IN (`+placeholders(len(plan.SponsorIDs))+`)`,
			idArgs(plan.SponsorIDs)...); err != nil {
			return err
		}
	}

	if len(plan.AssetIDs) > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM assets WHERE id IN (`+placeholders(len(plan.AssetIDs))+`)`,
			idArgs(plan.AssetIDs)...); err != nil {
			return err
		}
	}

	return nil
}

func idArgs(ids []uuid.UUID) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}
	return args
}
