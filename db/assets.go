// ABOUTME: Asset metadata operations and the asset reference guard
// ABOUTME: Tracks stored documents and reports whether anything still points at one
package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/apperr"
	"github.com/harperreed/sponsordesk/models"
)

func CreateAsset(ctx context.Context, q Querier, asset *models.Asset) error {
	if asset.ID == uuid.Nil {
		asset.ID = uuid.New()
	}
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = time.Now().UTC()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO assets (id, filename, mime_type, size, sha256, storage_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, asset.ID.String(), asset.Filename, asset.MimeType, asset.Size, asset.SHA256, asset.StorageKey, asset.CreatedAt)

	return err
}

func GetAsset(ctx context.Context, q Querier, id uuid.UUID) (*models.Asset, error) {
	asset := &models.Asset{}
	var sum sql.NullString

	err := q.QueryRowContext(ctx, `
		SELECT id, filename, mime_type, size, sha256, storage_key, created_at FROM assets WHERE id = ?
	`, id.String()).Scan(&asset.ID, &asset.Filename, &asset.MimeType, &asset.Size, &sum, &asset.StorageKey, &asset.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("asset", id.String())
	}
	if err != nil {
		return nil, err
	}

	asset.SHA256 = sum.String
	return asset, nil
}

// Exclusions lists owners whose references should be ignored, typically the
// rows about to be deleted.
type Exclusions struct {
	SponsorIDs []uuid.UUID
	RecordIDs  []uuid.UUID
}

// AssetReferenced reports whether any sponsor agreement or pipeline contract
// outside the exclusions still references the asset.
func AssetReferenced(ctx context.Context, q Querier, assetID uuid.UUID, exclude Exclusions) (bool, error) {
	sponsorQuery, sponsorArgs := excludingIDs(
		`SELECT COUNT(*) FROM sponsors WHERE agreement_asset_id = ?`, assetID, exclude.SponsorIDs)
	var n int
	if err := q.QueryRowContext(ctx, sponsorQuery, sponsorArgs...).Scan(&n); err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	recordQuery, recordArgs := excludingIDs(
		`SELECT COUNT(*) FROM sponsor_for_conference WHERE contract_asset_id = ?`, assetID, exclude.RecordIDs)
	if err := q.QueryRowContext(ctx, recordQuery, recordArgs...).Scan(&n); err != nil {
		return false, err
	}

	return n > 0, nil
}

func excludingIDs(query string, assetID uuid.UUID, ids []uuid.UUID) (string, []interface{}) {
	args := []interface{}{assetID.String()}
	if len(ids) == 0 {
		return query, args
	}
	query += " AND id NOT IN (" + placeholders(len(ids)) + ")"
	for _, id := range ids {
		args = append(args, id.String())
	}
	return query, args
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = append(b, '?')
	}
	return string(b)
}

// UpdateAsset rewrites the stored metadata after the blob was replaced.
func UpdateAsset(ctx context.Context, q Querier, asset *models.Asset) error {
	res, err := q.ExecContext(ctx, `
		UPDATE assets SET filename = ?, mime_type = ?, size = ?, sha256 = ?, storage_key = ? WHERE id = ?
	`, asset.Filename, asset.MimeType, asset.Size, asset.SHA256, asset.StorageKey, asset.ID.String())
	if err != nil {
		return err
	}
	return requireRow(res, "asset", asset.ID.String())
}

// DeleteAssetIfUnreferenced removes the asset row when nothing points at it
// and returns the deleted asset, or nil when it was kept or already gone.
func DeleteAssetIfUnreferenced(ctx context.Context, q Querier, assetID uuid.UUID) (*models.Asset, error) {
	referenced, err := AssetReferenced(ctx, q, assetID, Exclusions{})
	if err != nil || referenced {
		return nil, err
	}

	asset, err := GetAsset(ctx, q, assetID)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM assets WHERE id = ?`, assetID.String()); err != nil {
		return nil, err
	}
	return asset, nil
}
