// ABOUTME: Ledger of mailbox and calendar items already logged as activities
// ABOUTME: Keeps repeated imports from writing the same email or meeting twice
package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ImportRecorded reports whether the external item was already logged on the record.
func ImportRecorded(ctx context.Context, q Querier, source, externalID string, recordID uuid.UUID) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM imported_items WHERE source = ? AND external_id = ? AND record_id = ?
	`, source, externalID, recordID.String()).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecordImport remembers that externalID became activityID on the record.
func RecordImport(ctx context.Context, q Querier, source, externalID string, recordID uuid.UUID, activityID string, at time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO imported_items (source, external_id, record_id, activity_id, imported_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source, external_id, record_id) DO NOTHING
	`, source, externalID, recordID.String(), activityID, at)
	return err
}
