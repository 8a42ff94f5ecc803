// ABOUTME: Append-only activity log for pipeline records
// ABOUTME: Writes single or bulk history entries with ULID ids and reads them back in order
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/apperr"
	"github.com/harperreed/sponsordesk/models"
	"github.com/oklog/ulid/v2"
)

const activityColumns = `id, sponsor_for_conference_id, type, description, old_value, new_value,
	event_timestamp, additional_data, created_by, created_at`

// AppendActivity stores one history entry. Entries are never updated.
func AppendActivity(ctx context.Context, q Querier, activity *models.Activity) error {
	return AppendActivities(ctx, q, []*models.Activity{activity})
}

// AppendActivities stores several entries with one statement, so either all
// of them land or none do. Transactions use it next to the change they record.
func AppendActivities(ctx context.Context, q Querier, activities []*models.Activity) error {
	if len(activities) == 0 {
		return nil
	}

	rows := make([]string, 0, len(activities))
	args := make([]interface{}, 0, len(activities)*10)

	for _, a := range activities {
		if err := validateActivity(a); err != nil {
			return err
		}
		if a.ID == "" {
			a.ID = ulid.Make().String()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = time.Now().UTC()
		}

		additional, err := marshalJSON(a.Metadata.AdditionalData)
		if err != nil {
			return err
		}

		rows = append(rows, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			a.ID, a.SponsorForConferenceID.String(), a.Type, a.Description,
			nullableString(a.Metadata.OldValue), nullableString(a.Metadata.NewValue),
			a.Metadata.Timestamp, additional, nullableString(a.CreatedBy), a.CreatedAt)
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO activities (`+activityColumns+`)
		VALUES `+strings.Join(rows, ", "), args...)

	return err
}

// BulkResult reports how a batch fared entry by entry.
type BulkResult struct {
	Total  int               `json:"total"`
	Logged int               `json:"logged"`
	Failed int               `json:"failed"`
	Errors map[string]string `json:"errors,omitempty"`
}

// LogActivities stores each entry independently. One bad entry is counted
// as failed and does not stop the rest.
func LogActivities(ctx context.Context, q Querier, activities []*models.Activity) BulkResult {
	result := BulkResult{Total: len(activities)}

	for i, a := range activities {
		if err := AppendActivity(ctx, q, a); err != nil {
			result.Failed++
			if result.Errors == nil {
				result.Errors = map[string]string{}
			}
			result.Errors[strconv.Itoa(i)] = err.Error()
			continue
		}
		result.Logged++
	}

	return result
}

// ActivityIDsForRecords returns the ids of every entry written for the records.
func ActivityIDsForRecords(ctx context.Context, q Querier, recordIDs []uuid.UUID) ([]string, error) {
	if len(recordIDs) == 0 {
		return nil, nil
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id FROM activities WHERE sponsor_for_conference_id IN (`+placeholders(len(recordIDs))+`)
		ORDER BY id
	`, idArgs(recordIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// ListActivities returns the history of a record, oldest first.
func ListActivities(ctx context.Context, q Querier, recordID uuid.UUID, limit int) ([]models.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE sponsor_for_conference_id = ? ORDER BY created_at ASC, id ASC`
	args := []interface{}{recordID.String()}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activities []models.Activity
	for rows.Next() {
		var a models.Activity
		var oldValue, newValue, additional, createdBy sql.NullString

		if err := rows.Scan(
			&a.ID,
			&a.SponsorForConferenceID,
			&a.Type,
			&a.Description,
			&oldValue,
			&newValue,
			&a.Metadata.Timestamp,
			&additional,
			&createdBy,
			&a.CreatedAt,
		); err != nil {
			return nil, err
		}

		a.Metadata.OldValue = oldValue.String
		a.Metadata.NewValue = newValue.String
		a.CreatedBy = createdBy.String
		if err := unmarshalJSON(additional, &a.Metadata.AdditionalData); err != nil {
			return nil, fmt.Errorf("decode activity metadata: %w", err)
		}

		activities = append(activities, a)
	}

	return activities, rows.Err()
}

// CountActivities returns how many entries of the given type a record has.
// An empty type counts every entry.
func CountActivities(ctx context.Context, q Querier, recordID uuid.UUID, activityType string) (int, error) {
	var n int
	var err error
	if activityType == "" {
		err = q.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities WHERE sponsor_for_conference_id = ?`, recordID.String()).Scan(&n)
	} else {
		err = q.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM activities WHERE sponsor_for_conference_id = ? AND type = ?
		`, recordID.String(), activityType).Scan(&n)
	}
	return n, err
}

func validateActivity(a *models.Activity) error {
	fields := map[string]string{}
	if a.SponsorForConferenceID == uuid.Nil {
		fields["sponsor_for_conference_id"] = "is required"
	}
	if strings.TrimSpace(a.Type) == "" {
		fields["type"] = "is required"
	}
	if strings.TrimSpace(a.Description) == "" {
		fields["description"] = "is required"
	}
	if len(fields) > 0 {
		return apperr.Validation(fields)
	}
	return nil
}
