// ABOUTME: Self-hosted signing token and email dispatch ledger operations
// ABOUTME: Persists portal signing sessions and records which notification emails went out
package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/apperr"
	"github.com/harperreed/sponsordesk/models"
)

func CreateSigningToken(ctx context.Context, q Querier, token *models.SigningToken) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	if token.Status == "" {
		token.Status = models.AgreementOutForSignature
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO signing_tokens (token, record_id, name, participant_email, document_key, status, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, token.Token, token.RecordID.String(), token.Name, token.ParticipantEmail, token.DocumentKey,
		token.Status, token.CreatedAt, token.CompletedAt)

	return err
}

func GetSigningToken(ctx context.Context, q Querier, token string) (*models.SigningToken, error) {
	st := &models.SigningToken{}
	var documentKey sql.NullString

	err := q.QueryRowContext(ctx, `
		SELECT token, record_id, name, participant_email, document_key, status, created_at, completed_at
		FROM signing_tokens WHERE token = ?
	`, token).Scan(&st.Token, &st.RecordID, &st.Name, &st.ParticipantEmail, &documentKey, &st.Status, &st.CreatedAt, &st.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("signing token", token)
	}
	if err != nil {
		return nil, err
	}

	st.DocumentKey = documentKey.String
	return st, nil
}

// SetSigningTokenStatus moves a token to status, stamping completion when it is final.
func SetSigningTokenStatus(ctx context.Context, q Querier, token, status string, at time.Time) error {
	var completedAt *time.Time
	if status != models.AgreementOutForSignature {
		completedAt = &at
	}

	res, err := q.ExecContext(ctx, `
		UPDATE signing_tokens SET status = ?, completed_at = ? WHERE token = ?
	`, status, completedAt, token)
	if err != nil {
		return err
	}

	return requireRow(res, "signing token", token)
}

// SigningDocumentKeys returns the stored document keys of every signing token
// issued for the records.
func SigningDocumentKeys(ctx context.Context, q Querier, recordIDs []uuid.UUID) ([]string, error) {
	if len(recordIDs) == 0 {
		return nil, nil
	}

	rows, err := q.QueryContext(ctx, `
		SELECT DISTINCT document_key FROM signing_tokens
		WHERE record_id IN (`+placeholders(len(recordIDs))+`) AND document_key IS NOT NULL AND document_key != ''
		ORDER BY document_key
	`, idArgs(recordIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// DeleteSigningToken removes a token that was never handed out.
func DeleteSigningToken(ctx context.Context, q Querier, token string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM signing_tokens WHERE token = ?`, token)
	return err
}

// DispatchRecorded reports whether an email with this dispatch key was already sent.
func DispatchRecorded(ctx context.Context, q Querier, key string) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM email_dispatches WHERE dispatch_key = ?`, key).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecordDispatch remembers a sent email. Recording the same key twice is a no-op.
func RecordDispatch(ctx context.Context, q Querier, key string, recordID uuid.UUID, template, recipient string, at time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO email_dispatches (dispatch_key, record_id, template, recipient, sent_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(dispatch_key) DO NOTHING
	`, key, recordID.String(), template, recipient, at)
	return err
}
