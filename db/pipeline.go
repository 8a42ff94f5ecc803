// ABOUTME: Sponsor-for-conference pipeline record operations
// ABOUTME: Handles record CRUD, board listing and reminder candidate queries
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/apperr"
	"github.com/harperreed/sponsordesk/models"
	"github.com/harperreed/sponsordesk/status"
)

const recordColumns = `id, sponsor_id, conference_id, tier_id, addon_tier_ids, status, contract_status,
	signature_status, invoice_status, contract_value, contract_currency, signer_name, signer_email,
	signing_url, signing_provider, agreement_id, portal_token, reminder_count, tags, assigned_organizer_id,
	contract_asset_id, contract_template_id, contact_initiated_at, contract_sent_at, contract_signed_at,
	organizer_signed_at, organizer_signed_by, invoice_sent_at, invoice_paid_at, created_at, updated_at`

// RecordFilter narrows ListRecords. Zero values match everything.
type RecordFilter struct {
	ConferenceID *uuid.UUID
	SponsorID    *uuid.UUID
	Status       string
	Limit        int
}

func CreateRecord(ctx context.Context, q Querier, rec *models.SponsorForConference) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	defaultStatuses(rec)

	args, err := recordArgs(rec)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO sponsor_for_conference (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)
	if err != nil && strings.Contains(err.Error(), "FOREIGN KEY") {
		return apperr.InvalidField("sponsor_id", "sponsor or conference does not exist")
	}

	return err
}

func defaultStatuses(rec *models.SponsorForConference) {
	for _, axis := range status.Axes() {
		if status.Get(rec, axis) == "" {
			status.Set(rec, axis, status.Values(axis)[0])
		}
	}
}

func GetRecord(ctx context.Context, q Querier, id uuid.UUID) (*models.SponsorForConference, error) {
	row := q.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM sponsor_for_conference WHERE id = ?`, id.String())
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("sponsor for conference", id.String())
	}
	return rec, err
}

// FindRecord returns the record pairing sponsor and conference, if one exists.
func FindRecord(ctx context.Context, q Querier, sponsorID, conferenceID uuid.UUID) (*models.SponsorForConference, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM sponsor_for_conference
		WHERE sponsor_id = ? AND conference_id = ?
	`, sponsorID.String(), conferenceID.String())
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("sponsor for conference", sponsorID.String()+"/"+conferenceID.String())
	}
	return rec, err
}

// FindRecordByAgreement locates the record awaiting the given provider agreement.
func FindRecordByAgreement(ctx context.Context, q Querier, agreementID string) (*models.SponsorForConference, error) {
	row := q.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM sponsor_for_conference WHERE agreement_id = ?`, agreementID)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("agreement", agreementID)
	}
	return rec, err
}

func FindRecordByPortalToken(ctx context.Context, q Querier, token string) (*models.SponsorForConference, error) {
	if token == "" {
		return nil, apperr.NotFound("portal token", "(empty)")
	}
	row := q.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM sponsor_for_conference WHERE portal_token = ?`, token)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("portal token", token)
	}
	return rec, err
}

// UpdateRecord writes every mutable field of rec.
func UpdateRecord(ctx context.Context, q Querier, rec *models.SponsorForConference) error {
	rec.UpdatedAt = time.Now().UTC()

	args, err := recordArgs(rec)
	if err != nil {
		return err
	}
	// Skip id, sponsor_id, conference_id and created_at.
	set := append([]interface{}{}, args[3:len(args)-2]...)
	set = append(set, rec.UpdatedAt, rec.ID.String())

	res, err := q.ExecContext(ctx, `
		UPDATE sponsor_for_conference
		SET tier_id = ?, addon_tier_ids = ?, status = ?, contract_status = ?, signature_status = ?,
			invoice_status = ?, contract_value = ?, contract_currency = ?, signer_name = ?, signer_email = ?,
			signing_url = ?, signing_provider = ?, agreement_id = ?, portal_token = ?, reminder_count = ?,
			tags = ?, assigned_organizer_id = ?, contract_asset_id = ?, contract_template_id = ?,
			contact_initiated_at = ?, contract_sent_at = ?, contract_signed_at = ?, organizer_signed_at = ?,
			organizer_signed_by = ?, invoice_sent_at = ?, invoice_paid_at = ?, updated_at = ?
		WHERE id = ?
	`, set...)
	if err != nil {
		return err
	}

	return requireRow(res, "sponsor for conference", rec.ID.String())
}

func ListRecords(ctx context.Context, q Querier, filter RecordFilter) ([]models.SponsorForConference, error) {
	query := `SELECT ` + recordColumns + ` FROM sponsor_for_conference WHERE 1=1`
	var args []interface{}

	if filter.ConferenceID != nil {
		query += " AND conference_id = ?"
		args = append(args, filter.ConferenceID.String())
	}
	if filter.SponsorID != nil {
		query += " AND sponsor_id = ?"
		args = append(args, filter.SponsorID.String())
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	query += " ORDER BY created_at ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ListPendingSignatures returns records with a pending signature and fewer
// than maxReminders reminders. Age filtering is left to the caller.
func ListPendingSignatures(ctx context.Context, q Querier, maxReminders int) ([]models.SponsorForConference, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM sponsor_for_conference
		WHERE signature_status = 'pending' AND reminder_count < ? AND contract_sent_at IS NOT NULL
		ORDER BY contract_sent_at ASC
	`, maxReminders)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

// BoardCard is a pipeline record joined with the names needed to draw it.
type BoardCard struct {
	Record      models.SponsorForConference `json:"record"`
	SponsorName string                      `json:"sponsor_name"`
	TierTitle   string                      `json:"tier_title,omitempty"`
}

// ListBoard returns the cards of one conference ordered by sponsor name.
func ListBoard(ctx context.Context, q Querier, conferenceID uuid.UUID) ([]BoardCard, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+prefixColumns("r", recordColumns)+`, s.name, COALESCE(t.title, '')
		FROM sponsor_for_conference r
		JOIN sponsors s ON s.id = r.sponsor_id
		LEFT JOIN sponsor_tiers t ON t.id = r.tier_id
		WHERE r.conference_id = ?
		ORDER BY s.name ASC
	`, conferenceID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []BoardCard
	for rows.Next() {
		var card BoardCard
		rec, err := scanRecordWith(rows, &card.SponsorName, &card.TierTitle)
		if err != nil {
			return nil, err
		}
		card.Record = *rec
		cards = append(cards, card)
	}

	return cards, rows.Err()
}

func recordArgs(rec *models.SponsorForConference) ([]interface{}, error) {
	addons, err := marshalJSON(rec.AddonTierIDs)
	if err != nil {
		return nil, err
	}
	tags, err := marshalJSON(rec.Tags)
	if err != nil {
		return nil, err
	}

	return []interface{}{
		rec.ID.String(), rec.SponsorID.String(), rec.ConferenceID.String(),
		nullableID(rec.TierID), addons, rec.Status, rec.ContractStatus, rec.SignatureStatus, rec.InvoiceStatus,
		rec.ContractValue, rec.ContractCurrency, rec.SignerName, rec.SignerEmail, rec.SigningURL,
		rec.SigningProvider, nullableString(rec.AgreementID), nullableString(rec.PortalToken), rec.ReminderCount,
		tags, nullableID(rec.AssignedOrganizerID), nullableID(rec.ContractAssetID), nullableID(rec.ContractTemplateID),
		rec.ContactInitiatedAt, rec.ContractSentAt, rec.ContractSignedAt, rec.OrganizerSignedAt,
		rec.OrganizerSignedBy, rec.InvoiceSentAt, rec.InvoicePaidAt, rec.CreatedAt, rec.UpdatedAt,
	}, nil
}

func scanRecords(rows *sql.Rows) ([]models.SponsorForConference, error) {
	var records []models.SponsorForConference
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func scanRecord(row rowScanner) (*models.SponsorForConference, error) {
	return scanRecordWith(row)
}

// scanRecordWith scans the record columns followed by any extra destinations.
func scanRecordWith(row rowScanner, extra ...interface{}) (*models.SponsorForConference, error) {
	rec := &models.SponsorForConference{}
	var tierID, addons, signerName, signerEmail, signingURL, provider, agreementID, portalToken sql.NullString
	var tags, organizerID, assetID, templateID, organizerSignedBy sql.NullString

	dest := []interface{}{
		&rec.ID,
		&rec.SponsorID,
		&rec.ConferenceID,
		&tierID,
		&addons,
		&rec.Status,
		&rec.ContractStatus,
		&rec.SignatureStatus,
		&rec.InvoiceStatus,
		&rec.ContractValue,
		&rec.ContractCurrency,
		&signerName,
		&signerEmail,
		&signingURL,
		&provider,
		&agreementID,
		&portalToken,
		&rec.ReminderCount,
		&tags,
		&organizerID,
		&assetID,
		&templateID,
		&rec.ContactInitiatedAt,
		&rec.ContractSentAt,
		&rec.ContractSignedAt,
		&rec.OrganizerSignedAt,
		&organizerSignedBy,
		&rec.InvoiceSentAt,
		&rec.InvoicePaidAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	rec.TierID = parseNullableID(tierID)
	rec.SignerName = signerName.String
	rec.SignerEmail = signerEmail.String
	rec.SigningURL = signingURL.String
	rec.SigningProvider = provider.String
	rec.AgreementID = agreementID.String
	rec.PortalToken = portalToken.String
	rec.AssignedOrganizerID = parseNullableID(organizerID)
	rec.ContractAssetID = parseNullableID(assetID)
	rec.ContractTemplateID = parseNullableID(templateID)
	rec.OrganizerSignedBy = organizerSignedBy.String

	if err := unmarshalJSON(addons, &rec.AddonTierIDs); err != nil {
		return nil, fmt.Errorf("decode addon tiers: %w", err)
	}
	if err := unmarshalJSON(tags, &rec.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}

	return rec, nil
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// SetReminderCount updates only the reminder counter, leaving concurrent
// edits to other fields alone.
func SetReminderCount(ctx context.Context, q Querier, id uuid.UUID, count int) error {
	res, err := q.ExecContext(ctx, `
		UPDATE sponsor_for_conference SET reminder_count = ?, updated_at = ? WHERE id = ?
	`, count, time.Now().UTC(), id.String())
	if err != nil {
		return err
	}
	return requireRow(res, "sponsor for conference", id.String())
}
