// ABOUTME: Sponsor database operations
// ABOUTME: Handles sponsor CRUD, name search and onboarding token lookups
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
)

const sponsorColumns = `id, name, website, logo, logo_bright, org_number, address, contact_persons,
	billing_email, billing_reference, billing_comments, agreement_asset_id, onboarding_token, created_at, updated_at`

func CreateSponsor(ctx context.Context, q Querier, sponsor *models.Sponsor) error {
	if strings.TrimSpace(sponsor.Name) == "" {
		return apperr.InvalidField("name", "is required")
	}
	if sponsor.ID == uuid.Nil {
		sponsor.ID = uuid.New()
	}
	now := time.Now().UTC()
	sponsor.CreatedAt = now
	sponsor.UpdatedAt = now

	contacts, err := marshalJSON(sponsor.ContactPersons)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO sponsors (`+sponsorColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sponsor.ID.String(), sponsor.Name, sponsor.Website, sponsor.LogoSVG, sponsor.LogoBrightSVG,
		sponsor.OrgNumber, sponsor.Address, contacts,
		sponsor.Billing.Email, sponsor.Billing.Reference, sponsor.Billing.Comments,
		nullableID(sponsor.AgreementAssetID), nullableString(sponsor.OnboardingToken),
		sponsor.CreatedAt, sponsor.UpdatedAt)

	return err
}

func GetSponsor(ctx context.Context, q Querier, id uuid.UUID) (*models.Sponsor, error) {
	row := q.QueryRowContext(ctx, `SELECT `+sponsorColumns+` FROM sponsors WHERE id = ?`, id.String())
	sponsor, err := scanSponsor(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("sponsor", id.String())
	}
	return sponsor, err
}

// GetSponsorByOnboardingToken resolves the sponsor behind a public onboarding link.
func GetSponsorByOnboardingToken(ctx context.Context, q Querier, token string) (*models.Sponsor, error) {
	if token == "" {
		return nil, apperr.NotFound("onboarding token", "(empty)")
	}
	row := q.QueryRowContext(ctx, `SELECT `+sponsorColumns+` FROM sponsors WHERE onboarding_token = ?`, token)
	sponsor, err := scanSponsor(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("onboarding token", token)
	}
	return sponsor, err
}

func FindSponsorByName(ctx context.Context, q Querier, name string) (*models.Sponsor, error) {
	row := q.QueryRowContext(ctx, `SELECT `+sponsorColumns+` FROM sponsors WHERE LOWER(name) = LOWER(?)`, name)
	sponsor, err := scanSponsor(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("sponsor", name)
	}
	return sponsor, err
}

func FindSponsors(ctx context.Context, q Querier, query string, limit int) ([]models.Sponsor, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := q.QueryContext(ctx, `
		SELECT `+sponsorColumns+` FROM sponsors
		WHERE LOWER(name) LIKE LOWER(?) OR LOWER(COALESCE(website, '')) LIKE LOWER(?)
		ORDER BY name
		LIMIT ?
	`, "%"+query+"%", "%"+query+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sponsors []models.Sponsor
	for rows.Next() {
		sponsor, err := scanSponsor(rows)
		if err != nil {
			return nil, err
		}
		sponsors = append(sponsors, *sponsor)
	}

	return sponsors, rows.Err()
}

// ListSponsors returns every sponsor ordered by name.
func ListSponsors(ctx context.Context, q Querier) ([]models.Sponsor, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+sponsorColumns+` FROM sponsors ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sponsors []models.Sponsor
	for rows.Next() {
		sponsor, err := scanSponsor(rows)
		if err != nil {
			return nil, err
		}
		sponsors = append(sponsors, *sponsor)
	}

	return sponsors, rows.Err()
}

func UpdateSponsor(ctx context.Context, q Querier, sponsor *models.Sponsor) error {
	sponsor.UpdatedAt = time.Now().UTC()

	contacts, err := marshalJSON(sponsor.ContactPersons)
	if err != nil {
		return err
	}

	res, err := q.ExecContext(ctx, `
		UPDATE sponsors
		SET name = ?, website = ?, logo = ?, logo_bright = ?, org_number = ?, address = ?,
			contact_persons = ?, billing_email = ?, billing_reference = ?, billing_comments = ?,
			agreement_asset_id = ?, onboarding_token = ?, updated_at = ?
		WHERE id = ?
	`, sponsor.Name, sponsor.Website, sponsor.LogoSVG, sponsor.LogoBrightSVG, sponsor.OrgNumber, sponsor.Address,
		contacts, sponsor.Billing.Email, sponsor.Billing.Reference, sponsor.Billing.Comments,
		nullableID(sponsor.AgreementAssetID), nullableString(sponsor.OnboardingToken), sponsor.UpdatedAt,
		sponsor.ID.String())
	if err != nil {
		return err
	}

	return requireRow(res, "sponsor", sponsor.ID.String())
}

func scanSponsor(row rowScanner) (*models.Sponsor, error) {
	sponsor := &models.Sponsor{}
	var website, logo, logoBright, orgNumber, address, contacts sql.NullString
	var billingEmail, billingRef, billingComments, agreementAsset, onboardingToken sql.NullString

	err := row.Scan(
		&sponsor.ID,
		&sponsor.Name,
		&website,
		&logo,
		&logoBright,
		&orgNumber,
		&address,
		&contacts,
		&billingEmail,
		&billingRef,
		&billingComments,
		&agreementAsset,
		&onboardingToken,
		&sponsor.CreatedAt,
		&sponsor.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sponsor.Website = website.String
	sponsor.LogoSVG = logo.String
	sponsor.LogoBrightSVG = logoBright.String
	sponsor.OrgNumber = orgNumber.String
	sponsor.Address = address.String
	sponsor.Billing = models.BillingInfo{
		Email:     billingEmail.String,
		Reference: billingRef.String,
		Comments:  billingComments.String,
	}
	sponsor.AgreementAssetID = parseNullableID(agreementAsset)
	sponsor.OnboardingToken = onboardingToken.String

	if err := unmarshalJSON(contacts, &sponsor.ContactPersons); err != nil {
		return nil, fmt.Errorf("decode contact persons: %w", err)
	}

	return sponsor, nil
}

func nullableID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return id.String()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func parseNullableID(ns sql.NullString) *uuid.UUID {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	id, err := uuid.Parse(ns.String)
	if err != nil {
		return nil
	}
	return &id
}

func requireRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound(entity, id)
	}
	return nil
}
