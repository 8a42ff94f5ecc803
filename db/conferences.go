// ABOUTME: Conference database operations
// ABOUTME: Handles conferences, sponsor tiers, contract templates and email templates
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

const conferenceColumns = `id, title, city, start_date, end_date, organizer_name, organizer_email,
	signing_provider, contract_template_id, created_at, updated_at`

func CreateConference(ctx context.Context, q Querier, conf *models.Conference) error {
	if strings.TrimSpace(conf.Title) == "" {
		return apperr.InvalidField("title", "is required")
	}
	if conf.SigningProvider == "" {
		conf.SigningProvider = models.ProviderSelfHosted
	}
	if conf.SigningProvider != models.ProviderSelfHosted && conf.SigningProvider != models.ProviderExternal {
		return apperr.InvalidField("signing_provider", fmt.Sprintf("unknown provider %q", conf.SigningProvider))
	}
	if conf.ID == uuid.Nil {
		conf.ID = uuid.New()
	}
	now := time.Now().UTC()
	conf.CreatedAt = now
	conf.UpdatedAt = now

	_, err := q.ExecContext(ctx, `
		INSERT INTO conferences (`+conferenceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, conf.ID.String(), conf.Title, conf.City, conf.StartDate, conf.EndDate, conf.OrganizerName, conf.OrganizerEmail,
		conf.SigningProvider, nullableID(conf.ContractTemplateID), conf.CreatedAt, conf.UpdatedAt)

	return err
}

func GetConference(ctx context.Context, q Querier, id uuid.UUID) (*models.Conference, error) {
	conf, err := scanConference(q.QueryRowContext(ctx, `SELECT `+conferenceColumns+` FROM conferences WHERE id = ?`, id.String()))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("conference", id.String())
	}
	return conf, err
}

// ListConferences returns every conference, newest first.
func ListConferences(ctx context.Context, q Querier) ([]models.Conference, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+conferenceColumns+` FROM conferences ORDER BY created_at DESC, title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var confs []models.Conference
	for rows.Next() {
		conf, err := scanConference(rows)
		if err != nil {
			return nil, err
		}
		confs = append(confs, *conf)
	}
	return confs, rows.Err()
}

func scanConference(row rowScanner) (*models.Conference, error) {
	conf := &models.Conference{}
	var city, organizerName, organizerEmail, templateID sql.NullString

	err := row.Scan(
		&conf.ID,
		&conf.Title,
		&city,
		&conf.StartDate,
		&conf.EndDate,
		&organizerName,
		&organizerEmail,
		&conf.SigningProvider,
		&templateID,
		&conf.CreatedAt,
		&conf.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	conf.City = city.String
	conf.OrganizerName = organizerName.String
	conf.OrganizerEmail = organizerEmail.String
	conf.ContractTemplateID = parseNullableID(templateID)

	return conf, nil
}

func UpdateConference(ctx context.Context, q Querier, conf *models.Conference) error {
	conf.UpdatedAt = time.Now().UTC()

	res, err := q.ExecContext(ctx, `
		UPDATE conferences
		SET title = ?, city = ?, start_date = ?, end_date = ?, organizer_name = ?, organizer_email = ?,
			signing_provider = ?, contract_template_id = ?, updated_at = ?
		WHERE id = ?
	`, conf.Title, conf.City, conf.StartDate, conf.EndDate, conf.OrganizerName, conf.OrganizerEmail,
		conf.SigningProvider, nullableID(conf.ContractTemplateID), conf.UpdatedAt, conf.ID.String())
	if err != nil {
		return err
	}

	return requireRow(res, "conference", conf.ID.String())
}

func CreateTier(ctx context.Context, q Querier, tier *models.Tier) error {
	if tier.Kind == "" {
		tier.Kind = models.TierStandard
	}
	if tier.Currency == "" {
		tier.Currency = "NOK"
	}
	if tier.ID == uuid.Nil {
		tier.ID = uuid.New()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO sponsor_tiers (id, conference_id, title, price, currency, kind)
		VALUES (?, ?, ?, ?, ?, ?)
	`, tier.ID.String(), tier.ConferenceID.String(), tier.Title, tier.Price, tier.Currency, tier.Kind)

	return err
}

func GetTier(ctx context.Context, q Querier, id uuid.UUID) (*models.Tier, error) {
	tier := &models.Tier{}
	err := q.QueryRowContext(ctx, `
		SELECT id, conference_id, title, price, currency, kind FROM sponsor_tiers WHERE id = ?
	`, id.String()).Scan(&tier.ID, &tier.ConferenceID, &tier.Title, &tier.Price, &tier.Currency, &tier.Kind)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("tier", id.String())
	}
	if err != nil {
		return nil, err
	}
	return tier, nil
}

func ListTiers(ctx context.Context, q Querier, conferenceID uuid.UUID) ([]models.Tier, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, conference_id, title, price, currency, kind FROM sponsor_tiers
		WHERE conference_id = ?
		ORDER BY kind DESC, price DESC
	`, conferenceID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tiers []models.Tier
	for rows.Next() {
		var tier models.Tier
		if err := rows.Scan(&tier.ID, &tier.ConferenceID, &tier.Title, &tier.Price, &tier.Currency, &tier.Kind); err != nil {
			return nil, err
		}
		tiers = append(tiers, tier)
	}

	return tiers, rows.Err()
}

func CreateContractTemplate(ctx context.Context, q Querier, tmpl *models.ContractTemplate) error {
	if tmpl.ID == uuid.Nil {
		tmpl.ID = uuid.New()
	}
	now := time.Now().UTC()
	tmpl.CreatedAt = now
	tmpl.UpdatedAt = now

	blocks, err := marshalJSON(tmpl.Blocks)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO contract_templates (id, conference_id, title, blocks, is_default, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, tmpl.ID.String(), tmpl.ConferenceID.String(), tmpl.Title, blocks, tmpl.IsDefault, tmpl.CreatedAt, tmpl.UpdatedAt)

	return err
}

func GetContractTemplate(ctx context.Context, q Querier, id uuid.UUID) (*models.ContractTemplate, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, conference_id, title, blocks, is_default, created_at, updated_at
		FROM contract_templates WHERE id = ?
	`, id.String())
	tmpl, err := scanContractTemplate(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("contract template", id.String())
	}
	return tmpl, err
}

// ResolveContractTemplate picks the template for a conference: the explicit
// id when given, then the conference's configured template, then its default.
func ResolveContractTemplate(ctx context.Context, q Querier, conf *models.Conference, explicit *uuid.UUID) (*models.ContractTemplate, error) {
	if explicit != nil {
		return GetContractTemplate(ctx, q, *explicit)
	}
	if conf.ContractTemplateID != nil {
		return GetContractTemplate(ctx, q, *conf.ContractTemplateID)
	}

	row := q.QueryRowContext(ctx, `
		SELECT id, conference_id, title, blocks, is_default, created_at, updated_at
		FROM contract_templates
		WHERE conference_id = ?
		ORDER BY is_default DESC, created_at ASC
		LIMIT 1
	`, conf.ID.String())
	tmpl, err := scanContractTemplate(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("contract template for conference", conf.ID.String())
	}
	return tmpl, err
}

func scanContractTemplate(row rowScanner) (*models.ContractTemplate, error) {
	tmpl := &models.ContractTemplate{}
	var blocks sql.NullString
	if err := row.Scan(&tmpl.ID, &tmpl.ConferenceID, &tmpl.Title, &blocks, &tmpl.IsDefault, &tmpl.CreatedAt, &tmpl.UpdatedAt); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(blocks, &tmpl.Blocks); err != nil {
		return nil, fmt.Errorf("decode template blocks: %w", err)
	}
	return tmpl, nil
}

// UpsertEmailTemplate stores the subject and body for a slug, replacing any previous version.
func UpsertEmailTemplate(ctx context.Context, q Querier, tmpl *models.EmailTemplate) error {
	tmpl.UpdatedAt = time.Now().UTC()
	_, err := q.ExecContext(ctx, `
		INSERT INTO email_templates (slug, subject, body, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET subject = excluded.subject, body = excluded.body, updated_at = excluded.updated_at
	`, tmpl.Slug, tmpl.Subject, tmpl.Body, tmpl.UpdatedAt)
	return err
}

func GetEmailTemplate(ctx context.Context, q Querier, slug string) (*models.EmailTemplate, error) {
	tmpl := &models.EmailTemplate{}
	err := q.QueryRowContext(ctx, `
		SELECT slug, subject, body, updated_at FROM email_templates WHERE slug = ?
	`, slug).Scan(&tmpl.Slug, &tmpl.Subject, &tmpl.Body, &tmpl.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("email template", slug)
	}
	if err != nil {
		return nil, err
	}
	return tmpl, nil
}
