// ABOUTME: Template variables describing a sponsor's pipeline record
// ABOUTME: Shared by contract generation, portal emails and reminder emails
package mail

import (
	"context"
	"strconv"

	"github.com/harperreed/sponsordesk/apperr"
	"github.com/harperreed/sponsordesk/db"
	"github.com/harperreed/sponsordesk/models"
	"github.com/harperreed/sponsordesk/render"
)

const dateLayout = "2 January 2006"

// RecordVars returns the substitution variables for a record. tier may be nil.
func RecordVars(rec *models.SponsorForConference, sponsor *models.Sponsor, conf *models.Conference, tier *models.Tier, senderName string) map[string]string {
	vars := map[string]string{
		"sponsor_name":      sponsor.Name,
		"conference_title":  conf.Title,
		"conference_city":   conf.City,
		"conference_date":   "",
		"organizer_name":    conf.OrganizerName,
		"tier_name":         "",
		"contract_value":    render.FormatMoney(rec.ContractValue, ""),
		"contract_currency": rec.ContractCurrency,
		"signer_name":       rec.SignerName,
		"signer_email":      rec.SignerEmail,
		"signing_url":       rec.SigningURL,
		"sender_name":       senderName,
		"reminder_number":   strconv.Itoa(rec.ReminderCount),
		"signed_at":         "",
	}

	if conf.StartDate != nil {
		vars["conference_date"] = conf.StartDate.Format(dateLayout)
	}
	if tier != nil {
		vars["tier_name"] = tier.Title
	}
	if rec.ContractSignedAt != nil {
		vars["signed_at"] = rec.ContractSignedAt.UTC().Format(dateLayout)
	}
	if vars["signer_name"] == "" {
		if c := sponsor.PrimaryContact(); c != nil {
			vars["signer_name"] = c.Name
		}
	}

	return vars
}

// LoadTemplate returns the stored template for slug, or the built-in default.
func LoadTemplate(ctx context.Context, q db.Querier, slug string) (models.EmailTemplate, error) {
	tmpl, err := db.GetEmailTemplate(ctx, q, slug)
	if err == nil {
		return *tmpl, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return models.EmailTemplate{}, err
	}
	if def, ok := DefaultTemplates[slug]; ok {
		return def, nil
	}
	return models.EmailTemplate{}, apperr.Configuration("no email template %q", slug)
}
