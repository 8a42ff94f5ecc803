// ABOUTME: Sponsor registration and the token-gated onboarding form
// ABOUTME: Issues onboarding links and validates contact and billing submissions field by field
package pipeline

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/apperr"
	"github.com/harperreed/sponsordesk/db"
	"github.com/harperreed/sponsordesk/models"
)

// CreateSponsor stores a new sponsor with a fresh onboarding token.
func (s *Service) CreateSponsor(ctx context.Context, sponsor *models.Sponsor) error {
	if sponsor.OnboardingToken == "" {
		sponsor.OnboardingToken = uuid.NewString()
	}
	if err := db.CreateSponsor(ctx, s.db, sponsor); err != nil {
		return err
	}
	s.logger.Sugar().Infow("sponsor created", "sponsor_id", sponsor.ID, "name", sponsor.Name)
	return nil
}

func (s *Service) FindSponsors(ctx context.Context, query string, limit int) ([]models.Sponsor, error) {
	sponsors, err := db.FindSponsors(ctx, s.db, query, limit)
	if err != nil {
		return nil, err
	}
	if sponsors == nil {
		sponsors = []models.Sponsor{}
	}
	return sponsors, nil
}

// Onboarding is what the onboarding form shows and accepts.
type Onboarding struct {
	SponsorName    string                 `json:"sponsor_name"`
	OrgNumber      string                 `json:"org_number,omitempty"`
	Address        string                 `json:"address,omitempty"`
	ContactPersons []models.ContactPerson `json:"contact_persons"`
	Billing        models.BillingInfo     `json:"billing"`
}

// GetOnboarding returns the current details for a token.
func (s *Service) GetOnboarding(ctx context.Context, token string) (*Onboarding, error) {
	sponsor, err := db.GetSponsorByOnboardingToken(ctx, s.db, token)
	if err != nil {
		return nil, err
	}
	contacts := sponsor.ContactPersons
	if contacts == nil {
		contacts = []models.ContactPerson{}
	}
	return &Onboarding{
		SponsorName:    sponsor.Name,
		OrgNumber:      sponsor.OrgNumber,
		Address:        sponsor.Address,
		ContactPersons: contacts,
		Billing:        sponsor.Billing,
	}, nil
}

// SubmitOnboarding replaces the sponsor's contacts and billing details. An
// invalid submission is rejected as a whole with one message per field.
func (s *Service) SubmitOnboarding(ctx context.Context, token string, in Onboarding) (*models.Sponsor, error) {
	sponsor, err := db.GetSponsorByOnboardingToken(ctx, s.db, token)
	if err != nil {
		return nil, err
	}

	contacts, err := validateOnboarding(&in)
	if err != nil {
		return nil, err
	}

	sponsor.ContactPersons = contacts
	sponsor.Billing = models.BillingInfo{
		Email:     strings.TrimSpace(in.Billing.Email),
		Reference: strings.TrimSpace(in.Billing.Reference),
		Comments:  strings.TrimSpace(in.Billing.Comments),
	}
	if in.OrgNumber != "" {
		sponsor.OrgNumber = strings.TrimSpace(in.OrgNumber)
	}
	if in.Address != "" {
		sponsor.Address = strings.TrimSpace(in.Address)
	}

	if err := db.UpdateSponsor(ctx, s.db, sponsor); err != nil {
		return nil, err
	}
	s.logger.Sugar().Infow("onboarding submitted", "sponsor_id", sponsor.ID, "contacts", len(contacts))
	return sponsor, nil
}

func validateOnboarding(in *Onboarding) ([]models.ContactPerson, error) {
	fields := map[string]string{}

	if len(in.ContactPersons) == 0 {
		fields["contact_persons"] = "at least one contact person is required"
	}

	contacts := make([]models.ContactPerson, 0, len(in.ContactPersons))
	primaries := 0
	for i, c := range in.ContactPersons {
		c.Name = strings.TrimSpace(c.Name)
		c.Email = strings.TrimSpace(c.Email)
		if c.Name == "" {
			fields[fmt.Sprintf("contact_persons[%d].name", i)] = "is required"
		}
		if c.Email == "" {
			fields[fmt.Sprintf("contact_persons[%d].email", i)] = "is required"
		} else if !validEmail(c.Email) {
			fields[fmt.Sprintf("contact_persons[%d].email", i)] = "is not a valid email address"
		}
		if c.IsPrimary {
			primaries++
		}
		contacts = append(contacts, c)
	}
	if primaries > 1 {
		fields["contact_persons"] = "only one contact person can be primary"
	}

	billing := strings.TrimSpace(in.Billing.Email)
	if billing == "" {
		fields["billing.email"] = "is required"
	} else if !validEmail(billing) {
		fields["billing.email"] = "is not a valid email address"
	}

	if len(fields) > 0 {
		return nil, apperr.Validation(fields)
	}
	if primaries == 0 && len(contacts) > 0 {
		contacts[0].IsPrimary = true
	}
	return contacts, nil
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
