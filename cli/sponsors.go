// ABOUTME: Sponsor CLI commands
// ABOUTME: Adds sponsor companies and lists them with their primary contact
package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/db"
	"github.com/harperreed/sponsordesk/models"
	"github.com/harperreed/sponsordesk/signing"
)

// AddSponsorCommand adds a sponsor and prints its onboarding link.
func (a *App) AddSponsorCommand(ctx context.Context, args []string) error {
	fs := a.flags("add-sponsor")
	name := fs.String("name", "", "Company name (required)")
	website := fs.String("website", "", "Company website")
	orgNumber := fs.String("org-number", "", "Organization number")
	contact := fs.String("contact", "", "Primary contact name")
	email := fs.String("email", "", "Primary contact email")
	billing := fs.String("billing-email", "", "Invoice email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *name == "" {
		return fmt.Errorf("--name is required")
	}

	sponsor := &models.Sponsor{
		Name:      *name,
		Website:   *website,
		OrgNumber: *orgNumber,
		Billing:   models.BillingInfo{Email: *billing},
	}
	if *contact != "" || *email != "" {
		sponsor.ContactPersons = []models.ContactPerson{{Name: *contact, Email: *email, IsPrimary: true}}
	}

	if err := a.Pipeline.CreateSponsor(ctx, sponsor); err != nil {
		return fmt.Errorf("failed to create sponsor: %w", err)
	}

	a.printf("✓ Sponsor created: %s (ID: %s)\n", sponsor.Name, sponsor.ID)
	if a.Config != nil {
		a.printf("  Onboarding: %s\n", signing.OnboardingURL(a.Config.Server.BaseURL, sponsor.OnboardingToken))
	}
	return nil
}

// ListSponsorsCommand lists sponsors, optionally filtered by name or website.
func (a *App) ListSponsorsCommand(ctx context.Context, args []string) error {
	fs := a.flags("list-sponsors")
	query := fs.String("query", "", "Search by name or website")
	limit := fs.Int("limit", 50, "Maximum results")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var sponsors []models.Sponsor
	var err error
	if *query == "" {
		sponsors, err = db.ListSponsors(ctx, a.DB)
	} else {
		sponsors, err = a.Pipeline.FindSponsors(ctx, *query, *limit)
	}
	if err != nil {
		return fmt.Errorf("failed to find sponsors: %w", err)
	}

	if len(sponsors) == 0 {
		a.printf("No sponsors found\n")
		return nil
	}

	w := tabwriter.NewWriter(a.out(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tCONTACT\tWEBSITE\tID")
	_, _ = fmt.Fprintln(w, "----\t-------\t-------\t--")
	for i, s := range sponsors {
		if *query == "" && i >= *limit {
			break
		}
		contact := "-"
		if p := s.PrimaryContact(); p != nil {
			contact = p.Email
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Name, contact, orDash(s.Website), s.ID)
	}
	return w.Flush()
}

// resolveSponsor accepts a sponsor id or an exact name.
func (a *App) resolveSponsor(ctx context.Context, ref string) (uuid.UUID, error) {
	if ref == "" {
		return uuid.Nil, fmt.Errorf("--sponsor is required")
	}
	if id, err := uuid.Parse(ref); err == nil {
		return id, nil
	}
	sponsor, err := db.FindSponsorByName(ctx, a.DB, ref)
	if err != nil {
		return uuid.Nil, err
	}
	return sponsor.ID, nil
}
