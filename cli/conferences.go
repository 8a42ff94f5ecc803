// ABOUTME: Conference CLI commands
// ABOUTME: Creates conferences, sponsor tiers and the default contract template
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/harperreed/sponsordesk/db"
	"github.com/harperreed/sponsordesk/models"
	"github.com/harperreed/sponsordesk/render"
)

// AddConferenceCommand creates a conference.
func (a *App) AddConferenceCommand(ctx context.Context, args []string) error {
	fs := a.flags("add-conference")
	title := fs.String("title", "", "Conference title (required)")
	city := fs.String("city", "", "City")
	start := fs.String("start", "", "Start date (YYYY-MM-DD)")
	end := fs.String("end", "", "End date (YYYY-MM-DD)")
	organizer := fs.String("organizer", "", "Organizer company name")
	organizerEmail := fs.String("organizer-email", "", "Organizer contact email")
	provider := fs.String("signing", models.ProviderSelfHosted, "Signing provider (self-hosted or external)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *title == "" {
		return fmt.Errorf("--title is required")
	}

	conf := &models.Conference{
		Title:           *title,
		City:            *city,
		OrganizerName:   *organizer,
		OrganizerEmail:  *organizerEmail,
		SigningProvider: *provider,
	}
	var err error
	if conf.StartDate, err = parseDate("start", *start); err != nil {
		return err
	}
	if conf.EndDate, err = parseDate("end", *end); err != nil {
		return err
	}

	if err := db.CreateConference(ctx, a.DB, conf); err != nil {
		return fmt.Errorf("failed to create conference: %w", err)
	}

	a.printf("✓ Conference created: %s (ID: %s)\n", conf.Title, conf.ID)
	a.printf("  Signing: %s\n", conf.SigningProvider)
	return nil
}

// ListConferencesCommand prints every conference.
func (a *App) ListConferencesCommand(ctx context.Context, args []string) error {
	confs, err := db.ListConferences(ctx, a.DB)
	if err != nil {
		return fmt.Errorf("failed to list conferences: %w", err)
	}
	if len(confs) == 0 {
		a.printf("No conferences found\n")
		return nil
	}

	w := tabwriter.NewWriter(a.out(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TITLE\tCITY\tSTARTS\tSIGNING\tID")
	_, _ = fmt.Fprintln(w, "-----\t----\t------\t-------\t--")
	for _, c := range confs {
		starts := "-"
		if c.StartDate != nil {
			starts = c.StartDate.Format("2006-01-02")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.Title, orDash(c.City), starts, c.SigningProvider, c.ID)
	}
	return w.Flush()
}

// AddTierCommand adds a sponsor tier to a conference.
func (a *App) AddTierCommand(ctx context.Context, args []string) error {
	fs := a.flags("add-tier")
	conference := fs.String("conference", "", "Conference ID (required)")
	title := fs.String("title", "", "Tier title (required)")
	price := fs.Int64("price", 0, "Price in minor units (øre, cents)")
	currency := fs.String("currency", "NOK", "Currency code")
	addon := fs.Bool("addon", false, "Tier is an add-on")
	if err := fs.Parse(args); err != nil {
		return err
	}

	confID, err := parseID("conference", *conference)
	if err != nil {
		return err
	}
	if *title == "" {
		return fmt.Errorf("--title is required")
	}

	tier := &models.Tier{ConferenceID: confID, Title: *title, Price: *price, Currency: *currency}
	if *addon {
		tier.Kind = models.TierAddon
	}
	if err := db.CreateTier(ctx, a.DB, tier); err != nil {
		return fmt.Errorf("failed to create tier: %w", err)
	}

	a.printf("✓ Tier created: %s %s (ID: %s)\n", tier.Title, render.FormatMoney(tier.Price, tier.Currency), tier.ID)
	return nil
}

// SetTemplateCommand stores a plain-text contract template as the conference default.
func (a *App) SetTemplateCommand(ctx context.Context, args []string) error {
	fs := a.flags("set-template")
	conference := fs.String("conference", "", "Conference ID (required)")
	title := fs.String("title", "Sponsorship agreement", "Document title, may use placeholders")
	file := fs.String("file", "", "Template text file; blank lines separate paragraphs (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	confID, err := parseID("conference", *conference)
	if err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("--file is required")
	}
	text, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}

	conf, err := db.GetConference(ctx, a.DB, confID)
	if err != nil {
		return err
	}

	tmpl := &models.ContractTemplate{
		ConferenceID: confID,
		Title:        *title,
		Blocks:       render.BlocksFromText(string(text)),
		IsDefault:    true,
	}
	err = db.WithTx(ctx, a.DB, func(tx *sql.Tx) error {
		if err := db.CreateContractTemplate(ctx, tx, tmpl); err != nil {
			return err
		}
		conf.ContractTemplateID = &tmpl.ID
		return db.UpdateConference(ctx, tx, conf)
	})
	if err != nil {
		return fmt.Errorf("failed to store template: %w", err)
	}

	a.printf("✓ Template set for %s (%d blocks, ID: %s)\n", conf.Title, len(tmpl.Blocks), tmpl.ID)
	return nil
}

func parseDate(label, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s date %q: %w", label, value, err)
	}
	return &t, nil
}
