// ABOUTME: Pipeline CLI commands
// ABOUTME: Adds sponsors to conferences, changes statuses, logs notes and deletes records
package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/harperreed/sponsordesk/db"
	"github.com/harperreed/sponsordesk/models"
	"github.com/harperreed/sponsordesk/pipeline"
	"github.com/harperreed/sponsordesk/render"
	"github.com/harperreed/sponsordesk/status"
)

// AddToPipelineCommand creates a pipeline record for a sponsor at a conference.
func (a *App) AddToPipelineCommand(ctx context.Context, args []string) error {
	fs := a.flags("add-to-pipeline")
	sponsor := fs.String("sponsor", "", "Sponsor ID or exact name (required)")
	conference := fs.String("conference", "", "Conference ID (required)")
	tier := fs.String("tier", "", "Tier ID")
	value := fs.Int64("value", -1, "Contract value in minor units (default: tier price)")
	currency := fs.String("currency", "", "Contract currency")
	signerName := fs.String("signer-name", "", "Who signs the contract")
	signerEmail := fs.String("signer-email", "", "Signer email")
	tags := fs.String("tags", "", "Comma-separated tags")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sponsorID, err := a.resolveSponsor(ctx, *sponsor)
	if err != nil {
		return err
	}
	confID, err := parseID("conference", *conference)
	if err != nil {
		return err
	}

	in := pipeline.AddInput{
		SponsorID:        sponsorID,
		ConferenceID:     confID,
		ContractCurrency: *currency,
		SignerName:       *signerName,
		SignerEmail:      *signerEmail,
		Actor:            actor,
	}
	if *tier != "" {
		tierID, err := parseID("tier", *tier)
		if err != nil {
			return err
		}
		in.TierID = &tierID
	}
	if *value >= 0 {
		in.ContractValue = value
	}
	if *tags != "" {
		for _, t := range strings.Split(*tags, ",") {
			if t = strings.TrimSpace(t); t != "" {
				in.Tags = append(in.Tags, t)
			}
		}
	}

	rec, err := a.Pipeline.AddToPipeline(ctx, in)
	if err != nil {
		return fmt.Errorf("failed to add to pipeline: %w", err)
	}

	a.printf("✓ Added to pipeline (ID: %s)\n", rec.ID)
	a.printf("  Status: %s\n", rec.Status)
	a.printf("  Value: %s\n", render.FormatMoney(rec.ContractValue, rec.ContractCurrency))
	return nil
}

// SetStatusCommand changes one status axis of a record.
func (a *App) SetStatusCommand(ctx context.Context, args []string) error {
	fs := a.flags("set-status")
	record := fs.String("record", "", "Pipeline record ID (required)")
	axis := fs.String("axis", string(status.AxisPipeline), "Status axis: pipeline, contract, signature or invoice")
	value := fs.String("value", "", "New status value (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	recordID, err := argID(fs, "record", *record)
	if err != nil {
		return err
	}
	parsedAxis, err := status.ParseAxis(*axis)
	if err != nil {
		return err
	}
	if *value == "" {
		return fmt.Errorf("--value is required (one of %s)", strings.Join(status.Values(parsedAxis), ", "))
	}

	rec, err := a.Pipeline.UpdateStatus(ctx, recordID, parsedAxis, *value, actor)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	a.printf("✓ %s status is now %s\n", parsedAxis, status.Get(rec, parsedAxis))
	return nil
}

// ListPipelineCommand prints the board of a conference.
func (a *App) ListPipelineCommand(ctx context.Context, args []string) error {
	fs := a.flags("list-pipeline")
	conference := fs.String("conference", "", "Conference ID (required)")
	only := fs.String("status", "", "Only show this pipeline status")
	if err := fs.Parse(args); err != nil {
		return err
	}

	confID, err := argID(fs, "conference", *conference)
	if err != nil {
		return err
	}

	cards, err := a.Pipeline.ListBoard(ctx, confID)
	if err != nil {
		return fmt.Errorf("failed to list pipeline: %w", err)
	}

	w := tabwriter.NewWriter(a.out(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SPONSOR\tSTATUS\tCONTRACT\tSIGNATURE\tINVOICE\tVALUE\tID")
	_, _ = fmt.Fprintln(w, "-------\t------\t--------\t---------\t-------\t-----\t--")
	shown := 0
	for _, c := range cards {
		r := c.Record
		if *only != "" && r.Status != *only {
			continue
		}
		shown++
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.SponsorName, r.Status, r.ContractStatus, r.SignatureStatus, r.InvoiceStatus,
			render.FormatMoney(r.ContractValue, r.ContractCurrency), r.ID)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	a.printf("\n%d records\n", shown)
	return nil
}

// AddNoteCommand logs a note, call, meeting or email on a record.
func (a *App) AddNoteCommand(ctx context.Context, args []string) error {
	fs := a.flags("add-note")
	record := fs.String("record", "", "Pipeline record ID (required)")
	kind := fs.String("type", models.ActivityNote, "Activity type: note, call, meeting or email")
	text := fs.String("text", "", "What happened (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	recordID, err := argID(fs, "record", *record)
	if err != nil {
		return err
	}

	activity, err := a.Pipeline.AddNote(ctx, recordID, *kind, *text, actor)
	if err != nil {
		return fmt.Errorf("failed to add note: %w", err)
	}
	a.printf("✓ Logged %s (ID: %s)\n", activity.Type, activity.ID)
	return nil
}

// ActivitiesCommand prints the history of a record.
func (a *App) ActivitiesCommand(ctx context.Context, args []string) error {
	fs := a.flags("activities")
	record := fs.String("record", "", "Pipeline record ID (required)")
	limit := fs.Int("limit", 0, "Maximum entries (0 for all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	recordID, err := argID(fs, "record", *record)
	if err != nil {
		return err
	}

	activities, err := a.Pipeline.ListActivities(ctx, recordID, *limit)
	if err != nil {
		return err
	}
	if len(activities) == 0 {
		a.printf("No activity yet\n")
		return nil
	}
	for _, act := range activities {
		line := act.Description
		if act.Metadata.OldValue != "" || act.Metadata.NewValue != "" {
			line += fmt.Sprintf(" (%s → %s)", orDash(act.Metadata.OldValue), orDash(act.Metadata.NewValue))
		}
		a.printf("%s  %-12s %s  [%s]\n", act.CreatedAt.Format("2006-01-02 15:04"), act.Type, line, orDash(act.CreatedBy))
	}
	return nil
}

// DeleteRecordCommand removes a pipeline record and its history.
func (a *App) DeleteRecordCommand(ctx context.Context, args []string) error {
	fs := a.flags("delete-record")
	record := fs.String("record", "", "Pipeline record ID (required)")
	withAsset := fs.Bool("delete-contract", false, "Also delete the contract document")
	if err := fs.Parse(args); err != nil {
		return err
	}

	recordID, err := argID(fs, "record", *record)
	if err != nil {
		return err
	}

	plan, err := a.Pipeline.DeleteRecord(ctx, recordID, db.DeleteOptions{DeleteContractAsset: *withAsset})
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	a.printDeletePlan(plan)
	return nil
}

// DeleteSponsorCommand removes a sponsor with all its records and documents.
func (a *App) DeleteSponsorCommand(ctx context.Context, args []string) error {
	fs := a.flags("delete-sponsor")
	sponsor := fs.String("sponsor", "", "Sponsor ID or exact name (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sponsor == "" && fs.NArg() > 0 {
		*sponsor = fs.Arg(0)
	}

	sponsorID, err := a.resolveSponsor(ctx, *sponsor)
	if err != nil {
		return err
	}
	plan, err := a.Pipeline.DeleteSponsor(ctx, sponsorID)
	if err != nil {
		return fmt.Errorf("failed to delete sponsor: %w", err)
	}
	a.printDeletePlan(plan)
	return nil
}

func (a *App) printDeletePlan(plan *db.DeletePlan) {
	a.printf("✓ Deleted %d sponsor(s), %d record(s), %d activities, %d asset(s)\n",
		len(plan.SponsorIDs), len(plan.RecordIDs), len(plan.ActivityIDs), len(plan.AssetIDs))
	if len(plan.RetainedAssetIDs) > 0 {
		ids := make([]string, 0, len(plan.RetainedAssetIDs))
		for _, id := range plan.RetainedAssetIDs {
			ids = append(ids, id.String())
		}
		a.printf("  Kept assets still in use: %s\n", strings.Join(ids, ", "))
	}
}

