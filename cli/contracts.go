// ABOUTME: Contract CLI commands
// ABOUTME: Generates contracts, nudges signers and runs the reminder sweep by hand
package cli

import (
	"context"
	"fmt"
)

// GenerateContractCommand renders the contract and sends it for signature.
func (a *App) GenerateContractCommand(ctx context.Context, args []string) error {
	fs := a.flags("generate-contract")
	record := fs.String("record", "", "Pipeline record ID (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	recordID, err := argID(fs, "record", *record)
	if err != nil {
		return err
	}

	gen, err := a.Contracts.GenerateContract(ctx, recordID, actor)
	if err != nil {
		return fmt.Errorf("failed to generate contract: %w", err)
	}

	a.printf("✓ Contract generated: %s (%d bytes)\n", gen.Asset.Filename, gen.Asset.Size)
	a.printf("  Agreement: %s (%s)\n", gen.Agreement.ID, gen.Agreement.Status)
	if gen.Agreement.SigningURL != "" {
		a.printf("  Signing link: %s\n", gen.Agreement.SigningURL)
	}
	for _, m := range gen.Missing {
		a.printf("  ⚠️  unfilled placeholder: {{%s}}\n", m)
	}
	return nil
}

// RemindCommand asks the signing provider to nudge the signer now.
func (a *App) RemindCommand(ctx context.Context, args []string) error {
	fs := a.flags("remind")
	record := fs.String("record", "", "Pipeline record ID (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	recordID, err := argID(fs, "record", *record)
	if err != nil {
		return err
	}

	reminder, err := a.Contracts.SendSigningReminder(ctx, recordID, actor)
	if err != nil {
		return fmt.Errorf("failed to send reminder: %w", err)
	}
	a.printf("✓ Reminder %s (%s)\n", reminder.ID, reminder.Status)
	return nil
}

// RefreshSignatureCommand pulls the agreement status from the provider.
func (a *App) RefreshSignatureCommand(ctx context.Context, args []string) error {
	fs := a.flags("refresh-signature")
	record := fs.String("record", "", "Pipeline record ID (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	recordID, err := argID(fs, "record", *record)
	if err != nil {
		return err
	}

	rec, err := a.Contracts.RefreshSignatureStatus(ctx, recordID, actor)
	if err != nil {
		return fmt.Errorf("failed to refresh signature status: %w", err)
	}
	a.printf("✓ Signature: %s, contract: %s\n", rec.SignatureStatus, rec.ContractStatus)
	return nil
}

// SweepCommand runs the contract reminder sweep once.
func (a *App) SweepCommand(ctx context.Context, args []string) error {
	result, err := a.Scheduler.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	a.printf("Reminder sweep: %d candidates, %d sent, %d failed\n", result.Total, result.Sent, result.Failed)
	if result.Message != "" {
		a.printf("  %s\n", result.Message)
	}
	return nil
}
