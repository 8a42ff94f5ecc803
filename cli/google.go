// ABOUTME: Google Workspace CLI commands
// ABOUTME: Authorizes the Google account and imports Gmail and Calendar correspondence
package cli

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/harperreed/sponsordesk/sync"
)

// GoogleAuthCommand runs the OAuth consent flow and saves the token.
func (a *App) GoogleAuthCommand(ctx context.Context, args []string) error {
	fs := a.flags("google auth")
	addr := fs.String("listen", "127.0.0.1:8765", "Callback listener address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	open := func(url string) error {
		a.printf("Opening browser for Google OAuth...\n")
		a.printf("\nIf browser doesn't open, visit this URL:\n%s\n\n", url)
		_ = openBrowser(url)
		return nil
	}

	if err := sync.AuthorizeAndSave(ctx, a.Config.Mail.CredentialsPath, a.Config.Mail.TokenPath, *addr, open); err != nil {
		return fmt.Errorf("OAuth flow failed: %w", err)
	}

	a.printf("✓ Authenticated successfully\n")
	a.printf("✓ Token saved to %s\n", a.Config.Mail.TokenPath)
	return nil
}

// ImportGmailCommand logs emails exchanged with sponsor contacts.
func (a *App) ImportGmailCommand(ctx context.Context, args []string) error {
	fs := a.flags("google import-gmail")
	days := fs.Int("days", 30, "How far back the first import reaches")
	if err := fs.Parse(args); err != nil {
		return err
	}

	gmailService, _, err := sync.NewServices(ctx, a.Config.Mail.CredentialsPath, a.Config.Mail.TokenPath)
	if err != nil {
		return err
	}

	result, err := a.Importer.ImportGmail(ctx, sync.NewGmailSource(gmailService), *days)
	if err != nil {
		return fmt.Errorf("gmail import failed: %w", err)
	}
	a.printResult(result)
	return nil
}

// ImportCalendarCommand logs meetings held with sponsor contacts.
func (a *App) ImportCalendarCommand(ctx context.Context, args []string) error {
	fs := a.flags("google import-calendar")
	days := fs.Int("days", 30, "How far back the first import reaches")
	if err := fs.Parse(args); err != nil {
		return err
	}

	_, calendarService, err := sync.NewServices(ctx, a.Config.Mail.CredentialsPath, a.Config.Mail.TokenPath)
	if err != nil {
		return err
	}

	result, err := a.Importer.ImportCalendar(ctx, sync.NewCalendarSource(calendarService), *days)
	if err != nil {
		return fmt.Errorf("calendar import failed: %w", err)
	}
	a.printResult(result)
	return nil
}

func (a *App) printResult(r *sync.Result) {
	a.printf("✓ %s: scanned %d, matched %d, logged %d\n", r.Job, r.Scanned, r.Matched, r.Logged)
	if r.Duplicates > 0 || r.Skipped > 0 {
		a.printf("  %d already imported, %d skipped\n", r.Duplicates, r.Skipped)
	}
}

// openBrowser attempts to open URL in default browser
func openBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		cmd = "xdg-open"
		args = []string{url}
	}

	return exec.Command(cmd, args...).Start()
}
