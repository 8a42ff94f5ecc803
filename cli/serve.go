// ABOUTME: HTTP server subcommand
// ABOUTME: Runs the pipeline API, signing portal and the background reminder worker
package cli

import (
	"context"

	"github.com/harperreed/sponsordesk/reminders"
	"github.com/harperreed/sponsordesk/web"
	"go.uber.org/zap"
)

// ServeCommand serves HTTP until ctx is cancelled. When REMINDER_INTERVAL is
// set the reminder sweep also runs on that schedule.
func (a *App) ServeCommand(ctx context.Context, portal web.Portal) error {
	cfg := a.Config

	worker := reminders.NewWorker(a.Scheduler, cfg.Reminders.Interval, a.logger())
	go worker.Run(ctx)

	server := web.NewServer(web.Services{
		Pipeline:  a.Pipeline,
		Contracts: a.Contracts,
		Sweeper:   a.Scheduler,
		Portal:    portal,
	}, web.Options{
		BaseURL:         cfg.Server.BaseURL,
		CronSecret:      cfg.Server.CronSecret,
		WebhookClientID: cfg.Signing.ClientID,
	}, a.logger())

	a.logger().Info("serving", zap.Int("port", cfg.Server.Port), zap.String("base_url", cfg.Server.BaseURL))
	return server.Start(ctx, cfg.Server.Port, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
}
