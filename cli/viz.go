// ABOUTME: Visualization CLI commands
// ABOUTME: Prints the pipeline dashboard and writes the Graphviz pipeline graph
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/harperreed/sponsordesk/db"
	"github.com/harperreed/sponsordesk/viz"
)

// VizGraphCommand writes the pipeline graph of a conference.
func (a *App) VizGraphCommand(ctx context.Context, args []string) error {
	fs := a.flags("viz graph")
	conference := fs.String("conference", "", "Conference ID (required)")
	output := fs.String("output", "", "Output file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	confID, err := argID(fs, "conference", *conference)
	if err != nil {
		return err
	}

	dot, err := viz.NewGraphGenerator(a.DB).GeneratePipelineGraph(ctx, confID)
	if err != nil {
		return err
	}

	if *output != "" {
		return os.WriteFile(*output, []byte(dot), 0644)
	}
	a.printf("%s\n", dot)
	return nil
}

// VizDashboardCommand prints pipeline totals and contracts waiting on a signature.
func (a *App) VizDashboardCommand(ctx context.Context, args []string) error {
	fs := a.flags("viz dashboard")
	conference := fs.String("conference", "", "Conference ID (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	confID, err := argID(fs, "conference", *conference)
	if err != nil {
		return err
	}

	conf, err := db.GetConference(ctx, a.DB, confID)
	if err != nil {
		return err
	}
	cards, err := db.ListBoard(ctx, a.DB, confID)
	if err != nil {
		return fmt.Errorf("failed to load pipeline: %w", err)
	}

	stats := viz.GenerateDashboardStats(conf.Title, cards, a.now().Now())
	a.printf("%s", viz.RenderDashboard(stats))
	return nil
}
