// ABOUTME: Shared state for the sponsordesk CLI commands
// ABOUTME: Holds the wired services and the writer every command prints to
package cli

import (
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/clock"
	"github.com/harperreed/sponsordesk/config"
	"github.com/harperreed/sponsordesk/contract"
	"github.com/harperreed/sponsordesk/logging"
	"github.com/harperreed/sponsordesk/pipeline"
	"github.com/harperreed/sponsordesk/reminders"
	"github.com/harperreed/sponsordesk/storage"
	"github.com/harperreed/sponsordesk/sync"
	"go.uber.org/zap"
)

// actor is recorded as the author of changes made from the command line.
const actor = "cli"

// App carries what the commands need. Fields a command does not use may be nil.
type App struct {
	DB        *sql.DB
	Config    *config.Config
	Store     storage.Store
	Pipeline  *pipeline.Service
	Contracts *contract.Manager
	Scheduler *reminders.Scheduler
	Importer  *sync.Importer
	Clock     clock.Clock
	Logger    *zap.Logger
	Version   string
	Out       io.Writer
}

func (a *App) out() io.Writer {
	if a.Out == nil {
		return os.Stdout
	}
	return a.Out
}

func (a *App) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(a.out(), format, args...)
}

func (a *App) logger() *zap.Logger {
	return logging.OrNop(a.Logger)
}

func (a *App) now() clock.Clock {
	if a.Clock == nil {
		return clock.Real{}
	}
	return a.Clock
}

func (a *App) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out())
	return fs
}

func parseID(label, value string) (uuid.UUID, error) {
	if strings.TrimSpace(value) == "" {
		return uuid.Nil, fmt.Errorf("--%s is required", label)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", label, err)
	}
	return id, nil
}

// argID takes the id from the first positional argument or the named flag.
func argID(fs *flag.FlagSet, label, flagValue string) (uuid.UUID, error) {
	if flagValue == "" && fs.NArg() > 0 {
		flagValue = fs.Arg(0)
	}
	return parseID(label, flagValue)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
