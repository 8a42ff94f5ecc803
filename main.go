// ABOUTME: Entry point for the sponsordesk server, MCP server and CLI
// ABOUTME: Loads configuration, wires the services and routes to the requested command
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/harperreed/sponsordesk/cli"
	"github.com/harperreed/sponsordesk/config"
	"github.com/harperreed/sponsordesk/contract"
	"github.com/harperreed/sponsordesk/db"
	"github.com/harperreed/sponsordesk/logging"
	"github.com/harperreed/sponsordesk/mail"
	"github.com/harperreed/sponsordesk/pipeline"
	"github.com/harperreed/sponsordesk/reminders"
	"github.com/harperreed/sponsordesk/retry"
	"github.com/harperreed/sponsordesk/signing"
	"github.com/harperreed/sponsordesk/storage"
	"github.com/harperreed/sponsordesk/sync"
	"go.uber.org/zap"
)

const version = "0.2.0"

func main() {
	// Global flags
	showVersion := flag.Bool("version", false, "Show version and exit")
	envFile := flag.String("env-file", "", "Load configuration from this env file instead of .env")
	dbPath := flag.String("db-path", "", "Database path (overrides DB_PATH)")
	initOnly := flag.Bool("init", false, "Initialize database and exit")

	_ = flag.CommandLine.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("sponsordesk version %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 && !*initOnly {
		printUsage()
		os.Exit(0)
	}

	cfg, err := loadConfig(*envFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logger, err := logging.New(logCfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.OpenDatabase(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to open database", zap.String("path", cfg.Database.Path), zap.Error(err))
	}
	defer database.Close()

	if *initOnly {
		logger.Info("database initialized", zap.String("path", cfg.Database.Path))
		return
	}

	app, portal, err := build(ctx, cfg, database, logger)
	if err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}

	if err := route(ctx, app, portal, args); err != nil {
		logger.Error("command failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(envFile string) (*config.Config, error) {
	if envFile != "" {
		return config.LoadWithPath(envFile)
	}
	return config.Load()
}

// build wires storage, mail, signing and the domain services from config.
func build(ctx context.Context, cfg *config.Config, database *sql.DB, logger *zap.Logger) (*cli.App, *signing.SelfHostedProvider, error) {
	var store storage.Store
	switch cfg.Storage.Driver {
	case config.StorageS3:
		s3Store, err := storage.NewS3Store(ctx, storage.S3Options{
			Bucket:   cfg.Storage.S3Bucket,
			Region:   cfg.Storage.S3Region,
			Endpoint: cfg.Storage.S3Endpoint,
			Prefix:   cfg.Storage.S3Prefix,
		})
		if err != nil {
			return nil, nil, err
		}
		store = s3Store
	default:
		dirStore, err := storage.NewDirStore(cfg.Storage.Dir)
		if err != nil {
			return nil, nil, err
		}
		store = dirStore
	}

	var mailer mail.Mailer
	switch cfg.Mail.Driver {
	case config.MailGmail:
		gm, err := mail.NewGmailMailer(ctx, mail.GmailOptions{
			From:            cfg.Mail.From,
			SenderName:      cfg.Mail.SenderName,
			CredentialsPath: cfg.Mail.CredentialsPath,
			TokenPath:       cfg.Mail.TokenPath,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		mailer = gm
	default:
		mailer = mail.NewLogMailer(logger)
	}

	retryCfg := retry.Config{
		MaxTries:       cfg.Retry.MaxTries,
		InitialBackoff: cfg.Retry.InitialBackoff,
		MaxBackoff:     cfg.Retry.MaxBackoff,
	}

	selfHosted := signing.NewSelfHostedProvider(database, store, mailer, nil, cfg.Server.BaseURL, logger)
	providers := []signing.Provider{selfHosted}
	external, err := signing.NewExternalProviderFromConfig(cfg.Signing, retryCfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if external != nil {
		providers = append(providers, external)
	}

	app := &cli.App{
		DB:        database,
		Config:    cfg,
		Store:     store,
		Pipeline:  pipeline.NewService(database, store, nil, logger),
		Contracts: contract.NewManager(database, store, signing.NewSelector(providers...), mailer, nil, contract.Options{SenderName: cfg.Mail.SenderName}, logger),
		Scheduler: reminders.NewScheduler(database, mailer, nil, reminders.Options{
			Threshold:    cfg.Reminders.Threshold,
			MaxReminders: cfg.Reminders.Max,
			Retry:        retryCfg,
			SenderName:   cfg.Mail.SenderName,
		}, logger),
		Importer: sync.NewImporter(database, nil, logger),
		Logger:   logger,
		Version:  version,
		Out:      os.Stdout,
	}
	return app, selfHosted, nil
}

func route(ctx context.Context, app *cli.App, portal *signing.SelfHostedProvider, args []string) error {
	command, rest := args[0], args[1:]

	switch command {
	case "serve":
		return app.ServeCommand(ctx, portal)

	case "mcp":
		return app.MCPCommand(ctx)

	case "crm":
		if len(rest) == 0 {
			printUsage()
			return fmt.Errorf("crm requires a subcommand")
		}
		commands := map[string]func(context.Context, []string) error{
			"add-conference":    app.AddConferenceCommand,
			"list-conferences":  app.ListConferencesCommand,
			"add-tier":          app.AddTierCommand,
			"set-template":      app.SetTemplateCommand,
			"add-sponsor":       app.AddSponsorCommand,
			"list-sponsors":     app.ListSponsorsCommand,
			"add-to-pipeline":   app.AddToPipelineCommand,
			"set-status":        app.SetStatusCommand,
			"list-pipeline":     app.ListPipelineCommand,
			"add-note":          app.AddNoteCommand,
			"activities":        app.ActivitiesCommand,
			"generate-contract": app.GenerateContractCommand,
			"remind":            app.RemindCommand,
			"refresh-signature": app.RefreshSignatureCommand,
			"sweep":             app.SweepCommand,
			"delete-record":     app.DeleteRecordCommand,
			"delete-sponsor":    app.DeleteSponsorCommand,
		}
		cmd, ok := commands[rest[0]]
		if !ok {
			printUsage()
			return fmt.Errorf("unknown crm command: %s", rest[0])
		}
		return cmd(ctx, rest[1:])

	case "board", "move":
		cache, closer, err := cli.OpenBoardCache(app.Config.Board)
		if err != nil {
			return fmt.Errorf("failed to open board cache: %w", err)
		}
		defer func() { _ = closer.Close() }()
		if command == "move" {
			return app.MoveCommand(ctx, cache, rest)
		}
		return app.BoardCommand(ctx, cache, rest)

	case "viz":
		if len(rest) == 0 {
			printUsage()
			return fmt.Errorf("viz requires a subcommand")
		}
		switch rest[0] {
		case "graph":
			return app.VizGraphCommand(ctx, rest[1:])
		case "dashboard":
			return app.VizDashboardCommand(ctx, rest[1:])
		}
		return fmt.Errorf("unknown viz command: %s", rest[0])

	case "google":
		if len(rest) == 0 {
			printUsage()
			return fmt.Errorf("google requires a subcommand")
		}
		switch rest[0] {
		case "auth":
			return app.GoogleAuthCommand(ctx, rest[1:])
		case "import-gmail":
			return app.ImportGmailCommand(ctx, rest[1:])
		case "import-calendar":
			return app.ImportCalendarCommand(ctx, rest[1:])
		}
		return fmt.Errorf("unknown google command: %s", rest[0])
	}

	printUsage()
	return fmt.Errorf("unknown command: %s", command)
}

func printUsage() {
	fmt.Printf(`sponsordesk v%s - Conference sponsor pipeline

USAGE:
  sponsordesk [global flags] <command> [subcommand] [flags]

GLOBAL FLAGS:
  --version              Show version and exit
  --env-file <path>      Read configuration from this env file
  --db-path <path>       Database path (overrides DB_PATH)
  --init                 Initialize database and exit

COMMANDS:
  serve                  Run the HTTP API, signing portal and reminder worker
  mcp                    Start MCP server on stdio
  crm                    Pipeline management commands
  board                  Interactive kanban board (--conference <id>)
  move                   Move a card on the board (--record <id> --to <status>)
  viz                    Visualization commands
  google                 Google Workspace commands

CRM COMMANDS:
  sponsordesk crm add-conference     --title <t> [--city] [--start] [--end] [--organizer] [--signing]
  sponsordesk crm list-conferences
  sponsordesk crm add-tier           --conference <id> --title <t> --price <minor units> [--addon]
  sponsordesk crm set-template       --conference <id> --file <path> [--title]
  sponsordesk crm add-sponsor        --name <n> [--contact] [--email] [--website] [--billing-email]
  sponsordesk crm list-sponsors      [--query] [--limit]
  sponsordesk crm add-to-pipeline    --sponsor <id|name> --conference <id> [--tier] [--value] [--currency]
  sponsordesk crm set-status         --record <id> [--axis pipeline|contract|signature|invoice] --value <v>
  sponsordesk crm list-pipeline      --conference <id> [--status]
  sponsordesk crm add-note           --record <id> --text <t> [--type note|call|meeting|email]
  sponsordesk crm activities         --record <id> [--limit]
  sponsordesk crm generate-contract  --record <id>
  sponsordesk crm remind             --record <id>
  sponsordesk crm refresh-signature  --record <id>
  sponsordesk crm sweep
  sponsordesk crm delete-record      --record <id> [--delete-contract]
  sponsordesk crm delete-sponsor     --sponsor <id|name>

VIZ COMMANDS:
  sponsordesk viz graph              --conference <id> [--output <file>]
  sponsordesk viz dashboard          --conference <id>

GOOGLE COMMANDS:
  sponsordesk google auth            [--listen 127.0.0.1:8765]
  sponsordesk google import-gmail    [--days 30]
  sponsordesk google import-calendar [--days 30]

Configuration is read from .env and the environment (DB_PATH, BASE_URL,
MAIL_DRIVER, ADOBE_SIGN_*, REMINDER_*, BOARD_*, ...).

`, version)
}
