// ABOUTME: Schema upgrade utility for existing sponsordesk databases
// ABOUTME: Backs up the file, adds missing tables and optionally drops tables the schema no longer knows

package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/harperreed/sponsordesk/db"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	dbPath := flag.String("db", "", "Path to database file (required)")
	dryRun := flag.Bool("dry-run", false, "Show what would happen without making changes")
	backup := flag.Bool("backup", true, "Create backup before migration")
	prune := flag.Bool("prune", false, "Drop tables sponsordesk does not use (data loss)")
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("Error: -db flag is required")
	}

	plan, err := migrate(*dbPath, *dryRun, *backup, *prune)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	if *dryRun {
		log.Printf("[DRY RUN] Would create: %v", plan.Missing)
		log.Printf("[DRY RUN] Would drop: %v", plan.Dropped)
		return
	}
	log.Printf("Migration completed successfully (created %d, dropped %d)", len(plan.Missing), len(plan.Dropped))
}

// Plan lists what a migration changes.
type Plan struct {
	Backup  string
	Missing []string
	Unknown []string
	Dropped []string
}

func migrate(dbPath string, dryRun, createBackup, prune bool) (*Plan, error) {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database file does not exist: %s", dbPath)
	}

	plan := &Plan{}
	if createBackup && !dryRun {
		plan.Backup = fmt.Sprintf("%s.backup.%s", dbPath, time.Now().Format("20060102-150405"))
		log.Printf("Creating backup: %s", plan.Backup)

		input, err := os.ReadFile(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read database: %w", err)
		}
		if err := os.WriteFile(plan.Backup, input, 0600); err != nil {
			return nil, fmt.Errorf("failed to create backup: %w", err)
		}
	}

	database, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=off")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = database.Close() }()

	tables, err := getCurrentTables(database)
	if err != nil {
		return nil, fmt.Errorf("failed to get current tables: %w", err)
	}

	present := map[string]bool{}
	for _, t := range tables {
		present[t] = true
	}
	known := map[string]bool{}
	for _, t := range db.Tables() {
		known[t] = true
		if !present[t] {
			plan.Missing = append(plan.Missing, t)
		}
	}
	for _, t := range tables {
		if !known[t] {
			plan.Unknown = append(plan.Unknown, t)
		}
	}
	if prune {
		plan.Dropped = plan.Unknown
	} else if len(plan.Unknown) > 0 {
		log.Printf("Keeping tables sponsordesk does not use: %v (use -prune to drop)", plan.Unknown)
	}

	if dryRun {
		return plan, nil
	}

	for _, table := range plan.Dropped {
		if _, err := database.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %q", table)); err != nil {
			return nil, fmt.Errorf("failed to drop table %s: %w", table, err)
		}
		log.Printf("Dropped table: %s", table)
	}

	if err := db.InitSchema(database); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return plan, nil
}

func getCurrentTables(db *sql.DB) ([]string, error) {
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}

	return tables, rows.Err()
}
