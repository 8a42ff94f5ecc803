// ABOUTME: Shared fixtures for database tests
// ABOUTME: Opens an in-memory schema and seeds sponsors, conferences and pipeline records
package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/models"
	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	database, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("Failed to open test db: %v", err)
	}
	// Every connection to :memory: is a separate database.
	database.SetMaxOpenConns(1)
	if err := InitSchema(database); err != nil {
		t.Fatalf("Failed to init schema: %v", err)
	}
	return database
}

func seedSponsor(t *testing.T, database *sql.DB, name string) *models.Sponsor {
	t.Helper()
	sponsor := &models.Sponsor{
		Name: name,
		ContactPersons: []models.ContactPerson{
			{Name: "Kari Nordmann", Email: "kari@" + name + ".example", IsPrimary: true},
		},
	}
	if err := CreateSponsor(context.Background(), database, sponsor); err != nil {
		t.Fatalf("CreateSponsor failed: %v", err)
	}
	return sponsor
}

func seedConference(t *testing.T, database *sql.DB) *models.Conference {
	t.Helper()
	conf := &models.Conference{Title: "Cloud Native Day", City: "Bergen", OrganizerName: "Ola Organizer"}
	if err := CreateConference(context.Background(), database, conf); err != nil {
		t.Fatalf("CreateConference failed: %v", err)
	}
	return conf
}

func seedRecord(t *testing.T, database *sql.DB, sponsorID, conferenceID uuid.UUID) *models.SponsorForConference {
	t.Helper()
	rec := &models.SponsorForConference{
		SponsorID:        sponsorID,
		ConferenceID:     conferenceID,
		Status:           "prospect",
		ContractStatus:   "none",
		SignatureStatus:  "not-started",
		InvoiceStatus:    "not-sent",
		ContractCurrency: "NOK",
	}
	if err := CreateRecord(context.Background(), database, rec); err != nil {
		t.Fatalf("CreateRecord failed: %v", err)
	}
	return rec
}

func seedAsset(t *testing.T, database *sql.DB, key string) *models.Asset {
	t.Helper()
	asset := &models.Asset{Filename: key + ".pdf", MimeType: "application/pdf", Size: 10, StorageKey: key}
	if err := CreateAsset(context.Background(), database, asset); err != nil {
		t.Fatalf("CreateAsset failed: %v", err)
	}
	return asset
}

func seedActivity(t *testing.T, database *sql.DB, recordID uuid.UUID, description string) {
	t.Helper()
	err := AppendActivity(context.Background(), database, &models.Activity{
		SponsorForConferenceID: recordID,
		Type:                   models.ActivityNote,
		Description:            description,
		CreatedAt:              time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("AppendActivity failed: %v", err)
	}
}
