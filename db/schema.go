// ABOUTME: Database schema definitions
// ABOUTME: Handles SQLite table creation for sponsors, pipeline records, activities and assets
package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS assets (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	size INTEGER NOT NULL DEFAULT 0,
	sha256 TEXT,
	storage_key TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sponsors (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	website TEXT,
	logo TEXT,
	logo_bright TEXT,
	org_number TEXT,
	address TEXT,
	contact_persons TEXT,
	billing_email TEXT,
	billing_reference TEXT,
	billing_comments TEXT,
	agreement_asset_id TEXT,
	onboarding_token TEXT UNIQUE,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sponsors_name ON sponsors(name);
CREATE INDEX IF NOT EXISTS idx_sponsors_agreement_asset ON sponsors(agreement_asset_id);

CREATE TABLE IF NOT EXISTS conferences (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	city TEXT,
	start_date DATETIME,
	end_date DATETIME,
	organizer_name TEXT,
	organizer_email TEXT,
	signing_provider TEXT NOT NULL DEFAULT 'self-hosted' CHECK(signing_provider IN ('self-hosted', 'external')),
	contract_template_id TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sponsor_tiers (
	id TEXT PRIMARY KEY,
	conference_id TEXT NOT NULL,
	title TEXT NOT NULL,
	price INTEGER NOT NULL DEFAULT 0,
	currency TEXT NOT NULL DEFAULT 'NOK',
	kind TEXT NOT NULL DEFAULT 'standard' CHECK(kind IN ('standard', 'addon')),
	FOREIGN KEY (conference_id) REFERENCES conferences(id)
);

CREATE INDEX IF NOT EXISTS idx_sponsor_tiers_conference ON sponsor_tiers(conference_id);

CREATE TABLE IF NOT EXISTS contract_templates (
	id TEXT PRIMARY KEY,
	conference_id TEXT NOT NULL,
	title TEXT NOT NULL,
	blocks TEXT NOT NULL,
	is_default INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY (conference_id) REFERENCES conferences(id)
);

CREATE INDEX IF NOT EXISTS idx_contract_templates_conference ON contract_templates(conference_id);

CREATE TABLE IF NOT EXISTS email_templates (
	slug TEXT PRIMARY KEY,
	subject TEXT NOT NULL,
	body TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sponsor_for_conference (
	id TEXT PRIMARY KEY,
	sponsor_id TEXT NOT NULL,
	conference_id TEXT NOT NULL,
	tier_id TEXT,
	addon_tier_ids TEXT,
	status TEXT NOT NULL,
	contract_status TEXT NOT NULL,
	signature_status TEXT NOT NULL,
	invoice_status TEXT NOT NULL,
	contract_value INTEGER NOT NULL DEFAULT 0,
	contract_currency TEXT NOT NULL DEFAULT 'NOK',
	signer_name TEXT,
	signer_email TEXT,
	signing_url TEXT,
	signing_provider TEXT,
	agreement_id TEXT,
	portal_token TEXT,
	reminder_count INTEGER NOT NULL DEFAULT 0 CHECK(reminder_count >= 0),
	tags TEXT,
	assigned_organizer_id TEXT,
	contract_asset_id TEXT,
	contract_template_id TEXT,
	contact_initiated_at DATETIME,
	contract_sent_at DATETIME,
	contract_signed_at DATETIME,
	organizer_signed_at DATETIME,
	organizer_signed_by TEXT,
	invoice_sent_at DATETIME,
	invoice_paid_at DATETIME,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY (sponsor_id) REFERENCES sponsors(id),
	FOREIGN KEY (conference_id) REFERENCES conferences(id)
);

CREATE INDEX IF NOT EXISTS idx_sfc_sponsor ON sponsor_for_conference(sponsor_id);
CREATE INDEX IF NOT EXISTS idx_sfc_conference ON sponsor_for_conference(conference_id);
CREATE INDEX IF NOT EXISTS idx_sfc_signature ON sponsor_for_conference(signature_status, reminder_count);
CREATE INDEX IF NOT EXISTS idx_sfc_contract_asset ON sponsor_for_conference(contract_asset_id);
CREATE INDEX IF NOT EXISTS idx_sfc_agreement ON sponsor_for_conference(agreement_id);
CREATE INDEX IF NOT EXISTS idx_sfc_portal_token ON sponsor_for_conference(portal_token);

CREATE TABLE IF NOT EXISTS activities (
	id TEXT PRIMARY KEY,
	sponsor_for_conference_id TEXT NOT NULL,
	type TEXT NOT NULL,
	description TEXT NOT NULL,
	old_value TEXT,
	new_value TEXT,
	event_timestamp DATETIME,
	additional_data TEXT,
	created_by TEXT,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (sponsor_for_conference_id) REFERENCES sponsor_for_conference(id)
);

CREATE INDEX IF NOT EXISTS idx_activities_record ON activities(sponsor_for_conference_id);

CREATE TABLE IF NOT EXISTS signing_tokens (
	token TEXT PRIMARY KEY,
	record_id TEXT NOT NULL,
	name TEXT NOT NULL,
	participant_email TEXT NOT NULL,
	document_key TEXT,
	status TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_signing_tokens_record ON signing_tokens(record_id);

CREATE TABLE IF NOT EXISTS email_dispatches (
	dispatch_key TEXT PRIMARY KEY,
	record_id TEXT NOT NULL,
	template TEXT NOT NULL,
	recipient TEXT NOT NULL,
	sent_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_email_dispatches_record ON email_dispatches(record_id);

CREATE TABLE IF NOT EXISTS imported_items (
	source TEXT NOT NULL,
	external_id TEXT NOT NULL,
	record_id TEXT NOT NULL,
	activity_id TEXT NOT NULL,
	imported_at DATETIME NOT NULL,
	PRIMARY KEY (source, external_id, record_id)
);

CREATE INDEX IF NOT EXISTS idx_imported_items_record ON imported_items(record_id);

CREATE TABLE IF NOT EXISTS job_state (
	job TEXT PRIMARY KEY,
	last_run_at DATETIME,
	status TEXT NOT NULL CHECK(status IN ('running', 'idle', 'error')),
	error_message TEXT,
	last_summary TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// Tables lists the tables the schema creates, parents before children.
func Tables() []string {
	return []string{
		"assets", "sponsors", "conferences", "sponsor_tiers", "contract_templates", "email_templates",
		"sponsor_for_conference", "activities", "signing_tokens", "email_dispatches", "imported_items", "job_state",
	}
}

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
