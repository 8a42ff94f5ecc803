// ABOUTME: Logs sponsor correspondence from Google Workspace as pipeline activities
// ABOUTME: Shared matching, deduplication and job bookkeeping for the Gmail and Calendar importers
package sync

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/clock"
	"github.com/harperreed/sponsordesk/db"
	"github.com/harperreed/sponsordesk/models"
	"github.com/harperreed/sponsordesk/status"
	"go.uber.org/zap"
)

const (
	SourceGmail    = "gmail"
	SourceCalendar = "calendar"

	JobGmailImport    = "gmail-import"
	JobCalendarImport = "calendar-import"

	importActor = "google-import"

	// overlap re-reads the tail of the previous window so late-arriving
	// items are not lost. The ledger drops the repeats.
	overlap = 24 * time.Hour
)

// Item is one email or meeting to log.
type Item struct {
	Source       string
	ExternalID   string
	Type         string
	Description  string
	At           time.Time
	Counterparts []string
	Data         map[string]interface{}
}

// Result summarizes an import run.
type Result struct {
	Job        string `json:"job"`
	Scanned    int    `json:"scanned"`
	Skipped    int    `json:"skipped"`
	Matched    int    `json:"matched"`
	Logged     int    `json:"logged"`
	Duplicates int    `json:"duplicates"`
}

func (r *Result) summary() string {
	return fmt.Sprintf("scanned %d, matched %d, logged %d, duplicates %d, skipped %d",
		r.Scanned, r.Matched, r.Logged, r.Duplicates, r.Skipped)
}

type Importer struct {
	db     *sql.DB
	clock  clock.Clock
	logger *zap.Logger
}

func NewImporter(database *sql.DB, clk clock.Clock, logger *zap.Logger) *Importer {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{db: database, clock: clk, logger: logger}
}

// run wraps an import in job state bookkeeping.
func (im *Importer) run(ctx context.Context, job string, fn func(*SponsorMatcher, *Result) error) (*Result, error) {
	if err := db.MarkJobRunning(ctx, im.db, job, im.clock.Now()); err != nil {
		return nil, err
	}

	result := &Result{Job: job}
	err := func() error {
		sponsors, err := db.ListSponsors(ctx, im.db)
		if err != nil {
			return fmt.Errorf("failed to load sponsors: %w", err)
		}
		return fn(NewSponsorMatcher(sponsors), result)
	}()

	if err != nil {
		msg := err.Error()
		_ = db.MarkJobFinished(ctx, im.db, job, result.summary(), &msg, im.clock.Now())
		return result, err
	}

	if err := db.MarkJobFinished(ctx, im.db, job, result.summary(), nil, im.clock.Now()); err != nil {
		return result, err
	}
	im.logger.Info("import finished",
		zap.String("job", job),
		zap.Int("scanned", result.Scanned),
		zap.Int("logged", result.Logged),
		zap.Int("duplicates", result.Duplicates))
	return result, nil
}

// since picks the start of the import window: the last successful run, or
// days back on the first run.
func (im *Importer) since(ctx context.Context, job string, days int) (time.Time, error) {
	state, err := db.GetJobState(ctx, im.db, job)
	if err != nil {
		return time.Time{}, err
	}
	if state != nil && state.LastRunAt != nil && state.ErrorMessage == nil {
		return state.LastRunAt.Add(-overlap), nil
	}
	return im.clock.Now().AddDate(0, 0, -days), nil
}

// log writes item on every open record of every matched sponsor.
func (im *Importer) log(ctx context.Context, matcher *SponsorMatcher, item Item, result *Result) error {
	seen := map[uuid.UUID]bool{}
	var sponsors []uuid.UUID
	for _, addr := range item.Counterparts {
		if id, ok := matcher.Match(addr); ok && !seen[id] {
			seen[id] = true
			sponsors = append(sponsors, id)
		}
	}
	if len(sponsors) == 0 {
		return nil
	}
	result.Matched++

	for _, sponsorID := range sponsors {
		id := sponsorID
		records, err := db.ListRecords(ctx, im.db, db.RecordFilter{SponsorID: &id})
		if err != nil {
			return err
		}
		for i := range records {
			if records[i].Status == status.ClosedLost {
				continue
			}
			if err := im.logOnRecord(ctx, &records[i], item, result); err != nil {
				return err
			}
		}
	}
	return nil
}

func (im *Importer) logOnRecord(ctx context.Context, rec *models.SponsorForConference, item Item, result *Result) error {
	return db.WithTx(ctx, im.db, func(tx *sql.Tx) error {
		done, err := db.ImportRecorded(ctx, tx, item.Source, item.ExternalID, rec.ID)
		if err != nil {
			return err
		}
		if done {
			result.Duplicates++
			return nil
		}

		at := item.At
		activity := &models.Activity{
			SponsorForConferenceID: rec.ID,
			Type:                   item.Type,
			Description:            item.Description,
			Metadata: models.ActivityMetadata{
				Timestamp:      &at,
				AdditionalData: item.Data,
			},
			CreatedBy: importActor,
			CreatedAt: im.clock.Now(),
		}
		if err := db.AppendActivity(ctx, tx, activity); err != nil {
			return err
		}
		if err := db.RecordImport(ctx, tx, item.Source, item.ExternalID, rec.ID, activity.ID, im.clock.Now()); err != nil {
			return err
		}
		result.Logged++
		return nil
	})
}
