// ABOUTME: Tests for the contract reminder sweep and its interval worker
// ABOUTME: Uses a fixed clock, temporary SQLite database and in-memory outbox
package reminders

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	gosync "sync"
	"testing"
	"time"

	"github.com/harperreed/sponsordesk/clock"
	"github.com/harperreed/sponsordesk/db"
	"github.com/harperreed/sponsordesk/mail"
	"github.com/harperreed/sponsordesk/models"
	"github.com/harperreed/sponsordesk/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db        *sql.DB
	outbox    *mail.Outbox
	clock     *clock.Fixed
	scheduler *Scheduler
	sponsor   *models.Sponsor
}

func setup(t *testing.T) *fixture {
	t.Helper()
	database, err := db.OpenDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	sponsor := &models.Sponsor{Name: "Acme AS"}
	require.NoError(t, db.CreateSponsor(context.Background(), database, sponsor))

	outbox := &mail.Outbox{}
	clk := clock.NewFixed(testNow)
	return &fixture{
		db:     database,
		outbox: outbox,
		clock:  clk,
		scheduler: NewScheduler(database, outbox, clk, Options{
			Threshold:    DefaultThreshold,
			MaxReminders: DefaultMaxReminders,
			Retry:        retry.Config{MaxTries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
			SenderName:   "Sponsor Team",
		}, nil),
		sponsor: sponsor,
	}
}

// record creates a pending record on its own conference whose contract went out age ago.
func (f *fixture) record(t *testing.T, age time.Duration, mutate func(*models.SponsorForConference)) *models.SponsorForConference {
	t.Helper()
	ctx := context.Background()

	conf := &models.Conference{Title: "DevConf " + age.String()}
	require.NoError(t, db.CreateConference(ctx, f.db, conf))

	sentAt := testNow.Add(-age)
	rec := &models.SponsorForConference{
		SponsorID:       f.sponsor.ID,
		ConferenceID:    conf.ID,
		ContractStatus:  "contract-sent",
		SignatureStatus: "pending",
		SignerName:      "Kari",
		SignerEmail:     "kari@acme.test",
		SigningURL:      "https://sign.test/" + conf.ID.String(),
		ContractSentAt:  &sentAt,
	}
	if mutate != nil {
		mutate(rec)
	}
	require.NoError(t, db.CreateRecord(ctx, f.db, rec))
	return rec
}

func (f *fixture) reload(t *testing.T, rec *models.SponsorForConference) *models.SponsorForConference {
	t.Helper()
	got, err := db.GetRecord(context.Background(), f.db, rec.ID)
	require.NoError(t, err)
	return got
}

func day(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

func TestSweepNoCandidates(t *testing.T) {
	f := setup(t)
	f.record(t, day(1), nil)

	result, err := f.scheduler.Sweep(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Zero(t, result.Total)
	assert.NotEmpty(t, result.Message)
	assert.Empty(t, f.outbox.Sent())

	state, err := db.GetJobState(context.Background(), f.db, JobName)
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestSweepThresholdBoundary(t *testing.T) {
	f := setup(t)
	fresh := f.record(t, day(4), nil)
	stale := f.record(t, day(6), nil)

	result, err := f.scheduler.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Sent)
	assert.Zero(t, result.Failed)

	assert.Zero(t, f.reload(t, fresh).ReminderCount)
	assert.Equal(t, 1, f.reload(t, stale).ReminderCount)

	sent := f.outbox.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "kari@acme.test", sent[0].To)
	assert.Contains(t, sent[0].Body, stale.SigningURL)
	assert.Contains(t, sent[0].Body, "reminder 1")

	state, err := db.GetJobState(context.Background(), f.db, JobName)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, db.JobIdle, state.Status)
}

func TestSweepNeverExceedsMaxReminders(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	rec := f.record(t, day(6), nil)

	for i := 0; i < 5; i++ {
		_, err := f.scheduler.Sweep(ctx)
		require.NoError(t, err)
		f.clock.Advance(day(1))
		assert.LessOrEqual(t, f.reload(t, rec).ReminderCount, DefaultMaxReminders)
	}

	assert.Equal(t, DefaultMaxReminders, f.reload(t, rec).ReminderCount)
	assert.Len(t, f.outbox.Sent(), DefaultMaxReminders)

	n, err := db.CountActivities(ctx, f.db, rec.ID, models.ActivityContractReminderSent)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxReminders, n)
}

func TestSweepCapsConfiguredMaxReminders(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.scheduler = NewScheduler(f.db, f.outbox, f.clock, Options{MaxReminders: 5}, nil)
	rec := f.record(t, day(6), nil)

	for i := 0; i < 4; i++ {
		_, err := f.scheduler.Sweep(ctx)
		require.NoError(t, err)
		f.clock.Advance(day(1))
	}

	assert.Equal(t, DefaultMaxReminders, f.reload(t, rec).ReminderCount)
	assert.Len(t, f.outbox.Sent(), DefaultMaxReminders)
}

func TestSweepLeavesNonPendingRecordsAlone(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	signed := f.record(t, day(10), func(r *models.SponsorForConference) { r.SignatureStatus = "signed" })
	before := f.reload(t, signed)

	result, err := f.scheduler.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Total)

	after := f.reload(t, signed)
	assert.Equal(t, before.ReminderCount, after.ReminderCount)
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))

	n, err := db.CountActivities(ctx, f.db, signed.ID, "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweepCountsEmailFailureAndContinues(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	failing := f.record(t, day(8), nil)
	ok := f.record(t, day(7), nil)

	smtp := errors.New("smtp unavailable")
	f.outbox.Fail(smtp, smtp, smtp)

	result, err := f.scheduler.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Failed)

	assert.Equal(t, 1, f.reload(t, failing).ReminderCount)
	assert.Equal(t, 1, f.reload(t, ok).ReminderCount)

	activities, err := db.ListActivities(ctx, f.db, failing.ID, 0)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Contains(t, activities[0].Description, "could not be emailed")

	state, err := db.GetJobState(ctx, f.db, JobName)
	require.NoError(t, err)
	assert.Equal(t, db.JobError, state.Status)
}

func TestSweepWithoutSigningLinkStillCounts(t *testing.T) {
	f := setup(t)
	rec := f.record(t, day(6), func(r *models.SponsorForConference) { r.SigningURL = "" })

	result, err := f.scheduler.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Empty(t, f.outbox.Sent())
	assert.Equal(t, 1, f.reload(t, rec).ReminderCount)
}

func TestSweepSkipsAlreadyDeliveredReminder(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	rec := f.record(t, day(6), nil)

	key := mail.DispatchKey(models.TemplateContractReminder, rec.ID, 1)
	require.NoError(t, db.RecordDispatch(ctx, f.db, key, rec.ID, models.TemplateContractReminder, rec.SignerEmail, testNow))

	result, err := f.scheduler.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Empty(t, f.outbox.Sent())
	assert.Equal(t, 1, f.reload(t, rec).ReminderCount)
}

type countingSweeper struct {
	mu   gosync.Mutex
	runs int
	err  error
}

func (c *countingSweeper) Sweep(ctx context.Context) (*SweepResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs++
	if c.err != nil {
		return nil, c.err
	}
	return &SweepResult{Success: true}, nil
}

func (c *countingSweeper) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs
}

func TestWorkerRunsUntilCancelled(t *testing.T) {
	sweeper := &countingSweeper{}
	w := NewWorker(sweeper, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return sweeper.count() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}

	stats := w.Stats()
	assert.GreaterOrEqual(t, stats.Runs, 2)
	assert.Zero(t, stats.Errors)
	require.NotNil(t, stats.LastResult)
}

func TestWorkerRecordsErrors(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("db locked")}
	w := NewWorker(sweeper, time.Hour, nil)
	w.runOnce(context.Background())

	stats := w.Stats()
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, "db locked", stats.LastError)
}

func TestWorkerDisabledWithoutInterval(t *testing.T) {
	sweeper := &countingSweeper{}
	NewWorker(sweeper, 0, nil).Run(context.Background())
	assert.Zero(t, sweeper.count())
}
