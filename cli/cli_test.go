// ABOUTME: Tests for the sponsordesk CLI commands
// ABOUTME: Runs commands against a temporary database and checks what they print
package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/board"
	"github.com/harperreed/sponsordesk/clock"
	"github.com/harperreed/sponsordesk/config"
	"github.com/harperreed/sponsordesk/contract"
	"github.com/harperreed/sponsordesk/db"
	"github.com/harperreed/sponsordesk/mail"
	"github.com/harperreed/sponsordesk/pipeline"
	"github.com/harperreed/sponsordesk/reminders"
	"github.com/harperreed/sponsordesk/signing"
	"github.com/harperreed/sponsordesk/status"
	"github.com/harperreed/sponsordesk/storage"
	"github.com/harperreed/sponsordesk/sync"
	"github.com/harperreed/sponsordesk/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var idPattern = regexp.MustCompile(`ID: ([0-9a-f-]{36})`)

type testApp struct {
	*App
	buf    *bytes.Buffer
	outbox *mail.Outbox
	portal *signing.SelfHostedProvider
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	database, err := db.OpenDatabase(filepath.Join(t.TempDir(), "cli.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	store, err := storage.NewDirStore(t.TempDir())
	require.NoError(t, err)
	outbox := &mail.Outbox{}
	clk := clock.NewFixed(time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC))

	cfg := &config.Config{}
	cfg.Server.BaseURL = "https://sponsors.test"
	cfg.Retry.MaxTries = 1
	cfg.Board.CacheDriver = config.CacheMemory

	selfHosted := signing.NewSelfHostedProvider(database, store, outbox, clk, cfg.Server.BaseURL, nil)
	buf := &bytes.Buffer{}

	return &testApp{
		App: &App{
			DB:        database,
			Config:    cfg,
			Store:     store,
			Pipeline:  pipeline.NewService(database, store, clk, nil),
			Contracts: contract.NewManager(database, store, signing.NewSelector(selfHosted), outbox, clk, contract.Options{SenderName: "Sponsor Team"}, nil),
			Scheduler: reminders.NewScheduler(database, outbox, clk, reminders.Options{}, nil),
			Importer:  sync.NewImporter(database, clk, nil),
			Clock:     clk,
			Out:       buf,
		},
		buf:    buf,
		outbox: outbox,
		portal: selfHosted,
	}
}

// run executes a command and returns the id it printed, if any.
func (a *testApp) run(t *testing.T, cmd func(context.Context, []string) error, args ...string) string {
	t.Helper()
	a.buf.Reset()
	require.NoError(t, cmd(context.Background(), args))
	if m := idPattern.FindStringSubmatch(a.buf.String()); m != nil {
		return m[1]
	}
	return ""
}

// seed creates a conference with a template and one sponsor in its pipeline.
func (a *testApp) seed(t *testing.T) (confID, recordID string) {
	t.Helper()
	confID = a.run(t, a.AddConferenceCommand, "--title", "DevConf 2026", "--city", "Oslo", "--organizer", "DevConf AS", "--start", "2026-10-01")

	tmpl := filepath.Join(t.TempDir(), "contract.txt")
	require.NoError(t, os.WriteFile(tmpl, []byte("{{sponsor_name}} sponsors {{conference_title}}.\n\nPayment within 30 days."), 0600))
	a.run(t, a.SetTemplateCommand, "--conference", confID, "--file", tmpl)

	a.run(t, a.AddSponsorCommand, "--name", "Acme AS", "--contact", "Kari", "--email", "kari@acme.test")
	recordID = a.run(t, a.AddToPipelineCommand, "--sponsor", "Acme AS", "--conference", confID, "--value", "5000000", "--currency", "NOK")
	return confID, recordID
}

func TestConferenceCommands(t *testing.T) {
	a := newTestApp(t)
	confID := a.run(t, a.AddConferenceCommand, "--title", "DevConf 2026", "--city", "Oslo", "--start", "2026-10-01")
	require.NotEmpty(t, confID)
	assert.Contains(t, a.buf.String(), "Signing: self-hosted")

	a.run(t, a.AddTierCommand, "--conference", confID, "--title", "Gold", "--price", "10000000")
	assert.Contains(t, a.buf.String(), "Gold 100,000.00 NOK")

	a.run(t, a.ListConferencesCommand)
	out := a.buf.String()
	assert.Contains(t, out, "DevConf 2026")
	assert.Contains(t, out, "2026-10-01")
	assert.Contains(t, out, confID)
}

func TestAddConferenceValidation(t *testing.T) {
	a := newTestApp(t)
	err := a.AddConferenceCommand(context.Background(), nil)
	assert.EqualError(t, err, "--title is required")

	err = a.AddConferenceCommand(context.Background(), []string{"--title", "X", "--start", "01.10.2026"})
	assert.ErrorContains(t, err, "invalid --start date")
}

func TestSponsorCommands(t *testing.T) {
	a := newTestApp(t)
	a.run(t, a.AddSponsorCommand, "--name", "Acme AS", "--email", "kari@acme.test", "--website", "https://acme.test")
	assert.Contains(t, a.buf.String(), "Onboarding: https://sponsors.test/sponsor/onboarding/")

	a.run(t, a.ListSponsorsCommand)
	assert.Contains(t, a.buf.String(), "kari@acme.test")

	a.run(t, a.ListSponsorsCommand, "--query", "nothing-like-this")
	assert.Contains(t, a.buf.String(), "No sponsors found")
}

func TestPipelineCommands(t *testing.T) {
	a := newTestApp(t)
	confID, recordID := a.seed(t)
	require.NotEmpty(t, recordID)
	assert.Contains(t, a.buf.String(), "Value: 50,000.00 NOK")

	a.run(t, a.SetStatusCommand, "--record", recordID, "--value", status.Contacted)
	assert.Contains(t, a.buf.String(), "pipeline status is now contacted")

	a.run(t, a.SetStatusCommand, recordID, "--axis", "Invoice", "--value", status.InvoiceSent)
	assert.Contains(t, a.buf.String(), "invoice status is now "+status.InvoiceSent)

	a.run(t, a.AddNoteCommand, "--record", recordID, "--type", "call", "--text", "Talked budget")

	a.run(t, a.ListPipelineCommand, "--conference", confID)
	out := a.buf.String()
	assert.Contains(t, out, "Acme AS")
	assert.Contains(t, out, status.Contacted)
	assert.Contains(t, out, "1 records")

	a.run(t, a.ListPipelineCommand, "--conference", confID, "--status", status.Prospect)
	assert.Contains(t, a.buf.String(), "0 records")

	a.run(t, a.ActivitiesCommand, recordID)
	out = a.buf.String()
	assert.Contains(t, out, "(prospect → contacted)")
	assert.Contains(t, out, "Talked budget")
	assert.Contains(t, out, "[cli]")
}

func TestSetStatusRejectsUnknownValue(t *testing.T) {
	a := newTestApp(t)
	_, recordID := a.seed(t)

	err := a.SetStatusCommand(context.Background(), []string{"--record", recordID})
	assert.ErrorContains(t, err, "prospect, contacted")

	err = a.SetStatusCommand(context.Background(), []string{"--record", recordID, "--value", "won"})
	assert.Error(t, err)
}

func TestContractCommands(t *testing.T) {
	a := newTestApp(t)
	_, recordID := a.seed(t)

	a.run(t, a.GenerateContractCommand, "--record", recordID)
	out := a.buf.String()
	assert.Contains(t, out, "✓ Contract generated")
	assert.Contains(t, out, "Signing link: https://sponsors.test/")
	require.Len(t, a.outbox.Sent(), 1)

	a.run(t, a.RemindCommand, recordID)
	assert.Contains(t, a.buf.String(), "✓ Reminder")

	a.run(t, a.RefreshSignatureCommand, recordID)
	assert.Contains(t, a.buf.String(), "Signature: pending")

	a.run(t, a.SweepCommand)
	assert.Contains(t, a.buf.String(), "0 sent, 0 failed")
}

func TestDeleteCommands(t *testing.T) {
	a := newTestApp(t)
	_, recordID := a.seed(t)

	a.run(t, a.DeleteRecordCommand, recordID)
	assert.Contains(t, a.buf.String(), "0 sponsor(s), 1 record(s)")

	a.run(t, a.DeleteSponsorCommand, "Acme AS")
	assert.Contains(t, a.buf.String(), "1 sponsor(s), 0 record(s)")

	err := a.DeleteSponsorCommand(context.Background(), []string{"Acme AS"})
	assert.Error(t, err)
}

func TestVizCommands(t *testing.T) {
	a := newTestApp(t)
	confID, _ := a.seed(t)

	a.run(t, a.VizDashboardCommand, confID)
	out := a.buf.String()
	assert.Contains(t, out, "DEVCONF 2026")
	assert.Contains(t, out, "1 sponsors in pipeline")

	path := filepath.Join(t.TempDir(), "pipeline.dot")
	a.run(t, a.VizGraphCommand, "--conference", confID, "--output", path)
	dot, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(dot), "digraph"))
}

func TestMoveCommand(t *testing.T) {
	a := newTestApp(t)
	confID, recordID := a.seed(t)

	srv := httptest.NewServer(web.NewServer(web.Services{
		Pipeline:  a.Pipeline,
		Contracts: a.Contracts,
		Sweeper:   a.Scheduler,
		Portal:    a.portal,
	}, web.Options{BaseURL: a.Config.Server.BaseURL}, nil).Handler())
	defer srv.Close()
	a.Config.Board.APIURL = srv.URL

	cache, closer, err := OpenBoardCache(a.Config.Board)
	require.NoError(t, err)
	defer func() { _ = closer.Close() }()

	move := func(ctx context.Context, args []string) error { return a.MoveCommand(ctx, cache, args) }
	a.run(t, move, "--record", recordID, "--conference", confID, "--to", status.Negotiating)
	assert.Contains(t, a.buf.String(), "✓ Moved prospect → negotiating")

	rec, err := db.GetRecord(context.Background(), a.DB, uuid.MustParse(recordID))
	require.NoError(t, err)
	assert.Equal(t, status.Negotiating, rec.Status)

	raw, err := cache.Get(board.Key(uuid.MustParse(confID)))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"status":"negotiating"`)

	err = a.MoveCommand(context.Background(), cache, []string{"--record", recordID, "--to", "won"})
	assert.Error(t, err)
}

func TestParseID(t *testing.T) {
	_, err := parseID("record", "")
	assert.EqualError(t, err, "--record is required")

	_, err = parseID("record", "nope")
	assert.ErrorContains(t, err, "invalid record")
}
