// ABOUTME: Tests for the terminal kanban board
// ABOUTME: Drives the bubbletea model with key messages against an in-memory board cache
package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/board"
	"github.com/harperreed/sponsordesk/models"
	"github.com/harperreed/sponsordesk/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	cards  []board.Card
	reject error
}

func (f *fakeServer) UpdateStatus(ctx context.Context, recordID uuid.UUID, axis status.Axis, value string) error {
	if f.reject != nil {
		return f.reject
	}
	for i := range f.cards {
		if f.cards[i].Record.ID == recordID {
			status.Set(&f.cards[i].Record, axis, value)
		}
	}
	return nil
}

func (f *fakeServer) LoadBoard(ctx context.Context, conferenceID uuid.UUID) ([]board.Card, error) {
	out := make([]board.Card, len(f.cards))
	copy(out, f.cards)
	return out, nil
}

func newTestModel(t *testing.T) (Model, *fakeServer) {
	t.Helper()
	conferenceID := uuid.New()
	server := &fakeServer{}
	for _, name := range []string{"Acme AS", "Globex"} {
		server.cards = append(server.cards, board.Card{
			Record: models.SponsorForConference{
				ID:               uuid.New(),
				ConferenceID:     conferenceID,
				Status:           status.Prospect,
				ContractValue:    2500000,
				ContractCurrency: "NOK",
			},
			SponsorName: name,
		})
	}

	reconciler := board.NewReconciler(board.NewMemoryCache(), server, server, nil)
	m := NewModel(reconciler, conferenceID, "DevConf 2026")
	return run(t, m, m.Init()), server
}

// run feeds the message produced by cmd back into the model.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	next, _ := m.Update(cmd())
	return next.(Model)
}

func press(m Model, keys string) (Model, tea.Cmd) {
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)})
	return next.(Model), cmd
}

func TestBoardRendersColumns(t *testing.T) {
	m, _ := newTestModel(t)

	view := m.View()
	assert.Contains(t, view, "DevConf 2026")
	assert.Contains(t, view, "prospect (2)")
	assert.Contains(t, view, "Acme AS")
	assert.Contains(t, view, "50,000.00 NOK")
}

func TestNavigateCards(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = press(m, "j")
	card, ok := m.selected()
	require.True(t, ok)
	assert.Equal(t, "Globex", card.SponsorName)

	m, _ = press(m, "l")
	_, ok = m.selected()
	assert.False(t, ok)
	assert.Equal(t, 1, m.col)
}

func TestMoveCardForward(t *testing.T) {
	m, server := newTestModel(t)

	m, cmd := press(m, ">")
	assert.True(t, m.moving)

	next, reload := m.Update(cmd())
	m = next.(Model)
	assert.False(t, m.moving)
	assert.NoError(t, m.err)
	assert.Contains(t, m.message, "Acme AS moved to "+status.Contacted)
	assert.Equal(t, status.Contacted, server.cards[0].Record.Status)

	m = run(t, m, reload)
	assert.Len(t, m.cards[status.Contacted], 1)
	assert.Len(t, m.cards[status.Prospect], 1)
	assert.True(t, strings.Contains(m.View(), "contacted (1)"))
}

func TestRejectedMoveRestoresBoard(t *testing.T) {
	m, server := newTestModel(t)
	server.reject = errors.New("contract already signed")

	m, cmd := press(m, ">")
	next, reload := m.Update(cmd())
	m = next.(Model)
	require.Error(t, m.err)
	assert.Contains(t, m.View(), "contract already signed")

	m = run(t, m, reload)
	assert.Len(t, m.cards[status.Prospect], 2)
	assert.Empty(t, m.cards[status.Contacted])
}

func TestMoveBeforeFirstColumnIsIgnored(t *testing.T) {
	m, _ := newTestModel(t)

	m, cmd := press(m, "<")
	assert.Nil(t, cmd)
	assert.False(t, m.moving)
}
