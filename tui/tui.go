// ABOUTME: Terminal kanban board using the bubbletea framework
// ABOUTME: Moves sponsor cards between pipeline columns through the optimistic board reconciler
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/board"
	"github.com/harperreed/sponsordesk/status"
)

type keyMap struct {
	Left      key.Binding
	Right     key.Binding
	Up        key.Binding
	Down      key.Binding
	MoveLeft  key.Binding
	MoveRight key.Binding
	Reload    key.Binding
	Quit      key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Left, k.Up, k.MoveLeft, k.MoveRight, k.Reload, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var defaultKeys = keyMap{
	Left:      key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/→", "column")),
	Right:     key.NewBinding(key.WithKeys("right", "l")),
	Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/↓", "card")),
	Down:      key.NewBinding(key.WithKeys("down", "j")),
	MoveLeft:  key.NewBinding(key.WithKeys("<", "H"), key.WithHelp("<", "move back")),
	MoveRight: key.NewBinding(key.WithKeys(">", "L"), key.WithHelp(">", "move on")),
	Reload:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Model is the bubbletea model for one conference board.
type Model struct {
	reconciler   *board.Reconciler
	conferenceID uuid.UUID
	title        string

	columns []string
	cards   map[string][]board.Card
	col     int
	row     int

	// moving is set while a drop is in flight; further moves are ignored.
	moving  bool
	message string
	err     error

	keys   keyMap
	help   help.Model
	width  int
	height int
}

type boardLoadedMsg struct {
	cards []board.Card
	err   error
}

type cardMovedMsg struct {
	sponsor string
	target  string
	err     error
}

// NewModel creates a board model for a conference.
func NewModel(reconciler *board.Reconciler, conferenceID uuid.UUID, title string) Model {
	return Model{
		reconciler:   reconciler,
		conferenceID: conferenceID,
		title:        title,
		columns:      status.Values(status.AxisPipeline),
		cards:        map[string][]board.Card{},
		keys:         defaultKeys,
		help:         help.New(),
		width:        120,
		height:       30,
	}
}

func (m Model) Init() tea.Cmd {
	return m.load()
}

func (m Model) load() tea.Cmd {
	return func() tea.Msg {
		cards, err := m.reconciler.Board(context.Background(), m.conferenceID)
		return boardLoadedMsg{cards: cards, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case boardLoadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.setCards(msg.cards)
		}
		return m, nil
	case cardMovedMsg:
		m.moving = false
		if msg.err != nil {
			m.err = msg.err
			m.message = ""
		} else {
			m.err = nil
			m.message = msg.sponsor + " moved to " + msg.target
		}
		return m, m.load()
	}
	return m, nil
}

func (m *Model) setCards(cards []board.Card) {
	m.cards = map[string][]board.Card{}
	for _, c := range cards {
		m.cards[c.Record.Status] = append(m.cards[c.Record.Status], c)
	}
	m.clampRow()
}

func (m *Model) clampRow() {
	n := len(m.cards[m.columns[m.col]])
	if m.row >= n {
		m.row = n - 1
	}
	if m.row < 0 {
		m.row = 0
	}
}

func (m Model) selected() (board.Card, bool) {
	column := m.cards[m.columns[m.col]]
	if m.row < len(column) {
		return column[m.row], true
	}
	return board.Card{}, false
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Left):
		if m.col > 0 {
			m.col--
			m.clampRow()
		}
	case key.Matches(msg, m.keys.Right):
		if m.col < len(m.columns)-1 {
			m.col++
			m.clampRow()
		}
	case key.Matches(msg, m.keys.Up):
		if m.row > 0 {
			m.row--
		}
	case key.Matches(msg, m.keys.Down):
		if m.row < len(m.cards[m.columns[m.col]])-1 {
			m.row++
		}
	case key.Matches(msg, m.keys.MoveLeft):
		return m.move(-1)
	case key.Matches(msg, m.keys.MoveRight):
		return m.move(1)
	case key.Matches(msg, m.keys.Reload):
		return m, m.load()
	}
	return m, nil
}

func (m Model) move(step int) (tea.Model, tea.Cmd) {
	target := m.col + step
	if m.moving || target < 0 || target >= len(m.columns) {
		return m, nil
	}
	card, ok := m.selected()
	if !ok {
		return m, nil
	}

	m.moving = true
	m.message = "moving " + card.SponsorName + "..."
	m.col = target
	m.row = len(m.cards[m.columns[target]])

	reconciler := m.reconciler
	value := m.columns[target]
	return m, func() tea.Msg {
		drag, err := reconciler.BeginDrag(card.Record.ID, status.AxisPipeline)
		if err == nil {
			err = reconciler.Drop(context.Background(), drag, value)
		}
		return cardMovedMsg{sponsor: card.SponsorName, target: value, err: err}
	}
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	activeColumnStyle = columnStyle.
				BorderForeground(lipgloss.Color("170"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252"))

	cardStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	selectedCardStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("229")).
				Background(lipgloss.Color("57"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))
)
