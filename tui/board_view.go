// ABOUTME: Rendering of the kanban board columns and cards
// ABOUTME: Lays out one lipgloss column per pipeline status with the selected card highlighted
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/harperreed/sponsordesk/render"
)

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("SPONSOR PIPELINE · " + m.title))
	s.WriteString("\n")

	s.WriteString(m.renderColumns())
	s.WriteString("\n")

	switch {
	case m.err != nil:
		s.WriteString(errorStyle.Render("Error: " + m.err.Error()))
	case m.message != "":
		s.WriteString(messageStyle.Render(m.message))
	}
	s.WriteString("\n")

	s.WriteString(m.help.View(m.keys))
	return s.String()
}

func (m Model) columnWidth() int {
	w := m.width/len(m.columns) - 4
	if w < 14 {
		w = 14
	}
	return w
}

func (m Model) renderColumns() string {
	width := m.columnWidth()
	rendered := make([]string, 0, len(m.columns))

	for i, name := range m.columns {
		cards := m.cards[name]

		var total int64
		currency := ""
		for _, c := range cards {
			total += c.Record.ContractValue
			currency = c.Record.ContractCurrency
		}

		lines := []string{headerStyle.Render(fmt.Sprintf("%s (%d)", name, len(cards)))}
		if total > 0 {
			lines = append(lines, cardStyle.Render(render.FormatMoney(total, currency)))
		}
		lines = append(lines, "")

		for j, c := range cards {
			label := truncate(c.SponsorName, width)
			if i == m.col && j == m.row {
				lines = append(lines, selectedCardStyle.Render(label))
			} else {
				lines = append(lines, cardStyle.Render(label))
			}
			if c.TierTitle != "" {
				lines = append(lines, cardStyle.Faint(true).Render("  "+truncate(c.TierTitle, width-2)))
			}
		}

		style := columnStyle
		if i == m.col {
			style = activeColumnStyle
		}
		rendered = append(rendered, style.Width(width).Render(strings.Join(lines, "\n")))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
