// ABOUTME: Terminal dashboard statistics and rendering
// ABOUTME: Summarizes a conference pipeline with stage totals, pending signatures and open invoices
package viz

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harperreed/sponsordesk/db"
	"github.com/harperreed/sponsordesk/render"
	"github.com/harperreed/sponsordesk/status"
)

type DashboardStats struct {
	Title string

	// Pipeline overview
	PipelineByStage map[string]PipelineStageStats
	TotalSponsors   int

	// Needs attention
	AwaitingSignature []AwaitingSignature
	OpenInvoices      int
	OverdueInvoices   int
}

type PipelineStageStats struct {
	Stage  string
	Count  int
	Totals map[string]int64 // minor units per currency
}

type AwaitingSignature struct {
	Sponsor   string
	DaysSince int
	Reminders int
}

// GenerateDashboardStats summarizes the cards of one conference board.
func GenerateDashboardStats(title string, cards []db.BoardCard, now time.Time) *DashboardStats {
	stats := &DashboardStats{
		Title:           title,
		PipelineByStage: make(map[string]PipelineStageStats),
		TotalSponsors:   len(cards),
	}

	for _, c := range cards {
		rec := c.Record

		pstats := stats.PipelineByStage[rec.Status]
		pstats.Stage = rec.Status
		pstats.Count++
		if pstats.Totals == nil {
			pstats.Totals = map[string]int64{}
		}
		pstats.Totals[rec.ContractCurrency] += rec.ContractValue
		stats.PipelineByStage[rec.Status] = pstats

		if rec.SignatureStatus == status.SignaturePending && rec.ContractSentAt != nil {
			stats.AwaitingSignature = append(stats.AwaitingSignature, AwaitingSignature{
				Sponsor:   c.SponsorName,
				DaysSince: int(now.Sub(*rec.ContractSentAt).Hours() / 24),
				Reminders: rec.ReminderCount,
			})
		}

		switch rec.InvoiceStatus {
		case status.InvoiceSent:
			stats.OpenInvoices++
		case status.InvoiceOverdue:
			stats.OpenInvoices++
			stats.OverdueInvoices++
		}
	}

	sort.SliceStable(stats.AwaitingSignature, func(i, j int) bool {
		return stats.AwaitingSignature[i].DaysSince > stats.AwaitingSignature[j].DaysSince
	})

	return stats
}

func RenderDashboard(stats *DashboardStats) string {
	var out strings.Builder

	// Header
	out.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	out.WriteString("  " + strings.ToUpper(stats.Title) + "\n")
	out.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	out.WriteString("PIPELINE OVERVIEW\n")
	renderPipeline(&out, stats.PipelineByStage)
	out.WriteString(fmt.Sprintf("\n  %d sponsors in pipeline\n\n", stats.TotalSponsors))

	if len(stats.AwaitingSignature) > 0 || stats.OpenInvoices > 0 {
		out.WriteString("NEEDS ATTENTION\n")

		for _, a := range stats.AwaitingSignature {
			out.WriteString(fmt.Sprintf("  ⚠️  %s - contract unsigned for %d days (%d reminders)\n",
				a.Sponsor, a.DaysSince, a.Reminders))
		}

		if stats.OpenInvoices > 0 {
			out.WriteString(fmt.Sprintf("  ⚠️  %d invoices open, %d overdue\n", stats.OpenInvoices, stats.OverdueInvoices))
		}
	}

	return out.String()
}

func renderPipeline(out *strings.Builder, pipeline map[string]PipelineStageStats) {
	maxCount := 0
	for _, pstats := range pipeline {
		if pstats.Count > maxCount {
			maxCount = pstats.Count
		}
	}
	if maxCount == 0 {
		maxCount = 1
	}

	for _, stage := range status.Values(status.AxisPipeline) {
		pstats, exists := pipeline[stage]
		if !exists {
			continue
		}

		barLength := (pstats.Count * 10) / maxCount
		bar := strings.Repeat("█", barLength) + strings.Repeat("░", 10-barLength)

		currencies := make([]string, 0, len(pstats.Totals))
		for c := range pstats.Totals {
			currencies = append(currencies, c)
		}
		sort.Strings(currencies)
		amounts := make([]string, 0, len(currencies))
		for _, c := range currencies {
			amounts = append(amounts, render.FormatMoney(pstats.Totals[c], c))
		}

		out.WriteString(fmt.Sprintf("  %-13s %s  %2d (%s)\n",
			stage, bar, pstats.Count, strings.Join(amounts, ", ")))
	}
}
