// ABOUTME: MCP prompt handlers for recurring sponsor pipeline reviews
// ABOUTME: Builds pipeline-review and contract-followup prompts from live data
package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/db"
	"github.com/harperreed/sponsordesk/render"
	"github.com/harperreed/sponsordesk/status"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type PromptHandlers struct {
	db *sql.DB
}

func NewPromptHandlers(database *sql.DB) *PromptHandlers {
	return &PromptHandlers{db: database}
}

// GetPrompt generates the prompt message based on the template
func (h *PromptHandlers) GetPrompt(ctx context.Context, request *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	switch request.Params.Name {
	case "pipeline-review":
		return h.pipelineReview(ctx, request.Params.Arguments)
	case "contract-followup":
		return h.contractFollowup(ctx, request.Params.Arguments)
	default:
		return nil, fmt.Errorf("unknown prompt: %s", request.Params.Name)
	}
}

func (h *PromptHandlers) pipelineReview(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	id, err := uuid.Parse(args["conference_id"])
	if err != nil {
		return nil, fmt.Errorf("conference_id is required: %w", err)
	}

	conf, err := db.GetConference(ctx, h.db, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conference: %w", err)
	}
	cards, err := db.ListBoard(ctx, h.db, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch board: %w", err)
	}

	byStatus := map[string][]string{}
	totals := map[string]int64{}
	for _, c := range cards {
		byStatus[c.Record.Status] = append(byStatus[c.Record.Status], c.SponsorName)
		totals[c.Record.ContractCurrency] += c.Record.ContractValue
	}

	var promptText strings.Builder
	promptText.WriteString(fmt.Sprintf("Please review the sponsor pipeline for %s:\n\n", conf.Title))
	for _, s := range status.Values(status.AxisPipeline) {
		names := byStatus[s]
		if len(names) == 0 {
			continue
		}
		promptText.WriteString(fmt.Sprintf("%s (%d): %s\n", s, len(names), strings.Join(names, ", ")))
	}

	currencies := make([]string, 0, len(totals))
	for c := range totals {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)
	for _, c := range currencies {
		promptText.WriteString(fmt.Sprintf("\nTotal value: %s", render.FormatMoney(totals[c], c)))
	}

	promptText.WriteString("\n\nPlease provide:")
	promptText.WriteString("\n1. Which sponsors are stalled and need attention")
	promptText.WriteString("\n2. Suggested next steps for each open negotiation")
	promptText.WriteString("\n3. Risks to the sponsorship revenue target")

	return userPrompt(fmt.Sprintf("Pipeline review for %s", conf.Title), promptText.String()), nil
}

func (h *PromptHandlers) contractFollowup(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	id, err := uuid.Parse(args["record_id"])
	if err != nil {
		return nil, fmt.Errorf("record_id is required: %w", err)
	}

	rec, err := db.GetRecord(ctx, h.db, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch record: %w", err)
	}
	sponsor, err := db.GetSponsor(ctx, h.db, rec.SponsorID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sponsor: %w", err)
	}
	activities, err := db.ListActivities(ctx, h.db, id, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch activities: %w", err)
	}

	var promptText strings.Builder
	promptText.WriteString(fmt.Sprintf("Draft a friendly follow-up about the sponsorship contract with %s.\n\n", sponsor.Name))
	promptText.WriteString(fmt.Sprintf("Contract status: %s\n", rec.ContractStatus))
	promptText.WriteString(fmt.Sprintf("Signature status: %s\n", rec.SignatureStatus))
	if rec.ContractSentAt != nil {
		promptText.WriteString(fmt.Sprintf("Contract sent: %s\n", rec.ContractSentAt.Format("2006-01-02")))
	}
	promptText.WriteString(fmt.Sprintf("Reminders sent: %d\n", rec.ReminderCount))
	if rec.ContractValue > 0 {
		promptText.WriteString(fmt.Sprintf("Value: %s\n", render.FormatMoney(rec.ContractValue, rec.ContractCurrency)))
	}

	if len(activities) > 0 {
		promptText.WriteString("\nRecent history:\n")
		start := 0
		if len(activities) > 10 {
			start = len(activities) - 10
		}
		for _, a := range activities[start:] {
			promptText.WriteString(fmt.Sprintf("- %s %s\n", a.CreatedAt.Format("2006-01-02"), a.Description))
		}
	}

	return userPrompt(fmt.Sprintf("Contract follow-up for %s", sponsor.Name), promptText.String()), nil
}

func userPrompt(description, text string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: text},
			},
		},
	}
}
