// ABOUTME: Pipeline MCP tool handlers
// ABOUTME: Implements add_to_pipeline, update_sponsor_status, activity and record deletion tools
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/db"
	"github.com/harperreed/sponsordesk/models"
	"github.com/harperreed/sponsordesk/pipeline"
	"github.com/harperreed/sponsordesk/render"
	"github.com/harperreed/sponsordesk/status"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// mcpActor marks changes made through the MCP server in the activity log.
const mcpActor = "mcp"

type PipelineHandlers struct {
	pipeline *pipeline.Service
}

func NewPipelineHandlers(svc *pipeline.Service) *PipelineHandlers {
	return &PipelineHandlers{pipeline: svc}
}

type AddToPipelineInput struct {
	SponsorID     string `json:"sponsor_id,omitempty" jsonschema:"Sponsor ID (sponsor_id or sponsor_name required)"`
	SponsorName   string `json:"sponsor_name,omitempty" jsonschema:"Exact sponsor name, used when sponsor_id is empty"`
	ConferenceID  string `json:"conference_id" jsonschema:"Conference ID (required)"`
	TierID        string `json:"tier_id,omitempty" jsonschema:"Sponsorship tier ID; its price becomes the contract value"`
	ContractValue *int64 `json:"contract_value,omitempty" jsonschema:"Contract value in minor units, overrides the tier price"`
	Currency      string `json:"currency,omitempty" jsonschema:"Currency code (default from tier, else NOK)"`
	SignerName    string `json:"signer_name,omitempty" jsonschema:"Person who signs the contract"`
	SignerEmail   string `json:"signer_email,omitempty" jsonschema:"Email the signing request goes to"`
}

type RecordOutput struct {
	ID              string `json:"id"`
	SponsorID       string `json:"sponsor_id"`
	ConferenceID    string `json:"conference_id"`
	Status          string `json:"status"`
	ContractStatus  string `json:"contract_status"`
	SignatureStatus string `json:"signature_status"`
	InvoiceStatus   string `json:"invoice_status"`
	ContractValue   string `json:"contract_value"`
	SignerEmail     string `json:"signer_email,omitempty"`
	SigningURL      string `json:"signing_url,omitempty"`
	ReminderCount   int    `json:"reminder_count"`
	ContractSentAt  string `json:"contract_sent_at,omitempty"`
	UpdatedAt       string `json:"updated_at"`
}

func (h *PipelineHandlers) AddToPipeline(ctx context.Context, request *mcp.CallToolRequest, input AddToPipelineInput) (*mcp.CallToolResult, RecordOutput, error) {
	conferenceID, err := uuid.Parse(input.ConferenceID)
	if err != nil {
		return nil, RecordOutput{}, fmt.Errorf("invalid conference_id: %w", err)
	}

	sponsorID, err := h.resolveSponsor(ctx, input.SponsorID, input.SponsorName)
	if err != nil {
		return nil, RecordOutput{}, err
	}

	in := pipeline.AddInput{
		SponsorID:        sponsorID,
		ConferenceID:     conferenceID,
		ContractValue:    input.ContractValue,
		ContractCurrency: input.Currency,
		SignerName:       input.SignerName,
		SignerEmail:      input.SignerEmail,
		Actor:            mcpActor,
	}
	if input.TierID != "" {
		tierID, err := uuid.Parse(input.TierID)
		if err != nil {
			return nil, RecordOutput{}, fmt.Errorf("invalid tier_id: %w", err)
		}
		in.TierID = &tierID
	}

	rec, err := h.pipeline.AddToPipeline(ctx, in)
	if err != nil {
		return nil, RecordOutput{}, fmt.Errorf("failed to add to pipeline: %w", err)
	}
	return nil, recordToOutput(rec), nil
}

func (h *PipelineHandlers) resolveSponsor(ctx context.Context, id, name string) (uuid.UUID, error) {
	if id != "" {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid sponsor_id: %w", err)
		}
		return parsed, nil
	}
	if name == "" {
		return uuid.Nil, fmt.Errorf("sponsor_id or sponsor_name is required")
	}

	sponsors, err := h.pipeline.FindSponsors(ctx, name, 10)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to lookup sponsor: %w", err)
	}
	for _, s := range sponsors {
		if s.Name == name {
			return s.ID, nil
		}
	}
	return uuid.Nil, fmt.Errorf("sponsor %q not found", name)
}

type UpdateStatusInput struct {
	RecordID string `json:"record_id" jsonschema:"Pipeline record ID (required)"`
	Axis     string `json:"axis,omitempty" jsonschema:"Status axis: pipeline, contract, signature, invoice (default pipeline)"`
	Value    string `json:"value" jsonschema:"New value, e.g. prospect, contacted, negotiating, closed-won, closed-lost"`
}

func (h *PipelineHandlers) UpdateSponsorStatus(ctx context.Context, request *mcp.CallToolRequest, input UpdateStatusInput) (*mcp.CallToolResult, RecordOutput, error) {
	id, err := uuid.Parse(input.RecordID)
	if err != nil {
		return nil, RecordOutput{}, fmt.Errorf("invalid record_id: %w", err)
	}
	axis := status.AxisPipeline
	if input.Axis != "" {
		if axis, err = status.ParseAxis(input.Axis); err != nil {
			return nil, RecordOutput{}, err
		}
	}

	rec, err := h.pipeline.UpdateStatus(ctx, id, axis, input.Value, mcpActor)
	if err != nil {
		return nil, RecordOutput{}, fmt.Errorf("failed to update status: %w", err)
	}
	return nil, recordToOutput(rec), nil
}

type AddActivityNoteInput struct {
	RecordID    string `json:"record_id" jsonschema:"Pipeline record ID (required)"`
	Type        string `json:"type,omitempty" jsonschema:"note, call, meeting or email (default note)"`
	Description string `json:"description" jsonschema:"What happened (required)"`
}

type ActivityOutput struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description"`
	OldValue    string `json:"old_value,omitempty"`
	NewValue    string `json:"new_value,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func (h *PipelineHandlers) AddActivityNote(ctx context.Context, request *mcp.CallToolRequest, input AddActivityNoteInput) (*mcp.CallToolResult, ActivityOutput, error) {
	id, err := uuid.Parse(input.RecordID)
	if err != nil {
		return nil, ActivityOutput{}, fmt.Errorf("invalid record_id: %w", err)
	}

	activity, err := h.pipeline.AddNote(ctx, id, input.Type, input.Description, mcpActor)
	if err != nil {
		return nil, ActivityOutput{}, fmt.Errorf("failed to add note: %w", err)
	}
	return nil, activityToOutput(activity), nil
}

type ListActivitiesInput struct {
	RecordID string `json:"record_id" jsonschema:"Pipeline record ID (required)"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum entries, oldest first"`
}

type ListActivitiesOutput struct {
	Activities []ActivityOutput `json:"activities"`
}

func (h *PipelineHandlers) ListActivities(ctx context.Context, request *mcp.CallToolRequest, input ListActivitiesInput) (*mcp.CallToolResult, ListActivitiesOutput, error) {
	id, err := uuid.Parse(input.RecordID)
	if err != nil {
		return nil, ListActivitiesOutput{}, fmt.Errorf("invalid record_id: %w", err)
	}

	activities, err := h.pipeline.ListActivities(ctx, id, input.Limit)
	if err != nil {
		return nil, ListActivitiesOutput{}, fmt.Errorf("failed to list activities: %w", err)
	}

	out := ListActivitiesOutput{Activities: make([]ActivityOutput, len(activities))}
	for i := range activities {
		out.Activities[i] = activityToOutput(&activities[i])
	}
	return nil, out, nil
}

type DeleteRecordInput struct {
	RecordID            string `json:"record_id" jsonschema:"Pipeline record ID (required)"`
	DeleteContractAsset bool   `json:"delete_contract_asset,omitempty" jsonschema:"Also delete the contract document when nothing else uses it"`
}

func (h *PipelineHandlers) DeletePipelineRecord(ctx context.Context, request *mcp.CallToolRequest, input DeleteRecordInput) (*mcp.CallToolResult, DeleteOutput, error) {
	id, err := uuid.Parse(input.RecordID)
	if err != nil {
		return nil, DeleteOutput{}, fmt.Errorf("invalid record_id: %w", err)
	}

	plan, err := h.pipeline.DeleteRecord(ctx, id, db.DeleteOptions{DeleteContractAsset: input.DeleteContractAsset})
	if err != nil {
		return nil, DeleteOutput{}, fmt.Errorf("failed to delete record: %w", err)
	}
	return nil, planToOutput(plan), nil
}

func recordToOutput(rec *models.SponsorForConference) RecordOutput {
	out := RecordOutput{
		ID:              rec.ID.String(),
		SponsorID:       rec.SponsorID.String(),
		ConferenceID:    rec.ConferenceID.String(),
		Status:          rec.Status,
		ContractStatus:  rec.ContractStatus,
		SignatureStatus: rec.SignatureStatus,
		InvoiceStatus:   rec.InvoiceStatus,
		ContractValue:   render.FormatMoney(rec.ContractValue, rec.ContractCurrency),
		SignerEmail:     rec.SignerEmail,
		SigningURL:      rec.SigningURL,
		ReminderCount:   rec.ReminderCount,
		UpdatedAt:       rec.UpdatedAt.Format(time.RFC3339),
	}
	if rec.ContractSentAt != nil {
		out.ContractSentAt = rec.ContractSentAt.Format(time.RFC3339)
	}
	return out
}

func activityToOutput(a *models.Activity) ActivityOutput {
	return ActivityOutput{
		ID:          a.ID,
		Type:        a.Type,
		Description: a.Description,
		OldValue:    a.Metadata.OldValue,
		NewValue:    a.Metadata.NewValue,
		CreatedBy:   a.CreatedBy,
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
	}
}
