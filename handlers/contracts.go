// ABOUTME: Contract and signing MCP tool handlers
// ABOUTME: Implements contract generation, signature recording, reminders and the reminder sweep
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/contract"
	"github.com/harperreed/sponsordesk/reminders"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Sweeper runs the contract reminder sweep.
type Sweeper interface {
	Sweep(ctx context.Context) (*reminders.SweepResult, error)
}

type ContractHandlers struct {
	contracts *contract.Manager
	sweeper   Sweeper
}

func NewContractHandlers(contracts *contract.Manager, sweeper Sweeper) *ContractHandlers {
	return &ContractHandlers{contracts: contracts, sweeper: sweeper}
}

type RecordIDInput struct {
	RecordID string `json:"record_id" jsonschema:"Pipeline record ID (required)"`
}

type GenerateContractOutput struct {
	Record           RecordOutput `json:"record"`
	AgreementID      string       `json:"agreement_id"`
	SigningURL       string       `json:"signing_url,omitempty"`
	DocumentSize     int64        `json:"document_size"`
	MissingVariables []string     `json:"missing_variables,omitempty"`
}

func (h *ContractHandlers) GenerateContract(ctx context.Context, request *mcp.CallToolRequest, input RecordIDInput) (*mcp.CallToolResult, GenerateContractOutput, error) {
	id, err := uuid.Parse(input.RecordID)
	if err != nil {
		return nil, GenerateContractOutput{}, fmt.Errorf("invalid record_id: %w", err)
	}

	generated, err := h.contracts.GenerateContract(ctx, id, mcpActor)
	if err != nil {
		return nil, GenerateContractOutput{}, fmt.Errorf("failed to generate contract: %w", err)
	}

	out := GenerateContractOutput{
		Record:           recordToOutput(generated.Record),
		MissingVariables: generated.Missing,
	}
	if generated.Agreement != nil {
		out.AgreementID = generated.Agreement.ID
		out.SigningURL = generated.Agreement.SigningURL
	}
	if generated.Asset != nil {
		out.DocumentSize = generated.Asset.Size
	}
	return nil, out, nil
}

type RecordSignatureInput struct {
	RecordID          string `json:"record_id" jsonschema:"Pipeline record ID (required)"`
	SignedAt          string `json:"signed_at,omitempty" jsonschema:"When the sponsor signed, RFC3339 (default now)"`
	SignerName        string `json:"signer_name,omitempty" jsonschema:"Name of the person who signed"`
	OrganizerName     string `json:"organizer_name,omitempty" jsonschema:"Organizer who counter-signed"`
	OrganizerSignedAt string `json:"organizer_signed_at,omitempty" jsonschema:"When the organizer counter-signed, RFC3339"`
}

func (h *ContractHandlers) RecordSignature(ctx context.Context, request *mcp.CallToolRequest, input RecordSignatureInput) (*mcp.CallToolResult, RecordOutput, error) {
	id, err := uuid.Parse(input.RecordID)
	if err != nil {
		return nil, RecordOutput{}, fmt.Errorf("invalid record_id: %w", err)
	}

	ev := contract.SignatureEvent{
		SignerName:    input.SignerName,
		OrganizerName: input.OrganizerName,
		Actor:         mcpActor,
	}
	if ev.SignedAt, err = parseOptionalTime(input.SignedAt); err != nil {
		return nil, RecordOutput{}, fmt.Errorf("invalid signed_at (use RFC3339): %w", err)
	}
	if ev.OrganizerSignedAt, err = parseOptionalTime(input.OrganizerSignedAt); err != nil {
		return nil, RecordOutput{}, fmt.Errorf("invalid organizer_signed_at (use RFC3339): %w", err)
	}

	rec, err := h.contracts.RecordSignatureEvent(ctx, id, ev)
	if err != nil {
		return nil, RecordOutput{}, fmt.Errorf("failed to record signature: %w", err)
	}
	return nil, recordToOutput(rec), nil
}

type ReminderOutput struct {
	ReminderID string `json:"reminder_id"`
	Status     string `json:"status"`
}

func (h *ContractHandlers) SendSigningReminder(ctx context.Context, request *mcp.CallToolRequest, input RecordIDInput) (*mcp.CallToolResult, ReminderOutput, error) {
	id, err := uuid.Parse(input.RecordID)
	if err != nil {
		return nil, ReminderOutput{}, fmt.Errorf("invalid record_id: %w", err)
	}

	reminder, err := h.contracts.SendSigningReminder(ctx, id, mcpActor)
	if err != nil {
		return nil, ReminderOutput{}, fmt.Errorf("failed to send reminder: %w", err)
	}
	return nil, ReminderOutput{ReminderID: reminder.ID, Status: reminder.Status}, nil
}

func (h *ContractHandlers) RefreshSignatureStatus(ctx context.Context, request *mcp.CallToolRequest, input RecordIDInput) (*mcp.CallToolResult, RecordOutput, error) {
	id, err := uuid.Parse(input.RecordID)
	if err != nil {
		return nil, RecordOutput{}, fmt.Errorf("invalid record_id: %w", err)
	}

	rec, err := h.contracts.RefreshSignatureStatus(ctx, id, mcpActor)
	if err != nil {
		return nil, RecordOutput{}, fmt.Errorf("failed to refresh signature status: %w", err)
	}
	return nil, recordToOutput(rec), nil
}

type SweepInput struct{}

func (h *ContractHandlers) RunReminderSweep(ctx context.Context, request *mcp.CallToolRequest, input SweepInput) (*mcp.CallToolResult, reminders.SweepResult, error) {
	result, err := h.sweeper.Sweep(ctx)
	if err != nil {
		return nil, reminders.SweepResult{}, fmt.Errorf("reminder sweep failed: %w", err)
	}
	return nil, *result, nil
}

func parseOptionalTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
