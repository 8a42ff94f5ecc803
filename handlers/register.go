// ABOUTME: Registers every sponsordesk tool, resource and prompt on an MCP server
// ABOUTME: Shared by the stdio MCP command and the handler tests
package handlers

import (
	"database/sql"

	"github.com/harperreed/sponsordesk/contract"
	"github.com/harperreed/sponsordesk/pipeline"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type Deps struct {
	DB        *sql.DB
	Pipeline  *pipeline.Service
	Contracts *contract.Manager
	Sweeper   Sweeper
	BaseURL   string
}

// NewServer builds the MCP server with all tools, resources and prompts.
func NewServer(deps Deps, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "sponsordesk",
		Version: version,
	}, nil)

	sponsors := NewSponsorHandlers(deps.Pipeline, deps.BaseURL)
	records := NewPipelineHandlers(deps.Pipeline)
	contracts := NewContractHandlers(deps.Contracts, deps.Sweeper)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_sponsor",
		Description: "Add a sponsor company and get its onboarding link",
	}, sponsors.AddSponsor)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_sponsors",
		Description: "Search for sponsors by name or website",
	}, sponsors.FindSponsors)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_to_pipeline",
		Description: "Add a sponsor to a conference pipeline, optionally at a tier",
	}, records.AddToPipeline)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_sponsor_status",
		Description: "Set the pipeline, contract, signature or invoice status of a pipeline record",
	}, records.UpdateSponsorStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_activity_note",
		Description: "Log a note, call, meeting or email on a pipeline record",
	}, records.AddActivityNote)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_activities",
		Description: "List the activity history of a pipeline record, oldest first",
	}, records.ListActivities)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_contract",
		Description: "Render the sponsorship contract and send it for signature",
	}, contracts.GenerateContract)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "record_signature",
		Description: "Mark a contract as signed and append the signature page",
	}, contracts.RecordSignature)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "send_signing_reminder",
		Description: "Ask the signing provider to remind the signer now",
	}, contracts.SendSigningReminder)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "refresh_signature_status",
		Description: "Fetch the agreement state from the signing provider and apply it",
	}, contracts.RefreshSignatureStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_reminder_sweep",
		Description: "Email reminders for contracts waiting too long for a signature",
	}, contracts.RunReminderSweep)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_pipeline_record",
		Description: "Delete a pipeline record with its history, optionally with its contract document",
	}, records.DeletePipelineRecord)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_sponsor",
		Description: "Delete a sponsor and every pipeline record it has",
	}, sponsors.DeleteSponsor)

	resources := NewResourceHandlers(deps.DB, deps.Pipeline)
	server.AddResource(&mcp.Resource{
		URI:         uriScheme + "jobs",
		Name:        "jobs",
		Description: "Last run of each background job",
		MIMEType:    "application/json",
	}, resources.ReadResource)
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "conferences/{id}/pipeline",
		Name:        "conference-pipeline",
		Description: "Pipeline board of a conference",
		MIMEType:    "application/json",
	}, resources.ReadResource)
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "records/{id}/activities",
		Name:        "record-activities",
		Description: "Activity history of a pipeline record",
		MIMEType:    "application/json",
	}, resources.ReadResource)

	prompts := NewPromptHandlers(deps.DB)
	server.AddPrompt(&mcp.Prompt{
		Name:        "pipeline-review",
		Description: "Review a conference's sponsor pipeline",
		Arguments:   []*mcp.PromptArgument{{Name: "conference_id", Description: "Conference ID", Required: true}},
	}, prompts.GetPrompt)
	server.AddPrompt(&mcp.Prompt{
		Name:        "contract-followup",
		Description: "Draft a follow-up for a contract awaiting signature",
		Arguments:   []*mcp.PromptArgument{{Name: "record_id", Description: "Pipeline record ID", Required: true}},
	}, prompts.GetPrompt)

	return server
}
