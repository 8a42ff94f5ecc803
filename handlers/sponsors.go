// ABOUTME: Sponsor MCP tool handlers
// ABOUTME: Implements add_sponsor, find_sponsors and delete_sponsor tools
package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/db"
	"github.com/harperreed/sponsordesk/models"
	"github.com/harperreed/sponsordesk/pipeline"
	"github.com/harperreed/sponsordesk/signing"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type SponsorHandlers struct {
	pipeline *pipeline.Service
	baseURL  string
}

func NewSponsorHandlers(svc *pipeline.Service, baseURL string) *SponsorHandlers {
	return &SponsorHandlers{pipeline: svc, baseURL: baseURL}
}

type AddSponsorInput struct {
	Name         string `json:"name" jsonschema:"Sponsor company name (required)"`
	Website      string `json:"website,omitempty" jsonschema:"Company website"`
	OrgNumber    string `json:"org_number,omitempty" jsonschema:"Organization number"`
	ContactName  string `json:"contact_name,omitempty" jsonschema:"Primary contact person"`
	ContactEmail string `json:"contact_email,omitempty" jsonschema:"Primary contact email"`
}

type SponsorOutput struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Website       string `json:"website,omitempty"`
	OrgNumber     string `json:"org_number,omitempty"`
	PrimaryEmail  string `json:"primary_email,omitempty"`
	OnboardingURL string `json:"onboarding_url,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func (h *SponsorHandlers) AddSponsor(ctx context.Context, request *mcp.CallToolRequest, input AddSponsorInput) (*mcp.CallToolResult, SponsorOutput, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, SponsorOutput{}, fmt.Errorf("name is required")
	}

	sponsor := &models.Sponsor{
		Name:      strings.TrimSpace(input.Name),
		Website:   input.Website,
		OrgNumber: input.OrgNumber,
	}
	if input.ContactName != "" || input.ContactEmail != "" {
		sponsor.ContactPersons = []models.ContactPerson{{
			Name:      input.ContactName,
			Email:     input.ContactEmail,
			IsPrimary: true,
		}}
	}

	if err := h.pipeline.CreateSponsor(ctx, sponsor); err != nil {
		return nil, SponsorOutput{}, fmt.Errorf("failed to create sponsor: %w", err)
	}

	out := sponsorToOutput(sponsor)
	out.OnboardingURL = signing.OnboardingURL(h.baseURL, sponsor.OnboardingToken)
	return nil, out, nil
}

type FindSponsorsInput struct {
	Query string `json:"query,omitempty" jsonschema:"Search by name or website"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum results (default 10)"`
}

type FindSponsorsOutput struct {
	Sponsors []SponsorOutput `json:"sponsors"`
}

func (h *SponsorHandlers) FindSponsors(ctx context.Context, request *mcp.CallToolRequest, input FindSponsorsInput) (*mcp.CallToolResult, FindSponsorsOutput, error) {
	sponsors, err := h.pipeline.FindSponsors(ctx, input.Query, input.Limit)
	if err != nil {
		return nil, FindSponsorsOutput{}, fmt.Errorf("failed to find sponsors: %w", err)
	}

	out := FindSponsorsOutput{Sponsors: make([]SponsorOutput, len(sponsors))}
	for i := range sponsors {
		out.Sponsors[i] = sponsorToOutput(&sponsors[i])
	}
	return nil, out, nil
}

type DeleteSponsorInput struct {
	ID string `json:"id" jsonschema:"Sponsor ID (required)"`
}

type DeleteOutput struct {
	Sponsors       int `json:"sponsors"`
	Records        int `json:"records"`
	Activities     int `json:"activities"`
	Assets         int `json:"assets"`
	RetainedAssets int `json:"retained_assets"`
}

func (h *SponsorHandlers) DeleteSponsor(ctx context.Context, request *mcp.CallToolRequest, input DeleteSponsorInput) (*mcp.CallToolResult, DeleteOutput, error) {
	id, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, DeleteOutput{}, fmt.Errorf("invalid sponsor id: %w", err)
	}

	plan, err := h.pipeline.DeleteSponsor(ctx, id)
	if err != nil {
		return nil, DeleteOutput{}, fmt.Errorf("failed to delete sponsor: %w", err)
	}
	return nil, planToOutput(plan), nil
}

func sponsorToOutput(s *models.Sponsor) SponsorOutput {
	out := SponsorOutput{
		ID:        s.ID.String(),
		Name:      s.Name,
		Website:   s.Website,
		OrgNumber: s.OrgNumber,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
	}
	if c := s.PrimaryContact(); c != nil {
		out.PrimaryEmail = c.Email
	}
	return out
}

func planToOutput(plan *db.DeletePlan) DeleteOutput {
	return DeleteOutput{
		Sponsors:       len(plan.SponsorIDs),
		Records:        len(plan.RecordIDs),
		Activities:     len(plan.ActivityIDs),
		Assets:         len(plan.AssetIDs),
		RetainedAssets: len(plan.RetainedAssetIDs),
	}
}
