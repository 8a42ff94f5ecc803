// ABOUTME: MCP resource handlers exposing pipeline data by URI
// ABOUTME: Serves conference boards, record histories and background job state as JSON
package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/db"
	"github.com/harperreed/sponsordesk/pipeline"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const uriScheme = "sponsordesk://"

type ResourceHandlers struct {
	db       *sql.DB
	pipeline *pipeline.Service
}

func NewResourceHandlers(database *sql.DB, svc *pipeline.Service) *ResourceHandlers {
	return &ResourceHandlers{db: database, pipeline: svc}
}

// ReadResource handles resource read requests
func (h *ResourceHandlers) ReadResource(ctx context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, uriScheme) {
		return nil, fmt.Errorf("invalid URI scheme: expected %s", uriScheme)
	}

	parts := strings.Split(strings.TrimPrefix(uri, uriScheme), "/")
	switch {
	case len(parts) == 1 && parts[0] == "jobs":
		return h.readJobs(ctx, uri)
	case len(parts) == 3 && parts[0] == "conferences" && parts[2] == "pipeline":
		return h.readBoard(ctx, uri, parts[1])
	case len(parts) == 3 && parts[0] == "records" && parts[2] == "activities":
		return h.readActivities(ctx, uri, parts[1])
	default:
		return nil, mcp.ResourceNotFoundError(uri)
	}
}

func (h *ResourceHandlers) readJobs(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	jobs, err := db.ListJobStates(ctx, h.db)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch jobs: %w", err)
	}
	return jsonResource(uri, jobs)
}

func (h *ResourceHandlers) readBoard(ctx context.Context, uri, rawID string) (*mcp.ReadResourceResult, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("invalid conference id: %w", err)
	}
	cards, err := h.pipeline.ListBoard(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch board: %w", err)
	}
	return jsonResource(uri, cards)
}

func (h *ResourceHandlers) readActivities(ctx context.Context, uri, rawID string) (*mcp.ReadResourceResult, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("invalid record id: %w", err)
	}
	activities, err := h.pipeline.ListActivities(ctx, id, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch activities: %w", err)
	}
	return jsonResource(uri, activities)
}

func jsonResource(uri string, v interface{}) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}}, nil
}
