// ABOUTME: MCP resource handlers for exposing engine data
// ABOUTME: Provides read-only access to run summaries, churn signals, and tier rosters via URI
package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harperreed/retainiq/db"
	"github.com/harperreed/retainiq/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const resourceScheme = "retainiq://"

type ResourceHandlers struct {
	customers *db.CustomerRepository
	logs      *db.LogRepository
	signals   *db.SignalRepository
}

func NewResourceHandlers(database *sql.DB) *ResourceHandlers {
	return &ResourceHandlers{
		customers: db.NewCustomerRepository(database),
		logs:      db.NewLogRepository(database),
		signals:   db.NewSignalRepository(database),
	}
}

// Register adds the static resources and the per-tier roster template.
func (h *ResourceHandlers) Register(server *mcp.Server) {
	server.AddResource(&mcp.Resource{
		URI:         resourceScheme + "runs",
		Name:        "runs",
		Description: "Most recent agent run summaries",
		MIMEType:    "application/json",
	}, h.ReadResource)
	server.AddResource(&mcp.Resource{
		URI:         resourceScheme + "signals",
		Name:        "signals",
		Description: "Most recent churn signals",
		MIMEType:    "application/json",
	}, h.ReadResource)
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: resourceScheme + "customers/{tier}",
		Name:        "customers",
		Description: "Customer roster for a tier, highest churn risk first",
		MIMEType:    "application/json",
	}, h.ReadResource)
}

// ReadResource handles resource read requests
func (h *ResourceHandlers) ReadResource(ctx context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, resourceScheme) {
		return nil, fmt.Errorf("invalid URI scheme: expected %s", resourceScheme)
	}

	parts := strings.Split(strings.TrimPrefix(uri, resourceScheme), "/")
	switch parts[0] {
	case "runs":
		runs, err := h.logs.RecentRuns(ctx, 20)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch runs: %w", err)
		}
		return jsonResource(uri, runs)

	case "signals":
		signals, err := h.signals.ListSignals(ctx, "", 50)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch churn signals: %w", err)
		}
		return jsonResource(uri, signals)

	case "customers":
		if len(parts) < 2 || parts[1] == "" {
			return nil, fmt.Errorf("tier is required: %scustomers/{tier}", resourceScheme)
		}
		tier, err := models.ParseTier(parts[1])
		if err != nil {
			return nil, err
		}
		customers, err := h.customers.Select(ctx, tier, models.CustomerFilter{})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch customers: %w", err)
		}
		return jsonResource(uri, customers)

	default:
		return nil, fmt.Errorf("unknown resource: %s", parts[0])
	}
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
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
