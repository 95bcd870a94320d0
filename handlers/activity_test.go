// ABOUTME: Activity, resource, and prompt handler test suite
// ABOUTME: Runs against a temporary SQLite store seeded with customers and audit rows
package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/harperreed/retainiq/db"
	"github.com/harperreed/retainiq/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seededAt = time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.OpenDatabase(filepath.Join(t.TempDir(), "retainiq.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func seedActivity(t *testing.T, database *sql.DB) {
	t.Helper()
	ctx := context.Background()

	customers := db.NewCustomerRepository(database)
	for _, c := range []models.Customer{
		{ID: "t1", Name: "Pat", Email: "pat@acme.com", Company: "Acme", Tier: models.TierTop, ChurnRisk: 92, HealthScore: 30, FeaturesUsed: 3, TotalFeatures: 12},
		{ID: "t2", Name: "Lee", Email: "lee@beta.com", Company: "Beta", Tier: models.TierTop, ChurnRisk: 20, HealthScore: 85},
		{ID: "m1", Name: "Dana", Email: "dana@example.com", Company: "Dana Inc", Tier: models.TierMid, ChurnRisk: 70},
	} {
		c := c
		require.NoError(t, customers.Upsert(ctx, &c))
	}

	logs := db.NewLogRepository(database)
	t1 := "t1"
	require.NoError(t, logs.LogAction(ctx, &models.AgentLog{
		AgentType: "enterprise", ActionType: "critical_alert", CustomerID: &t1,
		Details: "CRITICAL: Acme at 92% churn risk", CreatedAt: seededAt,
	}))
	m1 := "m1"
	require.NoError(t, logs.LogAction(ctx, &models.AgentLog{
		AgentType: "professional", ActionType: "email_sent", CustomerID: &m1,
		Details: "Re-engagement email sent to Dana (70% risk)", CreatedAt: seededAt.Add(-time.Hour),
	}))
	require.NoError(t, logs.LogEmail(ctx, &models.EmailLog{
		AgentType: "professional", CustomerID: "m1", ToEmail: "dana@example.com",
		Subject: "Checking in", Purpose: models.PurposeReEngagement, SentAt: seededAt.Add(-time.Hour),
	}))
	require.NoError(t, logs.RecordRun(ctx, &models.RunSummary{
		ID: "run-1", Agent: "enterprise", Tier: models.TierTop, Kind: models.RunKindAgent,
		Status: models.RunCompleted, Processed: 2, Dispatched: 1,
		ActionCounts: map[string]int{"critical_alert": 1}, Actions: []string{"CRITICAL alert: Acme (92%)"},
		StartedAt: seededAt, FinishedAt: seededAt.Add(time.Second),
	}))

	signals := db.NewSignalRepository(database)
	require.NoError(t, signals.RecordSignal(ctx, &models.ChurnSignal{
		CustomerID: "t1", ChurnScore: 92, Severity: models.SeverityCritical,
		Analysis: "Logins collapsed.", RecommendedActions: []string{"Schedule QBR"}, DetectedAt: seededAt,
	}))
}

func TestRecentLogsTool(t *testing.T) {
	database := setupTestDB(t)
	seedActivity(t, database)
	h := NewActivityHandlers(database)

	_, out, err := h.RecentLogs(context.Background(), &mcp.CallToolRequest{}, RecentLogsInput{})
	require.NoError(t, err)
	// Two actions plus the run summary entry.
	assert.Len(t, out.Logs, 3)

	_, out, err = h.RecentLogs(context.Background(), &mcp.CallToolRequest{}, RecentLogsInput{Agent: "mid"})
	require.NoError(t, err)
	require.Len(t, out.Logs, 1)
	assert.Equal(t, "professional", out.Logs[0].Agent)
	assert.Equal(t, "m1", out.Logs[0].CustomerID)

	_, out, err = h.RecentLogs(context.Background(), &mcp.CallToolRequest{}, RecentLogsInput{Agent: "enterprise", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, out.Logs, 1)
}

func TestListChurnSignalsTool(t *testing.T) {
	database := setupTestDB(t)
	seedActivity(t, database)
	h := NewActivityHandlers(database)

	_, out, err := h.ListChurnSignals(context.Background(), &mcp.CallToolRequest{}, ListChurnSignalsInput{CustomerID: "t1"})
	require.NoError(t, err)
	require.Len(t, out.Signals, 1)
	assert.Equal(t, "critical", out.Signals[0].Severity)
	assert.Equal(t, []string{"Schedule QBR"}, out.Signals[0].RecommendedActions)
	assert.Equal(t, "2026-05-20T15:00:00Z", out.Signals[0].DetectedAt)

	_, out, err = h.ListChurnSignals(context.Background(), &mcp.CallToolRequest{}, ListChurnSignalsInput{CustomerID: "t2"})
	require.NoError(t, err)
	assert.Empty(t, out.Signals)
}

func TestDashboardStatsTool(t *testing.T) {
	database := setupTestDB(t)
	seedActivity(t, database)
	h := NewActivityHandlers(database)
	h.now = func() time.Time { return seededAt }

	_, out, err := h.DashboardStats(context.Background(), &mcp.CallToolRequest{}, DashboardStatsInput{})
	require.NoError(t, err)

	assert.Equal(t, 3, out.Stats.TotalCustomers)
	assert.Equal(t, 2, out.Stats.AtRisk)
	assert.Equal(t, 1, out.Stats.EmailsToday)
	assert.Equal(t, 1, out.Stats.ChurnSignals30d)
	assert.InDelta(t, 115.0/3, out.Stats.AvgHealth, 0.001)
	assert.Equal(t, models.HealthDistribution{Red: 2, Green: 1}, out.Stats.HealthDistribution)
	require.Len(t, out.Stats.TierDistribution, 2)
	assert.Equal(t, models.TierMid, out.Stats.TierDistribution[0].Tier)
	assert.Equal(t, models.TierTop, out.Stats.TierDistribution[1].Tier)
	assert.Equal(t, 2, out.Stats.TierDistribution[1].Count)
	assert.InDelta(t, 56.0, out.Stats.TierDistribution[1].AvgChurn, 0.001)
	assert.Len(t, out.RecentActivity, 3)
}

func TestReadResources(t *testing.T) {
	database := setupTestDB(t)
	seedActivity(t, database)
	h := NewResourceHandlers(database)
	ctx := context.Background()

	read := func(uri string) (*mcp.ReadResourceResult, error) {
		return h.ReadResource(ctx, &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: uri}})
	}

	res, err := read("retainiq://runs")
	require.NoError(t, err)
	var runs []models.RunSummary
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)

	res, err = read("retainiq://customers/top")
	require.NoError(t, err)
	var customers []models.Customer
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &customers))
	require.Len(t, customers, 2)
	assert.Equal(t, "t1", customers[0].ID)

	_, err = read("retainiq://signals")
	assert.NoError(t, err)

	_, err = read("retainiq://customers/")
	assert.Error(t, err)
	_, err = read("retainiq://nope")
	assert.Error(t, err)
	_, err = read("crm://contacts")
	assert.Error(t, err)
}

func TestGetPrompts(t *testing.T) {
	database := setupTestDB(t)
	seedActivity(t, database)
	h := NewPromptHandlers(database)
	ctx := context.Background()

	get := func(name string, args map[string]string) (*mcp.GetPromptResult, error) {
		return h.GetPrompt(ctx, &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{Name: name, Arguments: args}})
	}

	res, err := get("churn-review", map[string]string{"customer_id": "t1"})
	require.NoError(t, err)
	text := res.Messages[0].Content.(*mcp.TextContent).Text
	assert.Contains(t, text, "Company: Acme")
	assert.Contains(t, text, "Churn Risk: 92.0% (CRITICAL)")
	assert.Contains(t, text, "Logins collapsed.")

	res, err = get("tier-health", map[string]string{"tier": "enterprise"})
	require.NoError(t, err)
	text = res.Messages[0].Content.(*mcp.TextContent).Text
	assert.Contains(t, text, "top tier (2 customers)")
	assert.Contains(t, text, "CRITICAL: 1")
	assert.Contains(t, text, "HEALTHY: 1")

	_, err = get("churn-review", map[string]string{})
	assert.Error(t, err)
	_, err = get("churn-review", map[string]string{"customer_id": "missing"})
	assert.Error(t, err)
	_, err = get("unknown", nil)
	assert.Error(t, err)
}
