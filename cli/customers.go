// ABOUTME: Customer CLI commands
// ABOUTME: Lists tier rosters and imports customer records and local churn predictions
package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/harperreed/retainiq/agents"
	"github.com/harperreed/retainiq/db"
	"github.com/harperreed/retainiq/models"
)

// CustomersListCommand prints the roster of one or every tier.
func CustomersListCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	tierFlag := fs.String("tier", "all", "Tier to list: entry, mid, top, or all")
	minRisk := fs.Float64("min-risk", -1, "Only customers with churn risk above this value")
	_ = fs.Parse(args)

	tiers, err := parseTiers(*tierFlag)
	if err != nil {
		return err
	}

	var filter models.CustomerFilter
	if *minRisk >= 0 {
		filter.MinChurnRisk = minRisk
	}

	ctx := context.Background()
	repo := db.NewCustomerRepository(app.DB)

	var customers []models.Customer
	for _, tier := range tiers {
		rows, err := repo.Select(ctx, tier, filter)
		if err != nil {
			return fmt.Errorf("failed to list %s customers: %w", tier, err)
		}
		customers = append(customers, rows...)
	}

	if len(customers) == 0 {
		fmt.Println("No customers found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "COMPANY\tCONTACT\tTIER\tHEALTH\tRISK\tFEATURES\tID\tSTATUS")
	_, _ = fmt.Fprintln(w, "-------\t-------\t----\t------\t----\t--------\t--\t------")
	for _, c := range customers {
		status := agents.ReportStatus(c.ChurnRisk)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.0f\t%.1f%%\t%s\t%s\t%s\n",
			orDash(c.Company), orDash(c.Name), c.Tier, c.HealthScore, c.ChurnRisk,
			c.FeatureSummary(), c.ID, statusStyle(status).Render(status))
	}
	_ = w.Flush()

	fmt.Printf("\nTotal: %d customer(s)\n", len(customers))
	return nil
}

// CustomersImportCommand loads customers and predictions from a JSON file.
func CustomersImportCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	modelVersion := fs.String("model-version", "import", "Model version recorded with imported predictions")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: retainiq customers import [--model-version V] <file.json>")
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("failed to open import file: %w", err)
	}
	defer func() { _ = f.Close() }()

	result, err := importCustomers(context.Background(), app.DB, f, *modelVersion, time.Now())
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", okStyle.Render(fmt.Sprintf("✓ Imported %d customer(s) and %d prediction(s)",
		result.Customers, result.Predictions)))
	return nil
}

// importFile is the import document. A bare JSON array of customers is
// also accepted.
type importFile struct {
	Customers    []models.Customer   `json:"customers"`
	Predictions  []models.Prediction `json:"predictions"`
	ModelVersion string              `json:"model_version,omitempty"`
}

type importResult struct {
	Customers   int
	Predictions int
}

func importCustomers(ctx context.Context, database *sql.DB, r io.Reader, modelVersion string, now time.Time) (*importResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read import file: %w", err)
	}

	var doc importFile
	if trimmed := strings.TrimSpace(string(data)); strings.HasPrefix(trimmed, "[") {
		err = json.Unmarshal(data, &doc.Customers)
	} else {
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse import file: %w", err)
	}
	if doc.ModelVersion != "" {
		modelVersion = doc.ModelVersion
	}

	for i := range doc.Customers {
		if err := normalizeCustomer(&doc.Customers[i], now); err != nil {
			return nil, fmt.Errorf("customer %d: %w", i+1, err)
		}
	}
	for i, p := range doc.Predictions {
		if p.CustomerID == "" {
			return nil, fmt.Errorf("prediction %d: customer_id is required", i+1)
		}
		if p.ChurnScore < 0 || p.ChurnScore > 100 {
			return nil, fmt.Errorf("prediction %d: churn_score must be within 0-100, got %v", i+1, p.ChurnScore)
		}
	}

	customers := db.NewCustomerRepository(database)
	for i := range doc.Customers {
		if err := customers.Upsert(ctx, &doc.Customers[i]); err != nil {
			return nil, err
		}
	}

	predictions := db.NewPredictionRepository(database)
	for _, p := range doc.Predictions {
		if err := predictions.Save(ctx, p, modelVersion, now); err != nil {
			return nil, err
		}
	}

	return &importResult{Customers: len(doc.Customers), Predictions: len(doc.Predictions)}, nil
}

func normalizeCustomer(c *models.Customer, now time.Time) error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	if c.Name == "" && c.Company == "" {
		return fmt.Errorf("name or company is required")
	}
	tier, err := models.ParseTier(string(c.Tier))
	if err != nil {
		return err
	}
	c.Tier = tier
	if c.ChurnRisk < 0 || c.ChurnRisk > 100 {
		return fmt.Errorf("churn_risk must be within 0-100, got %v", c.ChurnRisk)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now.UTC()
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
