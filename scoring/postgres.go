// ABOUTME: Predictive churn scores read from a Postgres-compatible warehouse
// ABOUTME: Latest model output per customer, scaled into the 0-100 risk range
package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/harperreed/retainiq/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultTable = "churn_predictions"

// Querier is the subset of pgxpool.Pool used by PostgresSource.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Options configures a PostgresSource.
type Options struct {
	// Table holds customer_id, churn_probability, and predicted_at columns.
	Table string
	// Scale converts stored probabilities into percentages. Zero means 100,
	// for models that emit 0-1 probabilities; use 1 when the table already
	// stores percentages.
	Scale float64
}

// PostgresSource scores customers from a predictions table.
type PostgresSource struct {
	q     Querier
	pool  *pgxpool.Pool
	table string
	scale float64
}

// Connect opens a pool and verifies the connection.
func Connect(ctx context.Context, connString string, opts Options) (*PostgresSource, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect to scoring database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping scoring database: %w", err)
	}

	s := NewPostgresSource(pool, opts)
	s.pool = pool
	return s, nil
}

// NewPostgresSource wraps an existing querier.
func NewPostgresSource(q Querier, opts Options) *PostgresSource {
	table := opts.Table
	if table == "" {
		table = defaultTable
	}
	scale := opts.Scale
	if scale <= 0 {
		scale = 100
	}
	return &PostgresSource{q: q, table: table, scale: scale}
}

// Close releases the pool when Connect created it.
func (s *PostgresSource) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Score returns one prediction per customer that has one, highest first.
func (s *PostgresSource) Score(ctx context.Context, customers []models.Customer) ([]models.Prediction, error) {
	if len(customers) == 0 {
		return nil, nil
	}

	ids := make([]string, len(customers))
	for i, c := range customers {
		ids[i] = c.ID
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT ON (customer_id) customer_id, churn_probability
		FROM %s
		WHERE customer_id = ANY($1)
		ORDER BY customer_id, predicted_at DESC
	`, pgx.Identifier{s.table}.Sanitize())

	rows, err := s.q.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("query churn predictions: %w", err)
	}
	defer rows.Close()

	var predictions []models.Prediction
	for rows.Next() {
		var (
			id   string
			prob float64
		)
		if err := rows.Scan(&id, &prob); err != nil {
			return nil, fmt.Errorf("scan churn prediction: %w", err)
		}
		predictions = append(predictions, models.Prediction{CustomerID: id, ChurnScore: Normalize(prob, s.scale)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read churn predictions: %w", err)
	}

	sort.SliceStable(predictions, func(i, j int) bool {
		if predictions[i].ChurnScore != predictions[j].ChurnScore {
			return predictions[i].ChurnScore > predictions[j].ChurnScore
		}
		return predictions[i].CustomerID < predictions[j].CustomerID
	})

	return predictions, nil
}

// Normalize scales a raw model output to a percentage rounded to one decimal
// and clamped to [0, 100].
func Normalize(raw, scale float64) float64 {
	if math.IsNaN(raw) {
		return 0
	}
	v := math.Round(raw*scale*10) / 10
	return math.Max(0, math.Min(100, v))
}
