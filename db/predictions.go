// ABOUTME: Local churn prediction table used as the default scoring source
// ABOUTME: Stores model outputs and returns the latest score per customer
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/retainiq/models"
)

// PredictionRepository reads and writes churn predictions produced by an
// external model.
type PredictionRepository struct {
	db *sql.DB
}

// NewPredictionRepository creates a new prediction repository.
func NewPredictionRepository(db *sql.DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

// Save records a prediction for a customer.
func (r *PredictionRepository) Save(ctx context.Context, p models.Prediction, modelVersion string, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO churn_predictions (id, customer_id, churn_score, model_version, predicted_at)
		VALUES (?, ?, ?, ?, ?)
	`, newID("pred"), p.CustomerID, p.ChurnScore, modelVersion, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}
	return nil
}

// Score returns the most recent prediction for each of the given customers,
// highest score first. Customers without a prediction are omitted.
func (r *PredictionRepository) Score(ctx context.Context, customers []models.Customer) ([]models.Prediction, error) {
	if len(customers) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(customers))
	args := make([]interface{}, len(customers))
	for i, c := range customers {
		placeholders[i] = "?"
		args[i] = c.ID
	}

	query := fmt.Sprintf(`
		SELECT p.customer_id, ROUND(p.churn_score, 1)
		FROM churn_predictions p
		WHERE p.customer_id IN (%s)
		  AND p.predicted_at = (
			SELECT MAX(p2.predicted_at) FROM churn_predictions p2
			WHERE p2.customer_id = p.customer_id
		  )
		GROUP BY p.customer_id
		ORDER BY p.churn_score DESC, p.customer_id ASC
	`, strings.Join(placeholders, ", "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var predictions []models.Prediction
	for rows.Next() {
		var p models.Prediction
		if err := rows.Scan(&p.CustomerID, &p.ChurnScore); err != nil {
			return nil, err
		}
		predictions = append(predictions, p)
	}

	return predictions, rows.Err()
}
