// ABOUTME: Database schema definitions
// ABOUTME: Customers, predictions, and the append-only audit tables written by the agents
package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS customers (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	company TEXT NOT NULL DEFAULT '',
	tier TEXT NOT NULL CHECK(tier IN ('entry', 'mid', 'top')),
	health_score REAL NOT NULL DEFAULT 0,
	churn_risk REAL NOT NULL DEFAULT 0,
	logins_per_week REAL NOT NULL DEFAULT 0,
	features_used INTEGER NOT NULL DEFAULT 0,
	total_features INTEGER NOT NULL DEFAULT 0,
	days_since_last_login INTEGER NOT NULL DEFAULT 0,
	support_tickets INTEGER NOT NULL DEFAULT 0,
	arr REAL NOT NULL DEFAULT 0,
	onboarding_status TEXT,
	onboarding_day INTEGER,
	upsell_ready INTEGER NOT NULL DEFAULT 0,
	upsell_value REAL NOT NULL DEFAULT 0,
	last_login DATETIME,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_customers_tier ON customers(tier);
CREATE INDEX IF NOT EXISTS idx_customers_churn_risk ON customers(churn_risk DESC);

CREATE TABLE IF NOT EXISTS churn_predictions (
	id TEXT PRIMARY KEY,
	customer_id TEXT NOT NULL,
	churn_score REAL NOT NULL,
	model_version TEXT NOT NULL DEFAULT '',
	predicted_at DATETIME NOT NULL,
	FOREIGN KEY (customer_id) REFERENCES customers(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_churn_predictions_customer ON churn_predictions(customer_id, predicted_at DESC);

CREATE TABLE IF NOT EXISTS agent_logs (
	id TEXT PRIMARY KEY,
	agent_type TEXT NOT NULL,
	action_type TEXT NOT NULL,
	customer_id TEXT,
	details TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_agent_logs_created ON agent_logs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_agent_logs_agent ON agent_logs(agent_type);

CREATE TABLE IF NOT EXISTS emails_sent (
	id TEXT PRIMARY KEY,
	agent_type TEXT NOT NULL,
	customer_id TEXT NOT NULL DEFAULT '',
	to_email TEXT NOT NULL,
	subject TEXT NOT NULL,
	purpose TEXT NOT NULL,
	sent_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_emails_sent_at ON emails_sent(sent_at DESC);

CREATE TABLE IF NOT EXISTS churn_signals (
	id TEXT PRIMARY KEY,
	customer_id TEXT NOT NULL,
	churn_score REAL NOT NULL,
	severity TEXT NOT NULL CHECK(severity IN ('critical', 'high')),
	analysis TEXT NOT NULL,
	recommended_actions TEXT NOT NULL,
	detected_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_churn_signals_customer ON churn_signals(customer_id);
CREATE INDEX IF NOT EXISTS idx_churn_signals_detected ON churn_signals(detected_at DESC);

CREATE TABLE IF NOT EXISTS run_summaries (
	id TEXT PRIMARY KEY,
	agent_type TEXT NOT NULL,
	tier TEXT NOT NULL,
	kind TEXT NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('completed', 'aborted')),
	processed INTEGER NOT NULL,
	dispatched INTEGER NOT NULL,
	failures INTEGER NOT NULL,
	persistence_failures INTEGER NOT NULL,
	action_counts TEXT NOT NULL,
	actions TEXT NOT NULL,
	error_message TEXT,
	started_at DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_run_summaries_finished ON run_summaries(finished_at DESC);

CREATE TABLE IF NOT EXISTS faq_queries (
	id TEXT PRIMARY KEY,
	customer_id TEXT,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
