// ABOUTME: Configuration loading for RetainIQ
// ABOUTME: Defaults, then YAML at an XDG path, then .env and environment overrides
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for RetainIQ.
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Database  DatabaseConfig  `yaml:"database"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Google    GoogleConfig    `yaml:"google"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Engine    EngineConfig    `yaml:"engine"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type AnthropicConfig struct {
	APIKey            string  `yaml:"api_key"`
	Model             string  `yaml:"model"`
	MaxTokens         int64   `yaml:"max_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	BaseURL           string  `yaml:"base_url"`
}

// GoogleConfig holds Workspace settings. ServiceAccount may be inline JSON or
// a key file path.
type GoogleConfig struct {
	SenderEmail         string `yaml:"sender_email"`
	AccountManagerEmail string `yaml:"account_manager_email"`
	ServiceAccount      string `yaml:"service_account_file"`
	ClientID            string `yaml:"client_id"`
	ClientSecret        string `yaml:"client_secret"`
	TokenPath           string `yaml:"token_path"`
	DriveFolderID       string `yaml:"drive_folder_id"`
	CalendarID          string `yaml:"calendar_id"`
	TimeZone            string `yaml:"time_zone"`
}

// ScoringConfig selects the predictive-score source: "local" reads the
// SQLite churn_predictions table, "postgres" reads a warehouse table.
type ScoringConfig struct {
	Source      string  `yaml:"source"`
	PostgresURL string  `yaml:"postgres_url"`
	Table       string  `yaml:"table"`
	Scale       float64 `yaml:"scale"`
}

type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	AuditTopic   string   `yaml:"audit_topic"`
	SignalsTopic string   `yaml:"signals_topic"`
}

type EngineConfig struct {
	Concurrency      int           `yaml:"concurrency"`
	RunTimeout       time.Duration `yaml:"run_timeout"`
	CallTimeout      time.Duration `yaml:"call_timeout"`
	AtRiskThreshold  float64       `yaml:"at_risk_threshold"`
	CombineMidEmails bool          `yaml:"combine_mid_emails"`
	MeetingLeadDays  int           `yaml:"meeting_lead_days"`
	MeetingDuration  time.Duration `yaml:"meeting_duration"`
}

const (
	ScoringLocal    = "local"
	ScoringPostgres = "postgres"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Database: DatabaseConfig{
			Path: filepath.Join(xdg.DataHome, "retainiq", "retainiq.db"),
		},
		Anthropic: AnthropicConfig{
			Model:             "claude-sonnet-4-20250514",
			MaxTokens:         1024,
			RequestsPerSecond: 2,
		},
		Google: GoogleConfig{
			SenderEmail: "team@retainiq.com",
			CalendarID:  "primary",
			TimeZone:    "America/Chicago",
		},
		Scoring: ScoringConfig{
			Source: ScoringLocal,
			Table:  "churn_predictions",
			Scale:  100,
		},
		Kafka: KafkaConfig{
			AuditTopic:   "retainiq.audit",
			SignalsTopic: "retainiq.signals",
		},
		Engine: EngineConfig{
			Concurrency:     5,
			RunTimeout:      10 * time.Minute,
			CallTimeout:     60 * time.Second,
			AtRiskThreshold: 50,
			MeetingLeadDays: 7,
			MeetingDuration: 30 * time.Minute,
		},
	}
}

// DefaultPath returns the XDG config file location.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "retainiq", "config.yaml")
}

// Load reads path (DefaultPath when empty) and a .env file in the working
// directory. Missing files are not an error.
func Load(path string) (*Config, error) {
	return LoadFiles(path, ".env")
}

// LoadFiles is Load with an explicit env file. Values already present in the
// environment win over the env file.
func LoadFiles(path, envFile string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.Database.Path, "RETAINIQ_DB_PATH")
	setString(&c.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	setString(&c.Anthropic.Model, "ANTHROPIC_MODEL")
	setString(&c.Google.SenderEmail, "GMAIL_SENDER_EMAIL")
	setString(&c.Google.AccountManagerEmail, "ACCOUNT_MANAGER_EMAIL")
	setString(&c.Google.ServiceAccount, "GCP_SERVICE_ACCOUNT_JSON")
	setString(&c.Google.ClientID, "GOOGLE_CLIENT_ID")
	setString(&c.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	setString(&c.Google.DriveFolderID, "GOOGLE_DRIVE_FOLDER_ID")
	setString(&c.Scoring.Source, "SCORING_SOURCE")
	setString(&c.Scoring.PostgresURL, "SCORING_POSTGRES_URL")

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}

	if v := os.Getenv("RETAINIQ_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RETAINIQ_CONCURRENCY %q: %w", v, err)
		}
		c.Engine.Concurrency = n
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	e := c.Engine
	if e.Concurrency < 1 {
		return fmt.Errorf("engine.concurrency must be at least 1, got %d", e.Concurrency)
	}
	if e.RunTimeout <= 0 || e.CallTimeout <= 0 {
		return fmt.Errorf("engine timeouts must be positive")
	}
	if e.AtRiskThreshold < 0 || e.AtRiskThreshold > 100 {
		return fmt.Errorf("engine.at_risk_threshold must be within 0-100, got %v", e.AtRiskThreshold)
	}
	if e.MeetingLeadDays < 0 {
		return fmt.Errorf("engine.meeting_lead_days cannot be negative")
	}
	if e.MeetingDuration <= 0 {
		return fmt.Errorf("engine.meeting_duration must be positive")
	}

	switch c.Scoring.Source {
	case ScoringLocal:
	case ScoringPostgres:
		if c.Scoring.PostgresURL == "" {
			return fmt.Errorf("scoring.postgres_url is required when scoring.source is postgres")
		}
	default:
		return fmt.Errorf("invalid scoring.source %q (valid: local, postgres)", c.Scoring.Source)
	}

	if len(c.Kafka.Brokers) > 0 && (c.Kafka.AuditTopic == "" || c.Kafka.SignalsTopic == "") {
		return fmt.Errorf("kafka topics are required when brokers are set")
	}

	return nil
}

// AlertRecipient is the account manager address, falling back to the sender.
func (c *Config) AlertRecipient() string {
	if c.Google.AccountManagerEmail != "" {
		return c.Google.AccountManagerEmail
	}
	return c.Google.SenderEmail
}
