// ABOUTME: Entry point for the RetainIQ agent engine, MCP server, and CLI
// ABOUTME: Routes to MCP server or CLI commands based on arguments
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/harperreed/retainiq/cli"
	"github.com/harperreed/retainiq/config"
	"github.com/harperreed/retainiq/db"
)

const version = "0.1.0"

func main() {
	// Global flags
	showVersion := flag.Bool("version", false, "Show version and exit")
	configPath := flag.String("config", "", "Config file (default: ~/.config/retainiq/config.yaml)")
	dbPath := flag.String("db-path", "", "Database path (overrides config)")
	initOnly := flag.Bool("init", false, "Initialize database and exit")

	// Parse global flags but don't fail on unknown (for subcommands)
	_ = flag.CommandLine.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("retainiq version %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 && !*initOnly {
		printUsage()
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	logger := cli.NewLogger(cfg.LogLevel)

	database, err := db.OpenDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = database.Close() }()

	if *initOnly {
		logger.Info("database initialized", "path", cfg.Database.Path)
		return
	}

	app := &cli.App{Config: cfg, DB: database, Logger: logger}

	command := args[0]
	commandArgs := args[1:]

	switch command {
	case "mcp":
		run(cli.MCPCommand(app, version, commandArgs))

	case "agent":
		sub, subArgs := subcommand("agent", commandArgs)
		switch sub {
		case "run":
			run(cli.AgentRunCommand(app, subArgs))
		case "report":
			run(cli.AgentReportCommand(app, subArgs))
		case "monthly":
			run(cli.AgentMonthlyCommand(app, subArgs))
		case "daemon":
			run(cli.AgentDaemonCommand(app, subArgs))
		default:
			unknown("agent", sub)
		}

	case "customers":
		sub, subArgs := subcommand("customers", commandArgs)
		switch sub {
		case "list":
			run(cli.CustomersListCommand(app, subArgs))
		case "import":
			run(cli.CustomersImportCommand(app, subArgs))
		default:
			unknown("customers", sub)
		}

	case "auth":
		sub, subArgs := subcommand("auth", commandArgs)
		switch sub {
		case "init":
			run(cli.AuthInitCommand(app, subArgs))
		default:
			unknown("auth", sub)
		}

	case "logs":
		run(cli.LogsCommand(app, commandArgs))
	case "runs":
		run(cli.RunsCommand(app, commandArgs))
	case "signals":
		run(cli.SignalsCommand(app, commandArgs))
	case "stats":
		run(cli.StatsCommand(app, commandArgs))
	case "faq":
		run(cli.FAQCommand(app, commandArgs))

	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func run(err error) {
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func subcommand(group string, args []string) (string, []string) {
	if len(args) == 0 {
		fmt.Printf("Error: %s requires a subcommand\n\n", group)
		printUsage()
		os.Exit(1)
	}
	return args[0], args[1:]
}

func unknown(group, sub string) {
	fmt.Printf("Unknown %s command: %s\n\n", group, sub)
	printUsage()
	os.Exit(1)
}

func printUsage() {
	fmt.Println(`retainiq - AI customer success agents

Usage:
  retainiq [global flags] <command> [flags]

Global flags:
  --config PATH     Config file (default: ~/.config/retainiq/config.yaml)
  --db-path PATH    Database path (overrides config)
  --init            Initialize database and exit
  --version         Show version and exit

Agents:
  agent run [--tier entry|mid|top|all] [--dry-run] [--json]
  agent report [--dry-run] [--json]        Weekly enterprise report
  agent monthly [--dry-run] [--json]       Monthly summary emails (mid tier)
  agent daemon [--interval 1h] [--tiers all] [--dry-run]

Customers:
  customers list [--tier T] [--min-risk N]
  customers import [--model-version V] <file.json>

Activity:
  logs [--agent A] [--limit N]
  runs [--limit N]
  signals [--customer ID] [--limit N]
  stats

Other:
  faq [--tier T] [--customer ID] <question>
  auth init                                Authorize Gmail, Calendar, and Sheets
  mcp [--dry-run]                          Start the MCP server on stdio

Environment:
  ANTHROPIC_API_KEY, GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET, GCP_SERVICE_ACCOUNT_JSON,
  GMAIL_SENDER_EMAIL, ACCOUNT_MANAGER_EMAIL, SCORING_POSTGRES_URL, KAFKA_BROKERS, LOG_LEVEL`)
}
