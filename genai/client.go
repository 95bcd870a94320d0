// ABOUTME: Anthropic Messages API client used as the text-generation collaborator
// ABOUTME: Rate-limited, single-attempt calls with token usage tracking
package genai

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"
)

const (
	defaultMaxTokens    = 1024
	defaultSystemPrompt = "You are RetainIQ, an AI customer success assistant. Be concise, professional, and actionable."
)

// Generator produces text for a prompt. Implementations must honor ctx.
type Generator interface {
	Generate(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// ClientConfig contains configuration for creating a new Client.
type ClientConfig struct {
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY env var.
	APIKey string
	// Model defaults to Claude Sonnet 4.
	Model     anthropic.Model
	MaxTokens int64
	// RequestsPerSecond caps calls to the API; zero or negative means unlimited.
	RequestsPerSecond float64
	// BaseURL overrides the API endpoint.
	BaseURL string
}

// Client wraps the Anthropic SDK client.
type Client struct {
	inner     anthropic.Client
	model     anthropic.Model
	maxTokens int64
	limiter   *rate.Limiter
	usage     Usage
}

// NewClient creates a new Anthropic API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
	}

	// A failed call is recorded and retried by the next scheduled run, not here.
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}

	return &Client{
		inner:     anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
		limiter:   rate.NewLimiter(limit, burst),
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() anthropic.Model {
	return c.model
}

// Usage returns the token counters for this client.
func (c *Client) Usage() *Usage {
	return &c.usage
}

// Generate sends a single user message and returns the concatenated text blocks.
func (c *Client) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := c.inner.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}

	c.usage.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var out strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			out.WriteString(text.Text)
		}
	}

	return out.String(), nil
}

// Usage tracks token usage across calls. Safe for concurrent use.
type Usage struct {
	inputTok  atomic.Int64
	outputTok atomic.Int64
	calls     atomic.Int64
}

// Add records token usage from an API call.
func (u *Usage) Add(input, output int64) {
	u.inputTok.Add(input)
	u.outputTok.Add(output)
	u.calls.Add(1)
}

// Total returns the total input and output tokens tracked.
func (u *Usage) Total() (input, output int64) {
	return u.inputTok.Load(), u.outputTok.Load()
}

// Calls returns the number of API calls made.
func (u *Usage) Calls() int64 {
	return u.calls.Load()
}
