// ABOUTME: Prompt construction for emails, churn analyses, narratives, and FAQ answers
// ABOUTME: Wraps a Generator and turns raw output into typed results
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	emailSystemPrompt    = "You are RetainIQ email agent. Return only valid JSON with subject and body fields. Write warm, professional emails that drive action."
	analysisSystemPrompt = "You are RetainIQ enterprise churn analyst. Return only valid JSON."
	reportSystemPrompt   = "You are RetainIQ reporting analyst. Write a short executive summary for an account manager. Plain text, no markdown."
)

// EmailRequest describes the email a Writer should draft.
type EmailRequest struct {
	Name    string
	Email   string
	Context string
	Purpose string
}

// Writer drafts customer-facing and internal text through a Generator.
type Writer struct {
	gen Generator
}

// NewWriter creates a writer backed by gen.
func NewWriter(gen Generator) *Writer {
	return &Writer{gen: gen}
}

// Email drafts an email. Only transport failures are returned as errors;
// unparseable output yields a degraded Email.
func (w *Writer) Email(ctx context.Context, req EmailRequest) (Email, error) {
	prompt := fmt.Sprintf(`Write a professional email for the following scenario:
Customer: %s (%s)
Context: %s
Purpose: %s

Return ONLY a JSON object with "subject" and "body" fields. No markdown, no code fences.`,
		req.Name, req.Email, req.Context, req.Purpose)

	raw, err := w.gen.Generate(ctx, prompt, emailSystemPrompt)
	if err != nil {
		return Email{}, err
	}
	return ParseEmail(raw), nil
}

// ChurnAnalysis asks for a short risk analysis of a Top-tier customer.
func (w *Writer) ChurnAnalysis(ctx context.Context, company string, data map[string]any) (ChurnAnalysis, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return ChurnAnalysis{}, fmt.Errorf("failed to encode customer data: %w", err)
	}

	prompt := fmt.Sprintf(`Analyze churn risk for enterprise customer:
Company: %s
Data: %s

Return ONLY a JSON object with:
- "analysis": 2-3 sentence analysis of the risk
- "actions": array of 3 recommended actions

No markdown, no code fences.`, company, encoded)

	raw, err := w.gen.Generate(ctx, prompt, analysisSystemPrompt)
	if err != nil {
		return ChurnAnalysis{}, err
	}
	return ParseChurnAnalysis(raw), nil
}

// ReportSummary writes the executive summary paragraph for a weekly report.
func (w *Writer) ReportSummary(ctx context.Context, lines []string) (string, error) {
	prompt := "Summarize this week's enterprise account health in 3-4 sentences. Call out accounts that need attention.\n\n" +
		strings.Join(lines, "\n")

	raw, err := w.gen.Generate(ctx, prompt, reportSystemPrompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

// AnswerFAQ answers a product question in the voice of the tier's assistant.
func (w *Writer) AnswerFAQ(ctx context.Context, question, tier string) (string, error) {
	system := fmt.Sprintf("You are the RetainIQ FAQ chatbot for %s tier customers. Answer questions about the CRM platform concisely and helpfully. Keep answers under 150 words.", tier)

	raw, err := w.gen.Generate(ctx, question, system)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}
