// ABOUTME: FAQ assistant answering customer product questions in their tier's voice
// ABOUTME: Every answered question is appended to the FAQ log
package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/harperreed/retainiq/models"
)

// AnswerFAQ answers question for a customer of tier (entry, mid, top, or a
// plan name). An empty tier answers as the Entry assistant. customerID is
// optional and only used for the log.
func (e *Engine) AnswerFAQ(ctx context.Context, question, tier, customerID string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("question is required")
	}

	t := models.TierEntry
	if tier != "" {
		parsed, err := models.ParseTier(tier)
		if err != nil {
			return "", err
		}
		t = parsed
	}

	answer, err := callWithTimeout(ctx, e.opts.CallTimeout, func(ctx context.Context) (string, error) {
		return e.writer.AnswerFAQ(ctx, question, t.AgentName())
	})
	if err != nil {
		return "", fmt.Errorf("failed to answer question: %w", err)
	}

	entry := &models.FAQQuery{
		Question:  question,
		Answer:    answer,
		CreatedAt: e.now().UTC(),
	}
	if customerID != "" {
		entry.CustomerID = &customerID
	}
	if err := e.deps.Audit.LogFAQ(ctx, entry); err != nil {
		e.logger.Warn("failed to log FAQ query", "err", err)
	}
	return answer, nil
}

