// ABOUTME: Gmail notification sender
// ABOUTME: Builds plain-text RFC 5322 messages and sends them through the Gmail API
package workspace

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"strings"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailSender delivers email as the configured sender address.
type GmailSender struct {
	svc  *gmail.Service
	from string
}

// NewGmailSender creates a Gmail API sender.
func NewGmailSender(ctx context.Context, from string, opts ...option.ClientOption) (*GmailSender, error) {
	if from == "" {
		return nil, fmt.Errorf("sender address cannot be empty")
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &GmailSender{svc: svc, from: from}, nil
}

// Send delivers a plain-text email.
func (s *GmailSender) Send(ctx context.Context, to, subject, body string) error {
	_, err := s.SendMessage(ctx, to, subject, body)
	return err
}

// SendMessage delivers a plain-text email and returns the Gmail message ID.
func (s *GmailSender) SendMessage(ctx context.Context, to, subject, body string) (string, error) {
	to = headerValue(to)
	if to == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}

	raw := buildMessage(s.from, to, subject, body)
	msg, err := s.svc.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(raw)),
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	return msg.Id, nil
}

func buildMessage(from, to, subject, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: RetainIQ <%s>\r\n", headerValue(from))
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", headerValue(subject)))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(body)
	return b.String()
}

// headerValue strips line breaks so values cannot inject extra headers.
func headerValue(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
