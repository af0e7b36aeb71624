// Package notify alerts the support team when a conversation needs a human.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/wolfman30/support-ai-platform/internal/conversation"
	"github.com/wolfman30/support-ai-platform/pkg/logging"
)

const lastMessagePreview = 500

// EscalationNotifier emails every configured support inbox about an
// escalated conversation.
type EscalationNotifier struct {
	email      EmailSender
	recipients []string
	logger     *logging.Logger
}

func NewEscalationNotifier(email EmailSender, recipients []string, logger *logging.Logger) *EscalationNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	var cleaned []string
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			cleaned = append(cleaned, r)
		}
	}
	return &EscalationNotifier{email: email, recipients: cleaned, logger: logger}
}

func (n *EscalationNotifier) NotifyEscalation(ctx context.Context, evt conversation.EscalationEvent) error {
	if n.email == nil || len(n.recipients) == 0 {
		n.logger.Debug("notify: no escalation recipients configured", "session_id", evt.SessionID)
		return nil
	}

	msg := EmailMessage{
		Subject: fmt.Sprintf("Escalated %s conversation %s", evt.Channel, evt.SessionID),
		Body:    escalationText(evt),
		HTML:    escalationHTML(evt),
	}
	var errs []error
	for _, to := range n.recipients {
		msg.To = to
		if err := n.email.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d of %d escalation email(s) failed: %w", len(errs), len(n.recipients), errors.Join(errs...))
	}
	n.logger.Info("escalation notification sent", "session_id", evt.SessionID, "recipients", len(n.recipients))
	return nil
}

func escalationFields(evt conversation.EscalationEvent) [][2]string {
	reason := evt.Reason
	if reason == "" {
		reason = "Customer request"
	}
	fields := [][2]string{
		{"Session", evt.SessionID},
		{"Channel", string(evt.Channel)},
		{"Reason", reason},
	}
	if evt.Trigger != "" {
		fields = append(fields, [2]string{"Trigger", evt.Trigger})
	}
	if evt.CustomerID != "" {
		fields = append(fields, [2]string{"Customer", evt.CustomerID})
	}
	if !evt.At.IsZero() {
		fields = append(fields, [2]string{"Escalated at", evt.At.UTC().Format("January 2, 2006 at 3:04 PM MST")})
	}
	if evt.LastMessage != "" {
		fields = append(fields, [2]string{"Last message", truncate(evt.LastMessage, lastMessagePreview)})
	}
	return fields
}

func escalationText(evt conversation.EscalationEvent) string {
	var b strings.Builder
	b.WriteString("A conversation needs a human agent.\n\n")
	for _, f := range escalationFields(evt) {
		fmt.Fprintf(&b, "%s: %s\n", f[0], f[1])
	}
	return b.String()
}

func escalationHTML(evt conversation.EscalationEvent) string {
	var b strings.Builder
	b.WriteString(`<p>A conversation needs a human agent.</p><table style="border-collapse: collapse;">`)
	for _, f := range escalationFields(evt) {
		fmt.Fprintf(&b, `<tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>%s:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>`,
			html.EscapeString(f[0]), html.EscapeString(f[1]))
	}
	b.WriteString(`</table>`)
	return b.String()
}

func truncate(s string, maxRunes int) string {
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes]) + "..."
}

var _ conversation.EscalationNotifier = (*EscalationNotifier)(nil)
