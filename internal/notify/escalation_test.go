package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wolfman30/support-ai-platform/internal/conversation"
)

type recordingSender struct {
	msgs   []EmailMessage
	failTo string
}

func (r *recordingSender) Send(_ context.Context, msg EmailMessage) error {
	if msg.To == r.failTo {
		return errors.New("mailbox full")
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

func sampleEvent() conversation.EscalationEvent {
	return conversation.EscalationEvent{
		SessionID:   "wa_15551234567",
		Channel:     conversation.ChannelWhatsApp,
		Trigger:     "user:speak to human",
		LastMessage: "I want to speak to human <now>",
		At:          time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestNotifyEscalation_SendsToEveryRecipient(t *testing.T) {
	sender := &recordingSender{}
	n := NewEscalationNotifier(sender, []string{"a@example.com", " ", "b@example.com"}, nil)

	if err := n.NotifyEscalation(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.msgs) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(sender.msgs))
	}
	msg := sender.msgs[0]
	if msg.Subject != "Escalated whatsapp conversation wa_15551234567" {
		t.Errorf("unexpected subject %q", msg.Subject)
	}
	if !strings.Contains(msg.Body, "Reason: Customer request") {
		t.Errorf("expected default reason in body, got %q", msg.Body)
	}
	if !strings.Contains(msg.Body, "Trigger: user:speak to human") {
		t.Errorf("expected trigger in body, got %q", msg.Body)
	}
	if !strings.Contains(msg.HTML, "&lt;now&gt;") {
		t.Errorf("expected escaped html, got %q", msg.HTML)
	}
}

func TestNotifyEscalation_PartialFailure(t *testing.T) {
	sender := &recordingSender{failTo: "b@example.com"}
	n := NewEscalationNotifier(sender, []string{"a@example.com", "b@example.com"}, nil)

	err := n.NotifyEscalation(context.Background(), sampleEvent())
	if err == nil {
		t.Fatal("expected error for failed recipient")
	}
	if !strings.Contains(err.Error(), "1 of 2") {
		t.Errorf("unexpected error: %v", err)
	}
	if len(sender.msgs) != 1 {
		t.Errorf("expected the other recipient to be emailed, got %d", len(sender.msgs))
	}
}

func TestNotifyEscalation_NoRecipients(t *testing.T) {
	if err := NewEscalationNotifier(&recordingSender{}, nil, nil).NotifyEscalation(context.Background(), sampleEvent()); err != nil {
		t.Errorf("expected no-op, got %v", err)
	}
	if err := NewEscalationNotifier(nil, []string{"a@example.com"}, nil).NotifyEscalation(context.Background(), sampleEvent()); err != nil {
		t.Errorf("expected no-op without sender, got %v", err)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo world", 5); got != "héllo..." {
		t.Errorf("unexpected truncation %q", got)
	}
}
