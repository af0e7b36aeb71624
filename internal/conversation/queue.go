package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// TurnJob is a channel message waiting to be processed by the worker pool.
type TurnJob struct {
	ID                string         `json:"id"`
	SessionID         string         `json:"session_id"`
	Message           string         `json:"message"`
	CustomerID        string         `json:"customer_id,omitempty"`
	Channel           Channel        `json:"channel"`
	Recipient         string         `json:"recipient,omitempty"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	EnqueuedAt        time.Time      `json:"enqueued_at"`
}

// Turn converts the job into a HandleTurn request.
func (j TurnJob) Turn() TurnRequest {
	return TurnRequest{
		SessionID:  j.SessionID,
		Message:    j.Message,
		CustomerID: j.CustomerID,
		Channel:    j.Channel,
		Metadata:   j.Metadata,
	}
}

func encodeJob(job TurnJob) (TurnJob, string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return TurnJob{}, "", fmt.Errorf("conversation: failed to encode job: %w", err)
	}
	return job, string(body), nil
}
