package conversation

import (
	"context"
	"fmt"

	"github.com/wolfman30/support-ai-platform/pkg/logging"
)

// Publisher enqueues channel turns for asynchronous processing.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// EnqueueTurn publishes job and returns it with its assigned id.
func (p *Publisher) EnqueueTurn(ctx context.Context, job TurnJob) (TurnJob, error) {
	job, body, err := encodeJob(job)
	if err != nil {
		return TurnJob{}, err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return TurnJob{}, fmt.Errorf("conversation: failed to enqueue job: %w", err)
	}
	p.logger.Debug("conversation job enqueued", "job_id", job.ID, "session_id", job.SessionID, "channel", string(job.Channel))
	return job, nil
}
