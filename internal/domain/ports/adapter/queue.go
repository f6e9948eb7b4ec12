package adapter

import "context"

// TaskQueueClient enqueues background work on the external task queue.
// Enqueue returns the queue's message id, which is recorded on the job so
// that callback deliveries can be correlated and retried safely.
type TaskQueueClient interface {
	Enqueue(ctx context.Context, jobID string, payload map[string]any) (queueMessageID string, err error)
}
