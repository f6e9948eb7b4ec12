package redis

import (
	"context"
	"time"
)

// StreamBuffer mirrors a job's accumulated partial output so reconnecting
// clients can poll cheaply without hitting Postgres on every request. The
// durable copy in the jobs table remains authoritative; a cache miss just
// falls through to it.
type StreamBuffer struct {
	client *Client
	ttl    time.Duration
}

func NewStreamBuffer(client *Client, ttl time.Duration) *StreamBuffer {
	return &StreamBuffer{client: client, ttl: ttl}
}

func (b *StreamBuffer) Store(ctx context.Context, jobID, buffer string) error {
	return b.client.Set(ctx, "job_buffer:"+jobID, buffer, b.ttl)
}

// Load returns the mirrored buffer; ok is false on a cache miss.
func (b *StreamBuffer) Load(ctx context.Context, jobID string) (string, bool, error) {
	s, err := b.client.Get(ctx, "job_buffer:"+jobID)
	if err != nil {
		if IsNil(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return s, true, nil
}

func (b *StreamBuffer) Delete(ctx context.Context, jobID string) error {
	return b.client.Del(ctx, "job_buffer:"+jobID)
}
