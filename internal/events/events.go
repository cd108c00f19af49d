package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	TypeTransferCompleted = "transfer.completed"
	TypeTransferFailed    = "transfer.failed"
)

// Event is one entry appended to the event stream.
type Event struct {
	Type       string
	TransferID string
	Payload    any
}

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// StreamPublisher appends events to a redis stream with XADD.
type StreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewStreamPublisher builds a publisher writing to stream. The stream is
// trimmed approximately to maxLen entries when maxLen > 0.
func NewStreamPublisher(client *redis.Client, stream string, maxLen int64) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

// Publish serializes the payload as JSON and appends the event.
func (p *StreamPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event.Type, err)
	}
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"type":        event.Type,
			"transfer_id": event.TransferID,
			"payload":     string(payload),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	return p.client.XAdd(ctx, args).Err()
}

// NopPublisher drops every event. Used when redis is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
