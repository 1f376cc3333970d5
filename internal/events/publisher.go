// Package events publishes search lifecycle events to Kafka for downstream
// analytics. Publishing is fire-and-forget: a broker outage never affects
// the search path.
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/marcusmcb/revive-hq-demo/internal/model"
)

const searchCompletedTopic = "listings.search.completed"

// Publisher wraps an async Kafka writer. A nil Publisher is valid and
// publishes nothing, covering deployments without a broker.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher builds a Publisher against broker, or nil when broker is
// empty.
func NewPublisher(broker string) *Publisher {
	if broker == "" {
		return nil
	}
	// segmentio/kafka-go: async writer batches and retries internally;
	// RequireOne waits for the leader ack only.
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(broker),
			Topic:        searchCompletedTopic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
		},
	}
}

// SearchCompleted publishes one completed-search event, keyed by search id
// so events for the same search land on one partition.
func (p *Publisher) SearchCompleted(ctx context.Context, ev model.SearchCompletedEvent) {
	if p == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("events: encode search %s: %v", ev.SearchID, err)
		return
	}
	msg := kafka.Message{
		Key:   []byte(ev.SearchID),
		Value: data,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("events: publish search %s: %v", ev.SearchID, err)
	}
}

// Close flushes and releases the writer.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
