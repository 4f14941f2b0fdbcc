package service

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event types published for downstream consumers.
const (
	EventExpenseCreated    = "expense.created"
	EventExpenseDeleted    = "expense.deleted"
	EventSettlementCreated = "settlement.created"
)

// Event is the envelope published on the event channel.
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// EventPublisher emits domain events, fire-and-forget: a publish failure is
// logged and never fails the request that triggered it.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data interface{})
}

type redisPublisher struct {
	rdb     *redis.Client
	channel string
}

// NewRedisPublisher publishes JSON event envelopes on a Redis channel.
func NewRedisPublisher(rdb *redis.Client, channel string) EventPublisher {
	if channel == "" {
		channel = "events"
	}
	return &redisPublisher{rdb: rdb, channel: channel}
}

func (p *redisPublisher) Publish(ctx context.Context, eventType string, data interface{}) {
	payload, err := json.Marshal(Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	})
	if err != nil {
		log.Printf("event %s dropped, marshal failed: %v", eventType, err)
		return
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		log.Printf("event %s dropped, publish failed: %v", eventType, err)
	}
}

// RecordingPublisher captures events in memory for tests.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

// NewRecordingPublisher returns an empty recorder.
func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

// Publish records the event.
func (p *RecordingPublisher) Publish(_ context.Context, eventType string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, Event{Type: eventType, Data: data, Timestamp: time.Now()})
}

// Events returns a copy of everything published so far.
func (p *RecordingPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}
