// Package flowevents is flowdb's pipeline-lifecycle event bus: epoch
// commits, node start/stop, and fatal aborts are published here so the CLI,
// an admin UI, or a test harness can subscribe without coupling to the
// executor's internals. Adapted from the teacher's pkg/events Broker
// (originally cluster lifecycle events for node/service/task changes):
// same subscribe/unsubscribe/broadcast shape, re-pointed at pipeline
// events.
package flowevents

import (
	"sync"
	"time"
)

// Kind is the type of a pipeline lifecycle event.
type Kind string

const (
	NodeStarted    Kind = "node.started"
	NodeStopped    Kind = "node.stopped"
	EpochCommitted Kind = "epoch.committed"
	EpochBarrier   Kind = "epoch.barrier"
	PipelineFailed Kind = "pipeline.failed"
	Checkpointed   Kind = "checkpoint.saved"
)

// Event is one pipeline lifecycle occurrence.
type Event struct {
	Kind      Kind
	Timestamp time.Time
	Node      string
	Epoch     uint64
	Message   string
}

// Subscriber is a channel that receives events.
type Subscriber chan *Event

// Broker fans pipeline events out to subscribers (metrics exporters, the
// CLI's progress printer, integration tests).
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 256),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop.
func (b *Broker) Start() { go b.run() }

// Stop stops the broker.
func (b *Broker) Stop() { close(b.stopCh) }

// Subscribe creates a new subscription and returns a channel.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 64)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish publishes an event to all subscribers.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip rather than stall the broker.
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
