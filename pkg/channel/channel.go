// Package channel implements the typed, bounded channel fabric that
// carries operations between graph nodes: one channel per edge, FIFO,
// blocking send under backpressure, graceful drain on disconnect. Adapted
// from the broadcast Broker in the teacher's pkg/events/events.go — the
// same "select on the data channel or a stop/done channel" idiom, narrowed
// from one-to-many pub/sub down to the one-to-one bounded delivery a graph
// edge needs.
package channel

import (
	"github.com/cuemby/flowdb/pkg/flowrecord"
)

// Envelope is one message flowing over an edge: an operation tagged with
// its source sequence number, or a bare epoch barrier.
type Envelope struct {
	Seq     flowrecord.SeqNo
	Op      flowrecord.Operation
	Barrier bool
	Epoch   uint64
}

// Chan is a bounded, typed, single-producer/single-consumer channel
// implementing one graph edge.
type Chan struct {
	ch   chan Envelope
	done chan struct{}
}

// New creates a channel with the given buffer capacity.
func New(capacity int) *Chan {
	return &Chan{
		ch:   make(chan Envelope, capacity),
		done: make(chan struct{}),
	}
}

// Send blocks until the envelope is delivered, the channel is closed, or
// the edge has been disconnected. It returns ErrDisconnected in the latter
// two cases so the caller can drain and terminate gracefully instead of
// treating it as a fatal error.
func (c *Chan) Send(e Envelope) error {
	select {
	case <-c.done:
		return ErrDisconnected
	default:
	}
	select {
	case c.ch <- e:
		return nil
	case <-c.done:
		return ErrDisconnected
	}
}

// Recv blocks until an envelope arrives or the channel disconnects. Once
// disconnected, Recv keeps draining any envelopes that were already
// buffered before finally returning ErrDisconnected, so a graceful shutdown
// never silently drops in-flight work.
func (c *Chan) Recv() (Envelope, error) {
	select {
	case e := <-c.ch:
		return e, nil
	case <-c.done:
		select {
		case e := <-c.ch:
			return e, nil
		default:
			return Envelope{}, ErrDisconnected
		}
	}
}

// Close signals disconnection: pending and future sends unblock with
// ErrDisconnected, while Recv continues to drain the buffer first.
func (c *Chan) Close() {
	select {
	case <-c.done:
		// already closed
	default:
		close(c.done)
	}
}
