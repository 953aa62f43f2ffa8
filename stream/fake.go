package stream

import (
	"context"
	"sync"
)

// FakeAdapter is an in-memory Adapter used by unit tests and the e2e harness.
// Publish to a subject enqueues onto any consumer opened for that subject.
type FakeAdapter struct {
	mu        sync.Mutex
	queues    map[string][]*Message
	seq       uint64
	published []Message
}

var _ Adapter = (*FakeAdapter)(nil)

// NewFakeAdapter returns an empty FakeAdapter.
func NewFakeAdapter() *FakeAdapter {
	return &FakeAdapter{queues: make(map[string][]*Message)}
}

// Seed pre-populates subject's queue, as if produced by an external publisher.
func (a *FakeAdapter) Seed(subject string, payload []byte, headers map[string][]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	a.queues[subject] = append(a.queues[subject], &Message{
		Subject: subject,
		Payload: payload,
		Headers: headers,
		Length:  int64(len(payload)),
		Seq:     a.seq,
		ack:     func() error { return nil },
		nak:     func() error { return nil },
	})
}

// Consume returns a fakeConsumer reading from subject's in-memory queue.
func (a *FakeAdapter) Consume(ctx context.Context, streamName, subject string, maxAckPending int) (Consumer, error) {
	return &fakeConsumer{adapter: a, subject: subject}, nil
}

// Publish appends payload to subject's queue and records it for assertions.
func (a *FakeAdapter) Publish(ctx context.Context, subject string, payload []byte, headers map[string][]string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	msg := &Message{
		Subject: subject,
		Payload: payload,
		Headers: headers,
		Length:  int64(len(payload)),
		Seq:     a.seq,
		ack:     func() error { return nil },
		nak:     func() error { return nil },
	}
	a.queues[subject] = append(a.queues[subject], msg)
	a.published = append(a.published, *msg)
	return nil
}

// Published returns every message handed to Publish, in order.
func (a *FakeAdapter) Published() []Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Message, len(a.published))
	copy(out, a.published)
	return out
}

type fakeConsumer struct {
	adapter *FakeAdapter
	subject string
}

// Next pops the next message for this consumer's subject, or returns
// (nil, nil) if the queue is currently empty — callers treat that as "no
// message this tick", matching a pull-fetch timeout.
func (c *fakeConsumer) Next(ctx context.Context) (*Message, error) {
	c.adapter.mu.Lock()
	defer c.adapter.mu.Unlock()
	q := c.adapter.queues[c.subject]
	if len(q) == 0 {
		return nil, nil
	}
	msg := q[0]
	c.adapter.queues[c.subject] = q[1:]
	return msg, nil
}

func (c *fakeConsumer) Close() error { return nil }
