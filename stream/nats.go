package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSAdapter implements Adapter over a real JetStream connection.
type NATSAdapter struct {
	js nats.JetStreamContext
}

var _ Adapter = (*NATSAdapter)(nil)

// NewNATSAdapter wraps an already-connected JetStream context.
func NewNATSAdapter(js nats.JetStreamContext) *NATSAdapter {
	return &NATSAdapter{js: js}
}

// Consume opens a durable pull consumer for subject on streamName, creating
// it if it does not already exist.
func (a *NATSAdapter) Consume(ctx context.Context, streamName, subject string, maxAckPending int) (Consumer, error) {
	durable := DurableName(subject)

	sub, err := a.js.PullSubscribe(subject, durable,
		nats.BindStream(streamName),
		nats.ManualAck(),
		nats.MaxAckPending(maxAckPending),
	)
	if err != nil {
		return nil, fmt.Errorf("pull subscribe %s/%s: %w", streamName, subject, err)
	}

	return &natsConsumer{sub: sub}, nil
}

// Publish sends payload on subject and blocks for the broker's PubAck.
func (a *NATSAdapter) Publish(ctx context.Context, subject string, payload []byte, headers map[string][]string) error {
	msg := &nats.Msg{Subject: subject, Data: payload}
	if len(headers) > 0 {
		msg.Header = nats.Header(headers)
	}
	_, err := a.js.PublishMsg(msg, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

type natsConsumer struct {
	sub *nats.Subscription
}

// Next fetches a single message, blocking until one arrives, ctx is done, or
// the fetch's wait times out. A timeout with no messages pending returns
// (nil, nil); any other fetch failure is returned as an error.
func (c *natsConsumer) Next(ctx context.Context) (*Message, error) {
	msgs, err := c.sub.Fetch(1, nats.Context(ctx))
	if err != nil {
		if ctx.Err() == nil && (errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded)) {
			return nil, nil
		}
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	raw := msgs[0]

	meta, err := raw.Metadata()
	if err != nil {
		return nil, fmt.Errorf("read message metadata: %w", err)
	}

	headers := map[string][]string(raw.Header)

	return &Message{
		Subject: raw.Subject,
		Payload: raw.Data,
		Headers: headers,
		Length:  int64(len(raw.Data)),
		Time:    meta.Timestamp,
		Seq:     meta.Sequence.Stream,
		ack:     raw.Ack,
		nak:     raw.InProgress,
	}, nil
}

// Close unsubscribes, releasing the durable consumer's client-side handle
// (the durable itself persists on the broker for resumption).
func (c *natsConsumer) Close() error {
	return c.sub.Unsubscribe()
}
