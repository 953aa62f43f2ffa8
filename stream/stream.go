// Package stream adapts a pull-based JetStream-style message stream to the
// shape the consume and publish pipelines need: a blocking iterator of
// messages with progress/terminal ack, and a publish call that blocks until
// the broker acknowledges receipt. Grounded on the durable-consumer/manual-ack
// wiring used for JetStream work-queue consumers elsewhere in the corpus.
package stream

import (
	"context"
	"strings"
	"time"
)

// Message is one delivered stream message, with the two ack kinds the
// consume pipeline needs: a terminal Ack and a non-terminal AckProgress that
// only resets the broker's redelivery timer.
type Message struct {
	Subject string
	Payload []byte
	Headers map[string][]string
	Length  int64
	Time    time.Time
	Seq     uint64

	ack func() error
	nak func() error
}

// Ack terminally acknowledges the message.
func (m *Message) Ack() error {
	if m.ack == nil {
		return nil
	}
	return m.ack()
}

// AckProgress extends the broker's redelivery timer without terminally
// acknowledging the message.
func (m *Message) AckProgress() error {
	if m.nak == nil {
		return nil
	}
	return m.nak()
}

// Consumer is a durable pull consumer bound to one stream/subject pair.
type Consumer interface {
	// Next blocks until a message is available, ctx is cancelled, or the
	// underlying subscription errors. It returns (nil, nil) when no message
	// arrived within one fetch.
	Next(ctx context.Context) (*Message, error)
	// Close releases the underlying subscription.
	Close() error
}

// Publisher publishes messages and blocks until the broker acknowledges them.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte, headers map[string][]string) error
}

// Adapter is the full capability set the pipelines depend on.
type Adapter interface {
	Publisher
	// Consume opens (creating if absent) a durable pull consumer named after
	// subject, filtered to it, with maxAckPending in-flight messages.
	Consume(ctx context.Context, streamName, subject string, maxAckPending int) (Consumer, error)
}

// DurableName derives a durable consumer name from a subject by replacing the
// wildcard and separator characters the stream protocol reserves ('.', '>',
// '*') with underscores, so any legal subject yields a legal durable name.
func DurableName(subject string) string {
	replacer := strings.NewReplacer(".", "_", ">", "_", "*", "_")
	return replacer.Replace(subject)
}
