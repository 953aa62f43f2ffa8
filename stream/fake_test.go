package stream

import (
	"context"
	"testing"
)

func TestFakeAdapterPublishThenConsume(t *testing.T) {
	a := NewFakeAdapter()
	ctx := context.Background()

	if err := a.Publish(ctx, "orders", []byte("hello"), map[string][]string{"msg-sequence": {"1"}}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	c, err := a.Consume(ctx, "ORDERS", "orders", 128)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}

	msg, err := c.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if msg == nil {
		t.Fatal("Next() returned nil message")
	}
	if string(msg.Payload) != "hello" {
		t.Errorf("Payload = %q want %q", msg.Payload, "hello")
	}
	if err := msg.Ack(); err != nil {
		t.Errorf("Ack() error = %v", err)
	}

	second, err := c.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if second != nil {
		t.Error("expected empty queue, got a message")
	}
}

func TestFakeAdapterSeed(t *testing.T) {
	a := NewFakeAdapter()
	a.Seed("orders", []byte("seeded"), nil)

	c, _ := a.Consume(context.Background(), "ORDERS", "orders", 1)
	msg, err := c.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if msg == nil || string(msg.Payload) != "seeded" {
		t.Fatalf("Next() = %v want seeded payload", msg)
	}
}
