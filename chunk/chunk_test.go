package chunk

import (
	"testing"
	"time"

	"github.com/gurre/nats3/types"
)

func testMessages() []types.Message {
	base := time.Unix(1700000000, 0).UTC()
	return []types.Message{
		{Subject: "orders.created", Payload: []byte("hello"), Timestamp: base, Sequence: 1},
		{Subject: "orders.created", Payload: []byte("world!"), Timestamp: base.Add(2 * time.Second), Sequence: 2},
		{Subject: "orders.created", Payload: []byte("x"), Timestamp: base.Add(1 * time.Second), Sequence: 3},
	}
}

func TestSealComputesRange(t *testing.T) {
	c, err := Seal(testMessages())
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if c.Magic != Magic || c.Version != Version {
		t.Fatalf("unexpected envelope: magic=%q version=%q", c.Magic, c.Version)
	}
	if !c.Block.TimestampMin.Equal(time.Unix(1700000000, 0).UTC()) {
		t.Errorf("TimestampMin = %v", c.Block.TimestampMin)
	}
	if !c.Block.TimestampMax.Equal(time.Unix(1700000002, 0).UTC()) {
		t.Errorf("TimestampMax = %v", c.Block.TimestampMax)
	}
	if c.Block.BytesTotal != int64(len("hello")+len("world!")+len("x")) {
		t.Errorf("BytesTotal = %d", c.Block.BytesTotal)
	}
	if !Verify(c) {
		t.Error("Verify() = false for freshly sealed chunk")
	}
}

func TestRoundtripJSON(t *testing.T) {
	c, err := Seal(testMessages())
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	data, err := Serialize(c, types.CodecJSON)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	parsed, err := Parse(data, types.CodecJSON)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if parsed.Hash != c.Hash {
		t.Error("hash changed across JSON roundtrip")
	}
	if !Verify(parsed) {
		t.Error("Verify() = false after JSON roundtrip")
	}
	if len(parsed.Block.Messages) != len(c.Block.Messages) {
		t.Errorf("message count changed: got %d want %d", len(parsed.Block.Messages), len(c.Block.Messages))
	}
}

func TestRoundtripBinary(t *testing.T) {
	c, err := Seal(testMessages())
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	data, err := Serialize(c, types.CodecBinary)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	parsed, err := Parse(data, types.CodecBinary)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if parsed.Hash != c.Hash {
		t.Error("hash changed across binary roundtrip")
	}
	if !Verify(parsed) {
		t.Error("Verify() = false after binary roundtrip")
	}
}

func TestHashIndependentOfCodec(t *testing.T) {
	c, err := Seal(testMessages())
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	jsonBytes, err := Serialize(c, types.CodecJSON)
	if err != nil {
		t.Fatalf("Serialize(json) error = %v", err)
	}
	binBytes, err := Serialize(c, types.CodecBinary)
	if err != nil {
		t.Fatalf("Serialize(binary) error = %v", err)
	}

	fromJSON, err := Parse(jsonBytes, types.CodecJSON)
	if err != nil {
		t.Fatalf("Parse(json) error = %v", err)
	}
	fromBin, err := Parse(binBytes, types.CodecBinary)
	if err != nil {
		t.Fatalf("Parse(binary) error = %v", err)
	}

	if fromJSON.Hash != fromBin.Hash {
		t.Error("hash differs between codecs for the same block")
	}
}

func TestParseBadMagic(t *testing.T) {
	c, _ := Seal(testMessages())
	c.Magic = "WRONG"
	data, err := Serialize(c, types.CodecJSON)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	if _, err := Parse(data, types.CodecJSON); err == nil {
		t.Fatal("Parse() expected error on bad magic")
	}
}

func TestParseBadVersion(t *testing.T) {
	c, _ := Seal(testMessages())
	c.Version = "99.0"
	data, err := Serialize(c, types.CodecJSON)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	if _, err := Parse(data, types.CodecJSON); err == nil {
		t.Fatal("Parse() expected error on bad version")
	}
}

func TestVerifyDetectsCorruption(t *testing.T) {
	c, err := Seal(testMessages())
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	c.Block.Messages[0].Payload = []byte("corrupted")
	if Verify(c) {
		t.Error("Verify() = true after payload corruption")
	}
}

func TestKeyFormat(t *testing.T) {
	c, err := Seal(testMessages())
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	got := Key(c, types.CodecJSON)
	want := "1700000000-3.json"
	if got != want {
		t.Errorf("Key() = %q want %q", got, want)
	}
}

func TestPath(t *testing.T) {
	if got, want := Path("", "orders", "created", "k.json"), "orders/created/k.json"; got != want {
		t.Errorf("Path() = %q want %q", got, want)
	}
	if got, want := Path("p1", "orders", "created", "k.json"), "p1/orders/created/k.json"; got != want {
		t.Errorf("Path() = %q want %q", got, want)
	}
}

func TestSealEmpty(t *testing.T) {
	c, err := Seal(nil)
	if err != nil {
		t.Fatalf("Seal(nil) error = %v", err)
	}
	if !Verify(c) {
		t.Error("Verify() = false for empty chunk")
	}
	if len(c.Block.Messages) != 0 {
		t.Errorf("expected zero messages, got %d", len(c.Block.Messages))
	}
}
