// Package chunk implements the self-describing on-disk chunk container:
// sealing a batch of messages, computing its content hash, serializing it to
// one of two wire formats, and parsing/verifying it back. The package owns
// no state; every operation is a pure function of its inputs.
package chunk

import (
	"crypto/sha256"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/gurre/nats3/types"
)

const (
	// Magic is the container magic number stamped into every chunk.
	Magic = "NATS3"
	// Version is the current container format version.
	Version = "1.0"
)

// Block is the hashed inner payload of a Chunk: the messages plus the
// derived time range and size used for both indexing and verification.
type Block struct {
	Messages       []types.Message `json:"messages" msgpack:"messages"`
	TimestampMin   time.Time       `json:"timestamp_min" msgpack:"timestamp_min"`
	TimestampMax   time.Time       `json:"timestamp_max" msgpack:"timestamp_max"`
	BytesTotal     int64           `json:"bytes_total" msgpack:"bytes_total"`
}

// Chunk is the full on-disk entity: envelope plus the hashed block.
type Chunk struct {
	Magic   string   `json:"magic" msgpack:"magic"`
	Version string   `json:"version" msgpack:"version"`
	Block   Block    `json:"block" msgpack:"block"`
	Hash    [32]byte `json:"hash" msgpack:"hash"`
}

// hashBlock computes the content hash of a block using a fixed internal
// representation (msgpack), independent of the codec chosen for the
// envelope. This lets verification survive a container-version rewrite that
// changes the envelope's wire format without touching the hash.
func hashBlock(b Block) ([32]byte, error) {
	buf, err := msgpack.Marshal(&b)
	if err != nil {
		return [32]byte{}, fmt.Errorf("hash block: %w", err)
	}
	return sha256.Sum256(buf), nil
}

// Seal computes timestamp_min/max and bytes_total from messages, wraps them
// with magic/version, and sets hash = SHA256(serialize(block)).
func Seal(messages []types.Message) (Chunk, error) {
	block := Block{Messages: messages}
	if len(messages) > 0 {
		block.TimestampMin = messages[0].Timestamp
		block.TimestampMax = messages[0].Timestamp
		for _, m := range messages[1:] {
			if m.Timestamp.Before(block.TimestampMin) {
				block.TimestampMin = m.Timestamp
			}
			if m.Timestamp.After(block.TimestampMax) {
				block.TimestampMax = m.Timestamp
			}
		}
		for _, m := range messages {
			block.BytesTotal += int64(len(m.Payload))
		}
	}

	hash, err := hashBlock(block)
	if err != nil {
		return Chunk{}, err
	}

	return Chunk{
		Magic:   Magic,
		Version: Version,
		Block:   block,
		Hash:    hash,
	}, nil
}

// Serialize encodes a Chunk using the given codec. Binary uses msgpack;
// Json uses canonical UTF-8 JSON. Both encodings are self-describing and
// include magic and version.
func Serialize(c Chunk, codec types.Codec) ([]byte, error) {
	switch codec {
	case types.CodecBinary:
		buf, err := msgpack.Marshal(&c)
		if err != nil {
			return nil, fmt.Errorf("serialize chunk: %w", err)
		}
		return buf, nil
	case types.CodecJSON:
		buf, err := json.Marshal(&c)
		if err != nil {
			return nil, fmt.Errorf("serialize chunk: %w", err)
		}
		return buf, nil
	default:
		return nil, fmt.Errorf("%w: unknown codec %q", types.ErrBadEncoding, codec)
	}
}

// Parse decodes a chunk previously produced by Serialize, then validates its
// envelope. It fails with ErrBadFormat on magic mismatch, ErrBadVersion on
// unknown version, and ErrBadEncoding on a codec-level decode error.
func Parse(data []byte, codec types.Codec) (Chunk, error) {
	var c Chunk
	var err error
	switch codec {
	case types.CodecBinary:
		err = msgpack.Unmarshal(data, &c)
	case types.CodecJSON:
		err = json.Unmarshal(data, &c)
	default:
		return Chunk{}, fmt.Errorf("%w: unknown codec %q", types.ErrBadEncoding, codec)
	}
	if err != nil {
		return Chunk{}, fmt.Errorf("%w: %v", types.ErrBadEncoding, err)
	}

	if c.Magic != Magic {
		return Chunk{}, fmt.Errorf("%w: got %q want %q", types.ErrBadFormat, c.Magic, Magic)
	}
	if c.Version != Version {
		return Chunk{}, fmt.Errorf("%w: got %q want %q", types.ErrBadVersion, c.Version, Version)
	}

	return c, nil
}

// Verify recomputes the inner-block hash and compares it to the stored hash.
func Verify(c Chunk) bool {
	recomputed, err := hashBlock(c.Block)
	if err != nil {
		return false
	}
	return recomputed == c.Hash
}

// Key formats the object key for a chunk: "{timestamp_min_epoch}-{count}.{ext}".
func Key(c Chunk, codec types.Codec) string {
	return fmt.Sprintf("%d-%d.%s", c.Block.TimestampMin.Unix(), len(c.Block.Messages), codec.Extension())
}

// Path builds the full object path "{prefix?/}{stream}/{subject}/{key}".
func Path(prefix, stream, subject, key string) string {
	tail := fmt.Sprintf("%s/%s/%s", stream, subject, key)
	if prefix == "" {
		return tail
	}
	return fmt.Sprintf("%s/%s", prefix, tail)
}

// ToChunkMetadata projects a sealed Chunk into the row shape the metadata
// store persists after a successful upload.
func ToChunkMetadata(c Chunk, codec types.Codec, bucket, prefix, key, stream, consumer, subject string, sizeBytes int64) types.CreateChunkMetadata {
	return types.CreateChunkMetadata{
		Bucket:         bucket,
		Prefix:         prefix,
		Key:            key,
		Stream:         stream,
		Consumer:       consumer,
		Subject:        subject,
		TimestampStart: c.Block.TimestampMin,
		TimestampEnd:   c.Block.TimestampMax,
		MessageCount:   int64(len(c.Block.Messages)),
		SizeBytes:      sizeBytes,
		Codec:          codec,
		Hash:           c.Hash,
		Version:        c.Version,
	}
}
