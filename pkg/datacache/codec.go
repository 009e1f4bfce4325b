package datacache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Codec encodes persisted records.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec is the default codec.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// record is the persisted form of an entry. Timestamps are unix milliseconds
// and a nil Expiry means the entry never expires.
type record[V any] struct {
	Value        V              `json:"value"`
	Expiry       *int64         `json:"expiry"`
	CreatedAt    int64          `json:"createdAt"`
	LastAccessed int64          `json:"lastAccessed"`
	AccessCount  int64          `json:"accessCount"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

func recordFromEntry[V any](e *Entry[V]) record[V] {
	r := record[V]{
		Value:        e.Value,
		CreatedAt:    e.CreatedAt.UnixMilli(),
		LastAccessed: e.LastAccessedAt.UnixMilli(),
		AccessCount:  e.AccessCount,
		Metadata:     e.Metadata,
	}
	if !e.ExpiryAt.IsZero() {
		expiry := e.ExpiryAt.UnixMilli()
		r.Expiry = &expiry
	}
	return r
}

func (r record[V]) entry(key string) *Entry[V] {
	e := &Entry[V]{
		Key:            key,
		Value:          r.Value,
		CreatedAt:      time.UnixMilli(r.CreatedAt),
		LastAccessedAt: time.UnixMilli(r.LastAccessed),
		AccessCount:    r.AccessCount,
		Metadata:       r.Metadata,
	}
	if r.Expiry != nil {
		e.ExpiryAt = time.UnixMilli(*r.Expiry)
	}
	return e
}

// Frame headers written before every persisted record
const (
	framePlain byte = 0x00
	frameZstd  byte = 0x01
)

var errUnknownFrame = errors.New("unknown record frame")

// framer wraps codec output in a one-byte header and compresses large
// records with zstd.
type framer struct {
	threshold int
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
}

func newFramer(threshold int) (*framer, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &framer{threshold: threshold, encoder: encoder, decoder: decoder}, nil
}

func (f *framer) encode(data []byte) []byte {
	if f.threshold > 0 && len(data) > f.threshold {
		compressed := f.encoder.EncodeAll(data, []byte{frameZstd})
		// Only use compression if it actually reduces size
		if len(compressed) < len(data)+1 {
			return compressed
		}
	}

	out := make([]byte, 0, len(data)+1)
	out = append(out, framePlain)
	return append(out, data...)
}

func (f *framer) decode(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errUnknownFrame
	}

	switch data[0] {
	case framePlain:
		return data[1:], nil
	case frameZstd:
		return f.decoder.DecodeAll(data[1:], nil)
	default:
		return nil, fmt.Errorf("%w: 0x%02x", errUnknownFrame, data[0])
	}
}

func (f *framer) close() {
	_ = f.encoder.Close()
	f.decoder.Close()
}
