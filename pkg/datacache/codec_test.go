package datacache

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestFramer(t *testing.T) {
	f, err := newFramer(32)
	if err != nil {
		t.Fatalf("Failed to create framer: %v", err)
	}
	defer f.close()

	tests := []struct {
		name  string
		data  []byte
		frame byte
	}{
		{"empty", []byte{}, framePlain},
		{"below threshold", []byte("short"), framePlain},
		{"compressible", bytes.Repeat([]byte("abcd"), 256), frameZstd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := f.encode(tt.data)
			if encoded[0] != tt.frame {
				t.Errorf("frame = 0x%02x, want 0x%02x", encoded[0], tt.frame)
			}

			decoded, err := f.decode(encoded)
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if !bytes.Equal(decoded, tt.data) {
				t.Errorf("round trip mismatch: got %d bytes, want %d", len(decoded), len(tt.data))
			}
		})
	}
}

func TestFramer_Disabled(t *testing.T) {
	f, err := newFramer(0)
	if err != nil {
		t.Fatalf("Failed to create framer: %v", err)
	}
	defer f.close()

	encoded := f.encode(bytes.Repeat([]byte("x"), 100000))
	if encoded[0] != framePlain {
		t.Error("Threshold 0 should disable compression")
	}
}

func TestFramer_UnknownFrame(t *testing.T) {
	f, err := newFramer(0)
	if err != nil {
		t.Fatalf("Failed to create framer: %v", err)
	}
	defer f.close()

	for _, data := range [][]byte{nil, {0x42, 'x'}} {
		if _, err := f.decode(data); !errors.Is(err, errUnknownFrame) {
			t.Errorf("decode(%v) err = %v, want errUnknownFrame", data, err)
		}
	}
}

func TestRecord_WireFormat(t *testing.T) {
	e := &Entry[string]{
		Value:          "v",
		ExpiryAt:       time.UnixMilli(5000),
		CreatedAt:      time.UnixMilli(1000),
		LastAccessedAt: time.UnixMilli(2000),
		AccessCount:    3,
	}

	data, err := JSONCodec{}.Marshal(recordFromEntry(e))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	want := `{"value":"v","expiry":5000,"createdAt":1000,"lastAccessed":2000,"accessCount":3}`
	if string(data) != want {
		t.Errorf("record = %s\nwant    %s", data, want)
	}

	var r record[string]
	if err := (JSONCodec{}).Unmarshal(data, &r); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	got := r.entry("k")
	if got.Key != "k" || !got.ExpiryAt.Equal(e.ExpiryAt) || got.AccessCount != 3 {
		t.Errorf("decoded entry = %+v", got)
	}
}

func TestRecord_NoExpiry(t *testing.T) {
	data, err := JSONCodec{}.Marshal(recordFromEntry(&Entry[int]{Value: 1}))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"expiry":null`) {
		t.Errorf("record = %s, want null expiry", data)
	}

	var r record[int]
	if err := (JSONCodec{}).Unmarshal(data, &r); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !r.entry("k").ExpiryAt.IsZero() {
		t.Error("null expiry decoded as a deadline")
	}
}
