package kv

import (
	"bytes"
	"testing"
	"time"
)

func TestTTLHeader(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	plain := encodeWithTTL([]byte("photo"), 0, now)
	if !bytes.Equal(plain, []byte("photo")) {
		t.Fatalf("ttl=0 should not wrap, got %q", plain)
	}

	wrapped := encodeWithTTL([]byte("photo"), time.Minute, now)

	got, expired := decodeWithTTL(wrapped, now.Add(59*time.Second))
	if expired || string(got) != "photo" {
		t.Errorf("before expiry = %q expired=%v", got, expired)
	}

	if _, expired := decodeWithTTL(wrapped, now.Add(time.Minute)); !expired {
		t.Error("value should expire at deadline")
	}

	if got, expired := decodeWithTTL([]byte("PVTTL"), now); expired || string(got) != "PVTTL" {
		t.Errorf("short value mangled: %q expired=%v", got, expired)
	}
}
