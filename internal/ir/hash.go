package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainEvent = "dmap/event/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventID computes the content-addressed ID for an event.
// The ID covers kind, args, seq and call ID; it is stable across replays
// given the same inputs.
func EventID(e Event) (string, error) {
	args := e.Args
	if args == nil {
		args = Args{}
	}
	obj := map[string]any{
		"kind":    e.Kind,
		"args":    args,
		"seq":     e.Seq,
		"call_id": e.CallID,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EventID: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainEvent, canonical), nil
}

// MustEventID is like EventID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustEventID(e Event) string {
	id, err := EventID(e)
	if err != nil {
		panic(err)
	}
	return id
}
