// Package bpf provides Go bindings for the SSL_write capture program.
package bpf

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

//go:generate go run github.com/cilium/ebpf/cmd/bpf2go -target amd64 TlsTap ./tls_tap.bpf.c -- -I. -I/usr/include

const (
	// MaxCapture is the payload capacity of a capture event. It matches
	// MAX_CAPTURE in tls_tap.bpf.c and bounds the per-CPU scratch slot.
	MaxCapture = 256

	// EventSize is the wire size of struct capture_event, padding included.
	EventSize = 304
)

// CaptureEvent matches struct capture_event in tls_tap.bpf.c.
// Explicit layout with trailing padding to mirror the C struct exactly.
type CaptureEvent struct {
	TimestampNs uint64
	Requested   uint64 // length the traced call claimed, stored verbatim
	Tid         uint32
	Pid         uint32
	Captured    uint32 // valid bytes in Payload
	Comm        [16]byte
	Payload     [MaxCapture]byte
	_           [4]byte // trailing padding to 8-byte struct alignment
}

// UnmarshalEvent decodes and validates a raw perf record sample.
// Records shorter than the struct, or claiming more captured bytes than
// MaxCapture, are rejected as corrupt rather than interpreted.
func UnmarshalEvent(raw []byte) (*CaptureEvent, error) {
	if len(raw) < EventSize {
		return nil, fmt.Errorf("short capture record: %d bytes, want %d", len(raw), EventSize)
	}

	var ev CaptureEvent
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &ev); err != nil {
		return nil, fmt.Errorf("decoding capture record: %w", err)
	}

	if ev.Captured > MaxCapture {
		return nil, fmt.Errorf("corrupt capture record: captured=%d exceeds cap %d", ev.Captured, MaxCapture)
	}

	return &ev, nil
}

// Data returns the valid region of the payload. Bytes beyond Captured are
// stale scratch contents and must not be interpreted.
func (e *CaptureEvent) Data() []byte {
	n := e.Captured
	if n > MaxCapture {
		n = MaxCapture
	}
	return e.Payload[:n]
}

// CommString returns the NUL-terminated comm field as a Go string.
func (e *CaptureEvent) CommString() string {
	if i := bytes.IndexByte(e.Comm[:], 0); i >= 0 {
		return string(e.Comm[:i])
	}
	return string(e.Comm[:])
}

// Truncated reports whether the traced call supplied more bytes than the
// probe captured. Negative lengths are stored verbatim as large unsigned
// values and therefore also read as truncated.
func (e *CaptureEvent) Truncated() bool {
	return e.Requested > uint64(e.Captured)
}
