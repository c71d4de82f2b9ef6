package bpf

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encode serializes an event the way the kernel side does: little-endian,
// fixed layout, trailing padding included.
func encode(t *testing.T, ev *CaptureEvent) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, ev))
	return buf.Bytes()
}

func TestEventSize(t *testing.T) {
	assert.Equal(t, EventSize, binary.Size(CaptureEvent{}))
}

func TestUnmarshalEvent_HelloWorld(t *testing.T) {
	in := CaptureEvent{
		TimestampNs: 123_456_789,
		Requested:   11,
		Tid:         42,
		Pid:         41,
		Captured:    11,
	}
	copy(in.Comm[:], "curl")
	copy(in.Payload[:], "hello world")

	ev, err := UnmarshalEvent(encode(t, &in))
	require.NoError(t, err)

	assert.Equal(t, uint32(11), ev.Captured)
	assert.Equal(t, []byte("hello world"), ev.Data())
	assert.Equal(t, "curl", ev.CommString())
	assert.Equal(t, uint32(42), ev.Tid)
	assert.Equal(t, uint32(41), ev.Pid)
	assert.False(t, ev.Truncated())
}

func TestUnmarshalEvent_TruncatedLargeWrite(t *testing.T) {
	// A 1000-byte write clamps to MaxCapture; only the first 256 bytes
	// of the payload are valid.
	in := CaptureEvent{
		Requested: 1000,
		Captured:  MaxCapture,
	}
	for i := range in.Payload {
		in.Payload[i] = byte(i)
	}

	ev, err := UnmarshalEvent(encode(t, &in))
	require.NoError(t, err)

	assert.Equal(t, uint32(MaxCapture), ev.Captured)
	assert.Len(t, ev.Data(), MaxCapture)
	assert.Equal(t, byte(255), ev.Data()[255])
	assert.True(t, ev.Truncated())
}

func TestUnmarshalEvent_ZeroLength(t *testing.T) {
	// Zero-length writes still produce an event; the payload region is
	// empty and must not be read even if it holds stale bytes.
	in := CaptureEvent{
		Requested: 0,
		Captured:  0,
	}
	copy(in.Payload[:], "stale data from a previous event")

	ev, err := UnmarshalEvent(encode(t, &in))
	require.NoError(t, err)

	assert.Empty(t, ev.Data())
	assert.False(t, ev.Truncated())
}

func TestUnmarshalEvent_NegativeLengthClamped(t *testing.T) {
	// The probe stores negative lengths verbatim as unsigned and clamps
	// the capture; the consumer sees a huge Requested and a valid Captured.
	in := CaptureEvent{
		Requested: 0xFFFFFFFFFFFFFFFF, // (long)-1
		Captured:  MaxCapture,
	}

	ev, err := UnmarshalEvent(encode(t, &in))
	require.NoError(t, err)

	assert.Equal(t, uint32(MaxCapture), ev.Captured)
	assert.True(t, ev.Truncated())
}

func TestUnmarshalEvent_ShortRecord(t *testing.T) {
	_, err := UnmarshalEvent(make([]byte, EventSize-1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "short capture record")
}

func TestUnmarshalEvent_CorruptCapturedLength(t *testing.T) {
	// A captured length above MaxCapture cannot come from a well-behaved
	// probe; treat it as corruption, never as a longer payload.
	in := CaptureEvent{
		Requested: 300,
		Captured:  300,
	}

	_, err := UnmarshalEvent(encode(t, &in))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt capture record")
}

func TestUnmarshalEvent_TrailingPerfPadding(t *testing.T) {
	// Perf records are padded to 8 bytes; extra trailing bytes are fine.
	in := CaptureEvent{Requested: 3, Captured: 3}
	copy(in.Payload[:], "abc")

	raw := append(encode(t, &in), 0, 0, 0, 0)
	ev, err := UnmarshalEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), ev.Data())
}

func TestCommString_NoNUL(t *testing.T) {
	var in CaptureEvent
	copy(in.Comm[:], "sixteen-byte-nam")
	assert.Equal(t, "sixteen-byte-nam", in.CommString())
}
