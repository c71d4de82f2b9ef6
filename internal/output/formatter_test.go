package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"tlstap/internal/bpf"
	"tlstap/internal/timesync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConverter(t *testing.T) *timesync.Converter {
	t.Helper()
	c, err := timesync.NewConverter()
	require.NoError(t, err)
	return c
}

func captureEvent(comm, payload string, requested uint64) *bpf.CaptureEvent {
	ev := &bpf.CaptureEvent{
		TimestampNs: uint64(time.Second),
		Requested:   requested,
		Tid:         11,
		Pid:         10,
		Captured:    uint32(len(payload)),
	}
	copy(ev.Comm[:], comm)
	copy(ev.Payload[:], payload)
	return ev
}

func TestTextFormatter_HeaderAndHexdump(t *testing.T) {
	var buf bytes.Buffer
	f := NewTextFormatter(&buf, testConverter(t), false)

	require.NoError(t, f.HandleCapture(captureEvent("curl", "hello world", 11)))

	out := buf.String()
	assert.Contains(t, out, "curl pid=10 tid=11 len=11")
	assert.Contains(t, out, "hello world")
	assert.Contains(t, out, "68 65 6c 6c 6f") // hex of "hello"
	assert.NotContains(t, out, "truncated")
}

func TestTextFormatter_TruncatedNote(t *testing.T) {
	var buf bytes.Buffer
	f := NewTextFormatter(&buf, testConverter(t), false)

	payload := strings.Repeat("A", bpf.MaxCapture)
	require.NoError(t, f.HandleCapture(captureEvent("nginx", payload, 1000)))

	out := buf.String()
	assert.Contains(t, out, "len=256 (truncated, 1000 requested)")
}

func TestTextFormatter_ZeroLengthHasNoDump(t *testing.T) {
	var buf bytes.Buffer
	f := NewTextFormatter(&buf, testConverter(t), false)

	ev := captureEvent("curl", "", 0)
	copy(ev.Payload[:], "stale bytes must not print")
	require.NoError(t, f.HandleCapture(ev))

	out := buf.String()
	assert.Contains(t, out, "len=0")
	assert.NotContains(t, out, "stale")
	assert.Equal(t, 1, strings.Count(out, "\n"), "header line only")
}

func TestTextFormatter_Quiet(t *testing.T) {
	var buf bytes.Buffer
	f := NewTextFormatter(&buf, testConverter(t), true)

	require.NoError(t, f.HandleCapture(captureEvent("curl", "secret body", 11)))

	out := buf.String()
	assert.Contains(t, out, "len=11")
	assert.NotContains(t, out, "secret")
}

func TestTextFormatter_HandleLost(t *testing.T) {
	var buf bytes.Buffer
	f := NewTextFormatter(&buf, testConverter(t), false)

	require.NoError(t, f.HandleLost(2, 40))
	assert.Contains(t, buf.String(), "lost 40 events on cpu 2")
}

type stubHandler struct {
	captures int
	lost     int
	err      error
}

func (h *stubHandler) HandleCapture(*bpf.CaptureEvent) error { h.captures++; return h.err }
func (h *stubHandler) HandleLost(int, uint64) error          { h.lost++; return h.err }

func TestMulti_FansOut(t *testing.T) {
	a, b := &stubHandler{}, &stubHandler{}
	m := NewMulti(a, b)

	require.NoError(t, m.HandleCapture(captureEvent("curl", "x", 1)))
	require.NoError(t, m.HandleLost(0, 1))

	assert.Equal(t, 1, a.captures)
	assert.Equal(t, 1, b.captures)
	assert.Equal(t, 1, a.lost)
	assert.Equal(t, 1, b.lost)
}

func TestMulti_FirstErrorWins(t *testing.T) {
	boom := errors.New("boom")
	a := &stubHandler{err: boom}
	b := &stubHandler{}
	m := NewMulti(a, b)

	err := m.HandleCapture(captureEvent("curl", "x", 1))
	require.ErrorIs(t, err, boom)
	assert.Zero(t, b.captures, "later handlers skipped after an error")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "GET / HTTP/1.1..", preview([]byte("GET / HTTP/1.1\r\n")))
	assert.Len(t, preview(bytes.Repeat([]byte{'a'}, 200)), previewBytes)
	assert.Empty(t, preview(nil))
}
