package filter

import (
	"testing"

	"tlstap/internal/bpf"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(comm, payload string, pid uint32) *bpf.CaptureEvent {
	ev := &bpf.CaptureEvent{
		Pid:       pid,
		Tid:       pid,
		Requested: uint64(len(payload)),
		Captured:  uint32(len(payload)),
	}
	copy(ev.Comm[:], comm)
	copy(ev.Payload[:], payload)
	return ev
}

func TestCompile_RejectsNonBoolean(t *testing.T) {
	_, err := Compile(`comm + "x"`)
	require.Error(t, err)
}

func TestCompile_RejectsUnknownField(t *testing.T) {
	_, err := Compile(`hostname == "web"`)
	require.Error(t, err)
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name string
		src  string
		ev   *bpf.CaptureEvent
		want bool
	}{
		{
			name: "comm match",
			src:  `comm == "curl"`,
			ev:   event("curl", "GET / HTTP/1.1", 10),
			want: true,
		},
		{
			name: "comm mismatch",
			src:  `comm == "curl"`,
			ev:   event("nginx", "GET / HTTP/1.1", 10),
			want: false,
		},
		{
			name: "payload text search",
			src:  `text contains "Authorization"`,
			ev:   event("curl", "Authorization: Bearer abc", 10),
			want: true,
		},
		{
			name: "length threshold",
			src:  `captured > 100`,
			ev:   event("curl", "short", 10),
			want: false,
		},
		{
			name: "pid match",
			src:  `pid == 1234`,
			ev:   event("curl", "x", 1234),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Compile(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Match(tt.ev))
		})
	}
}

type countingHandler struct {
	captures int
	lost     int
}

func (h *countingHandler) HandleCapture(*bpf.CaptureEvent) error { h.captures++; return nil }
func (h *countingHandler) HandleLost(int, uint64) error          { h.lost++; return nil }

func TestWrap_DropsNonMatching(t *testing.T) {
	f, err := Compile(`comm == "curl"`)
	require.NoError(t, err)

	next := &countingHandler{}
	h := f.Wrap(next)

	require.NoError(t, h.HandleCapture(event("curl", "kept", 1)))
	require.NoError(t, h.HandleCapture(event("nginx", "dropped", 2)))
	require.NoError(t, h.HandleLost(0, 5))

	assert.Equal(t, 1, next.captures)
	assert.Equal(t, 1, next.lost, "lost notices must bypass the filter")
}
