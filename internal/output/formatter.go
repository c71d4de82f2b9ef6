// Package output renders capture events for the operator.
package output

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	"tlstap/internal/bpf"
	"tlstap/internal/timesync"
)

// CaptureHandler consumes decoded capture events from the event stream.
type CaptureHandler interface {
	HandleCapture(ev *bpf.CaptureEvent) error
	HandleLost(cpu int, count uint64) error
}

// TextFormatter writes one header line per event followed by a hexdump of
// the valid payload region. Safe for use from a single stream goroutine;
// the mutex guards against a second handler sharing the writer.
type TextFormatter struct {
	mu        sync.Mutex
	w         *bufio.Writer
	converter *timesync.Converter
	quiet     bool
}

// NewTextFormatter creates a formatter writing to w. With quiet set only
// header lines are emitted.
func NewTextFormatter(w io.Writer, converter *timesync.Converter, quiet bool) *TextFormatter {
	return &TextFormatter{
		w:         bufio.NewWriter(w),
		converter: converter,
		quiet:     quiet,
	}
}

// HandleCapture renders a single event. Only payload[0:captured] is dumped;
// the rest of the buffer is stale and never shown.
func (f *TextFormatter) HandleCapture(ev *bpf.CaptureEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	ts := f.converter.MonotonicToWallClock(ev.TimestampNs)
	note := ""
	if ev.Truncated() {
		note = fmt.Sprintf(" (truncated, %d requested)", ev.Requested)
	}

	if _, err := fmt.Fprintf(f.w, "%s %s pid=%d tid=%d len=%d%s\n",
		ts.Format("15:04:05.000000"), ev.CommString(), ev.Pid, ev.Tid, ev.Captured, note); err != nil {
		return err
	}

	if !f.quiet && ev.Captured > 0 {
		if _, err := f.w.WriteString(hex.Dump(ev.Data())); err != nil {
			return err
		}
	}

	return f.w.Flush()
}

// HandleLost reports kernel-side drops inline with the capture output so
// gaps are visible where they happened.
func (f *TextFormatter) HandleLost(cpu int, count uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := fmt.Fprintf(f.w, "*** lost %d events on cpu %d (consumer too slow)\n", count, cpu); err != nil {
		return err
	}
	return f.w.Flush()
}

// Multi fans each event out to several handlers; the first error wins.
type Multi struct {
	handlers []CaptureHandler
}

// NewMulti creates a fan-out handler.
func NewMulti(handlers ...CaptureHandler) *Multi {
	return &Multi{handlers: handlers}
}

// HandleCapture forwards the event to every handler in order.
func (m *Multi) HandleCapture(ev *bpf.CaptureEvent) error {
	for _, h := range m.handlers {
		if err := h.HandleCapture(ev); err != nil {
			return err
		}
	}
	return nil
}

// HandleLost forwards the lost-sample notice to every handler in order.
func (m *Multi) HandleLost(cpu int, count uint64) error {
	for _, h := range m.handlers {
		if err := h.HandleLost(cpu, count); err != nil {
			return err
		}
	}
	return nil
}
