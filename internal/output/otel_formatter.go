package output

import (
	"context"

	"tlstap/internal/bpf"
	"tlstap/internal/timesync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// previewBytes bounds the printable payload prefix attached to spans.
const previewBytes = 64

// OTELFormatter emits one span per capture event. Spans are timed from the
// probe's monotonic timestamp so they line up with other tracing output for
// the same host.
type OTELFormatter struct {
	tracer    trace.Tracer
	converter *timesync.Converter
}

// NewOTELFormatter creates a span-per-capture formatter.
func NewOTELFormatter(tracer trace.Tracer, converter *timesync.Converter) *OTELFormatter {
	return &OTELFormatter{
		tracer:    tracer,
		converter: converter,
	}
}

// HandleCapture emits a zero-duration span carrying the event metadata and
// a printable payload preview. The full payload never leaves the text path.
func (f *OTELFormatter) HandleCapture(ev *bpf.CaptureEvent) error {
	ts := f.converter.MonotonicToWallClock(ev.TimestampNs)

	_, span := f.tracer.Start(context.Background(), "ssl.write",
		trace.WithTimestamp(ts),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.Int64("process.pid", int64(ev.Pid)),
			attribute.Int64("thread.id", int64(ev.Tid)),
			attribute.String("process.executable.name", ev.CommString()),
			// int64 round-trips the probe's verbatim length, so a
			// negative SSL_write length shows up negative here.
			attribute.Int64("tls.write.requested_bytes", int64(ev.Requested)),
			attribute.Int64("tls.write.captured_bytes", int64(ev.Captured)),
			attribute.String("tls.write.preview", preview(ev.Data())),
		),
	)
	span.End(trace.WithTimestamp(ts))

	return nil
}

// HandleLost records kernel-side drops as their own spans so capture gaps
// are visible in the trace view.
func (f *OTELFormatter) HandleLost(cpu int, count uint64) error {
	_, span := f.tracer.Start(context.Background(), "ssl.write.lost",
		trace.WithAttributes(
			attribute.Int("cpu", cpu),
			attribute.Int64("lost_events", int64(count)),
		),
	)
	span.End()

	return nil
}

// preview returns a printable prefix of the payload; non-printable bytes
// become dots, same as the hexdump gutter.
func preview(data []byte) string {
	if len(data) > previewBytes {
		data = data[:previewBytes]
	}
	out := make([]byte, len(data))
	for i, c := range data {
		if c >= 0x20 && c < 0x7f {
			out[i] = c
		} else {
			out[i] = '.'
		}
	}
	return string(out)
}
