// Package eventstream drains capture records from the perf buffer and
// dispatches them to a handler.
package eventstream

import (
	"context"
	"errors"
	"log"

	"tlstap/internal/bpf"
	"tlstap/internal/metrics"
	"tlstap/internal/output"

	"github.com/cilium/ebpf/perf"
)

// RecordSource yields raw perf records. *perf.Reader satisfies it; tests
// substitute an in-memory source.
type RecordSource interface {
	Read() (perf.Record, error)
}

// Stream reads capture records from a record source and dispatches them to
// a handler. Per-CPU submission order is preserved end to end; records from
// different CPUs interleave by arrival.
type Stream struct {
	source  RecordSource
	handler output.CaptureHandler
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a Stream over the given source and handler.
func New(source RecordSource, handler output.CaptureHandler) *Stream {
	return &Stream{
		source:  source,
		handler: handler,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start begins reading records in a goroutine. It returns immediately and
// processes events in the background until the context is cancelled, Stop
// is called, or the source is closed.
func (s *Stream) Start(ctx context.Context) error {
	go s.processRecords(ctx)
	return nil
}

// Stop signals the processing goroutine to stop and waits for it to drain
// the record it may be handling.
func (s *Stream) Stop() error {
	close(s.stopCh)
	<-s.doneCh
	return nil
}

// processRecords is the main loop: read, account, decode, dispatch.
func (s *Stream) processRecords(ctx context.Context) {
	defer close(s.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
			record, err := s.source.Read()
			if err != nil {
				if errors.Is(err, perf.ErrClosed) {
					return
				}
				log.Printf("reading from perf buffer: %v", err)
				continue
			}

			// Kernel-side drops arrive as lost-sample counts attached
			// to the ring they happened on.
			if record.LostSamples > 0 {
				metrics.LostEvents.Add(float64(record.LostSamples))
				if err := s.handler.HandleLost(record.CPU, record.LostSamples); err != nil {
					log.Printf("handling lost samples: %v", err)
				}
			}

			if len(record.RawSample) == 0 {
				continue
			}

			ev, err := bpf.UnmarshalEvent(record.RawSample)
			if err != nil {
				metrics.DecodeErrors.Inc()
				log.Printf("parsing capture record: %v", err)
				continue
			}

			metrics.Events.Inc()
			metrics.CapturedBytes.Add(float64(ev.Captured))

			if err := s.handler.HandleCapture(ev); err != nil {
				log.Printf("handling capture: %v", err)
			}
		}
	}
}
