// Package metrics exposes capture pipeline counters over Prometheus.
//
// Drops are a normal condition under load, not an error: the only place they
// surface to the operator is here and in the lost-sample log lines.
package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Events counts capture events decoded from the perf buffer.
	Events = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tlstap_events_total",
		Help: "Capture events decoded from the perf buffer.",
	})

	// CapturedBytes counts plaintext bytes captured, post-clamp.
	CapturedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tlstap_captured_bytes_total",
		Help: "Plaintext bytes captured (after clamping to the capture limit).",
	})

	// LostEvents counts events the kernel dropped because the perf ring
	// for a CPU was full.
	LostEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tlstap_lost_events_total",
		Help: "Events dropped by the kernel because the perf buffer was full.",
	})

	// DecodeErrors counts perf records rejected as corrupt.
	DecodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tlstap_decode_errors_total",
		Help: "Perf records rejected as malformed or corrupt.",
	})

	// FilteredEvents counts events dropped by the user filter expression.
	FilteredEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tlstap_filtered_events_total",
		Help: "Events dropped by the --filter expression.",
	})
)

// Serve exposes /metrics on addr in a background goroutine. Listen errors
// are logged, not fatal: losing metrics must not stop the capture.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server: %v", err)
		}
	}()
}
