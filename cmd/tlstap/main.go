// tlstap captures TLS plaintext at the SSL_write boundary with an eBPF
// uprobe, before the library encrypts it.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tlstap/internal/bpfloader"
	"tlstap/internal/config"
	"tlstap/internal/eventstream"
	"tlstap/internal/filter"
	"tlstap/internal/libssl"
	"tlstap/internal/metrics"
	"tlstap/internal/otel"
	"tlstap/internal/output"
	"tlstap/internal/procmeta"
	"tlstap/internal/timesync"

	"github.com/cilium/ebpf/perf"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Version information injected at build time.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func newRootCommand() *cobra.Command {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	cmd := &cobra.Command{
		Use:   "tlstap",
		Short: "Capture TLS plaintext at the SSL_write boundary",
		Long: `tlstap attaches a uprobe to SSL_write in the target's libssl and prints a
bounded snapshot of every plaintext buffer handed to it, before encryption.
The traced process is never blocked or altered; under load the kernel drops
events rather than slowing the target.`,
		Version:      fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(cfg)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&cfg.PID, "pid", cfg.PID, "process to trace (0 = every process using the library)")
	flags.StringVar(&cfg.LibPath, "libssl", cfg.LibPath, "path to libssl (default: discovered from /proc/<pid>/maps)")
	flags.StringVar(&cfg.Symbol, "symbol", cfg.Symbol, "function to instrument")
	flags.Uint64Var(&cfg.Address, "offset", cfg.Address, "attach at this resolved offset instead of a symbol")
	flags.Uint32Var(&cfg.CaptureBytes, "capture-bytes", cfg.CaptureBytes, "payload bytes captured per call (max 256)")
	flags.IntVar(&cfg.PerfBufferKB, "perf-buffer-kb", cfg.PerfBufferKB, "per-CPU perf buffer size")
	flags.StringVar(&cfg.Filter, "filter", cfg.Filter, `drop events not matching this expression, e.g. 'comm == "curl"'`)
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "expose Prometheus metrics on this address")
	flags.BoolVar(&cfg.OTELEnabled, "otel", cfg.OTELEnabled, "emit one OTLP span per capture")
	flags.BoolVar(&cfg.Quiet, "quiet", cfg.Quiet, "header lines only, no hexdump")

	return cmd
}

// setupOTEL initializes the OTEL provider and returns a tracer plus cleanup.
func setupOTEL(meta *procmeta.ProcessMetadata) (trace.Tracer, func(), error) {
	otelCfg, err := config.ParseOTELConfig()
	if err != nil {
		return nil, nil, err
	}

	var attrs []attribute.KeyValue
	if meta != nil {
		attrs = append(attrs,
			attribute.Int("target.pid", meta.PID),
			attribute.String("target.executable.name", meta.Comm),
		)
		if meta.Cmdline != "" {
			attrs = append(attrs, attribute.String("target.command_line", meta.Cmdline))
		}
	}

	tp, err := otel.InitProvider(otelCfg, attrs...)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing OTEL provider: %w", err)
	}

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otel.ShutdownProvider(tp, shutdownCtx); err != nil {
			log.Printf("Error shutting down OTEL provider: %v", err)
		}
	}

	return tp.Tracer("tlstap"), cleanup, nil
}

// setupBPF resolves the library, loads the program, attaches the uprobe,
// and opens the perf buffer. Any failure prevents a half-attached state.
func setupBPF(cfg *config.Config) (*perf.Reader, func(), error) {
	libPath := cfg.LibPath
	if libPath == "" {
		var err error
		libPath, err = libssl.Locate(cfg.PID)
		if err != nil {
			return nil, nil, err
		}
	}

	loader, err := bpfloader.New(cfg.CaptureBytes)
	if err != nil {
		return nil, nil, err
	}

	ap := bpfloader.AttachPoint{
		BinaryPath: libPath,
		Symbol:     cfg.Symbol,
		Address:    cfg.Address,
		PID:        cfg.PID,
	}
	if err := loader.Attach(ap); err != nil {
		if closeErr := loader.Close(); closeErr != nil {
			log.Printf("Error closing loader after attach failure: %v", closeErr)
		}
		return nil, nil, err
	}

	rd, err := loader.OpenPerfBuffer(cfg.PerfBufferKB * 1024)
	if err != nil {
		if closeErr := loader.Close(); closeErr != nil {
			log.Printf("Error closing loader after perf buffer failure: %v", closeErr)
		}
		return nil, nil, err
	}

	where := cfg.Symbol
	if cfg.Address != 0 {
		where = fmt.Sprintf("0x%x", cfg.Address)
	}
	log.Printf("Attached to %s at %s (pid %d, capture limit %d bytes)",
		libPath, where, cfg.PID, cfg.CaptureBytes)

	// Reader first so the stream goroutine unblocks, link and objects
	// after, so no in-flight handler sees torn-down maps. Idempotent:
	// run() triggers it on signal and again on the deferred path.
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			if err := rd.Close(); err != nil {
				log.Printf("Error closing perf reader: %v", err)
			}
			if err := loader.Close(); err != nil {
				log.Printf("Error closing loader: %v", err)
			}
		})
	}

	return rd, cleanup, nil
}

func run(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	log.Printf("Starting tlstap %s (commit: %s)", version, commit)

	var meta *procmeta.ProcessMetadata
	if cfg.PID > 0 {
		m, err := procmeta.Collect(cfg.PID)
		if err != nil {
			log.Printf("Warning: reading target metadata: %v", err)
		} else {
			meta = m
			log.Printf("Target: %s", meta)
		}
	}

	converter, err := timesync.NewConverter()
	if err != nil {
		return fmt.Errorf("creating time converter: %w", err)
	}

	handlers := []output.CaptureHandler{
		output.NewTextFormatter(os.Stdout, converter, cfg.Quiet),
	}

	if cfg.OTELEnabled {
		tracer, cleanupOTEL, err := setupOTEL(meta)
		if err != nil {
			return err
		}
		defer cleanupOTEL()
		handlers = append(handlers, output.NewOTELFormatter(tracer, converter))
	}

	var handler output.CaptureHandler = output.NewMulti(handlers...)
	if cfg.Filter != "" {
		f, err := filter.Compile(cfg.Filter)
		if err != nil {
			return err
		}
		handler = f.Wrap(handler)
	}

	if cfg.MetricsAddr != "" {
		metrics.Serve(cfg.MetricsAddr)
		log.Printf("Prometheus metrics on http://%s/metrics", cfg.MetricsAddr)
	}

	rd, cleanupBPF, err := setupBPF(cfg)
	if err != nil {
		return err
	}
	defer cleanupBPF()

	stream := eventstream.New(rd, handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := stream.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Received signal, detaching...")

	// Closing the perf reader unblocks the stream goroutine; Stop waits
	// for it to finish the record in flight.
	cleanupBPF()

	return stream.Stop()
}
