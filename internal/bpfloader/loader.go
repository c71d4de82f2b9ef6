// Package bpfloader manages the lifecycle of the capture program and its
// uprobe attachment.
package bpfloader

import (
	"errors"
	"fmt"

	"tlstap/internal/bpf"

	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/perf"
)

// AttachPoint identifies where the uprobe lands: a binary plus either a
// symbol or a pre-resolved address, optionally restricted to one process.
// The loader treats it as opaque; symbol resolution happens elsewhere.
type AttachPoint struct {
	BinaryPath string
	Symbol     string
	Address    uint64 // used instead of Symbol when non-zero
	PID        int    // 0 traces every process using BinaryPath
}

// Loader owns the loaded BPF objects and the uprobe link.
type Loader struct {
	objs    bpf.TlsTapObjects
	sslLink link.Link
}

// New loads the capture program into the kernel. captureLimit bounds how
// many payload bytes the probe copies per event; it is clamped to
// bpf.MaxCapture and patched into the program before loading.
func New(captureLimit uint32) (*Loader, error) {
	spec, err := bpf.LoadTlsTap()
	if err != nil {
		return nil, fmt.Errorf("loading BPF spec: %w", err)
	}

	if captureLimit == 0 || captureLimit > bpf.MaxCapture {
		captureLimit = bpf.MaxCapture
	}
	if err := spec.RewriteConstants(map[string]interface{}{
		"capture_limit": captureLimit,
	}); err != nil {
		return nil, fmt.Errorf("patching capture limit: %w", err)
	}

	l := &Loader{}
	if err := spec.LoadAndAssign(&l.objs, nil); err != nil {
		return nil, fmt.Errorf("loading BPF objects: %w", err)
	}

	return l, nil
}

// Attach arms the uprobe at the attach point. On failure nothing stays
// attached; the caller still owns Close.
func (l *Loader) Attach(ap AttachPoint) error {
	ex, err := link.OpenExecutable(ap.BinaryPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", ap.BinaryPath, err)
	}

	opts := &link.UprobeOptions{PID: ap.PID}
	symbol := ap.Symbol
	if ap.Address != 0 {
		opts.Address = ap.Address
		symbol = ""
	}

	l.sslLink, err = ex.Uprobe(symbol, l.objs.UprobeSslWrite, opts)
	if err != nil {
		return fmt.Errorf("attaching uprobe to %s: %w", ap.BinaryPath, err)
	}

	return nil
}

// OpenPerfBuffer opens the per-CPU event channel. perCPUBytes is rounded up
// to a whole number of pages by the perf reader.
func (l *Loader) OpenPerfBuffer(perCPUBytes int) (*perf.Reader, error) {
	rd, err := perf.NewReader(l.objs.Events, perCPUBytes)
	if err != nil {
		return nil, fmt.Errorf("opening perf buffer: %w", err)
	}
	return rd, nil
}

// Close detaches the uprobe and unloads the objects. The link goes first so
// no new handler invocation can start against freed maps; invocations
// already past the link keep valid maps until objs.Close.
func (l *Loader) Close() error {
	var errs []error

	if l.sslLink != nil {
		if err := l.sslLink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing uprobe link: %w", err))
		}
	}

	if err := l.objs.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing BPF objects: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during cleanup: %w", errors.Join(errs...))
	}

	return nil
}
