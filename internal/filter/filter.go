// Package filter evaluates capture events against a user-supplied predicate.
package filter

import (
	"fmt"

	"tlstap/internal/bpf"
	"tlstap/internal/metrics"
	"tlstap/internal/output"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// exprEnv is the typed environment predicates compile against.
func exprEnv() map[string]interface{} {
	return map[string]interface{}{
		"pid":       uint32(0),
		"tid":       uint32(0),
		"comm":      "",
		"requested": uint64(0),
		"captured":  uint32(0),
		"text":      "",
	}
}

// Filter is a pre-compiled boolean predicate over capture events.
type Filter struct {
	program *vm.Program
}

// Compile builds a filter from an expr predicate such as
// `comm == "curl" && captured > 0`.
func Compile(src string) (*Filter, error) {
	program, err := expr.Compile(src, expr.Env(exprEnv()), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compiling filter %q: %w", src, err)
	}
	return &Filter{program: program}, nil
}

// Match reports whether the event passes the predicate. Evaluation errors
// fail open: a broken expression must not hide traffic.
func (f *Filter) Match(ev *bpf.CaptureEvent) bool {
	env := map[string]interface{}{
		"pid":       ev.Pid,
		"tid":       ev.Tid,
		"comm":      ev.CommString(),
		"requested": ev.Requested,
		"captured":  ev.Captured,
		"text":      string(ev.Data()),
	}

	out, err := expr.Run(f.program, env)
	if err != nil {
		return true
	}
	match, ok := out.(bool)
	if !ok {
		return true
	}
	return match
}

// Wrap returns a handler forwarding only matching events to next.
// Lost-sample notices always pass through.
func (f *Filter) Wrap(next output.CaptureHandler) output.CaptureHandler {
	return &filteredHandler{filter: f, next: next}
}

type filteredHandler struct {
	filter *Filter
	next   output.CaptureHandler
}

func (h *filteredHandler) HandleCapture(ev *bpf.CaptureEvent) error {
	if !h.filter.Match(ev) {
		metrics.FilteredEvents.Inc()
		return nil
	}
	return h.next.HandleCapture(ev)
}

func (h *filteredHandler) HandleLost(cpu int, count uint64) error {
	return h.next.HandleLost(cpu, count)
}
