// Package procmeta collects process metadata from the /proc filesystem.
package procmeta

import (
	"bytes"
	"fmt"
	"os"
	"strings"
)

// ProcessMetadata describes the traced process at attach time.
type ProcessMetadata struct {
	PID     int
	Comm    string
	Args    []string
	Cmdline string
}

// Collect reads comm and cmdline for a PID. A missing cmdline (kernel
// thread, permissions) degrades to comm only; a missing comm is an error
// since it means the PID is gone.
func Collect(pid int) (*ProcessMetadata, error) {
	comm, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
	if err != nil {
		return nil, fmt.Errorf("reading comm for pid %d: %w", pid, err)
	}

	meta := &ProcessMetadata{
		PID:  pid,
		Comm: strings.TrimSpace(string(comm)),
	}

	cmdline, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err == nil {
		meta.Args = parseCmdline(cmdline)
		meta.Cmdline = strings.Join(meta.Args, " ")
	}

	return meta, nil
}

// parseCmdline splits the NUL-separated /proc cmdline format.
func parseCmdline(raw []byte) []string {
	raw = bytes.TrimRight(raw, "\x00")
	if len(raw) == 0 {
		return nil
	}

	parts := bytes.Split(raw, []byte{0})
	args := make([]string, 0, len(parts))
	for _, p := range parts {
		args = append(args, string(p))
	}
	return args
}

// String renders a one-line description for the attach log.
func (m *ProcessMetadata) String() string {
	if m.Cmdline != "" {
		return fmt.Sprintf("%s (pid %d): %s", m.Comm, m.PID, m.Cmdline)
	}
	return fmt.Sprintf("%s (pid %d)", m.Comm, m.PID)
}
