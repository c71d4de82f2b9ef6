// Package libssl locates the OpenSSL shared object to instrument.
package libssl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Locations checked when the target process does not map libssl or no PID
// was given. Covers the common distro multiarch layouts.
var fallbackPaths = []string{
	"/usr/lib/x86_64-linux-gnu/libssl.so.3",
	"/usr/lib/x86_64-linux-gnu/libssl.so.1.1",
	"/usr/lib/aarch64-linux-gnu/libssl.so.3",
	"/usr/lib/aarch64-linux-gnu/libssl.so.1.1",
	"/usr/lib64/libssl.so.3",
	"/usr/lib64/libssl.so.1.1",
	"/usr/local/lib/libssl.so",
}

// Locate returns the path of the libssl shared object to attach to.
// With a PID it prefers the copy the process actually has mapped, read from
// /proc/<pid>/maps; otherwise it scans well-known locations.
func Locate(pid int) (string, error) {
	if pid > 0 {
		f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
		if err == nil {
			path, ok := findInMaps(f)
			_ = f.Close() //nolint:errcheck // Read-only file
			if ok {
				return path, nil
			}
		}
	}

	for _, path := range fallbackPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("libssl not found (pid %d, %d fallback locations checked)", pid, len(fallbackPaths))
}

// findInMaps scans a /proc/<pid>/maps stream for the first mapped libssl
// object and returns its pathname.
func findInMaps(r io.Reader) (string, bool) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		// address perms offset dev inode pathname
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 {
			continue
		}
		if strings.Contains(fields[5], "libssl.so") {
			return fields[5], true
		}
	}
	return "", false
}
