// Package pidfile implements the handshake between the adapters and the
// observer: each adapter writes its process id to a well-known file on start,
// and the observer reads it back to find the process to probe.
package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Write records the current process id at path.
func Write(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create pid dir %s", dir)
		}
	}
	data := []byte(strconv.Itoa(os.Getpid()) + "\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write pid file %s", path)
	}
	return nil
}

// Remove deletes the pid file if it still names this process.
func Remove(path string) error {
	pid, ok := Find(path)
	if !ok || pid != os.Getpid() {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "remove pid file %s", path)
	}
	return nil
}

// Find reads a process id from path. A missing file, empty content or anything
// that is not a positive integer reports false; it never fails.
func Find(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}
