// Package hotreload implements River's zero-downtime restart. An operator
// starts a replacement process with `--upgrade` and the same upgrade-socket
// and config as the process it will replace; that new process listens on
// the upgrade socket and waits. On SIGQUIT, the running process dials that
// socket, hands over its bound listener file descriptors, and once the
// replacement acknowledges receipt, drains in-flight requests and exits.
// The replacement starts serving on the inherited listeners as soon as it
// has acknowledged them, so the listening port is never closed.
package hotreload

import (
	"fmt"
	"os"
	"strconv"
)

// WritePIDFile atomically writes the current process's PID to path, so an
// operator's `kill -QUIT $(cat pidfile)` always targets a live process and
// never a half-written file.
func WritePIDFile(path string) error {
	if path == "" {
		return nil
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("writing pidfile: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("installing pidfile: %w", err)
	}
	return nil
}

// RemovePIDFile removes path if it names the calling process's own PID,
// so an outgoing process during hot reload doesn't delete the pidfile its
// replacement just wrote.
func RemovePIDFile(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil || pid != os.Getpid() {
		return nil
	}
	return os.Remove(path)
}
