//go:build !linux

package hotreload

import (
	"fmt"
	"net"
	"runtime"
)

// Hot reload's fd handoff relies on SCM_RIGHTS semantics only implemented
// here for Linux. Everywhere else it fails fast rather than silently
// falling back to a full restart, so an operator relying on zero-downtime
// reload finds out at reload time, not by noticing dropped connections.

func sendFDs(conn *net.UnixConn, entries []fdEntry) error {
	return fmt.Errorf("hot reload fd handoff is not supported on %s", runtime.GOOS)
}

func recvFDs(conn *net.UnixConn) ([]fdEntry, error) {
	return nil, fmt.Errorf("hot reload fd handoff is not supported on %s", runtime.GOOS)
}
