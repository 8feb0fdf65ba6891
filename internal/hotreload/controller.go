package hotreload

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/river-proxy/river/internal/service"
)

// HandoffTimeout bounds both halves of the hot-reload handshake: how long
// the receiver waits to accept a connection from an outgoing process, and
// how long the outgoing process waits for the receiver's acknowledgment
// once it has sent its listeners.
const HandoffTimeout = 15 * time.Second

// ack is the single byte the receiver sends back once it has successfully
// rebuilt every inherited listener, telling the sender it is safe to stop
// accepting new connections and start draining.
const ack = 0x06

// Controller drives the outgoing half of River's hot-reload protocol: on
// SIGQUIT it hands its listeners to an already-running `--upgrade`
// receiver process over UpgradeSocket. UpgradeSocket and PIDFile must name
// the same paths on both processes.
type Controller struct {
	UpgradeSocket string
	PIDFile       string
}

// ReceiveListeners implements the `--upgrade` side of a hot reload. It
// listens on upgradeSocket, waits for exactly one connection from an
// outgoing River process, receives that process's listener file
// descriptors over it, and acknowledges receipt before returning. The
// caller starts serving on the returned listeners immediately.
func ReceiveListeners(ctx context.Context, upgradeSocket string) (map[string]net.Listener, error) {
	if upgradeSocket == "" {
		return nil, fmt.Errorf("--upgrade requires an upgrade socket path")
	}
	_ = os.Remove(upgradeSocket)
	addr, err := net.ResolveUnixAddr("unix", upgradeSocket)
	if err != nil {
		return nil, fmt.Errorf("resolving upgrade socket: %w", err)
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on upgrade socket: %w", err)
	}
	defer ln.Close()
	defer os.Remove(upgradeSocket)

	acceptCtx, cancel := context.WithTimeout(ctx, HandoffTimeout)
	defer cancel()
	if dl, ok := acceptCtx.Deadline(); ok {
		_ = ln.SetDeadline(dl)
	}
	slog.Info("hot reload: waiting to receive listeners", "socket", upgradeSocket)
	conn, err := ln.AcceptUnix()
	if err != nil {
		return nil, fmt.Errorf("waiting for outgoing process to connect: %w", err)
	}
	defer conn.Close()

	entries, err := recvFDs(conn)
	if err != nil {
		return nil, fmt.Errorf("receiving listeners: %w", err)
	}
	listeners, err := listenersFromFiles(entries)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write([]byte{ack}); err != nil {
		return nil, fmt.Errorf("acknowledging listener receipt: %w", err)
	}
	slog.Info("hot reload: listeners received", "count", len(listeners))
	return listeners, nil
}

// Reload performs a zero-downtime restart: it dials the upgrade socket an
// operator-started `--upgrade` process is already listening on, sends it
// every listener sup owns, and waits for that process's acknowledgment
// before returning. The caller is expected to stop accepting new
// connections, drain in-flight requests, and exit once Reload returns
// successfully; the receiving process begins serving on the handed-off
// listeners as soon as it has acknowledged them.
func (c *Controller) Reload(ctx context.Context, sup *service.Supervisor) error {
	if c.UpgradeSocket == "" {
		return fmt.Errorf("hot reload requires system.upgrade-socket to be configured")
	}

	dialCtx, cancel := context.WithTimeout(ctx, HandoffTimeout)
	defer cancel()
	var d net.Dialer
	rawConn, err := d.DialContext(dialCtx, "unix", c.UpgradeSocket)
	if err != nil {
		return fmt.Errorf("dialing upgrade receiver at %s: %w", c.UpgradeSocket, err)
	}
	conn, ok := rawConn.(*net.UnixConn)
	if !ok {
		rawConn.Close()
		return fmt.Errorf("upgrade socket %s did not yield a unix connection", c.UpgradeSocket)
	}
	defer conn.Close()

	entries, err := filesFromListeners(sup.Listeners())
	if err != nil {
		return fmt.Errorf("preparing listeners for handoff: %w", err)
	}
	if err := sendFDs(conn, entries); err != nil {
		return fmt.Errorf("sending listeners to upgrade receiver: %w", err)
	}
	slog.Info("hot reload: listeners sent to receiver", "count", len(entries))

	if dl, ok := dialCtx.Deadline(); ok {
		_ = conn.SetReadDeadline(dl)
	}
	reply := make([]byte, 1)
	if _, err := conn.Read(reply); err != nil {
		return fmt.Errorf("waiting for receiver's acknowledgment: %w", err)
	}
	if reply[0] != ack {
		return fmt.Errorf("receiver sent unexpected acknowledgment byte %#x", reply[0])
	}
	slog.Info("hot reload: handoff acknowledged, draining")
	return nil
}
