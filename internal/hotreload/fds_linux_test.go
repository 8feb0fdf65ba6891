//go:build linux

package hotreload

import (
	"net"
	"os"
	"strconv"
	"testing"
)

func TestSendRecvFDs_RoundTrip(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l.Close()

	entries, err := filesFromListeners(map[string]net.Listener{"web": l})
	if err != nil {
		t.Fatalf("filesFromListeners: %v", err)
	}

	server, client, err := unixSocketPair()
	if err != nil {
		t.Fatalf("unixSocketPair: %v", err)
	}
	defer server.Close()
	defer client.Close()

	sendErr := make(chan error, 1)
	go func() { sendErr <- sendFDs(server, entries) }()

	received, err := recvFDs(client)
	if err != nil {
		t.Fatalf("recvFDs: %v", err)
	}
	if err := <-sendErr; err != nil {
		t.Fatalf("sendFDs: %v", err)
	}

	if len(received) != 1 {
		t.Fatalf("received: got %d entries, want 1", len(received))
	}
	if received[0].Addr != "web" {
		t.Fatalf("addr: got %q, want %q", received[0].Addr, "web")
	}

	rebuilt, err := listenersFromFiles(received)
	if err != nil {
		t.Fatalf("listenersFromFiles: %v", err)
	}
	rl, ok := rebuilt["web"]
	if !ok {
		t.Fatal("expected a rebuilt listener keyed \"web\"")
	}
	if rl.Addr().String() != l.Addr().String() {
		t.Fatalf("rebuilt addr: got %s, want %s", rl.Addr(), l.Addr())
	}
	rl.Close()
}

// unixSocketPair builds a connected pair of *net.UnixConn backed by real
// file descriptors (net.Pipe's in-memory conns won't do — SCM_RIGHTS needs
// an actual socket to ride along on) using a Linux abstract-namespace
// socket, so the test leaves nothing on disk to clean up.
func unixSocketPair() (server, client *net.UnixConn, err error) {
	addr := &net.UnixAddr{Name: "@river-hotreload-test-" + randSuffix(), Net: "unix"}
	l, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, nil, err
	}
	defer l.Close()

	acceptCh := make(chan *net.UnixConn, 1)
	acceptErr := make(chan error, 1)
	go func() {
		c, err := l.AcceptUnix()
		if err != nil {
			acceptErr <- err
			return
		}
		acceptCh <- c
	}()

	client, err = net.DialUnix("unix", nil, addr)
	if err != nil {
		return nil, nil, err
	}

	select {
	case server = <-acceptCh:
		return server, client, nil
	case err = <-acceptErr:
		return nil, nil, err
	}
}

func randSuffix() string {
	return strconv.Itoa(os.Getpid())
}
