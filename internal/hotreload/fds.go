package hotreload

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
)

// listenerManifest is the metadata carried alongside the file descriptors
// themselves: which configured address each fd (in the same order) backs,
// so the receiving process can rebuild its address-keyed listener map
// without guessing from the raw socket.
type listenerManifest struct {
	Addrs []string `json:"addrs"`
}

// fdEntry pairs a configured listener address with the *os.File extracted
// from its socket, ready to be sent over SCM_RIGHTS or rebuilt with
// net.FileListener on the receiving end.
type fdEntry struct {
	Addr string
	File *os.File
}

// filesFromListeners extracts a fresh *os.File for each net.Listener so
// its underlying fd can travel over SCM_RIGHTS. The returned files are
// independent duplicates: closing them doesn't affect the original
// listeners, which is what lets the outgoing process keep serving
// connections while the handoff is in flight.
func filesFromListeners(listeners map[string]net.Listener) ([]fdEntry, error) {
	entries := make([]fdEntry, 0, len(listeners))
	for addr, l := range listeners {
		type filer interface {
			File() (*os.File, error)
		}
		f, ok := l.(filer)
		if !ok {
			return nil, fmt.Errorf("listener %s: %T does not support fd extraction", addr, l)
		}
		file, err := f.File()
		if err != nil {
			return nil, fmt.Errorf("listener %s: %w", addr, err)
		}
		entries = append(entries, fdEntry{Addr: addr, File: file})
	}
	return entries, nil
}

// listenersFromFiles rebuilds a net.Listener for each received *os.File,
// keyed by the address the manifest recorded for it.
func listenersFromFiles(entries []fdEntry) (map[string]net.Listener, error) {
	out := make(map[string]net.Listener, len(entries))
	for _, e := range entries {
		l, err := net.FileListener(e.File)
		if err != nil {
			return nil, fmt.Errorf("rebuilding listener for %s: %w", e.Addr, err)
		}
		_ = e.File.Close() // net.FileListener dup'd the fd; our copy is no longer needed
		out[e.Addr] = l
	}
	return out, nil
}

func encodeManifest(entries []fdEntry) ([]byte, error) {
	m := listenerManifest{Addrs: make([]string, len(entries))}
	for i, e := range entries {
		m.Addrs[i] = e.Addr
	}
	return json.Marshal(m)
}

func decodeManifest(data []byte) (listenerManifest, error) {
	var m listenerManifest
	err := json.Unmarshal(data, &m)
	return m, err
}
