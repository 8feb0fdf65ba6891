//go:build linux

package hotreload

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// sendFDs writes the listener manifest and every fd in entries across conn
// as a single sendmsg call carrying an SCM_RIGHTS control message, the
// standard way to pass open file descriptors between unrelated processes
// on Linux.
func sendFDs(conn *net.UnixConn, entries []fdEntry) error {
	manifest, err := encodeManifest(entries)
	if err != nil {
		return err
	}

	fds := make([]int, len(entries))
	for i, e := range entries {
		fds[i] = int(e.File.Fd())
	}
	rights := unix.UnixRights(fds...)

	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sendErr error
	ctrlErr := raw.Write(func(fd uintptr) bool {
		sendErr = unix.Sendmsg(int(fd), manifest, rights, nil, 0)
		return true
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return sendErr
}

// recvFDs is sendFDs's counterpart: it reads one sendmsg's worth of data
// and ancillary rights off conn and rebuilds the fdEntry list they encode.
func recvFDs(conn *net.UnixConn) ([]fdEntry, error) {
	data := make([]byte, 4096)
	oob := make([]byte, unix.CmsgSpace(64*4)) // room for up to 64 fds

	var n, oobn int
	raw, err := conn.SyscallConn()
	if err != nil {
		return nil, err
	}
	var recvErr error
	ctrlErr := raw.Read(func(fd uintptr) bool {
		n, oobn, _, _, recvErr = unix.Recvmsg(int(fd), data, oob, 0)
		return true
	})
	if ctrlErr != nil {
		return nil, ctrlErr
	}
	if recvErr != nil {
		return nil, fmt.Errorf("recvmsg: %w", recvErr)
	}

	manifest, err := decodeManifest(data[:n])
	if err != nil {
		return nil, fmt.Errorf("decoding listener manifest: %w", err)
	}

	cmsgs, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return nil, fmt.Errorf("parsing control message: %w", err)
	}
	var fds []int
	for _, cmsg := range cmsgs {
		parsed, err := unix.ParseUnixRights(&cmsg)
		if err != nil {
			continue
		}
		fds = append(fds, parsed...)
	}
	if len(fds) != len(manifest.Addrs) {
		return nil, fmt.Errorf("received %d fds but manifest names %d addresses", len(fds), len(manifest.Addrs))
	}

	entries := make([]fdEntry, len(fds))
	for i, fd := range fds {
		entries[i] = fdEntry{
			Addr: manifest.Addrs[i],
			File: os.NewFile(uintptr(fd), manifest.Addrs[i]),
		}
	}
	return entries, nil
}
