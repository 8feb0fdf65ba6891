// Package service turns a compiled Config into running network listeners:
// binding sockets (TCP or Unix, with or without TLS), bounding the number
// of concurrently open connections per listener, and supervising graceful
// shutdown and hot reload across every Service and file server River runs.
package service

import (
	"crypto/tls"
	"fmt"
	"net"

	"github.com/river-proxy/river/internal/config"
)

// BindRaw opens the plain listening socket cfg describes, with no TLS
// wrapping. inherited, if non-nil, is used instead of creating a new
// socket — this is how a hot-reloaded River process picks up a listener
// handed off by its predecessor instead of re-binding (and briefly racing
// the old process for) the same address. Keeping the raw socket separate
// from any TLS wrapping matters because hot reload hands off file
// descriptors, and only the raw net.TCPListener/net.UnixListener exposes
// one.
func BindRaw(cfg config.ListenerConfig, inherited net.Listener) (net.Listener, error) {
	if inherited != nil {
		return inherited, nil
	}
	switch cfg.Kind {
	case config.ListenerTCP:
		l, err := net.Listen("tcp", cfg.Addr)
		if err != nil {
			return nil, fmt.Errorf("listener %q: %w", cfg.Addr, err)
		}
		return l, nil
	case config.ListenerUnix:
		l, err := net.Listen("unix", cfg.Addr)
		if err != nil {
			return nil, fmt.Errorf("listener %q: %w", cfg.Addr, err)
		}
		return l, nil
	default:
		return nil, fmt.Errorf("listener %q: unknown listener kind", cfg.Addr)
	}
}

// WrapTLS layers TLS termination over l when cfg carries a TLSConfig,
// negotiating h2 alongside http/1.1 when cfg.OfferH2 is set. Called
// separately from BindRaw so the raw, unwrapped socket stays available for
// fd handoff during hot reload.
func WrapTLS(l net.Listener, cfg config.ListenerConfig) (net.Listener, error) {
	if cfg.TLS == nil {
		return l, nil
	}
	cert, err := tls.LoadX509KeyPair(cfg.TLS.CertPath, cfg.TLS.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("listener %q: loading TLS certificate: %w", cfg.Addr, err)
	}
	nextProtos := []string{"http/1.1"}
	if cfg.OfferH2 {
		nextProtos = []string{"h2", "http/1.1"}
	}
	tlsConf := &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   nextProtos,
		MinVersion:   tls.VersionTLS12,
	}
	return tls.NewListener(l, tlsConf), nil
}
