package service

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/river-proxy/river/internal/config"
	"github.com/river-proxy/river/internal/engine"
	"github.com/river-proxy/river/internal/fileserver"
	"github.com/river-proxy/river/internal/metrics"
)

// Supervisor owns every running Service (and file server) for one River
// process and the metrics registry they share. It is built fresh from a
// config.Config each time River starts or hot-reloads.
type Supervisor struct {
	Metrics *metrics.Registry

	services  []*Service
	listeners map[string]net.Listener
}

// Build binds listeners for every configured Service and FileServer and
// wires each to its handler. inherited maps a listener address to a socket
// handed off by a predecessor process; when present it is reused instead of
// a fresh bind, so hot reload never drops a connection racing for the port.
func Build(cfg *config.Config, inherited map[string]net.Listener) (*Supervisor, error) {
	sup := &Supervisor{Metrics: metrics.NewRegistry(), listeners: make(map[string]net.Listener)}

	for _, svcCfg := range cfg.Services {
		listeners, err := sup.bindAll(svcCfg.Listeners, inherited)
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", svcCfg.Name, err)
		}
		handler := engine.NewService(svcCfg, sup.Metrics)
		sup.services = append(sup.services, New(svcCfg.Name, listeners, handler, cfg.ThreadsPerService))
	}

	for _, fsCfg := range cfg.FileServers {
		listeners, err := sup.bindAll(fsCfg.Listeners, inherited)
		if err != nil {
			return nil, fmt.Errorf("file server %s: %w", fsCfg.Name, err)
		}
		handler := fileserver.New(fsCfg.BasePath)
		sup.services = append(sup.services, New(fsCfg.Name, listeners, handler, cfg.ThreadsPerService))
	}

	return sup, nil
}

// bindAll binds cfgs, keyed by their configured address so a later hot
// reload can hand the same raw sockets to Listeners() under the addresses
// the next config generation will look them up by. TLS, when configured, is
// layered on top of the raw socket for serving but never stored — the raw
// socket is what gets handed off.
func (s *Supervisor) bindAll(cfgs []config.ListenerConfig, inherited map[string]net.Listener) ([]net.Listener, error) {
	listeners := make([]net.Listener, 0, len(cfgs))
	for _, lc := range cfgs {
		raw, err := BindRaw(lc, inherited[lc.Addr])
		if err != nil {
			for _, opened := range listeners {
				_ = opened.Close()
			}
			return nil, err
		}
		s.listeners[lc.Addr] = raw

		serving, err := WrapTLS(raw, lc)
		if err != nil {
			for _, opened := range listeners {
				_ = opened.Close()
			}
			return nil, err
		}
		listeners = append(listeners, serving)
	}
	return listeners, nil
}

// Serve starts every Service's listeners. Errors from any listener are
// funneled onto errs; Serve itself returns immediately, having only started
// the goroutines.
func (s *Supervisor) Serve(errs chan<- error) {
	for _, svc := range s.services {
		svc.Serve(errs)
	}
}

// Shutdown gracefully stops every Service within the given timeout.
func (s *Supervisor) Shutdown(ctx context.Context) {
	for _, svc := range s.services {
		if err := svc.Shutdown(ctx); err != nil {
			slog.Warn("service shutdown did not complete cleanly", "service", svc.Name, "error", err)
		}
	}
}

// Listeners exposes every bound net.Listener keyed by its configured
// address, for the hot-reload controller to pass on to a replacement
// process.
func (s *Supervisor) Listeners() map[string]net.Listener {
	return s.listeners
}

// DrainTimeout is how long Shutdown waits for in-flight requests to
// complete before giving up, matching the teacher's graceful-shutdown
// window.
const DrainTimeout = 5 * time.Second
