package service

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// Service binds one or more Listeners to a single http.Handler and runs an
// *http.Server per Listener. It is the runtime counterpart of a
// config.ServiceConfig or config.FileServerConfig: by the time a Service
// exists, path control, load balancing, rate limiting and connectors (or,
// for a file server, the base path) are already baked into handler.
type Service struct {
	Name string

	listeners []net.Listener
	servers   []*http.Server
}

// New builds a Service that serves handler on each of the given,
// already-bound listeners, each wrapped by LimitListener so it holds at
// most maxConnsPerListener open connections. Binding (and reuse of
// listeners handed off during hot reload) happens in Supervisor.bindAll.
func New(name string, listeners []net.Listener, handler http.Handler, maxConnsPerListener int) *Service {
	s := &Service{Name: name}
	for _, l := range listeners {
		bounded := LimitListener(l, maxConnsPerListener)
		s.listeners = append(s.listeners, bounded)
		s.servers = append(s.servers, &http.Server{
			Handler:           handler,
			ReadTimeout:       30 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
			ErrorLog:          slogErrorLog(name),
		})
	}
	return s
}

// Serve runs every one of the Service's listeners until Shutdown is called
// or a listener fails. Errors from individual listeners are reported on
// errs; Serve itself returns as soon as every listener's goroutine has
// been started.
func (s *Service) Serve(errs chan<- error) {
	for i := range s.servers {
		go func(l net.Listener, srv *http.Server) {
			slog.Info("service listening", "service", s.Name, "addr", l.Addr().String())
			if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
				errs <- fmt.Errorf("service %s on %s: %w", s.Name, l.Addr(), err)
			}
		}(s.listeners[i], s.servers[i])
	}
}

// Shutdown gracefully stops every Listener's http.Server.
func (s *Service) Shutdown(ctx context.Context) error {
	var firstErr error
	for _, srv := range s.servers {
		if err := srv.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Listeners returns the connection-limited listeners this Service serves
// on. The hot-reload controller takes the raw listeners from
// Supervisor.Listeners instead.
func (s *Service) Listeners() []net.Listener {
	return s.listeners
}

// slogErrorLog adapts net/http.Server's stdlib *log.Logger requirement onto
// slog, so a listener's low-level connection errors (bad TLS handshakes,
// malformed requests) end up in River's structured log stream instead of a
// separate unstructured one.
func slogErrorLog(service string) *log.Logger {
	return log.New(slogWriter{service: service}, "", 0)
}

type slogWriter struct{ service string }

func (w slogWriter) Write(p []byte) (int, error) {
	slog.Warn(strings.TrimRight(string(p), "\n"), "service", w.service, "source", "net/http")
	return len(p), nil
}
