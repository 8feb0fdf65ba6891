package engine

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/river-proxy/river/internal/config"
	"github.com/river-proxy/river/internal/lb"
	"github.com/river-proxy/river/internal/metrics"
	"github.com/river-proxy/river/internal/pathcontrol"
	"github.com/river-proxy/river/internal/ratelimit"
)

// Service is a fully built, runnable HTTP proxying service: its
// path-control chain, load balancer, rate limiter, and the forwarder used
// to reach its connectors. It implements http.Handler directly so it can
// be handed straight to an http.Server.
type Service struct {
	Name string

	chain    *pathcontrol.Chain
	balancer lb.Balancer
	selector lb.SelectorFunc
	limiter  *ratelimit.Limiter
	fwd      *forwarder

	metrics *metrics.Registry
}

// NewService compiles a config.ServiceConfig into a runnable Service.
func NewService(cfg config.ServiceConfig, reg *metrics.Registry) *Service {
	bal, sel := lb.Build(cfg.UpstreamOpts, cfg.Connectors)
	return &Service{
		Name:     cfg.Name,
		chain:    pathcontrol.Build(cfg.PathControl),
		balancer: bal,
		selector: sel,
		limiter:  ratelimit.Build(cfg.RateLimiting),
		fwd:      newForwarder(),
		metrics:  reg,
	}
}

var _ http.Handler = (*Service)(nil)

func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := requestID(r)
	w.Header().Set(requestIDHeader, reqID)
	r.Header.Set(requestIDHeader, reqID)
	lw := &statusCapturingWriter{ResponseWriter: w, status: http.StatusOK}

	log := slog.With("service", s.Name, "request_id", reqID, "method", r.Method, "path", r.URL.Path)

	defer func() {
		duration := time.Since(start)
		if s.metrics != nil {
			s.metrics.RequestsTotal.WithLabelValues(s.Name, r.Method, strconv.Itoa(lw.status)).Inc()
		}
		log.Info("request completed", "status", lw.status, "duration_ms", duration.Milliseconds())
	}()

	if s.chain.RunRequestFilters(remoteAddr(r.RemoteAddr)) {
		if s.metrics != nil {
			s.metrics.PathControlHits.WithLabelValues(s.Name, "request-filters").Inc()
		}
		http.Error(lw, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !s.limiter.Admit(r.Context(), r) {
		if s.metrics != nil {
			s.metrics.RateLimitDenied.WithLabelValues(s.Name).Inc()
		}
		http.Error(lw, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		return
	}

	key := s.selector(r)
	connector, err := s.balancer.Pick(key)
	if err != nil {
		log.Warn("no upstream available", "error", err)
		http.Error(lw, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	s.chain.RunUpstreamRequestFilters(r.Header)

	upstreamStart := time.Now()
	s.fwd.forward(lw, r, connector, s.chain.RunUpstreamResponseFilters)
	if s.metrics != nil {
		s.metrics.UpstreamLatency.WithLabelValues(s.Name).Observe(time.Since(upstreamStart).Seconds())
	}
}

// remoteAddr adapts the string net/http gives us for a request's peer
// address into a net.Addr, since pathcontrol's request filters are written
// against net.Addr.
type remoteAddr string

func (a remoteAddr) Network() string { return "tcp" }
func (a remoteAddr) String() string  { return string(a) }

// statusCapturingWriter records the status code an upstream response was
// written with, so the access-log/metrics deferral above has something to
// report even though http.ResponseWriter doesn't expose it directly.
type statusCapturingWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusCapturingWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusCapturingWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}
