// Package engine wires a Service's compiled path-control chain, rate
// limiter, and load balancer into a runnable net/http.Handler. Upstream
// forwarding is a small hand-rolled reverse proxy in the style of a
// minimal HTTP/1.1 forwarder — no httputil.ReverseProxy — extended to pick
// its upstream per-request from a lb.Balancer instead of talking to a
// single fixed URL.
package engine

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/river-proxy/river/internal/config"
	"github.com/river-proxy/river/internal/forward"
	"github.com/river-proxy/river/internal/lb"
)

// forwarder holds the transport pool River dials upstreams with. An
// h1-only connector never attempts ALPN negotiation to h2; anything else
// does.
type forwarder struct {
	pool *forward.Pool
}

func newForwarder() *forwarder {
	return &forwarder{pool: forward.NewDefaultPool()}
}

func (f *forwarder) transportFor(proto config.UpstreamProto) *http.Transport {
	if proto == config.ProtoH1Only {
		return f.pool.H1Only()
	}
	return f.pool.H2Capable()
}

// forward sends r to c and copies the upstream response into w, running
// onResponse against the upstream response headers before they are
// written. It never consults the load balancer or rate limiter itself;
// callers are expected to have already picked c and admitted the request.
func (f *forwarder) forward(w http.ResponseWriter, r *http.Request, c *lb.Connector, onResponse func(http.Header)) {
	scheme := "http"
	host := c.Addr
	if c.TLSSNI != "" {
		scheme = "https"
		host = c.TLSSNI
		if _, _, err := net.SplitHostPort(host); err != nil {
			// tls-sni is a bare hostname; keep the dial address's port.
			_, port, splitErr := net.SplitHostPort(c.Addr)
			if splitErr == nil {
				host = net.JoinHostPort(host, port)
			}
		}
	}

	up := &url.URL{
		Scheme:   scheme,
		Host:     c.Addr,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
	}

	reqUp, err := http.NewRequestWithContext(r.Context(), r.Method, up.String(), r.Body)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	reqUp.Header = f.buildUpstreamHeaders(r, c)
	reqUp.Host = host

	transport := f.transportFor(c.Proto)
	resUp, err := transport.RoundTrip(reqUp)
	if err != nil {
		slog.Warn("engine: upstream request failed", "upstream", c.Addr, "error", err)
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	defer resUp.Body.Close()

	f.writeUpstreamResponse(w, resUp, c, onResponse)
}

// buildUpstreamHeaders clones r's headers for forwarding to c, stripping
// hop-by-hop fields and setting the X-Forwarded-* and Via headers a
// downstream client's proxy chain expects to see. Threading c through here
// (rather than the teacher's fixed single-upstream version) is what lets
// Via record which upstream protocol variant actually carried the request.
func (f *forwarder) buildUpstreamHeaders(r *http.Request, c *lb.Connector) http.Header {
	hdr := cloneHeader(r.Header)
	stripHopByHop(hdr)
	addForwardedFor(hdr, r.RemoteAddr)
	setForwardedProto(hdr, r)
	setForwardedHost(hdr, r.Host)
	addVia(hdr, c.Proto)
	return hdr
}

// writeUpstreamResponse strips hop-by-hop headers from resUp, records Via
// for the connector that produced it, runs the caller's upstream-response
// path-control stage, then copies status and body to w.
func (f *forwarder) writeUpstreamResponse(w http.ResponseWriter, resUp *http.Response, c *lb.Connector, onResponse func(http.Header)) {
	stripHopByHop(resUp.Header)
	addVia(resUp.Header, c.Proto)
	if onResponse != nil {
		onResponse(resUp.Header)
	}
	copyHeaders(w.Header(), resUp.Header)
	w.WriteHeader(resUp.StatusCode)
	_, _ = io.Copy(w, resUp.Body)
}

func cloneHeader(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, vv := range h {
		cc := make([]string, len(vv))
		copy(cc, vv)
		out[k] = cc
	}
	return out
}

func copyHeaders(dst, src http.Header) {
	for k, vv := range src {
		dst.Del(k)
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

var hopByHop = map[string]struct{}{
	"Connection":          {},
	"Proxy-Connection":    {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"TE":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
	"HTTP2-Settings":      {},
}

func stripHopByHop(h http.Header) {
	for _, f := range h.Values("Connection") {
		for _, k := range strings.Split(f, ",") {
			k = textproto.TrimString(k)
			if k != "" {
				h.Del(k)
			}
		}
	}
	for k := range hopByHop {
		h.Del(k)
	}
}

func addForwardedFor(h http.Header, remoteAddr string) {
	ip, _, err := net.SplitHostPort(remoteAddr)
	if err != nil || ip == "" {
		return
	}
	const key = "X-Forwarded-For"
	if prior := h.Get(key); prior != "" {
		h.Set(key, prior+", "+ip)
	} else {
		h.Set(key, ip)
	}
}

func setForwardedHost(h http.Header, host string) {
	h.Set("X-Forwarded-Host", host)
}

func setForwardedProto(h http.Header, r *http.Request) {
	if r.TLS != nil {
		h.Set("X-Forwarded-Proto", "https")
	} else {
		h.Set("X-Forwarded-Proto", "http")
	}
}

// addVia appends a Via entry (RFC 7230 §5.7.1) naming the protocol variant
// the chosen connector was dialed with, so a chain of proxies in front of
// or behind River can tell which hop handled a request over h1 vs h2.
func addVia(h http.Header, proto config.UpstreamProto) {
	protocolTag := "1.1"
	if proto != config.ProtoH1Only {
		protocolTag = "1.1/2"
	}
	entry := protocolTag + " river"
	if prior := h.Get("Via"); prior != "" {
		h.Set("Via", prior+", "+entry)
	} else {
		h.Set("Via", entry)
	}
}
