// Package forward holds the pooled http.RoundTrippers River dials
// connectors with, keyed by the upstream protocol preference a connector
// was configured with rather than by an open-ended string name: River only
// ever needs an h1-only transport and an h2-capable one, so the registry
// the pool is grounded on is narrowed down to exactly that.
package forward

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// Options tunes the pooled transports' dialing and connection-reuse
// behavior.
type Options struct {
	DialTimeout   time.Duration
	DialKeepAlive time.Duration

	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	MaxConnsPerHost     int

	TLSHandshakeTimeout   time.Duration
	ExpectContinueTimeout time.Duration
	ResponseHeaderTimeout time.Duration

	InsecureSkipVerify bool
}

// DefaultOptions mirrors battle-tested reverse-proxy transport settings.
func DefaultOptions() Options {
	return Options{
		DialTimeout:           5 * time.Second,
		DialKeepAlive:         60 * time.Second,
		MaxIdleConns:          200,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		MaxConnsPerHost:       0,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// Pool holds the two transports River ever dials a connector with: one that
// never attempts an h2 upgrade, and one that will negotiate h2 over TLS
// when the peer offers it.
type Pool struct {
	h1        *http.Transport
	h2capable *http.Transport
	opts      Options
}

// NewPool builds a Pool from opts.
func NewPool(opts Options) *Pool {
	dialer := &net.Dialer{Timeout: opts.DialTimeout, KeepAlive: opts.DialKeepAlive}
	build := func(nextProtos []string, forceH2 bool) *http.Transport {
		tr := &http.Transport{
			Proxy:                 nil,
			DialContext:           dialer.DialContext,
			ForceAttemptHTTP2:     forceH2,
			TLSClientConfig:       &tls.Config{NextProtos: nextProtos, InsecureSkipVerify: opts.InsecureSkipVerify},
			MaxIdleConns:          opts.MaxIdleConns,
			MaxIdleConnsPerHost:   opts.MaxIdleConnsPerHost,
			IdleConnTimeout:       opts.IdleConnTimeout,
			MaxConnsPerHost:       opts.MaxConnsPerHost,
			TLSHandshakeTimeout:   opts.TLSHandshakeTimeout,
			ExpectContinueTimeout: opts.ExpectContinueTimeout,
		}
		if opts.ResponseHeaderTimeout > 0 {
			tr.ResponseHeaderTimeout = opts.ResponseHeaderTimeout
		}
		return tr
	}
	return &Pool{
		h1:        build([]string{"http/1.1"}, false),
		h2capable: build([]string{"h2", "http/1.1"}, true),
		opts:      opts,
	}
}

// NewDefaultPool builds a Pool with DefaultOptions.
func NewDefaultPool() *Pool { return NewPool(DefaultOptions()) }

// H1Only returns the transport that never attempts an h2 upgrade.
func (p *Pool) H1Only() *http.Transport { return p.h1 }

// H2Capable returns the transport that negotiates h2 over TLS when offered.
func (p *Pool) H2Capable() *http.Transport { return p.h2capable }

// CloseIdle closes every pooled transport's idle connections, for use
// during shutdown or hot reload once a Service stops accepting requests.
func (p *Pool) CloseIdle() {
	p.h1.CloseIdleConnections()
	p.h2capable.CloseIdleConnections()
}
