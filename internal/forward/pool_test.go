package forward

import (
	"net/http"
	"testing"
	"time"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.DialTimeout != 5*time.Second {
		t.Errorf("DialTimeout: got %v, want %v", opts.DialTimeout, 5*time.Second)
	}
	if opts.MaxIdleConnsPerHost != 100 {
		t.Errorf("MaxIdleConnsPerHost: got %d, want 100", opts.MaxIdleConnsPerHost)
	}
}

func TestNewPool_H1NeverForcesH2(t *testing.T) {
	p := NewDefaultPool()
	if p.H1Only().ForceAttemptHTTP2 {
		t.Error("h1-only transport should never attempt an h2 upgrade")
	}
	if !p.H2Capable().ForceAttemptHTTP2 {
		t.Error("h2-capable transport should attempt an h2 upgrade")
	}
}

func TestNewPool_HonorsCustomOptions(t *testing.T) {
	p := NewPool(Options{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 3,
		IdleConnTimeout:     time.Minute,
	})
	if p.H1Only().MaxIdleConns != 10 {
		t.Errorf("MaxIdleConns: got %d, want 10", p.H1Only().MaxIdleConns)
	}
	if p.H1Only().MaxIdleConnsPerHost != 3 {
		t.Errorf("MaxIdleConnsPerHost: got %d, want 3", p.H1Only().MaxIdleConnsPerHost)
	}
}

func TestPool_CloseIdle(t *testing.T) {
	p := NewDefaultPool()
	p.CloseIdle() // must not panic
}

var _ http.RoundTripper = NewDefaultPool().H1Only()
