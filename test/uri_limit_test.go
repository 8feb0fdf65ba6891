package tests

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/river-proxy/river/internal/engine"
	"github.com/river-proxy/river/internal/metrics"
)

func TestURISpecificLimit(t *testing.T) {
	upstream := startUpstream(t, "ok")

	conf := loadKDL(t, `
services {
  web {
    listeners { "127.0.0.1:0" }
    connectors { "`+upstream+`" }
    rate-limiting {
      timeout millis=0
      rule kind="specific-uri" pattern="^/static/.*$" max-buckets=1000 tokens-per-bucket=1 refill-qty=1 refill-rate-ms=10000
    }
  }
}
`)

	svc := engine.NewService(conf.Services[0], metrics.NewRegistry())

	get := func(path, src string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = src
		rec := httptest.NewRecorder()
		svc.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := get("/static/a.css", "1.1.1.1:1"); got != http.StatusOK {
		t.Fatalf("/static/a.css first request: got %d, want 200", got)
	}
	if got := get("/static/a.css", "2.2.2.2:2"); got != http.StatusTooManyRequests {
		t.Fatalf("/static/a.css second request (different source): got %d, want 429", got)
	}
	if got := get("/static/b.css", "1.1.1.1:1"); got != http.StatusOK {
		t.Fatalf("/static/b.css (distinct bucket): got %d, want 200", got)
	}
	if got := get("/index.html", "1.1.1.1:1"); got != http.StatusOK {
		t.Fatalf("/index.html (no rule matches): got %d, want 200", got)
	}
}
