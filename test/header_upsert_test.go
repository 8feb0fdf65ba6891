package tests

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/river-proxy/river/internal/engine"
	"github.com/river-proxy/river/internal/metrics"
)

func TestHeaderUpsert(t *testing.T) {
	upstream := startUpstream(t, "ok")

	conf := loadKDL(t, `
services {
  web {
    listeners { "127.0.0.1:0" }
    connectors { "`+upstream+`" }
    path-control {
      upstream-request {
        filter kind="upsert-header" key="x-proxy-friend" value="river"
      }
    }
  }
}
`)

	svc := engine.NewService(conf.Services[0], metrics.NewRegistry())

	withoutHeader := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	svc.ServeHTTP(rec, withoutHeader)
	if got := rec.Header().Get("X-Original-Header"); got != "river" {
		t.Fatalf("request without the header: upstream saw x-proxy-friend=%q, want river", got)
	}

	withHeader := httptest.NewRequest(http.MethodGet, "/", nil)
	withHeader.Header.Set("x-proxy-friend", "old")
	rec2 := httptest.NewRecorder()
	svc.ServeHTTP(rec2, withHeader)
	if got := rec2.Header().Get("X-Original-Header"); got != "river" {
		t.Fatalf("request already carrying the header: upstream saw x-proxy-friend=%q, want river", got)
	}
}
