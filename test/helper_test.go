package tests

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/river-proxy/river/internal/config"
)

func startUpstream(t *testing.T, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Original-Header", r.Header.Get("X-Proxy-Friend"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv.Listener.Addr().String()
}

func uriPathRequest(path string) *http.Request {
	return httptest.NewRequest(http.MethodGet, path, nil)
}

func loadKDL(t *testing.T, src string) *config.Config {
	t.Helper()
	conf, err := config.LoadKDL(strings.NewReader(src))
	if err != nil {
		t.Fatalf("LoadKDL: %v", err)
	}
	if err := conf.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return conf
}
