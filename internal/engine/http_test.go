package engine

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/river-proxy/river/internal/config"
	"github.com/river-proxy/river/internal/metrics"
)

func startUpstream(t *testing.T, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv.Listener.Addr().String()
}

func TestService_ForwardsToUpstream(t *testing.T) {
	addr := startUpstream(t, "hello")
	svc := NewService(config.ServiceConfig{
		Name:       "web",
		Connectors: []config.ConnectorConfig{{Addr: addr, Proto: config.ProtoH1Only}},
	}, metrics.NewRegistry())

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	rec := httptest.NewRecorder()
	svc.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	if rec.Body.String() != "hello" {
		t.Fatalf("body: got %q", rec.Body.String())
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected a request-id header to be stamped on the response")
	}
}

func TestService_BlockCIDRRejects(t *testing.T) {
	addr := startUpstream(t, "hello")
	_, block, err := net.ParseCIDR("10.0.0.0/8")
	if err != nil {
		t.Fatalf("ParseCIDR: %v", err)
	}
	svc := NewService(config.ServiceConfig{
		Name:       "web",
		Connectors: []config.ConnectorConfig{{Addr: addr, Proto: config.ProtoH1Only}},
		PathControl: config.PathControl{
			RequestFilters: []config.FilterSpec{{Kind: config.FilterBlockCIDRRange, Blocks: []*net.IPNet{block}}},
		},
	}, metrics.NewRegistry())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	rec := httptest.NewRecorder()
	svc.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400 for a blocked source", rec.Code)
	}
}

func TestService_RateLimitDenies(t *testing.T) {
	addr := startUpstream(t, "hello")
	svc := NewService(config.ServiceConfig{
		Name:       "web",
		Connectors: []config.ConnectorConfig{{Addr: addr, Proto: config.ProtoH1Only}},
		RateLimiting: config.RateLimitingConfig{
			Timeout: 5 * time.Millisecond,
			Rules: []config.RateLimitRule{
				{Kind: config.RuleSourceIP, MaxBuckets: 10, TokensPerBucket: 1, RefillQty: 1, RefillPeriod: time.Second},
			},
		},
	}, metrics.NewRegistry())

	req1 := httptest.NewRequest(http.MethodGet, "/", nil)
	req1.RemoteAddr = "10.1.2.3:5555"
	rec1 := httptest.NewRecorder()
	svc.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("first request status: got %d, want 200", rec1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.RemoteAddr = "10.1.2.3:6666"
	rec2 := httptest.NewRecorder()
	svc.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status: got %d, want 429", rec2.Code)
	}
}
