package config

import (
	"strings"
	"testing"
)

const minimalKDL = `
services {
    web {
        listeners {
            "127.0.0.1:8080"
        }
        connectors {
            "127.0.0.1:9000"
        }
    }
}
`

func mustLoadKDL(t *testing.T, src string) *Config {
	t.Helper()
	conf, err := LoadKDL(strings.NewReader(src))
	if err != nil {
		t.Fatalf("LoadKDL: %v", err)
	}
	return conf
}

func TestLoadKDL_Minimal(t *testing.T) {
	conf := mustLoadKDL(t, minimalKDL)
	if len(conf.Services) != 1 {
		t.Fatalf("services len: got %d, want 1", len(conf.Services))
	}
	svc := conf.Services[0]
	if svc.Name != "web" {
		t.Fatalf("service name: got %q, want web", svc.Name)
	}
	if len(svc.Listeners) != 1 || svc.Listeners[0].Addr != "127.0.0.1:8080" {
		t.Fatalf("listeners parsed unexpectedly: %+v", svc.Listeners)
	}
	if len(svc.Connectors) != 1 || svc.Connectors[0].Addr != "127.0.0.1:9000" {
		t.Fatalf("connectors parsed unexpectedly: %+v", svc.Connectors)
	}
	if svc.UpstreamOpts.Selection != SelectionRoundRobin {
		t.Errorf("default selection: got %v, want RoundRobin", svc.UpstreamOpts.Selection)
	}
}

func TestLoadKDL_MissingServices(t *testing.T) {
	_, err := LoadKDL(strings.NewReader(`system { threads-per-service 4; }`))
	if err == nil {
		t.Fatal("expected error for missing services section")
	}
}

func TestLoadKDL_PathControlAndRateLimit(t *testing.T) {
	src := `
services {
    web {
        listeners {
            "127.0.0.1:8080"
        }
        connectors {
            "127.0.0.1:9000"
        }
        path-control {
            request-filters {
                filter kind="block-cidr-range" addrs="10.0.0.0/8"
            }
            upstream-response {
                filter kind="upsert-header" key="x-proxy-friend" value="river"
            }
        }
        rate-limiting {
            timeout millis=500
            rule kind="source-ip" max-buckets=1000 tokens-per-bucket=10 refill-qty=1 refill-rate-ms=100
        }
    }
}
`
	conf := mustLoadKDL(t, src)
	svc := conf.Services[0]
	if len(svc.PathControl.RequestFilters) != 1 || svc.PathControl.RequestFilters[0].Kind != FilterBlockCIDRRange {
		t.Fatalf("request-filters parsed unexpectedly: %+v", svc.PathControl.RequestFilters)
	}
	if len(svc.PathControl.UpstreamResponseFilters) != 1 || svc.PathControl.UpstreamResponseFilters[0].Key != "x-proxy-friend" {
		t.Fatalf("upstream-response filters parsed unexpectedly: %+v", svc.PathControl.UpstreamResponseFilters)
	}
	if len(svc.RateLimiting.Rules) != 1 || svc.RateLimiting.Rules[0].Kind != RuleSourceIP {
		t.Fatalf("rate limit rules parsed unexpectedly: %+v", svc.RateLimiting.Rules)
	}
}

func TestLoadKDL_LoadBalanceRequiresKeyForKetama(t *testing.T) {
	src := `
services {
    web {
        listeners { "127.0.0.1:8080" }
        connectors {
            "127.0.0.1:9000"
            load-balance {
                selection "Ketama"
            }
        }
    }
}
`
	_, err := LoadKDL(strings.NewReader(src))
	if err == nil {
		t.Fatal("expected error: Ketama selection without a key")
	}
}
