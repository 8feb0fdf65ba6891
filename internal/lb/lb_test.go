package lb

import (
	"testing"

	"github.com/river-proxy/river/internal/config"
)

func testConnectors(addrs ...string) []config.ConnectorConfig {
	out := make([]config.ConnectorConfig, len(addrs))
	for i, a := range addrs {
		out[i] = config.ConnectorConfig{Addr: a, Proto: config.ProtoH1Only}
	}
	return out
}

func TestRoundRobin_CyclesEvenly(t *testing.T) {
	bal, _ := Build(config.UpstreamOptions{Selection: config.SelectionRoundRobin}, testConnectors("a:1", "b:1", "c:1"))
	seen := map[string]int{}
	for i := 0; i < 9; i++ {
		c, err := bal.Pick("")
		if err != nil {
			t.Fatalf("Pick: %v", err)
		}
		seen[c.Addr]++
	}
	for _, addr := range []string{"a:1", "b:1", "c:1"} {
		if seen[addr] != 3 {
			t.Errorf("addr %s picked %d times, want 3", addr, seen[addr])
		}
	}
}

func TestFNV_SameKeySameConnector(t *testing.T) {
	bal, sel := Build(config.UpstreamOptions{Selection: config.SelectionFNV, SelectorKey: config.SelectorUriPath}, testConnectors("a:1", "b:1", "c:1"))
	if sel == nil {
		t.Fatal("FNV selection should return a non-nil selector")
	}
	c1, _ := bal.Pick("/foo")
	c2, _ := bal.Pick("/foo")
	if c1.Addr != c2.Addr {
		t.Fatalf("expected the same key to hash to the same connector, got %s and %s", c1.Addr, c2.Addr)
	}
}

func TestKetama_StableUnderConnectorRemoval(t *testing.T) {
	before, _ := Build(config.UpstreamOptions{Selection: config.SelectionKetama, SelectorKey: config.SelectorUriPath}, testConnectors("a:1", "b:1", "c:1", "d:1"))
	after, _ := Build(config.UpstreamOptions{Selection: config.SelectionKetama, SelectorKey: config.SelectorUriPath}, testConnectors("a:1", "b:1", "c:1"))

	keys := []string{"/a", "/b", "/c", "/d", "/e", "/f", "/g", "/h", "/i", "/j", "/k", "/l", "/m", "/n", "/o", "/p"}
	moved := 0
	for _, k := range keys {
		b, _ := before.Pick(k)
		a, _ := after.Pick(k)
		if b.Addr != "d:1" && a.Addr != b.Addr {
			moved++
		}
	}
	if moved > 2 {
		t.Fatalf("expected ketama to move very few keys not owned by the removed connector, moved %d of %d", moved, len(keys))
	}
}

func TestKetama_NoConnectorsErrors(t *testing.T) {
	bal, _ := Build(config.UpstreamOptions{Selection: config.SelectionKetama}, nil)
	if _, err := bal.Pick("x"); err != ErrNoHealthyConnectors {
		t.Fatalf("expected ErrNoHealthyConnectors, got %v", err)
	}
}
