// Package lb selects which upstream Connector a Service should forward a
// given request to. A Balancer is built once from a Service's static
// connector list and load-balance policy; selection itself never blocks
// and never touches the network. Every Balancer keeps a per-connector
// healthy flag (healthGroup) and picks only among healthy connectors; all
// start healthy, no checker probes them (HealthCheckNone), and the flags
// change only through Balancer.SetHealthy.
package lb

import "github.com/river-proxy/river/internal/config"

// Connector is one upstream endpoint a Balancer may hand back.
type Connector struct {
	Addr   string
	TLSSNI string
	Proto  config.UpstreamProto
}

func connectorsFromConfig(cfgs []config.ConnectorConfig) []*Connector {
	out := make([]*Connector, len(cfgs))
	for i, c := range cfgs {
		out[i] = &Connector{Addr: c.Addr, TLSSNI: c.TLSSNI, Proto: c.Proto}
	}
	return out
}
