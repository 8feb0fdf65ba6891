package lb

import (
	"errors"

	"github.com/river-proxy/river/internal/config"
)

// ErrNoHealthyConnectors is returned by a Balancer when its healthy set is
// empty: either it was built with zero connectors (which config.Validate
// rejects) or SetHealthy(addr, false) has been applied to every connector.
var ErrNoHealthyConnectors = errors.New("lb: no healthy connectors")

// Balancer picks the Connector a request should be sent to. key is the
// value the Service's configured selector derived from the request; it is
// empty when the load-balance policy doesn't use one (RoundRobin, Random).
// SetHealthy is how a HealthChecker (or, in the present system, a live
// health-flip driven by test or operator action) mutates the healthy set
// Pick draws from.
type Balancer interface {
	Pick(key string) (*Connector, error)
	SetHealthy(addr string, healthy bool)
}

// Build compiles a Service's connectors and load-balance policy into a
// runnable Balancer plus the SelectorFunc that should be used to derive
// Pick's key argument from each request.
func Build(opts config.UpstreamOptions, connectorCfgs []config.ConnectorConfig) (Balancer, SelectorFunc) {
	connectors := connectorsFromConfig(connectorCfgs)
	checker := healthCheckerFor(opts.HealthChecks)

	var bal Balancer
	switch opts.Selection {
	case config.SelectionRandom:
		bal = newRandomBalancer(connectors, checker)
	case config.SelectionFNV:
		bal = newFNVBalancer(connectors, checker)
	case config.SelectionKetama:
		bal = newKetamaBalancer(connectors, checker)
	default:
		bal = newRoundRobinBalancer(connectors, checker)
	}

	var selector SelectorFunc
	switch opts.SelectorKey {
	case config.SelectorUriPath:
		selector = UriPathSelector
	case config.SelectorSourceAddrAndUriPath:
		selector = SourceAddrAndUriPathSelector
	default:
		selector = NoneSelector
	}

	return bal, selector
}

// healthCheckerFor resolves a config.HealthCheckKind to the HealthChecker
// that implements it. None is the only kind the present system implements;
// a future active or passive kind adds a case here.
func healthCheckerFor(kind config.HealthCheckKind) HealthChecker {
	switch kind {
	default:
		return NewNoneHealthChecker()
	}
}
