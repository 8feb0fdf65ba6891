package lb

import "math/rand/v2"

type randomBalancer struct {
	group *healthGroup
}

func newRandomBalancer(connectors []*Connector, checker HealthChecker) *randomBalancer {
	return &randomBalancer{group: newHealthGroup(connectors, checker)}
}

func (b *randomBalancer) Pick(string) (*Connector, error) {
	healthy := b.group.snapshot()
	if len(healthy) == 0 {
		return nil, ErrNoHealthyConnectors
	}
	return healthy[rand.IntN(len(healthy))], nil
}

func (b *randomBalancer) SetHealthy(addr string, healthy bool) {
	b.group.SetHealthy(addr, healthy)
}
