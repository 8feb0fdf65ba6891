package lb

import "hash/fnv"

// fnvBalancer picks a Connector by hashing the selector key with FNV-1a and
// reducing it modulo the healthy connector count. Unlike Ketama, this makes
// no attempt at minimal disruption when the healthy set changes: every
// connector added, removed, or flipped unhealthy reshuffles the entire
// keyspace.
type fnvBalancer struct {
	group *healthGroup
}

func newFNVBalancer(connectors []*Connector, checker HealthChecker) *fnvBalancer {
	return &fnvBalancer{group: newHealthGroup(connectors, checker)}
}

func (b *fnvBalancer) Pick(key string) (*Connector, error) {
	healthy := b.group.snapshot()
	if len(healthy) == 0 {
		return nil, ErrNoHealthyConnectors
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return healthy[h.Sum64()%uint64(len(healthy))], nil
}

func (b *fnvBalancer) SetHealthy(addr string, healthy bool) {
	b.group.SetHealthy(addr, healthy)
}
