package lb

import (
	"hash/crc32"
	"sort"
	"strconv"
)

// vnodesPerConnector is the number of points each Connector gets on the
// ring. More points means a smoother distribution across connectors at the
// cost of a larger ring to search; 160 is the traditional libketama value
// and gives a good balance for connector counts in the tens to low
// hundreds.
const vnodesPerConnector = 160

// ketamaBalancer implements Ketama consistent hashing: each healthy
// connector owns several points scattered around a hash ring, and a key is
// routed to the connector owning the first point at or after the key's own
// hash position. The ring is rebuilt from scratch whenever the healthy set
// changes (group.onChange); since each connector's points depend only on
// its own address, only keys landing on the flipped connector's points
// change owner — which is what makes this selection policy stable under
// health churn compared to fnvBalancer.
type ketamaBalancer struct {
	group  *healthGroup
	points []uint32
	owners []*Connector // owners[i] owns points[i]; both sorted by points
}

func newKetamaBalancer(connectors []*Connector, checker HealthChecker) *ketamaBalancer {
	b := &ketamaBalancer{group: newHealthGroup(connectors, checker)}
	b.group.onChange = b.rebuildLocked
	b.rebuildLocked()
	return b
}

// rebuildLocked recomputes the ring from the group's current healthy set.
// Called once at construction (single-threaded, no lock needed yet) and
// thereafter only from SetHealthy while group.mu is held for writing.
func (b *ketamaBalancer) rebuildLocked() {
	type ringPoint struct {
		hash  uint32
		owner *Connector
	}
	var ring []ringPoint
	for _, c := range b.group.all {
		if !b.group.healthy[c.Addr] {
			continue
		}
		for i := 0; i < vnodesPerConnector; i++ {
			h := crc32.ChecksumIEEE([]byte(c.Addr + "-" + strconv.Itoa(i)))
			ring = append(ring, ringPoint{hash: h, owner: c})
		}
	}
	sort.Slice(ring, func(i, j int) bool { return ring[i].hash < ring[j].hash })
	points := make([]uint32, len(ring))
	owners := make([]*Connector, len(ring))
	for i, rp := range ring {
		points[i] = rp.hash
		owners[i] = rp.owner
	}
	b.points = points
	b.owners = owners
}

func (b *ketamaBalancer) Pick(key string) (*Connector, error) {
	b.group.mu.RLock()
	defer b.group.mu.RUnlock()
	if len(b.points) == 0 {
		return nil, ErrNoHealthyConnectors
	}
	h := crc32.ChecksumIEEE([]byte(key))
	i := sort.Search(len(b.points), func(i int) bool { return b.points[i] >= h })
	if i == len(b.points) {
		i = 0
	}
	return b.owners[i], nil
}

func (b *ketamaBalancer) SetHealthy(addr string, healthy bool) {
	b.group.SetHealthy(addr, healthy)
}
