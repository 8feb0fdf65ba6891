package ratelimit

import (
	"container/list"
	"sync"
)

// arcShard is one independent shard of an Adaptive Replacement Cache
// (Megiddo & Modha). Buckets are sharded by key hash so that no single
// mutex serializes every rate-limit check in a service; each shard holds
// its own T1/T2 resident lists, B1/B2 ghost lists, and adaptively-tuned
// target size p, exactly as a single, unsharded ARCache would, just at
// 1/shardCount the capacity.
//
// Values are *bucket. When a resident entry is evicted from T1 or T2, its
// bucket's background refill goroutine is stopped via bucket.close(). Ghost
// lists remember keys only, not buckets, so any later request for an
// evicted key (whether it hits a ghost list or has left the cache
// entirely) starts over with a fresh, full bucket. This
// mirrors the approximate rate limiting the leaky-bucket-over-LRU design
// accepts: a sufficiently diverse or bursty keyspace can evict resident
// buckets early, which self-corrects because the new bucket starts full.
type arcShard struct {
	mu sync.Mutex

	capacity int
	p        int // target size of t1

	t1, t2, b1, b2 *list.List             // element.Value is string (key)
	index          map[string]*arcElement // key -> where it lives
}

type arcLocation int

const (
	locT1 arcLocation = iota
	locT2
	locB1
	locB2
)

type arcElement struct {
	loc  arcLocation
	elem *list.Element
	val  *bucket // nil for ghost entries
}

func newARCShard(capacity int) *arcShard {
	if capacity < 1 {
		capacity = 1
	}
	return &arcShard{
		capacity: capacity,
		t1:       list.New(),
		t2:       list.New(),
		b1:       list.New(),
		b2:       list.New(),
		index:    make(map[string]*arcElement),
	}
}

// getOrCreate returns the resident bucket for key, creating one with
// newBucket() on a miss. This is the cache's only entry point: River never
// looks up a key without being willing to create it, since an absent key
// simply means "this caller hasn't been seen yet."
func (s *arcShard) getOrCreate(key string, newBucket func() *bucket) *bucket {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.index[key]; ok {
		switch e.loc {
		case locT1:
			s.t1.Remove(e.elem)
			e.elem = s.t2.PushBack(key)
			e.loc = locT2
			return e.val
		case locT2:
			s.t2.MoveToBack(e.elem)
			return e.val
		case locB1:
			s.adaptUp()
			s.replace(false)
			s.b1.Remove(e.elem)
			b := newBucket()
			e.elem = s.t2.PushBack(key)
			e.loc = locT2
			e.val = b
			return b
		case locB2:
			s.adaptDown()
			s.replace(true)
			s.b2.Remove(e.elem)
			b := newBucket()
			e.elem = s.t2.PushBack(key)
			e.loc = locT2
			e.val = b
			return b
		}
	}

	// Total miss: not resident, not a ghost.
	l1 := s.t1.Len() + s.b1.Len()
	l2 := s.t2.Len() + s.b2.Len()
	switch {
	case l1 == s.capacity:
		if s.t1.Len() < s.capacity {
			s.evictGhostFront(s.b1)
			s.replace(false)
		} else {
			s.evictResidentFront(s.t1, locT1)
		}
	case l1 < s.capacity && l1+l2 >= s.capacity:
		if l1+l2 >= 2*s.capacity {
			s.evictGhostFront(s.b2)
		}
		s.replace(false)
	}

	b := newBucket()
	elem := s.t1.PushBack(key)
	s.index[key] = &arcElement{loc: locT1, elem: elem, val: b}
	return b
}

func (s *arcShard) adaptUp() {
	delta := 1
	if s.b1.Len() > 0 && s.b2.Len() > s.b1.Len() {
		delta = s.b2.Len() / s.b1.Len()
	}
	s.p += delta
	if s.p > s.capacity {
		s.p = s.capacity
	}
}

func (s *arcShard) adaptDown() {
	delta := 1
	if s.b2.Len() > 0 && s.b1.Len() > s.b2.Len() {
		delta = s.b1.Len() / s.b2.Len()
	}
	s.p -= delta
	if s.p < 0 {
		s.p = 0
	}
}

// replace implements ARC's REPLACE(x, p): move the LRU end of T1 or T2 to
// its ghost list, whichever the adaptive target p says is over quota.
// inB2 indicates the miss that triggered this call resolved against B2
// (biases the boundary check per the reference algorithm).
func (s *arcShard) replace(inB2 bool) {
	t1Len := s.t1.Len()
	if t1Len > 0 && (t1Len > s.p || (inB2 && t1Len == s.p)) {
		s.evictResidentFront(s.t1, locT1)
		return
	}
	if s.t2.Len() > 0 {
		s.evictResidentFront(s.t2, locT2)
	} else if t1Len > 0 {
		s.evictResidentFront(s.t1, locT1)
	}
}

// evictResidentFront moves the LRU entry of a resident list to its
// matching ghost list, closing its bucket's background refill goroutine. A
// candidate with an active waiter is skipped in favor of the next-LRU
// candidate in the same list: a request queued on a bucket has no way to
// wake up again once that bucket's refill loop is stopped, so it must not
// be evicted out from under the waiter. If every candidate in the list has
// waiters, nothing is evicted and the shard is left briefly over capacity.
func (s *arcShard) evictResidentFront(l *list.List, from arcLocation) {
	elem := s.pickEvictionCandidate(l)
	if elem == nil {
		return
	}
	key := elem.Value.(string)
	l.Remove(elem)
	e := s.index[key]
	if e.val != nil {
		e.val.close()
	}

	var ghost *list.List
	var loc arcLocation
	if from == locT1 {
		ghost, loc = s.b1, locB1
	} else {
		ghost, loc = s.b2, locB2
	}
	e.elem = ghost.PushBack(key)
	e.loc = loc
	e.val = nil

	s.trimGhost(ghost)
}

// pickEvictionCandidate walks l from its LRU end looking for the first
// entry whose bucket has no active waiters.
func (s *arcShard) pickEvictionCandidate(l *list.List) *list.Element {
	for elem := l.Front(); elem != nil; elem = elem.Next() {
		key := elem.Value.(string)
		e := s.index[key]
		if e.val != nil && e.val.hasWaiters() {
			continue
		}
		return elem
	}
	return nil
}

func (s *arcShard) evictGhostFront(l *list.List) {
	front := l.Front()
	if front == nil {
		return
	}
	key := front.Value.(string)
	l.Remove(front)
	delete(s.index, key)
}

// trimGhost keeps a ghost list from growing without bound: combined,
// B1+B2 are held to roughly the shard's capacity.
func (s *arcShard) trimGhost(ghost *list.List) {
	for s.t1.Len()+s.t2.Len()+s.b1.Len()+s.b2.Len() > 2*s.capacity {
		if ghost.Len() == 0 {
			return
		}
		front := ghost.Front()
		key := front.Value.(string)
		ghost.Remove(front)
		delete(s.index, key)
	}
}
