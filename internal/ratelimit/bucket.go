package ratelimit

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// bucket is a single leaky bucket: a fixed capacity of tokens that refills
// by a fixed quantity every fixed period, elapsed whole periods only (a
// request arriving 1.9 periods after the last refill gets exactly one
// period's worth of tokens, never 1.9x). Waiters queue up in strict FIFO
// order: whichever caller has been waiting longest is the first one handed
// a token when one becomes available.
type bucket struct {
	mu sync.Mutex

	tokens     int
	max        int
	refillQty  int
	period     time.Duration
	lastRefill time.Time

	waiters *list.List // of *waiter

	stop chan struct{}
	once sync.Once
}

type waiter struct {
	granted chan struct{}
}

func newBucket(max, refillQty int, period time.Duration) *bucket {
	b := &bucket{
		tokens:     max,
		max:        max,
		refillQty:  refillQty,
		period:     period,
		lastRefill: time.Now(),
		waiters:    list.New(),
		stop:       make(chan struct{}),
	}
	go b.refillLoop()
	return b
}

// refillLoop wakes once per refill period to top up the bucket and release
// any queued waiters. A ticker per bucket is wasteful at very large scale,
// but buckets are ARC-evicted (close stops this goroutine) so the live set
// is bounded by the rule's configured max-buckets, not by total key
// cardinality ever seen.
func (b *bucket) refillLoop() {
	t := time.NewTicker(b.period)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			b.mu.Lock()
			b.refillLocked(time.Now())
			b.releaseWaitersLocked()
			b.mu.Unlock()
		case <-b.stop:
			return
		}
	}
}

func (b *bucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed < b.period {
		return
	}
	periods := int(elapsed / b.period)
	b.tokens += periods * b.refillQty
	if b.tokens > b.max {
		b.tokens = b.max
	}
	b.lastRefill = b.lastRefill.Add(time.Duration(periods) * b.period)
}

func (b *bucket) releaseWaitersLocked() {
	for b.tokens > 0 {
		front := b.waiters.Front()
		if front == nil {
			return
		}
		b.waiters.Remove(front)
		b.tokens--
		close(front.Value.(*waiter).granted)
	}
}

// acquire blocks until a token is available or ctx is done. A caller whose
// context expires while queued is removed from the FIFO without consuming
// a token; a caller who is granted a token concurrently with ctx expiring
// still gets the token (it's already spent, refunding it would just let a
// later, less-deserving waiter take it instead).
func (b *bucket) acquire(ctx context.Context) error {
	b.mu.Lock()
	b.refillLocked(time.Now())
	b.releaseWaitersLocked()
	if b.tokens > 0 {
		b.tokens--
		b.mu.Unlock()
		return nil
	}

	w := &waiter{granted: make(chan struct{})}
	elem := b.waiters.PushBack(w)
	b.mu.Unlock()

	select {
	case <-w.granted:
		return nil
	case <-ctx.Done():
		b.mu.Lock()
		select {
		case <-w.granted:
			b.mu.Unlock()
			return nil
		default:
			b.waiters.Remove(elem)
			b.mu.Unlock()
			return ctx.Err()
		}
	}
}

// tryAcquire takes a token immediately if one is available and reports
// whether it did, without ever queuing a waiter or blocking. This is what
// a zero or negative admission timeout means: fail fast rather than wait
// for the next refill.
func (b *bucket) tryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(time.Now())
	b.releaseWaitersLocked()
	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

func (b *bucket) close() {
	b.once.Do(func() { close(b.stop) })
}

// hasWaiters reports whether any caller is currently blocked in acquire.
// The ARC shard consults this before evicting a resident bucket: a bucket
// with active waiters must not be evicted out from under them.
func (b *bucket) hasWaiters() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.waiters.Len() > 0
}
