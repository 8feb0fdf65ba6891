// Package ratelimit implements River's per-service rate limiting: a set of
// declared rules, each backed by an Adaptive Replacement Cache of leaky
// buckets keyed by some attribute of the request (source IP, or a URI
// pattern match). Admission requires a token from every rule that applies
// to a given request; the whole admission attempt is bounded by a single
// timeout shared across every rule the request needs a token from.
package ratelimit

import (
	"context"
	"net/http"
	"time"

	"github.com/river-proxy/river/internal/config"
)

// Limiter is a Service's fully built rate-limiting configuration: an
// ordered set of rules and the shared admission timeout.
type Limiter struct {
	rules   []*rule
	timeout time.Duration
}

// Build compiles a config.RateLimitingConfig into a runnable Limiter. A
// Limiter with no rules always admits.
func Build(cfg config.RateLimitingConfig) *Limiter {
	l := &Limiter{timeout: cfg.Timeout}
	for _, rc := range cfg.Rules {
		capacity := rc.MaxBuckets
		if rc.Kind == config.RuleAnyMatchingURI {
			capacity = 1
		}
		l.rules = append(l.rules, newRule(rc, capacity))
	}
	return l
}

// Admit blocks the caller until every rule that matches req has granted a
// token, or the limiter's configured timeout elapses, whichever comes
// first. admitted is false only on timeout (or, with no configured
// timeout, on any rule's bucket being empty); a request that matches no
// rules is always admitted immediately.
//
// A timeout of zero or less means admission never queues at all: each
// matching rule's bucket is checked once, non-blockingly, and the request
// is rejected the instant one has no token to give, rather than waiting
// out a refill period with no deadline.
//
// Rules are evaluated, and their tokens acquired, in declaration order.
// Tokens already acquired when the timeout fires are not returned: they
// were legitimately spent by this request's earlier rules, and giving them
// back would just let some other, unrelated request use them instead of
// letting the bucket refill normally.
func (l *Limiter) Admit(ctx context.Context, req *http.Request) (admitted bool) {
	if len(l.rules) == 0 {
		return true
	}

	nonBlocking := l.timeout <= 0
	deadline := ctx
	if !nonBlocking {
		var cancel context.CancelFunc
		deadline, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	for _, r := range l.rules {
		key, applies := r.requestKey(req)
		if !applies {
			continue
		}
		b := r.shardFor(key).getOrCreate(key, r.newBucket)
		if nonBlocking {
			if !b.tryAcquire() {
				return false
			}
			continue
		}
		if err := b.acquire(deadline); err != nil {
			return false
		}
	}
	return true
}
