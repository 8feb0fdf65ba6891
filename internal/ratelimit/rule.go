package ratelimit

import (
	"hash/fnv"
	"net"
	"net/http"
	"regexp"
	"time"

	"github.com/river-proxy/river/internal/config"
)

// numShards is the fixed number of independent ARC segments a rule's cache
// is split into. Each segment has its own mutex, so concurrent admission
// checks against different keys hashing to different segments never
// serialize behind one another; only keys that happen to collide on a
// segment contend.
const numShards = 16

// rule is one compiled rate-limit rule: a cache of buckets keyed by
// whatever requestKey derives from an inbound request, plus the shape new
// buckets in that cache are created with.
type rule struct {
	kind    config.RuleKind
	pattern *regexp.Regexp

	maxTokens int
	refillQty int
	period    time.Duration

	shards [numShards]*arcShard
}

func newRule(cfg config.RateLimitRule, totalCapacity int) *rule {
	r := &rule{
		kind:      cfg.Kind,
		pattern:   cfg.Pattern,
		maxTokens: cfg.TokensPerBucket,
		refillQty: cfg.RefillQty,
		period:    cfg.RefillPeriod,
	}
	perShard := totalCapacity / numShards
	if perShard < 1 {
		perShard = 1
	}
	for i := range r.shards {
		r.shards[i] = newARCShard(perShard)
	}
	return r
}

// shardFor returns the segment key is assigned to, by fnv-1a hash of the
// key modulo numShards. A rule whose cache is a single shared bucket
// (any-matching-uri) always hashes its one fixed key to the same segment,
// so sharding is transparent to it.
func (r *rule) shardFor(key string) *arcShard {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return r.shards[h.Sum64()%numShards]
}

func (r *rule) newBucket() *bucket {
	return newBucket(r.maxTokens, r.refillQty, r.period)
}

// requestKey derives the cache key for req under this rule, and reports
// whether the rule applies to req at all: a specific-uri or
// any-matching-uri rule whose pattern doesn't match the request path simply
// does not participate in admission for that request.
func (r *rule) requestKey(req *http.Request) (string, bool) {
	switch r.kind {
	case config.RuleSourceIP:
		ip := sourceIP(req)
		if ip == "" {
			return "", false
		}
		return "src:" + ip, true
	case config.RuleSpecificURI:
		path := req.URL.Path
		if !r.pattern.MatchString(path) {
			return "", false
		}
		return "uri:" + path, true
	case config.RuleAnyMatchingURI:
		path := req.URL.Path
		if !r.pattern.MatchString(path) {
			return "", false
		}
		// A single shared bucket for every path the pattern matches,
		// regardless of which path it was (see config.Validate's
		// any-matching-uri handling of 'max-buckets').
		return "any-matching-uri", true
	default:
		return "", false
	}
}

func sourceIP(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	if net.ParseIP(host) == nil {
		return ""
	}
	return host
}
