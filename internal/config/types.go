// Package config holds River's internal configuration record and the
// loaders (KDL, TOML, CLI, environment) that populate it.
//
// This is the *actual* internal configuration structure. It is only used
// internally and should not be treated as a stable public API: the CLI,
// KDL, TOML and environment surfaces are all translated into this record
// before anything else in River looks at them.
package config

import (
	"net"
	"regexp"
	"time"
)

// Config is River's fully-resolved, validated configuration.
type Config struct {
	ThreadsPerService int
	Daemonize         bool
	UpgradeSocket     string
	PidFile           string
	ValidateOnly      bool

	// UpgradeReceiver is true when this process was started with --upgrade:
	// rather than binding fresh listeners, it opens UpgradeSocket and waits
	// to receive an existing process's listeners across it.
	UpgradeReceiver bool

	Services    []ServiceConfig
	FileServers []FileServerConfig
}

// ServiceConfig describes one proxying Service.
type ServiceConfig struct {
	Name         string
	Listeners    []ListenerConfig
	Connectors   []ConnectorConfig
	UpstreamOpts UpstreamOptions
	PathControl  PathControl
	RateLimiting RateLimitingConfig
}

// FileServerConfig describes one static file-serving Service.
type FileServerConfig struct {
	Name      string
	Listeners []ListenerConfig
	BasePath  string
}

// ListenerKind distinguishes TCP from Unix-domain-socket listeners.
type ListenerKind int

const (
	ListenerTCP ListenerKind = iota
	ListenerUnix
)

// ALPNSet enumerates the negotiable protocol sets a Listener may offer.
type ALPNSet int

const (
	ALPNH1 ALPNSet = iota
	ALPNH1H2
	ALPNH2
)

// ListenerConfig describes a single downstream-facing socket.
type ListenerConfig struct {
	Kind    ListenerKind
	Addr    string // host:port for TCP, path for Unix
	TLS     *TLSConfig
	OfferH2 bool
	ALPN    ALPNSet
}

// TLSConfig carries the certificate material for a TLS-terminating Listener.
type TLSConfig struct {
	CertPath string
	KeyPath  string
}

// UpstreamProto is the protocol River prefers when dialing a Connector.
type UpstreamProto int

const (
	ProtoH1Only UpstreamProto = iota
	ProtoH2Only
	ProtoH2OrH1
)

// ConnectorConfig describes one configured potential upstream endpoint.
type ConnectorConfig struct {
	Addr   string
	TLSSNI string
	Proto  UpstreamProto
}

// SelectionKind is the load-balancer peer-selection policy.
type SelectionKind int

const (
	SelectionRoundRobin SelectionKind = iota
	SelectionRandom
	SelectionFNV
	SelectionKetama
)

// SelectorKey names the request attribute a hash-based selection policy
// hashes on.
type SelectorKey int

const (
	SelectorNone SelectorKey = iota
	SelectorUriPath
	SelectorSourceAddrAndUriPath
)

// DiscoveryKind is the upstream-set discovery policy. Only Static is
// implemented in the present spec.
type DiscoveryKind int

const (
	DiscoveryStatic DiscoveryKind = iota
)

// HealthCheckKind is the health-check policy. Only None is implemented in
// the present spec: every configured Connector is always considered
// healthy.
type HealthCheckKind int

const (
	HealthCheckNone HealthCheckKind = iota
)

// UpstreamOptions is the resolved `load-balance` block of a service's
// `connectors` section.
type UpstreamOptions struct {
	Selection    SelectionKind
	SelectorKey  SelectorKey
	Discovery    DiscoveryKind
	HealthChecks HealthCheckKind
}

// FilterKind is the closed set of path-control filter kinds.
type FilterKind int

const (
	FilterBlockCIDRRange FilterKind = iota
	FilterRemoveHeaderKeyRegex
	FilterUpsertHeader
)

// FilterSpec is one parsed, validated filter-chain entry. Only the fields
// relevant to Kind are populated; regexes and CIDR ranges are pre-compiled
// at validation time so the hot path never touches a parser.
type FilterSpec struct {
	Kind FilterKind

	// block-cidr-range
	Blocks []*net.IPNet

	// remove-header-key-regex
	Pattern *regexp.Regexp

	// upsert-header
	Key   string
	Value string
}

// PathControl is the three-stage filter chain configuration for a service.
type PathControl struct {
	RequestFilters          []FilterSpec
	UpstreamRequestFilters  []FilterSpec
	UpstreamResponseFilters []FilterSpec
}

// RuleKind is the closed set of rate-limit rule kinds.
type RuleKind int

const (
	RuleSourceIP RuleKind = iota
	RuleSpecificURI
	RuleAnyMatchingURI
)

// RateLimitRule is one immutable rate-limiting rule.
type RateLimitRule struct {
	Kind            RuleKind
	Pattern         *regexp.Regexp // SpecificURI, AnyMatchingURI
	MaxBuckets      int
	TokensPerBucket int
	RefillQty       int
	RefillPeriod    time.Duration
}

// RateLimitingConfig is a service's full rate-limiting configuration.
type RateLimitingConfig struct {
	Timeout time.Duration
	Rules   []RateLimitRule
}
