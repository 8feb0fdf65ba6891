package config

import (
	"fmt"
	"net"
	"path/filepath"
	"regexp"
	"strings"
)

// Validate performs the semantic validation pass spec.md §6 and §7
// require: every listener address is owned by exactly one Service, TLS
// pairing rules hold, a non-h1-only connector proto carries a tls-sni, and
// every filter and rule has the pattern, CIDR blocks or key it needs.
// Regexes and CIDRs are compiled, and connector proto defaults applied,
// by the KDL loader before Validate runs; Validate only checks the result.
// Any structural problem is fatal: it is returned as a *ValidationError
// and the config is never used.
func (c *Config) Validate() error {
	if c.ThreadsPerService <= 0 {
		c.ThreadsPerService = 8
	}
	if c.Daemonize && c.PidFile == "" {
		return errAt("system.pid-file", "required when daemonize is set")
	}

	if len(c.Services) == 0 && len(c.FileServers) == 0 {
		return errAt("services", "no services defined")
	}

	seenAddrs := map[string]string{} // addr -> owning service name

	for i := range c.Services {
		svc := &c.Services[i]
		loc := fmt.Sprintf("services.%s", svc.Name)
		if svc.Name == "" {
			return errAt(loc, "service name must not be empty")
		}
		if len(svc.Listeners) == 0 {
			return errAt(loc+".listeners", "nonzero listeners required")
		}
		if len(svc.Connectors) == 0 {
			return errAt(loc+".connectors", "at least one connector is required")
		}
		if err := claimListeners(loc, svc.Listeners, seenAddrs, svc.Name); err != nil {
			return err
		}
		if err := validateListeners(loc, svc.Listeners); err != nil {
			return err
		}
		if err := validateConnectors(loc, svc.Connectors); err != nil {
			return err
		}
		if svc.UpstreamOpts.Selection == SelectionFNV || svc.UpstreamOpts.Selection == SelectionKetama {
			if svc.UpstreamOpts.SelectorKey == SelectorNone {
				return errAt(loc+".load-balance.selection", "FNV/Ketama selection requires a 'key'")
			}
		}
		if err := validatePathControl(loc, &svc.PathControl); err != nil {
			return err
		}
		if err := validateRateLimiting(loc, &svc.RateLimiting); err != nil {
			return err
		}
	}

	for i := range c.FileServers {
		fs := &c.FileServers[i]
		loc := fmt.Sprintf("services.%s", fs.Name)
		if fs.Name == "" {
			return errAt(loc, "service name must not be empty")
		}
		if len(fs.Listeners) == 0 {
			return errAt(loc+".listeners", "nonzero listeners required")
		}
		if fs.BasePath == "" {
			return errAt(loc+".file-server", "base-path is required")
		}
		if err := claimListeners(loc, fs.Listeners, seenAddrs, fs.Name); err != nil {
			return err
		}
		if err := validateListeners(loc, fs.Listeners); err != nil {
			return err
		}
	}

	return nil
}

func claimListeners(loc string, listeners []ListenerConfig, seen map[string]string, owner string) error {
	for _, l := range listeners {
		if prev, ok := seen[l.Addr]; ok && prev != owner {
			return errAt(loc+".listeners", "address %q is already owned by service %q", l.Addr, prev)
		}
		seen[l.Addr] = owner
	}
	return nil
}

func validateListeners(loc string, listeners []ListenerConfig) error {
	for i, l := range listeners {
		lloc := fmt.Sprintf("%s.listeners[%d]", loc, i)
		if l.TLS != nil {
			if l.TLS.CertPath == "" || l.TLS.KeyPath == "" {
				return errAt(lloc, "'cert-path' and 'key-path' must both be present, or neither should be present")
			}
		} else if l.OfferH2 {
			return errAt(lloc, "'offer-h2' requires TLS, specify 'cert-path' and 'key-path'")
		}
	}
	return nil
}

func validateConnectors(loc string, conns []ConnectorConfig) error {
	for i, c := range conns {
		cloc := fmt.Sprintf("%s.connectors[%d]", loc, i)
		if c.TLSSNI == "" && c.Proto != ProtoH1Only {
			return errAt(cloc, "non-h1-only proto requires 'tls-sni'")
		}
	}
	return nil
}

func validatePathControl(loc string, pc *PathControl) error {
	stages := []struct {
		name    string
		filters []FilterSpec
		allowed map[FilterKind]bool
	}{
		{"request-filters", pc.RequestFilters, map[FilterKind]bool{FilterBlockCIDRRange: true}},
		{"upstream-request", pc.UpstreamRequestFilters, map[FilterKind]bool{FilterRemoveHeaderKeyRegex: true, FilterUpsertHeader: true}},
		{"upstream-response", pc.UpstreamResponseFilters, map[FilterKind]bool{FilterRemoveHeaderKeyRegex: true, FilterUpsertHeader: true}},
	}
	for _, stage := range stages {
		for i, f := range stage.filters {
			floc := fmt.Sprintf("%s.path-control.%s[%d]", loc, stage.name, i)
			if !stage.allowed[f.Kind] {
				return errAt(floc, "filter kind not permitted in this stage")
			}
			switch f.Kind {
			case FilterBlockCIDRRange:
				if len(f.Blocks) == 0 {
					return errAt(floc, "block-cidr-range requires at least one address or range")
				}
			case FilterRemoveHeaderKeyRegex:
				if f.Pattern == nil {
					return errAt(floc, "remove-header-key-regex requires a valid 'pattern'")
				}
			case FilterUpsertHeader:
				if f.Key == "" {
					return errAt(floc, "upsert-header requires a non-empty 'key'")
				}
			}
		}
	}
	return nil
}

func validateRateLimiting(loc string, rl *RateLimitingConfig) error {
	for i, r := range rl.Rules {
		rloc := fmt.Sprintf("%s.rate-limiting.rule[%d]", loc, i)
		if r.MaxBuckets <= 0 {
			return errAt(rloc, "'max-buckets' must be positive")
		}
		if r.TokensPerBucket <= 0 {
			return errAt(rloc, "'tokens-per-bucket' must be positive")
		}
		if r.RefillQty <= 0 {
			return errAt(rloc, "'refill-qty' must be positive")
		}
		if r.RefillPeriod <= 0 {
			return errAt(rloc, "'refill-rate-ms' must be positive")
		}
		if (r.Kind == RuleSpecificURI || r.Kind == RuleAnyMatchingURI) && r.Pattern == nil {
			return errAt(rloc, "uri-based rules require a valid 'pattern'")
		}
		// spec.md §9 open question: `max-buckets` is meaningless for a
		// single shared bucket. We accept it and warn rather than reject.
		if r.Kind == RuleAnyMatchingURI && r.MaxBuckets != 1 {
			logValidationWarning(rloc, "any-matching-uri uses a single shared bucket; 'max-buckets' is ignored")
		}
	}
	return nil
}

// ParseCIDRList parses the comma-separated addrs= value of a
// block-cidr-range filter into a set of *net.IPNet, accepting both bare
// addresses (widened to a /32 or /128) and CIDR ranges.
func ParseCIDRList(raw string) ([]*net.IPNet, error) {
	var out []*net.IPNet
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.Contains(part, "/") {
			ip := net.ParseIP(part)
			if ip == nil {
				return nil, fmt.Errorf("%q is not a valid IP address or CIDR range", part)
			}
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			part = fmt.Sprintf("%s/%d", part, bits)
		}
		_, ipnet, err := net.ParseCIDR(part)
		if err != nil {
			return nil, fmt.Errorf("%q is not a valid CIDR range: %w", part, err)
		}
		out = append(out, ipnet)
	}
	return out, nil
}

// compileRegex wraps regexp.Compile with a validation-friendly
// error; kept small and separate so callers building FilterSpec/RateLimitRule
// values from parsed config nodes get a consistent error shape.
func compileRegex(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(pattern)
}

// IsAbsPath reports whether p is an absolute path.
func IsAbsPath(p string) bool { return filepath.IsAbs(p) }
