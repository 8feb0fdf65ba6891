package config

import (
	"fmt"
	"io"
	"net"
	"time"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL parses a KDL document into a Config. The node-walking helpers
// below (requiredChild, optionalChild, oneStrArg, ...) mirror the shape of a
// hand-rolled recursive-descent config extractor: each helper knows how to
// pull one piece of shape out of a *document.Node and produce a config-path
// tagged error when the shape isn't there. Nothing here retains parser
// state past the initial parse; the result is a plain Config, same as TOML.
func LoadKDL(r io.Reader) (*Config, error) {
	doc, err := kdl.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing kdl: %w", err)
	}

	conf := &Config{ThreadsPerService: 8}

	if sys := optionalChild(doc.Nodes, "system"); sys != nil {
		if err := extractSystemData(conf, sys); err != nil {
			return nil, err
		}
	}

	servicesNode, err := requiredChild(doc.Nodes, "services", "$")
	if err != nil {
		return nil, err
	}
	if servicesNode.Children == nil {
		return nil, errAt("services", "'services' must have children")
	}

	proxyFields := map[string]bool{"listeners": true, "connectors": true, "path-control": true, "rate-limiting": true}
	fsFields := map[string]bool{"listeners": true, "file-server": true}

	for _, svcNode := range servicesNode.Children {
		name := svcNode.Name.String()
		loc := fmt.Sprintf("services.%s", name)
		if svcNode.Children == nil {
			return nil, errAt(loc, "service must have children")
		}

		fields := map[string]bool{}
		for _, ch := range svcNode.Children {
			fields[ch.Name.String()] = true
		}

		if isSubset(fields, proxyFields) {
			svc, err := extractService(conf.ThreadsPerService, loc, name, svcNode.Children)
			if err != nil {
				return nil, err
			}
			conf.Services = append(conf.Services, *svc)
		} else if isSubset(fields, fsFields) {
			fs, err := extractFileServer(loc, name, svcNode.Children)
			if err != nil {
				return nil, err
			}
			conf.FileServers = append(conf.FileServers, *fs)
		} else {
			return nil, errAt(loc, "unrecognized combination of sections in service")
		}
	}

	if len(conf.Services) == 0 && len(conf.FileServers) == 0 {
		return nil, errAt("services", "no services defined")
	}

	return conf, nil
}

func isSubset(fields, allowed map[string]bool) bool {
	for f := range fields {
		if !allowed[f] {
			return false
		}
	}
	return true
}

func extractSystemData(conf *Config, sys *document.Node) error {
	if sys.Children == nil {
		return nil
	}
	for _, n := range sys.Children {
		switch n.Name.String() {
		case "threads-per-service":
			v, err := oneIntArg(n, "system.threads-per-service")
			if err != nil {
				return err
			}
			conf.ThreadsPerService = v
		case "daemonize":
			v, err := oneBoolArg(n, "system.daemonize")
			if err != nil {
				return err
			}
			conf.Daemonize = v
		case "upgrade-socket":
			v, err := oneStrArg(n, "system.upgrade-socket")
			if err != nil {
				return err
			}
			conf.UpgradeSocket = v
		case "pid-file":
			v, err := oneStrArg(n, "system.pid-file")
			if err != nil {
				return err
			}
			conf.PidFile = v
		}
	}
	return nil
}

func extractService(threadsPerService int, loc, name string, nodes []*document.Node) (*ServiceConfig, error) {
	svc := &ServiceConfig{Name: name}

	listenersNode, err := requiredChild(nodes, "listeners", loc)
	if err != nil {
		return nil, err
	}
	if listenersNode.Children == nil || len(listenersNode.Children) == 0 {
		return nil, errAt(loc+".listeners", "nonzero listeners required")
	}
	for _, n := range listenersNode.Children {
		l, err := extractListener(loc, n)
		if err != nil {
			return nil, err
		}
		svc.Listeners = append(svc.Listeners, *l)
	}

	connNode, err := requiredChild(nodes, "connectors", loc)
	if err != nil {
		return nil, err
	}
	if connNode.Children != nil {
		for _, n := range connNode.Children {
			if n.Name.String() == "load-balance" {
				lb, err := extractLoadBalance(loc, n)
				if err != nil {
					return nil, err
				}
				svc.UpstreamOpts = *lb
				continue
			}
			c, err := extractConnector(loc, n)
			if err != nil {
				return nil, err
			}
			svc.Connectors = append(svc.Connectors, *c)
		}
	}
	if len(svc.Connectors) == 0 {
		return nil, errAt(loc+".connectors", "at least one connector is required")
	}

	if pcNode := optionalChild(nodes, "path-control"); pcNode != nil && pcNode.Children != nil {
		if n := optionalChild(pcNode.Children, "request-filters"); n != nil {
			f, err := collectFilters(loc+".path-control.request-filters", n)
			if err != nil {
				return nil, err
			}
			svc.PathControl.RequestFilters = f
		}
		if n := optionalChild(pcNode.Children, "upstream-request"); n != nil {
			f, err := collectFilters(loc+".path-control.upstream-request", n)
			if err != nil {
				return nil, err
			}
			svc.PathControl.UpstreamRequestFilters = f
		}
		if n := optionalChild(pcNode.Children, "upstream-response"); n != nil {
			f, err := collectFilters(loc+".path-control.upstream-response", n)
			if err != nil {
				return nil, err
			}
			svc.PathControl.UpstreamResponseFilters = f
		}
	}

	if rlNode := optionalChild(nodes, "rate-limiting"); rlNode != nil && rlNode.Children != nil {
		for _, n := range rlNode.Children {
			switch n.Name.String() {
			case "timeout":
				ms, ok := propInt(n, "millis")
				if !ok {
					return nil, errAt(loc+".rate-limiting.timeout", "missing 'millis'")
				}
				svc.RateLimiting.Timeout = time.Duration(ms) * time.Millisecond
			case "rule":
				rule, err := makeRateLimitRule(loc+".rate-limiting.rule", n)
				if err != nil {
					return nil, err
				}
				svc.RateLimiting.Rules = append(svc.RateLimiting.Rules, *rule)
			default:
				return nil, errAt(loc+".rate-limiting", "unknown entry %q", n.Name.String())
			}
		}
	}

	return svc, nil
}

func extractFileServer(loc, name string, nodes []*document.Node) (*FileServerConfig, error) {
	fs := &FileServerConfig{Name: name}

	listenersNode, err := requiredChild(nodes, "listeners", loc)
	if err != nil {
		return nil, err
	}
	if listenersNode.Children == nil || len(listenersNode.Children) == 0 {
		return nil, errAt(loc+".listeners", "nonzero listeners required")
	}
	for _, n := range listenersNode.Children {
		l, err := extractListener(loc, n)
		if err != nil {
			return nil, err
		}
		fs.Listeners = append(fs.Listeners, *l)
	}

	fsNode, err := requiredChild(nodes, "file-server", loc)
	if err != nil {
		return nil, err
	}
	if fsNode.Children != nil {
		if n := optionalChild(fsNode.Children, "base-path"); n != nil {
			v, err := oneStrArg(n, loc+".file-server.base-path")
			if err != nil {
				return nil, err
			}
			fs.BasePath = v
		}
	}

	return fs, nil
}

func extractListener(loc string, n *document.Node) (*ListenerConfig, error) {
	name := n.Name.String()
	lloc := loc + ".listeners." + name

	if host, port, err := net.SplitHostPort(name); err == nil {
		_ = host
		_ = port
		l := &ListenerConfig{Kind: ListenerTCP, Addr: name}
		certPath, _ := propStr(n, "cert-path")
		keyPath, _ := propStr(n, "key-path")
		offerH2, hasOfferH2 := propBool(n, "offer-h2")

		switch {
		case certPath == "" && keyPath == "":
			if hasOfferH2 && offerH2 {
				return nil, errAt(lloc, "'offer-h2' requires TLS, specify 'cert-path' and 'key-path'")
			}
		case certPath == "" || keyPath == "":
			return nil, errAt(lloc, "'cert-path' and 'key-path' must either both be present, or neither should be present")
		default:
			l.TLS = &TLSConfig{CertPath: certPath, KeyPath: keyPath}
			l.OfferH2 = !hasOfferH2 || offerH2
			if l.OfferH2 {
				l.ALPN = ALPNH1H2
			} else {
				l.ALPN = ALPNH1
			}
		}
		return l, nil
	}

	// Not a socket address: treat as a filesystem path (unix socket).
	return &ListenerConfig{Kind: ListenerUnix, Addr: name}, nil
}

func extractConnector(loc string, n *document.Node) (*ConnectorConfig, error) {
	name := n.Name.String()
	if _, _, err := net.SplitHostPort(name); err != nil {
		return nil, errAt(loc+".connectors", "%q is not a valid socket address", name)
	}

	c := &ConnectorConfig{Addr: name}
	protoStr, hasProto := propStr(n, "proto")
	sni, hasSNI := propStr(n, "tls-sni")

	var proto *UpstreamProto
	if hasProto {
		switch protoStr {
		case "h1-only":
			p := ProtoH1Only
			proto = &p
		case "h2-only":
			p := ProtoH2Only
			proto = &p
		case "h1-or-h2", "h2-or-h1":
			p := ProtoH2OrH1
			proto = &p
		default:
			return nil, errAt(loc+".connectors", "'proto' should be one of 'h1-only', 'h2-only', or 'h2-or-h1', found %q", protoStr)
		}
	}

	switch {
	case proto == nil && !hasSNI:
		c.Proto = ProtoH1Only
	case proto == nil && hasSNI:
		c.Proto = ProtoH2OrH1
		c.TLSSNI = sni
	case proto != nil && *proto == ProtoH1Only && !hasSNI:
		c.Proto = ProtoH1Only
	case proto != nil && !hasSNI:
		return nil, errAt(loc+".connectors", "'tls-sni' is required for HTTP/2 support")
	default:
		c.Proto = *proto
		c.TLSSNI = sni
	}

	return c, nil
}

func extractLoadBalance(loc string, n *document.Node) (*UpstreamOptions, error) {
	opts := &UpstreamOptions{
		Selection:    SelectionRoundRobin,
		HealthChecks: HealthCheckNone,
		Discovery:    DiscoveryStatic,
	}
	if n.Children == nil {
		return opts, nil
	}
	for _, ch := range n.Children {
		switch ch.Name.String() {
		case "selection":
			v, err := oneStrArg(ch, loc+".load-balance.selection")
			if err != nil {
				return nil, err
			}
			switch v {
			case "RoundRobin":
				opts.Selection = SelectionRoundRobin
			case "Random":
				opts.Selection = SelectionRandom
			case "FNV":
				opts.Selection = SelectionFNV
			case "Ketama":
				opts.Selection = SelectionKetama
			default:
				return nil, errAt(loc+".load-balance.selection", "unknown selection kind %q", v)
			}
			if opts.Selection == SelectionFNV || opts.Selection == SelectionKetama {
				key, ok := propStr(ch, "key")
				if !ok {
					return nil, errAt(loc+".load-balance.selection", "selection %q requires a 'key' argument", v)
				}
				switch key {
				case "UriPath":
					opts.SelectorKey = SelectorUriPath
				case "SourceAddrAndUriPath":
					opts.SelectorKey = SelectorSourceAddrAndUriPath
				default:
					return nil, errAt(loc+".load-balance.selection", "unknown key %q", key)
				}
			}
		case "health-check":
			v, err := oneStrArg(ch, loc+".load-balance.health-check")
			if err != nil {
				return nil, err
			}
			if v != "None" {
				return nil, errAt(loc+".load-balance.health-check", "unknown health-check kind %q", v)
			}
			opts.HealthChecks = HealthCheckNone
		case "discovery":
			v, err := oneStrArg(ch, loc+".load-balance.discovery")
			if err != nil {
				return nil, err
			}
			if v != "Static" {
				return nil, errAt(loc+".load-balance.discovery", "unknown discovery kind %q", v)
			}
			opts.Discovery = DiscoveryStatic
		default:
			return nil, errAt(loc+".load-balance", "unknown setting %q", ch.Name.String())
		}
	}
	return opts, nil
}

func collectFilters(loc string, n *document.Node) ([]FilterSpec, error) {
	if n.Children == nil {
		return nil, nil
	}
	var out []FilterSpec
	for _, f := range n.Children {
		if f.Name.String() != "filter" {
			return nil, errAt(loc, "expected 'filter', found %q", f.Name.String())
		}
		kind, _ := propStr(f, "kind")
		switch kind {
		case "block-cidr-range":
			addrs, _ := propStr(f, "addrs")
			blocks, err := ParseCIDRList(addrs)
			if err != nil {
				return nil, errAt(loc, "block-cidr-range: %v", err)
			}
			out = append(out, FilterSpec{Kind: FilterBlockCIDRRange, Blocks: blocks})
		case "remove-header-key-regex":
			pattern, _ := propStr(f, "pattern")
			re, err := compileRegex(pattern)
			if err != nil {
				return nil, errAt(loc, "remove-header-key-regex: invalid pattern: %v", err)
			}
			out = append(out, FilterSpec{Kind: FilterRemoveHeaderKeyRegex, Pattern: re})
		case "upsert-header":
			key, _ := propStr(f, "key")
			value, _ := propStr(f, "value")
			out = append(out, FilterSpec{Kind: FilterUpsertHeader, Key: key, Value: value})
		default:
			return nil, errAt(loc, "unknown filter kind %q", kind)
		}
	}
	return out, nil
}

func makeRateLimitRule(loc string, n *document.Node) (*RateLimitRule, error) {
	kind, ok := propStr(n, "kind")
	if !ok {
		return nil, errAt(loc, "missing 'kind'")
	}
	maxBuckets, ok := propInt(n, "max-buckets")
	if !ok {
		return nil, errAt(loc, "missing 'max-buckets'")
	}
	tokensPerBucket, ok := propInt(n, "tokens-per-bucket")
	if !ok {
		return nil, errAt(loc, "missing 'tokens-per-bucket'")
	}
	refillQty, ok := propInt(n, "refill-qty")
	if !ok {
		return nil, errAt(loc, "missing 'refill-qty'")
	}
	refillMS, ok := propInt(n, "refill-rate-ms")
	if !ok {
		return nil, errAt(loc, "missing 'refill-rate-ms'")
	}

	rule := &RateLimitRule{
		MaxBuckets:      maxBuckets,
		TokensPerBucket: tokensPerBucket,
		RefillQty:       refillQty,
		RefillPeriod:    time.Duration(refillMS) * time.Millisecond,
	}

	switch kind {
	case "source-ip":
		rule.Kind = RuleSourceIP
	case "specific-uri", "uri":
		rule.Kind = RuleSpecificURI
		pattern, ok := propStr(n, "pattern")
		if !ok {
			return nil, errAt(loc, "'%s' rule requires 'pattern'", kind)
		}
		re, err := compileRegex(pattern)
		if err != nil {
			return nil, errAt(loc, "invalid pattern: %v", err)
		}
		rule.Pattern = re
	case "any-matching-uri":
		rule.Kind = RuleAnyMatchingURI
		pattern, ok := propStr(n, "pattern")
		if !ok {
			return nil, errAt(loc, "'any-matching-uri' rule requires 'pattern'")
		}
		re, err := compileRegex(pattern)
		if err != nil {
			return nil, errAt(loc, "invalid pattern: %v", err)
		}
		rule.Pattern = re
	default:
		return nil, errAt(loc, "%q is not a known kind of rate limiting rule", kind)
	}

	return rule, nil
}

// --- node-walking helpers -------------------------------------------------

func requiredChild(nodes []*document.Node, name, loc string) (*document.Node, error) {
	if n := optionalChild(nodes, name); n != nil {
		return n, nil
	}
	return nil, errAt(loc, "missing required section %q", name)
}

func optionalChild(nodes []*document.Node, name string) *document.Node {
	for _, n := range nodes {
		if n.Name.String() == name {
			return n
		}
	}
	return nil
}

// valueInt extracts an integer from v, mirroring the now-removed document.Value.ValueInt helper.
func valueInt(v *document.Value) (int64, error) {
	switch n := v.ResolvedValue().(type) {
	case int64:
		return n, nil
	default:
		return 0, fmt.Errorf("expected an integer, got %T", n)
	}
}

// valueBool extracts a bool from v, mirroring the now-removed document.Value.ValueBool helper.
func valueBool(v *document.Value) bool {
	b, _ := v.ResolvedValue().(bool)
	return b
}

func oneStrArg(n *document.Node, loc string) (string, error) {
	if len(n.Arguments) != 1 {
		return "", errAt(loc, "expected exactly one argument")
	}
	return n.Arguments[0].ValueString(), nil
}

func oneIntArg(n *document.Node, loc string) (int, error) {
	if len(n.Arguments) != 1 {
		return 0, errAt(loc, "expected exactly one argument")
	}
	i, err := valueInt(n.Arguments[0])
	if err != nil {
		return 0, errAt(loc, "expected an integer argument: %v", err)
	}
	return int(i), nil
}

func oneBoolArg(n *document.Node, loc string) (bool, error) {
	if len(n.Arguments) != 1 {
		return false, errAt(loc, "expected exactly one argument")
	}
	return valueBool(n.Arguments[0]), nil
}

func propStr(n *document.Node, key string) (string, bool) {
	v, ok := n.Properties[key]
	if !ok || v == nil {
		return "", false
	}
	return v.ValueString(), true
}

func propBool(n *document.Node, key string) (bool, bool) {
	v, ok := n.Properties[key]
	if !ok || v == nil {
		return false, false
	}
	return valueBool(v), true
}

func propInt(n *document.Node, key string) (int, bool) {
	v, ok := n.Properties[key]
	if !ok || v == nil {
		return 0, false
	}
	i, err := valueInt(v)
	if err != nil {
		return 0, false
	}
	return int(i), true
}
