// Package pathcontrol implements River's three-stage path-control filter
// chain: request-filters run before a Service picks an upstream and may
// reject the request outright, upstream-request filters mutate the request
// headers on the way out, and upstream-response filters mutate the response
// headers on the way back. All three stages are built once from a Service's
// configuration and run in declaration order on every request; none of them
// touch the network or a parser once built.
package pathcontrol

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/river-proxy/river/internal/config"
)

// RequestFilter inspects (never mutates) an inbound request and reports
// whether it should be rejected. block indicates the request was rejected;
// when block is true the caller must not continue processing the request.
type RequestFilter interface {
	Filter(remoteAddr net.Addr) (block bool)
}

// HeaderFilter mutates a set of headers in place. The same interface serves
// both the upstream-request and upstream-response stages: only the header
// set passed to it differs.
type HeaderFilter interface {
	Filter(h http.Header)
}

// Chain is a Service's fully built path-control pipeline.
type Chain struct {
	RequestFilters          []RequestFilter
	UpstreamRequestFilters  []HeaderFilter
	UpstreamResponseFilters []HeaderFilter
}

// Build compiles a config.PathControl into a runnable Chain. Compilation
// never fails here: config.Validate already rejected anything that
// wouldn't build a valid filter, so Build only has to do the mechanical
// translation from FilterSpec to filter value.
func Build(pc config.PathControl) *Chain {
	c := &Chain{}
	for _, f := range pc.RequestFilters {
		c.RequestFilters = append(c.RequestFilters, buildRequestFilter(f))
	}
	for _, f := range pc.UpstreamRequestFilters {
		c.UpstreamRequestFilters = append(c.UpstreamRequestFilters, buildHeaderFilter(f))
	}
	for _, f := range pc.UpstreamResponseFilters {
		c.UpstreamResponseFilters = append(c.UpstreamResponseFilters, buildHeaderFilter(f))
	}
	return c
}

func buildRequestFilter(spec config.FilterSpec) RequestFilter {
	switch spec.Kind {
	case config.FilterBlockCIDRRange:
		return &CIDRRangeFilter{blocks: spec.Blocks}
	default:
		slog.Warn("pathcontrol: filter kind not valid in request-filters stage, ignoring", "kind", spec.Kind)
		return noopRequestFilter{}
	}
}

func buildHeaderFilter(spec config.FilterSpec) HeaderFilter {
	switch spec.Kind {
	case config.FilterRemoveHeaderKeyRegex:
		return &RemoveHeaderKeyRegex{pattern: spec.Pattern}
	case config.FilterUpsertHeader:
		return &UpsertHeader{key: spec.Key, value: spec.Value}
	default:
		slog.Warn("pathcontrol: filter kind not valid in header stage, ignoring", "kind", spec.Kind)
		return noopHeaderFilter{}
	}
}

// RunRequestFilters runs the request-filters stage in declaration order,
// short-circuiting on the first filter that blocks.
func (c *Chain) RunRequestFilters(remoteAddr net.Addr) (blocked bool) {
	for _, f := range c.RequestFilters {
		if f.Filter(remoteAddr) {
			return true
		}
	}
	return false
}

// RunUpstreamRequestFilters runs the upstream-request stage against h in
// declaration order.
func (c *Chain) RunUpstreamRequestFilters(h http.Header) {
	for _, f := range c.UpstreamRequestFilters {
		f.Filter(h)
	}
}

// RunUpstreamResponseFilters runs the upstream-response stage against h in
// declaration order.
func (c *Chain) RunUpstreamResponseFilters(h http.Header) {
	for _, f := range c.UpstreamResponseFilters {
		f.Filter(h)
	}
}

type noopRequestFilter struct{}

func (noopRequestFilter) Filter(net.Addr) bool { return false }

type noopHeaderFilter struct{}

func (noopHeaderFilter) Filter(http.Header) {}
