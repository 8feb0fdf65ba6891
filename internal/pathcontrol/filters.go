package pathcontrol

import (
	"net"
	"net/http"
	"regexp"
)

// CIDRRangeFilter rejects any request whose source address falls within one
// of a configured set of CIDR blocks. It never inspects the request itself,
// only the peer address the listener reports; a source address it cannot
// interpret as an IP (e.g. a Unix-domain-socket peer) is never blocked by
// this filter, since block-cidr-range does not apply there.
type CIDRRangeFilter struct {
	blocks []*net.IPNet
}

func (f *CIDRRangeFilter) Filter(remoteAddr net.Addr) bool {
	ip := addrIP(remoteAddr)
	if ip == nil {
		return false
	}
	for _, b := range f.blocks {
		if b.Contains(ip) {
			return true
		}
	}
	return false
}

func addrIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return a.IP
	case *net.UDPAddr:
		return a.IP
	default:
		host, _, err := net.SplitHostPort(addr.String())
		if err != nil {
			return nil
		}
		return net.ParseIP(host)
	}
}

// RemoveHeaderKeyRegex removes every header whose key matches pattern.
type RemoveHeaderKeyRegex struct {
	pattern *regexp.Regexp
}

func (f *RemoveHeaderKeyRegex) Filter(h http.Header) {
	var toRemove []string
	for k := range h {
		if f.pattern.MatchString(k) {
			toRemove = append(toRemove, k)
		}
	}
	for _, k := range toRemove {
		h.Del(k)
	}
}

// UpsertHeader replaces every existing occurrence of key with a single
// value, adding it if absent.
type UpsertHeader struct {
	key   string
	value string
}

func (f *UpsertHeader) Filter(h http.Header) {
	h.Set(f.key, f.value)
}
