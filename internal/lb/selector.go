package lb

import "net/http"

// SelectorFunc derives the hash key a request-selection-keyed Balancer
// (FNV, Ketama) uses to pick a Connector. It must be pure and cheap: it
// runs on every request.
type SelectorFunc func(req *http.Request) string

// NoneSelector is used by policies that don't hash on request content
// (RoundRobin, Random); its result is ignored by those Balancers.
func NoneSelector(*http.Request) string { return "" }

// UriPathSelector hashes on the request path alone, so repeated requests
// for the same resource land on the same upstream regardless of caller.
func UriPathSelector(req *http.Request) string { return req.URL.Path }

// SourceAddrAndUriPathSelector hashes on both the caller's address and the
// request path, so a given caller consistently reaches the same upstream
// for a given resource, but different callers can spread across upstreams.
func SourceAddrAndUriPathSelector(req *http.Request) string {
	return req.RemoteAddr + req.URL.Path
}
