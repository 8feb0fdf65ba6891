package engine

import (
	"net/http"

	"github.com/google/uuid"
)

// requestIDHeader is the header River stamps on every request it forwards,
// and echoes back to the downstream client. It gives an operator grepping
// upstream logs and River's own access log a single value to correlate on.
const requestIDHeader = "X-River-Request-Id"

// requestID returns the correlation ID for r: the caller-supplied value if
// r already carries one, otherwise a freshly generated one. A caller that
// sets its own ID is trusted; River does not validate the format, since a
// malformed value only hurts the caller's own ability to correlate logs.
func requestID(r *http.Request) string {
	if v := r.Header.Get(requestIDHeader); v != "" {
		return v
	}
	return uuid.NewString()
}
