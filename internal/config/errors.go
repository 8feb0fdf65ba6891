package config

import "fmt"

// ValidationError reports a configuration problem detected during semantic
// validation, tagged with the offending node's location so the operator can
// find it. Location is a human-readable path like
// "services.api.listeners[0]" or "system.pid-file"; it is not a byte
// offset, since KDL and TOML sources are validated through the same code
// path and only the KDL parser carries spans.
type ValidationError struct {
	Location string
	Message  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config error at %s: %s", e.Location, e.Message)
}

func errAt(location, format string, args ...any) *ValidationError {
	return &ValidationError{Location: location, Message: fmt.Sprintf(format, args...)}
}
