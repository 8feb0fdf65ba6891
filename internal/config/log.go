package config

import (
	"fmt"
	"log/slog"
)

// logValidationWarning reports a non-fatal configuration oddity. Unlike
// ValidationError, these never block startup; they exist so an operator
// staring at a config that behaves surprisingly has somewhere to look.
func logValidationWarning(location, format string, args ...any) {
	slog.Warn("config: "+fmt.Sprintf(format, args...), "location", location)
}
