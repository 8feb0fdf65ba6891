package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// tomlDoc is TOML's reduced-scope configuration surface. TOML is the
// secondary format: it exists for operators who want a single system-level
// knob without hand-writing KDL, not as a second way to declare services.
// A full topology (services, connectors, path-control, rate-limiting) is
// only expressible in KDL.
type tomlDoc struct {
	ThreadsPerService *int   `toml:"threads-per-service"`
	Daemonize         *bool  `toml:"daemonize"`
	UpgradeSocket     string `toml:"upgrade-socket"`
	PidFile           string `toml:"pid-file"`
}

// LoadTOML reads path and layers its (reduced) settings onto a fresh,
// otherwise-default Config.
func LoadTOML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var t tomlDoc
	if _, err := toml.Decode(string(data), &t); err != nil {
		return nil, fmt.Errorf("parsing toml %s: %w", path, err)
	}

	conf := &Config{ThreadsPerService: 8}
	if t.ThreadsPerService != nil {
		conf.ThreadsPerService = *t.ThreadsPerService
	}
	if t.Daemonize != nil {
		conf.Daemonize = *t.Daemonize
	}
	conf.UpgradeSocket = t.UpgradeSocket
	conf.PidFile = t.PidFile

	return conf, nil
}
