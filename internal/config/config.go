package config

import (
	"errors"
	"fmt"
	"os"
)

// Load resolves a Config from a KDL or TOML file, then layers environment
// variables and finally CLI flags on top, per the CLI > environment > file
// priority spec.md §6 establishes. Exactly one of flags.ConfigKDL and
// flags.ConfigTOML must be set; NewRootCommand's PreRunE already enforces
// that mutual exclusion before Load ever runs.
func Load(flags CLIFlags) (*Config, error) {
	var (
		conf *Config
		err  error
	)

	switch {
	case flags.ConfigKDL != "":
		f, ferr := os.Open(flags.ConfigKDL)
		if ferr != nil {
			return nil, fmt.Errorf("opening %s: %w", flags.ConfigKDL, ferr)
		}
		defer f.Close()
		conf, err = LoadKDL(f)
	case flags.ConfigTOML != "":
		conf, err = LoadTOML(flags.ConfigTOML)
	default:
		return nil, errors.New("no configuration file given: pass --config-kdl or --config-toml")
	}
	if err != nil {
		return nil, err
	}

	ApplyEnv(conf)
	ApplyCLI(conf, flags)

	if err := conf.Validate(); err != nil {
		return nil, err
	}

	return conf, nil
}
