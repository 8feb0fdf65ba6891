package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
)

// CLIFlags is the raw, unvalidated set of command-line inputs. Cobra binds
// directly into this struct; ApplyCLI layers it onto a Config afterwards.
type CLIFlags struct {
	ValidateConfigs   bool
	ConfigTOML        string
	ConfigKDL         string
	ThreadsPerService int
	Daemonize         bool
	Upgrade           bool
	UpgradeSocket     string
	PidFile           string
}

// NewRootCommand builds the `river` cobra command. run is invoked with the
// parsed flags once cobra has validated argument syntax; River-specific
// semantic validation (mutual exclusion, absolute paths, etc.) happens in
// PreRunE below and in ApplyCLI/Validate.
func NewRootCommand(run func(CLIFlags) error) *cobra.Command {
	var flags CLIFlags

	cmd := &cobra.Command{
		Use:   "river",
		Short: "River: a reverse proxy",
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if flags.ConfigTOML != "" && flags.ConfigKDL != "" {
				return errors.New("--config-toml and --config-kdl are mutually exclusive")
			}
			if flags.ThreadsPerService < 0 {
				return errors.New("--threads-per-service must be positive")
			}
			if flags.Daemonize && flags.PidFile == "" {
				return errors.New("--daemonize requires --pidfile")
			}
			if flags.Upgrade {
				if runtime.GOOS != "linux" {
					return fmt.Errorf("--upgrade is only supported on linux, running on %s", runtime.GOOS)
				}
				if flags.UpgradeSocket == "" {
					return errors.New("--upgrade requires --upgrade-socket")
				}
			}
			if flags.UpgradeSocket != "" && !filepath.IsAbs(flags.UpgradeSocket) {
				return errors.New("--upgrade-socket must be an absolute path")
			}
			if flags.PidFile != "" && !filepath.IsAbs(flags.PidFile) {
				return errors.New("--pidfile must be an absolute path")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(flags)
		},
	}

	fl := cmd.Flags()
	fl.BoolVar(&flags.ValidateConfigs, "validate-configs", false, "validate configuration and exit")
	fl.StringVar(&flags.ConfigTOML, "config-toml", "", "path to a TOML configuration file")
	fl.StringVar(&flags.ConfigKDL, "config-kdl", "", "path to a KDL configuration file")
	fl.IntVar(&flags.ThreadsPerService, "threads-per-service", 0, "worker threads per service (0 = use config/default)")
	fl.BoolVar(&flags.Daemonize, "daemonize", false, "mark the process as daemonized (requires --pidfile); River does not fork or detach itself")
	fl.BoolVar(&flags.Upgrade, "upgrade", false, "start in listener hand-off receiver mode (linux only)")
	fl.StringVar(&flags.UpgradeSocket, "upgrade-socket", "", "absolute path to the hot-reload upgrade socket")
	fl.StringVar(&flags.PidFile, "pidfile", "", "absolute path to the pidfile")

	return cmd
}

// ApplyCLI layers CLI flags onto conf, following the "CLI wins" half of the
// CLI > environment > file priority rule.
func ApplyCLI(conf *Config, flags CLIFlags) {
	conf.ValidateOnly = conf.ValidateOnly || flags.ValidateConfigs
	if flags.ThreadsPerService > 0 {
		conf.ThreadsPerService = flags.ThreadsPerService
	}
	if flags.Daemonize {
		conf.Daemonize = true
	}
	if flags.Upgrade {
		conf.UpgradeReceiver = true
	}
	if flags.UpgradeSocket != "" {
		conf.UpgradeSocket = flags.UpgradeSocket
	}
	if flags.PidFile != "" {
		conf.PidFile = flags.PidFile
	}
}
