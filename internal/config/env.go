package config

import (
	"os"
	"strconv"
)

// ApplyEnv layers RIVER_* environment variables onto conf. Environment
// variables sit between CLI (highest) and file (lowest) in River's
// configuration priority (spec.md §6).
func ApplyEnv(conf *Config) {
	if v, ok := os.LookupEnv("RIVER_THREADS_PER_SERVICE"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			conf.ThreadsPerService = n
		}
	}
	if v, ok := os.LookupEnv("RIVER_DAEMONIZE"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			conf.Daemonize = b
		}
	}
	if v, ok := os.LookupEnv("RIVER_UPGRADE_SOCKET"); ok && v != "" {
		conf.UpgradeSocket = v
	}
	if v, ok := os.LookupEnv("RIVER_PID_FILE"); ok && v != "" {
		conf.PidFile = v
	}
}
