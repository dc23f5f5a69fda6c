package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults and applies SLB_* environment variable overrides. An empty
// path skips the file. The returned Config has NOT been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides overwrites Config fields for every SLB_* variable that is
// set, so secrets like storage credentials stay out of the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setStr(&cfg.Server.ListenAddr, "SLB_LISTEN_ADDR")
	setStr(&cfg.Server.MetricsAddr, "SLB_METRICS_ADDR")
	setBool(&cfg.Server.EnablePprof, "SLB_PPROF")
	setDuration(&cfg.Server.DrainDuration, "SLB_DRAIN_DURATION")
	setDuration(&cfg.Server.ShutdownDuration, "SLB_SHUTDOWN_DURATION")
	setDuration(&cfg.Server.ReadTimeout, "SLB_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "SLB_WRITE_TIMEOUT")

	// ── Log ──
	setBool(&cfg.Log.JSON, "SLB_LOG_JSON")
	setBool(&cfg.Log.Debug, "SLB_LOG_DEBUG")
	setBool(&cfg.Log.UID, "SLB_LOG_UID")
	setStr(&cfg.Log.Service, "SLB_LOG_SERVICE")

	// ── Bond ──
	setStr(&cfg.Bond.Owner, "SLB_OWNER")
	setDuration(&cfg.Bond.SettleInterval, "SLB_SETTLE_INTERVAL")

	// ── Store ──
	setStr(&cfg.Store.Kind, "SLB_STORE_KIND")
	setStr(&cfg.Store.Path, "SLB_STORE_PATH")

	// ── Journal ──
	setBool(&cfg.Journal.Enabled, "SLB_JOURNAL_ENABLED")
	setStringSlice(&cfg.Journal.Backends, "SLB_JOURNAL_BACKENDS")
	setInt(&cfg.Journal.MinReplicas, "SLB_JOURNAL_MIN_REPLICAS")
	setInt(&cfg.Journal.QueueSize, "SLB_JOURNAL_QUEUE_SIZE")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
