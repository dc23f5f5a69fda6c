// Package config defines the slbserver configuration file and its validation.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ruteri/slb-bond-backend/interfaces"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SLB_* environment variables.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Log     LogConfig     `toml:"log"`
	Bond    BondConfig    `toml:"bond"`
	Store   StoreConfig   `toml:"store"`
	Journal JournalConfig `toml:"journal"`
}

type ServerConfig struct {
	ListenAddr       string   `toml:"listen_addr"`
	MetricsAddr      string   `toml:"metrics_addr"`
	EnablePprof      bool     `toml:"pprof"`
	DrainDuration    duration `toml:"drain_duration"`
	ShutdownDuration duration `toml:"shutdown_duration"`
	ReadTimeout      duration `toml:"read_timeout"`
	WriteTimeout     duration `toml:"write_timeout"`
}

type LogConfig struct {
	JSON    bool   `toml:"json"`
	Debug   bool   `toml:"debug"`
	UID     bool   `toml:"uid"`
	Service string `toml:"service"`
}

// BondConfig holds the deployment principal. Owner is only consulted when the
// state store is empty.
type BondConfig struct {
	Owner string `toml:"owner"`

	// SettleInterval is how often payouts that could not be released are retried.
	SettleInterval duration `toml:"settle_interval"`
}

type StoreConfig struct {
	// Kind is "bolt" or "memory".
	Kind string `toml:"kind"`
	Path string `toml:"path"`
}

type JournalConfig struct {
	Enabled bool `toml:"enabled"`
	// Backends are storage URIs, for example "file:///var/lib/slb/journal" or
	// "s3://bucket/prefix/?region=eu-west-1".
	Backends    []string `toml:"backends"`
	MinReplicas int      `toml:"min_replicas"`
	QueueSize   int      `toml:"queue_size"`
}

// duration is a wrapper around time.Duration that decodes from TOML strings
// like "45s" or "1m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the configuration used when no file is given.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:       "127.0.0.1:8080",
			MetricsAddr:      "127.0.0.1:8090",
			DrainDuration:    duration{45 * time.Second},
			ShutdownDuration: duration{30 * time.Second},
			ReadTimeout:      duration{60 * time.Second},
			WriteTimeout:     duration{30 * time.Second},
		},
		Log: LogConfig{
			Service: "slbserver",
		},
		Bond: BondConfig{
			SettleInterval: duration{30 * time.Second},
		},
		Store: StoreConfig{
			Kind: "bolt",
			Path: "slb.db",
		},
		Journal: JournalConfig{
			MinReplicas: 1,
			QueueSize:   256,
		},
	}
}

var validStoreKinds = map[string]bool{"bolt": true, "memory": true}

// Validate checks cross-field constraints and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.ListenAddr == "" {
		errs = append(errs, "server: listen_addr must not be empty")
	}
	if c.Server.ShutdownDuration.Duration <= 0 {
		errs = append(errs, "server: shutdown_duration must be > 0")
	}
	if c.Server.DrainDuration.Duration < 0 {
		errs = append(errs, "server: drain_duration must be >= 0")
	}

	if c.Bond.SettleInterval.Duration <= 0 {
		errs = append(errs, "bond: settle_interval must be > 0")
	}
	if c.Bond.Owner != "" {
		if _, err := interfaces.ParsePrincipal(c.Bond.Owner); err != nil {
			errs = append(errs, fmt.Sprintf("bond: owner %q is not an address", c.Bond.Owner))
		}
	}

	if !validStoreKinds[strings.ToLower(c.Store.Kind)] {
		errs = append(errs, fmt.Sprintf("store: unknown kind %q (valid: bolt, memory)", c.Store.Kind))
	}
	if strings.EqualFold(c.Store.Kind, "bolt") && c.Store.Path == "" {
		errs = append(errs, "store: path must be set for kind bolt")
	}

	if c.Journal.Enabled {
		if len(c.Journal.Backends) == 0 {
			errs = append(errs, "journal: at least one backend is required when enabled")
		}
		if c.Journal.MinReplicas < 1 || c.Journal.MinReplicas > len(c.Journal.Backends) {
			errs = append(errs, fmt.Sprintf("journal: min_replicas must be between 1 and %d", len(c.Journal.Backends)))
		}
		for _, uri := range c.Journal.Backends {
			if _, err := interfaces.NewStorageBackendLocation(uri); err != nil {
				errs = append(errs, fmt.Sprintf("journal: backend %q: %v", uri, err))
			}
		}
	}
	if c.Journal.QueueSize < 0 {
		errs = append(errs, "journal: queue_size must be >= 0")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}
