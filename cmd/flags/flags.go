// Package flags holds the command line flags shared by the binaries and the
// glue that merges them with the configuration file.
package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ruteri/slb-bond-backend/api"
	"github.com/ruteri/slb-bond-backend/common"
	"github.com/ruteri/slb-bond-backend/config"
	"github.com/urfave/cli/v2"
)

// LoadConfig reads the file named by --config (if any), applies SLB_*
// environment overrides and then every flag set explicitly on the command line.
func LoadConfig(cCtx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(cCtx.String(ConfigFlag.Name))
	if err != nil {
		return nil, err
	}

	setString(cCtx, ListenAddrFlag.Name, &cfg.Server.ListenAddr)
	setString(cCtx, MetricsAddrFlag.Name, &cfg.Server.MetricsAddr)
	setBool(cCtx, PprofFlag.Name, &cfg.Server.EnablePprof)
	if cCtx.IsSet(DrainDurationFlag.Name) {
		cfg.Server.DrainDuration.Duration = cCtx.Duration(DrainDurationFlag.Name)
	}

	setBool(cCtx, LogJsonFlag.Name, &cfg.Log.JSON)
	setBool(cCtx, LogDebugFlag.Name, &cfg.Log.Debug)
	setBool(cCtx, LogUidFlag.Name, &cfg.Log.UID)
	setString(cCtx, LogServiceFlag.Name, &cfg.Log.Service)

	setString(cCtx, OwnerFlag.Name, &cfg.Bond.Owner)
	setString(cCtx, StoreKindFlag.Name, &cfg.Store.Kind)
	setString(cCtx, StorePathFlag.Name, &cfg.Store.Path)

	if cCtx.IsSet(JournalBackendFlag.Name) {
		cfg.Journal.Enabled = true
		cfg.Journal.Backends = cCtx.StringSlice(JournalBackendFlag.Name)
	}
	if cCtx.IsSet(JournalMinReplicasFlag.Name) {
		cfg.Journal.MinReplicas = cCtx.Int(JournalMinReplicasFlag.Name)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setString(cCtx *cli.Context, name string, dst *string) {
	if cCtx.IsSet(name) {
		*dst = cCtx.String(name)
	}
}

func setBool(cCtx *cli.Context, name string, dst *bool) {
	if cCtx.IsSet(name) {
		*dst = cCtx.Bool(name)
	}
}

func SetupLogger(cfg config.LogConfig) (log *slog.Logger) {
	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   cfg.Debug,
		JSON:    cfg.JSON,
		Service: cfg.Service,
		Version: common.Version,
	})

	if cfg.UID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

// SetupCLILogger builds a logger for the client from the log flags alone.
func SetupCLILogger(cCtx *cli.Context) *slog.Logger {
	return SetupLogger(config.LogConfig{
		JSON:    cCtx.Bool(LogJsonFlag.Name),
		Debug:   cCtx.Bool(LogDebugFlag.Name),
		UID:     cCtx.Bool(LogUidFlag.Name),
		Service: cCtx.String(LogServiceFlag.Name),
	})
}

func ConfigureServer(cfg *config.Config, logger *slog.Logger, gatherer prometheus.Gatherer) *api.HTTPServerConfig {
	return &api.HTTPServerConfig{
		ListenAddr:               cfg.Server.ListenAddr,
		MetricsAddr:              cfg.Server.MetricsAddr,
		Gatherer:                 gatherer,
		Log:                      logger,
		EnablePprof:              cfg.Server.EnablePprof,
		DrainDuration:            cfg.Server.DrainDuration.Duration,
		GracefulShutdownDuration: cfg.Server.ShutdownDuration.Duration,
		ReadTimeout:              cfg.Server.ReadTimeout.Duration,
		WriteTimeout:             cfg.Server.WriteTimeout.Duration,
	}
}

var ConfigFlag = &cli.StringFlag{
	Name:    "config",
	Usage:   "path to a TOML configuration file",
	EnvVars: []string{"SLB_CONFIG"},
}

var ListenAddrFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8080",
	Usage: "address to listen on for API",
}

var OwnerFlag = &cli.StringFlag{
	Name:  "owner",
	Usage: "owner address used when the state store is empty",
}

var StoreKindFlag = &cli.StringFlag{
	Name:  "store",
	Value: "bolt",
	Usage: "state store: 'bolt' or 'memory'",
}

var StorePathFlag = &cli.StringFlag{
	Name:  "store-path",
	Value: "slb.db",
	Usage: "bbolt database file",
}

var JournalBackendFlag = &cli.StringSliceFlag{
	Name:  "journal",
	Usage: "event journal storage URI (file://, s3://, ipfs://, vault://); repeat for redundancy",
}

var JournalMinReplicasFlag = &cli.IntFlag{
	Name:  "journal-min-replicas",
	Value: 1,
	Usage: "journal backends that must accept an entry",
}

var ServerURLFlag = &cli.StringFlag{
	Name:    "server",
	Value:   "http://127.0.0.1:8080",
	Usage:   "bond API base URL",
	EnvVars: []string{"SLB_SERVER"},
}

var KeyFileFlag = &cli.StringFlag{
	Name:    "key-file",
	Usage:   "file with the hex private key to sign requests with",
	EnvVars: []string{"SLB_KEY_FILE"},
}

var KeyHexFlag = &cli.StringFlag{
	Name:    "key",
	Usage:   "hex private key to sign requests with",
	EnvVars: []string{"SLB_PRIVATE_KEY"},
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: "slbserver",
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainDurationFlag = &cli.DurationFlag{
	Name:  "drain-duration",
	Value: 45 * time.Second,
	Usage: "time to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var LogFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
}

var ServerFlags = []cli.Flag{
	ConfigFlag,
	ListenAddrFlag,
	MetricsAddrFlag,
	PprofFlag,
	DrainDurationFlag,
	OwnerFlag,
	StoreKindFlag,
	StorePathFlag,
	JournalBackendFlag,
	JournalMinReplicasFlag,
}
