package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/ruteri/slb-bond-backend/api/bondhandler"
	"github.com/ruteri/slb-bond-backend/bond"
	"github.com/ruteri/slb-bond-backend/cmd/flags"
	"github.com/ruteri/slb-bond-backend/config"
	"github.com/ruteri/slb-bond-backend/httpserver"
	"github.com/ruteri/slb-bond-backend/interfaces"
	"github.com/ruteri/slb-bond-backend/journal"
	"github.com/ruteri/slb-bond-backend/metrics"
	"github.com/ruteri/slb-bond-backend/statestore"
	"github.com/ruteri/slb-bond-backend/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "slbserver",
		Usage: "Serve the sustainability-linked bond ledger",
		Flags: append(append([]cli.Flag{}, flags.ServerFlags...), flags.LogFlags...),
		Action: func(cCtx *cli.Context) error {
			cfg, err := flags.LoadConfig(cCtx)
			if err != nil {
				return err
			}

			logger := flags.SetupLogger(cfg.Log)
			return run(cCtx.Context, cfg, logger)
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store, heads, err := openStateStore(cfg.Store)
	if err != nil {
		logger.Error("Failed to open state store", "err", err)
		return err
	}
	defer store.Close()

	var (
		publisher *journal.Publisher
		events    interfaces.EventSink
		wg        sync.WaitGroup
	)
	// the journal must stop before the store closes; deferred calls run in reverse
	defer func() {
		cancel()
		wg.Wait()
	}()
	if cfg.Journal.Enabled {
		backend, err := openJournalBackend(cfg.Journal, logger)
		if err != nil {
			logger.Error("Failed to configure journal storage", "err", err)
			return err
		}

		publisher, err = journal.New(ctx, journal.Config{
			Backend:   backend,
			Heads:     heads,
			QueueSize: cfg.Journal.QueueSize,
			Metrics:   m,
			Log:       logger.With("component", "journal"),
		})
		if err != nil {
			logger.Error("Failed to start journal", "err", err)
			return err
		}
		events = publisher

		wg.Add(1)
		go func() {
			defer wg.Done()
			publisher.Run(ctx)
		}()
		logger.Info("Event journal enabled", "backend", backend.Name(), "head", publisher.Head().String())
	}

	var owner interfaces.Principal
	if cfg.Bond.Owner != "" {
		owner, _ = interfaces.ParsePrincipal(cfg.Bond.Owner)
	}

	contract, err := bond.New(ctx, bond.Config{
		Owner:   owner,
		Store:   store,
		Events:  events,
		Metrics: m,
		Log:     logger.With("component", "bond"),
	})
	if err != nil {
		logger.Error("Failed to load bond contract", "err", err)
		return err
	}
	logger.Info("Bond contract loaded", "seq", contract.Seq(), "status", contract.Status().String(), "owner", contract.Roles().Owner.Hex())

	wg.Add(1)
	go func() {
		defer wg.Done()
		contract.RunSettlement(ctx, cfg.Bond.SettleInterval.Duration)
	}()

	var head bondhandler.JournalHead
	if publisher != nil {
		head = publisher
	}
	server, err := httpserver.New(flags.ConfigureServer(cfg, logger, reg), bondhandler.NewHandler(contract, head, logger))
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}
	server.RunInBackground()

	// Wait for termination signal
	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	logger.Info("Server is running, press Ctrl+C to stop")
	select {
	case <-exit:
		logger.Info("Shutdown signal received")
	case <-ctx.Done():
	}

	server.Shutdown()
	logger.Info("Server shutdown complete")

	return nil
}

func openStateStore(cfg config.StoreConfig) (interfaces.StateStore, journal.HeadStore, error) {
	switch strings.ToLower(cfg.Kind) {
	case "memory":
		return statestore.NewMemoryStore(), nil, nil
	case "bolt":
		store, err := statestore.OpenBoltStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown state store %q", cfg.Kind)
	}
}

func openJournalBackend(cfg config.JournalConfig, logger *slog.Logger) (interfaces.StorageBackend, error) {
	locations, err := storage.ParseLocations(cfg.Backends)
	if err != nil {
		return nil, err
	}

	factory := storage.NewStorageBackendFactory(logger).WithMinReplicas(cfg.MinReplicas)
	if len(locations) == 1 {
		return factory.StorageBackendFor(locations[0])
	}
	return factory.CreateMultiBackend(locations)
}
