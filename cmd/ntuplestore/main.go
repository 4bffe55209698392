package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jittakal/ntuplestore/internal/config"
	"github.com/jittakal/ntuplestore/internal/config/dto"
	"github.com/jittakal/ntuplestore/internal/observability"
	"github.com/jittakal/ntuplestore/internal/storage"
	"github.com/jittakal/ntuplestore/pkg/fieldstore"
	"github.com/jittakal/ntuplestore/pkg/ntuple"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to configuration file")
	mode := flag.String("mode", "dump", "dump, check, index or serve")
	input := flag.String("input", "", "ntuple location, overrides input.uri")
	flag.Parse()

	// Priority: CLI flag > CONFIG_PATH env var > default path
	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = os.Getenv("CONFIG_PATH")
	}
	if cfgPath == "" {
		cfgPath = "config/application.yaml"
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if *input != "" {
		cfg.Input.URI = *input
	}
	if err := loader.ValidateInput(cfg); err != nil {
		return fmt.Errorf("invalid input configuration: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:     cfg.Observability.Logging.Level,
		Format:    cfg.Observability.Logging.Format,
		Output:    cfg.Observability.Logging.Output,
		AddSource: cfg.Observability.Logging.AddSource,
	})
	logger.Info("starting ntuple store",
		"version", cfg.Application.Version,
		"environment", cfg.Application.Environment,
		"mode", *mode,
		"input", cfg.Input.URI,
	)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("failed to release input", "error", err)
		}
	}()

	collections := declaredKinds(cfg.Collections)

	switch *mode {
	case "dump":
		return dump(os.Stdout, store, collections, cfg.Dump)
	case "check":
		return check(os.Stdout, store, collections, metrics, logger)
	case "index":
		return index(os.Stdout, store, logger)
	case "serve":
		return serve(ctx, cfg, store, collections, registry, metrics, logger)
	default:
		return fmt.Errorf("unknown mode: %s (supported: dump, check, index, serve)", *mode)
	}
}

// openStore resolves the configured input to a local file and opens it.
// The returned function closes the store and removes any downloaded copy.
func openStore(
	ctx context.Context,
	cfg *dto.ApplicationConfig,
	logger *slog.Logger,
	metrics *observability.Metrics,
) (*ntuple.Store, func() error, error) {
	resolver, err := storage.NewInputResolver(cfg, logger, metrics)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create input resolver: %w", err)
	}

	path, cleanup, err := resolver.Resolve(ctx, cfg.Input.URI)
	if err != nil {
		resolver.Close()
		return nil, nil, fmt.Errorf("failed to resolve input: %w", err)
	}

	store, err := ntuple.Open(path,
		ntuple.WithLogger(logger),
		ntuple.WithMetrics(metrics),
		ntuple.WithFormat(fieldstore.Format(cfg.Input.Format)),
		ntuple.WithMaxEntryBytes(cfg.Input.MaxEntryBytes),
	)
	if err != nil {
		cleanup()
		resolver.Close()
		return nil, nil, err
	}

	closeAll := func() error {
		var firstErr error
		for _, fn := range []func() error{store.Close, cleanup, resolver.Close} {
			if err := fn(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	return store, closeAll, nil
}

func declaredKinds(collections []dto.CollectionConfig) []ntuple.Kind {
	kinds := make([]ntuple.Kind, 0, len(collections))
	for _, c := range collections {
		kinds = append(kinds, ntuple.Kind{Prefix: c.Prefix, SizeAttr: c.Size})
	}
	return kinds
}
