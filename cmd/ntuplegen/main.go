package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jittakal/ntuplestore/internal/config"
	"github.com/jittakal/ntuplestore/internal/generator"
	"github.com/jittakal/ntuplestore/internal/observability"
	"github.com/jittakal/ntuplestore/internal/storage"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to configuration file")
	events := flag.Int("events", 0, "number of events, overrides generator.events")
	seed := flag.Int64("seed", 0, "random seed, overrides generator.seed")
	flag.Parse()

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
	if *events > 0 {
		cfg.Generator.Events = *events
	}
	if *seed != 0 {
		cfg.Generator.Seed = *seed
	}
	if err := loader.ValidateOutput(cfg); err != nil {
		return fmt.Errorf("invalid output configuration: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:     cfg.Observability.Logging.Level,
		Format:    cfg.Observability.Logging.Format,
		Output:    cfg.Observability.Logging.Output,
		AddSource: cfg.Observability.Logging.AddSource,
	})
	logger.Info("starting ntuple generator",
		"version", cfg.Application.Version,
		"backend", cfg.Storage.Backend,
		"format", cfg.Storage.Format,
		"events", cfg.Generator.Events,
		"seed", cfg.Generator.Seed,
	)

	metrics := observability.NewMetrics(prometheus.NewRegistry())

	out, err := storage.NewOutput(cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer out.Writer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gen := generator.NewGenerator(generator.Config{
		Seed:          cfg.Generator.Seed,
		Run:           cfg.Generator.Run,
		MaxRecHits:    cfg.Generator.MaxRecHits,
		MaxClusters:   cfg.Generator.MaxClusters,
		MaxTracksters: cfg.Generator.MaxTracksters,
		RawRecHits:    cfg.Generator.RawRecHits,
	}, logger)

	result, err := gen.Write(ctx, out.Writer, out.Router, out.Policy,
		cfg.Generator.Dataset, cfg.Generator.Events, out.Format, metrics)
	if err != nil {
		return fmt.Errorf("failed to generate ntuples: %w", err)
	}

	fmt.Printf("wrote %d events in %d files to %s\n",
		result.Entries, len(result.Files), out.Router.Route(cfg.Generator.Dataset, cfg.Generator.Run))
	return nil
}
