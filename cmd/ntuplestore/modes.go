package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jittakal/ntuplestore/internal/config/dto"
	"github.com/jittakal/ntuplestore/internal/observability"
	"github.com/jittakal/ntuplestore/internal/server"
	"github.com/jittakal/ntuplestore/internal/validator"
	"github.com/jittakal/ntuplestore/pkg/ntuple"
)

// maxCheckFailures bounds the failures collected by the check mode.
const maxCheckFailures = 100

type palette struct {
	key    *color.Color
	prefix *color.Color
	attr   *color.Color
	err    *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		key:    color.New(color.FgCyan, color.Bold),
		prefix: color.New(color.FgGreen),
		attr:   color.New(color.FgYellow),
		err:    color.New(color.FgRed),
	}
	for _, c := range []*color.Color{p.key, p.prefix, p.attr, p.err} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// dump prints the key and declared collections of each event.
func dump(w io.Writer, store *ntuple.Store, collections []ntuple.Kind, cfg dto.DumpConfig) error {
	p := newPalette(cfg.Color)

	n := 0
	for ev := range store.Events() {
		if cfg.MaxEvents > 0 && n >= cfg.MaxEvents {
			break
		}
		n++

		key, err := ev.EventKey()
		if err != nil {
			p.err.Fprintf(w, "entry %d: %v\n", ev.EntryIndex(), err)
			continue
		}
		p.key.Fprintf(w, "entry %d event %s\n", ev.EntryIndex(), key)

		for _, kind := range collections {
			if err := dumpCollection(w, p, ev, kind, cfg.Records); err != nil {
				return err
			}
		}
	}

	fmt.Fprintf(w, "%d of %d events\n", n, store.EntryCount())
	return nil
}

func dumpCollection(w io.Writer, p palette, ev ntuple.Event, kind ntuple.Kind, records int) error {
	count, err := ev.Of(kind).Len()
	if err != nil {
		p.err.Fprintf(w, "  %s: %v\n", kind.Prefix, err)
		return nil
	}
	p.prefix.Fprintf(w, "  %s", kind.Prefix)
	fmt.Fprintf(w, " (%d)\n", count)

	if records <= 0 || count == 0 {
		return nil
	}
	table, err := ev.Table(kind.Prefix)
	if err != nil {
		return fmt.Errorf("entry %d: %w", ev.EntryIndex(), err)
	}
	attrs := make([]string, 0, len(table))
	for attr, v := range table {
		if v.IsSequence() {
			attrs = append(attrs, attr)
		}
	}
	slices.Sort(attrs)

	for k := range min(records, count) {
		fmt.Fprintf(w, "    [%d]", k)
		for _, attr := range attrs {
			v, ok := table[attr].At(k)
			if !ok {
				continue
			}
			p.attr.Fprintf(w, " %s", attr)
			fmt.Fprintf(w, "=%v", v)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// check runs the consistency checker and prints every failure.
func check(
	w io.Writer,
	store *ntuple.Store,
	collections []ntuple.Kind,
	metrics validator.MetricsCollector,
	logger *slog.Logger,
) error {
	v := validator.NewNtupleValidator(collections, maxCheckFailures, metrics)
	report, err := v.Validate(store)
	if err != nil {
		return fmt.Errorf("consistency check failed: %w", err)
	}

	for _, f := range report.Failures {
		fmt.Fprintf(w, "%s\t%v\n", validator.CheckFailure(f), f)
	}
	logger.Info("consistency check finished",
		"entries", report.Entries,
		"failures", len(report.Failures),
	)
	if !report.OK() {
		return fmt.Errorf("%d consistency failures", len(report.Failures))
	}
	fmt.Fprintf(w, "%d entries ok\n", report.Entries)
	return nil
}

// index builds the event index and reports duplicate identifiers.
func index(w io.Writer, store *ntuple.Store, logger *slog.Logger) error {
	idx, err := ntuple.BuildIndex(store)
	if err != nil {
		return fmt.Errorf("failed to build event index: %w", err)
	}

	fmt.Fprintf(w, "%d distinct events in %d entries\n", idx.Len(), store.EntryCount())
	for _, d := range idx.Duplicates() {
		fmt.Fprintf(w, "duplicate %s: entry %d repeats entry %d\n", d.ID, d.Entry, d.First)
	}
	logger.Info("event index built", "events", idx.Len(), "duplicates", len(idx.Duplicates()))
	return nil
}

// serve exposes the store over HTTP until ctx is cancelled.
func serve(
	ctx context.Context,
	cfg *dto.ApplicationConfig,
	store *ntuple.Store,
	collections []ntuple.Kind,
	registry *prometheus.Registry,
	metrics *observability.Metrics,
	logger *slog.Logger,
) error {
	idx, err := ntuple.BuildIndex(store)
	if err != nil {
		// Lookup is unavailable, the rest of the API still works.
		logger.Warn("event index unavailable", "error", err)
	}

	api := server.NewStoreAPI(store, idx, collections, cfg.Server.MaxRecords, logger, metrics)

	if !cfg.Observability.Metrics.Enabled {
		registry = nil
	}
	httpServer := server.NewServer(server.Config{
		HealthPort:    cfg.Observability.Health.Port,
		MetricsPort:   cfg.Observability.Metrics.Port,
		LivenessPath:  cfg.Observability.Health.LivenessPath,
		ReadinessPath: cfg.Observability.Health.ReadinessPath,
		MetricsPath:   cfg.Observability.Metrics.Path,
		ReadTimeout:   cfg.Server.ReadTimeout(),
		WriteTimeout:  cfg.Server.WriteTimeout(),
	}, api, api, registry, logger)

	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	logger.Info("ntuple API started", "port", cfg.Observability.Health.Port)

	<-ctx.Done()
	logger.Info("received termination signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.GracePeriod())
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}

	logger.Info("application stopped successfully")
	return nil
}
