package ntuple

import (
	"io"
	"log/slog"
	"time"

	"github.com/jittakal/ntuplestore/pkg/fieldstore"
)

// MetricsCollector receives store level measurements.
type MetricsCollector interface {
	RecordEntryLoad(status string, duration time.Duration)
	RecordFieldRead(prefix string)
	RecordViewError(kind string)
}

type noopMetrics struct{}

func (noopMetrics) RecordEntryLoad(string, time.Duration) {}
func (noopMetrics) RecordFieldRead(string)                {}
func (noopMetrics) RecordViewError(string)                {}

type options struct {
	logger  *slog.Logger
	metrics MetricsCollector
	format  fieldstore.Format

	maxEntryBytes int64
}

// Option configures a Store.
type Option func(*options)

// WithLogger sets the logger. The default discards all output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m MetricsCollector) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithFormat forces the on-disk format used by Open instead of detecting it.
func WithFormat(f fieldstore.Format) Option {
	return func(o *options) {
		o.format = f
	}
}

// WithMaxEntryBytes bounds the decoded size of one entry. Loading a larger
// entry fails with a ReadError. Zero means no limit.
func WithMaxEntryBytes(n int64) Option {
	return func(o *options) {
		o.maxEntryBytes = n
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
