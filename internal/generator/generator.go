// Package generator produces synthetic HGCAL-style ntuples for tests and
// demos.
package generator

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"math/rand"

	"github.com/jaswdr/faker"

	"github.com/jittakal/ntuplestore/internal/buffer"
	"github.com/jittakal/ntuplestore/pkg/fieldstore"
	"github.com/jittakal/ntuplestore/pkg/storage"
)

// Config controls event contents. Multiplicities are upper bounds; each
// event draws its own counts.
type Config struct {
	Seed          int64
	Run           int64
	MaxRecHits    int
	MaxClusters   int
	MaxTracksters int
	RawRecHits    bool
}

// MetricsCollector defines metrics operations for the generator.
type MetricsCollector interface {
	AddEntriesGenerated(format string, n int)
}

// Generator generates fake ntuple entries. The same seed always yields the
// same entries.
type Generator struct {
	config    Config
	faker     faker.Faker
	nextEvent int64
	logger    *slog.Logger
}

// NewGenerator creates a new entry generator.
func NewGenerator(config Config, logger *slog.Logger) *Generator {
	return &Generator{
		config:    config,
		faker:     faker.NewWithSeed(rand.NewSource(config.Seed)),
		nextEvent: 1,
		logger:    logger,
	}
}

// Layout returns the column layout of generated entries.
func (g *Generator) Layout() fieldstore.Layout {
	layout := fieldstore.Layout{
		{Name: "run", Kind: fieldstore.KindInt32},
		{Name: "lumi", Kind: fieldstore.KindInt32},
		{Name: "event", Kind: fieldstore.KindInt64},
	}
	seq := func(prefix string, kind fieldstore.Kind, attrs ...string) {
		for _, a := range attrs {
			layout = append(layout, fieldstore.FieldSpec{Name: prefix + "_" + a, Kind: kind, Sequence: true})
		}
	}

	seq("rechit", fieldstore.KindFloat32, "pt", "energy", "eta", "phi", "x", "y", "z", "time")
	seq("rechit", fieldstore.KindInt32, "layer")
	if g.config.RawRecHits {
		seq("rechit_raw", fieldstore.KindFloat32, "pt", "energy")
	}
	seq("layerCluster", fieldstore.KindFloat32, "pt", "energy", "eta", "phi")
	seq("layerCluster", fieldstore.KindInt32, "layer", "nrechits")
	seq("simcluster", fieldstore.KindFloat32, "pt", "energy", "eta", "phi")
	seq("simcluster", fieldstore.KindInt32, "pid")
	seq("trackster", fieldstore.KindInt32, "Id", "nLayerClusters")
	seq("trackster", fieldstore.KindFloat32, "raw_energy", "barycenter_eta", "barycenter_phi")
	return layout
}

// Next generates the next entry.
func (g *Generator) Next() fieldstore.Entry {
	e := fieldstore.Entry{
		"run":   int32(g.config.Run),
		"lumi":  int32(g.config.Seed),
		"event": g.nextEvent,
	}
	g.nextEvent++

	g.recHits(e, g.count(g.config.MaxRecHits))
	g.layerClusters(e, g.count(g.config.MaxClusters))
	g.simClusters(e, g.count(g.config.MaxClusters))
	g.tracksters(e, g.count(g.config.MaxTracksters))
	return e
}

// Entries yields n entries.
func (g *Generator) Entries(n int) iter.Seq[fieldstore.Entry] {
	return func(yield func(fieldstore.Entry) bool) {
		for range n {
			if !yield(g.Next()) {
				return
			}
		}
	}
}

// Generate returns n entries.
func (g *Generator) Generate(n int) []fieldstore.Entry {
	entries := make([]fieldstore.Entry, 0, n)
	for e := range g.Entries(n) {
		entries = append(entries, e)
	}
	return entries
}

func (g *Generator) count(max int) int {
	if max <= 0 {
		return 0
	}
	return g.faker.IntBetween(0, max)
}

func (g *Generator) float(min, max int) float32 {
	return float32(g.faker.Float64(3, min, max))
}

func (g *Generator) eta() float32 {
	sign := float32(1)
	if g.faker.IntBetween(0, 1) == 0 {
		sign = -1
	}
	return sign * (1.5 + float32(g.faker.Float64(3, 0, 1)*1.5))
}

func (g *Generator) phi() float32 {
	return float32(g.faker.Float64(4, -3, 3))
}

func (g *Generator) recHits(e fieldstore.Entry, n int) {
	pt := make([]float32, n)
	energy := make([]float32, n)
	eta := make([]float32, n)
	phi := make([]float32, n)
	x := make([]float32, n)
	y := make([]float32, n)
	z := make([]float32, n)
	t := make([]float32, n)
	layer := make([]int32, n)

	for i := range n {
		eta[i] = g.eta()
		phi[i] = g.phi()
		energy[i] = g.float(0, 50)
		pt[i] = energy[i] / float32(math.Cosh(float64(eta[i])))
		layer[i] = int32(g.faker.IntBetween(1, 47))
		z[i] = float32(math.Copysign(320+float64(layer[i])*2.5, float64(eta[i])))
		r := math.Abs(float64(z[i])) / math.Sinh(math.Abs(float64(eta[i])))
		x[i] = float32(r * math.Cos(float64(phi[i])))
		y[i] = float32(r * math.Sin(float64(phi[i])))
		t[i] = g.float(-1, 5)
	}

	e["rechit_pt"] = pt
	e["rechit_energy"] = energy
	e["rechit_eta"] = eta
	e["rechit_phi"] = phi
	e["rechit_x"] = x
	e["rechit_y"] = y
	e["rechit_z"] = z
	e["rechit_time"] = t
	e["rechit_layer"] = layer

	if g.config.RawRecHits {
		rawPt := make([]float32, n)
		rawEnergy := make([]float32, n)
		for i := range n {
			// Uncalibrated response sits a few percent low.
			scale := 0.9 + float32(g.faker.Float64(3, 0, 1))*0.08
			rawPt[i] = pt[i] * scale
			rawEnergy[i] = energy[i] * scale
		}
		e["rechit_raw_pt"] = rawPt
		e["rechit_raw_energy"] = rawEnergy
	}
}

func (g *Generator) layerClusters(e fieldstore.Entry, n int) {
	pt := make([]float32, n)
	energy := make([]float32, n)
	eta := make([]float32, n)
	phi := make([]float32, n)
	layer := make([]int32, n)
	nrechits := make([]int32, n)

	for i := range n {
		eta[i] = g.eta()
		phi[i] = g.phi()
		energy[i] = g.float(1, 100)
		pt[i] = energy[i] / float32(math.Cosh(float64(eta[i])))
		layer[i] = int32(g.faker.IntBetween(1, 47))
		nrechits[i] = int32(g.faker.IntBetween(1, 30))
	}

	e["layerCluster_pt"] = pt
	e["layerCluster_energy"] = energy
	e["layerCluster_eta"] = eta
	e["layerCluster_phi"] = phi
	e["layerCluster_layer"] = layer
	e["layerCluster_nrechits"] = nrechits
}

var simPIDs = []int32{22, 11, -11, 211, -211, 130, 13, -13}

func (g *Generator) simClusters(e fieldstore.Entry, n int) {
	pt := make([]float32, n)
	energy := make([]float32, n)
	eta := make([]float32, n)
	phi := make([]float32, n)
	pid := make([]int32, n)

	for i := range n {
		eta[i] = g.eta()
		phi[i] = g.phi()
		energy[i] = g.float(1, 200)
		pt[i] = energy[i] / float32(math.Cosh(float64(eta[i])))
		pid[i] = simPIDs[g.faker.IntBetween(0, len(simPIDs)-1)]
	}

	e["simcluster_pt"] = pt
	e["simcluster_energy"] = energy
	e["simcluster_eta"] = eta
	e["simcluster_phi"] = phi
	e["simcluster_pid"] = pid
}

func (g *Generator) tracksters(e fieldstore.Entry, n int) {
	id := make([]int32, n)
	nlc := make([]int32, n)
	energy := make([]float32, n)
	eta := make([]float32, n)
	phi := make([]float32, n)

	for i := range n {
		id[i] = int32(i)
		nlc[i] = int32(g.faker.IntBetween(1, 40))
		energy[i] = g.float(1, 300)
		eta[i] = g.eta()
		phi[i] = g.phi()
	}

	e["trackster_Id"] = id
	e["trackster_nLayerClusters"] = nlc
	e["trackster_raw_energy"] = energy
	e["trackster_barycenter_eta"] = eta
	e["trackster_barycenter_phi"] = phi
}

// WriteResult summarizes a generation run.
type WriteResult struct {
	Entries int
	Files   []fieldstore.FileStats
}

// Write generates events entries and writes them through w below the
// location chosen by router, starting a new file whenever policy asks for
// rotation.
func (g *Generator) Write(
	ctx context.Context,
	w storage.Writer,
	router storage.Router,
	policy storage.RotationPolicy,
	dataset string,
	events int,
	format fieldstore.Format,
	metrics MetricsCollector,
) (*WriteResult, error) {
	layout := g.Layout()
	path := router.Route(dataset, g.config.Run)
	result := &WriteResult{}

	var (
		batch   []fieldstore.Entry
		pending fieldstore.FileStats
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		stats, err := w.Write(ctx, layout, batch, path)
		if err != nil {
			return fmt.Errorf("failed to write batch of %d entries: %w", len(batch), err)
		}
		result.Entries += len(batch)
		result.Files = append(result.Files, *stats)
		if metrics != nil {
			metrics.AddEntriesGenerated(string(format), len(batch))
		}
		g.logger.Debug("batch written", "path", path, "entry_count", len(batch), "file_size", stats.SizeBytes)
		batch = nil
		pending = fieldstore.FileStats{}
		return nil
	}

	for e := range g.Entries(events) {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		batch = append(batch, e)
		pending.EntryCount++
		pending.SizeBytes += buffer.EstimateEntrySize(e)
		if policy.ShouldRotate(pending) {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}
	if err := flush(); err != nil {
		return result, err
	}

	g.logger.Info("ntuples generated",
		"dataset", dataset,
		"run", g.config.Run,
		"entry_count", result.Entries,
		"files", len(result.Files),
		"path", path,
	)
	return result, nil
}
