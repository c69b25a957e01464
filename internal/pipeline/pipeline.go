// Package pipeline wires the processing stages end to end: scene
// filtering, seasonal compositing, mask building, elevation banding,
// anomaly computation and output writing.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/urbanclimate/suhi-cli/internal/anomaly"
	"github.com/urbanclimate/suhi-cli/internal/catalog"
	"github.com/urbanclimate/suhi-cli/internal/composite"
	"github.com/urbanclimate/suhi-cli/internal/config"
	"github.com/urbanclimate/suhi-cli/internal/landcover"
	"github.com/urbanclimate/suhi-cli/internal/monitoring"
	"github.com/urbanclimate/suhi-cli/internal/raster"
	"github.com/urbanclimate/suhi-cli/internal/report"
	"github.com/urbanclimate/suhi-cli/internal/scene"
	"github.com/urbanclimate/suhi-cli/internal/terrain"
)

// Options locates every input and names the study. All paths are
// explicit; the runner never consults the working directory.
type Options struct {
	City          string
	Season        string
	Year          int
	ScenesDir     string
	ElevationPath string
	LandCoverPath string
	BoundaryPath  string
	OutputDir     string
	Concurrency   int
}

// Manifest is the machine-readable record written next to the rasters.
// GeneratedAt carries the wall-clock run time, so the manifest is the
// one artifact that differs between reruns of identical inputs; every
// raster and report is reproduced exactly.
type Manifest struct {
	RunID            string         `yaml:"run_id,omitempty"`
	City             string         `yaml:"city"`
	Season           string         `yaml:"season"`
	Year             int            `yaml:"year"`
	GeneratedAt      time.Time      `yaml:"generated_at"`
	ScenesConsidered int            `yaml:"scenes_considered"`
	ScenesAccepted   int            `yaml:"scenes_accepted"`
	Bands            []BandManifest `yaml:"bands"`
	Outputs          []string       `yaml:"outputs"`
}

// BandManifest is one elevation band's entry in the manifest.
type BandManifest struct {
	Index         int     `yaml:"index"`
	Lower         float64 `yaml:"lower"`
	Upper         float64 `yaml:"upper"`
	MeanUrbanTemp float64 `yaml:"mean_urban_temp"`
	MeanRuralTemp float64 `yaml:"mean_rural_temp"`
	BandMin       float64 `yaml:"band_min"`
	BandMax       float64 `yaml:"band_max"`
	Degenerate    bool    `yaml:"degenerate,omitempty"`
}

// RunnerOption attaches optional collaborators to the runner.
type RunnerOption func(*Runner)

// WithStore records the run and its scene decisions in the catalog.
func WithStore(store catalog.Store) RunnerOption {
	return func(r *Runner) { r.store = store }
}

// WithMetrics publishes stage timings and counters.
func WithMetrics(m *monitoring.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// Runner executes one full pipeline run.
type Runner struct {
	opts    Options
	store   catalog.Store
	metrics *monitoring.Metrics
}

// NewRunner builds a runner for the given inputs.
func NewRunner(opts Options, ropts ...RunnerOption) *Runner {
	r := &Runner{opts: opts}
	for _, o := range ropts {
		o(r)
	}
	return r
}

// Run executes the pipeline and returns the manifest of what it wrote.
func (r *Runner) Run(ctx context.Context) (*Manifest, error) {
	log := zap.L().With(
		zap.String("component", "pipeline"),
		zap.String("city", r.opts.City),
		zap.String("season", r.opts.Season),
		zap.Int("year", r.opts.Year),
	)

	start, end, err := config.SeasonRange(r.opts.Season, r.opts.Year)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(r.opts.OutputDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "pipeline: create output dir %s", r.opts.OutputDir)
	}

	var runID string
	if r.store != nil {
		run, err := r.store.CreateRun(ctx, r.opts.City, r.opts.Season, r.opts.Year)
		if err != nil {
			return nil, err
		}
		runID = run.ID
		if err := r.store.UpdateRunStatus(ctx, runID, catalog.RunStatusRunning); err != nil {
			return nil, err
		}
	}
	if r.metrics != nil {
		r.metrics.RunsStarted.Inc()
		r.metrics.PipelineActive.Set(1)
		defer r.metrics.PipelineActive.Set(0)
	}

	manifest, decisions, err := r.run(ctx, log, start, end)
	if err != nil {
		if r.metrics != nil {
			r.metrics.RunsFailed.Inc()
		}
		if r.store != nil && runID != "" {
			if ferr := r.store.FailRun(ctx, runID, err); ferr != nil {
				log.Warn("recording run failure failed", zap.Error(ferr))
			}
		}
		return nil, err
	}
	manifest.RunID = runID

	if r.store != nil && runID != "" {
		if err := r.recordRun(ctx, runID, manifest, decisions); err != nil {
			log.Warn("recording run result failed", zap.Error(err))
		}
	}

	log.Info("run complete",
		zap.Int("scenes_accepted", manifest.ScenesAccepted),
		zap.Int("bands", len(manifest.Bands)),
		zap.Int("outputs", len(manifest.Outputs)),
	)
	return manifest, nil
}

func (r *Runner) run(ctx context.Context, log *zap.Logger, start, end time.Time) (*Manifest, []composite.Decision, error) {
	manifest := &Manifest{
		City:        r.opts.City,
		Season:      r.opts.Season,
		Year:        r.opts.Year,
		GeneratedAt: time.Now().UTC(),
	}

	// Seasonal composite.
	stageStart := time.Now()
	refs, err := scene.Discover(r.opts.ScenesDir)
	if err != nil {
		return nil, nil, err
	}
	compositor := composite.New(scene.NewFilter(start, end))
	if r.opts.Concurrency > 0 {
		compositor.Concurrency = r.opts.Concurrency
	}
	comp, err := compositor.Run(ctx, refs)
	if err != nil {
		return nil, nil, err
	}
	r.observe("composite", stageStart)
	r.countScenes(comp.Decisions)
	manifest.ScenesConsidered = len(comp.Decisions)
	manifest.ScenesAccepted = comp.Accepted
	geom := comp.LST.Geom

	// Static inputs, reconciled onto the composite grid.
	stageStart = time.Now()
	elevation, err := raster.Read(r.opts.ElevationPath)
	if err != nil {
		return nil, nil, err
	}
	elevation, err = raster.Reconcile(elevation, geom)
	if err != nil {
		return nil, nil, err
	}

	fc, err := landcover.LoadGeoJSON(r.opts.LandCoverPath)
	if err != nil {
		return nil, nil, err
	}
	masks, err := landcover.Build(fc, geom)
	if err != nil {
		return nil, nil, err
	}

	boundaryPolys, err := landcover.ReadBoundary(r.opts.BoundaryPath)
	if err != nil {
		return nil, nil, err
	}
	boundary := landcover.BoundaryMask(boundaryPolys, geom)
	r.observe("masks", stageStart)

	// Elevation bands.
	stageStart = time.Now()
	bands, err := terrain.Partition(elevation, masks.Urban)
	if err != nil {
		return nil, nil, err
	}
	r.observe("partition", stageStart)
	if r.metrics != nil {
		r.metrics.ElevationBands.Observe(float64(len(bands)))
	}
	log.Info("elevation bands partitioned", zap.Int("bands", len(bands)))

	// Anomaly and SUHI.
	stageStart = time.Now()
	calc := anomaly.New()
	if r.opts.Concurrency > 0 {
		calc.Concurrency = r.opts.Concurrency
	}
	out, err := calc.Compute(ctx, anomaly.Inputs{
		LST:       comp.LST,
		Elevation: elevation,
		Urban:     masks.Urban,
		Rural:     masks.Rural,
		Boundary:  boundary,
		Bands:     bands,
	})
	if err != nil {
		return nil, nil, err
	}
	r.observe("anomaly", stageStart)

	for _, b := range out.Bands {
		manifest.Bands = append(manifest.Bands, BandManifest{
			Index:         b.Band.Index,
			Lower:         b.Band.Lower,
			Upper:         b.Band.Upper,
			MeanUrbanTemp: b.MeanUrbanTemp,
			MeanRuralTemp: b.MeanRuralTemp,
			BandMin:       b.BandMin,
			BandMax:       b.BandMax,
			Degenerate:    b.Degenerate,
		})
	}

	// Outputs.
	stageStart = time.Now()
	if err := r.writeOutputs(manifest, comp, out); err != nil {
		return nil, nil, err
	}
	r.observe("write", stageStart)

	return manifest, comp.Decisions, nil
}

// writeOutputs writes every raster, the scene ledger, the workbook and
// the manifest, appending each path to the manifest's output list.
func (r *Runner) writeOutputs(manifest *Manifest, comp *composite.Composite, out *anomaly.Output) error {
	writeRaster := func(kind string, g *raster.Grid) error {
		path := r.outputPath(kind, "tif")
		if err := raster.Write(path, g); err != nil {
			return err
		}
		if r.metrics != nil {
			r.metrics.RastersWritten.Inc()
		}
		manifest.Outputs = append(manifest.Outputs, path)
		return nil
	}

	if err := writeRaster("lst_mean", comp.LST); err != nil {
		return err
	}
	for _, b := range out.Bands {
		if err := writeRaster(fmt.Sprintf("anomaly_band_%d", b.Band.Index), b.Anomaly); err != nil {
			return err
		}
		if err := writeRaster(fmt.Sprintf("suhi_band_%d", b.Band.Index), b.SUHI); err != nil {
			return err
		}
	}
	if err := writeRaster("anomaly", out.Anomaly); err != nil {
		return err
	}
	if err := writeRaster("suhi", out.SUHI); err != nil {
		return err
	}

	ledger := r.outputPath("scenes", "csv")
	if err := report.WriteSceneLedger(ledger, comp.Decisions); err != nil {
		return err
	}
	manifest.Outputs = append(manifest.Outputs, ledger)

	workbook := r.outputPath("report", "xlsx")
	if err := report.WriteWorkbook(workbook, report.Summary{
		City:             r.opts.City,
		Season:           r.opts.Season,
		Year:             r.opts.Year,
		ScenesConsidered: manifest.ScenesConsidered,
		ScenesAccepted:   manifest.ScenesAccepted,
		Bands:            out.Bands,
	}); err != nil {
		return err
	}
	manifest.Outputs = append(manifest.Outputs, workbook)

	return r.writeManifest(manifest)
}

// writeManifest serializes the manifest as YAML next to the rasters.
func (r *Runner) writeManifest(manifest *Manifest) error {
	path := r.outputPath("run", "yaml")
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return eris.Wrap(err, "pipeline: marshal manifest")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "pipeline: write manifest %s", path)
	}
	manifest.Outputs = append(manifest.Outputs, path)
	return nil
}

func (r *Runner) recordRun(ctx context.Context, runID string, manifest *Manifest, decisions []composite.Decision) error {
	result := &catalog.RunResult{
		ScenesConsidered: manifest.ScenesConsidered,
		ScenesAccepted:   manifest.ScenesAccepted,
		Outputs:          manifest.Outputs,
	}
	for _, b := range manifest.Bands {
		result.Bands = append(result.Bands, catalog.BandSummary{
			Index:         b.Index,
			Lower:         b.Lower,
			Upper:         b.Upper,
			MeanUrbanTemp: b.MeanUrbanTemp,
			MeanRuralTemp: b.MeanRuralTemp,
			BandMin:       b.BandMin,
			BandMax:       b.BandMax,
			Degenerate:    b.Degenerate,
		})
	}
	if err := r.store.UpdateRunResult(ctx, runID, result); err != nil {
		return err
	}

	records := make([]catalog.SceneDecision, 0, len(decisions))
	for _, d := range decisions {
		records = append(records, catalog.SceneDecision{
			RunID:           runID,
			SceneID:         d.SceneID,
			Sensor:          string(d.Sensor),
			AcquiredAt:      d.AcquiredAt,
			Accepted:        d.Accepted,
			InvalidFraction: d.InvalidFraction,
			Reason:          d.Reason,
		})
	}
	return r.store.RecordDecisions(ctx, runID, records)
}

func (r *Runner) outputPath(kind, ext string) string {
	return filepath.Join(r.opts.OutputDir, outputName(r.opts.City, r.opts.Season, r.opts.Year, kind, ext))
}

func (r *Runner) observe(stage string, since time.Time) {
	if r.metrics == nil {
		return
	}
	r.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(since).Seconds())
}

func (r *Runner) countScenes(decisions []composite.Decision) {
	if r.metrics == nil {
		return
	}
	for _, d := range decisions {
		if d.Accepted {
			r.metrics.ScenesAccepted.Inc()
			continue
		}
		var reason string
		switch {
		case d.Reason == "" || d.Reason == "scene: outside target date range":
			reason = "outside_range"
		case d.Reason == "scene: too many invalid cells":
			reason = "invalid_fraction"
		default:
			reason = "unreadable"
		}
		r.metrics.ScenesSkipped.WithLabelValues(reason).Inc()
	}
}
