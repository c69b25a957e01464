// Package anomaly computes rural-reference-relative thermal anomaly and
// the normalized SUHI index per elevation band, then merges the band
// rasters into whole-area outputs.
package anomaly

import (
	"context"
	"runtime"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/urbanclimate/suhi-cli/internal/raster"
	"github.com/urbanclimate/suhi-cli/internal/terrain"
)

// ErrEmptyReferenceArea means a band (or the whole area) has no urban or
// no rural-reference cells with a valid temperature, so no reference can
// be computed. Fatal: the run aborts with a diagnostic instead of
// silently writing nodata.
var ErrEmptyReferenceArea = eris.New("anomaly: empty urban or rural reference area")

// ErrDegenerateRange marks a band whose LST min equals its max, leaving
// the SUHI normalization undefined. Recovered by emitting nodata for that
// band's SUHI raster.
var ErrDegenerateRange = eris.New("anomaly: degenerate LST range")

// Inputs collects the rasters for one anomaly computation. All grids must
// share geometry; callers reconcile upstream.
type Inputs struct {
	LST       *raster.Grid // seasonal composite
	Elevation *raster.Grid
	Urban     *raster.Grid
	Rural     *raster.Grid
	Boundary  *raster.Grid
	Bands     []terrain.Band
}

// BandResult holds one band's outputs and reference statistics.
type BandResult struct {
	Band          terrain.Band
	MeanUrbanTemp float64
	MeanRuralTemp float64
	BandMin       float64
	BandMax       float64
	Degenerate    bool
	Anomaly       *raster.Grid
	SUHI          *raster.Grid
}

// Output is the merged whole-area result plus the per-band rasters.
type Output struct {
	Bands   []BandResult
	Anomaly *raster.Grid
	SUHI    *raster.Grid
}

// Calculator runs the per-band computation, optionally in parallel.
type Calculator struct {
	Concurrency int
}

// New returns a calculator defaulting to GOMAXPROCS workers.
func New() *Calculator {
	return &Calculator{Concurrency: runtime.GOMAXPROCS(0)}
}

// Compute produces per-band anomaly and SUHI rasters and merges them.
// Bands are independent, so they run across workers with private
// buffers; results only meet at the merge. Merged SUHI cells are clamped
// to [0,1] after the merge.
func (c *Calculator) Compute(ctx context.Context, in Inputs) (*Output, error) {
	if len(in.Bands) == 0 {
		return nil, eris.New("anomaly: no elevation bands")
	}
	if in.Urban.Empty() || in.Rural.Empty() {
		return nil, eris.Wrap(ErrEmptyReferenceArea, "whole study area")
	}

	results := make([]BandResult, len(in.Bands))

	g, ctx := errgroup.WithContext(ctx)
	limit := c.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(limit)

	for i, band := range in.Bands {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := computeBand(in, band)
			if err != nil {
				return err
			}
			results[i] = *res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	anomalies := make([]*raster.Grid, len(results))
	suhis := make([]*raster.Grid, len(results))
	for i, r := range results {
		anomalies[i] = r.Anomaly
		suhis[i] = r.SUHI
	}

	mergedAnomaly, err := raster.MergeFirst(anomalies)
	if err != nil {
		return nil, eris.Wrap(err, "anomaly: merge anomaly bands")
	}
	mergedSUHI, err := raster.MergeFirst(suhis)
	if err != nil {
		return nil, eris.Wrap(err, "anomaly: merge SUHI bands")
	}
	mergedSUHI = mergedSUHI.Clamp(0, 1)

	zap.L().Info("anomaly computation complete",
		zap.Int("bands", len(results)),
	)
	return &Output{
		Bands:   results,
		Anomaly: mergedAnomaly,
		SUHI:    mergedSUHI,
	}, nil
}

// computeBand runs the per-band contract: mask to the band footprint,
// derive reference temperatures, subtract the rural reference, and
// normalize to the band's LST range.
func computeBand(in Inputs, band terrain.Band) (*BandResult, error) {
	log := zap.L().With(
		zap.String("component", "anomaly"),
		zap.Int("band", band.Index),
	)

	footprint := band.Mask(in.Elevation)
	bandLST, err := in.LST.ApplyMask(footprint)
	if err != nil {
		return nil, eris.Wrapf(err, "anomaly: band %d footprint", band.Index)
	}

	urbanLST, err := bandLST.ApplyMask(in.Urban)
	if err != nil {
		return nil, eris.Wrapf(err, "anomaly: band %d urban restriction", band.Index)
	}
	meanUrban, err := urbanLST.Mean()
	if err != nil {
		return nil, eris.Wrapf(ErrEmptyReferenceArea,
			"band %d [%g,%g) has no valid urban cells", band.Index, band.Lower, band.Upper)
	}

	// Defensive re-exclusion: the masks are disjoint by construction,
	// but the reference mean must never see an urban cell.
	ruralMask, err := in.Rural.SubtractMask(in.Urban)
	if err != nil {
		return nil, eris.Wrapf(err, "anomaly: band %d rural re-exclusion", band.Index)
	}
	ruralLST, err := bandLST.ApplyMask(ruralMask)
	if err != nil {
		return nil, eris.Wrapf(err, "anomaly: band %d rural restriction", band.Index)
	}
	meanRural, err := ruralLST.Mean()
	if err != nil {
		return nil, eris.Wrapf(ErrEmptyReferenceArea,
			"band %d [%g,%g) has no valid rural cells", band.Index, band.Lower, band.Upper)
	}

	anomalyGrid, err := bandLST.SubScalar(meanRural).ApplyMask(in.Boundary)
	if err != nil {
		return nil, eris.Wrapf(err, "anomaly: band %d boundary crop", band.Index)
	}

	res := &BandResult{
		Band:          band,
		MeanUrbanTemp: meanUrban,
		MeanRuralTemp: meanRural,
		Anomaly:       anomalyGrid,
	}

	stats, err := bandLST.Summarize()
	if err != nil {
		return nil, eris.Wrapf(err, "anomaly: band %d LST stats", band.Index)
	}
	res.BandMin, res.BandMax = stats.Min, stats.Max

	if stats.Max == stats.Min {
		// Undefined normalization: emit nodata, not a division by zero.
		res.Degenerate = true
		res.SUHI = raster.New(bandLST.Geom)
		log.Warn("degenerate LST range, SUHI emitted as nodata",
			zap.Float64("value", stats.Min),
			zap.Error(ErrDegenerateRange),
		)
		return res, nil
	}

	suhi, err := bandLST.Normalize(stats.Min, stats.Max).ApplyMask(in.Boundary)
	if err != nil {
		return nil, eris.Wrapf(err, "anomaly: band %d SUHI boundary crop", band.Index)
	}
	res.SUHI = suhi

	log.Debug("band computed",
		zap.Float64("mean_urban", meanUrban),
		zap.Float64("mean_rural", meanRural),
		zap.Float64("band_min", stats.Min),
		zap.Float64("band_max", stats.Max),
	)
	return res, nil
}
