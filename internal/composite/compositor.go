// Package composite reduces accepted per-scene LST rasters into one
// seasonal mean raster.
package composite

import (
	"context"
	"runtime"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/urbanclimate/suhi-cli/internal/raster"
	"github.com/urbanclimate/suhi-cli/internal/scene"
)

// ErrNoValidScenes marks a date range for which zero scenes passed the
// quality filter. Fatal: nothing downstream can run without a composite.
var ErrNoValidScenes = eris.New("composite: no scenes passed the quality filter")

// Decision records the filter outcome for one scene, for the run ledger.
type Decision struct {
	SceneID         string             `csv:"scene_id"`
	Sensor          scene.SensorFamily `csv:"sensor"`
	AcquiredAt      time.Time          `csv:"acquired_at"`
	Accepted        bool               `csv:"accepted"`
	InvalidFraction float64            `csv:"invalid_fraction"`
	Reason          string             `csv:"reason"`
}

// Composite is the output of one seasonal reduction.
type Composite struct {
	LST       *raster.Grid
	Decisions []Decision
	Accepted  int
}

// Compositor filters scenes for a date range and composites the survivors.
// Scene filtering is embarrassingly parallel; each worker owns its raster
// buffers and results only meet at the mean reduction.
type Compositor struct {
	Filter      *scene.Filter
	Concurrency int
}

// New returns a compositor with the given filter and a default worker
// count of GOMAXPROCS.
func New(filter *scene.Filter) *Compositor {
	return &Compositor{Filter: filter, Concurrency: runtime.GOMAXPROCS(0)}
}

// Run loads and filters every referenced scene, then reduces the accepted
// LST rasters to their cell-wise seasonal mean. Scenes with mismatched
// grid geometry are warped onto the grid of the first accepted scene in
// input order before the reduction.
func (c *Compositor) Run(ctx context.Context, refs []scene.Ref) (*Composite, error) {
	log := zap.L().With(zap.String("component", "composite"))

	type slot struct {
		lst      *raster.Grid
		decision Decision
	}
	slots := make([]slot, len(refs))

	g, ctx := errgroup.WithContext(ctx)
	limit := c.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(limit)

	for i, ref := range refs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			decision := Decision{
				SceneID:    ref.ID,
				Sensor:     ref.Sensor,
				AcquiredAt: ref.AcquiredAt,
			}

			obs, err := scene.Load(ref)
			if err != nil {
				// An unreadable scene is a per-scene defect like a failed
				// quality check; it leaves the ledger entry, not the run.
				decision.Reason = eris.Cause(err).Error()
				log.Warn("scene unreadable, skipped",
					zap.String("scene", ref.ID),
					zap.Error(err),
				)
				slots[i].decision = decision
				return nil
			}
			res, err := c.Filter.Apply(obs)
			switch {
			case eris.Is(err, scene.ErrOutsideRange), eris.Is(err, scene.ErrPartiallyInvalid):
				decision.Reason = eris.Cause(err).Error()
				if res != nil {
					decision.InvalidFraction = res.InvalidFraction
				}
				log.Info("scene skipped",
					zap.String("scene", ref.ID),
					zap.String("reason", decision.Reason),
				)
			case err != nil:
				return eris.Wrapf(err, "composite: filter scene %s", ref.ID)
			default:
				decision.Accepted = true
				decision.InvalidFraction = res.InvalidFraction
				slots[i].lst = res.LST
			}
			slots[i].decision = decision
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Composite{Decisions: make([]Decision, 0, len(refs))}
	var accepted []*raster.Grid
	for _, s := range slots {
		out.Decisions = append(out.Decisions, s.decision)
		if s.lst != nil {
			accepted = append(accepted, s.lst)
		}
	}
	if len(accepted) == 0 {
		return nil, eris.Wrapf(ErrNoValidScenes, "%d scenes considered", len(refs))
	}
	out.Accepted = len(accepted)

	// Reconcile stragglers onto the first accepted grid's geometry.
	ref := accepted[0].Geom
	for i, lst := range accepted {
		fixed, err := raster.Reconcile(lst, ref)
		if err != nil {
			return nil, eris.Wrap(err, "composite: reconcile scene grid")
		}
		accepted[i] = fixed
	}

	mean, err := raster.MeanStack(accepted)
	if err != nil {
		return nil, eris.Wrap(err, "composite: seasonal mean")
	}
	out.LST = mean

	log.Info("seasonal composite built",
		zap.Int("scenes_considered", len(refs)),
		zap.Int("scenes_accepted", out.Accepted),
	)
	return out, nil
}

// Compose reduces already-filtered LST rasters; used when the caller has
// its own filtering loop.
func Compose(results []*scene.Result) (*raster.Grid, error) {
	if len(results) == 0 {
		return nil, ErrNoValidScenes
	}
	grids := make([]*raster.Grid, len(results))
	for i, r := range results {
		grids[i] = r.LST
	}
	mean, err := raster.MeanStack(grids)
	if err != nil {
		return nil, eris.Wrap(err, "composite: seasonal mean")
	}
	return mean, nil
}
