package scene

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/urbanclimate/suhi-cli/internal/raster"
)

// Landsat Collection 2 Level-2 surface temperature calibration.
const (
	dnScale   = 0.00341802
	dnOffset  = 149.0
	kelvinToC = 273.15
)

// QA_PIXEL clear-sky codes, matched exactly.
const (
	clearCodeOLITIRS = 21824
	clearCodeLegacy  = 5440
)

// MaxInvalidFraction is the rejection threshold: a scene with strictly
// more than this fraction of invalid cells is skipped. Exactly at the
// threshold the scene is accepted.
const MaxInvalidFraction = 0.70

// destripeWindow is the focal window used to bridge scan-line gaps.
const destripeWindow = 11

// slcFailure is the era cutoff after which ETM scenes need destriping.
var slcFailure = time.Date(2003, time.May, 31, 0, 0, 0, 0, time.UTC)

// ErrOutsideRange marks a scene acquired outside the target date range.
// It is a skip, not a failure.
var ErrOutsideRange = eris.New("scene: outside target date range")

// ErrPartiallyInvalid marks a scene rejected because too many cells failed
// the QA check. Non-fatal: the scene is reported and skipped.
var ErrPartiallyInvalid = eris.New("scene: too many invalid cells")

// Filter converts raw observations into validated LST rasters for one
// target date range.
type Filter struct {
	Start time.Time
	End   time.Time
}

// NewFilter builds a filter for the inclusive date range [start, end].
func NewFilter(start, end time.Time) *Filter {
	return &Filter{Start: start, End: end}
}

// clearCode returns the family's clear-sky QA code.
func clearCode(s SensorFamily) float64 {
	if s == SensorOLITIRS {
		return clearCodeOLITIRS
	}
	return clearCodeLegacy
}

// needsDestripe reports whether the observation carries scan-line gaps.
func needsDestripe(obs *Observation) bool {
	return obs.Sensor == SensorETM && obs.AcquiredAt.After(slcFailure)
}

// Result is the outcome of filtering one scene.
type Result struct {
	SceneID         string
	Sensor          SensorFamily
	AcquiredAt      time.Time
	InvalidFraction float64
	LST             *raster.Grid
}

// Apply runs the quality filter on one observation.
//
// It returns ErrOutsideRange when the acquisition date misses the target
// range and ErrPartiallyInvalid when the invalid fraction exceeds the
// threshold; both are recoverable skips. Inputs are never mutated.
func (f *Filter) Apply(obs *Observation) (*Result, error) {
	log := zap.L().With(
		zap.String("component", "scene.filter"),
		zap.String("scene", obs.ID),
	)

	if obs.AcquiredAt.Before(f.Start) || obs.AcquiredAt.After(f.End) {
		return nil, eris.Wrapf(ErrOutsideRange, "%s acquired %s",
			obs.ID, obs.AcquiredAt.Format("2006-01-02"))
	}

	validity := obs.QA.MaskEqual(clearCode(obs.Sensor))

	lst := obs.Thermal.Affine(dnScale, dnOffset).SubScalar(kelvinToC)

	if needsDestripe(obs) {
		filled, err := lst.FocalMeanFill(destripeWindow)
		if err != nil {
			return nil, eris.Wrapf(err, "scene: destripe %s", obs.ID)
		}
		lst = filled
		log.Debug("applied destriping pass", zap.Int("window", destripeWindow))
	}

	masked, err := lst.ApplyMask(validity)
	if err != nil {
		return nil, eris.Wrapf(err, "scene: mask %s", obs.ID)
	}

	invalidFraction := 1 - masked.ValidFraction()
	if invalidFraction > MaxInvalidFraction {
		// Report the measured fraction with the rejection so callers can
		// ledger the decision without recomputing it.
		partial := &Result{
			SceneID:         obs.ID,
			Sensor:          obs.Sensor,
			AcquiredAt:      obs.AcquiredAt,
			InvalidFraction: invalidFraction,
		}
		return partial, eris.Wrapf(ErrPartiallyInvalid, "%s invalid fraction %.2f",
			obs.ID, invalidFraction)
	}

	log.Info("scene accepted",
		zap.String("sensor", string(obs.Sensor)),
		zap.Float64("invalid_fraction", invalidFraction),
	)
	return &Result{
		SceneID:         obs.ID,
		Sensor:          obs.Sensor,
		AcquiredAt:      obs.AcquiredAt,
		InvalidFraction: invalidFraction,
		LST:             masked,
	}, nil
}
