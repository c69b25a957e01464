// Package terrain partitions the study area into fixed-height elevation
// bands so that anomaly statistics are not biased by altitude.
package terrain

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/urbanclimate/suhi-cli/internal/raster"
)

// BandHeight is the fixed altitude span of one band, in ground units.
const BandHeight = 100.0

// ErrEmptyUrbanArea means the urban mask selects no elevation cells, so
// no altitude range exists to partition. Fatal for the run.
var ErrEmptyUrbanArea = eris.New("terrain: urban mask selects no elevation cells")

// Band is an altitude interval. Multi-band partitions are half-open
// [Lower, Upper); the single-band fallback is inclusive on both ends.
type Band struct {
	Index     int
	Lower     float64
	Upper     float64
	Inclusive bool
}

// Mask restricts the elevation raster to this band's altitude interval.
func (b Band) Mask(elev *raster.Grid) *raster.Grid {
	return elev.MaskRange(b.Lower, b.Upper, b.Inclusive)
}

func roundTo10(x float64) float64 { return math.Round(x/10) * 10 }
func floorTo10(x float64) float64 { return math.Floor(x/10) * 10 }

// Partition splits the urbanized altitude range into BandHeight-tall
// consecutive bands.
//
// The urban minimum is floored to the nearest 10 as the first lower
// bound; the band count is the range rounded to the nearest 10 divided by
// the band height, truncated. The resulting bands may leave the very top
// of the range partially covered — that boundary behavior is pinned by
// tests and deliberately not "corrected". When the range spans less than
// one band, a single inclusive band centered on the mean urban altitude
// is returned instead.
func Partition(elev, urbanMask *raster.Grid) ([]Band, error) {
	urbanElev, err := elev.ApplyMask(urbanMask)
	if err != nil {
		return nil, eris.Wrap(err, "terrain: restrict elevation to urban mask")
	}
	stats, err := urbanElev.Summarize()
	if err != nil {
		if eris.Is(err, raster.ErrAllNoData) {
			return nil, ErrEmptyUrbanArea
		}
		return nil, eris.Wrap(err, "terrain: urban elevation stats")
	}

	minAlt := math.Round(stats.Min)
	maxAlt := math.Round(stats.Max)
	meanAlt := math.Round(stats.Mean)

	lower := floorTo10(minAlt)
	count := int(roundTo10(maxAlt-lower) / BandHeight)

	log := zap.L().With(zap.String("component", "terrain"))

	if count <= 1 {
		band := Band{Lower: meanAlt - 50, Upper: meanAlt + 50, Inclusive: true}
		log.Info("urban altitude range below one band height, using mean-centered band",
			zap.Float64("lower", band.Lower),
			zap.Float64("upper", band.Upper),
		)
		return []Band{band}, nil
	}

	bands := make([]Band, count)
	for i := range bands {
		bands[i] = Band{
			Index: i,
			Lower: lower + float64(i)*BandHeight,
			Upper: lower + float64(i+1)*BandHeight,
		}
	}
	log.Info("elevation bands",
		zap.Int("count", count),
		zap.Float64("min_alt", minAlt),
		zap.Float64("max_alt", maxAlt),
	)
	return bands, nil
}
