// Package raster provides an in-memory single-band raster grid with
// nodata-aware elementwise algebra, statistics, and GeoTIFF persistence.
//
// All grids are row-major float64 buffers over a GDAL-style geotransform.
// The nodata rule for every operation in this package is: nodata in any
// operand produces nodata in the result.
package raster

import (
	"math"

	"github.com/rotisserie/eris"
)

// NoData is the sentinel value used for invalid cells in every grid
// produced by this package. Rasters read from disk have their declared
// nodata value translated to this sentinel on load.
const NoData = -9999.0

// geoTransformEps is the tolerance used when comparing geotransforms.
const geoTransformEps = 1e-6

// Geometry describes the georeferencing of a grid: pixel dimensions, a
// six-element GDAL geotransform, and a projection in WKT.
type Geometry struct {
	Width     int
	Height    int
	Transform [6]float64
	Projection string
}

// CellSize returns the ground size of one cell along the x axis.
func (g Geometry) CellSize() float64 {
	return math.Abs(g.Transform[1])
}

// Equal reports whether two geometries describe the same grid: identical
// dimensions, geotransforms within tolerance, and the same projection.
func (g Geometry) Equal(o Geometry) bool {
	if g.Width != o.Width || g.Height != o.Height {
		return false
	}
	for i := range g.Transform {
		if math.Abs(g.Transform[i]-o.Transform[i]) > geoTransformEps {
			return false
		}
	}
	return g.Projection == o.Projection
}

// Grid is a single-band raster: a Geometry plus a row-major cell buffer.
type Grid struct {
	Geom Geometry
	Data []float64
}

// New allocates a grid with every cell set to nodata.
func New(geom Geometry) *Grid {
	data := make([]float64, geom.Width*geom.Height)
	for i := range data {
		data[i] = NoData
	}
	return &Grid{Geom: geom, Data: data}
}

// IsNoData reports whether v is the nodata sentinel or NaN.
func IsNoData(v float64) bool {
	return v == NoData || math.IsNaN(v)
}

// At returns the cell value at column x, row y.
func (g *Grid) At(x, y int) float64 {
	return g.Data[y*g.Geom.Width+x]
}

// Set assigns the cell value at column x, row y.
func (g *Grid) Set(x, y int, v float64) {
	g.Data[y*g.Geom.Width+x] = v
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	out := &Grid{Geom: g.Geom, Data: make([]float64, len(g.Data))}
	copy(out.Data, g.Data)
	return out
}

// CountValid returns the number of non-nodata cells.
func (g *Grid) CountValid() int {
	n := 0
	for _, v := range g.Data {
		if !IsNoData(v) {
			n++
		}
	}
	return n
}

// ValidFraction returns valid cells / total cells.
func (g *Grid) ValidFraction() float64 {
	if len(g.Data) == 0 {
		return 0
	}
	return float64(g.CountValid()) / float64(len(g.Data))
}

// Empty reports whether the grid has no valid cells.
func (g *Grid) Empty() bool {
	return g.CountValid() == 0
}

// checkSameGeometry returns ErrGeometryMismatch when the two grids do not
// share grid geometry. Callers are expected to reconcile via Reconcile
// before retrying, never to ignore the mismatch.
func checkSameGeometry(a, b *Grid) error {
	if !a.Geom.Equal(b.Geom) {
		return eris.Wrapf(ErrGeometryMismatch,
			"raster: %dx%d vs %dx%d", a.Geom.Width, a.Geom.Height, b.Geom.Width, b.Geom.Height)
	}
	return nil
}
