package raster

import (
	"math"
	"sort"
)

// Ring is a closed sequence of (x, y) world coordinates. The first and
// last vertex do not need to repeat.
type Ring [][2]float64

// Polygon is an outer ring followed by any number of holes. Rasterization
// uses even-odd parity, so holes need no orientation convention.
type Polygon []Ring

// Rasterize burns a set of polygons onto the target geometry as a boolean
// mask: a cell is true when its center lies inside any one polygon.
// Parity is evaluated per polygon, so overlapping polygons dissolve into
// one mask instead of cancelling. An empty polygon set yields an
// all-false mask.
func Rasterize(geom Geometry, polys []Polygon) *Grid {
	out := New(geom)
	for _, poly := range polys {
		burnPolygon(out, poly)
	}
	return out
}

// burnPolygon scanline-fills one polygon onto the mask.
func burnPolygon(out *Grid, poly Polygon) {
	geom := out.Geom
	originX := geom.Transform[0]
	originY := geom.Transform[3]
	dx := geom.Transform[1]
	dy := geom.Transform[5]

	for row := 0; row < geom.Height; row++ {
		cy := originY + (float64(row)+0.5)*dy

		var xs []float64
		for _, ring := range poly {
			n := len(ring)
			if n < 3 {
				continue
			}
			for i := 0; i < n; i++ {
				x1, y1 := ring[i][0], ring[i][1]
				x2, y2 := ring[(i+1)%n][0], ring[(i+1)%n][1]
				if (y1 <= cy) == (y2 <= cy) {
					continue
				}
				t := (cy - y1) / (y2 - y1)
				xs = append(xs, x1+t*(x2-x1))
			}
		}
		if len(xs) < 2 {
			continue
		}
		sort.Float64s(xs)

		for i := 0; i+1 < len(xs); i += 2 {
			lo := int(math.Ceil((xs[i]-originX)/dx - 0.5))
			hi := int(math.Floor((xs[i+1]-originX)/dx - 0.5))
			if lo < 0 {
				lo = 0
			}
			if hi >= geom.Width {
				hi = geom.Width - 1
			}
			for col := lo; col <= hi; col++ {
				out.Set(col, row, 1)
			}
		}
	}
}
