package raster

import "math"

// Masks are plain grids where a true cell holds 1 and a false cell holds
// nodata. Keeping them as grids means the regular nodata-propagation rule
// doubles as mask application.

// MaskWhere returns a mask that is true wherever pred holds for a valid
// cell of g.
func (g *Grid) MaskWhere(pred func(v float64) bool) *Grid {
	out := New(g.Geom)
	for i, v := range g.Data {
		if !IsNoData(v) && pred(v) {
			out.Data[i] = 1
		}
	}
	return out
}

// MaskEqual returns a mask of cells exactly equal to code. This is the QA
// bitmask match: clear-sky codes are compared exactly, never bitwise.
func (g *Grid) MaskEqual(code float64) *Grid {
	return g.MaskWhere(func(v float64) bool { return v == code })
}

// MaskRange returns a mask of cells within [lo, hi) — or [lo, hi] when
// inclusive is set, which the single elevation band fallback uses.
func (g *Grid) MaskRange(lo, hi float64, inclusive bool) *Grid {
	return g.MaskWhere(func(v float64) bool {
		if inclusive {
			return v >= lo && v <= hi
		}
		return v >= lo && v < hi
	})
}

// ApplyMask keeps cells of g where mask is true and sets all others to
// nodata.
func (g *Grid) ApplyMask(mask *Grid) (*Grid, error) {
	if err := checkSameGeometry(g, mask); err != nil {
		return nil, err
	}
	out := New(g.Geom)
	for i, v := range g.Data {
		if IsNoData(v) || IsNoData(mask.Data[i]) {
			continue
		}
		out.Data[i] = v
	}
	return out, nil
}

// SubtractMask returns g with every cell that is true in mask set to
// false. Both operands are masks.
func (g *Grid) SubtractMask(mask *Grid) (*Grid, error) {
	if err := checkSameGeometry(g, mask); err != nil {
		return nil, err
	}
	out := New(g.Geom)
	for i, v := range g.Data {
		if IsNoData(v) || !IsNoData(mask.Data[i]) {
			continue
		}
		out.Data[i] = 1
	}
	return out, nil
}

// Dilate grows a mask by radius ground units: any false cell within that
// distance of a true cell becomes true. This implements vector-style
// buffering on the raster side, where it stays deterministic on the grid.
func (g *Grid) Dilate(radius float64) *Grid {
	cell := g.Geom.CellSize()
	if cell <= 0 {
		return g.Clone()
	}
	r := int(math.Ceil(radius / cell))
	if r <= 0 {
		return g.Clone()
	}
	w, h := g.Geom.Width, g.Geom.Height
	out := g.Clone()
	r2 := (radius / cell) * (radius / cell)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !IsNoData(g.At(x, y)) {
				continue
			}
			found := false
			for dy := -r; dy <= r && !found; dy++ {
				yy := y + dy
				if yy < 0 || yy >= h {
					continue
				}
				for dx := -r; dx <= r; dx++ {
					xx := x + dx
					if xx < 0 || xx >= w {
						continue
					}
					if float64(dx*dx+dy*dy) > r2 {
						continue
					}
					if !IsNoData(g.At(xx, yy)) {
						found = true
						break
					}
				}
			}
			if found {
				out.Set(x, y, 1)
			}
		}
	}
	return out
}
