package raster

import "github.com/rotisserie/eris"

// FocalMeanFill fills nodata cells with the mean of the valid cells inside
// a square window of the given odd size centered on the cell. Valid cells
// are never modified, and a nodata cell with no valid neighbor stays
// nodata. This is the destriping pass for scan-line gaps: the stripes are
// narrow, so an 11-cell window bridges them without touching measurements.
func (g *Grid) FocalMeanFill(window int) (*Grid, error) {
	if window < 3 || window%2 == 0 {
		return nil, eris.Errorf("raster: focal window must be odd and >= 3, got %d", window)
	}
	half := window / 2
	w, h := g.Geom.Width, g.Geom.Height
	out := g.Clone()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !IsNoData(g.At(x, y)) {
				continue
			}
			sum := 0.0
			n := 0
			for dy := -half; dy <= half; dy++ {
				yy := y + dy
				if yy < 0 || yy >= h {
					continue
				}
				for dx := -half; dx <= half; dx++ {
					xx := x + dx
					if xx < 0 || xx >= w {
						continue
					}
					if v := g.At(xx, yy); !IsNoData(v) {
						sum += v
						n++
					}
				}
			}
			if n > 0 {
				out.Set(x, y, sum/float64(n))
			}
		}
	}
	return out, nil
}
