package raster

// Affine returns scale*cell + offset for every valid cell. Nodata cells
// stay nodata. This is the digital-number calibration primitive.
func (g *Grid) Affine(scale, offset float64) *Grid {
	out := g.Clone()
	for i, v := range g.Data {
		if IsNoData(v) {
			out.Data[i] = NoData
			continue
		}
		out.Data[i] = v*scale + offset
	}
	return out
}

// AddScalar returns cell + s for every valid cell.
func (g *Grid) AddScalar(s float64) *Grid {
	return g.Affine(1, s)
}

// SubScalar returns cell - s for every valid cell.
func (g *Grid) SubScalar(s float64) *Grid {
	return g.Affine(1, -s)
}

// Sub returns the elementwise difference g - o. Nodata in either operand
// yields nodata.
func (g *Grid) Sub(o *Grid) (*Grid, error) {
	if err := checkSameGeometry(g, o); err != nil {
		return nil, err
	}
	out := New(g.Geom)
	for i := range g.Data {
		a, b := g.Data[i], o.Data[i]
		if IsNoData(a) || IsNoData(b) {
			continue
		}
		out.Data[i] = a - b
	}
	return out, nil
}

// Div returns the elementwise quotient g / o. Nodata in either operand, or
// a zero divisor, yields nodata.
func (g *Grid) Div(o *Grid) (*Grid, error) {
	if err := checkSameGeometry(g, o); err != nil {
		return nil, err
	}
	out := New(g.Geom)
	for i := range g.Data {
		a, b := g.Data[i], o.Data[i]
		if IsNoData(a) || IsNoData(b) || b == 0 {
			continue
		}
		out.Data[i] = a / b
	}
	return out, nil
}

// Normalize maps every valid cell to (cell - lo) / (hi - lo). The caller
// must guarantee hi != lo; use Stats to detect the degenerate range first.
func (g *Grid) Normalize(lo, hi float64) *Grid {
	return g.Affine(1/(hi-lo), -lo/(hi-lo))
}

// Clamp limits every valid cell to the closed interval [lo, hi].
func (g *Grid) Clamp(lo, hi float64) *Grid {
	out := g.Clone()
	for i, v := range g.Data {
		if IsNoData(v) {
			continue
		}
		if v < lo {
			out.Data[i] = lo
		} else if v > hi {
			out.Data[i] = hi
		}
	}
	return out
}
