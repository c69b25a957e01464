package raster

// Stats summarizes the valid cells of a grid.
type Stats struct {
	Min   float64
	Max   float64
	Mean  float64
	Count int
}

// Summarize computes min, max, and mean over the valid cells of g.
// Returns ErrAllNoData when the grid has no valid cells.
func (g *Grid) Summarize() (Stats, error) {
	var s Stats
	sum := 0.0
	for _, v := range g.Data {
		if IsNoData(v) {
			continue
		}
		if s.Count == 0 {
			s.Min, s.Max = v, v
		} else {
			if v < s.Min {
				s.Min = v
			}
			if v > s.Max {
				s.Max = v
			}
		}
		sum += v
		s.Count++
	}
	if s.Count == 0 {
		return s, ErrAllNoData
	}
	s.Mean = sum / float64(s.Count)
	return s, nil
}

// Mean returns the mean of the valid cells, or ErrAllNoData.
func (g *Grid) Mean() (float64, error) {
	s, err := g.Summarize()
	if err != nil {
		return 0, err
	}
	return s.Mean, nil
}
