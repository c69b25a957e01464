package raster

import "github.com/rotisserie/eris"

// MeanStack reduces a stack of grids to their cell-wise mean, skipping
// nodata independently per cell. A cell is nodata in the result only when
// it is nodata in every input. The reduction is commutative, so callers
// may compute partial sums in any order.
func MeanStack(grids []*Grid) (*Grid, error) {
	if len(grids) == 0 {
		return nil, eris.New("raster: mean of empty stack")
	}
	ref := grids[0]
	for _, g := range grids[1:] {
		if err := checkSameGeometry(ref, g); err != nil {
			return nil, err
		}
	}
	sum := make([]float64, len(ref.Data))
	count := make([]int, len(ref.Data))
	for _, g := range grids {
		for i, v := range g.Data {
			if IsNoData(v) {
				continue
			}
			sum[i] += v
			count[i]++
		}
	}
	out := New(ref.Geom)
	for i := range sum {
		if count[i] > 0 {
			out.Data[i] = sum[i] / float64(count[i])
		}
	}
	return out, nil
}

// MergeFirst combines grids by taking, per cell, the first non-nodata
// value in input order. Elevation bands partition by altitude so genuine
// overlap does not occur, but coincidental overlap at band seams must not
// fail the merge.
func MergeFirst(grids []*Grid) (*Grid, error) {
	if len(grids) == 0 {
		return nil, eris.New("raster: merge of empty set")
	}
	ref := grids[0]
	for _, g := range grids[1:] {
		if err := checkSameGeometry(ref, g); err != nil {
			return nil, err
		}
	}
	out := New(ref.Geom)
	for _, g := range grids {
		for i, v := range g.Data {
			if IsNoData(v) || !IsNoData(out.Data[i]) {
				continue
			}
			out.Data[i] = v
		}
	}
	return out, nil
}
