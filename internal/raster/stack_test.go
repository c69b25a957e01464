package raster

import (
	"math/rand"
	"testing"
)

func TestMeanStack_PerCellNoData(t *testing.T) {
	a := gridOf(t, 2, 1, []float64{10, NoData})
	b := gridOf(t, 2, 1, []float64{20, 4})

	out, err := MeanStack([]*Grid{a, b})
	if err != nil {
		t.Fatal(err)
	}
	if out.At(0, 0) != 15 {
		t.Errorf("got %f, want 15", out.At(0, 0))
	}
	if out.At(1, 0) != 4 {
		t.Errorf("single valid observation must pass through, got %f", out.At(1, 0))
	}
}

func TestMeanStack_AllNoDataCellStaysNoData(t *testing.T) {
	a := gridOf(t, 1, 1, []float64{NoData})
	b := gridOf(t, 1, 1, []float64{NoData})

	out, err := MeanStack([]*Grid{a, b})
	if err != nil {
		t.Fatal(err)
	}
	if !IsNoData(out.At(0, 0)) {
		t.Fatal("cell nodata in every scene must stay nodata")
	}
}

func TestMeanStack_OrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	grids := make([]*Grid, 4)
	for i := range grids {
		g := New(testGeom(4, 4))
		for j := range g.Data {
			if rng.Float64() < 0.2 {
				continue
			}
			g.Data[j] = rng.Float64() * 40
		}
		grids[i] = g
	}

	forward, err := MeanStack(grids)
	if err != nil {
		t.Fatal(err)
	}
	reversed, err := MeanStack([]*Grid{grids[3], grids[2], grids[1], grids[0]})
	if err != nil {
		t.Fatal(err)
	}
	for i := range forward.Data {
		if forward.Data[i] != reversed.Data[i] {
			t.Fatalf("cell %d differs across input orders", i)
		}
	}
}

func TestMeanStack_Empty(t *testing.T) {
	if _, err := MeanStack(nil); err == nil {
		t.Fatal("empty stack accepted")
	}
}

func TestMergeFirst_PrefersFirstNonNoData(t *testing.T) {
	a := gridOf(t, 3, 1, []float64{1, NoData, 5})
	b := gridOf(t, 3, 1, []float64{2, 3, 6})

	out, err := MergeFirst([]*Grid{a, b})
	if err != nil {
		t.Fatal(err)
	}
	if out.At(0, 0) != 1 {
		t.Errorf("overlap must keep first value, got %f", out.At(0, 0))
	}
	if out.At(1, 0) != 3 {
		t.Errorf("gap must take later value, got %f", out.At(1, 0))
	}
}

func TestRasterize_Square(t *testing.T) {
	// A 60x60 m square over cells (1,1)..(2,2) of a 4x4 grid at 30 m.
	poly := Polygon{Ring{{30, -30}, {90, -30}, {90, -90}, {30, -90}}}

	mask := Rasterize(testGeom(4, 4), []Polygon{poly})

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			inside := x >= 1 && x <= 2 && y >= 1 && y <= 2
			got := mask.At(x, y) == 1
			if got != inside {
				t.Errorf("cell (%d,%d): inside=%v got=%v", x, y, inside, got)
			}
		}
	}
}

func TestRasterize_OverlapDissolves(t *testing.T) {
	a := Polygon{Ring{{0, 0}, {60, 0}, {60, -60}, {0, -60}}}
	b := Polygon{Ring{{30, -30}, {90, -30}, {90, -90}, {30, -90}}}

	mask := Rasterize(testGeom(3, 3), []Polygon{a, b})

	// The overlapping cell (1,1) must stay true, not cancel to false.
	if mask.At(1, 1) != 1 {
		t.Fatal("overlapping polygons cancelled")
	}
	if mask.CountValid() != 7 {
		t.Fatalf("got %d cells, want 7", mask.CountValid())
	}
}

func TestRasterize_EmptyLayer(t *testing.T) {
	mask := Rasterize(testGeom(3, 3), nil)
	if !mask.Empty() {
		t.Fatal("empty layer must produce all-false mask")
	}
}
