package raster

import (
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"
)

// skipWithoutGDAL skips tests that need a working GDAL installation.
func skipWithoutGDAL(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "check.tif")
	if err := Write(path, New(testGeom(1, 1))); err != nil {
		t.Skipf("gdal unavailable: %v", err)
	}
}

// Persisted grids must reload with every non-nodata cell value intact.
// Values are float32-representable because the files store float32.
func TestWriteReadRoundTrip(t *testing.T) {
	skipWithoutGDAL(t)

	g := gridOf(t, 2, 2, []float64{1.5, -2.25, NoData, 42})
	path := filepath.Join(t.TempDir(), "lst.tif")

	if err := Write(path, g); err != nil {
		t.Fatal(err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}

	if !got.Geom.Equal(g.Geom) {
		t.Fatalf("geometry changed on reload: %+v vs %+v", got.Geom, g.Geom)
	}
	for i, want := range g.Data {
		if IsNoData(want) {
			if !IsNoData(got.Data[i]) {
				t.Errorf("cell %d: nodata not preserved, got %f", i, got.Data[i])
			}
			continue
		}
		if got.Data[i] != want {
			t.Errorf("cell %d: got %f, want %f", i, got.Data[i], want)
		}
	}
}

// Files declaring a foreign nodata value must arrive with those cells
// translated to the package sentinel.
func TestReadTranslatesFileNoData(t *testing.T) {
	skipWithoutGDAL(t)

	path := filepath.Join(t.TempDir(), "foreign.tif")
	ds, err := godal.Create(godal.GTiff, path, 1, godal.Float32, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := ds.SetGeoTransform([6]float64{0, 30, 0, 0, 0, -30}); err != nil {
		t.Fatal(err)
	}
	band := ds.Bands()[0]
	if err := band.SetNoData(-32768); err != nil {
		t.Fatal(err)
	}
	if err := band.Write(0, 0, []float32{-32768, 7}, 2, 1); err != nil {
		t.Fatal(err)
	}
	if err := ds.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if !IsNoData(got.Data[0]) {
		t.Errorf("foreign nodata cell not translated, got %f", got.Data[0])
	}
	if got.Data[1] != 7 {
		t.Errorf("data cell changed: got %f, want 7", got.Data[1])
	}
}

func TestReconcile_MatchingGeometryIsIdentity(t *testing.T) {
	g := gridOf(t, 2, 2, []float64{1, 2, 3, 4})

	out, err := Reconcile(g, g.Geom)
	if err != nil {
		t.Fatal(err)
	}
	if out != g {
		t.Fatal("matching geometry should return the grid unchanged")
	}
}

// A grid shifted one pixel east of the reference must come back on the
// reference geometry, with the overlap preserved and the uncovered
// column nodata.
func TestReconcile_WarpsOntoReference(t *testing.T) {
	skipWithoutGDAL(t)

	src := New(Geometry{Width: 4, Height: 4, Transform: [6]float64{0, 30, 0, 0, 0, -30}})
	for i := range src.Data {
		src.Data[i] = 5
	}
	ref := Geometry{Width: 4, Height: 4, Transform: [6]float64{30, 30, 0, 0, 0, -30}}

	out, err := Reconcile(src, ref)
	if err != nil {
		t.Fatal(err)
	}

	if !out.Geom.Equal(ref) {
		t.Fatalf("warp did not land on reference geometry: %+v", out.Geom)
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 3; x++ {
			if v := out.At(x, y); v != 5 {
				t.Errorf("cell (%d,%d): got %f, want 5", x, y, v)
			}
		}
		if v := out.At(3, y); !IsNoData(v) {
			t.Errorf("cell (3,%d): expected nodata beyond source extent, got %f", y, v)
		}
	}
}
