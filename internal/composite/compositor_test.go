package composite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"

	"github.com/urbanclimate/suhi-cli/internal/raster"
	"github.com/urbanclimate/suhi-cli/internal/scene"
)

const clearCode = 21824

func testGeom() raster.Geometry {
	return raster.Geometry{
		Width:     10,
		Height:    10,
		Transform: [6]float64{0, 30, 0, 0, 0, -30},
	}
}

func constGrid(v float64) *raster.Grid {
	g := raster.New(testGeom())
	for i := range g.Data {
		g.Data[i] = v
	}
	return g
}

func julyFilter() *scene.Filter {
	return scene.NewFilter(
		time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 8, 31, 0, 0, 0, 0, time.UTC),
	)
}

func obs(id string, dn float64, clearCells int) *scene.Observation {
	qa := constGrid(0)
	for i := 0; i < clearCells; i++ {
		qa.Data[i] = clearCode
	}
	return &scene.Observation{
		ID:         id,
		Sensor:     scene.SensorOLITIRS,
		AcquiredAt: time.Date(2020, 7, 10, 0, 0, 0, 0, time.UTC),
		Thermal:    constGrid(dn),
		QA:         qa,
	}
}

// A fully valid scene plus one 80%-invalid scene must composite to the
// first scene's values exactly.
func TestCompose_RejectedSceneExcluded(t *testing.T) {
	f := julyFilter()

	good, err := f.Apply(obs("GOOD", 44000, 100))
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.Apply(obs("BAD", 50000, 20))
	if !eris.Is(err, scene.ErrPartiallyInvalid) {
		t.Fatalf("expected 80%%-invalid scene to be rejected, got %v", err)
	}

	mean, err := Compose([]*scene.Result{good})
	if err != nil {
		t.Fatal(err)
	}
	for i := range mean.Data {
		if mean.Data[i] != good.LST.Data[i] {
			t.Fatalf("cell %d: composite %f differs from sole accepted scene %f",
				i, mean.Data[i], good.LST.Data[i])
		}
	}
}

func TestCompose_MeanOfTwoScenes(t *testing.T) {
	f := julyFilter()

	a, err := f.Apply(obs("A", 40000, 100))
	if err != nil {
		t.Fatal(err)
	}
	b, err := f.Apply(obs("B", 42000, 100))
	if err != nil {
		t.Fatal(err)
	}

	mean, err := Compose([]*scene.Result{a, b})
	if err != nil {
		t.Fatal(err)
	}
	want := (a.LST.Data[0] + b.LST.Data[0]) / 2
	if mean.Data[0] != want {
		t.Fatalf("got %f, want %f", mean.Data[0], want)
	}
}

// A scene whose rasters cannot be opened must be skipped like any other
// per-scene defect; with no survivors the run ends in ErrNoValidScenes,
// not the read error.
func TestRun_UnreadableSceneSkipped(t *testing.T) {
	dir := t.TempDir()
	c := New(julyFilter())
	refs := []scene.Ref{{
		ID:          "LC08_L2SP_190027_20200710_20200801_02_T1",
		Sensor:      scene.SensorOLITIRS,
		AcquiredAt:  time.Date(2020, 7, 10, 0, 0, 0, 0, time.UTC),
		ThermalPath: filepath.Join(dir, "missing_ST_B10.tif"),
		QAPath:      filepath.Join(dir, "missing_QA_PIXEL.tif"),
	}}

	_, err := c.Run(context.Background(), refs)
	if !eris.Is(err, ErrNoValidScenes) {
		t.Fatalf("expected ErrNoValidScenes after skipping the unreadable scene, got %v", err)
	}
}

func TestCompose_NoScenes(t *testing.T) {
	if _, err := Compose(nil); !eris.Is(err, ErrNoValidScenes) {
		t.Fatalf("expected ErrNoValidScenes, got %v", err)
	}
}
