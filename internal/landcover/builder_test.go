package landcover

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/urbanclimate/suhi-cli/internal/raster"
)

func testGeom(w, h int) raster.Geometry {
	return raster.Geometry{
		Width:     w,
		Height:    h,
		Transform: [6]float64{0, 30, 0, 0, 0, -30},
	}
}

// square returns an axis-aligned polygon feature tagged with the given
// land-use value. Coordinates are in grid world units.
func square(tag string, x0, y0, x1, y1 float64) *geojson.Feature {
	f := geojson.NewFeature(orb.Polygon{
		{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}},
	})
	f.Properties[landuseKey] = tag
	return f
}

func collection(features ...*geojson.Feature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		fc.Append(f)
	}
	return fc
}

func TestBuildMask_SelectsCategoryTags(t *testing.T) {
	fc := collection(
		square("residential", 0, -60, 60, 0),
		square("farmland", 60, -60, 120, 0),
		square("forest", 0, -120, 120, -60), // neither category
	)
	geom := testGeom(4, 4)

	urban := BuildMask(fc, Urban, geom)
	rural := BuildMask(fc, RuralReference, geom)

	if urban.At(0, 0) != 1 || urban.At(1, 0) != 1 {
		t.Error("residential cells missing from urban mask")
	}
	if !raster.IsNoData(urban.At(2, 0)) {
		t.Error("farmland cell leaked into urban mask")
	}
	if rural.At(2, 0) != 1 {
		t.Error("farmland cell missing from rural mask")
	}
	if rural.At(0, 2) == 1 || urban.At(0, 2) == 1 {
		t.Error("forest must land in neither mask")
	}
}

func TestBuildMask_EmptyLayer(t *testing.T) {
	mask := BuildMask(collection(), Urban, testGeom(3, 3))
	if !mask.Empty() {
		t.Fatal("empty vector layer must give all-false mask")
	}
}

func TestBuild_SharedCellsStayRural(t *testing.T) {
	// Overlapping urban and rural squares on a grid far apart from edge
	// effects; shared cells must come out rural, not urban.
	fc := collection(
		square("residential", 0, -30, 30, 0),
		square("farmland", 0, -30, 30, 0),
	)
	geom := testGeom(1, 1)

	masks, err := Build(fc, geom)
	if err != nil {
		t.Fatal(err)
	}
	if !raster.IsNoData(masks.Urban.At(0, 0)) {
		t.Error("shared cell must leave the urban mask")
	}
	// The cell is rural before buffering and no urban cell remains to
	// buffer against, so it stays rural.
	if masks.Rural.At(0, 0) != 1 {
		t.Error("shared cell must stay rural")
	}
}

func TestBuild_BufferCorridorRemovedFromRural(t *testing.T) {
	// Urban cell at the left edge, rural strip covering the rest of the
	// row. Rural cells within 100 m of urban must disappear.
	fc := collection(
		square("residential", 0, -30, 30, 0),
		square("farmland", 30, -30, 300, 0),
	)
	geom := testGeom(10, 1)

	masks, err := Build(fc, geom)
	if err != nil {
		t.Fatal(err)
	}

	if masks.Urban.At(0, 0) != 1 {
		t.Fatal("urban seed cell lost")
	}
	// Cells 1..3 lie 30-90 m from the urban cell: inside the corridor.
	for x := 1; x <= 3; x++ {
		if !raster.IsNoData(masks.Rural.At(x, 0)) {
			t.Errorf("rural cell %d inside 100 m buffer survived", x)
		}
	}
	// Cell 4 is 120 m away: outside the corridor.
	if masks.Rural.At(4, 0) != 1 {
		t.Error("rural cell beyond the buffer was removed")
	}

	// Invariant: the two masks never share a true cell.
	for i := range masks.Urban.Data {
		if masks.Urban.Data[i] == 1 && masks.Rural.Data[i] == 1 {
			t.Fatalf("cell %d is both urban and rural", i)
		}
	}
}
