package landcover

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/urbanclimate/suhi-cli/internal/raster"
)

// ReadBoundary loads the study-area boundary polygons from a shapefile.
// Shapes pass through go-geom so ring structure survives, then flatten to
// rasterizable polygons.
func ReadBoundary(path string) ([]raster.Polygon, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "landcover: open boundary %s", path)
	}
	defer func() { _ = reader.Close() }()

	var polys []raster.Polygon
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			continue
		}
		g := shpPolygonToGeom(poly)
		if g == nil {
			continue
		}
		polys = append(polys, geomToPolygons(g)...)
	}
	if len(polys) == 0 {
		return nil, eris.Errorf("landcover: no polygon shapes in %s", path)
	}
	return polys, nil
}

// BoundaryMask rasterizes the boundary onto the target geometry.
func BoundaryMask(polys []raster.Polygon, geom raster.Geometry) *raster.Grid {
	return raster.Rasterize(geom, polys)
}

// shpPolygonToGeom converts a shapefile polygon (parts are rings) to a
// go-geom polygon.
func shpPolygonToGeom(p *shp.Polygon) *geom.Polygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	out := geom.NewPolygon(geom.XY).SetSRID(4326)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		coords := make([]geom.Coord, 0, end-start)
		for _, pt := range p.Points[start:end] {
			coords = append(coords, geom.Coord{pt.X, pt.Y})
		}
		if len(coords) < 3 {
			continue
		}
		if err := out.Push(geom.NewLinearRing(geom.XY).MustSetCoords(coords)); err != nil {
			continue
		}
	}
	if out.NumLinearRings() == 0 {
		return nil
	}
	return out
}

// geomToPolygons flattens a go-geom polygon into raster polygons.
func geomToPolygons(p *geom.Polygon) []raster.Polygon {
	poly := make(raster.Polygon, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		ring := p.LinearRing(i)
		coords := ring.Coords()
		r := make(raster.Ring, 0, len(coords))
		for _, c := range coords {
			r = append(r, [2]float64{c.X(), c.Y()})
		}
		poly = append(poly, r)
	}
	if len(poly) == 0 {
		return nil
	}
	return []raster.Polygon{poly}
}
