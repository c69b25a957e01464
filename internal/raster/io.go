package raster

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var registerOnce sync.Once

// openOptions silences GDAL warnings; anything stronger still fails the
// operation through godal's normal error return.
func openOptions() godal.OpenOption {
	return godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
		if ec == godal.CE_Warning {
			zap.L().Debug("gdal warning", zap.Int("code", code), zap.String("msg", msg))
			return nil
		}
		return eris.Errorf("gdal: %s", msg)
	})
}

// Read loads the first band of a GeoTIFF into a Grid, translating the
// file's declared nodata value to the package sentinel.
func Read(path string) (*Grid, error) {
	registerOnce.Do(godal.RegisterAll)

	ds, err := godal.Open(path, openOptions())
	if err != nil {
		return nil, eris.Wrapf(err, "raster: open %s", path)
	}
	defer ds.Close()

	bands := ds.Bands()
	if len(bands) == 0 {
		return nil, eris.Errorf("raster: %s has no bands", path)
	}
	band := bands[0]

	width := band.Structure().SizeX
	height := band.Structure().SizeY

	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, eris.Wrapf(err, "raster: geotransform of %s", path)
	}

	var projection string
	if sr := ds.SpatialRef(); sr != nil {
		wkt, wktErr := sr.WKT()
		if wktErr == nil {
			projection = wkt
		}
	}

	data := make([]float64, width*height)
	if err := band.Read(0, 0, data, width, height); err != nil {
		return nil, eris.Wrapf(err, "raster: read band of %s", path)
	}

	if nd, ok := band.NoData(); ok && nd != NoData {
		for i, v := range data {
			if v == nd {
				data[i] = NoData
			}
		}
	}

	return &Grid{
		Geom: Geometry{Width: width, Height: height, Transform: gt, Projection: projection},
		Data: data,
	}, nil
}

// Write persists a grid as a single-band float32 GeoTIFF with the fixed
// nodata sentinel. An existing file at path is overwritten.
func Write(path string, g *Grid) error {
	registerOnce.Do(godal.RegisterAll)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "raster: create output dir for %s", path)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "raster: remove stale %s", path)
	}

	ds, err := godal.Create(godal.GTiff, path, 1, godal.Float32, g.Geom.Width, g.Geom.Height)
	if err != nil {
		return eris.Wrapf(err, "raster: create %s", path)
	}
	defer ds.Close()

	if err := ds.SetGeoTransform(g.Geom.Transform); err != nil {
		return eris.Wrapf(err, "raster: set geotransform on %s", path)
	}
	if g.Geom.Projection != "" {
		sr, srErr := godal.NewSpatialRefFromWKT(g.Geom.Projection)
		if srErr != nil {
			return eris.Wrapf(srErr, "raster: parse projection for %s", path)
		}
		defer sr.Close()
		if err := ds.SetSpatialRef(sr); err != nil {
			return eris.Wrapf(err, "raster: set projection on %s", path)
		}
	}

	band := ds.Bands()[0]
	if err := band.SetNoData(NoData); err != nil {
		return eris.Wrapf(err, "raster: set nodata on %s", path)
	}

	buf := make([]float32, len(g.Data))
	for i, v := range g.Data {
		buf[i] = float32(v)
	}
	if err := band.Write(0, 0, buf, g.Geom.Width, g.Geom.Height); err != nil {
		return eris.Wrapf(err, "raster: write band of %s", path)
	}
	return nil
}

// Reconcile returns g unchanged when it already matches the reference
// geometry, and otherwise warps it onto that geometry with bilinear
// resampling. Mismatches are never ignored: the caller either gets a
// matching grid or an error.
func Reconcile(g *Grid, ref Geometry) (*Grid, error) {
	if g.Geom.Equal(ref) {
		return g, nil
	}
	registerOnce.Do(godal.RegisterAll)

	zap.L().Debug("reconciling grid geometry",
		zap.Int("src_width", g.Geom.Width), zap.Int("src_height", g.Geom.Height),
		zap.Int("ref_width", ref.Width), zap.Int("ref_height", ref.Height),
	)

	tmpDir, err := os.MkdirTemp("", "suhi-warp-")
	if err != nil {
		return nil, eris.Wrap(err, "raster: warp temp dir")
	}
	defer os.RemoveAll(tmpDir)

	srcPath := filepath.Join(tmpDir, "src.tif")
	dstPath := filepath.Join(tmpDir, "dst.tif")

	if err := Write(srcPath, g); err != nil {
		return nil, eris.Wrap(ErrGeometryMismatch, eris.ToString(err, false))
	}
	if err := Write(dstPath, New(ref)); err != nil {
		return nil, eris.Wrap(ErrGeometryMismatch, eris.ToString(err, false))
	}

	src, err := godal.Open(srcPath, openOptions())
	if err != nil {
		return nil, eris.Wrap(err, "raster: reopen warp source")
	}
	defer src.Close()

	dst, err := godal.Open(dstPath, godal.Update(), openOptions())
	if err != nil {
		return nil, eris.Wrap(err, "raster: open warp destination")
	}

	switches := []string{
		"-r", "bilinear",
		"-srcnodata", "-9999",
		"-dstnodata", "-9999",
	}
	if err := dst.WarpInto([]*godal.Dataset{src}, switches); err != nil {
		dst.Close()
		return nil, eris.Wrapf(ErrGeometryMismatch, "warp failed: %v", err)
	}
	if err := dst.Close(); err != nil {
		return nil, eris.Wrap(err, "raster: flush warp destination")
	}

	return Read(dstPath)
}
