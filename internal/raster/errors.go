package raster

import "github.com/rotisserie/eris"

// ErrGeometryMismatch indicates rasters with differing CRS, extent, or
// resolution were supplied to one operation. It is recoverable by warping
// the offending raster onto the reference geometry (see Reconcile).
var ErrGeometryMismatch = eris.New("raster: grid geometry mismatch")

// ErrAllNoData indicates a statistical reduction over a grid with zero
// valid cells.
var ErrAllNoData = eris.New("raster: no valid cells")
