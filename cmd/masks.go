package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/urbanclimate/suhi-cli/internal/landcover"
	"github.com/urbanclimate/suhi-cli/internal/raster"
)

var masksCmd = &cobra.Command{
	Use:   "masks",
	Short: "Build the land-cover and boundary masks only",
	Long:  "Rasterizes the urban, rural-reference and study-boundary masks onto the elevation grid and writes them for inspection.",
	RunE: func(_ *cobra.Command, _ []string) error {
		if cfg.Paths.ElevationPath == "" || cfg.Paths.LandCoverPath == "" ||
			cfg.Paths.BoundaryPath == "" || cfg.Paths.OutputDir == "" {
			return eris.New("masks: paths.elevation_path, paths.landcover_path, paths.boundary_path and paths.output_dir are required")
		}
		if err := os.MkdirAll(cfg.Paths.OutputDir, 0o755); err != nil {
			return eris.Wrap(err, "masks: create output dir")
		}

		elevation, err := raster.Read(cfg.Paths.ElevationPath)
		if err != nil {
			return err
		}

		fc, err := landcover.LoadGeoJSON(cfg.Paths.LandCoverPath)
		if err != nil {
			return err
		}
		masks, err := landcover.Build(fc, elevation.Geom)
		if err != nil {
			return err
		}

		boundaryPolys, err := landcover.ReadBoundary(cfg.Paths.BoundaryPath)
		if err != nil {
			return err
		}
		boundary := landcover.BoundaryMask(boundaryPolys, elevation.Geom)

		for _, m := range []struct {
			kind string
			grid *raster.Grid
		}{
			{"urban_mask", masks.Urban},
			{"rural_mask", masks.Rural},
			{"boundary_mask", boundary},
		} {
			path := outName(cfg.Paths.OutputDir, cfg.City.Name, cfg.Pipeline.Season, cfg.Pipeline.Year, m.kind, "tif")
			if err := raster.Write(path, m.grid); err != nil {
				return err
			}
			zap.L().Info("mask written", zap.String("kind", m.kind), zap.String("path", path))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(masksCmd)
}
