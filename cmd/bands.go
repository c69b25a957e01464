package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/urbanclimate/suhi-cli/internal/landcover"
	"github.com/urbanclimate/suhi-cli/internal/raster"
	"github.com/urbanclimate/suhi-cli/internal/terrain"
)

var bandsCmd = &cobra.Command{
	Use:   "bands",
	Short: "Partition the urbanized elevation range into bands",
	Long:  "Restricts the elevation model to urban cells and prints the resulting altitude bands without computing anomalies.",
	RunE: func(_ *cobra.Command, _ []string) error {
		if cfg.Paths.ElevationPath == "" || cfg.Paths.LandCoverPath == "" {
			return eris.New("bands: paths.elevation_path and paths.landcover_path are required")
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

		bands, err := terrain.Partition(elevation, masks.Urban)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "BAND\tLOWER (m)\tUPPER (m)\tINCLUSIVE")
		for _, b := range bands {
			_, _ = fmt.Fprintf(w, "%d\t%.0f\t%.0f\t%t\n", b.Index, b.Lower, b.Upper, b.Inclusive)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(bandsCmd)
}
