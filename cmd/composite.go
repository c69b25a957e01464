package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/urbanclimate/suhi-cli/internal/composite"
	"github.com/urbanclimate/suhi-cli/internal/config"
	"github.com/urbanclimate/suhi-cli/internal/raster"
	"github.com/urbanclimate/suhi-cli/internal/report"
	"github.com/urbanclimate/suhi-cli/internal/scene"
)

var (
	compositeSeason string
	compositeYear   int
)

var compositeCmd = &cobra.Command{
	Use:   "composite",
	Short: "Build the seasonal mean composite only",
	Long:  "Filters scenes for the season, writes the mean land surface temperature raster and the per-scene decision ledger without running the later stages.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if compositeSeason != "" {
			cfg.Pipeline.Season = compositeSeason
		}
		if compositeYear != 0 {
			cfg.Pipeline.Year = compositeYear
		}
		if cfg.Paths.ScenesDir == "" || cfg.Paths.OutputDir == "" {
			return eris.New("composite: paths.scenes_dir and paths.output_dir are required")
		}

		start, end, err := config.SeasonRange(cfg.Pipeline.Season, cfg.Pipeline.Year)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(cfg.Paths.OutputDir, 0o755); err != nil {
			return eris.Wrap(err, "composite: create output dir")
		}

		refs, err := scene.Discover(cfg.Paths.ScenesDir)
		if err != nil {
			return err
		}

		compositor := composite.New(scene.NewFilter(start, end))
		if cfg.Pipeline.Concurrency > 0 {
			compositor.Concurrency = cfg.Pipeline.Concurrency
		}
		comp, err := compositor.Run(ctx, refs)
		if err != nil {
			return err
		}

		lstPath := outName(cfg.Paths.OutputDir, cfg.City.Name, cfg.Pipeline.Season, cfg.Pipeline.Year, "lst_mean", "tif")
		if err := raster.Write(lstPath, comp.LST); err != nil {
			return err
		}
		ledgerPath := outName(cfg.Paths.OutputDir, cfg.City.Name, cfg.Pipeline.Season, cfg.Pipeline.Year, "scenes", "csv")
		if err := report.WriteSceneLedger(ledgerPath, comp.Decisions); err != nil {
			return err
		}

		zap.L().Info("composite written",
			zap.Int("scenes_considered", len(comp.Decisions)),
			zap.Int("scenes_accepted", comp.Accepted),
			zap.String("raster", lstPath),
			zap.String("ledger", ledgerPath),
		)
		return nil
	},
}

func init() {
	compositeCmd.Flags().StringVar(&compositeSeason, "season", "", "season to composite (default from config)")
	compositeCmd.Flags().IntVar(&compositeYear, "year", 0, "target year")
	rootCmd.AddCommand(compositeCmd)
}
