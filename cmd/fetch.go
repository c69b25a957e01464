package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/urbanclimate/suhi-cli/internal/config"
	"github.com/urbanclimate/suhi-cli/pkg/m2m"
)

var (
	fetchSeason   string
	fetchYear     int
	fetchQuiet    bool
	fetchMaxCloud int
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download thermal scenes from the imagery archive",
	Long:  "Searches every satellite dataset whose mission window overlaps the season, stages the thermal and QA band files and downloads them into the scenes directory.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if fetchSeason != "" {
			cfg.Pipeline.Season = fetchSeason
		}
		if fetchYear != 0 {
			cfg.Pipeline.Year = fetchYear
		}
		if fetchMaxCloud != 0 {
			cfg.Archive.MaxCloudCover = fetchMaxCloud
		}
		if err := cfg.Validate("fetch"); err != nil {
			return err
		}
		if cfg.Pipeline.Year <= 0 {
			return eris.New("fetch: pipeline.year is required")
		}

		start, end, err := config.SeasonRange(cfg.Pipeline.Season, cfg.Pipeline.Year)
		if err != nil {
			return err
		}

		client := m2m.NewClient(cfg.Archive.Username, cfg.Archive.Token,
			m2m.WithBaseURL(cfg.Archive.BaseURL),
			m2m.WithRateLimit(cfg.Archive.RateLimit),
			m2m.WithProgress(!fetchQuiet),
		)
		if err := client.Login(ctx); err != nil {
			return err
		}

		log := zap.L().With(zap.String("component", "fetch"))
		log.Info("searching archive",
			zap.String("season", cfg.Pipeline.Season),
			zap.Int("year", cfg.Pipeline.Year),
			zap.Time("start", start),
			zap.Time("end", end),
		)

		paths, err := client.FetchScenes(ctx, m2m.SearchParams{
			BBox:          [4]float64{cfg.City.BBox[0], cfg.City.BBox[1], cfg.City.BBox[2], cfg.City.BBox[3]},
			Start:         start,
			End:           end,
			MaxCloudCover: cfg.Archive.MaxCloudCover,
		}, cfg.Paths.ScenesDir)
		if err != nil {
			return eris.Wrap(err, "fetch scenes")
		}

		log.Info("fetch complete",
			zap.Int("files", len(paths)),
			zap.String("dir", cfg.Paths.ScenesDir),
		)
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchSeason, "season", "", "season to fetch (default from config)")
	fetchCmd.Flags().IntVar(&fetchYear, "year", 0, "target year")
	fetchCmd.Flags().IntVar(&fetchMaxCloud, "max-cloud", 0, "max scene cloud cover percent (default from config)")
	fetchCmd.Flags().BoolVar(&fetchQuiet, "quiet", false, "disable download progress bars")
	rootCmd.AddCommand(fetchCmd)
}
