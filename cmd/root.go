package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/urbanclimate/suhi-cli/internal/catalog"
	"github.com/urbanclimate/suhi-cli/internal/config"
	"github.com/urbanclimate/suhi-cli/internal/pipeline"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "suhi-cli",
	Short: "Surface urban heat island analysis pipeline",
	Long:  "Filters thermal satellite scenes, composites them per season, partitions the terrain into elevation bands and writes urban heat island intensity rasters.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// outName builds an output path the same way the pipeline names its
// rasters: city slug, season, year, artifact kind.
func outName(dir, city, season string, year int, kind, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s_%d_%s.%s",
		pipeline.Slug(city), strings.ToLower(season), year, kind, ext))
}

// initCatalog opens the configured run catalog and applies migrations.
func initCatalog(ctx context.Context) (catalog.Store, error) {
	st, err := catalog.Open(ctx, cfg.Catalog.Driver, cfg.Catalog.DatabaseURL, cfg.Catalog.SQLitePath)
	if err != nil {
		return nil, eris.Wrap(err, "open catalog")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate catalog")
	}
	return st, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
