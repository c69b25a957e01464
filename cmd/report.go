package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/urbanclimate/suhi-cli/internal/anomaly"
	"github.com/urbanclimate/suhi-cli/internal/catalog"
	"github.com/urbanclimate/suhi-cli/internal/report"
	"github.com/urbanclimate/suhi-cli/internal/terrain"
)

var reportOut string

var reportCmd = &cobra.Command{
	Use:   "report <run-id>",
	Short: "Re-render the workbook for a completed run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initCatalog(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "report")
		}
		if run.Result == nil {
			return eris.Errorf("report: run %s has no recorded result", args[0])
		}

		out := reportOut
		if out == "" {
			out = outName(".", run.City, run.Season, run.Year, "report", "xlsx")
		}
		if err := report.WriteWorkbook(out, summaryFromRun(run)); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", out)
		return nil
	},
}

// summaryFromRun rebuilds the workbook summary from a catalog row.
func summaryFromRun(run *catalog.Run) report.Summary {
	s := report.Summary{
		City:             run.City,
		Season:           run.Season,
		Year:             run.Year,
		ScenesConsidered: run.Result.ScenesConsidered,
		ScenesAccepted:   run.Result.ScenesAccepted,
	}
	for _, b := range run.Result.Bands {
		s.Bands = append(s.Bands, anomaly.BandResult{
			Band:          terrain.Band{Index: b.Index, Lower: b.Lower, Upper: b.Upper},
			MeanUrbanTemp: b.MeanUrbanTemp,
			MeanRuralTemp: b.MeanRuralTemp,
			BandMin:       b.BandMin,
			BandMax:       b.BandMax,
			Degenerate:    b.Degenerate,
		})
	}
	return s
}

func init() {
	reportCmd.Flags().StringVar(&reportOut, "out", "", "output xlsx path (default <city>_<season>_<year>_report.xlsx)")
	rootCmd.AddCommand(reportCmd)
}
