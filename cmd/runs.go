package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/urbanclimate/suhi-cli/internal/catalog"
	"github.com/urbanclimate/suhi-cli/internal/composite"
	"github.com/urbanclimate/suhi-cli/internal/report"
	"github.com/urbanclimate/suhi-cli/internal/scene"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect pipeline run history",
	Long:  "Commands for listing past runs, viewing their results and exporting per-scene decisions.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pipeline runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initCatalog(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		city, _ := cmd.Flags().GetString("city")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, catalog.RunFilter{
			Status: catalog.RunStatus(status),
			City:   city,
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
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
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs decisions --

var runsDecisionsCmd = &cobra.Command{
	Use:   "decisions <run-id>",
	Short: "Show per-scene accept/reject decisions of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initCatalog(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		decisions, err := st.ListDecisions(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs decisions")
		}

		if len(decisions) == 0 {
			fmt.Fprintln(os.Stderr, "No decisions recorded.")
			return nil
		}

		formatDecisions(os.Stdout, decisions)
		return nil
	},
}

// -- runs export --

var runsExportOut string

var runsExportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a run's scene ledger as CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initCatalog(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		recorded, err := st.ListDecisions(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs export")
		}

		decisions := make([]composite.Decision, 0, len(recorded))
		for _, d := range recorded {
			decisions = append(decisions, composite.Decision{
				SceneID:         d.SceneID,
				Sensor:          scene.SensorFamily(d.Sensor),
				AcquiredAt:      d.AcquiredAt,
				Accepted:        d.Accepted,
				InvalidFraction: d.InvalidFraction,
				Reason:          d.Reason,
			})
		}

		if err := report.WriteSceneLedger(runsExportOut, decisions); err != nil {
			return eris.Wrap(err, "runs export")
		}
		fmt.Fprintf(os.Stderr, "Wrote %d decisions to %s\n", len(decisions), runsExportOut)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (queued, running, complete, failed)")
	runsListCmd.Flags().String("city", "", "filter by city")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsExportCmd.Flags().StringVar(&runsExportOut, "out", "scenes.csv", "output CSV path")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDecisionsCmd)
	runsCmd.AddCommand(runsExportCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []catalog.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCITY\tSEASON\tYEAR\tSTATUS\tSCENES\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t----\t------\t------\t-------\t--------")

	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()

		scenes := ""
		if r.Result != nil {
			scenes = fmt.Sprintf("%d/%d", r.Result.ScenesAccepted, r.Result.ScenesConsidered)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			r.City,
			r.Season,
			r.Year,
			r.Status,
			scenes,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatDecisions writes a tabular scene ledger to w.
func formatDecisions(out io.Writer, decisions []catalog.SceneDecision) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SCENE\tSENSOR\tACQUIRED\tACCEPTED\tINVALID\tREASON")

	for _, d := range decisions {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%.2f\t%s\n",
			d.SceneID,
			d.Sensor,
			d.AcquiredAt.Format("2006-01-02"),
			d.Accepted,
			d.InvalidFraction,
			d.Reason,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
