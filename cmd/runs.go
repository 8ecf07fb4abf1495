package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ofertas-ai/offers-cli/internal/model"
	"github.com/ofertas-ai/offers-cli/internal/offers"
	"github.com/ofertas-ai/offers-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect saved search runs",
	Long:  "Commands for listing and viewing completed search runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		state, _ := cmd.Flags().GetString("state")
		city, _ := cmd.Flags().GetString("city")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		filter := store.RunFilter{Limit: limit, Offset: offset}
		if state != "" && city != "" {
			filter.RegionKey = offers.RegionKey(model.Region{State: state, City: city})
		} else if state != "" || city != "" {
			return eris.New("filtering requires both --state and --city")
		}

		runs, err := st.ListRuns(ctx, filter)
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
	Short: "Show full details of a saved run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		fmt.Printf("Run %s (%s - %s, %s)\n", run.ID, run.Region.City, run.Region.State,
			run.CreatedAt.Format("2006-01-02 15:04"))
		formatRunSummary(os.Stdout, run.Region, run.State)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("state", "", "filter by state code (with --city)")
	runsListCmd.Flags().String("city", "", "filter by city (with --state)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsListCmd.Flags().Int("offset", 0, "number of runs to skip")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tREGIÃO\tMERCADOS\tOFERTAS\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t------\t--------\t-------\t-------")

	for _, r := range runs {
		total := 0
		for _, m := range r.State.Markets {
			total += len(m.Products)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			truncateID(r.ID),
			r.RegionKey,
			len(r.State.Markets),
			total,
			r.CreatedAt.Format("2006-01-02 15:04"),
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
