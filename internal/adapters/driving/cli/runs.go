package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded build runs",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 10, "maximum number of runs (0 = all)")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, _ []string) error {
	svc, err := indexService()
	if err != nil {
		return err
	}
	runs, err := svc.Index.Runs(cmd.Context(), runsLimit)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	if len(runs) == 0 {
		cmd.Println("No runs recorded.")
		return nil
	}

	st := newStyles(cmd.OutOrStdout())
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tSTARTED\tDURATION\tSOURCES\tDEPS\tWARNINGS")
	for _, r := range runs {
		status := st.Success.Render(string(r.Status))
		if r.Error != "" {
			status = st.Error.Render(string(r.Status))
		}
		started := "-"
		if !r.StartedAt.IsZero() {
			started = r.StartedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			r.ID, status, started, r.Duration().Round(time.Millisecond), r.Sources, r.Dependencies, len(r.Warnings))
	}
	return w.Flush()
}
