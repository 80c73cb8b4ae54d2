package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/kozaktomas/fusion-batch/internal/config"
	"github.com/kozaktomas/fusion-batch/internal/constants"
	"github.com/kozaktomas/fusion-batch/internal/database"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recorded batch runs",
	Long: `Show the most recent batch runs, or the jobs of one run when its ID is
given. Requires DATABASE_URL (postgres:// or mysql://).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().Int("limit", constants.DefaultHistoryLimit, "Number of runs to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	store, err := database.Open(&cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	if len(args) == 0 {
		runs, err := store.ListRuns(ctx, mustGetInt(cmd, "limit"))
		if err != nil {
			return fmt.Errorf("listing runs: %w", err)
		}
		printRuns(out, runs)
		return nil
	}

	run, err := store.GetRun(ctx, args[0])
	if err != nil {
		return fmt.Errorf("loading run: %w", err)
	}
	if run == nil {
		return errors.New("run not found")
	}
	jobs, err := store.ListJobs(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("listing jobs: %w", err)
	}
	printRuns(out, []database.Run{*run})
	for _, j := range jobs {
		fmt.Fprintf(out, "  %-9s %-40s %s -> %s (%s)\n", j.Status, j.JobName, j.Target, j.Output, j.Duration)
		if j.Error != "" {
			fmt.Fprintf(out, "            %s\n", j.Error)
		}
	}
	return nil
}

func printRuns(out io.Writer, runs []database.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return
	}
	for _, r := range runs {
		fmt.Fprintf(out, "%s  %s  %-8s %-10s %-9s %d/%d succeeded, %d failed, %d skipped\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Kind, r.Preset, r.Status,
			r.Succeeded, r.Total, r.Failed, r.Skipped)
	}
}
