package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage the FaceFusion job queue",
}

var jobsDeleteCmd = &cobra.Command{
	Use:   "delete <job>",
	Short: "Delete one FaceFusion job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		if _, err := rt.client.JobDelete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted job %s\n", args[0])
		return nil
	},
}

var jobsDeleteAllCmd = &cobra.Command{
	Use:   "delete-all",
	Short: "Delete every FaceFusion job",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		if _, err := rt.client.JobDeleteAll(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Deleted all jobs")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsDeleteCmd, jobsDeleteAllCmd)
}
