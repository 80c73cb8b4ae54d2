package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/kozaktomas/fusion-batch/internal/batch"
	"github.com/spf13/cobra"
)

// signalContext is cancelled on Ctrl+C or SIGTERM. The running job is
// interrupted and the batch stops; cleanup still runs.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// runBatch plans a batch from the command flags and drives it to the end.
func runBatch(cmd *cobra.Command, kind batch.Kind) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	req, policy, catalog, err := requestFromFlags(cmd, kind, rt.catalog)
	if err != nil {
		return err
	}

	plan, err := batch.NewPlanner(catalog).Plan(req)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, name := range plan.Rejected {
		fmt.Fprintf(out, "Skipping unreadable file %s\n", name)
	}
	if mustGetBool(cmd, "dry-run") {
		printPlan(out, plan)
		return nil
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	observers := batch.Observers{newProgressObserver(out, string(kind), verbose)}
	if store := rt.openHistory(); store != nil {
		defer store.Close()
		runID := uuid.NewString()
		observers = append(observers, batch.NewRecorder(ctx, store, runID, kind, plan.Preset, policy, logger))
		fmt.Fprintf(out, "Recording run %s\n", runID)
	}

	summary, err := batch.NewDriver(rt.client, policy, observers, logger).Execute(ctx, plan)
	printSummary(out, summary)
	return batchError(summary, err)
}

// batchError turns a finished batch into the command's exit status.
func batchError(s batch.Summary, err error) error {
	switch s.Status {
	case batch.StatusCancelled:
		return errors.New("batch cancelled")
	case batch.StatusFailed:
		if err != nil {
			return fmt.Errorf("batch aborted: %w", err)
		}
		return fmt.Errorf("%d of %d jobs failed", s.Failed, s.Total)
	}
	return nil
}
