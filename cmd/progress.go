package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/kozaktomas/fusion-batch/internal/batch"
	"github.com/schollz/progressbar/v3"
)

// progressObserver draws a progress bar per batch. In verbose mode the tool
// output goes to the terminal, so one line per job is printed instead.
type progressObserver struct {
	out         io.Writer
	description string
	verbose     bool
	bar         *progressbar.ProgressBar
}

func newProgressObserver(out io.Writer, description string, verbose bool) *progressObserver {
	return &progressObserver{out: out, description: description, verbose: verbose}
}

func (p *progressObserver) Observe(e batch.Event) {
	switch e.Type {
	case batch.EventBatchStarted:
		p.bar = progressbar.NewOptions(e.Total,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription(p.description),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("jobs"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
			progressbar.OptionSetVisibility(!p.verbose),
		)
	case batch.EventTaskStarted:
		if p.verbose && e.Task != nil {
			fmt.Fprintf(p.out, "[%d/%d] %s\n", e.Index+1, e.Total, e.Task.Label)
		}
	case batch.EventTaskFinished:
		if e.Status != batch.TaskSucceeded && e.Task != nil {
			p.clear()
			fmt.Fprintf(p.out, "%s %s: %s\n", e.Status, e.Task.Label, e.Error)
		}
		if p.bar != nil {
			_ = p.bar.Add(1)
		}
	case batch.EventBatchFinished:
		if p.bar != nil && !p.verbose {
			_ = p.bar.Finish()
			fmt.Fprintln(p.out)
		}
	}
}

func (p *progressObserver) clear() {
	if p.bar != nil && !p.verbose {
		_ = p.bar.Clear()
	}
}

func printSummary(out io.Writer, s batch.Summary) {
	fmt.Fprintf(out, "Batch %s: %d succeeded, %d failed, %d skipped of %d jobs in %s\n",
		s.Status, s.Succeeded, s.Failed, s.Skipped, s.Total, s.Duration.Round(time.Millisecond))
	if s.Deleted > 0 {
		fmt.Fprintf(out, "Deleted %d source files\n", s.Deleted)
	}
}

func printPlan(out io.Writer, plan *batch.Plan) {
	fmt.Fprintf(out, "%s batch with preset %s: %d jobs\n", plan.Kind, plan.Preset, len(plan.Tasks))
	for i, t := range plan.Tasks {
		fmt.Fprintf(out, "%4d. %-40s %s\n", i+1, t.Job, t.Label)
	}
	if plan.DeleteSources {
		fmt.Fprintln(out, "Sources are deleted once all of their jobs succeeded")
	}
	if plan.Sweep {
		fmt.Fprintln(out, "All FaceFusion jobs are deleted after the batch")
	}
}
