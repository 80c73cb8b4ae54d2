package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/kozaktomas/fusion-batch/internal/facefusion"
	"github.com/kozaktomas/fusion-batch/internal/shell"
)

// fakeClient records subcommands as "subcommand job" and fails on demand.
type fakeClient struct {
	calls  []string
	failOn map[string]bool // key: "subcommand job"
	onCall func(call string)
}

func (f *fakeClient) do(subcommand, job string) (shell.CommandLog, error) {
	call := strings.TrimSpace(subcommand + " " + job)
	f.calls = append(f.calls, call)
	if f.onCall != nil {
		f.onCall(call)
	}
	if f.failOn[call] {
		return shell.CommandLog{ExitCode: 1}, &facefusion.CommandError{Subcommand: subcommand, Job: job, Err: errors.New("exit status 1")}
	}
	return shell.CommandLog{}, nil
}

func (f *fakeClient) JobCreate(_ context.Context, job string) (shell.CommandLog, error) {
	return f.do("job-create", job)
}

func (f *fakeClient) JobAddStep(_ context.Context, job string, _ facefusion.Step) (shell.CommandLog, error) {
	return f.do("job-add-step", job)
}

func (f *fakeClient) JobSubmit(_ context.Context, job string) (shell.CommandLog, error) {
	return f.do("job-submit", job)
}

func (f *fakeClient) JobRun(_ context.Context, job string) (shell.CommandLog, error) {
	return f.do("job-run", job)
}

func (f *fakeClient) JobDelete(_ context.Context, job string) (shell.CommandLog, error) {
	return f.do("job-delete", job)
}

func (f *fakeClient) JobDeleteAll(_ context.Context) (shell.CommandLog, error) {
	return f.do("job-delete-all", "")
}

func lifecycle(job string, withDelete bool) []string {
	calls := []string{"job-create " + job, "job-add-step " + job, "job-submit " + job, "job-run " + job}
	if withDelete {
		calls = append(calls, "job-delete "+job)
	}
	return calls
}

// matrixPlan builds a 2x2 matrix plan over real files in a temp dir.
func matrixPlan(t *testing.T, deleteSources bool) (*Plan, string) {
	t.Helper()
	dir := t.TempDir()
	files := filepath.Join(dir, "files")
	main := filepath.Join(dir, "main")
	for _, d := range []string{files, main} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	for _, p := range []string{
		filepath.Join(files, "p1.jpg"), filepath.Join(files, "p2.jpg"),
		filepath.Join(main, "f1.jpg"), filepath.Join(main, "f2.jpg"),
	} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	plan, err := NewPlanner(nil).Build(Request{
		Kind:          KindMatrix,
		FilesDir:      files,
		MainDir:       main,
		OutputDir:     filepath.Join(dir, "folder"),
		DeleteSources: deleteSources,
		Sweep:         true,
	}, Inputs{Files: []string{"p1.jpg", "p2.jpg"}, Faces: []string{"f1.jpg", "f2.jpg"}})
	if err != nil {
		t.Fatal(err)
	}
	return plan, dir
}

func TestExecuteMatrixLifecycle(t *testing.T) {
	plan, dir := matrixPlan(t, true)
	client := &fakeClient{}

	var deleted []string
	observer := ObserverFunc(func(e Event) {
		if e.Type == EventSourceDeleted {
			deleted = append(deleted, filepath.Base(e.Path))
		}
	})

	summary, err := NewDriver(client, facefusion.PolicyIgnore, observer, nil).Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var expected []string
	for _, task := range plan.Tasks {
		expected = append(expected, lifecycle(task.Job, true)...)
	}
	expected = append(expected, "job-delete-all")
	if !reflect.DeepEqual(client.calls, expected) {
		t.Errorf("calls =\n%v\nwant\n%v", client.calls, expected)
	}

	if summary.Total != 4 || summary.Succeeded != 4 || summary.Failed != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Status != StatusCompleted {
		t.Errorf("status = %s", summary.Status)
	}
	if !reflect.DeepEqual(deleted, []string{"p1.jpg", "p2.jpg"}) {
		t.Errorf("deleted = %v", deleted)
	}
	if summary.Deleted != 2 {
		t.Errorf("deleted count = %d", summary.Deleted)
	}
	if _, err := os.Stat(filepath.Join(dir, "files", "p1.jpg")); !os.IsNotExist(err) {
		t.Error("p1.jpg should be deleted")
	}
	// Faces are never deleted.
	if _, err := os.Stat(filepath.Join(dir, "main", "f1.jpg")); err != nil {
		t.Errorf("face should remain: %v", err)
	}
	// Per-face output folders are created before the job runs.
	if info, err := os.Stat(filepath.Join(dir, "folder", "f2")); err != nil || !info.IsDir() {
		t.Errorf("expected output folder f2: %v", err)
	}
}

func TestExecuteSourceDeletedOnlyAfterGroup(t *testing.T) {
	plan, dir := matrixPlan(t, true)
	p1 := filepath.Join(dir, "files", "p1.jpg")

	client := &fakeClient{}
	client.onCall = func(call string) {
		// While any p1 job runs, p1 must still exist.
		if strings.Contains(call, "_p1.jpg_") {
			if _, err := os.Stat(p1); err != nil {
				t.Errorf("%s: source already gone", call)
			}
		}
	}

	if _, err := NewDriver(client, facefusion.PolicyIgnore, nil, nil).Execute(context.Background(), plan); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
}

func TestExecuteKeepsSourceImageUntilLastUse(t *testing.T) {
	dir := t.TempDir()
	files := filepath.Join(dir, "files")
	if err := os.MkdirAll(files, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.jpg", "src.jpg", "z.jpg"} {
		if err := os.WriteFile(filepath.Join(files, name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	source := filepath.Join(files, "src.jpg")

	plan, err := NewPlanner(nil).Plan(Request{
		Kind:          KindSingle,
		SourceFile:    source,
		FilesDir:      files,
		OutputDir:     filepath.Join(dir, "folder"),
		DeleteSources: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Tasks) != 3 {
		t.Fatalf("planned %d tasks, want 3", len(plan.Tasks))
	}

	client := &fakeClient{}
	client.onCall = func(call string) {
		// Every job reads the source image, including the one after its own.
		if strings.HasPrefix(call, "job-run ") {
			if _, err := os.Stat(source); err != nil {
				t.Errorf("%s: source image already gone", call)
			}
		}
	}
	var deleted []string
	observer := ObserverFunc(func(e Event) {
		if e.Type == EventSourceDeleted {
			deleted = append(deleted, filepath.Base(e.Path))
		}
	})

	summary, err := NewDriver(client, facefusion.PolicyIgnore, observer, nil).Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !reflect.DeepEqual(deleted, []string{"a.jpg", "z.jpg", "src.jpg"}) {
		t.Errorf("deleted = %v", deleted)
	}
	if summary.Deleted != 3 {
		t.Errorf("deleted count = %d, want 3", summary.Deleted)
	}
	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Error("source image should be deleted after its last use")
	}
}

func TestExecuteKeepsSourcesWithoutFlag(t *testing.T) {
	plan, dir := matrixPlan(t, false)
	if _, err := NewDriver(&fakeClient{}, facefusion.PolicyIgnore, nil, nil).Execute(context.Background(), plan); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "files", "p1.jpg")); err != nil {
		t.Errorf("source should remain: %v", err)
	}
}

func TestExecuteErrorPolicies(t *testing.T) {
	tests := []struct {
		name          string
		policy        facefusion.ErrorPolicy
		expectErr     bool
		expectCalls   int
		expectFailed  int
		expectSkipped int
		keepP1        bool
	}{
		// All 4 tasks x 5 subcommands + sweep run; p1's group still gets deleted.
		{name: "ignore", policy: facefusion.PolicyIgnore, expectCalls: 21, expectFailed: 1, keepP1: false},
		// The failing task stops after add-step, deletes its job, then continues.
		{name: "skip", policy: facefusion.PolicySkip, expectCalls: 19, expectFailed: 1, keepP1: true},
		// The batch stops after the failing task; the sweep still runs.
		{name: "fail-fast", policy: facefusion.PolicyFailFast, expectErr: true, expectCalls: 4, expectFailed: 1, expectSkipped: 3, keepP1: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, dir := matrixPlan(t, true)
			first := plan.Tasks[0].Job
			client := &fakeClient{failOn: map[string]bool{"job-add-step " + first: true}}

			summary, err := NewDriver(client, tt.policy, nil, nil).Execute(context.Background(), plan)
			if tt.expectErr {
				var cmdErr *facefusion.CommandError
				if !errors.As(err, &cmdErr) {
					t.Fatalf("expected CommandError, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}

			if len(client.calls) != tt.expectCalls {
				t.Errorf("calls = %d, want %d: %v", len(client.calls), tt.expectCalls, client.calls)
			}
			if client.calls[len(client.calls)-1] != "job-delete-all" {
				t.Errorf("sweep must run last, got %s", client.calls[len(client.calls)-1])
			}
			if summary.Failed != tt.expectFailed || summary.Skipped != tt.expectSkipped {
				t.Errorf("summary = %+v", summary)
			}
			if summary.Status != StatusFailed {
				t.Errorf("status = %s, want failed", summary.Status)
			}

			_, statErr := os.Stat(filepath.Join(dir, "files", "p1.jpg"))
			if tt.keepP1 && statErr != nil {
				t.Errorf("p1.jpg should be kept: %v", statErr)
			}
			if !tt.keepP1 && !os.IsNotExist(statErr) {
				t.Errorf("p1.jpg should be deleted, stat err = %v", statErr)
			}
		})
	}
}

func TestExecuteCancellationStillSweeps(t *testing.T) {
	plan, dir := matrixPlan(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	second := plan.Tasks[1].Job
	client := &fakeClient{}
	client.onCall = func(call string) {
		if call == "job-run "+second {
			cancel()
		}
	}

	summary, err := NewDriver(client, facefusion.PolicyIgnore, nil, nil).Execute(ctx, plan)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if summary.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", summary.Status)
	}

	last := client.calls[len(client.calls)-1]
	if last != "job-delete-all" {
		t.Errorf("sweep must run after cancel, last call = %s", last)
	}
	// The cancelled job is still deleted from the tool.
	if !contains(client.calls, "job-delete "+second) {
		t.Errorf("per-job delete must run after cancel: %v", client.calls)
	}
	for _, c := range client.calls {
		if strings.Contains(c, plan.Tasks[2].Job) {
			t.Errorf("no call expected for task after cancellation: %s", c)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "files", "p1.jpg")); err != nil {
		t.Errorf("interrupted group must keep its source: %v", err)
	}
	if summary.Skipped != 2 {
		t.Errorf("skipped = %d, want 2", summary.Skipped)
	}
}

func TestExecuteSkipsDependentIterations(t *testing.T) {
	dir := t.TempDir()
	plan, err := NewPlanner(nil).Build(Request{
		Kind:       KindRestore,
		FilesDir:   filepath.Join(dir, "files"),
		OutputDir:  filepath.Join(dir, "out"),
		Iterations: 3,
	}, Inputs{Files: []string{"a.jpg", "b.jpg"}})
	if err != nil {
		t.Fatal(err)
	}

	client := &fakeClient{failOn: map[string]bool{"job-run EnhanceJob_a_iter_2": true}}
	var skipped []string
	observer := ObserverFunc(func(e Event) {
		if e.Type == EventTaskFinished && e.Status == TaskSkipped {
			skipped = append(skipped, e.Task.Job)
		}
	})

	summary, err := NewDriver(client, facefusion.PolicySkip, observer, nil).Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !reflect.DeepEqual(skipped, []string{"EnhanceJob_a_iter_3"}) {
		t.Errorf("skipped = %v", skipped)
	}
	if summary.Succeeded != 4 || summary.Failed != 1 || summary.Skipped != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if contains(client.calls, "job-create EnhanceJob_a_iter_3") {
		t.Error("dependent iteration must not be created")
	}
}

func TestExecuteEmitsOrderedEvents(t *testing.T) {
	dir := t.TempDir()
	plan, err := NewPlanner(nil).Build(Request{
		Kind:      KindEnhance,
		FilesDir:  filepath.Join(dir, "files"),
		OutputDir: filepath.Join(dir, "out"),
	}, Inputs{Files: []string{"a.jpg"}})
	if err != nil {
		t.Fatal(err)
	}

	var types []EventType
	var stages []string
	observers := Observers{
		ObserverFunc(func(e Event) { types = append(types, e.Type) }),
		nil,
		ObserverFunc(func(e Event) {
			if e.Type == EventStage {
				stages = append(stages, e.Stage)
			}
		}),
	}
	if _, err := NewDriver(&fakeClient{}, "", observers, nil).Execute(context.Background(), plan); err != nil {
		t.Fatal(err)
	}

	expectedTypes := []EventType{
		EventBatchStarted, EventTaskStarted,
		EventStage, EventStage, EventStage, EventStage,
		EventTaskFinished, EventBatchFinished,
	}
	if !reflect.DeepEqual(types, expectedTypes) {
		t.Errorf("types = %v", types)
	}
	expectedStages := []string{"job-create", "job-add-step", "job-submit", "job-run"}
	if !reflect.DeepEqual(stages, expectedStages) {
		t.Errorf("stages = %v", stages)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
