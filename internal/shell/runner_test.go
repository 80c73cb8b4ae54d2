package shell

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWrapWithPrefix(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		args     []string
		expected string
	}{
		{
			name:     "no prefix",
			prefix:   "",
			args:     []string{"facefusion.py", "job-run", "EnhanceJob_a.jpg"},
			expected: "python facefusion.py job-run EnhanceJob_a.jpg",
		},
		{
			name:     "conda activation",
			prefix:   "source conda.sh && conda activate facefusion",
			args:     []string{"facefusion.py", "job-create", "BatchSwapJob_1"},
			expected: "source conda.sh && conda activate facefusion && python facefusion.py job-create BatchSwapJob_1",
		},
		{
			name:     "quotes unsafe arguments",
			prefix:   "true",
			args:     []string{"-t", "my files/a b.jpg"},
			expected: "true && python -t 'my files/a b.jpg'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WrapWithPrefix(tt.prefix, "python", tt.args...)
			if got != tt.expected {
				t.Errorf("WrapWithPrefix() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestExecRunnerCapturesOutput(t *testing.T) {
	r := &ExecRunner{}
	res, err := r.Run(context.Background(), "sh", "-c", "echo out; echo err 1>&2")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "out" {
		t.Errorf("stdout = %q, want out", res.Stdout)
	}
	if strings.TrimSpace(res.Stderr) != "err" {
		t.Errorf("stderr = %q, want err", res.Stderr)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", res.ExitCode)
	}
}

func TestExecRunnerReportsExitCode(t *testing.T) {
	r := &ExecRunner{}
	res, err := r.Run(context.Background(), "sh", "-c", "exit 3")
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.ExitCode)
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	r := &ExecRunner{}
	res, err := r.Run(context.Background(), "fusion-batch-definitely-missing-binary")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if res.ExitCode != -1 {
		t.Errorf("exit code = %d, want -1", res.ExitCode)
	}
}

func TestExecRunnerWorkingDirAndEnv(t *testing.T) {
	dir := t.TempDir()
	r := &ExecRunner{Dir: dir, Env: []string{"FUSION_BATCH_TEST=42"}}
	res, err := r.Run(context.Background(), "sh", "-c", "pwd; echo $FUSION_BATCH_TEST")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	if len(lines) != 2 {
		t.Fatalf("unexpected output: %q", res.Stdout)
	}
	if !strings.HasSuffix(lines[0], strings.TrimPrefix(dir, "/private")) {
		t.Errorf("pwd = %q, want %q", lines[0], dir)
	}
	if lines[1] != "42" {
		t.Errorf("env value = %q, want 42", lines[1])
	}
}

func TestExecRunnerPassthrough(t *testing.T) {
	var out bytes.Buffer
	r := &ExecRunner{Passthrough: true, Stdout: &out, Stderr: &out}
	res, err := r.Run(context.Background(), "sh", "-c", "echo streamed")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Stdout != "" {
		t.Errorf("expected nothing captured in passthrough mode, got %q", res.Stdout)
	}
	if strings.TrimSpace(out.String()) != "streamed" {
		t.Errorf("passthrough output = %q", out.String())
	}
}

func TestCommandLogString(t *testing.T) {
	log := NewLog("python", []string{"facefusion.py", "job-add-step", "J", "-o", "out dir/x.jpg"}, Result{ExitCode: 1})
	expected := "python facefusion.py job-add-step J -o 'out dir/x.jpg'"
	if log.String() != expected {
		t.Errorf("String() = %q, want %q", log.String(), expected)
	}
	if log.ExitCode != 1 {
		t.Errorf("exit code = %d, want 1", log.ExitCode)
	}
}

func TestExecRunnerCancelKillsChildren(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "marker")
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	// The inner shell outlives its parent unless the whole group is killed,
	// and holds the captured output pipes meanwhile.
	r := &ExecRunner{}
	start := time.Now()
	_, err := r.Run(ctx, "sh", "-c", "sh -c 'sleep 1; touch "+marker+"; echo done'; echo parent")
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected error for cancelled command")
	}
	if elapsed > 900*time.Millisecond {
		t.Errorf("Run returned %s after start, want right after the cancel", elapsed)
	}

	time.Sleep(1500 * time.Millisecond)
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Errorf("child process kept running after cancel, stat err = %v", err)
	}
}
