package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/fusion-batch/internal/facefusion"
	"github.com/kozaktomas/fusion-batch/internal/shell"
	"github.com/kozaktomas/fusion-batch/internal/video"
)

// fakeClient records subcommands and fails the ones listed in failOn
// ("job-run <job>").
type fakeClient struct {
	mu     sync.Mutex
	calls  []string
	failOn map[string]bool
	// block, when set, is waited on (or ctx) before every job-run.
	block chan struct{}
}

func (f *fakeClient) record(ctx context.Context, call string) (shell.CommandLog, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	fail := f.failOn[call]
	f.mu.Unlock()
	if fail {
		return shell.CommandLog{ExitCode: 1}, errors.New("exit status 1")
	}
	return shell.CommandLog{}, ctx.Err()
}

func (f *fakeClient) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeClient) JobCreate(ctx context.Context, job string) (shell.CommandLog, error) {
	return f.record(ctx, "job-create "+job)
}

func (f *fakeClient) JobAddStep(ctx context.Context, job string, _ facefusion.Step) (shell.CommandLog, error) {
	return f.record(ctx, "job-add-step "+job)
}

func (f *fakeClient) JobSubmit(ctx context.Context, job string) (shell.CommandLog, error) {
	return f.record(ctx, "job-submit "+job)
}

func (f *fakeClient) JobRun(ctx context.Context, job string) (shell.CommandLog, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return shell.CommandLog{ExitCode: -1}, ctx.Err()
		}
	}
	return f.record(ctx, "job-run "+job)
}

func (f *fakeClient) JobDelete(ctx context.Context, job string) (shell.CommandLog, error) {
	return f.record(context.WithoutCancel(ctx), "job-delete "+job)
}

func (f *fakeClient) JobDeleteAll(ctx context.Context) (shell.CommandLog, error) {
	return f.record(context.WithoutCancel(ctx), "job-delete-all")
}

// newTestExecutor creates an executor with the default presets and no history.
func newTestExecutor(client *fakeClient) *Executor {
	return NewExecutor(client, nil, nil, video.DefaultSettings(), nil, nil)
}

// writeInputs creates empty files named names inside dir.
func writeInputs(t *testing.T, dir string, names ...string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte(n), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// jsonRequest builds a request with body encoded as JSON.
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	return httptest.NewRequest(method, path, bytes.NewReader(data))
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// waitForStatus polls until the job reaches a terminal state.
func waitForStatus(t *testing.T, job *BatchJob) JobInfo {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if isJobTerminal(job.GetStatus()) {
			return job.Info()
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish, status %s", job.Info().ID, job.GetStatus())
	return JobInfo{}
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
