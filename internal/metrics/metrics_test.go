package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesCounters(t *testing.T) {
	ObserveCommand("job-run", nil)
	ObserveCommand("job-run", errors.New("exit status 1"))
	ObserveTask("matrix", nil)
	ObserveBatch("matrix", "completed")
	SetQueued(2)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	expected := []string{
		`fusion_batch_commands_total{outcome="success",subcommand="job-run"}`,
		`fusion_batch_commands_total{outcome="failure",subcommand="job-run"}`,
		`fusion_batch_tasks_total{kind="matrix",outcome="success"}`,
		`fusion_batch_batches_total{kind="matrix",status="completed"}`,
		`fusion_batch_batches_queued 2`,
	}
	for _, want := range expected {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
