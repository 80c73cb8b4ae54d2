package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/fusion-batch/internal/database"
	"github.com/kozaktomas/fusion-batch/internal/database/mock"
)

func seedHistory(t *testing.T) *mock.MockRunStore {
	t.Helper()
	ctx := context.Background()
	store := mock.NewMockRunStore()
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "new"} {
		run := database.Run{ID: id, Kind: "matrix", Preset: "swap", Status: database.RunStatusRunning, StartedAt: start.Add(time.Duration(i) * time.Hour)}
		if err := store.CreateRun(ctx, run); err != nil {
			t.Fatal(err)
		}
	}
	_ = store.AddJob(ctx, database.JobRecord{RunID: "new", JobName: "SingleSwapEnhanceJob_a.jpg_f.jpg", Status: "succeeded"})
	return store
}

func TestHistoryHandler_List(t *testing.T) {
	h := NewHistoryHandler(seedHistory(t), nil)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest("GET", "/api/v1/history?limit=1", nil))

	assertStatusCode(t, rec, http.StatusOK)
	var runs []database.Run
	parseJSONResponse(t, rec, &runs)
	if len(runs) != 1 || runs[0].ID != "new" {
		t.Errorf("runs = %+v", runs)
	}
}

func TestHistoryHandler_ListErrors(t *testing.T) {
	store := seedHistory(t)
	store.ListRunsError = errors.New("db down")

	tests := []struct {
		name    string
		handler *HistoryHandler
		url     string
		status  int
	}{
		{"disabled", NewHistoryHandler(nil, nil), "/api/v1/history", http.StatusServiceUnavailable},
		{"bad limit", NewHistoryHandler(seedHistory(t), nil), "/api/v1/history?limit=-3", http.StatusBadRequest},
		{"store error", NewHistoryHandler(store, nil), "/api/v1/history", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler.List(rec, httptest.NewRequest("GET", tt.url, nil))
			assertStatusCode(t, rec, tt.status)
		})
	}
}

func TestHistoryHandler_Get(t *testing.T) {
	h := NewHistoryHandler(seedHistory(t), nil)

	rec := httptest.NewRecorder()
	h.Get(rec, requestWithChiParams(httptest.NewRequest("GET", "/api/v1/history/new", nil), map[string]string{"runId": "new"}))

	assertStatusCode(t, rec, http.StatusOK)
	var detail RunDetail
	parseJSONResponse(t, rec, &detail)
	if detail.ID != "new" || len(detail.Jobs) != 1 || detail.Jobs[0].Status != "succeeded" {
		t.Errorf("detail = %+v", detail)
	}

	rec = httptest.NewRecorder()
	h.Get(rec, requestWithChiParams(httptest.NewRequest("GET", "/api/v1/history/x", nil), map[string]string{"runId": "x"}))
	assertStatusCode(t, rec, http.StatusNotFound)
	assertJSONError(t, rec, "run not found")
}
