package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/fusion-batch/internal/constants"
	"github.com/kozaktomas/fusion-batch/internal/database"
	"go.uber.org/zap"
)

// errHistoryDisabled is returned when no database is configured.
const errHistoryDisabled = "run history is disabled (DATABASE_URL is not set)"

// HistoryHandler serves past runs from the database
type HistoryHandler struct {
	reader database.RunReader
	logger *zap.Logger
}

// NewHistoryHandler creates a new history handler; reader may be nil
func NewHistoryHandler(reader database.RunReader, logger *zap.Logger) *HistoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryHandler{reader: reader, logger: logger}
}

// RunDetail is a run together with its jobs.
type RunDetail struct {
	database.Run
	Jobs []database.JobRecord `json:"jobs"`
}

// List returns the most recent runs
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		respondError(w, http.StatusServiceUnavailable, errHistoryDisabled)
		return
	}

	limit := constants.DefaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := h.reader.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Warn("listing runs failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []database.Run{}
	}
	respondJSON(w, http.StatusOK, runs)
}

// Get returns one run and its jobs
func (h *HistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		respondError(w, http.StatusServiceUnavailable, errHistoryDisabled)
		return
	}

	runID := chi.URLParam(r, "runId")
	if runID == "" {
		respondError(w, http.StatusBadRequest, "missing run ID")
		return
	}

	run, err := h.reader.GetRun(r.Context(), runID)
	if err != nil {
		h.logger.Warn("loading run failed", zap.String("run", sanitizeForLog(runID)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	if run == nil {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}

	jobs, err := h.reader.ListJobs(r.Context(), runID)
	if err != nil {
		h.logger.Warn("loading run jobs failed", zap.String("run", sanitizeForLog(runID)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load run jobs")
		return
	}
	if jobs == nil {
		jobs = []database.JobRecord{}
	}
	respondJSON(w, http.StatusOK, RunDetail{Run: *run, Jobs: jobs})
}
