package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kozaktomas/fusion-batch/internal/media"
	"go.uber.org/zap"
)

// BatchesHandler handles batch submission and progress endpoints
type BatchesHandler struct {
	jobManager *JobManager
	executor   *Executor
	logger     *zap.Logger
}

// NewBatchesHandler creates a new batches handler
func NewBatchesHandler(jm *JobManager, executor *Executor, logger *zap.Logger) *BatchesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchesHandler{
		jobManager: jm,
		executor:   executor,
		logger:     logger,
	}
}

// Start validates a batch and queues it
func (h *BatchesHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Kind == "" {
		respondError(w, http.StatusBadRequest, "kind is required")
		return
	}

	if _, err := req.resolve(h.executor.Catalog(), h.executor.Settings()); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Listed files are moved by the worker right before planning; only check
	// that they exist so a queued batch does not fail on a typo.
	if err := media.CheckFiles(slices.Concat(req.Files, req.Faces)); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID := uuid.New().String()
	job := h.jobManager.CreateJob(jobID, req)
	if err := h.jobManager.Enqueue(job); err != nil {
		h.jobManager.DeleteJob(jobID)
		status := http.StatusInternalServerError
		if errors.Is(err, ErrQueueFull) {
			status = http.StatusServiceUnavailable
		}
		respondError(w, status, err.Error())
		return
	}
	h.logger.Info("batch queued", zap.String("batch", jobID), zap.String("kind", sanitizeForLog(req.Kind)))

	respondJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"kind":   req.Kind,
		"status": string(JobStatusPending),
	})
}

// List returns every batch in submission order
func (h *BatchesHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobManager.ListJobs()
	infos := make([]JobInfo, 0, len(jobs))
	for _, job := range jobs {
		infos = append(infos, job.Info())
	}
	respondJSON(w, http.StatusOK, infos)
}

// Status returns the state of one batch
func (h *BatchesHandler) Status(w http.ResponseWriter, r *http.Request) {
	job := h.lookup(w, r)
	if job == nil {
		return
	}
	respondJSON(w, http.StatusOK, job.Info())
}

// Events streams batch events via SSE
func (h *BatchesHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			job := h.jobManager.GetJob(id)
			if job == nil {
				return nil
			}
			return job
		},
		func(job SSEJob) any {
			return job.(*BatchJob).Info()
		},
	)
}

// Cancel cancels a running or waiting batch
func (h *BatchesHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	job := h.lookup(w, r)
	if job == nil {
		return
	}
	if !job.Cancel() {
		respondError(w, http.StatusConflict, "batch already finished")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

func (h *BatchesHandler) lookup(w http.ResponseWriter, r *http.Request) *BatchJob {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return nil
	}
	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return nil
	}
	return job
}
