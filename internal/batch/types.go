// Package batch plans and executes batches of FaceFusion jobs.
package batch

import (
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/fusion-batch/internal/constants"
	"github.com/kozaktomas/fusion-batch/internal/facefusion"
	"github.com/kozaktomas/fusion-batch/internal/media"
)

// Kind selects how inputs are combined into tasks.
type Kind string

const (
	KindSingle   Kind = "single"
	KindPairwise Kind = "pairwise"
	KindMatrix   Kind = "matrix"
	KindEnhance  Kind = "enhance"
	KindRestore  Kind = "restore"
	KindPipeline Kind = "pipeline"
)

// ParseKind validates a batch kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindSingle, KindPairwise, KindMatrix, KindEnhance, KindRestore:
		return k, nil
	default:
		return "", fmt.Errorf("unknown batch kind %q (want single, pairwise, matrix, enhance or restore)", s)
	}
}

// DefaultPreset returns the preset a kind uses when none is requested.
func DefaultPreset(kind Kind) string {
	switch kind {
	case KindPairwise, KindPipeline:
		return "swap-video"
	case KindEnhance:
		return "enhance"
	case KindRestore:
		return "restore"
	default:
		return "swap"
	}
}

// DefaultMedia returns the media kinds listed from the files folder.
func DefaultMedia(kind Kind) []media.Kind {
	switch kind {
	case KindPairwise:
		return []media.Kind{media.KindVideo}
	case KindRestore:
		return []media.Kind{media.KindImage, media.KindVideo}
	default:
		return []media.Kind{media.KindImage}
	}
}

// NewRequest returns a request carrying the folder and cleanup defaults of
// kind: matrix batches delete each file once all its faces are done and keep
// no final sweep, every other kind sweeps all jobs at the end.
func NewRequest(kind Kind) Request {
	req := Request{
		Kind:          kind,
		FilesDir:      constants.DefaultFilesFolder,
		OutputDir:     constants.DefaultOutputFolder,
		DeleteSources: kind == KindMatrix,
		Sweep:         kind != KindMatrix,
	}
	switch kind {
	case KindPairwise, KindMatrix, KindPipeline:
		req.MainDir = constants.DefaultMainFolder
	case KindEnhance, KindRestore:
		req.OutputDir = constants.DefaultEnhanceOutputFolder
	}
	return req
}

// DeleteMode says whether a job is removed from the tool right after it ran.
type DeleteMode string

const (
	DeleteNone   DeleteMode = "none"
	DeletePerJob DeleteMode = "per-job"
)

// Task is one job lifecycle: create, add-step, submit, run and optional delete.
type Task struct {
	Job    string          `json:"job"`
	Preset string          `json:"preset"`
	Step   facefusion.Step `json:"step"`
	Delete DeleteMode      `json:"delete"`
	// Group is the input path whose removal waits for every task of the group.
	Group string `json:"group,omitempty"`
	// After names the job whose output this task reads; the task is skipped
	// when that job did not succeed.
	After string `json:"after,omitempty"`
	Label string `json:"label"`
}

// Plan is an ordered list of tasks plus batch-level cleanup.
type Plan struct {
	Kind          Kind     `json:"kind"`
	Preset        string   `json:"preset"`
	Tasks         []Task   `json:"tasks"`
	DeleteSources bool     `json:"delete_sources"`
	Sweep         bool     `json:"sweep"`
	Rejected      []string `json:"rejected,omitempty"`
}

// Request describes a batch in terms of folders and flags.
type Request struct {
	Kind          Kind         `json:"kind"`
	Preset        string       `json:"preset,omitempty"`
	SourceFile    string       `json:"source_file,omitempty"`
	FilesDir      string       `json:"files_dir"`
	MainDir       string       `json:"main_dir,omitempty"`
	OutputDir     string       `json:"output_dir"`
	Iterations    int          `json:"iterations,omitempty"`
	Media         []media.Kind `json:"media,omitempty"`
	DeleteSources bool         `json:"delete_sources"`
	Sweep         bool         `json:"sweep"`
	Verify        bool         `json:"verify"`
}

// Inputs are the file names found for a request.
type Inputs struct {
	Files []string
	Faces []string
}

// TaskStatus is the final state of a task.
type TaskStatus string

const (
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
	TaskSkipped   TaskStatus = "skipped"
)

// Status is the final state of a batch.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Summary counts task outcomes of one Execute call.
type Summary struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Deleted   int           `json:"deleted_sources"`
	Status    Status        `json:"status"`
	Duration  time.Duration `json:"duration"`
}
