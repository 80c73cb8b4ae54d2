package handlers

import (
	"path/filepath"
	"strings"

	"github.com/kozaktomas/fusion-batch/internal/batch"
	"github.com/kozaktomas/fusion-batch/internal/facefusion"
	"github.com/kozaktomas/fusion-batch/internal/media"
	"github.com/kozaktomas/fusion-batch/internal/presets"
	"github.com/kozaktomas/fusion-batch/internal/video"
)

// BatchRequest is the body of POST /batches.
type BatchRequest struct {
	Kind       string `json:"kind"`
	Preset     string `json:"preset,omitempty"`
	SourceFile string `json:"source_file,omitempty"`
	FilesDir   string `json:"files_dir,omitempty"`
	MainDir    string `json:"main_dir,omitempty"`
	OutputDir  string `json:"output_dir,omitempty"`
	// Files and Faces are moved into the staging folders before planning.
	Files         []string      `json:"files,omitempty"`
	Faces         []string      `json:"faces,omitempty"`
	Iterations    int           `json:"iterations,omitempty"`
	Media         string        `json:"media,omitempty"`
	DeleteSources *bool         `json:"delete_sources,omitempty"`
	Sweep         *bool         `json:"sweep,omitempty"`
	Verify        bool          `json:"verify,omitempty"`
	OnError       string        `json:"on_error,omitempty"`
	EditPrefix    string        `json:"edit_prefix,omitempty"`
	KeepVideos    bool          `json:"keep_videos,omitempty"`
	Video         *VideoOptions `json:"video,omitempty"`
}

// VideoOptions override the encoding settings of a pipeline batch.
type VideoOptions struct {
	Resolution string `json:"resolution,omitempty"`
	Preset     string `json:"preset,omitempty"`
	CRF        *int   `json:"crf,omitempty"`
	FPS        int    `json:"fps,omitempty"`
	Scale      string `json:"scale,omitempty"`
	Padding    *bool  `json:"padding,omitempty"`
}

// resolvedRequest is a validated BatchRequest ready for execution.
type resolvedRequest struct {
	kind     batch.Kind
	policy   facefusion.ErrorPolicy
	catalog  *presets.Catalog
	request  batch.Request
	settings video.Settings
}

func parseRequestKind(s string) (batch.Kind, error) {
	if batch.Kind(strings.ToLower(strings.TrimSpace(s))) == batch.KindPipeline {
		return batch.KindPipeline, nil
	}
	return batch.ParseKind(s)
}

// resolve validates the request against the catalog and fills in the
// defaults of its kind.
func (r BatchRequest) resolve(catalog *presets.Catalog, settings video.Settings) (*resolvedRequest, error) {
	kind, err := parseRequestKind(r.Kind)
	if err != nil {
		return nil, err
	}
	policy, err := facefusion.ParseErrorPolicy(r.OnError)
	if err != nil {
		return nil, err
	}

	req := batch.NewRequest(kind)
	req.Preset = r.Preset
	req.SourceFile = r.SourceFile
	req.Iterations = r.Iterations
	req.Verify = r.Verify
	if r.FilesDir != "" {
		req.FilesDir = r.FilesDir
	}
	if r.MainDir != "" {
		req.MainDir = r.MainDir
	}
	if r.OutputDir != "" {
		req.OutputDir = r.OutputDir
	}
	if r.DeleteSources != nil {
		req.DeleteSources = *r.DeleteSources
	}
	if r.Sweep != nil {
		req.Sweep = *r.Sweep
	}
	// FaceFusion may run in another working directory.
	for _, path := range []*string{&req.FilesDir, &req.MainDir, &req.OutputDir, &req.SourceFile} {
		if *path == "" {
			continue
		}
		if *path, err = filepath.Abs(*path); err != nil {
			return nil, err
		}
	}
	if r.Media != "" {
		if req.Media, err = media.ParseKinds(r.Media); err != nil {
			return nil, err
		}
	}

	preset := req.Preset
	if preset == "" {
		preset = batch.DefaultPreset(kind)
	}
	if _, err := catalog.Get(preset); err != nil {
		return nil, err
	}
	if r.EditPrefix != "" {
		if catalog, err = catalog.WithPrefixRule(preset, r.EditPrefix, presets.EditPreset); err != nil {
			return nil, err
		}
	}

	if kind == batch.KindPipeline {
		settings = r.Video.apply(settings)
		if err := settings.Validate(); err != nil {
			return nil, err
		}
	} else if kind == batch.KindSingle && req.SourceFile == "" {
		return nil, batch.ErrNoSource
	}

	return &resolvedRequest{kind: kind, policy: policy, catalog: catalog, request: req, settings: settings}, nil
}

// preset returns the preset name the batch runs with.
func (r *resolvedRequest) preset() string {
	if r.request.Preset != "" {
		return r.request.Preset
	}
	return batch.DefaultPreset(r.kind)
}

func (o *VideoOptions) apply(s video.Settings) video.Settings {
	if o == nil {
		return s
	}
	if o.Resolution != "" {
		s.Resolution = o.Resolution
	}
	if o.Preset != "" {
		s.Preset = o.Preset
	}
	if o.CRF != nil {
		s.CRF = *o.CRF
	}
	if o.FPS > 0 {
		s.FPS = o.FPS
	}
	if o.Scale != "" {
		s.Scale = video.ScaleMode(o.Scale)
	}
	if o.Padding != nil {
		s.Padding = *o.Padding
	}
	return s
}
