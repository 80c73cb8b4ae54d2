package video

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kozaktomas/fusion-batch/internal/batch"
	"github.com/kozaktomas/fusion-batch/internal/constants"
	"github.com/kozaktomas/fusion-batch/internal/facefusion"
	"github.com/kozaktomas/fusion-batch/internal/media"
	"github.com/kozaktomas/fusion-batch/internal/presets"
	"go.uber.org/zap"
)

// Options locate the folders of one pipeline run.
type Options struct {
	FilesDir  string
	MainDir   string
	OutputDir string
	// Preset used for every face; prefix rules apply. Defaults to swap-video.
	Preset string
	// KeepVideos leaves the swapped videos in OutputDir after extraction.
	KeepVideos bool
	// OnStage is called when a stage starts.
	OnStage func(stage string)
}

// Result summarizes a pipeline run.
type Result struct {
	SourceVideo  string        `json:"source_video"`
	Images       int           `json:"images"`
	Swap         batch.Summary `json:"swap"`
	Videos       int           `json:"videos"`
	FailedVideos []string      `json:"failed_videos,omitempty"`
	Frames       int           `json:"frames"`
	FramesDir    string        `json:"frames_dir"`
}

// Pipeline runs stitch, swap, extract and cleanup in order.
type Pipeline struct {
	ffmpeg   *FFmpeg
	client   batch.JobClient
	catalog  *presets.Catalog
	observer batch.Observer
	settings Settings
	logger   *zap.Logger
}

// NewPipeline creates a pipeline. observer receives the swap batch events.
func NewPipeline(ff *FFmpeg, client batch.JobClient, catalog *presets.Catalog, settings Settings, observer batch.Observer, logger *zap.Logger) *Pipeline {
	if catalog == nil {
		catalog = presets.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		ffmpeg:   ff,
		client:   client,
		catalog:  catalog,
		observer: observer,
		settings: settings,
		logger:   logger.Named("pipeline"),
	}
}

// SwapPlan builds one job per face onto the stitched video:
// BatchSwapJob_<i> writing output_<i>_<faceStem>.mp4, numbered from 1.
func SwapPlan(catalog *presets.Catalog, preset, video, mainDir, outputDir string, faces []string) (*batch.Plan, error) {
	if preset == "" {
		preset = batch.DefaultPreset(batch.KindPipeline)
	}
	if len(faces) == 0 {
		return nil, fmt.Errorf("no images found in %s: %w", mainDir, media.ErrNoInputs)
	}

	tasks := make([]batch.Task, 0, len(faces))
	for i, face := range faces {
		resolved, err := catalog.Resolve(preset, face)
		if err != nil {
			return nil, err
		}
		n := strconv.Itoa(i + 1)
		output := filepath.Join(outputDir, constants.OutputPrefixSwap+n+"_"+media.Stem(face)+".mp4")
		tasks = append(tasks, batch.Task{
			Job:    facefusion.JobName(constants.JobPrefixSwap, n),
			Preset: resolved.Name,
			Step:   resolved.Step([]string{filepath.Join(mainDir, face)}, video, output),
			Delete: batch.DeleteNone,
			Label:  face,
		})
	}
	return &batch.Plan{Kind: batch.KindPipeline, Preset: preset, Tasks: tasks}, nil
}

func (p *Pipeline) stage(opts Options, name string) {
	p.logger.Info("stage started", zap.String("stage", name))
	if opts.OnStage != nil {
		opts.OnStage(name)
	}
}

// Run executes the whole pipeline. A face whose swap fails is skipped, as is a
// video whose frames cannot be extracted; any other failure stops the run
// with a *StageError.
func (p *Pipeline) Run(ctx context.Context, opts Options) (Result, error) {
	if err := p.settings.Validate(); err != nil {
		return Result{}, &StageError{Stage: StageStitch, Message: err.Error(), Err: err}
	}
	framesDir := filepath.Join(opts.OutputDir, constants.ExtractedFramesFolder)
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return Result{}, &StageError{Stage: StageStitch, Message: "cannot create output folders", Err: err}
	}
	res := Result{FramesDir: framesDir}

	// Faces are checked before the images are renamed and consumed.
	faces, err := media.ListFiles(opts.MainDir, media.KindImage)
	if err != nil {
		return res, &StageError{Stage: StageSwap, Message: "cannot list faces", Err: err}
	}
	if len(faces) == 0 {
		return res, &StageError{Stage: StageSwap, Message: fmt.Sprintf("no images found in %s", opts.MainDir), Err: media.ErrNoInputs}
	}

	p.stage(opts, StageStitch)
	video, images, err := p.Stitch(ctx, opts.FilesDir)
	if err != nil {
		return res, err
	}
	res.SourceVideo, res.Images = video, images

	p.stage(opts, StageSwap)
	plan, err := SwapPlan(p.catalog, opts.Preset, video, opts.MainDir, opts.OutputDir, faces)
	if err != nil {
		return res, &StageError{Stage: StageSwap, Message: err.Error(), Err: err}
	}
	driver := batch.NewDriver(p.client, facefusion.PolicySkip, p.observer, p.logger)
	res.Swap, err = driver.Execute(ctx, plan)
	if err != nil {
		return res, &StageError{Stage: StageSwap, Message: "swap interrupted", Err: err}
	}

	p.stage(opts, StageExtract)
	if err := p.extractAll(ctx, opts.OutputDir, framesDir, &res); err != nil {
		return res, err
	}

	p.stage(opts, StageCleanup)
	p.Cleanup(ctx, video, opts.OutputDir, opts.KeepVideos)
	return res, nil
}

func (p *Pipeline) extractAll(ctx context.Context, outputDir, framesDir string, res *Result) error {
	videos, err := outputVideos(outputDir)
	if err != nil {
		return &StageError{Stage: StageExtract, Message: "cannot list output videos", Err: err}
	}
	if len(videos) == 0 {
		return &StageError{Stage: StageExtract, Message: fmt.Sprintf("no videos found in %s", outputDir), Err: media.ErrNoInputs}
	}
	res.Videos = len(videos)

	for _, name := range videos {
		if err := ctx.Err(); err != nil {
			return &StageError{Stage: StageExtract, Message: "extraction interrupted", Err: err}
		}
		n, err := p.extractVideo(ctx, filepath.Join(outputDir, name), framesDir, res.Frames)
		if err != nil {
			p.logger.Warn("skipping video", zap.String("video", name), zap.Error(err))
			res.FailedVideos = append(res.FailedVideos, name)
			continue
		}
		p.logger.Info("frames extracted", zap.String("video", name), zap.Int("frames", n))
		res.Frames += n
	}
	return nil
}

// outputVideos lists the .mp4 files of dir in sorted order.
func outputVideos(dir string) ([]string, error) {
	files, err := media.ListFiles(dir, media.KindVideo)
	if err != nil {
		return nil, err
	}
	videos := files[:0]
	for _, f := range files {
		if strings.EqualFold(filepath.Ext(f), ".mp4") {
			videos = append(videos, f)
		}
	}
	return videos, nil
}

// Cleanup deletes the source video, the swapped videos unless keepVideos is
// set, and every job of the tool. Failures are logged, never returned.
func (p *Pipeline) Cleanup(ctx context.Context, video, outputDir string, keepVideos bool) {
	if video != "" {
		if err := os.Remove(video); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.logger.Warn("could not delete source video", zap.String("path", video), zap.Error(err))
		}
	}

	if !keepVideos {
		videos, err := outputVideos(outputDir)
		if err != nil {
			p.logger.Warn("could not list output videos", zap.Error(err))
		}
		for _, name := range videos {
			if err := os.Remove(filepath.Join(outputDir, name)); err != nil {
				p.logger.Warn("could not delete output video", zap.String("video", name), zap.Error(err))
			}
		}
	}

	if _, err := p.client.JobDeleteAll(context.WithoutCancel(ctx)); err != nil {
		p.logger.Warn("could not delete jobs", zap.Error(err))
	}
}
