package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/kozaktomas/fusion-batch/internal/batch"
	"github.com/kozaktomas/fusion-batch/internal/facefusion"
	"github.com/kozaktomas/fusion-batch/internal/presets"
	"github.com/kozaktomas/fusion-batch/internal/video"
	"github.com/spf13/cobra"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Stitch images into a video, swap every face onto it and extract the frames",
	Long: `Run the image to video to frames pipeline:

  1. stitch the images of the files folder into one video (renaming them to
     img001, img002, ...)
  2. swap every face of the main folder onto that video
  3. extract the frames of every swapped video into <output>/extracted_frames,
     cropping black borders
  4. delete the source video, the swapped videos and every FaceFusion job

A face whose swap fails and a video whose frames cannot be extracted are
skipped; any other failure stops the pipeline.`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(pipelineCmd)
	addPipelineFlags(pipelineCmd)
}

func addPipelineFlags(cmd *cobra.Command) {
	def := batch.NewRequest(batch.KindPipeline)
	vs := video.DefaultSettings()
	f := cmd.Flags()
	f.String("files", def.FilesDir, "Folder with the images to stitch")
	f.String("main", def.MainDir, "Folder with the face images")
	f.String("output", def.OutputDir, "Folder receiving the swapped videos and extracted frames")
	f.String("preset", "", fmt.Sprintf("Preset name (default %q)", batch.DefaultPreset(batch.KindPipeline)))
	f.String("edit-prefix", "", "Faces starting with this prefix use the swap-edit preset")
	f.String("resolution", vs.Resolution, "Video resolution: "+strings.Join(video.ResolutionNames(), ", "))
	f.String("x264-preset", vs.Preset, "x264 encoder preset")
	f.Int("crf", vs.CRF, "x264 constant rate factor, 0 is lossless")
	f.Int("fps", vs.FPS, "Frames per second of the stitched video")
	f.String("scale", string(vs.Scale), "How images fit the frame: fit, fill or stretch")
	f.Bool("padding", vs.Padding, "Pad fitted images to the full frame")
	f.String("algorithm", vs.Algorithm, "Scaling algorithm")
	f.Bool("keep-videos", false, "Keep the swapped videos after extracting their frames")
}

// settingsFromFlags reads the encoder settings of the pipeline command.
func settingsFromFlags(cmd *cobra.Command) (video.Settings, error) {
	s := video.Settings{
		Resolution: mustGetString(cmd, "resolution"),
		Preset:     mustGetString(cmd, "x264-preset"),
		CRF:        mustGetInt(cmd, "crf"),
		FPS:        mustGetInt(cmd, "fps"),
		Scale:      video.ScaleMode(mustGetString(cmd, "scale")),
		Padding:    mustGetBool(cmd, "padding"),
		Algorithm:  mustGetString(cmd, "algorithm"),
	}
	return s, s.Validate()
}

func runPipeline(cmd *cobra.Command, args []string) error {
	settings, err := settingsFromFlags(cmd)
	if err != nil {
		return err
	}
	rt, err := newRuntime()
	if err != nil {
		return err
	}

	opts := video.Options{
		Preset:     mustGetString(cmd, "preset"),
		KeepVideos: mustGetBool(cmd, "keep-videos"),
	}
	for flag, dst := range map[string]*string{"files": &opts.FilesDir, "main": &opts.MainDir, "output": &opts.OutputDir} {
		if *dst, err = filepath.Abs(mustGetString(cmd, flag)); err != nil {
			return err
		}
	}
	preset := opts.Preset
	if preset == "" {
		preset = batch.DefaultPreset(batch.KindPipeline)
	}
	catalog := rt.catalog
	if _, err := catalog.Get(preset); err != nil {
		return err
	}
	if prefix := mustGetString(cmd, "edit-prefix"); prefix != "" {
		if catalog, err = catalog.WithPrefixRule(preset, prefix, presets.EditPreset); err != nil {
			return err
		}
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	out := cmd.OutOrStdout()
	observers := batch.Observers{newProgressObserver(out, "swap", verbose)}
	if store := rt.openHistory(); store != nil {
		defer store.Close()
		observers = append(observers, batch.NewRecorder(ctx, store, uuid.NewString(), batch.KindPipeline, preset, facefusion.PolicySkip, logger))
	}
	opts.OnStage = func(stage string) {
		fmt.Fprintf(out, "==> %s\n", stage)
	}

	p := video.NewPipeline(rt.ffmpeg(), rt.client, catalog, settings, observers, logger)
	res, err := p.Run(ctx, opts)
	if res.SourceVideo != "" {
		fmt.Fprintf(out, "Stitched %d images\n", res.Images)
	}
	if res.Swap.Total > 0 {
		printSummary(out, res.Swap)
	}
	for _, name := range res.FailedVideos {
		fmt.Fprintf(out, "Could not extract frames from %s\n", name)
	}
	if err != nil {
		var stageErr *video.StageError
		if errors.As(err, &stageErr) && stageErr.Log != nil && stageErr.Log.Stderr != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), strings.TrimSpace(stageErr.Log.Stderr))
		}
		return err
	}
	fmt.Fprintf(out, "Extracted %d frames from %d videos into %s\n", res.Frames, res.Videos-len(res.FailedVideos), res.FramesDir)
	return nil
}
