package video

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kozaktomas/fusion-batch/internal/constants"
	"github.com/kozaktomas/fusion-batch/internal/media"
	"go.uber.org/zap"
)

// ErrMixedExtensions is returned when the images to stitch do not share one
// file format: ffmpeg reads them through a single numbered pattern.
var ErrMixedExtensions = errors.New("images must share one file format")

// stitchExtension normalizes an extension for the numbered pattern.
func stitchExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".jpeg" {
		return ".jpg"
	}
	return ext
}

// NumberedNames maps sorted image names to img001<ext>, img002<ext>, ...
// and returns the ffmpeg input pattern for them.
func NumberedNames(images []string) (names []string, pattern string, err error) {
	if len(images) == 0 {
		return nil, "", media.ErrNoInputs
	}
	ext := stitchExtension(images[0])
	names = make([]string, len(images))
	for i, img := range images {
		if e := stitchExtension(img); e != ext {
			return nil, "", fmt.Errorf("%w: %s and %s", ErrMixedExtensions, images[0], img)
		}
		names[i] = fmt.Sprintf(constants.NumberedImagePattern, i+1) + ext
	}
	return names, constants.NumberedImagePattern + ext, nil
}

// renameSequence renames from[i] to to[i] inside dir in two passes through
// temporary names so that an existing img002.jpg is never overwritten.
func renameSequence(dir string, from, to []string) error {
	temp := make([]string, len(from))
	for i, name := range from {
		temp[i] = fmt.Sprintf(".stitch-%06d%s", i, filepath.Ext(to[i]))
		if err := os.Rename(filepath.Join(dir, name), filepath.Join(dir, temp[i])); err != nil {
			return fmt.Errorf("renaming %s: %w", name, err)
		}
	}
	for i := range temp {
		if err := os.Rename(filepath.Join(dir, temp[i]), filepath.Join(dir, to[i])); err != nil {
			return fmt.Errorf("renaming %s: %w", from[i], err)
		}
	}
	return nil
}

// Stitch renames the images of dir to a numbered sequence, encodes them into
// dir/source_video.mp4 and deletes the numbered images. It returns the video
// path and the number of images used.
func (p *Pipeline) Stitch(ctx context.Context, dir string) (string, int, error) {
	images, err := media.ListFiles(dir, media.KindImage)
	if err != nil {
		return "", 0, &StageError{Stage: StageStitch, Message: "cannot list images", Err: err}
	}
	if len(images) == 0 {
		return "", 0, &StageError{Stage: StageStitch, Message: fmt.Sprintf("no images found in %s", dir), Err: media.ErrNoInputs}
	}

	numbered, pattern, err := NumberedNames(images)
	if err != nil {
		return "", 0, &StageError{Stage: StageStitch, Message: err.Error(), Err: err}
	}
	if err := renameSequence(dir, images, numbered); err != nil {
		return "", 0, &StageError{Stage: StageStitch, Message: "cannot number images", Err: err}
	}

	output := filepath.Join(dir, constants.SourceVideoName)
	size := p.settings.Size()
	p.logger.Info("encoding source video", zap.Int("images", len(images)), zap.String("resolution", fmt.Sprintf("%dx%d", size.Width, size.Height)))
	log, err := p.ffmpeg.Encode(ctx, p.settings, filepath.Join(dir, pattern), output)
	if err != nil {
		return "", 0, &StageError{Stage: StageStitch, Message: "encoding source video failed", Log: &log, Err: err}
	}

	for _, name := range numbered {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.logger.Warn("could not delete numbered image", zap.String("path", name), zap.Error(err))
		}
	}
	return output, len(images), nil
}
