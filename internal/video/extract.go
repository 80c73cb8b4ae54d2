package video

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kozaktomas/fusion-batch/internal/constants"
	"go.uber.org/zap"
)

// ChooseCrop picks the most frequent cropdetect suggestion (the earliest on a
// tie) and keeps it only when it removes more than CropThreshold of the width
// or height.
func ChooseCrop(values []string, width, height int) (string, bool) {
	if len(values) == 0 || width <= 0 || height <= 0 {
		return "", false
	}

	counts := make(map[string]int, len(values))
	best, bestCount := "", 0
	for _, v := range values {
		counts[v]++
	}
	for _, v := range values {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}

	parts := strings.Split(best, ":")
	if len(parts) != 4 {
		return "", false
	}
	w, errW := strconv.Atoi(parts[0])
	h, errH := strconv.Atoi(parts[1])
	if errW != nil || errH != nil {
		return "", false
	}

	widthReduction := float64(width-w) / float64(width)
	heightReduction := float64(height-h) / float64(height)
	if widthReduction > constants.CropThreshold || heightReduction > constants.CropThreshold {
		return best, true
	}
	return "", false
}

// framePrefix is the name prefix of the frames of a video whose first frame
// continues the numbering after start frames.
func framePrefix(start int) string {
	return fmt.Sprintf("frame_%06d_", start+1)
}

// FramePattern returns the ffmpeg output pattern for a video's frames, e.g.
// frame_000121_%03d.jpg for a video following 120 extracted frames.
func FramePattern(dir string, start int) string {
	return filepath.Join(dir, framePrefix(start)+"%03d.jpg")
}

// CountFrames counts the frames extracted for the video starting after start.
func CountFrames(dir string, start int) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading frames folder %s: %w", dir, err)
	}
	prefix := framePrefix(start)
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			n++
		}
	}
	return n, nil
}

// extractVideo writes the frames of one video and returns how many it wrote.
func (p *Pipeline) extractVideo(ctx context.Context, path, framesDir string, start int) (int, error) {
	info, err := p.ffmpeg.Probe(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("probing %s: %w", path, err)
	}
	fps, err := ParseFrameRate(info.FrameRate)
	if err != nil {
		return 0, err
	}
	p.logger.Info("video details",
		zap.String("video", filepath.Base(path)),
		zap.Int("width", info.Width),
		zap.Int("height", info.Height),
		zap.Float64("fps", fps))

	values, err := p.ffmpeg.DetectCrop(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("detecting black bars in %s: %w", path, err)
	}
	crop, ok := ChooseCrop(values, info.Width, info.Height)
	if ok {
		p.logger.Info("cropping black bars", zap.String("video", filepath.Base(path)), zap.String("crop", crop))
	}

	if _, err := p.ffmpeg.Extract(ctx, path, info.FrameRate, crop, FramePattern(framesDir, start)); err != nil {
		return 0, fmt.Errorf("extracting frames from %s: %w", path, err)
	}
	return CountFrames(framesDir, start)
}
