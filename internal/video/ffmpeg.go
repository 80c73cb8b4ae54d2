package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kozaktomas/fusion-batch/internal/metrics"
	"github.com/kozaktomas/fusion-batch/internal/shell"
	"go.uber.org/zap"
)

// FFmpeg runs ffmpeg and ffprobe through a shell.Runner. The runner must
// capture stderr: crop detection parses it.
type FFmpeg struct {
	runner  shell.Runner
	ffmpeg  string
	ffprobe string
	logger  *zap.Logger
}

// NewFFmpeg creates the wrapper; empty paths default to the binaries on PATH.
func NewFFmpeg(runner shell.Runner, ffmpegPath, ffprobePath string, logger *zap.Logger) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpeg{runner: runner, ffmpeg: ffmpegPath, ffprobe: ffprobePath, logger: logger.Named("ffmpeg")}
}

func (f *FFmpeg) run(ctx context.Context, label, name string, args ...string) (shell.CommandLog, error) {
	res, err := f.runner.Run(ctx, name, args...)
	log := shell.NewLog(name, args, res)
	metrics.ObserveCommand(label, err)
	fields := []zap.Field{
		zap.String("command", log.String()),
		zap.Int("exit_code", log.ExitCode),
		zap.Duration("duration", log.Duration),
	}
	if err != nil {
		f.logger.Warn(label+" failed", append(fields, zap.String("stderr", tail(log.Stderr, 2048)), zap.Error(err))...)
		return log, err
	}
	f.logger.Debug(label+" finished", fields...)
	return log, nil
}

// EncodeArgs builds the ffmpeg arguments encoding a numbered image sequence.
func EncodeArgs(s Settings, pattern, output string) []string {
	fps := strconv.Itoa(s.FPS)
	return []string{
		"-hide_banner", "-y",
		"-framerate", fps,
		"-i", pattern,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-preset", s.Preset,
		"-crf", strconv.Itoa(s.CRF),
		"-r", fps,
		"-vf", s.ScaleFilter(),
		output,
	}
}

// Encode stitches the image sequence matching pattern into output.
func (f *FFmpeg) Encode(ctx context.Context, s Settings, pattern, output string) (shell.CommandLog, error) {
	return f.run(ctx, "ffmpeg-encode", f.ffmpeg, EncodeArgs(s, pattern, output)...)
}

// StreamInfo describes the first video stream of a file.
type StreamInfo struct {
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	FrameRate string `json:"r_frame_rate"`
}

type probeOutput struct {
	Streams []StreamInfo `json:"streams"`
}

// ParseProbe extracts the first video stream from ffprobe JSON output.
func ParseProbe(data []byte) (StreamInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return StreamInfo{}, fmt.Errorf("decoding ffprobe output: %w", err)
	}
	for _, s := range out.Streams {
		if s.CodecType == "video" {
			return s, nil
		}
	}
	return StreamInfo{}, errors.New("no video stream found")
}

// Probe reads the video stream information of path.
func (f *FFmpeg) Probe(ctx context.Context, path string) (StreamInfo, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_type,width,height,r_frame_rate",
		"-of", "json",
		path,
	}
	log, err := f.run(ctx, "ffprobe", f.ffprobe, args...)
	if err != nil {
		return StreamInfo{}, err
	}
	return ParseProbe([]byte(log.Stdout))
}

// ParseFrameRate evaluates an ffprobe rate such as "30000/1001" or "60".
func ParseFrameRate(rate string) (float64, error) {
	num, den, found := strings.Cut(strings.TrimSpace(rate), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frame rate %q: %w", rate, err)
	}
	if !found {
		return n, nil
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frame rate %q: %w", rate, err)
	}
	if d == 0 {
		return 0, fmt.Errorf("invalid frame rate %q: zero denominator", rate)
	}
	return n / d, nil
}

var cropPattern = regexp.MustCompile(`crop=(\d+:\d+:\d+:\d+)`)

// ParseCropValues returns every crop=w:h:x:y suggestion in cropdetect output.
func ParseCropValues(stderr string) []string {
	matches := cropPattern.FindAllStringSubmatch(stderr, -1)
	values := make([]string, 0, len(matches))
	for _, m := range matches {
		values = append(values, m[1])
	}
	return values
}

// DetectCrop runs cropdetect over the whole video and returns its suggestions.
func (f *FFmpeg) DetectCrop(ctx context.Context, path string) ([]string, error) {
	args := []string{"-hide_banner", "-i", path, "-vf", "cropdetect=24:2:0", "-f", "null", "-"}
	log, err := f.run(ctx, "ffmpeg-cropdetect", f.ffmpeg, args...)
	if err != nil {
		return nil, err
	}
	return ParseCropValues(log.Stderr), nil
}

// ExtractArgs builds the ffmpeg arguments writing every frame of input as
// JPEG at the highest quality. crop may be empty.
func ExtractArgs(input, frameRate, crop, pattern string) []string {
	filter := "fps=" + frameRate
	if crop != "" {
		filter += ",crop=" + crop
	}
	return []string{
		"-hide_banner", "-y",
		"-i", input,
		"-vf", filter,
		"-vsync", "0",
		"-q:v", "0",
		pattern,
	}
}

// Extract writes the frames of input to pattern.
func (f *FFmpeg) Extract(ctx context.Context, input, frameRate, crop, pattern string) (shell.CommandLog, error) {
	return f.run(ctx, "ffmpeg-extract", f.ffmpeg, ExtractArgs(input, frameRate, crop, pattern)...)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
