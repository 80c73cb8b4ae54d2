// Package video turns a folder of images into a face-swapped frame sequence:
// stitch the images into a video, swap every face onto it, extract the frames
// back and clean up.
package video

import (
	"fmt"
	"sort"
	"strings"
)

// Resolution is an output frame size.
type Resolution struct {
	Width  int
	Height int
}

var resolutions = map[string]Resolution{
	"720p":  {Width: 1280, Height: 720},
	"1080p": {Width: 1920, Height: 1080},
	"1440p": {Width: 1920, Height: 1440},
	"2160p": {Width: 3840, Height: 2160},
}

// ResolutionNames lists the supported resolution names.
func ResolutionNames() []string {
	names := make([]string, 0, len(resolutions))
	for n := range resolutions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ScaleMode decides how images of another aspect ratio fit the frame.
type ScaleMode string

const (
	// ScaleFit keeps the aspect ratio inside the frame (padded when Padding is set).
	ScaleFit ScaleMode = "fit"
	// ScaleFill covers the frame and crops the overflow.
	ScaleFill ScaleMode = "fill"
	// ScaleStretch ignores the aspect ratio.
	ScaleStretch ScaleMode = "stretch"
)

// Settings control how the source video is encoded.
type Settings struct {
	Resolution string
	Preset     string // x264 preset
	CRF        int
	FPS        int
	Scale      ScaleMode
	Padding    bool
	Algorithm  string // swscale flags, e.g. lanczos
}

// DefaultSettings returns lossless 1440p at 60 fps, fitted and padded.
func DefaultSettings() Settings {
	return Settings{
		Resolution: "1440p",
		Preset:     "veryslow",
		CRF:        0,
		FPS:        60,
		Scale:      ScaleFit,
		Padding:    true,
		Algorithm:  "lanczos",
	}
}

// Validate checks the settings before any file is touched.
func (s Settings) Validate() error {
	if _, ok := resolutions[s.Resolution]; !ok {
		return fmt.Errorf("unknown resolution %q (want one of %s)", s.Resolution, strings.Join(ResolutionNames(), ", "))
	}
	switch s.Scale {
	case ScaleFit, ScaleFill, ScaleStretch:
	default:
		return fmt.Errorf("unknown scale mode %q (want fit, fill or stretch)", s.Scale)
	}
	if s.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %d", s.FPS)
	}
	if s.CRF < 0 || s.CRF > 51 {
		return fmt.Errorf("crf must be between 0 and 51, got %d", s.CRF)
	}
	return nil
}

// Size returns the frame size of the configured resolution, 1080p when unknown.
func (s Settings) Size() Resolution {
	if r, ok := resolutions[s.Resolution]; ok {
		return r
	}
	return resolutions["1080p"]
}

// ScaleFilter builds the -vf expression for the configured mode.
func (s Settings) ScaleFilter() string {
	r := s.Size()
	w, h, alg := r.Width, r.Height, s.Algorithm
	switch {
	case s.Scale == ScaleFit && s.Padding:
		return fmt.Sprintf("scale=w=%d:h=%d:flags=%s:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2", w, h, alg, w, h)
	case s.Scale == ScaleFill:
		return fmt.Sprintf("scale=%d:%d:flags=%s:force_original_aspect_ratio=increase,crop=%d:%d", w, h, alg, w, h)
	case s.Scale == ScaleStretch:
		return fmt.Sprintf("scale=%d:%d:flags=%s", w, h, alg)
	default:
		return fmt.Sprintf("scale=%d:%d:flags=%s:force_original_aspect_ratio=decrease", w, h, alg)
	}
}
