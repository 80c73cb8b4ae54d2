package video

import (
	"testing"
)

func TestScaleFilter(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Settings)
		expected string
	}{
		{
			name:     "default fit with padding",
			mutate:   func(s *Settings) {},
			expected: "scale=w=1920:h=1440:flags=lanczos:force_original_aspect_ratio=decrease,pad=1920:1440:(ow-iw)/2:(oh-ih)/2",
		},
		{
			name:     "fit without padding",
			mutate:   func(s *Settings) { s.Padding = false; s.Resolution = "720p" },
			expected: "scale=1280:720:flags=lanczos:force_original_aspect_ratio=decrease",
		},
		{
			name:     "fill",
			mutate:   func(s *Settings) { s.Scale = ScaleFill; s.Resolution = "2160p" },
			expected: "scale=3840:2160:flags=lanczos:force_original_aspect_ratio=increase,crop=3840:2160",
		},
		{
			name:     "stretch with bicubic",
			mutate:   func(s *Settings) { s.Scale = ScaleStretch; s.Algorithm = "bicubic"; s.Resolution = "1080p" },
			expected: "scale=1920:1080:flags=bicubic",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			if got := s.ScaleFilter(); got != tt.expected {
				t.Errorf("ScaleFilter() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"defaults", func(s *Settings) {}, false},
		{"unknown resolution", func(s *Settings) { s.Resolution = "480p" }, true},
		{"unknown scale", func(s *Settings) { s.Scale = "zoom" }, true},
		{"zero fps", func(s *Settings) { s.FPS = 0 }, true},
		{"crf too high", func(s *Settings) { s.CRF = 52 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			if err := s.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSizeFallsBackTo1080p(t *testing.T) {
	s := Settings{Resolution: "8k"}
	if got := s.Size(); got != (Resolution{Width: 1920, Height: 1080}) {
		t.Errorf("Size() = %+v", got)
	}
}
