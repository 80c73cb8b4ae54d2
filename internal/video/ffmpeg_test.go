package video

import (
	"math"
	"reflect"
	"testing"
)

func TestParseProbe(t *testing.T) {
	data := []byte(`{"streams":[{"codec_type":"audio"},{"codec_type":"video","width":1920,"height":1440,"r_frame_rate":"60/1"}]}`)
	info, err := ParseProbe(data)
	if err != nil {
		t.Fatalf("ParseProbe() error = %v", err)
	}
	expected := StreamInfo{CodecType: "video", Width: 1920, Height: 1440, FrameRate: "60/1"}
	if info != expected {
		t.Errorf("ParseProbe() = %+v, want %+v", info, expected)
	}

	if _, err := ParseProbe([]byte(`{"streams":[{"codec_type":"audio"}]}`)); err == nil {
		t.Error("expected error without a video stream")
	}
	if _, err := ParseProbe([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		rate     string
		expected float64
		wantErr  bool
	}{
		{"60/1", 60, false},
		{"30000/1001", 29.97002997, false},
		{"25", 25, false},
		{"0/0", 0, true},
		{"abc", 0, true},
		{"30/x", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.rate, func(t *testing.T) {
			got, err := ParseFrameRate(tt.rate)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFrameRate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if math.Abs(got-tt.expected) > 1e-6 {
				t.Errorf("ParseFrameRate() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseCropValues(t *testing.T) {
	stderr := `[Parsed_cropdetect_0 @ 0x1] x1:0 x2:1919 y1:180 y2:1259 w:1920 h:1072 x:0 y:184 pts:1 t:0.016 crop=1920:1072:0:184
frame=  10 fps=0.0 q=-0.0 size=N/A
[Parsed_cropdetect_0 @ 0x1] x1:0 x2:1919 y1:180 y2:1259 w:1920 h:1072 x:0 y:184 pts:2 t:0.033 crop=1920:1072:0:184`
	expected := []string{"1920:1072:0:184", "1920:1072:0:184"}
	if got := ParseCropValues(stderr); !reflect.DeepEqual(got, expected) {
		t.Errorf("ParseCropValues() = %v, want %v", got, expected)
	}
	if got := ParseCropValues("no crop here"); len(got) != 0 {
		t.Errorf("expected no values, got %v", got)
	}
}

func TestEncodeArgs(t *testing.T) {
	args := EncodeArgs(DefaultSettings(), "files/img%03d.jpg", "files/source_video.mp4")
	expected := []string{
		"-hide_banner", "-y",
		"-framerate", "60",
		"-i", "files/img%03d.jpg",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-preset", "veryslow",
		"-crf", "0",
		"-r", "60",
		"-vf", "scale=w=1920:h=1440:flags=lanczos:force_original_aspect_ratio=decrease,pad=1920:1440:(ow-iw)/2:(oh-ih)/2",
		"files/source_video.mp4",
	}
	if !reflect.DeepEqual(args, expected) {
		t.Errorf("EncodeArgs() =\n%v\nwant\n%v", args, expected)
	}
}

func TestExtractArgs(t *testing.T) {
	args := ExtractArgs("folder/output_1_anna.mp4", "60/1", "1920:1072:0:184", "frames/frame_000001_%03d.jpg")
	expected := []string{
		"-hide_banner", "-y",
		"-i", "folder/output_1_anna.mp4",
		"-vf", "fps=60/1,crop=1920:1072:0:184",
		"-vsync", "0",
		"-q:v", "0",
		"frames/frame_000001_%03d.jpg",
	}
	if !reflect.DeepEqual(args, expected) {
		t.Errorf("ExtractArgs() = %v", args)
	}

	args = ExtractArgs("in.mp4", "30", "", "out_%03d.jpg")
	if args[5] != "fps=30" {
		t.Errorf("filter without crop = %s", args[5])
	}
}
