package config

import (
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FACEFUSION_PYTHON", "")
	t.Setenv("FACEFUSION_SCRIPT", "")
	t.Setenv("FACEFUSION_SHELL_PREFIX", "")
	t.Setenv("FFMPEG_PATH", "")
	t.Setenv("FFPROBE_PATH", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "")
	t.Setenv("WEB_PORT", "")
	t.Setenv("LOG_LEVEL", "")

	cfg := Load()

	if cfg.FaceFusion.Python != "python" {
		t.Errorf("expected default python, got '%s'", cfg.FaceFusion.Python)
	}
	if cfg.FaceFusion.Script != "facefusion.py" {
		t.Errorf("expected default script facefusion.py, got '%s'", cfg.FaceFusion.Script)
	}
	if cfg.FaceFusion.Activated() {
		t.Error("expected no shell prefix by default")
	}
	if cfg.FFmpeg.FFmpegPath != "ffmpeg" || cfg.FFmpeg.FFprobePath != "ffprobe" {
		t.Errorf("unexpected ffmpeg defaults: %+v", cfg.FFmpeg)
	}
	if cfg.Database.Enabled() {
		t.Error("expected history to be disabled without DATABASE_URL")
	}
	if cfg.Database.MaxOpenConns != 10 {
		t.Errorf("expected default max open conns 10, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Web.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got '%s'", cfg.LogLevel)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FACEFUSION_PYTHON", "/opt/conda/envs/facefusion/bin/python")
	t.Setenv("FACEFUSION_DIR", "/srv/facefusion")
	t.Setenv("FACEFUSION_SHELL_PREFIX", "conda activate facefusion")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/runs")
	t.Setenv("WEB_PORT", "9090")
	t.Setenv("WEB_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := Load()

	if cfg.FaceFusion.Python != "/opt/conda/envs/facefusion/bin/python" {
		t.Errorf("unexpected python: %s", cfg.FaceFusion.Python)
	}
	if cfg.FaceFusion.Dir != "/srv/facefusion" {
		t.Errorf("unexpected dir: %s", cfg.FaceFusion.Dir)
	}
	if !cfg.FaceFusion.Activated() {
		t.Error("expected shell prefix to be active")
	}
	if !cfg.Database.Enabled() {
		t.Error("expected history to be enabled")
	}
	if cfg.Web.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Web.Port)
	}
}

func TestLoad_BlankPrefixIsInactive(t *testing.T) {
	t.Setenv("FACEFUSION_SHELL_PREFIX", "   ")

	cfg := Load()

	if cfg.FaceFusion.Activated() {
		t.Error("expected whitespace-only prefix to be ignored")
	}
}

func TestEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected int
	}{
		{"unset", "", 5},
		{"valid", "12", 12},
		{"invalid", "invalid", 5},
		{"negative", "-100", 5},
		{"zero", "0", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("FUSION_BATCH_TEST_INT", tt.value)
			if got := envInt("FUSION_BATCH_TEST_INT", 5); got != tt.expected {
				t.Errorf("envInt(%q) = %d, want %d", tt.value, got, tt.expected)
			}
		})
	}
}

func TestLoad_AllowedOrigins(t *testing.T) {
	t.Setenv("WEB_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := Load()

	if len(cfg.Web.AllowedOrigins) != 2 || cfg.Web.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("unexpected origins: %v", cfg.Web.AllowedOrigins)
	}
}
