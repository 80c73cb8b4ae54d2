package cmd

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/fusion-batch/internal/config"
	"github.com/kozaktomas/fusion-batch/internal/database"
	_ "github.com/kozaktomas/fusion-batch/internal/database/mariadb"
	_ "github.com/kozaktomas/fusion-batch/internal/database/postgres"
	"github.com/kozaktomas/fusion-batch/internal/facefusion"
	"github.com/kozaktomas/fusion-batch/internal/presets"
	"github.com/kozaktomas/fusion-batch/internal/shell"
	"github.com/kozaktomas/fusion-batch/internal/video"
	"go.uber.org/zap"
)

// runtime holds what every command needs to talk to FaceFusion.
type runtime struct {
	cfg     *config.Config
	client  *facefusion.Client
	catalog *presets.Catalog
}

func newRuntime() (*runtime, error) {
	cfg := config.Load()
	catalog, err := presets.Load(cfg.Presets.Path)
	if err != nil {
		return nil, fmt.Errorf("loading presets: %w", err)
	}
	runner := &shell.ExecRunner{
		Dir:         cfg.FaceFusion.Dir,
		Prefix:      cfg.FaceFusion.ShellPrefix,
		Passthrough: verbose,
	}
	if cfg.FaceFusion.Activated() {
		logger.Debug("facefusion commands run through a shell prefix", zap.String("prefix", cfg.FaceFusion.ShellPrefix))
	}
	return &runtime{
		cfg:     cfg,
		client:  facefusion.NewClient(runner, cfg.FaceFusion.Python, cfg.FaceFusion.Script, logger),
		catalog: catalog,
	}, nil
}

// ffmpeg returns the video tools. Their output is always captured since
// ffprobe and cropdetect results are parsed.
func (rt *runtime) ffmpeg() *video.FFmpeg {
	return video.NewFFmpeg(&shell.ExecRunner{}, rt.cfg.FFmpeg.FFmpegPath, rt.cfg.FFmpeg.FFprobePath, logger)
}

// openHistory connects to the run history. A batch runs without history when
// DATABASE_URL is unset or the database is unreachable; nil is returned then.
func (rt *runtime) openHistory() database.Store {
	store, err := database.Open(&rt.cfg.Database)
	if err != nil {
		if !errors.Is(err, database.ErrDisabled) {
			logger.Warn("run history unavailable", zap.Error(err))
		}
		return nil
	}
	return store
}
