package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kozaktomas/fusion-batch/internal/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	logLevel string
	verbose  bool
	logger   = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "fusion-batch",
	Short: "Batch face swapping and enhancement on top of the FaceFusion job CLI",
	Long: `Fusion Batch drives the FaceFusion job queue for whole folders of images
and videos: single-source and pairwise swaps, swap matrices, enhancement,
multi-pass restoration and the image-to-video-to-frames pipeline.

Every batch is a sequence of FaceFusion jobs (create, add step, submit, run,
delete). Results are written to the output folder and, when DATABASE_URL is
set, recorded in the run history.`,
	SilenceUsage:      true,
	PersistentPreRunE: initLogger,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (defaults to LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Stream FaceFusion and ffmpeg output to the terminal")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

func initLogger(cmd *cobra.Command, args []string) error {
	name := logLevel
	if name == "" {
		name = os.Getenv("LOG_LEVEL")
	}
	lvl, err := log.ParseLevel(name)
	if err != nil {
		return err
	}
	logger = log.InitLog(lvl)
	return nil
}
