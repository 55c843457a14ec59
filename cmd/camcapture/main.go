package main

import (
	"fmt"
	"os"
	"time"

	"camcapture/internal/core/domain"
	"camcapture/pkg/config"
	"camcapture/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version = "0.1.0"
	cfgFile string

	tierFlag      string
	durationFlag  time.Duration
	transcodeFlag string
	outputDirFlag string
	backendFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "camcapture",
	Short: "Camera capture service",
	Long: `camcapture drives a camera through a single capture session: live
preview, chunked webm recording, filtered stills and export to disk or S3.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control API and live preview",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var snapCmd = &cobra.Command{
	Use:   "snap",
	Short: "Acquire the camera, save one filtered still and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSnap()
	},
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a clip and export it",
	Long: `Record until --duration elapses or the process is interrupted, then
export the clip. With export.transcode=ask the terminal is asked whether
to convert the webm to mp4.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRecord(durationFlag)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("camcapture v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "capture backend: ffmpeg or synthetic")
	rootCmd.PersistentFlags().StringVar(&tierFlag, "tier", "", "initial resolution tier (fhd, hd)")
	rootCmd.PersistentFlags().StringVar(&outputDirFlag, "out", "", "export directory for the file sink")

	recordCmd.Flags().DurationVar(&durationFlag, "duration", 0, "stop after this long (0 waits for Ctrl-C)")
	recordCmd.Flags().StringVar(&transcodeFlag, "transcode", "", "never, always or ask")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(snapCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var defaultConfigPaths = []string{
	"configs/config.yaml",
	"./configs/config.yaml",
	"config.yaml",
}

// loadConfig reads --config, or the first default path that loads, and
// applies command line overrides.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		for _, path := range defaultConfigPaths {
			if loaded, err := config.Load(path); err == nil {
				cfg = loaded
				break
			}
		}
		if cfg == nil {
			cfg = config.DefaultConfig()
		}
	}

	if backendFlag != "" {
		cfg.Capture.Backend = backendFlag
	}
	if tierFlag != "" {
		tier, err := domain.ParseTier(tierFlag)
		if err != nil {
			return nil, err
		}
		cfg.Capture.DefaultTier = string(tier)
	}
	if outputDirFlag != "" {
		cfg.Export.Directory = outputDirFlag
	}
	if transcodeFlag != "" {
		cfg.Export.Transcode = transcodeFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *zap.Logger {
	return logger.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format)
}
