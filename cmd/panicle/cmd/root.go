package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/panicle/internal/config"
	"github.com/MeKo-Tech/panicle/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Configuration loader of the current run.
	configLoader *config.Loader
	// Configuration of the current run.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "panicle",
	Short: "Junction labels and detection scoring for rice panicles",
	Long: `panicle turns curated rice-panicle junction records into object detection
labels and scores detections against ground truth.

This tool provides:
- Label files with horizontal or oriented boxes around branching junctions
- Junction extraction from segmentation masks by skeletonization
- Grain boxes spanning the edges that end at a grain
- Greedy IoU matching with per-image precision, recall and F1
- Box overlap and junction distance statistics
- Per-stage timing of label synthesis

Examples:
  panicle labels records/ --output-dir labels/
  panicle labels records/ --source skeleton --mask-dir masks/
  panicle evaluate predictions/ labels/ --format csv --output scores.csv
  panicle render records/p1.yaml images/p1.jpg --output p1_boxes.png`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, _ := cmd.PersistentFlags().GetBool("version")
		if v {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return nil
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
// This allows tests to execute commands without calling os.Exit().
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/panicle, /etc/panicle)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("metrics-addr", "", "serve Prometheus metrics on this address during batch runs")
	rootCmd.PersistentFlags().Bool("version", false, "print version information and exit")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := initConfig(true); err != nil {
			return err
		}
		setupLogging(cmd.ErrOrStderr(), globalConfig)
		return nil
	}
}

// newViper returns a fresh viper with the persistent flags bound, so every
// execution starts from defaults, file, environment and flags only.
func newViper() *viper.Viper {
	v := viper.New()
	_ = v.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("metrics.addr", rootCmd.PersistentFlags().Lookup("metrics-addr"))
	return v
}

// initConfig reads in config file and ENV variables if set.
func initConfig(validate bool) error {
	configLoader = config.NewLoaderWithViper(newViper())

	var err error
	if validate {
		globalConfig, err = configLoader.LoadWithFile(cfgFile)
	} else {
		globalConfig, err = configLoader.LoadWithoutValidation(cfgFile)
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	return nil
}

// setupLogging installs a JSON slog handler on w. Logs go to stderr so
// results on stdout stay machine readable.
func setupLogging(w io.Writer, cfg *config.Config) {
	var logLevel slog.Level
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			logLevel = slog.LevelDebug
		case "warn":
			logLevel = slog.LevelWarn
		case "error":
			logLevel = slog.LevelError
		default:
			logLevel = slog.LevelInfo
		}
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}

// GetConfig returns a copy of the configuration of the current run.
func GetConfig() config.Config {
	if globalConfig == nil {
		if err := initConfig(false); err != nil {
			d := config.DefaultConfig()
			return d
		}
	}
	return *globalConfig
}

// GetConfigLoader returns the configuration loader of the current run.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoaderWithViper(newViper())
	}
	return configLoader
}
