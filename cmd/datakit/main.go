// Command datakit prepares a labeled image corpus for detector training:
// it validates and splits the raw corpus, augments the training split,
// materializes the YOLO dataset layout with its manifest, and auto-labels
// the result through a pretrained detector service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/plastivision/datakit/internal/config"
	"github.com/plastivision/datakit/internal/pipeline"
	"github.com/plastivision/datakit/internal/split"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configPath string
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:           "datakit",
		Short:         "Prepare a labeled image corpus for detector training",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml",
		"path to the configuration file")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	root.AddCommand(preprocessCmd(), autolabelCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "datakit: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the structured logger. Logs go to stderr; stdout is
// reserved for the run summaries.
func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

// runContext cancels on interrupt so in-flight items finish and no new work
// is issued. Partial output is regenerated by the next full run.
func runContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func preprocessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preprocess",
		Short: "Validate, split and augment the raw corpus into the dataset layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, cancel := runContext()
			defer cancel()

			res, err := pipeline.Preprocess(ctx, cfg, logger)
			if err != nil {
				return err
			}

			fmt.Println("Preprocessing summary:")
			fmt.Printf("  valid corpus: %d images (%d skipped by validation)\n",
				res.Valid, res.SkippedValidation)
			for _, name := range split.Names {
				fmt.Printf("  %-5s %d images\n", name, res.Counts[name])
			}
			if res.WriteFailures > 0 {
				fmt.Printf("  write failures: %d\n", res.WriteFailures)
			}
			fmt.Printf("  manifest: %s\n", res.ManifestPath)
			return nil
		},
	}
}

func autolabelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "autolabel",
		Short: "Generate draft annotations for the dataset layout via the detector service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, cancel := runContext()
			defer cancel()

			summary, err := pipeline.Autolabel(ctx, cfg, nil, logger)
			if err != nil {
				return err
			}

			fmt.Println("Auto-labeling summary:")
			fmt.Printf("  processed: %d images\n", summary.Processed)
			fmt.Printf("  labeled:   %d\n", summary.Labeled)
			fmt.Printf("  empty:     %d\n", summary.Empty)
			fmt.Printf("  skipped:   %d (detector failures, written as empty samples)\n", summary.Skipped)
			if summary.WriteFailures > 0 {
				fmt.Printf("  write failures: %d\n", summary.WriteFailures)
			}
			perClass := summary.PerClass()
			classes := make([]string, 0, len(perClass))
			for class := range perClass {
				classes = append(classes, class)
			}
			sort.Strings(classes)
			fmt.Println("Per-class counts:")
			for _, class := range classes {
				c := perClass[class]
				fmt.Printf("  %s: %d/%d labeled\n", class, c.Labeled, c.Total)
			}
			fmt.Println("Note: auto-labels are a draft; review them before training.")
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("datakit %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
		},
	}
}
