package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Jntvanlanschot/Vastgoedanalyse/config"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/pipeline"
)

var (
	cfg    *config.Config
	logger *logrus.Logger
)

// errReported means the error result has already been printed.
var errReported = errors.New("error result reported")

var rootCmd = &cobra.Command{
	Use:           "vastgoed",
	Short:         "Comparable sales analysis for Dutch residential property",
	Long:          "Ranks Funda listings against a reference property, enriched with Realworks transaction exports, and renders the shortlist as a spreadsheet and PDF.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = c
		logger = newLogger(cfg.LogLevel)
		return nil
	},
}

// newLogger logs JSON to stderr so stdout only carries the result.
func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stderr)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logger.WithField("level", level).Warn("Unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

type statusResult interface {
	OK() bool
}

// respond prints the result and turns an error status into a non-zero exit.
func respond(result statusResult) error {
	if err := printJSON(result); err != nil {
		return err
	}
	if !result.OK() {
		return errReported
	}
	return nil
}

// emit is respond for pipeline stages, which also keep the result on disk.
func emit(stage string, result statusResult) error {
	if err := pipeline.SaveResult(cfg.OutputDir, stage, result); err != nil {
		logger.WithError(err).Warn("Failed to save stage result")
	}
	return respond(result)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			printJSON(models.Failure(err))
		}
		stop()
		os.Exit(1)
	}
}
