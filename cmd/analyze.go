package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/roadcheck/internal/config"
	"github.com/sells-group/roadcheck/internal/gpx"
	"github.com/sells-group/roadcheck/internal/model"
)

var (
	analyzeSlopeThreshold float64
	analyzeFormat         string
	analyzeOutput         string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE.gpx",
	Short: "Analyze a local GPX file and print the report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		format := strings.ToLower(analyzeFormat)
		if format != "json" && format != "yaml" {
			return eris.Errorf("unsupported format %q (want json or yaml)", analyzeFormat)
		}

		c := *cfg
		if cmd.Flags().Changed("slope-threshold") {
			c.Analysis.SlopeThresholdPercent = analyzeSlopeThreshold
		}
		if err := c.Validate("analyze"); err != nil {
			return err
		}

		report, err := analyzeFile(ctx, &c, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if analyzeOutput != "" {
			f, err := os.Create(analyzeOutput) // #nosec G304 -- path is supplied by the operator
			if err != nil {
				return eris.Wrapf(err, "create %s", analyzeOutput)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		return writeReport(out, report, format)
	},
}

// analyzeFile runs a synchronous analysis of path, logging progress.
func analyzeFile(ctx context.Context, c *config.Config, path string) (*model.AnalysisReport, error) {
	route, err := gpx.ParseFile(path)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("file", path))
	events := make(chan model.ProgressEvent, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			log.Debug("analysis progress",
				zap.String("step", ev.Step),
				zap.Int("percent", ev.Percent),
				zap.Int("processed", ev.ProcessedPoints),
				zap.Int("total", ev.TotalPoints),
			)
		}
	}()

	report, err := initAnalyzer(c).Analyze(ctx, route, filepath.Base(path), events)
	close(events)
	<-done
	if err != nil {
		return nil, err
	}

	log.Info("analysis finished",
		zap.Int("points", report.TotalPoints),
		zap.Int("findings", report.Summary.TotalWarnings),
		zap.Bool("suitable", report.Suitable()),
	)
	return report, nil
}

func writeReport(w io.Writer, report *model.AnalysisReport, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return eris.Wrap(err, "encode yaml report")
		}
		if err := enc.Close(); err != nil {
			return eris.Wrap(err, "flush yaml report")
		}
		return nil
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return eris.Wrap(err, "encode json report")
		}
		return nil
	}
}

func init() {
	analyzeCmd.Flags().Float64Var(&analyzeSlopeThreshold, "slope-threshold", 10.0, "slope warning threshold in percent")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "json", "output format: json or yaml")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "write the report to a file instead of stdout")
	rootCmd.AddCommand(analyzeCmd)
}
