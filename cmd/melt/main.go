// Command melt converts wide decadal projection tables into the consolidated long
// layout and can publish the melted observations to Kafka.
//
// Usage:
//
//	go run ./cmd/melt data/annual --out data/tas_minesites_decadal_annual_mean_alldata_melted.csv
//	go run ./cmd/melt data/annual --kafka-brokers localhost:9092 --topic minesite.observations
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/minesite-climate-service/internal/adapter/csvfile"
	kafkaadapter "github.com/couchcryptid/minesite-climate-service/internal/adapter/kafka"
	"github.com/couchcryptid/minesite-climate-service/internal/config"
	"github.com/couchcryptid/minesite-climate-service/internal/domain"
	"github.com/couchcryptid/minesite-climate-service/internal/observability"
	"github.com/couchcryptid/minesite-climate-service/internal/pipeline"
)

type meltOptions struct {
	out         string
	brokers     string
	topic       string
	batchSize   int
	concurrency int
	verbose     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &meltOptions{}
	cmd := &cobra.Command{
		Use:   "melt <file-or-dir>...",
		Short: "Melt wide projection tables into long observations",
		Long: `Reads wide CSV tables (one row per decade, one column per minesite), attaches
the model and scenario parsed from each filename, and writes one row per
observation. Files whose names carry no provenance are skipped with a warning.`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMelt(cmd, args, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.out, "out", "o", "-", "output CSV path, - for stdout")
	cmd.Flags().StringVar(&opts.brokers, "kafka-brokers", "", "comma-separated brokers to publish observations to")
	cmd.Flags().StringVar(&opts.topic, "topic", "minesite.observations", "Kafka topic for published observations")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 500, "observations per Kafka write")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 4, "files read in parallel")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log skipped files and batches")
	return cmd
}

func runMelt(cmd *cobra.Command, args []string, opts *meltOptions) error {
	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	logger := observability.NewLoggerTo(cmd.ErrOrStderr(), level, "text")
	ctx := cmd.Context()

	loader := pipeline.NewLoader(pipeline.Sources{}, opts.concurrency, nil, logger)
	var parts [][]domain.Observation
	for _, path := range args {
		ds, skipped, err := loader.LoadDataset(ctx, config.DatasetSource{Name: path, Path: path})
		if err != nil {
			return err
		}
		for _, s := range skipped {
			fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %s\n", s.Path, s.Reason)
		}
		parts = append(parts, ds.Observations())
	}
	obs := domain.Concat(parts...)

	if err := writeLong(cmd.OutOrStdout(), opts.out, obs); err != nil {
		return err
	}

	if opts.brokers == "" {
		return nil
	}
	w := kafkaadapter.NewWriter(kafkaadapter.WriterConfig{
		Brokers:   strings.Split(opts.brokers, ","),
		Topic:     opts.topic,
		BatchSize: opts.batchSize,
	}, observability.NewMetrics(), logger)
	defer func() {
		if err := w.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}()
	if err := w.Publish(ctx, obs, domain.Now()); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "published %d observations to %s\n", len(obs), opts.topic)
	return nil
}

func writeLong(stdout io.Writer, path string, obs []domain.Observation) error {
	t := domain.ToLongTable(obs)
	if path == "-" || path == "" {
		return csvfile.WriteTable(stdout, t)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := csvfile.WriteTable(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
