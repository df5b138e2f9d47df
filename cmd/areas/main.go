// Command areas replays a recorded map-editing session against the sample
// field state and prints the resulting state as YAML.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/auth-platform/libs/go/optics/config"
	"github.com/auth-platform/libs/go/optics/internal/areas"
	"github.com/auth-platform/libs/go/optics/lens"
	"github.com/auth-platform/libs/go/optics/observability"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "areas:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flags := pflag.NewFlagSet("areas", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	configFile := flags.StringP("config", "c", "", "path to an optics config file")
	scenarioFile := flags.StringP("scenario", "s", "-", "scenario file, - for stdin")
	logLevel := flags.String("log-level", "", "override logging.level")
	showMetrics := flags.Bool("metrics", false, "log plan cache metrics after the replay")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		return err
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = *logLevel
		if err := config.Validate(cfg); err != nil {
			return err
		}
	}

	logger := observability.NewLogger(cfg.Logging, stderr)
	opts := []lens.Option{lens.WithConfig(cfg), lens.WithLogger(logger)}

	if cfg.Tracing.Enabled {
		tp := observability.NewTracerProvider(cfg.Tracing, logger)
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Warn("tracer shutdown failed", slog.Any("error", err))
			}
		}()
		opts = append(opts, lens.WithTracer(tp.Tracer(observability.TracerName)))
	}

	reg := prometheus.NewRegistry()
	opts = append(opts, lens.WithMetricsRegisterer(reg))

	updater, err := areas.NewUpdater(lens.New(opts...))
	if err != nil {
		return err
	}

	in := stdin
	if *scenarioFile != "-" {
		f, err := os.Open(*scenarioFile)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	sc, err := areas.DecodeScenario(in)
	if err != nil {
		return err
	}

	logger.Info("replaying scenario", slog.String("name", sc.Name), slog.Int("messages", len(sc.Messages)))
	final, err := updater.Replay(sc.Start(), sc.Messages)
	if err != nil {
		return err
	}

	if *showMetrics {
		if err := logMetrics(logger, reg); err != nil {
			return err
		}
	}
	return areas.EncodeState(stdout, final)
}

func logMetrics(logger *slog.Logger, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			attrs := []any{slog.String("metric", mf.GetName())}
			for _, lp := range m.GetLabel() {
				attrs = append(attrs, slog.String(lp.GetName(), lp.GetValue()))
			}
			switch {
			case m.GetCounter() != nil:
				attrs = append(attrs, slog.Float64("value", m.GetCounter().GetValue()))
			case m.GetGauge() != nil:
				attrs = append(attrs, slog.Float64("value", m.GetGauge().GetValue()))
			}
			logger.Info("plan cache", attrs...)
		}
	}
	return nil
}
