package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/logging"
	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/normalize"
	"github.com/ppiankov/tntracker/internal/pipeline"
	"github.com/ppiankov/tntracker/internal/store"
	"github.com/ppiankov/tntracker/internal/telemetry"
)

const banner = "═══════════════════════════════════════════════════════════"

// maxWarnings caps the warnings printed per source unless --verbose is set
const maxWarnings = 5

// openStore opens and migrates the configured database.
func openStore(ctx context.Context, cfg *model.Config) (*store.Store, error) {
	s, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, errors.NewConfigError("database", "cannot open "+cfg.Database.Driver+" database", err)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, errors.NewConfigError("database", "cannot apply schema", err)
	}
	return s, nil
}

// withStore loads configuration, opens the store and runs fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, cfg *model.Config, s *store.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	return fn(ctx, cfg, s)
}

// withOrchestrator wires the pipeline and stops it cooperatively on SIGINT
// or SIGTERM: queued sources are dropped and running merges finish.
func withOrchestrator(cmd *cobra.Command, fn func(ctx context.Context, cfg *model.Config, o *pipeline.Orchestrator) error) error {
	return withStore(cmd, func(ctx context.Context, cfg *model.Config, s *store.Store) error {
		var opts []pipeline.Option
		if cfg.Metrics.Enabled {
			provider, err := telemetry.New(ctx, cfg.Metrics, Version)
			if err != nil {
				return errors.NewConfigError("metrics", "cannot start meter provider", err)
			}
			provider.Install()
			opts = append(opts, pipeline.WithMeterProvider(provider.MeterProvider()))
			defer finishMetrics(provider)
		}

		o, err := pipeline.New(ctx, s, cfg, opts...)
		if err != nil {
			return err
		}
		defer o.Close()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-sigCh:
				fmt.Fprintln(os.Stderr, "\nStopping: finishing in-flight merges...")
				o.Stop()
			case <-done:
			}
		}()

		return fn(ctx, cfg, o)
	})
}

// finishMetrics prints the collected counters and flushes the exporters.
func finishMetrics(p *telemetry.Provider) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if points, err := p.Snapshot(ctx); err == nil {
		printMetrics(os.Stderr, points)
	}
	if err := p.Shutdown(ctx); err != nil {
		logging.Warn().Err(err).Msg("metrics shutdown failed")
	}
}

func printMetrics(w io.Writer, points []telemetry.Point) {
	if len(points) == 0 {
		return
	}
	fmt.Fprintf(w, "Metrics:\n")
	for _, pt := range points {
		if pt.Count > 0 {
			fmt.Fprintf(w, "  %-28s %-44s n=%d sum=%.3f\n", pt.Name, pt.Attrs, pt.Count, pt.Value)
			continue
		}
		fmt.Fprintf(w, "  %-28s %-44s %s\n", pt.Name, pt.Attrs, normalize.FormatIndian(int64(pt.Value)))
	}
	fmt.Fprintln(w)
}

// runImport runs specs and prints the summary. Only configuration errors
// are returned; unreachable sources are warnings in the summary.
func runImport(cmd *cobra.Command, title string, build func(cfg *model.Config) ([]pipeline.SourceSpec, error)) error {
	return withOrchestrator(cmd, func(ctx context.Context, cfg *model.Config, o *pipeline.Orchestrator) error {
		specs, err := build(cfg)
		if err != nil {
			return err
		}
		run, err := o.Run(ctx, specs)
		printRunSummary(os.Stderr, title, run)
		return err
	})
}

func printRunSummary(w io.Writer, title string, run model.RunSummary) {
	fmt.Fprintf(w, "\n%s\n  %s\n%s\n\n", banner, title, banner)
	if run.RunID != "" {
		fmt.Fprintf(w, "  Run:       %s\n\n", run.RunID)
	}

	for _, src := range run.Sources {
		mark := "✓"
		switch {
		case src.State == model.StateFailedSource:
			mark = "✗"
		case src.State != model.StateCompleted:
			mark = "·"
		case len(src.Warnings) > 0 || src.NeedsReview > 0:
			mark = "!"
		}
		fmt.Fprintf(w, "%s %s (%s) [%s, %s]\n", mark, src.Name, src.Origin, src.State, src.Duration.Round(time.Millisecond))
		if src.State == model.StateCompleted {
			fmt.Fprintf(w, "    %s\n", countsLine(src))
		}
		for i, warning := range src.Warnings {
			if i == maxWarnings && !verbose {
				fmt.Fprintf(w, "    ... and %d more warnings (use --verbose)\n", len(src.Warnings)-maxWarnings)
				break
			}
			fmt.Fprintf(w, "    - %s\n", warning)
		}
	}

	totals := run.Totals()
	fmt.Fprintf(w, "\n%s\n", banner)
	fmt.Fprintf(w, "  Sources:   %d (%d failed)\n", len(run.Sources), len(run.FailedSources()))
	fmt.Fprintf(w, "  Records:   %s\n", countsLine(totals))
	if run.Stopped {
		fmt.Fprintf(w, "  Stopped before all sources ran\n")
	}
	if run.NeedsAttention() {
		fmt.Fprintf(w, "  Needs attention: see warnings above and 'tntracker review list'\n")
	}
	fmt.Fprintln(w)
}

func countsLine(s model.SourceSummary) string {
	return fmt.Sprintf("created %s, updated %s, unchanged %s, skipped %s, needs review %s, failed %s",
		normalize.FormatIndian(int64(s.Created)),
		normalize.FormatIndian(int64(s.Updated)),
		normalize.FormatIndian(int64(s.Unchanged)),
		normalize.FormatIndian(int64(s.Skipped)),
		normalize.FormatIndian(int64(s.NeedsReview)),
		normalize.FormatIndian(int64(s.Failed)))
}
