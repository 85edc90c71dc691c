// Command ntsseed fills a shared cache with the rotating NTS cookie keys of
// the hours around now, or verifies that they are all there.
//
// Exit status is 0 when every key succeeded, 1 when the run could not be
// carried out and 2 when some keys failed.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hoyle1974/ntsseed"
	"github.com/hoyle1974/ntsseed/config"
	"github.com/hoyle1974/ntsseed/storage"
	"github.com/hoyle1974/ntsseed/telemetry"
	flag "github.com/spf13/pflag"
)

const (
	exitOK      = 0
	exitFatal   = 1
	exitPartial = 2
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], nil, os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, args []string, environ map[string]string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ntsseed", flag.ContinueOnError)
	fs.SetOutput(stderr)

	cfg, err := config.Load(fs, args, environ)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "ntsseed: %v\n", err)
		return exitFatal
	}

	zl, err := telemetry.BuildZap(cfg.LogLevel, cfg.LogFormat, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "ntsseed: %v\n", err)
		return exitFatal
	}
	defer zl.Sync()
	logger := telemetry.NewZapLogger(zl)
	metrics := telemetry.NewPrometheusMetrics()

	if cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Deadline)
		defer cancel()
	}

	var store storage.System
	if !cfg.DryRun {
		store, err = storage.Open(ctx, cfg.StorageOptions())
		if err != nil {
			logger.Error("can not open storage", err, "backend", cfg.Backend)
			return exitFatal
		}
		defer storage.Close(store)
	}

	seeder, err := ntsseed.NewSeeder(store, ntsseed.Options{
		Prefix:          cfg.Prefix,
		Window:          cfg.Window(),
		Mode:            ntsseed.Mode(cfg.Mode),
		Concurrency:     cfg.Concurrency,
		WriteTimeout:    cfg.WriteTimeout,
		ConnectAttempts: cfg.ConnectAttempts,
		ConnectDelay:    cfg.ConnectDelay,
		Logger:          logger,
		Metrics:         metrics,
	})
	if err != nil {
		logger.Error("invalid options", err)
		return exitFatal
	}

	if cfg.DryRun {
		printPlan(stdout, seeder.Plan(seeder.Options().Clock.Now()))
		return exitOK
	}

	var report *ntsseed.Report
	if cfg.Check {
		report, err = seeder.Verify(ctx)
	} else {
		report, err = seeder.Fill(ctx)
	}

	if report != nil {
		printReport(stdout, report)
	}
	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Error("can not write metrics", err)
		}
	}

	switch {
	case err != nil:
		logger.Error("run failed", err, "backend", cfg.Backend)
		return exitFatal
	case !report.OK():
		return exitPartial
	}
	return exitOK
}

func printPlan(w io.Writer, slots []ntsseed.Slot) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OFFSET\tSTART\tKEY ID\tKEY")
	for _, s := range slots {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", s.Bucket.Offset, s.Bucket.Start().Format(time.RFC3339), s.Bucket.KeyID(), s.Key)
	}
	tw.Flush()
}

func printReport(w io.Writer, r *ntsseed.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OFFSET\tSTART\tKEY ID\tKEY\tSTATUS\tERROR")
	for _, o := range r.Outcomes {
		msg := ""
		if o.Err != nil && !o.Status.OK() {
			msg = o.Err.Error()
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\n",
			o.Bucket.Offset, o.Bucket.Start().Format(time.RFC3339), o.Bucket.KeyID(), o.Key, o.Status, msg)
	}
	tw.Flush()
	fmt.Fprintln(w, r.String())
}
