package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"

	"github.com/evchargectl/evchargectl/pkg/config"
	"github.com/evchargectl/evchargectl/pkg/csvreport"
	"github.com/evchargectl/evchargectl/pkg/emissions"
	"github.com/evchargectl/evchargectl/pkg/log"
	"github.com/evchargectl/evchargectl/pkg/loop"
	"github.com/evchargectl/evchargectl/pkg/metrics"
	"github.com/evchargectl/evchargectl/pkg/simulator"
	"github.com/evchargectl/evchargectl/pkg/vehicle"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "generate-config":
		err = runGenerateConfig(os.Args[2:])
	case "start":
		err = runStart(os.Args[2:])
	case "simulator":
		err = runSimulator(os.Args[2:])
	case "merge-csv":
		err = runMergeCSV(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: evchargectl <generate-config|start|simulator|merge-csv> [flags]")
}

// configureLogging mirrors the level-mapping lflag/llog does for slog
// throughout this codebase; lflag sets llog's level as a side effect of
// lflag.Configure, so slog's level var has to be set from it afterward.
func configureLogging() {
	var level slog.Level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	log.SetDefaultLogLevel(level)
}

func runGenerateConfig(args []string) error {
	fs := flag.NewFlagSet("generate-config", flag.ExitOnError)
	out := fs.String("out", "config.yaml", "path to write the generated policy document")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return config.Save(*out, config.Default())
}

func runStart(args []string) error {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the policy document")
	metricsAddr := fs.String("metrics-addr", "", "optional host:port to serve Prometheus metrics on")
	dryRun := fs.Bool("dry-run", false, "log charge start/stop decisions instead of sending them")
	if err := fs.Parse(args); err != nil {
		return err
	}

	policy, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if err := config.Validate(policy); err != nil {
		return fmt.Errorf("start: invalid config: %w", err)
	}

	vehicleClient := vehicle.NewHTTPClient(policy.Vehicle["baseUrl"], policy.Vehicle, *dryRun)
	emissionsClient := emissions.NewHTTPClient(policy.Emissions["apiUrl"], policy.Emissions)

	lflag.Configure()
	configureLogging()

	var gauges *metrics.Gauges
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *metricsAddr != "" {
		gauges = metrics.New()
		srv := metrics.NewServer(*metricsAddr, gauges)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "metrics server failed", slog.Any("error", err))
			}
		}()
	}

	l := loop.New(policy, vehicleClient, emissionsClient, gauges)
	if err := l.Run(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	log.Ctx(ctx).InfoContext(ctx, "control loop exited cleanly")
	return nil
}

func runSimulator(args []string) error {
	fs := flag.NewFlagSet("simulator", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the policy document")
	days := fs.Int("days", 1, fmt.Sprintf("number of backtest days to run, 1-%d", simulator.MaxDays))
	start := fs.String("start", "", fmt.Sprintf("first day's local date (YYYY-MM-DD), must be at least %d days in the past", simulator.MinDaysInPast))
	outPrefix := fs.String("out-prefix", "backtest", "prefix for the per-day output CSV files")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *start == "" {
		return fmt.Errorf("simulator: -start is required")
	}

	policy, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("simulator: %w", err)
	}
	if err := config.Validate(policy); err != nil {
		return fmt.Errorf("simulator: invalid config: %w", err)
	}
	if err := simulator.ValidateDayCount(*days); err != nil {
		return fmt.Errorf("simulator: %w", err)
	}

	loc, err := policy.Location()
	if err != nil {
		return fmt.Errorf("simulator: %w", err)
	}
	startDate, err := time.ParseInLocation("2006-01-02", *start, loc)
	if err != nil {
		return fmt.Errorf("simulator: parse -start: %w", err)
	}
	if err := simulator.ValidateStart(startDate, time.Now()); err != nil {
		return fmt.Errorf("simulator: %w", err)
	}

	emissionsClient := emissions.NewHTTPClient(policy.Emissions["apiUrl"], policy.Emissions)
	sim := simulator.New(policy, emissionsClient)

	ctx := context.Background()
	for i := 0; i < *days; i++ {
		day := startDate.AddDate(0, 0, i)
		rows, err := sim.RunDay(ctx, day)
		if err != nil {
			return fmt.Errorf("simulator: day %s: %w", day.Format("2006-01-02"), err)
		}
		path := fmt.Sprintf("%s_%s.csv", *outPrefix, day.Format("2006-01-02"))
		if err := csvreport.WriteFile(path, rows); err != nil {
			return fmt.Errorf("simulator: write %s: %w", path, err)
		}
		fmt.Println(path)
	}
	return nil
}

func runMergeCSV(args []string) error {
	fs := flag.NewFlagSet("merge-csv", flag.ExitOnError)
	socOnly := fs.Bool("soc-only", false, "keep only state-of-charge columns")
	emissionsOnly := fs.Bool("emissions-only", false, "keep only emissions and limit columns")
	out := fs.String("out", "merged.csv", "output file path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	inputs := fs.Args()
	if len(inputs) == 0 {
		return fmt.Errorf("merge-csv: at least one input file is required")
	}
	if *socOnly && *emissionsOnly {
		return fmt.Errorf("merge-csv: -soc-only and -emissions-only are mutually exclusive")
	}

	filter := csvreport.FilterAll
	switch {
	case *socOnly:
		filter = csvreport.FilterSoCOnly
	case *emissionsOnly:
		filter = csvreport.FilterEmissionsOnly
	}

	labels := make([]string, len(inputs))
	for i, in := range inputs {
		labels[i] = fmt.Sprintf("d%d", i)
	}

	return csvreport.Merge(inputs, labels, filter, *out)
}
