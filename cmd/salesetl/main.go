// salesetl loads hourly sales partitions and customer records into DuckDB
// and aggregates them per customer.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/xtxerr/salesetl/internal/errors"
	"github.com/xtxerr/salesetl/internal/logging"
	"github.com/xtxerr/salesetl/internal/pipeline/config"
	"github.com/xtxerr/salesetl/internal/source"
)

// Version is set at build time via ldflags
var Version = "dev"

const usage = `usage: salesetl [flags] <command> [args]

Commands:
  partitions                 list legal partition keys and their load state
  load-partition KEY...      load the given hourly partitions (YYYY-MM-DD-HH:MM)
  load-customers             load the customer table
  aggregate                  aggregate all loaded partitions per customer
  run                        load every partition and the customers, then aggregate

Flags:
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fset := flag.NewFlagSet("salesetl", flag.ContinueOnError)
	cfgPath := fset.String("config", "config.yaml", "config file path")
	dataDir := fset.String("data-dir", "", "data directory (overrides config)")
	dbPath := fset.String("db", "", "database path (overrides config)")
	logLevel := fset.String("log-level", "", "log level (overrides config)")
	jsonLogs := fset.Bool("json", false, "log as JSON")
	workers := fset.Int("workers", 0, "concurrent partition loads (overrides config)")
	export := fset.Bool("export", false, "export the aggregated table to Parquet")
	showVersion := fset.Bool("version", false, "print version and exit")
	fset.Usage = func() {
		fmt.Fprint(fset.Output(), usage)
		fset.PrintDefaults()
	}

	if err := fset.Parse(args); err != nil {
		return errors.ExitInvalidConfig
	}
	if *showVersion {
		fmt.Println("salesetl", Version)
		return errors.ExitOK
	}
	if fset.NArg() == 0 {
		fset.Usage()
		return errors.ExitInvalidConfig
	}

	// Load config
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg = config.DefaultConfig()
		} else {
			fmt.Fprintf(os.Stderr, "salesetl: %v\n", err)
			return errors.ExitInvalidConfig
		}
	}

	// CLI overrides
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *jsonLogs {
		cfg.Logging.JSON = true
	}
	if *workers > 0 {
		cfg.Scheduler.Workers = *workers
	}
	if *export {
		cfg.Export.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "salesetl: %v\n", err)
		return errors.ExitInvalidConfig
	}

	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logging.Init(level, cfg.Logging.JSON)
	logging.Debug("salesetl starting", "version", Version, "config", *cfgPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := dispatch(ctx, cfg, fset.Arg(0), fset.Args()[1:]); err != nil {
		logging.Error("command failed", "command", fset.Arg(0), "error", err)
		fmt.Fprintf(os.Stderr, "salesetl: %v\n", err)
		return errors.ExitCode(err)
	}
	return errors.ExitOK
}

func dispatch(ctx context.Context, cfg *config.Config, cmd string, args []string) error {
	switch cmd {
	case "partitions", "load-partition", "load-customers", "aggregate", "run":
	default:
		return errors.NewValidation("command", fmt.Sprintf("unknown command %q", cmd))
	}

	p, err := openPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	// One parse of each source per command, shared by the resolver and loads.
	ctx = source.WithReadCache(ctx)

	switch cmd {
	case "partitions":
		return p.listPartitions(ctx, os.Stdout)
	case "load-partition":
		return p.loadPartitions(ctx, args)
	case "load-customers":
		return p.loadCustomers(ctx)
	case "aggregate":
		return p.aggregate(ctx)
	default:
		return p.runAll(ctx)
	}
}
