package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dailyscan/internal/app"
	"github.com/ternarybob/dailyscan/internal/common"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	// Command-line flags
	configFiles  configPaths // Multiple -config flags supported
	tickersFile  = flag.String("tickers", "", "Ticker list file (overrides config)")
	outputDir    = flag.String("output", "", "Report output directory (overrides config)")
	providerName = flag.String("provider", "", "Market data provider: yahoo or eodhd (overrides config)")
	logLevel     = flag.String("log-level", "", "Log level: debug, info, warn or error (overrides config)")
	dryRun       = flag.Bool("dry-run", false, "Write the reports but do not send email")
	runTimeout   = flag.Duration("timeout", 10*time.Minute, "Abort the run after this long")
	nextRuns     = flag.Int("next", 0, "Print the next N scheduled runs and exit")
	cronFor      = flag.String("cron-for", "", "Print the UTC cron expression for a local HH:MM run time and exit")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	os.Exit(run())
}

func run() int {
	defer common.RecoverWithCrashFile()

	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("DailyScan version %s\n", common.GetFullVersion())
		return common.ExitOK
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
	// 2. Apply CLI overrides (highest priority)
	// 3. Initialize logger
	// 4. Print banner
	if len(configFiles) == 0 {
		if _, err := os.Stat("dailyscan.toml"); err == nil {
			configFiles = append(configFiles, "dailyscan.toml")
		} else if _, err := os.Stat("deployments/dailyscan.toml"); err == nil {
			configFiles = append(configFiles, "deployments/dailyscan.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Error().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration files")
		return common.ExitCode(err)
	}

	common.ApplyFlagOverrides(config, common.FlagOverrides{
		TickersFile: *tickersFile,
		OutputDir:   *outputDir,
		Provider:    *providerName,
		LogLevel:    *logLevel,
	})

	if *nextRuns > 0 || *cronFor != "" {
		return printSchedule(config)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())
	common.InstallCrashHandler(config.Report.OutputDir)

	logger.Debug().
		Strs("config_files", configFiles).
		Str("tickers_file", config.Tickers.File).
		Str("provider", config.Provider.Name).
		Strs("formats", config.Report.Formats).
		Str("log_level", config.Logging.Level).
		Strs("log_output", config.Logging.Output).
		Str("log_file", common.GetLogFilePath(logger)).
		Msg("Resolved configuration (sanitized)")

	application, err := app.New(config, logger, app.WithDryRun(*dryRun))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize application")
		return common.ExitCode(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *runTimeout)
	defer cancel()

	result, err := application.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Int("exit_code", common.ExitCode(err)).Msg("Run failed")
		return common.ExitCode(err)
	}

	for _, f := range result.Files {
		fmt.Println(f.Path)
	}
	return common.ExitOK
}

// printSchedule answers -next and -cron-for without running a scan
func printSchedule(config *common.Config) int {
	loc := config.Schedule.Location()

	if *cronFor != "" {
		expr, err := common.CronForLocal(*cronFor, loc, time.Now())
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -cron-for value: %v\n", err)
			return common.ExitConfigError
		}
		fmt.Printf("%s  # %s %s\n", expr, *cronFor, loc)
	}

	if *nextRuns > 0 {
		runs, err := common.NextRuns(config.Schedule.Cron, *nextRuns, time.Now(), loc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid schedule %q: %v\n", config.Schedule.Cron, err)
			return common.ExitConfigError
		}
		for _, r := range runs {
			fmt.Println(r.Format("2006-01-02 15:04 MST"))
		}
	}

	return common.ExitOK
}
