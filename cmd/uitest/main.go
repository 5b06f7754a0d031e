package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/uitest/internal/common"
	"github.com/ternarybob/uitest/internal/fixtures/loginapp"
	"github.com/ternarybob/uitest/internal/lifecycle"
	"github.com/ternarybob/uitest/internal/models"
	"github.com/ternarybob/uitest/internal/services/report"
)

// multiFlag is a custom flag type that can be given multiple times
type multiFlag []string

func (m *multiFlag) String() string {
	return fmt.Sprintf("%v", *m)
}

func (m *multiFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}

var (
	// Command-line flags
	paramFiles   multiFlag // Multiple -params flags supported
	overrides    multiFlag // -set Name=Value
	useFixture   = flag.Bool("fixture", false, "Serve the bundled login app and point BaseUrl at it")
	junitFile    = flag.String("junit", "", "JUnit XML output path (overrides JUnitFile)")
	listOnly     = flag.Bool("list", false, "List scenarios and exit")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&paramFiles, "params", "Test parameters file (.toml or .yaml, can be specified multiple times, later files override earlier ones)")
	flag.Var(&paramFiles, "p", "Test parameters file (shorthand)")
	flag.Var(&overrides, "set", "Test parameter override Name=Value (can be specified multiple times)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("UITest version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	suite := smokeSuite()
	if *listOnly {
		for _, sc := range suite {
			fmt.Println(sc.Name)
		}
		os.Exit(0)
	}

	os.Exit(run(suite))
}

func run(suite []scenario) int {
	// Startup sequence:
	// 1. Load parameters (file1 -> file2 -> ... -> -set)
	// 2. Resolve settings (defaults -> parameters -> env)
	// 3. Initialize logger
	// 4. Print banner
	params, err := loadParameters(paramFiles, overrides)
	if err != nil {
		arbor.NewLogger().Error().Strs("paths", paramFiles).Err(err).Msg("Failed to load test parameters")
		return 1
	}
	if *junitFile != "" {
		params.Set(common.ParamJUnitFile, *junitFile)
	}

	var fixture *loginapp.Server
	if *useFixture {
		fixture, err = startFixture()
		if err != nil {
			arbor.NewLogger().Error().Err(err).Msg("Failed to start login fixture")
			return 1
		}
		defer stopFixture(fixture)
		params.Set(common.ParamBaseURL, fixture.URL())
	}

	config, err := common.ResolveFromEnvironment(params)
	if err != nil {
		arbor.NewLogger().Error().Err(err).Msg("Failed to resolve settings")
		return 1
	}

	logger := common.SetupLogger(config)
	common.PrintBanner(common.GetVersion())

	if err := common.InstallCrashHandler(filepath.Join(config.ArtifactsDir, "logs")); err != nil {
		logger.Warn().Err(err).Msg("Crash handler not installed")
	}
	defer common.RecoverWithCrashFile()

	logger.Info().
		Str("base_url", config.BaseURL).
		Str("engine", config.Engine).
		Str("browser", config.BrowserType).
		Bool("headless", config.Headless).
		Str("environment", config.Environment).
		Int("retry_count", config.RetryCount).
		Strs("params", paramFiles).
		Msg("Settings resolved")

	store, err := report.NewStore(config.Report.StorePath, "", logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open report store")
		return 1
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := lifecycle.New(config,
		lifecycle.WithReportSink(store),
		lifecycle.WithLogger(logger),
	)

	started := time.Now()
	results := runSuite(ctx, orch, suite, config.RetryCount, logger)
	counts := summarize(results)

	for _, r := range results {
		event := logger.Info()
		if r.Outcome.Failed() {
			event = logger.Error()
		}
		event.
			Str("scenario", r.Name).
			Str("status", r.Outcome.Status.String()).
			Int("attempts", r.Attempts).
			Dur("duration", r.Duration).
			Msg("Scenario finished")
	}

	logger.Info().
		Str("run_id", store.RunID()).
		Int("passed", counts[models.TestStatusPassed]).
		Int("failed", counts[models.TestStatusFailed]).
		Int("skipped", counts[models.TestStatusSkipped]).
		Int("inconclusive", counts[models.TestStatusInconclusive]).
		Dur("elapsed", time.Since(started)).
		Msg("Suite complete")

	if config.Report.JUnitFile != "" {
		if err := writeJUnit(store, config); err != nil {
			logger.Error().Err(err).Str("path", config.Report.JUnitFile).Msg("Failed to write JUnit report")
			return 1
		}
		logger.Info().Str("path", config.Report.JUnitFile).Msg("JUnit report written")
	}

	if counts[models.TestStatusFailed] > 0 {
		return 1
	}
	return 0
}

// loadParameters layers parameter files in order, then -set overrides.
func loadParameters(files, sets []string) (common.Parameters, error) {
	params, err := common.LoadParametersFiles(files...)
	if err != nil {
		return nil, err
	}
	for _, kv := range sets {
		name, value, ok := strings.Cut(kv, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid -set value %q: expected Name=Value", kv)
		}
		params.Set(name, value)
	}
	return params, nil
}

func startFixture() (*loginapp.Server, error) {
	app, err := loginapp.New(loginapp.Options{}, common.GetLogger())
	if err != nil {
		return nil, err
	}
	if err := app.Start("127.0.0.1:0"); err != nil {
		return nil, err
	}
	return app, nil
}

func stopFixture(app *loginapp.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Shutdown(ctx); err != nil {
		common.GetLogger().Warn().Err(err).Msg("Login fixture shutdown failed")
	}
}

func writeJUnit(store *report.Store, config common.Config) error {
	suite, err := store.BuildSuite("uitest", map[string]string{
		"base_url":    config.BaseURL,
		"engine":      config.Engine,
		"browser":     config.BrowserType,
		"environment": config.Environment,
		"run_id":      store.RunID(),
	})
	if err != nil {
		return err
	}
	return report.WriteJUnitFile(config.Report.JUnitFile, suite)
}
