package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ternarybob/uitest/internal/models"
)

// Config is the resolved settings snapshot for a test run.
// It holds no reference fields, so every copy is independent.
type Config struct {
	BaseURL                    string          `toml:"base_url" yaml:"base_url" validate:"required,url"`
	Engine                     string          `toml:"engine" yaml:"engine" validate:"oneof=chromedp playwright"`
	BrowserType                string          `toml:"browser_type" yaml:"browser_type" validate:"oneof=chromium chrome msedge firefox webkit"`
	BrowserPath                string          `toml:"browser_path" yaml:"browser_path"` // optional executable override (chromedp only)
	Headless                   bool            `toml:"headless" yaml:"headless"`
	SlowMo                     time.Duration   `toml:"slow_mo" yaml:"slow_mo" validate:"gte=0"`
	Timeout                    time.Duration   `toml:"timeout" yaml:"timeout" validate:"gt=0"`
	Viewport                   models.Viewport `toml:"viewport" yaml:"viewport"`
	Device                     string          `toml:"device" yaml:"device"` // device profile name, e.g. "iPhone 13"
	CaptureScreenshotOnFailure bool            `toml:"capture_screenshot_on_failure" yaml:"capture_screenshot_on_failure"`
	CaptureTraceOnFailure      bool            `toml:"capture_trace_on_failure" yaml:"capture_trace_on_failure"`
	RetryCount                 int             `toml:"retry_count" yaml:"retry_count" validate:"gte=1"` // attempts per scenario in the CLI runner
	Environment                string          `toml:"environment" yaml:"environment"`
	Username                   string          `toml:"-" yaml:"-"`
	Password                   string          `toml:"-" yaml:"-"`
	ArtifactsDir               string          `toml:"artifacts_dir" yaml:"artifacts_dir" validate:"required"`
	Logging                    LoggingConfig   `toml:"logging" yaml:"logging"`
	Report                     ReportConfig    `toml:"report" yaml:"report"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level" validate:"oneof=trace debug info warn error"`
	Output string `toml:"output" yaml:"output" validate:"oneof=console file both"`
}

// ReportConfig controls where attachments and outcomes are recorded.
// An empty StorePath keeps the report store in memory.
type ReportConfig struct {
	StorePath string `toml:"store_path" yaml:"store_path"`
	JUnitFile string `toml:"junit_file" yaml:"junit_file"`
}

const (
	DefaultBaseURL     = "https://www.saucedemo.com"
	DefaultEnvironment = "Local"
	DefaultUsername    = "standard_user"
	// saucedemo rejects "secret_sauce!", which some older suites still fall back to.
	DefaultPassword    = "secret_sauce"
)

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() Config {
	return Config{
		BaseURL:                    DefaultBaseURL,
		Engine:                     "chromedp",
		BrowserType:                "chromium",
		Headless:                   true,
		SlowMo:                     0,
		Timeout:                    30 * time.Second,
		Viewport:                   models.Viewport{Width: 1280, Height: 720},
		CaptureScreenshotOnFailure: true,
		CaptureTraceOnFailure:      true,
		RetryCount:                 1,
		Environment:                DefaultEnvironment,
		Username:                   DefaultUsername,
		Password:                   DefaultPassword,
		ArtifactsDir:               "TestResults",
		Logging: LoggingConfig{
			Level:  "info",
			Output: "console",
		},
	}
}

// Resolve builds the settings snapshot: defaults, then test parameters,
// then environment variables. getenv is normally os.Getenv.
func Resolve(params Parameters, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	config := NewDefaultConfig()

	if err := ApplyParameters(&config, params); err != nil {
		return Config{}, err
	}
	if err := applyEnvOverrides(&config, getenv); err != nil {
		return Config{}, err
	}
	applyCredentials(&config, getenv)

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// ResolveFromEnvironment resolves settings against the process environment.
func ResolveFromEnvironment(params Parameters) (Config, error) {
	return Resolve(params, os.Getenv)
}

// ApplyParameters overlays test-parameter values onto config.
// Unknown parameter names are ignored.
func ApplyParameters(config *Config, params Parameters) error {
	for name, raw := range params {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}

		var err error
		switch name {
		case ParamBaseURL:
			config.BaseURL = value
		case ParamEngine:
			config.Engine = strings.ToLower(value)
		case ParamBrowserType:
			config.BrowserType = strings.ToLower(value)
		case ParamBrowserPath:
			config.BrowserPath = value
		case ParamHeadless:
			config.Headless, err = strconv.ParseBool(value)
		case ParamSlowMo:
			config.SlowMo, err = parseMillis(value)
		case ParamTimeout:
			config.Timeout, err = parseMillis(value)
		case ParamViewportWidth:
			config.Viewport.Width, err = strconv.Atoi(value)
		case ParamViewportHeight:
			config.Viewport.Height, err = strconv.Atoi(value)
		case ParamDevice:
			config.Device = value
		case ParamCaptureScreenshotOnFailure:
			config.CaptureScreenshotOnFailure, err = strconv.ParseBool(value)
		case ParamCaptureTraceOnFailure:
			config.CaptureTraceOnFailure, err = strconv.ParseBool(value)
		case ParamRetryCount:
			config.RetryCount, err = strconv.Atoi(value)
		case ParamArtifactsDir:
			config.ArtifactsDir = value
		case ParamLogLevel:
			config.Logging.Level = strings.ToLower(value)
		case ParamLogOutput:
			config.Logging.Output = strings.ToLower(value)
		case ParamReportStore:
			config.Report.StorePath = value
		case ParamJUnitFile:
			config.Report.JUnitFile = value
		}
		if err != nil {
			return fmt.Errorf("invalid test parameter %s=%q: %w", name, raw, err)
		}
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
// Environment values win over test parameters.
func applyEnvOverrides(config *Config, getenv func(string) string) error {
	if baseURL := getenv("BASE_URL"); baseURL != "" {
		config.BaseURL = baseURL
	}
	if browserType := getenv("BROWSER_TYPE"); browserType != "" {
		config.BrowserType = strings.ToLower(browserType)
	}
	if headless := getenv("HEADLESS"); headless != "" {
		h, err := strconv.ParseBool(headless)
		if err != nil {
			return fmt.Errorf("invalid HEADLESS=%q: %w", headless, err)
		}
		config.Headless = h
	}
	if retryCount := getenv("RETRY_COUNT"); retryCount != "" {
		r, err := strconv.Atoi(retryCount)
		if err != nil {
			return fmt.Errorf("invalid RETRY_COUNT=%q: %w", retryCount, err)
		}
		config.RetryCount = r
	}

	if engine := getenv("UITEST_ENGINE"); engine != "" {
		config.Engine = strings.ToLower(engine)
	}
	if device := getenv("UITEST_DEVICE"); device != "" {
		config.Device = device
	}
	if dir := getenv("UITEST_ARTIFACTS_DIR"); dir != "" {
		config.ArtifactsDir = dir
	}
	if level := getenv("UITEST_LOG_LEVEL"); level != "" {
		config.Logging.Level = strings.ToLower(level)
	}
	if store := getenv("UITEST_REPORT_STORE"); store != "" {
		config.Report.StorePath = store
	}
	return nil
}

// applyCredentials selects the login credentials for the target environment.
func applyCredentials(config *Config, getenv func(string) string) {
	if env := getenv("TEST_ENVIRONMENT"); env != "" {
		config.Environment = env
	}

	userKey, passKey := "TEST_USERNAME", "TEST_PASSWORD"
	if config.IsProduction() {
		userKey, passKey = "PROD_USERNAME", "PROD_PASSWORD"
	}

	config.Username = DefaultUsername
	if u := getenv(userKey); u != "" {
		config.Username = u
	}
	config.Password = DefaultPassword
	if p := getenv(passKey); p != "" {
		config.Password = p
	}
}

// Validate checks the snapshot with struct tags and cross-field rules.
func (c Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Device == "" {
		if err := v.Struct(c.Viewport); err != nil {
			return fmt.Errorf("invalid viewport: %w", err)
		}
	} else if _, err := LookupDevice(c.Device); err != nil {
		return err
	}
	if c.Engine == "chromedp" && !IsChromiumFamily(c.BrowserType) {
		return fmt.Errorf("invalid configuration: engine chromedp cannot drive browser type %q", c.BrowserType)
	}
	return nil
}

// IsProduction returns true if the credentials environment is production
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// IsChromiumFamily reports whether browserType is driven over CDP.
func IsChromiumFamily(browserType string) bool {
	switch strings.ToLower(browserType) {
	case "chromium", "chrome", "msedge":
		return true
	}
	return false
}

// LaunchOptions derives the browser launch options from the snapshot.
func (c Config) LaunchOptions() models.LaunchOptions {
	return models.LaunchOptions{
		Headless: c.Headless,
		SlowMo:   c.SlowMo,
		Timeout:  c.Timeout,
	}
}

// ContextOptions derives the browser context options, including the
// device profile when one is configured.
func (c Config) ContextOptions() (models.ContextOptions, error) {
	opts := models.ContextOptions{Viewport: c.Viewport}
	if c.Device != "" {
		profile, err := LookupDevice(c.Device)
		if err != nil {
			return models.ContextOptions{}, err
		}
		opts.Device = &profile
		opts.Viewport = profile.Viewport
	}
	return opts, nil
}

func parseMillis(value string) (time.Duration, error) {
	ms, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}
