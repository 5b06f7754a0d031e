package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Parameters is the test-parameter source: named string values supplied
// by the runner (CLI flags or a parameters file).
type Parameters map[string]string

// Test parameter names
const (
	ParamBaseURL                    = "BaseUrl"
	ParamEngine                     = "Engine"
	ParamBrowserType                = "BrowserType"
	ParamBrowserPath                = "BrowserPath"
	ParamHeadless                   = "Headless"
	ParamSlowMo                     = "SlowMo"  // milliseconds
	ParamTimeout                    = "Timeout" // milliseconds
	ParamViewportWidth              = "ViewportWidth"
	ParamViewportHeight             = "ViewportHeight"
	ParamDevice                     = "Device"
	ParamCaptureScreenshotOnFailure = "CaptureScreenshotOnFailure"
	ParamCaptureTraceOnFailure      = "CaptureTraceOnFailure"
	ParamRetryCount                 = "RetryCount"
	ParamArtifactsDir               = "ArtifactsDir"
	ParamLogLevel                   = "LogLevel"
	ParamLogOutput                  = "LogOutput"
	ParamReportStore                = "ReportStore"
	ParamJUnitFile                  = "JUnitFile"
)

// Set stores a parameter value and returns the receiver for chaining
func (p Parameters) Set(name, value string) Parameters {
	p[name] = value
	return p
}

// Merge returns a new Parameters with other's values layered over p
func (p Parameters) Merge(other Parameters) Parameters {
	merged := make(Parameters, len(p)+len(other))
	for k, v := range p {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// LoadParametersFile reads a flat parameters file. The format is chosen by
// extension: .toml, or .yaml/.yml. Scalar values are kept in their textual
// form and parsed during resolution.
func LoadParametersFile(path string) (Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameters file: %w", err)
	}

	raw := make(map[string]interface{})
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse parameters file %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse parameters file %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported parameters file extension %q", ext)
	}

	params := make(Parameters, len(raw))
	for name, value := range raw {
		switch v := value.(type) {
		case map[string]interface{}, []interface{}:
			return nil, fmt.Errorf("parameter %s in %s must be a scalar value", name, path)
		case nil:
			continue
		default:
			params[name] = fmt.Sprint(v)
		}
	}
	return params, nil
}

// LoadParametersFiles loads and merges parameter files in order;
// later files override earlier ones.
func LoadParametersFiles(paths ...string) (Parameters, error) {
	params := Parameters{}
	for _, path := range paths {
		if path == "" {
			continue
		}
		loaded, err := LoadParametersFile(path)
		if err != nil {
			return nil, err
		}
		params = params.Merge(loaded)
	}
	return params, nil
}
