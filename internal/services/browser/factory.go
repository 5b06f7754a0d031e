package browser

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/uitest/internal/common"
	"github.com/ternarybob/uitest/internal/interfaces"
)

// Engine names accepted in Config.Engine
const (
	EngineChromeDP   = "chromedp"
	EnginePlaywright = "playwright"
)

// NewEngineFactory returns the factory that creates one engine per session
// for the engine named in the settings snapshot.
func NewEngineFactory(config common.Config, logger arbor.ILogger) (interfaces.EngineFactory, error) {
	switch config.Engine {
	case EngineChromeDP, "":
		if !common.IsChromiumFamily(config.BrowserType) {
			return nil, fmt.Errorf("chromedp cannot drive browser type %q", config.BrowserType)
		}
		chromeConfig := ChromeDPConfig{
			BrowserType: config.BrowserType,
			ExecPath:    config.BrowserPath,
			NoSandbox:   true,
			Timeout:     config.Timeout,
		}
		return func(ctx context.Context) (interfaces.Engine, error) {
			return NewChromeDPEngine(chromeConfig, logger), nil
		}, nil

	case EnginePlaywright:
		pwConfig := PlaywrightConfig{
			BrowserType: config.BrowserType,
			Timeout:     config.Timeout,
		}
		return func(ctx context.Context) (interfaces.Engine, error) {
			engine := NewPlaywrightEngine(pwConfig, logger)
			if err := engine.Start(ctx); err != nil {
				return nil, err
			}
			return engine, nil
		}, nil

	default:
		return nil, fmt.Errorf("unknown browser engine %q", config.Engine)
	}
}
