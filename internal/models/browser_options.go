package models

import "time"

// LaunchOptions configures a browser process launch
type LaunchOptions struct {
	Headless bool
	SlowMo   time.Duration
	Timeout  time.Duration
}

// Viewport is a page viewport size in CSS pixels
type Viewport struct {
	Width  int `toml:"width" yaml:"width" validate:"gt=0"`
	Height int `toml:"height" yaml:"height" validate:"gt=0"`
}

// DeviceProfile overrides the context defaults to emulate a mobile device
type DeviceProfile struct {
	Name              string
	UserAgent         string
	Viewport          Viewport
	DeviceScaleFactor float64
	IsMobile          bool
	HasTouch          bool
}

// ContextOptions configures an isolated browser context
type ContextOptions struct {
	Viewport Viewport
	Device   *DeviceProfile // nil when no device profile was requested
}

// LoadState is a page load milestone
type LoadState string

const (
	LoadStateLoad             LoadState = "load"
	LoadStateDOMContentLoaded LoadState = "domcontentloaded"
	LoadStateNetworkIdle      LoadState = "networkidle"
)

// GotoOptions configures a single navigation attempt
type GotoOptions struct {
	Timeout   time.Duration
	WaitUntil LoadState
}

// ElementState is the state a locator waits for
type ElementState string

const (
	ElementAttached ElementState = "attached"
	ElementVisible  ElementState = "visible"
	ElementHidden   ElementState = "hidden"
)

// WaitForOptions configures a locator wait
type WaitForOptions struct {
	State   ElementState
	Timeout time.Duration
}

// ScreenshotOptions configures a page screenshot. When Path is set the
// image is also written to that file.
type ScreenshotOptions struct {
	FullPage bool
	Path     string
}

// TraceStartOptions configures the context trace recorder
type TraceStartOptions struct {
	Name        string
	Screenshots bool
	Snapshots   bool
}
