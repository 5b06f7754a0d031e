package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveURL(t *testing.T) {
	tests := []struct {
		base   string
		target string
		want   string
	}{
		{"https://www.saucedemo.com", "", "https://www.saucedemo.com"},
		{"https://www.saucedemo.com", "inventory.html", "https://www.saucedemo.com/inventory.html"},
		{"https://www.saucedemo.com/", "/inventory.html", "https://www.saucedemo.com/inventory.html"},
		{"http://localhost:8085/app", "login?next=cart", "http://localhost:8085/app/login?next=cart"},
		{"https://www.saucedemo.com", "https://example.com/x", "https://example.com/x"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			got, err := ResolveURL(tt.base, tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveURL_Errors(t *testing.T) {
	_, err := ResolveURL("", "")
	assert.Error(t, err)

	_, err = ResolveURL("", "relative")
	assert.Error(t, err)
}

func TestLookupDevice(t *testing.T) {
	profile, err := LookupDevice("Pixel 5")
	require.NoError(t, err)
	assert.Equal(t, "Pixel 5", profile.Name)
	assert.True(t, profile.IsMobile)
	assert.Greater(t, profile.Viewport.Width, 0)
	assert.Greater(t, profile.DeviceScaleFactor, 0.0)

	_, err = LookupDevice("Commodore 64")
	assert.Error(t, err)

	assert.Contains(t, DeviceNames(), "iPhone 13")
}

func TestSafeCall_RecoversPanic(t *testing.T) {
	err := SafeCall(nil, "boom", func() error { panic("kaboom") })
	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "boom", panicErr.Name)
	assert.Equal(t, "kaboom", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)

	assert.NoError(t, SafeCall(nil, "ok", func() error { return nil }))
}
