package common

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chromedp/chromedp/device"

	"github.com/ternarybob/uitest/internal/models"
)

// emulatedDevices lists the device profiles a context can emulate.
// Descriptors come from the chromedp device table so both engines
// emulate the same metrics.
var emulatedDevices = []device.Info{
	device.IPhone13.Device(),
	device.IPhone13Pro.Device(),
	device.IPhone13ProMax.Device(),
	device.IPhone13Mini.Device(),
	device.IPhone12.Device(),
	device.IPhoneSE.Device(),
	device.IPhoneX.Device(),
	device.IPadMini.Device(),
	device.IPadPro11.Device(),
	device.GalaxyS9.Device(),
	device.GalaxyS8.Device(),
	device.GalaxyTabS4.Device(),
	device.Pixel2.Device(),
	device.Pixel3.Device(),
	device.Pixel5.Device(),
	device.IPhone13landscape.Device(),
	device.Pixel5landscape.Device(),
}

// LookupDevice returns the device profile registered under name.
// Matching ignores case.
func LookupDevice(name string) (models.DeviceProfile, error) {
	for _, info := range emulatedDevices {
		if strings.EqualFold(info.Name, strings.TrimSpace(name)) {
			return deviceProfile(info), nil
		}
	}
	return models.DeviceProfile{}, fmt.Errorf("unknown device profile %q", name)
}

// DeviceNames returns the sorted names of all emulated device profiles
func DeviceNames() []string {
	names := make([]string, 0, len(emulatedDevices))
	for _, info := range emulatedDevices {
		names = append(names, info.Name)
	}
	sort.Strings(names)
	return names
}

func deviceProfile(info device.Info) models.DeviceProfile {
	return models.DeviceProfile{
		Name:      info.Name,
		UserAgent: info.UserAgent,
		Viewport: models.Viewport{
			Width:  int(info.Width),
			Height: int(info.Height),
		},
		DeviceScaleFactor: info.Scale,
		IsMobile:          info.Mobile,
		HasTouch:          info.Touch,
	}
}
