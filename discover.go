package mcb

import (
	"strings"

	"github.com/jochenvg/go-udev"
)

// DiscoveredDevice names one candidate SPI or GPIO character device found
// by DiscoverDevices.
type DiscoveredDevice struct {
	Path    string
	Subsys  string // "spidev" or "gpio"
	SysName string
}

// DiscoverDevices enumerates /dev/spidev* and /dev/gpiochip* nodes via
// udev, sparing an integrator the job of hardcoding bus/chip-select
// numbers when wiring up OpenSpidev/OpenGPIOInput.
func DiscoverDevices() ([]DiscoveredDevice, error) {
	u := udev.Udev{}

	var found []DiscoveredDevice
	for _, subsys := range []string{"spidev", "gpio"} {
		e := u.NewEnumerate()
		if err := e.AddMatchSubsystem(subsys); err != nil {
			continue
		}
		devices, err := e.Devices()
		if err != nil {
			continue
		}
		for _, d := range devices {
			path := d.Devnode()
			if path == "" || !strings.HasPrefix(path, "/dev/") {
				continue
			}
			found = append(found, DiscoveredDevice{
				Path:    path,
				Subsys:  subsys,
				SysName: d.Sysname(),
			})
		}
	}
	return found, nil
}
