// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"io"

	"filterstream/internal/config"

	"github.com/gordonklaus/portaudio"
)

// Swappable in tests.
var (
	paDevicesFunc       = portaudio.Devices
	defaultInputDevice  = portaudio.DefaultInputDevice
	defaultOutputDevice = portaudio.DefaultOutputDevice
)

// Initialize sets up the PortAudio subsystem.
// This must be called before any audio operations and paired with a Terminate() call.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
// This should be deferred immediately after Initialize().
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// HostDevices returns every device PortAudio reports, indexed by device ID.
// PortAudio must be initialized.
func HostDevices() ([]Device, error) {
	infos, err := paDevicesFunc()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = deviceFromInfo(i, info)
	}
	return devices, nil
}

// InputDevice retrieves the capture device for deviceID. MinDeviceID (-1)
// selects the system default. The device must have input channels.
func InputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	info, err := lookupDevice(deviceID, defaultInputDevice)
	if err != nil {
		return nil, err
	}
	if info.MaxInputChannels == 0 {
		return nil, fmt.Errorf("device %d (%s) has no input channels", deviceID, info.Name)
	}
	return info, nil
}

// OutputDevice retrieves the playback device for deviceID. MinDeviceID (-1)
// selects the system default. The device must have output channels.
func OutputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	info, err := lookupDevice(deviceID, defaultOutputDevice)
	if err != nil {
		return nil, err
	}
	if info.MaxOutputChannels == 0 {
		return nil, fmt.Errorf("device %d (%s) has no output channels", deviceID, info.Name)
	}
	return info, nil
}

func lookupDevice(deviceID int, fallback func() (*portaudio.DeviceInfo, error)) (*portaudio.DeviceInfo, error) {
	if deviceID == config.MinDeviceID {
		return fallback()
	}
	devices, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}
	if deviceID < 0 || deviceID >= len(devices) {
		return nil, fmt.Errorf("invalid device ID: %d", deviceID)
	}
	return devices[deviceID], nil
}

// ListDevices writes a human-readable table of all devices to w.
func ListDevices(w io.Writer) error {
	devices, err := HostDevices()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nAvailable Audio Devices\n\n")
	for _, d := range devices {
		fmt.Fprintf(w, "[%d] %s (%s)\n", d.ID, d.Name, d.Kind())
		if d.HostAPI != "" {
			fmt.Fprintf(w, "    Host API: %s\n", d.HostAPI)
		}
		fmt.Fprintf(w, "    Input channels: %d, Output channels: %d\n", d.MaxInputChannels, d.MaxOutputChannels)
		fmt.Fprintf(w, "    Default sample rate: %.0f Hz\n", d.DefaultSampleRate)
		fmt.Fprintf(w, "    Input latency: Low=%.2fms, High=%.2fms\n",
			d.LowInputLatency.Seconds()*1000, d.HighInputLatency.Seconds()*1000)
		fmt.Fprintf(w, "    Output latency: Low=%.2fms, High=%.2fms\n",
			d.LowOutputLatency.Seconds()*1000, d.HighOutputLatency.Seconds()*1000)
		fmt.Fprintln(w)
	}
	return nil
}
