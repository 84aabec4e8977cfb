// SPDX-License-Identifier: MIT
package audio

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

var fakeDevices = []*portaudio.DeviceInfo{
	{
		Name:                   "Built-in Microphone",
		MaxInputChannels:       2,
		DefaultSampleRate:      48000,
		DefaultLowInputLatency: 3 * time.Millisecond,
		HostApi:                &portaudio.HostApiInfo{Name: "Core Audio"},
	},
	{
		Name:                    "Built-in Output",
		MaxOutputChannels:       2,
		DefaultSampleRate:       44100,
		DefaultLowOutputLatency: 5 * time.Millisecond,
	},
	{
		Name:              "Interface",
		MaxInputChannels:  8,
		MaxOutputChannels: 8,
		DefaultSampleRate: 96000,
	},
}

// withFakeDevices swaps the PortAudio lookups for fakeDevices.
func withFakeDevices(t *testing.T) {
	t.Helper()
	origDevices, origIn, origOut := paDevicesFunc, defaultInputDevice, defaultOutputDevice
	t.Cleanup(func() {
		paDevicesFunc, defaultInputDevice, defaultOutputDevice = origDevices, origIn, origOut
	})
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return fakeDevices, nil }
	defaultInputDevice = func() (*portaudio.DeviceInfo, error) { return fakeDevices[0], nil }
	defaultOutputDevice = func() (*portaudio.DeviceInfo, error) { return fakeDevices[1], nil }
}

func TestHostDevices(t *testing.T) {
	withFakeDevices(t)

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices error: %v", err)
	}
	if len(devices) != len(fakeDevices) {
		t.Fatalf("got %d devices, want %d", len(devices), len(fakeDevices))
	}
	for i, d := range devices {
		if d.ID != i {
			t.Errorf("Device ID mismatch: got %d, want %d", d.ID, i)
		}
		if d.Name != fakeDevices[i].Name {
			t.Errorf("Device %d name = %q, want %q", i, d.Name, fakeDevices[i].Name)
		}
	}
	if devices[0].HostAPI != "Core Audio" || devices[1].HostAPI != "" {
		t.Errorf("unexpected host APIs %q, %q", devices[0].HostAPI, devices[1].HostAPI)
	}

	kinds := []string{"Input", "Output", "Input/Output"}
	for i, want := range kinds {
		if got := devices[i].Kind(); got != want {
			t.Errorf("device %d kind = %q, want %q", i, got, want)
		}
	}
}

func TestHostDevices_paDevicesError(t *testing.T) {
	withFakeDevices(t)
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock error")
	}

	_, err := HostDevices()
	if err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestInputOutputDevice(t *testing.T) {
	withFakeDevices(t)

	tests := []struct {
		name    string
		lookup  func(int) (*portaudio.DeviceInfo, error)
		id      int
		want    string
		wantErr bool
	}{
		{"default input", InputDevice, -1, "Built-in Microphone", false},
		{"default output", OutputDevice, -1, "Built-in Output", false},
		{"input by id", InputDevice, 2, "Interface", false},
		{"output by id", OutputDevice, 2, "Interface", false},
		{"input without channels", InputDevice, 1, "", true},
		{"output without channels", OutputDevice, 0, "", true},
		{"out of range", InputDevice, 3, "", true},
		{"negative", OutputDevice, -2, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, err := tt.lookup(tt.id)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for device %d", tt.id)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if dev.Name != tt.want {
				t.Errorf("got %q, want %q", dev.Name, tt.want)
			}
		})
	}
}

func TestListDevices(t *testing.T) {
	withFakeDevices(t)

	var buf bytes.Buffer
	if err := ListDevices(&buf); err != nil {
		t.Fatalf("ListDevices error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"[0] Built-in Microphone (Input)",
		"Host API: Core Audio",
		"[2] Interface (Input/Output)",
		"Default sample rate: 96000 Hz",
		"Input latency: Low=3.00ms",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
