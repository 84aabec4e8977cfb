// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"filterstream/internal/analysis"
	"filterstream/internal/audio"
	"filterstream/internal/spectrum"

	tea "github.com/charmbracelet/bubbletea"
)

var testDevices = []audio.Device{
	{ID: 0, Name: "Built-in Microphone", MaxInputChannels: 2, DefaultSampleRate: 48000},
	{ID: 1, Name: "Built-in Output", MaxOutputChannels: 2, DefaultSampleRate: 44100},
	{ID: 2, Name: "Interface", MaxInputChannels: 8, MaxOutputChannels: 8, DefaultSampleRate: 96000},
}

func press(t *testing.T, m tea.Model, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	t.Helper()
	return m.Update(msg)
}

func readyPicker(t *testing.T, fetch func() ([]audio.Device, error)) tea.Model {
	t.Helper()
	var m tea.Model = NewDeviceListModel(fetch)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	m, _ = m.Update(m.Init()())
	return m
}

func TestDevicePickerSelection(t *testing.T) {
	m := readyPicker(t, func() ([]audio.Device, error) { return testDevices, nil })

	view := m.View()
	if !strings.Contains(view, "Built-in Microphone") || strings.Contains(view, "Built-in Output") {
		t.Errorf("input-only list should hide output devices:\n%s", view)
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if !strings.Contains(m.View(), "Configure Device: Interface") {
		t.Fatalf("expected configuration screen:\n%s", m.View())
	}

	// The interface defaults to 96 kHz; one step up is 88.2 kHz.
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyUp})
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("confirming should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("confirming should return tea.Quit")
	}

	sel := m.(DeviceListModel).Selection()
	if sel == nil {
		t.Fatal("expected a selection")
	}
	if sel.DeviceID != 2 || sel.SampleRate != 88200 || !sel.InputOnly {
		t.Errorf("unexpected selection %+v", *sel)
	}
}

func TestDevicePickerShowAllAndBack(t *testing.T) {
	m := readyPicker(t, func() ([]audio.Device, error) { return testDevices, nil })

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if !strings.Contains(m.View(), "Built-in Output") {
		t.Errorf("tab should list every device:\n%s", m.View())
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if !strings.Contains(m.View(), "Audio Device List") {
		t.Errorf("esc should return to the list:\n%s", m.View())
	}

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
	if m.(DeviceListModel).Selection() != nil {
		t.Error("quitting must not select a device")
	}
}

func TestDevicePickerError(t *testing.T) {
	m := readyPicker(t, func() ([]audio.Device, error) { return nil, errors.New("mock error") })
	if !strings.Contains(m.View(), "Error: mock error") {
		t.Errorf("expected error view, got:\n%s", m.View())
	}
}

type fakeSource struct {
	latest *spectrum.FFTSpectrum
}

func (f *fakeSource) Latest() *spectrum.FFTSpectrum { return f.latest }
func (f *fakeSource) Frames() uint64                { return 7 }
func (f *fakeSource) Dropped() uint64               { return 1 }
func (f *fakeSource) GetSampleRate() float64        { return 8000 }

func TestMonitorRendersLatestSpectrum(t *testing.T) {
	src := &fakeSource{}
	var m tea.Model = NewMonitorModel("monitor", src, nil)
	if !strings.Contains(m.View(), "Waiting for the first analysis block") {
		t.Errorf("expected waiting message:\n%s", m.View())
	}

	samples := make([]float64, 256)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*1000*float64(i)/8000)
	}
	s, err := spectrum.FromSignal(samples, 8000)
	if err != nil {
		t.Fatal(err)
	}
	src.latest = s

	m, cmd := m.Update(tickMsg(time.Now()))
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}
	view := m.View()
	for _, want := range []string{"Peak: 1000.0 Hz", "Blocks: 7 analyzed, 1 dropped"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	for _, b := range analysis.DefaultBands(8000) {
		if !strings.Contains(view, b.Name) {
			t.Errorf("view missing band %q", b.Name)
		}
	}

	m, _ = m.Update(tea.WindowSizeMsg{Width: 20, Height: 10})
	if mm := m.(MonitorModel); mm.width != 10 {
		t.Errorf("narrow terminal width = %d, want 10", mm.width)
	}
}
