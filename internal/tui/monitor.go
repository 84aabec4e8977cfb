// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"filterstream/internal/analysis"
	"filterstream/internal/spectrum"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	monitorRefresh = 100 * time.Millisecond
	floorDB        = -90.0
	barWidth       = 40
)

var barStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))

// SpectrumSource is what the monitor polls; *analysis.SpectrumAnalyzer
// implements it.
type SpectrumSource interface {
	Latest() *spectrum.FFTSpectrum
	Frames() uint64
	Dropped() uint64
	GetSampleRate() float64
}

type tickMsg time.Time

// MonitorModel shows live band energies and the spectral peak.
type MonitorModel struct {
	src     SpectrumSource
	bands   []analysis.Band
	title   string
	energy  map[string]float64
	peakHz  float64
	peakDB  float64
	frames  uint64
	dropped uint64
	width   int
}

// NewMonitorModel polls src; nil bands selects the defaults for its rate.
func NewMonitorModel(title string, src SpectrumSource, bands []analysis.Band) MonitorModel {
	if bands == nil {
		bands = analysis.DefaultBands(src.GetSampleRate())
	}
	return MonitorModel{src: src, bands: bands, title: title, width: barWidth}
}

func tick() tea.Cmd {
	return tea.Tick(monitorRefresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m MonitorModel) Init() tea.Cmd { return tick() }

func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, keyQuit) {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = max(10, min(barWidth, msg.Width-30))
	case tickMsg:
		m.poll()
		return m, tick()
	}
	return m, nil
}

// poll refreshes the cached view of the latest spectrum.
func (m *MonitorModel) poll() {
	m.frames = m.src.Frames()
	m.dropped = m.src.Dropped()
	latest := m.src.Latest()
	if latest == nil {
		return
	}
	m.energy = analysis.BandEnergy(&latest.Spectrum, m.bands)
	m.peakHz, m.peakDB = analysis.Peak(&latest.Spectrum)
}

func (m MonitorModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.title))
	sb.WriteString("\n\n")

	if m.energy == nil {
		sb.WriteString("Waiting for the first analysis block...\n")
	} else {
		for _, b := range m.bands {
			db := floorDB
			if e := m.energy[b.Name]; e > 0 {
				db = max(floorDB, 10*math.Log10(e))
			}
			filled := int(math.Round(float64(m.width) * (db - floorDB) / -floorDB))
			filled = max(0, min(m.width, filled))
			bar := barStyle.Render(strings.Repeat("█", filled)) + strings.Repeat("·", m.width-filled)
			fmt.Fprintf(&sb, "%-8s %s %6.1f dB\n", b.Name, bar, db)
		}
		fmt.Fprintf(&sb, "\nPeak: %.1f Hz (%.1f dB)\n", m.peakHz, m.peakDB)
	}
	fmt.Fprintf(&sb, "Blocks: %d analyzed, %d dropped\n\n", m.frames, m.dropped)
	sb.WriteString(infoStyle.Render("q: Quit"))
	return sb.String()
}

// RunMonitor shows the monitor until the user quits or ctx is done.
func RunMonitor(ctx context.Context, title string, src SpectrumSource, bands []analysis.Band) error {
	p := tea.NewProgram(NewMonitorModel(title, src, bands), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
