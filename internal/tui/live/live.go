package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"leakcheck/internal/runner"
	"leakcheck/internal/tui/components"
	"leakcheck/internal/tui/styles"
)

// Model shows the live counters of the path being driven.
type Model struct {
	Path     string
	Stats    runner.StatsSnapshot
	Progress progress.Model

	RpsLine     components.Sparkline
	LatencyLine components.Sparkline

	StartTime  time.Time
	Duration   time.Duration
	LastUpdate time.Time
	LastReqs   uint64

	Width int
}

func NewModel(path string, totalDur time.Duration, width int) Model {
	m := Model{
		Path:        path,
		Progress:    progress.New(progress.WithDefaultGradient()),
		RpsLine:     components.NewSparkline(40, "Completed RPS", styles.Active),
		LatencyLine: components.NewSparkline(40, "Latency P95 (ms)", styles.Warn),
		StartTime:   time.Now(),
		Duration:    totalDur,
		LastUpdate:  time.Now(),
	}
	if width > 0 {
		m = m.resize(width)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runner.StatsSnapshot:
		now := time.Now()
		dt := now.Sub(m.LastUpdate).Seconds()
		if dt < 0.01 {
			dt = 0.01
		}

		rps := float64(msg.Requests-m.LastReqs) / dt
		m.RpsLine.Add(uint64(rps))
		m.LatencyLine.Add(uint64(msg.P95Ms))

		m.Stats = msg
		m.LastReqs = msg.Requests
		m.LastUpdate = now

		pct := float64(time.Since(m.StartTime)) / float64(m.Duration)
		if pct > 1.0 {
			pct = 1.0
		}
		return m, m.Progress.SetPercent(pct)

	case tea.WindowSizeMsg:
		return m.resize(msg.Width), nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) resize(width int) Model {
	m.Width = width
	m.Progress.Width = width - 4

	half := (width / 2) - 4
	if half < 10 {
		half = 10
	}
	m.RpsLine.Width = half
	m.LatencyLine.Width = half
	return m
}

func (m Model) View() string {
	s := strings.Builder{}

	phase := m.Stats.Phase
	if phase == "" {
		phase = "starting"
	}
	s.WriteString(styles.Active.Render(fmt.Sprintf("%s  ·  %s @ %d rps", m.Path, phase, m.Stats.TargetRPS)))
	s.WriteString("\n")

	errRate := m.Stats.ErrorRate

	col1 := fmt.Sprintf("SENT: %d\nINF:  %d", m.Stats.Fired, m.Stats.Inflight)
	col2 := fmt.Sprintf("ERR:  %.2f%%\nFAIL: %d", errRate, m.Stats.Fail)
	if m.Stats.Fail > 0 {
		col2 += " (" + m.Stats.FailureSummary() + ")"
	}
	col3 := fmt.Sprintf("OK:       %d\nMISMATCH: %d", m.Stats.Success, m.Stats.Mismatches)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(styles.ErrorRateStyle(errRate).Render(col2)),
		styles.Box.Render(col3),
	))
	s.WriteString("\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.RpsLine.View()),
		styles.Box.Render(m.LatencyLine.View()),
	))
	s.WriteString("\n")

	latencies := fmt.Sprintf(
		"Mean: %.0f ms  |  P50: %.0f ms  |  P95: %.0f ms  |  P99: %.0f ms  |  Max: %d ms",
		m.Stats.MeanMs, m.Stats.P50Ms, m.Stats.P95Ms, m.Stats.P99Ms, m.Stats.MaxMs,
	)
	s.WriteString(styles.Box.Render(latencies))
	s.WriteString("\n\n")

	s.WriteString(m.Progress.View())
	return s.String()
}
