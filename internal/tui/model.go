package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"leakcheck/internal/analyzer"
	"leakcheck/internal/cli"
	"leakcheck/internal/orchestrator"
	"leakcheck/internal/runner"
	"leakcheck/internal/tui/live"
	"leakcheck/internal/tui/styles"
)

type pathStartedMsg struct {
	label string
	path  string
}

type pathFinishedMsg struct {
	label  string
	report analyzer.Report
}

type doneMsg struct {
	cmp *orchestrator.Comparison
	err error
}

type finished struct {
	label  string
	report analyzer.Report
}

type Model struct {
	Cfg    runner.Config
	Live   live.Model
	Active bool

	Finished []finished
	Result   *orchestrator.Comparison
	Err      error
	Done     bool

	cancel context.CancelFunc
	Width  int
}

func NewModel(cfg runner.Config, cancel context.CancelFunc) Model {
	return Model{Cfg: cfg, cancel: cancel}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.cancel()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(msg)
		return m, cmd

	case pathStartedMsg:
		total := runner.TotalDuration(runner.BuildSchedule(m.Cfg.DurationSec, m.Cfg.PeakRPS))
		m.Live = live.NewModel(msg.path, total, m.Width)
		m.Active = true
		return m, nil

	case pathFinishedMsg:
		m.Active = false
		m.Finished = append(m.Finished, finished{label: msg.label, report: msg.report})
		return m, nil

	case doneMsg:
		m.Done = true
		m.Result = msg.cmp
		m.Err = msg.err
		return m, nil

	default:
		// snapshots and progress frames
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	s := strings.Builder{}

	s.WriteString(styles.Title.Render("🔬 Isolation Load Test"))
	s.WriteString("\n")
	s.WriteString(styles.Subtle.Render(fmt.Sprintf(
		"Target: %s | %ds per path | peak %d rps | delay %dms | ~%d in flight",
		m.Cfg.BaseURL, m.Cfg.DurationSec, m.Cfg.PeakRPS, m.Cfg.DelayMs, m.Cfg.ExpectedInflight(),
	)))
	s.WriteString("\n\n")

	for _, f := range m.Finished {
		s.WriteString(styles.Section.Render(fmt.Sprintf("%s: %s", f.label, f.report.Path)))
		s.WriteString("\n")
		s.WriteString(styles.Box.Render(strings.TrimRight(cli.FormatReport(f.report), "\n")))
		s.WriteString("\n")
	}

	if m.Active {
		s.WriteString(m.Live.View())
		s.WriteString("\n")
	}

	if m.Done {
		s.WriteString("\n")
		switch {
		case m.Err != nil:
			s.WriteString(styles.Error.Render("Run failed: " + m.Err.Error()))
			s.WriteString("\n")
		case m.Result != nil:
			for _, v := range m.Result.Verdict {
				s.WriteString(cli.FormatVerdict(v))
				s.WriteString("\n")
			}
			if m.Result.AnyFailed() {
				s.WriteString(styles.Warn.Render("⚠️  Some requests failed; upstream rate limiting may be rejecting load."))
				s.WriteString("\n")
			}
		}
	}

	s.WriteString("\n")
	s.WriteString(styles.Subtle.Render("Press q to quit"))
	return s.String()
}

// observer forwards orchestration events into the bubbletea program.
type observer struct {
	send func(tea.Msg)

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func (o *observer) PathStarted(label, path string, r *runner.Runner) {
	o.send(pathStartedMsg{label: label, path: path})

	o.mu.Lock()
	o.stop = make(chan struct{})
	o.done = make(chan struct{})
	stop, done := o.stop, o.done
	o.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			case snap := <-r.Updates:
				o.send(snap)
			}
		}
	}()
}

func (o *observer) PathFinished(label string, report analyzer.Report) {
	o.stopForward()
	o.send(pathFinishedMsg{label: label, report: report})
}

func (o *observer) stopForward() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stop == nil {
		return
	}
	close(o.stop)
	<-o.done
	o.stop = nil
}

// Run drives the same orchestration as the headless mode behind a live dashboard.
// Quitting early cancels the run.
func Run(ctx context.Context, cfg runner.Config, logger *zap.Logger) (*orchestrator.Comparison, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(cfg, cancel), tea.WithAltScreen())
	obs := &observer{send: p.Send}

	results := make(chan doneMsg, 1)
	go func() {
		cmp, err := orchestrator.New(cfg, logger, obs).Run(ctx)
		obs.stopForward()
		msg := doneMsg{cmp: cmp, err: err}
		results <- msg
		p.Send(msg)
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-results
		return nil, fmt.Errorf("running tui: %w", err)
	}

	cancel()
	res := <-results
	return res.cmp, res.err
}
