package app

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"agentq/internal/monitor"
	"agentq/internal/runner"
	"agentq/internal/script"
	"agentq/internal/tui/styles"
	"agentq/internal/tui/views"
)

type ClearStatusMsg struct{}

func clearStatusCmd() tea.Cmd {
	return tea.Tick(3*time.Second, func(_ time.Time) tea.Msg {
		return ClearStatusMsg{}
	})
}

// pollMsg asks for a monitor poll. Ticks from an older generation belong to
// a paused or finished monitor and are dropped.
type pollMsg struct{ gen int }

type stoppedMsg struct{ err error }

// View Enum
type ViewID int

const (
	ViewRunner ViewID = iota
	ViewDashboard
	ViewHistory
)

// ManagerFactory builds the engine for one run of the form's config.
type ManagerFactory func(cfg runner.Config) (*runner.Manager, error)

type Model struct {
	NewManager  ManagerFactory
	Manager     *runner.Manager
	Monitor     *monitor.Monitor
	Refresh     time.Duration
	MonitorOpts []monitor.Option

	gen      int
	stopping bool

	Width  int
	Height int

	CurrentView ViewID
	MenuItems   []string

	RunnerView  views.RunnerView
	DashView    views.DashboardView
	HistoryView views.HistoryView

	StatusMsg string
}

func NewModel(cfg runner.Config, scriptPath string, factory ManagerFactory) Model {
	if factory == nil {
		factory = func(cfg runner.Config) (*runner.Manager, error) { return runner.NewManager(cfg) }
	}
	return Model{
		NewManager:  factory,
		Refresh:     time.Second,
		CurrentView: ViewRunner,
		MenuItems:   []string{"[1] Configure", "[2] Dashboard", "[3] Past Runs"},
		RunnerView:  views.NewRunnerView(cfg, scriptPath),
		HistoryView: views.NewHistoryView(cfg.ResultsDir),
	}
}

func (m Model) Init() tea.Cmd {
	return m.RunnerView.Init()
}

func pollCmd(gen int, every time.Duration) tea.Cmd {
	return tea.Tick(every, func(time.Time) tea.Msg { return pollMsg{gen: gen} })
}

func stopCmd(mgr *runner.Manager) tea.Cmd {
	return func() tea.Msg { return stoppedMsg{err: mgr.Stop()} }
}

func (m Model) running() bool {
	return m.Manager != nil && m.Manager.Running()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case ClearStatusMsg:
		m.StatusMsg = ""
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+q":
			return m, tea.Quit

		case "ctrl+d":
			m.CurrentView = ViewDashboard
			return m, nil

		case "ctrl+h":
			m.HistoryView.Refresh()
			m.CurrentView = ViewHistory
			return m, nil

		case "ctrl+right":
			m.CurrentView++
			if m.CurrentView > ViewHistory {
				m.CurrentView = ViewRunner
			}
			return m, nil
		case "ctrl+left":
			m.CurrentView--
			if m.CurrentView < ViewRunner {
				m.CurrentView = ViewHistory
			}
			return m, nil

		case "ctrl+r":
			if m.CurrentView == ViewRunner {
				cmd := m.startRun()
				return m, cmd
			}
			return m, nil

		case "ctrl+s":
			if m.running() && !m.stopping {
				m.stopping = true
				m.StatusMsg = "Stopping agents..."
				return m, stopCmd(m.Manager)
			}
			return m, nil

		case "ctrl+p":
			if m.running() && m.Monitor != nil {
				m.Monitor = nil
				m.gen++
				m.DashView.Paused = true
				m.StatusMsg = "Monitor paused. The run continues."
				return m, clearStatusCmd()
			}

		case "ctrl+o":
			if m.running() && m.Monitor == nil {
				m.StatusMsg = "Monitor resumed."
				return m, tea.Batch(m.watch(), clearStatusCmd())
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		contentHeight := m.Height - 7
		inner := tea.WindowSizeMsg{Width: msg.Width, Height: contentHeight}

		m.RunnerView.Width = m.Width
		m.RunnerView.Height = contentHeight
		m.RunnerView, _ = m.RunnerView.Update(inner)
		m.DashView, _ = m.DashView.Update(inner)
		m.HistoryView, _ = m.HistoryView.Update(inner)
		return m, nil

	case pollMsg:
		if msg.gen != m.gen || m.Monitor == nil || m.Manager == nil {
			return m, nil
		}
		snap := m.Monitor.Poll()
		var c tea.Cmd
		m.DashView, c = m.DashView.Update(snap)
		cmds = append(cmds, c)

		cfg := m.Manager.Config()
		if cfg.Duration > 0 && snap.Elapsed >= cfg.Duration && !m.stopping && m.running() {
			m.stopping = true
			cmds = append(cmds, stopCmd(m.Manager))
		}
		if m.running() {
			cmds = append(cmds, pollCmd(m.gen, m.Refresh))
		}
		return m, tea.Batch(cmds...)

	case stoppedMsg:
		m.finishRun(msg.err)
		return m, clearStatusCmd()
	}

	var defaultCmd tea.Cmd
	switch m.CurrentView {
	case ViewRunner:
		m.RunnerView, defaultCmd = m.RunnerView.Update(msg)
	case ViewDashboard:
		m.DashView, defaultCmd = m.DashView.Update(msg)
	case ViewHistory:
		m.HistoryView, defaultCmd = m.HistoryView.Update(msg)
	}
	cmds = append(cmds, defaultCmd)

	return m, tea.Batch(cmds...)
}

// startRun loads the script named in the form and starts a fresh manager.
// Problems are reported on the form.
func (m *Model) startRun() tea.Cmd {
	if m.running() {
		m.StatusMsg = "A run is already in progress."
		return clearStatusCmd()
	}
	cfg, path, err := m.RunnerView.GetConfig()
	if err != nil {
		m.RunnerView.Err = err.Error()
		return nil
	}
	specs, err := script.LoadFile(path)
	if err != nil {
		m.RunnerView.Err = err.Error()
		return nil
	}
	mgr, err := m.NewManager(cfg)
	if err != nil {
		m.RunnerView.Err = err.Error()
		return nil
	}
	for _, spec := range specs {
		if err := mgr.AddRequest(spec); err != nil {
			m.RunnerView.Err = err.Error()
			return nil
		}
	}
	if err := mgr.Start(); err != nil {
		m.RunnerView.Err = err.Error()
		return nil
	}

	m.RunnerView.Err = ""
	m.Manager = mgr
	m.stopping = false
	m.HistoryView.Root = cfg.ResultsDir
	m.DashView = views.NewDashboardView(cfg, mgr.RunID(), m.Width, m.Height-7)
	m.CurrentView = ViewDashboard
	return m.watch()
}

// watch attaches a new monitor to the current run.
func (m *Model) watch() tea.Cmd {
	m.Monitor = monitor.New(m.Manager, m.Refresh, m.MonitorOpts...)
	m.gen++
	m.DashView.Paused = false
	return pollCmd(m.gen, m.Monitor.Interval())
}

func (m *Model) finishRun(err error) {
	mon := m.Monitor
	if mon == nil {
		mon = monitor.New(m.Manager, m.Refresh, m.MonitorOpts...)
	}
	m.DashView, _ = m.DashView.Update(mon.Poll())
	m.DashView.Done = true
	m.DashView.Paused = false
	m.Monitor = nil
	m.gen++
	m.stopping = false

	if err != nil {
		m.StatusMsg = fmt.Sprintf("Run stopped with error: %v", err)
		return
	}
	m.StatusMsg = "Run stopped."
	if m.Manager.Config().LogResponses {
		m.HistoryView.Refresh()
	}
}

func (m Model) View() string {
	if m.Width == 0 {
		return "Loading..."
	}

	nav := strings.Builder{}
	for i, item := range m.MenuItems {
		if ViewID(i) == m.CurrentView {
			nav.WriteString(styles.TabActive.Render(item))
		} else {
			nav.WriteString(styles.TabBase.Render(item))
		}
	}
	navBar := styles.FooterBase.Width(m.Width).Render(nav.String())

	contentStr := ""
	switch m.CurrentView {
	case ViewRunner:
		contentStr = m.RunnerView.View()
	case ViewDashboard:
		if m.Manager == nil {
			contentStr = styles.Subtle.Render("No run yet. Fill in the form and press Ctrl+R.")
		} else {
			contentStr = m.DashView.View()
		}
	case ViewHistory:
		contentStr = m.HistoryView.View()
	}

	content := styles.Panel.Width(m.Width - 2).Height(m.Height - 6).Render(contentStr)

	keys1 := []string{
		styles.RenderKey("Ctrl+<->", "View"),
		styles.RenderKey("Tab", "Field"),
		styles.RenderKey("Space", "Toggle"),
	}
	keys2 := []string{
		styles.RenderKey("Ctrl+R", "Run"),
		styles.RenderKey("Ctrl+S", "Stop"),
		styles.RenderKey("Ctrl+P", "Pause"),
		styles.RenderKey("Ctrl+O", "Resume"),
		styles.RenderKey("Ctrl+Q", "Quit"),
	}
	keys3 := []string{
		styles.RenderKey("Ctrl+D", "Dash"),
		styles.RenderKey("Ctrl+H", "Runs"),
	}

	helpRow1 := styles.FooterBase.Width(m.Width).Render(strings.Join(keys1, "   "))
	helpRow2 := styles.FooterBase.Width(m.Width).Render(strings.Join(keys2, "   "))
	helpRow3 := styles.FooterBase.Width(m.Width).Render(strings.Join(keys3, "   "))
	footer := lipgloss.JoinVertical(lipgloss.Left, helpRow1, helpRow2, helpRow3)

	if m.StatusMsg != "" {
		status := styles.Box.BorderForeground(styles.ColorHighlight).Render(m.StatusMsg)
		return lipgloss.JoinVertical(lipgloss.Left, navBar, content, status, footer)
	}
	return lipgloss.JoinVertical(lipgloss.Left, navBar, content, footer)
}
