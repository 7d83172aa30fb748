package views

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"agentq/internal/monitor"
	"agentq/internal/runner"
	"agentq/internal/stats"
	"agentq/internal/tui/components"
	"agentq/internal/tui/styles"
)

// maxErrorLines bounds the error pane; older lines scroll out.
const maxErrorLines = 200

type DashboardView struct {
	Snap     monitor.Snapshot
	Config   runner.Config
	RunID    string
	Viewport viewport.Model
	Progress progress.Model
	Agents   table.Model
	Tp       components.Sparkline

	Errors []string
	Paused bool
	Done   bool

	Width  int
	Height int
}

func NewDashboardView(cfg runner.Config, runID string, width, height int) DashboardView {
	prog := progress.New(
		progress.WithGradient("#7D56F4", "#04B575"),
		progress.WithWidth(max(width-10, 10)),
		progress.WithoutPercentage(),
	)

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Agent", Width: 6},
			{Title: "Status", Width: 9},
			{Title: "Reqs", Width: 9},
			{Title: "Errs", Width: 7},
			{Title: "Last (s)", Width: 9},
			{Title: "Avg (s)", Width: 9},
			{Title: "Bytes", Width: 11},
		}),
		table.WithHeight(min(cfg.Agents, 10)+1),
	)
	ts := table.DefaultStyles()
	ts.Header = styles.TableHeader
	ts.Selected = lipgloss.NewStyle()
	t.SetStyles(ts)

	return DashboardView{
		Config:   cfg,
		RunID:    runID,
		Viewport: viewport.New(max(width-6, 0), max(height-8, 0)),
		Progress: prog,
		Agents:   t,
		Tp:       components.NewSparkline(40, "Throughput (req/s)", styles.Value),
		Width:    width,
		Height:   height,
	}
}

func (m DashboardView) Init() tea.Cmd {
	return nil
}

func (m DashboardView) Update(msg tea.Msg) (DashboardView, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case monitor.Snapshot:
		m.Snap = msg
		if msg.AgentsStarted {
			m.Tp.Add(msg.CurThroughput)
		}
		m.addErrors(msg.Errors)
		m.Agents.SetRows(agentRows(msg.Agents))
		cmds = append(cmds, m.Progress.SetPercent(m.percent()))

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = max(msg.Width-10, 10)
		m.Viewport.Width = max(msg.Width-6, 0)
		m.Viewport.Height = max(msg.Height-8, 0)

	case progress.FrameMsg:
		newModel, cmd := m.Progress.Update(msg)
		if newModel, ok := newModel.(progress.Model); ok {
			m.Progress = newModel
		}
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *DashboardView) addErrors(lines []string) {
	if len(lines) == 0 {
		return
	}
	m.Errors = append(m.Errors, lines...)
	if over := len(m.Errors) - maxErrorLines; over > 0 {
		m.Errors = append([]string(nil), m.Errors[over:]...)
	}
}

func (m DashboardView) percent() float64 {
	if m.Config.Duration <= 0 {
		return 0
	}
	pct := m.Snap.Elapsed.Seconds() / m.Config.Duration.Seconds()
	if pct > 1.0 {
		pct = 1.0
	}
	return pct
}

func agentRows(agents []stats.RuntimeStats) []table.Row {
	rows := make([]table.Row, 0, len(agents))
	for i, a := range agents {
		rows = append(rows, table.Row{
			strconv.Itoa(i + 1),
			a.Status.String(),
			strconv.FormatUint(a.Count, 10),
			strconv.FormatUint(a.ErrorCount, 10),
			fmt.Sprintf("%.3f", a.Latency),
			fmt.Sprintf("%.3f", a.AvgLatency),
			strconv.FormatUint(a.TotalBytes, 10),
		})
	}
	return rows
}

func (m DashboardView) status() string {
	switch {
	case m.Done:
		return styles.StatusStopped.Render("[Stopped]")
	case m.Paused:
		return styles.Warn.Render("[Monitor Paused]")
	case !m.Snap.AgentsStarted:
		return styles.StatusWaiting.Render("[Starting Agents]")
	default:
		return styles.StatusRunning.Render("[Running]")
	}
}

func (m DashboardView) View() string {
	s := strings.Builder{}
	snap := m.Snap

	timer := monitor.HumanizeDuration(snap.Elapsed)
	if m.Config.Duration > 0 {
		timer += " / " + monitor.HumanizeDuration(m.Config.Duration)
	}
	header := lipgloss.JoinHorizontal(lipgloss.Center,
		styles.Title.Render("⚡ Load Test "+m.RunID),
		lipgloss.NewStyle().MarginLeft(2).Foreground(styles.ColorSubtle).Render(timer),
		lipgloss.NewStyle().MarginLeft(4).Render(m.status()),
	)
	s.WriteString(header)
	s.WriteString("\n\n")

	if m.Config.Duration > 0 {
		s.WriteString(m.Progress.View())
		s.WriteString("\n\n")
	}

	t := snap.Totals
	errColor := styles.Text
	if t.ErrorCount > 0 {
		errColor = styles.Error
	}
	row1 := lipgloss.JoinHorizontal(lipgloss.Top,
		MakeCard("Run Time", styles.Text.Render(monitor.HumanizeDuration(snap.Elapsed))),
		MakeCard("Agents", styles.Active.Render(snap.Running())),
		MakeCard("Requests", styles.Value.Render(strconv.FormatUint(t.Count, 10))),
		MakeCard("Errors", errColor.Render(strconv.FormatUint(t.ErrorCount, 10))),
	)
	row2 := lipgloss.JoinHorizontal(lipgloss.Top,
		MakeCard("Avg Resp", styles.Text.Render(fmt.Sprintf("%.3f s", snap.AvgLatency))),
		MakeCard("Avg Tp", styles.Value.Render(fmt.Sprintf("%.2f /s", snap.AvgThroughput))),
		MakeCard("Cur Tp", styles.Value.Render(fmt.Sprintf("%.2f /s", snap.CurThroughput))),
		MakeCard("P99", styles.Warn.Render(formatMs(snap.P99))),
	)
	s.WriteString(row1)
	s.WriteString("\n")
	s.WriteString(row2)
	s.WriteString("\n")
	if snap.Host != (monitor.HostLoad{}) {
		s.WriteString(styles.Subtle.Render(fmt.Sprintf("Host CPU %.1f%%  Mem %.1f%%", snap.Host.CPUPercent, snap.Host.MemPercent)))
		s.WriteString("\n")
	}
	s.WriteString("\n")

	s.WriteString(m.Tp.View())
	s.WriteString("\n\n")

	s.WriteString(styles.Subtle.Render("Agents"))
	s.WriteString("\n")
	s.WriteString(m.Agents.View())
	s.WriteString("\n")

	if len(m.Errors) > 0 {
		s.WriteString("\n")
		s.WriteString(styles.Subtle.Render(fmt.Sprintf("Errors (last %d)", min(len(m.Errors), 10))))
		s.WriteString("\n")
		for _, e := range m.Errors[max(len(m.Errors)-10, 0):] {
			if len(e) > 90 {
				e = e[:87] + "..."
			}
			s.WriteString(styles.Error.Render(e))
			s.WriteString("\n")
		}
	}

	content := styles.Panel.Width(max(m.Width-6, 20)).Render(s.String())
	m.Viewport.SetContent(content)
	return m.Viewport.View()
}

func formatMs(d time.Duration) string {
	return fmt.Sprintf("%.1f ms", float64(d)/float64(time.Millisecond))
}

func MakeCard(title, value string) string {
	return styles.Box.Width(18).Align(lipgloss.Center).Render(
		fmt.Sprintf("%s\n%s", styles.Subtle.Render(title), value),
	)
}
