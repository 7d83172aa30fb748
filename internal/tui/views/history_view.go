package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"agentq/internal/resultlog"
	"agentq/internal/tui/styles"
)

// HistoryView lists the runs whose results were logged under Root.
type HistoryView struct {
	Root  string
	Runs  []resultlog.Run
	Table table.Model

	Message string
	Err     error

	Width  int
	Height int
}

func NewHistoryView(root string) HistoryView {
	columns := []table.Column{
		{Title: "Started", Width: 20},
		{Title: "Run", Width: 38},
		{Title: "Reqs", Width: 10},
		{Title: "Errors", Width: 8},
		{Title: "Tp (/s)", Width: 10},
		{Title: "P99 (ms)", Width: 10},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.ColorBorder).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.ColorPrimary)
	s.Selected = s.Selected.
		Foreground(styles.ColorText).
		Background(styles.ColorPrimary).
		Bold(true)
	t.SetStyles(s)

	m := HistoryView{Root: root, Table: t}
	m.Refresh()
	return m
}

func (m *HistoryView) Refresh() {
	if m.Root == "" {
		m.Runs = nil
		m.Table.SetRows(nil)
		return
	}
	runs, err := resultlog.ListRuns(m.Root)
	m.Err = err
	m.Runs = runs

	rows := make([]table.Row, len(runs))
	for i, r := range runs {
		s := r.Summary
		rows[i] = table.Row{
			s.Start.Local().Format("2006-01-02 15:04:05"),
			s.RunID,
			fmt.Sprintf("%d", s.Count),
			fmt.Sprintf("%d", s.Errors),
			fmt.Sprintf("%.2f", s.Throughput),
			fmt.Sprintf("%.2f", s.Latency.P99),
		}
	}
	m.Table.SetRows(rows)
}

// Selected returns the highlighted run, if any.
func (m HistoryView) Selected() (resultlog.Run, bool) {
	idx := m.Table.Cursor()
	if idx < 0 || idx >= len(m.Runs) {
		return resultlog.Run{}, false
	}
	return m.Runs[idx], true
}

func (m HistoryView) Init() tea.Cmd {
	return nil
}

func (m HistoryView) Update(msg tea.Msg) (HistoryView, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Table.SetWidth(max(msg.Width-4, 0))
		m.Table.SetHeight(max(msg.Height-8, 3))

	case tea.KeyMsg:
		if msg.String() == "enter" {
			if run, ok := m.Selected(); ok {
				if err := resultlog.Regenerate(run.Dir); err != nil {
					m.Message = "Regenerate failed: " + err.Error()
				} else {
					m.Message = "Reports rebuilt in " + run.Dir
				}
				m.Refresh()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

func (m HistoryView) View() string {
	s := strings.Builder{}
	s.WriteString(styles.Title.Render("📜 Past Runs"))
	s.WriteString("\n\n")

	switch {
	case m.Root == "":
		s.WriteString(styles.Subtle.Render("No results directory configured.\nEnable Log Responses to keep run results."))
	case m.Err != nil:
		s.WriteString(styles.Error.Render(m.Err.Error()))
	case len(m.Runs) == 0:
		s.WriteString(styles.Subtle.Render("No runs found in " + m.Root + ".\nRun a test with Log Responses on."))
	default:
		s.WriteString(styles.Box.Render(m.Table.View()))
	}
	s.WriteString("\n\n")
	if m.Message != "" {
		s.WriteString(styles.Value.Render(m.Message))
		s.WriteString("\n")
	}
	s.WriteString(styles.Subtle.Render("[Enter] Rebuild results.csv and summary.json"))
	return s.String()
}
