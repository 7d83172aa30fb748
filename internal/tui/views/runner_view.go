package views

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"agentq/internal/runner"
	"agentq/internal/tui/styles"
)

var ErrNoScript = errors.New("script path is required")

// Field Indices
const (
	FieldScript = iota
	FieldAgents
	FieldInterval
	FieldRampUp
	FieldDuration
	FieldPacing
	FieldLogResponses
	FieldResultsDir
	fieldCount
)

// RunnerView is the run configuration form.
type RunnerView struct {
	Inputs []textinput.Model
	Focus  int
	Err    string

	timeout  time.Duration
	verbatim bool

	Viewport viewport.Model

	Width  int
	Height int
}

func (m RunnerView) GetHelp() string {
	switch m.Focus {
	case FieldScript:
		return "Path to the test script.\n• .xml: <testcases> with <case> elements\n• .yaml/.yml: a cases: list\n\nURLs, bodies and header values may use\n{{agentID}}, {{uuid}}, {{randomInt 1 10}}."
	case FieldAgents:
		return "Number of concurrent agents.\nEach agent loops over the whole script until the run is stopped."
	case FieldInterval:
		return "Pacing interval (ms).\nHow long an agent sleeps between passes or requests. 0 runs flat out."
	case FieldRampUp:
		return "Ramp-up (s).\nAgent starts are spread evenly over this period."
	case FieldDuration:
		return "Test duration (s).\nThe run is stopped once this much time has passed. 0 runs until Ctrl+S."
	case FieldPacing:
		return "Where the interval applies.\n• [pass]: after each full pass through the script\n• [request]: after every request\n\nPress [Space] to toggle."
	case FieldLogResponses:
		return "Write every response to the results directory.\nProduces results.csv and summary.json when the run stops.\n\nPress [Space] to toggle."
	case FieldResultsDir:
		return "Directory for logged results.\nEach run gets its own subdirectory named after the run ID."
	}
	return ""
}

func (m RunnerView) View() string {
	inputCol := strings.Builder{}
	inputCol.WriteString("\n")
	for i := 0; i < fieldCount; i++ {
		if i == FieldResultsDir && m.Inputs[FieldLogResponses].Value() != "on" {
			continue
		}
		inputCol.WriteString(m.renderInput(i))
		inputCol.WriteString("\n")
	}
	if m.Err != "" {
		inputCol.WriteString(styles.Error.Render("✗ " + m.Err))
		inputCol.WriteString("\n")
	}

	helpCol := strings.Builder{}
	helpBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.ColorBorder).
		Padding(1, 2).
		Width(45).
		Height(15)

	helpCol.WriteString(styles.Subtle.Bold(true).Render("Information"))
	helpCol.WriteString("\n\n")
	helpCol.WriteString(styles.Text.Foreground(styles.ColorSecondary).Render(m.GetHelp()))

	mainRow := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(55).Render(inputCol.String()),
		helpBox.Render(helpCol.String()),
	)

	m.Viewport.SetContent(mainRow)
	return m.Viewport.View()
}

func NewRunnerView(cfg runner.Config, scriptPath string) RunnerView {
	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		inputs[i] = textinput.New()
		inputs[i].PromptStyle = styles.Subtle
		inputs[i].TextStyle = styles.Subtle
		inputs[i].Width = 10
	}

	inputs[FieldScript].Placeholder = "testcases.xml"
	inputs[FieldScript].SetValue(scriptPath)
	inputs[FieldScript].Prompt = "Script: "
	inputs[FieldScript].Width = 40

	inputs[FieldAgents].SetValue(strconv.Itoa(max(cfg.Agents, 1)))
	inputs[FieldAgents].Prompt = "Agents: "

	inputs[FieldInterval].SetValue(strconv.FormatInt(cfg.Pacing.Milliseconds(), 10))
	inputs[FieldInterval].Prompt = "Interval (ms): "

	inputs[FieldRampUp].SetValue(strconv.Itoa(int(cfg.RampUp.Seconds())))
	inputs[FieldRampUp].Prompt = "Ramp Up (s): "

	inputs[FieldDuration].SetValue(strconv.Itoa(int(cfg.Duration.Seconds())))
	inputs[FieldDuration].Prompt = "Duration (s): "

	mode := cfg.PacingMode
	if mode == "" {
		mode = runner.PacePerPass
	}
	inputs[FieldPacing].SetValue(string(mode))
	inputs[FieldPacing].Prompt = "Pacing (Space): "

	inputs[FieldLogResponses].SetValue(onOff(cfg.LogResponses))
	inputs[FieldLogResponses].Prompt = "Log Responses (Space): "

	inputs[FieldResultsDir].Placeholder = "results"
	inputs[FieldResultsDir].SetValue(cfg.ResultsDir)
	inputs[FieldResultsDir].Prompt = "Results Dir: "
	inputs[FieldResultsDir].Width = 40

	m := RunnerView{
		Inputs:   inputs,
		Viewport: viewport.New(0, 0),
		timeout:  cfg.Timeout,
		verbatim: cfg.Verbatim,
	}
	m, _ = m.focusCmd()
	return m
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func (m RunnerView) Init() tea.Cmd {
	return textinput.Blink
}

func (m RunnerView) Update(msg tea.Msg) (RunnerView, tea.Cmd) {
	var cmds []tea.Cmd
	dir := 0

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "tab", "ctrl+n", "down", "enter":
			dir = 1
		case "shift+tab", "ctrl+p", "up":
			dir = -1
		case " ":
			switch m.Focus {
			case FieldPacing:
				if m.Inputs[FieldPacing].Value() == string(runner.PacePerRequest) {
					m.Inputs[FieldPacing].SetValue(string(runner.PacePerPass))
				} else {
					m.Inputs[FieldPacing].SetValue(string(runner.PacePerRequest))
				}
				return m, nil
			case FieldLogResponses:
				m.Inputs[FieldLogResponses].SetValue(onOff(m.Inputs[FieldLogResponses].Value() != "on"))
				return m, nil
			}
		}
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Viewport.Width = msg.Width - 4
		m.Viewport.Height = msg.Height - 8
	}

	if dir != 0 {
		m.Focus = m.nextFocus(m.Focus, dir)
		var cmd tea.Cmd
		m, cmd = m.focusCmd()
		cmds = append(cmds, cmd)
	} else if m.Focus != FieldPacing && m.Focus != FieldLogResponses {
		var cmd tea.Cmd
		m.Inputs[m.Focus], cmd = m.Inputs[m.Focus].Update(msg)
		cmds = append(cmds, cmd)
	}

	var vpCmd tea.Cmd
	m.Viewport, vpCmd = m.Viewport.Update(msg)
	cmds = append(cmds, vpCmd)

	return m, tea.Batch(cmds...)
}

// nextFocus skips the results directory while logging is off.
func (m RunnerView) nextFocus(current, direction int) int {
	visible := make([]int, 0, fieldCount)
	for i := 0; i < fieldCount; i++ {
		if i == FieldResultsDir && m.Inputs[FieldLogResponses].Value() != "on" {
			continue
		}
		visible = append(visible, i)
	}

	idx := -1
	for i, v := range visible {
		if v == current {
			idx = i
			break
		}
	}
	if idx == -1 {
		return FieldScript
	}

	next := (idx + direction) % len(visible)
	if next < 0 {
		next = len(visible) - 1
	}
	return visible[next]
}

func (m RunnerView) focusCmd() (RunnerView, tea.Cmd) {
	cmds := make([]tea.Cmd, 0, 1)
	for i := range m.Inputs {
		if i == m.Focus {
			cmds = append(cmds, m.Inputs[i].Focus())
			m.Inputs[i].PromptStyle = styles.Active
			m.Inputs[i].TextStyle = styles.Text
		} else {
			m.Inputs[i].Blur()
			m.Inputs[i].PromptStyle = styles.Subtle
			m.Inputs[i].TextStyle = styles.Subtle
		}
	}
	return m, tea.Batch(cmds...)
}

func (m RunnerView) renderInput(idx int) string {
	style := styles.InputNormal
	if idx == m.Focus {
		style = styles.InputActive
	}
	return style.Render(m.Inputs[idx].View())
}

// GetConfig reads the form into a validated config and the script path.
func (m RunnerView) GetConfig() (runner.Config, string, error) {
	path := strings.TrimSpace(m.Inputs[FieldScript].Value())
	if path == "" {
		return runner.Config{}, "", ErrNoScript
	}

	agents, err := m.intField(FieldAgents, "agents")
	if err != nil {
		return runner.Config{}, "", err
	}
	interval, err := m.intField(FieldInterval, "interval")
	if err != nil {
		return runner.Config{}, "", err
	}
	rampUp, err := m.intField(FieldRampUp, "ramp up")
	if err != nil {
		return runner.Config{}, "", err
	}
	duration, err := m.intField(FieldDuration, "duration")
	if err != nil {
		return runner.Config{}, "", err
	}
	mode, err := runner.ParsePacingMode(m.Inputs[FieldPacing].Value())
	if err != nil {
		return runner.Config{}, "", err
	}

	cfg := runner.Config{
		Agents:       agents,
		Pacing:       time.Duration(interval) * time.Millisecond,
		PacingMode:   mode,
		RampUp:       time.Duration(rampUp) * time.Second,
		Duration:     time.Duration(duration) * time.Second,
		LogResponses: m.Inputs[FieldLogResponses].Value() == "on",
		Timeout:      m.timeout,
		Verbatim:     m.verbatim,
	}
	if cfg.LogResponses {
		cfg.ResultsDir = strings.TrimSpace(m.Inputs[FieldResultsDir].Value())
	}
	if err := cfg.Validate(); err != nil {
		return runner.Config{}, "", err
	}
	return cfg, path, nil
}

func (m RunnerView) intField(idx int, name string) (int, error) {
	raw := strings.TrimSpace(m.Inputs[idx].Value())
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a whole number, got %q", runner.ErrInvalidConfig, name, raw)
	}
	return n, nil
}
