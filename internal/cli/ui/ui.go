package ui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	psutil "github.com/shirou/gopsutil/v3/cpu"
	psmem "github.com/shirou/gopsutil/v3/mem"

	"equiminer/internal/miner"
	"equiminer/pkg/equihash"
)

// Styles
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(lipgloss.Color("#FFFF00")).
			Padding(0, 2).
			Bold(true).
			Width(80)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#4B5563")).
			Padding(0, 2).
			Width(80)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#2563EB")).
			Padding(0, 1)

	logViewStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#9CA3AF"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9CA3AF")).
			Width(12)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#34D399")).
			Bold(true)

	solvingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#34D399"))
	waitingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FBBF24"))
	stoppedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9CA3AF")).
			Italic(true)
)

// maxLogLines bounds the log history kept in the model
const maxLogLines = 500

// Source is what the dashboard reads every refresh
type Source interface {
	Speed() *miner.Speed
	Workers() []miner.WorkerStatus
	CurrentJob() *miner.Job
	Params() equihash.Params
}

// Model is the dashboard state
type Model struct {
	Source   Source
	Interval time.Duration

	Width  int
	Height int

	Speed        miner.SpeedSnapshot
	Workers      []miner.WorkerStatus
	JobID        string
	Target       string
	ResourceData string

	Logs    []string
	LogView viewport.Model
}

type tickMsg time.Time

type updateResourceDataMsg struct {
	data string
}

// AppendLogMsg adds a line to the log pane
type AppendLogMsg struct {
	Line string
}

// NewModel creates a dashboard over src refreshing every interval
func NewModel(src Source, interval time.Duration) Model {
	if interval <= 0 {
		interval = time.Second
	}
	m := Model{
		Source:       src,
		Interval:     interval,
		Width:        80,
		Height:       24,
		ResourceData: "Go: " + runtime.Version(),
		LogView:      viewport.New(76, 8),
	}
	m.refresh()
	return m
}

// Init starts the refresh ticks
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tea.ClearScreen,
		m.tick(),
		m.updateResourceData(),
	)
}

// Update handles UI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "g":
			m.LogView.GotoTop()
		case "G":
			m.LogView.GotoBottom()
		}

	case tea.WindowSizeMsg:
		m = m.handleResize(msg)

	case tickMsg:
		m.refresh()
		cmds = append(cmds, m.tick())

	case updateResourceDataMsg:
		m.ResourceData = msg.data
		cmds = append(cmds, m.updateResourceData())

	case AppendLogMsg:
		m.Logs = append(m.Logs, msg.Line)
		if len(m.Logs) > maxLogLines {
			m.Logs = m.Logs[len(m.Logs)-maxLogLines:]
		}
		m.updateLogView()
	}

	var cmd tea.Cmd
	m.LogView, cmd = m.LogView.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) refresh() {
	if m.Source == nil {
		return
	}
	m.Speed = m.Source.Speed().Snapshot()
	m.Workers = m.Source.Workers()
	if job := m.Source.CurrentJob(); job != nil {
		m.JobID = job.ID
		m.Target = job.Target.Hex()
	} else {
		m.JobID = ""
		m.Target = ""
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.Interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// updateResourceData samples host resource usage
func (m Model) updateResourceData() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		data := "Go: " + runtime.Version()
		cpuPercent, err := psutil.Percent(0, false)
		memInfo, merr := psmem.VirtualMemory()
		if err == nil && merr == nil && len(cpuPercent) > 0 {
			data = fmt.Sprintf("CPU: %.1f%% | RAM: %.1f%% | Go: %s",
				cpuPercent[0], memInfo.UsedPercent, runtime.Version())
		}
		return updateResourceDataMsg{data}
	})
}

func (m Model) handleResize(msg tea.WindowSizeMsg) Model {
	m.Width = msg.Width
	m.Height = msg.Height

	// header(1) + footer(1) + help(1) + stats panel(6) + workers panel + borders
	logHeight := msg.Height - 11 - len(m.Workers)
	if logHeight < 3 {
		logHeight = 3
	}
	m.LogView.Width = msg.Width - 4
	m.LogView.Height = logHeight
	m.updateLogView()
	return m
}

// updateLogView wraps the log lines to the pane width and follows the tail
func (m *Model) updateLogView() {
	width := m.LogView.Width
	if width < 10 {
		width = 10
	}
	var content strings.Builder
	for i, line := range m.Logs {
		content.WriteString(ansi.Wordwrap(line, width, " \t"))
		if i < len(m.Logs)-1 {
			content.WriteString("\n")
		}
	}
	atBottom := m.LogView.AtBottom()
	m.LogView.SetContent(content.String())
	if atBottom {
		m.LogView.GotoBottom()
	}
}

// View renders the dashboard
func (m Model) View() string {
	status := "paused"
	if m.JobID != "" {
		status = "job " + m.JobID
	}
	params := ""
	if m.Source != nil {
		params = m.Source.Params().String()
	}
	header := headerStyle.Width(m.Width).Render(fmt.Sprintf(" equiminer/%s | %s | %s", miner.Version, params, status))
	footer := footerStyle.Width(m.Width).Render(m.ResourceData)

	stats := panelStyle.Width(m.Width - 4).Render(m.renderStats())
	workers := panelStyle.Width(m.Width - 4).Render(m.renderWorkers())
	logs := logViewStyle.Width(m.Width - 2).Render(
		lipgloss.JoinHorizontal(lipgloss.Top, m.LogView.View(), " "+m.renderScrollbar()))
	help := helpStyle.Render(" q quit | ↑/↓ scroll logs | g/G top/bottom")

	return lipgloss.JoinVertical(lipgloss.Left, header, stats, workers, logs, help, footer)
}

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value)
}

func (m Model) renderStats() string {
	s := m.Speed
	target := m.Target
	if target == "" {
		target = "-"
	}
	lines := []string{
		row("Speed", fmt.Sprintf("%.2f I/s  %.2f Sols/s", s.HashRate, s.SolutionRate)),
		row("Solutions", fmt.Sprintf("%d found, %d shares", s.Solutions, s.Shares)),
		row("Submitted", fmt.Sprintf("%d accepted, %d rejected, %d stale, %d failed", s.Accepted, s.Rejected, s.Stale, s.Failed)),
		row("Uptime", s.Elapsed.Truncate(time.Second).String()),
		row("Target", target),
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderWorkers() string {
	if len(m.Workers) == 0 {
		return helpStyle.Render("no workers running")
	}
	lines := make([]string, 0, len(m.Workers))
	for _, w := range m.Workers {
		state := w.State
		switch w.State {
		case "solving":
			state = solvingStyle.Render(state)
		case "waiting":
			state = waitingStyle.Render(state)
		default:
			state = stoppedStyle.Render(state)
		}
		lines = append(lines, fmt.Sprintf("#%-2d %-4s %-8s %-8s %6d solves  %s",
			w.Worker, w.Kind, w.Solver, state, w.Solves, ansi.Truncate(w.DeviceInfo, 32, "…")))
	}
	return strings.Join(lines, "\n")
}

// renderScrollbar renders a vertical scrollbar for the log pane
func (m Model) renderScrollbar() string {
	height := m.LogView.Height
	if height <= 0 {
		height = 1
	}
	total := m.LogView.TotalLineCount()
	if total <= height {
		return strings.Repeat("│\n", height-1) + "│"
	}

	thumb := height * height / total
	if thumb < 1 {
		thumb = 1
	}
	maxScroll := total - height
	pos := m.LogView.YOffset * (height - thumb) / maxScroll
	if pos < 0 {
		pos = 0
	}
	if pos > height-thumb {
		pos = height - thumb
	}

	var b strings.Builder
	for i := 0; i < height; i++ {
		if i >= pos && i < pos+thumb {
			b.WriteString("█")
		} else {
			b.WriteString("│")
		}
		if i < height-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// LogTap is an io.Writer forwarding complete lines to a running program
type LogTap struct {
	mutex   sync.Mutex
	program *tea.Program
	partial []byte
}

// NewLogTap returns a tap; Attach must be called before lines are shown.
func NewLogTap() *LogTap {
	return &LogTap{}
}

// Attach sets the program receiving lines
func (t *LogTap) Attach(p *tea.Program) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.program = p
}

// Write implements io.Writer
func (t *LogTap) Write(p []byte) (int, error) {
	t.mutex.Lock()
	t.partial = append(t.partial, p...)
	var lines []string
	for {
		i := bytes.IndexByte(t.partial, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(t.partial[:i]))
		t.partial = t.partial[i+1:]
	}
	program := t.program
	t.mutex.Unlock()

	if program != nil {
		for _, line := range lines {
			program.Send(AppendLogMsg{Line: line})
		}
	}
	return len(p), nil
}

// Run shows the dashboard until the user quits or ctx is done.
func Run(ctx context.Context, src Source, interval time.Duration, tap *LogTap) error {
	p := tea.NewProgram(NewModel(src, interval), tea.WithAltScreen(), tea.WithContext(ctx))
	if tap != nil {
		tap.Attach(p)
		defer tap.Attach(nil)
	}
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
