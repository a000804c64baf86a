package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fazildgr8/stretch-ai/client"
	"github.com/fazildgr8/stretch-ai/types"
)

// DefaultRefreshInterval is the watch view's tick period when the
// caller does not set one.
const DefaultRefreshInterval = 500 * time.Millisecond

// StateSource is the live robot state the watch view polls on every
// tick. *client.Client satisfies it.
type StateSource interface {
	LatestFastState() (*types.FastState, bool)
	Stats() client.Stats
}

// tickMsg carries the wall time of one refresh tick.
type tickMsg time.Time

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// WatchModel is the Bubble Tea model for the live state view. It
// re-reads the source on a fixed tick and derives the fast-state
// receive rate from the stream counters between ticks.
type WatchModel struct {
	source   StateSource
	interval time.Duration

	state     *types.FastState
	haveState bool

	lastTick     time.Time
	lastReceived int64
	rateHz       float64

	width    int
	height   int
	quitting bool
}

// NewWatchModel creates a watch model polling source every interval.
func NewWatchModel(source StateSource, interval time.Duration) WatchModel {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return WatchModel{source: source, interval: interval}
}

func (m WatchModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init implements tea.Model.
func (m WatchModel) Init() tea.Cmd {
	return m.tick()
}

// Update implements tea.Model.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		m = m.refresh(time.Time(msg))
		return m, m.tick()
	}

	return m, nil
}

// refresh pulls the latest frame and recomputes the receive rate from
// the subscriber counters.
func (m WatchModel) refresh(now time.Time) WatchModel {
	if fs, ok := m.source.LatestFastState(); ok {
		m.state = fs
		m.haveState = true
	}

	received := m.source.Stats().Streams[types.FrameKindFastState].Received
	if !m.lastTick.IsZero() {
		if dt := now.Sub(m.lastTick).Seconds(); dt > 0 {
			m.rateHz = float64(received-m.lastReceived) / dt
		}
	}
	m.lastTick = now
	m.lastReceived = received
	return m
}

// View implements tea.Model.
func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Robot State"))
	b.WriteString("\n\n")

	help := HelpStyle.Render("Press q or Ctrl+C to quit")

	if !m.haveState {
		b.WriteString(HelpStyle.Render("waiting for telemetry..."))
		return b.String() + "\n" + help
	}

	fs := m.state

	boxes := []string{
		m.renderStatBox("Mode", string(fs.Mode), modeColor(fs.Mode)),
		m.renderStatBox("Step", fmt.Sprintf("%d", fs.FrameStep), highlightColor),
		m.renderStatBox("Rate", fmt.Sprintf("%.1f Hz", m.rateHz), primaryColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n\n")

	pose := fs.BasePose
	poseBoxes := []string{
		m.renderStatBox("X", fmt.Sprintf("%.2f m", pose.X), highlightColor),
		m.renderStatBox("Y", fmt.Sprintf("%.2f m", pose.Y), highlightColor),
		m.renderStatBox("Heading", fmt.Sprintf("%.1f deg", pose.Theta*180/math.Pi), highlightColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, poseBoxes...))
	b.WriteString("\n\n")

	b.WriteString(m.renderFlags(fs))

	return b.String() + "\n" + help
}

func (m WatchModel) renderFlags(fs *types.FastState) string {
	var b strings.Builder

	homed := ErrorStyle.Render("no")
	if fs.IsHomed {
		homed = SuccessStyle.Render("yes")
	}
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Homed:"), homed))

	runstop := SuccessStyle.Render("clear")
	if fs.IsRunstopped {
		runstop = ErrorStyle.Render("engaged")
	}
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Run-stop:"), runstop))

	atGoal := ValueStyle.Render("no")
	if fs.AtGoal {
		atGoal = SuccessStyle.Render("yes")
	}
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("At goal:"), atGoal))

	if len(fs.Joints.Positions) > types.JointGripper {
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("Gripper:"),
			ValueStyle.Render(fmt.Sprintf("%.2f", fs.Joints.Positions[types.JointGripper]))))
	}

	if fs.CapturedAt > 0 {
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("Captured:"),
			ValueStyle.Render(time.Unix(0, fs.CapturedAt).Format("15:04:05.000"))))
	}

	return b.String()
}

func (m WatchModel) renderStatBox(label, value string, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(value)
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

func modeColor(mode types.ControlMode) lipgloss.Color {
	switch mode {
	case types.ModeNavigation:
		return successColor
	case types.ModeManipulation, types.ModeBusy:
		return warningColor
	default:
		return mutedColor
	}
}

// RunWatchTUI runs the live state view until the user quits.
func RunWatchTUI(source StateSource, interval time.Duration) error {
	model := NewWatchModel(source, interval)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
