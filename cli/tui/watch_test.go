package tui

import (
	"math"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fazildgr8/stretch-ai/channel"
	"github.com/fazildgr8/stretch-ai/client"
	"github.com/fazildgr8/stretch-ai/types"
)

// stubSource scripts the state and counters the model polls.
type stubSource struct {
	state    *types.FastState
	received int64
}

func (s *stubSource) LatestFastState() (*types.FastState, bool) {
	if s.state == nil {
		return nil, false
	}
	return s.state, true
}

func (s *stubSource) Stats() client.Stats {
	return client.Stats{
		Streams: map[types.FrameKind]channel.SubStats{
			types.FrameKindFastState: {Received: s.received},
		},
	}
}

var _ StateSource = (*stubSource)(nil)

func testState() *types.FastState {
	return &types.FastState{
		FrameKind: types.FrameKindFastState,
		FrameStep: 7,
		BasePose:  types.Pose{X: 1.25, Y: -0.5, Theta: math.Pi / 2},
		Joints: types.JointState{
			Positions: make([]float64, types.JointCount),
		},
		Mode:    types.ModeNavigation,
		IsHomed: true,
	}
}

func TestNewWatchModel_DefaultInterval(t *testing.T) {
	m := NewWatchModel(&stubSource{}, 0)
	if m.interval != DefaultRefreshInterval {
		t.Errorf("interval = %v, want %v", m.interval, DefaultRefreshInterval)
	}

	m = NewWatchModel(&stubSource{}, time.Second)
	if m.interval != time.Second {
		t.Errorf("interval = %v, want 1s", m.interval)
	}
}

func TestWatchModel_QuitKeys(t *testing.T) {
	msgs := []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("q")},
		{Type: tea.KeyCtrlC},
	}

	for _, msg := range msgs {
		t.Run(msg.String(), func(t *testing.T) {
			m := NewWatchModel(&stubSource{}, time.Second)

			updated, cmd := m.Update(msg)
			got := updated.(WatchModel)
			if !got.quitting {
				t.Error("quit key should set quitting")
			}
			if cmd == nil {
				t.Fatal("quit key should return a command")
			}
			if _, ok := cmd().(tea.QuitMsg); !ok {
				t.Error("quit key should return tea.Quit")
			}
			if got.View() != "" {
				t.Error("quitting view should be empty")
			}
		})
	}
}

func TestWatchModel_TickRefreshesState(t *testing.T) {
	src := &stubSource{state: testState()}
	m := NewWatchModel(src, time.Second)

	updated, cmd := m.Update(tickMsg(time.Now()))
	got := updated.(WatchModel)

	if !got.haveState {
		t.Error("tick should pull the latest state")
	}
	if got.state.FrameStep != 7 {
		t.Errorf("state step = %d, want 7", got.state.FrameStep)
	}
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}
}

func TestWatchModel_RateFromCounters(t *testing.T) {
	src := &stubSource{state: testState(), received: 10}
	m := NewWatchModel(src, time.Second)

	t0 := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	updated, _ := m.Update(tickMsg(t0))
	m = updated.(WatchModel)

	src.received = 35
	updated, _ = m.Update(tickMsg(t0.Add(500 * time.Millisecond)))
	m = updated.(WatchModel)

	// 25 frames over half a second.
	if math.Abs(m.rateHz-50) > 1e-9 {
		t.Errorf("rateHz = %v, want 50", m.rateHz)
	}
}

func TestWatchModel_ViewWaiting(t *testing.T) {
	m := NewWatchModel(&stubSource{}, time.Second)

	view := m.View()
	if !strings.Contains(view, "waiting for telemetry") {
		t.Errorf("view without state should show waiting notice, got:\n%s", view)
	}
	if !strings.Contains(view, "quit") {
		t.Errorf("view should include quit help, got:\n%s", view)
	}
}

func TestWatchModel_ViewShowsState(t *testing.T) {
	src := &stubSource{state: testState()}
	m := NewWatchModel(src, time.Second)

	updated, _ := m.Update(tickMsg(time.Now()))
	m = updated.(WatchModel)

	view := m.View()
	for _, want := range []string{"Robot State", "navigation", "1.25", "-0.50", "90.0 deg"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestWatchModel_WindowSize(t *testing.T) {
	m := NewWatchModel(&stubSource{}, time.Second)

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	got := updated.(WatchModel)

	if got.width != 120 || got.height != 40 {
		t.Errorf("size = %dx%d, want 120x40", got.width, got.height)
	}
}
