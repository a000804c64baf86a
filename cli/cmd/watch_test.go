package cmd

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/fazildgr8/stretch-ai/cli/render"
	"github.com/fazildgr8/stretch-ai/types"
)

// fixedStateClient always reports the same frame.
type fixedStateClient struct {
	st *types.FastState
}

func (c *fixedStateClient) LatestFastState() (*types.FastState, bool) {
	if c.st == nil {
		return nil, false
	}
	return c.st, true
}

func TestWatchLoop_RendersSnapshots(t *testing.T) {
	cl := &fixedStateClient{st: &types.FastState{
		FrameStep: 9,
		BasePose:  types.Pose{X: 0.5, Theta: math.Pi},
		Mode:      types.ModeNavigation,
		IsHomed:   true,
	}}

	var buf bytes.Buffer
	r := render.NewRendererWithWriter(render.FormatJSON, true, &buf)

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	if err := watchLoop(ctx, cl, r, time.Millisecond); err != nil {
		t.Fatalf("watchLoop: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"mode": "navigation"`) {
		t.Errorf("output missing rendered mode:\n%s", out)
	}
	if !strings.Contains(out, `"step": 9`) {
		t.Errorf("output missing rendered step:\n%s", out)
	}
}

func TestWatchLoop_NoStateRendersNothing(t *testing.T) {
	var buf bytes.Buffer
	r := render.NewRendererWithWriter(render.FormatJSON, true, &buf)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	if err := watchLoop(ctx, &fixedStateClient{}, r, time.Millisecond); err != nil {
		t.Fatalf("watchLoop: %v", err)
	}

	if buf.Len() != 0 {
		t.Errorf("no frames received, but output was rendered:\n%s", buf.String())
	}
}
