package record

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/fazildgr8/stretch-ai/types"
	"github.com/fazildgr8/stretch-ai/wire"
)

func fastFrame(step int64) *types.FastState {
	return &types.FastState{
		FrameKind:  types.FrameKindFastState,
		FrameStep:  step,
		CapturedAt: step * 100,
		BasePose:   types.Pose{X: float64(step), Y: 0.5, Theta: 0.1},
		Mode:       types.ModeNavigation,
		AtGoal:     true,
		IsHomed:    true,
	}
}

func readLog(t *testing.T, path string) []types.Frame {
	t.Helper()
	r, err := OpenReader(path, wire.Default())
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer func() { _ = r.Close() }()

	var frames []types.Frame
	for {
		f, err := r.Next()
		if err == io.EOF {
			return frames
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		frames = append(frames, f)
	}
}

func TestFileSink_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "session.frames")

	sink, err := NewFileSink(path, wire.Default())
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	for step := int64(1); step <= 3; step++ {
		if err := sink.Append(t.Context(), fastFrame(step)); err != nil {
			t.Fatalf("append %d: %v", step, err)
		}
	}
	if got := sink.Frames(); got != 3 {
		t.Errorf("frames = %d, want 3", got)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	frames := readLog(t, path)
	if len(frames) != 3 {
		t.Fatalf("read %d frames, want 3", len(frames))
	}
	for i, f := range frames {
		fast, ok := f.(*types.FastState)
		if !ok {
			t.Fatalf("frame %d type %T, want *types.FastState", i, f)
		}
		if want := int64(i + 1); fast.FrameStep != want {
			t.Errorf("frame %d step = %d, want %d", i, fast.FrameStep, want)
		}
		if fast.BasePose.Y != 0.5 {
			t.Errorf("frame %d base pose y = %v, want 0.5", i, fast.BasePose.Y)
		}
	}
}

func TestFileSink_FlushMakesFramesVisible(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.frames")

	sink, err := NewFileSink(path, wire.Default())
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	if err := sink.Append(t.Context(), fastFrame(1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := sink.Flush(t.Context()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	// Readable before the sink closes.
	frames := readLog(t, path)
	if len(frames) != 1 {
		t.Fatalf("read %d frames after flush, want 1", len(frames))
	}
}

func TestFileSink_AppendAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.frames")

	sink, err := NewFileSink(path, wire.Default())
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}

	if err := sink.Append(t.Context(), fastFrame(1)); !errors.Is(err, ErrSinkClosed) {
		t.Errorf("append after close = %v, want ErrSinkClosed", err)
	}
	if err := sink.Flush(t.Context()); !errors.Is(err, ErrSinkClosed) {
		t.Errorf("flush after close = %v, want ErrSinkClosed", err)
	}
}

func TestFileSink_TruncatesPreviousRecording(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.frames")

	first, err := NewFileSink(path, wire.Default())
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	for step := int64(1); step <= 5; step++ {
		if err := first.Append(t.Context(), fastFrame(step)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := NewFileSink(path, wire.Default())
	if err != nil {
		t.Fatalf("reopen sink: %v", err)
	}
	if err := second.Append(t.Context(), fastFrame(100)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := second.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	frames := readLog(t, path)
	if len(frames) != 1 {
		t.Fatalf("read %d frames, want 1 (old recording must be gone)", len(frames))
	}
	if got := frames[0].(*types.FastState).FrameStep; got != 100 {
		t.Errorf("step = %d, want 100", got)
	}
}

func TestReader_DetectsTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.frames")

	sink, err := NewFileSink(path, wire.Default())
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	for step := int64(1); step <= 3; step++ {
		if err := sink.Append(t.Context(), fastFrame(step)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Cut the tail of the last frame.
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if err := os.Truncate(path, info.Size()-5); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	r, err := OpenReader(path, wire.Default())
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer func() { _ = r.Close() }()

	for i := 0; i < 2; i++ {
		if _, err := r.Next(); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	_, err = r.Next()
	if !errors.Is(err, ErrTruncated) {
		t.Errorf("final read = %v, want ErrTruncated", err)
	}
}

func TestReader_SkipsUnknownKinds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.frames")

	codec := wire.Default()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	writeRaw := func(v any) {
		payload, err := codec.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if err := wire.WriteFrame(f, payload); err != nil {
			t.Fatalf("write frame: %v", err)
		}
	}

	writeRaw(fastFrame(1))
	writeRaw(map[string]any{"kind": "hologram", "frame_step": 99})
	writeRaw(fastFrame(2))
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	frames := readLog(t, path)
	if len(frames) != 2 {
		t.Fatalf("read %d frames, want 2 (unknown kind skipped)", len(frames))
	}
	if got := frames[1].(*types.FastState).FrameStep; got != 2 {
		t.Errorf("second frame step = %d, want 2", got)
	}
}

func TestOpenReader_MissingFile(t *testing.T) {
	_, err := OpenReader(filepath.Join(t.TempDir(), "absent.frames"), wire.Default())
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want fs.ErrNotExist", err)
	}
}
