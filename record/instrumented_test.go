package record

import (
	"errors"
	"testing"

	"github.com/fazildgr8/stretch-ai/metrics"
	"github.com/fazildgr8/stretch-ai/types"
)

func TestInstrumentedSink_CountsWrites(t *testing.T) {
	stub := NewStubSink()
	collector := metrics.NewCollector("stretch", "msgpack", "file")
	sink := NewInstrumentedSink(stub, collector)

	for step := int64(1); step <= 2; step++ {
		if err := sink.Append(t.Context(), fastFrame(step)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	stub.FailAppend = errors.New("disk full")
	if err := sink.Append(t.Context(), fastFrame(3)); err == nil {
		t.Fatal("expected append failure")
	}

	snap := collector.Snapshot()
	if snap.RecordWriteSuccess != 2 {
		t.Errorf("write success = %d, want 2", snap.RecordWriteSuccess)
	}
	if snap.RecordWriteFailure != 1 {
		t.Errorf("write failure = %d, want 1", snap.RecordWriteFailure)
	}
}

func TestInstrumentedSink_Delegates(t *testing.T) {
	stub := NewStubSink()
	sink := NewInstrumentedSink(stub, nil)

	if err := sink.Append(t.Context(), fastFrame(1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := sink.Flush(t.Context()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := len(stub.Frames()); got != 1 {
		t.Errorf("stub frames = %d, want 1", got)
	}
	if got := stub.Flushes(); got != 1 {
		t.Errorf("stub flushes = %d, want 1", got)
	}
	if !stub.Closed() {
		t.Error("stub not closed")
	}
}

func TestStubSink_ClosedRejectsWrites(t *testing.T) {
	stub := NewStubSink()
	if err := stub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := stub.Append(t.Context(), &types.FastState{FrameKind: types.FrameKindFastState}); !errors.Is(err, ErrSinkClosed) {
		t.Errorf("append after close = %v, want ErrSinkClosed", err)
	}
}
