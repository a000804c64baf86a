package client

import (
	"testing"

	"github.com/fazildgr8/stretch-ai/types"
)

func TestFrameCache_KeepsNewestPerKind(t *testing.T) {
	cache := newFrameCache()

	if _, ok := cache.get(types.FrameKindFastState); ok {
		t.Fatal("empty cache returned a frame")
	}

	if !cache.put(&types.FastState{FrameKind: types.FrameKindFastState, FrameStep: 5}) {
		t.Fatal("first frame rejected")
	}
	if cache.put(&types.FastState{FrameKind: types.FrameKindFastState, FrameStep: 3}) {
		t.Fatal("older frame accepted")
	}
	got, ok := cache.get(types.FrameKindFastState)
	if !ok {
		t.Fatal("cached frame missing")
	}
	if got.Step() != 5 {
		t.Fatalf("cached step = %d, want 5", got.Step())
	}
}

func TestFrameCache_SameStepReplaces(t *testing.T) {
	cache := newFrameCache()

	cache.put(&types.FastState{FrameKind: types.FrameKindFastState, FrameStep: 2, CapturedAt: 10})
	if !cache.put(&types.FastState{FrameKind: types.FrameKindFastState, FrameStep: 2, CapturedAt: 20}) {
		t.Fatal("same-step frame rejected")
	}
	got, _ := cache.get(types.FrameKindFastState)
	if got.(*types.FastState).CapturedAt != 20 {
		t.Fatal("same-step frame did not replace the cached one")
	}
}

func TestFrameCache_KindsAreIndependent(t *testing.T) {
	cache := newFrameCache()

	cache.put(&types.FastState{FrameKind: types.FrameKindFastState, FrameStep: 9})
	if !cache.put(&types.FullObservation{FrameKind: types.FrameKindFullObservation, FrameStep: 1}) {
		t.Fatal("observation rejected despite fresher fast state")
	}
	if got, _ := cache.get(types.FrameKindFastState); got.Step() != 9 {
		t.Fatal("observation put disturbed the fast state slot")
	}
	if got, _ := cache.get(types.FrameKindFullObservation); got.Step() != 1 {
		t.Fatal("observation frame missing")
	}
}
