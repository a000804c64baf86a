package metrics

import (
	"sync"
	"testing"
)

func TestCollector_IncrementMethods(t *testing.T) {
	c := NewCollector("stretchd", "msgpack", "file")

	c.IncCommandApplied()
	c.IncCommandApplied()
	c.IncCommandStale()
	c.IncCommandRejected()
	c.IncCommandRejected()
	c.IncCommandMalformed()
	c.IncFrameIngested("fast_state")
	c.IncFrameIngested("fast_state")
	c.IncFrameIngested("full_observation")
	c.IncStaleSkipped("fast_state")
	c.IncDecodeError()
	c.IncReconnect()
	c.IncReconnect()
	c.IncReconnect()
	c.IncLoopIteration("servo")
	c.IncLoopIteration("servo")
	c.RecordLoopRate("servo", 14.2)

	s := c.Snapshot()

	if s.CommandsApplied != 2 {
		t.Errorf("CommandsApplied = %d, want 2", s.CommandsApplied)
	}
	if s.CommandsStale != 1 {
		t.Errorf("CommandsStale = %d, want 1", s.CommandsStale)
	}
	if s.CommandsRejected != 2 {
		t.Errorf("CommandsRejected = %d, want 2", s.CommandsRejected)
	}
	if s.CommandsMalformed != 1 {
		t.Errorf("CommandsMalformed = %d, want 1", s.CommandsMalformed)
	}
	if s.FramesIngested["fast_state"] != 2 {
		t.Errorf("FramesIngested[fast_state] = %d, want 2", s.FramesIngested["fast_state"])
	}
	if s.FramesIngested["full_observation"] != 1 {
		t.Errorf("FramesIngested[full_observation] = %d, want 1", s.FramesIngested["full_observation"])
	}
	if s.StaleSkipped["fast_state"] != 1 {
		t.Errorf("StaleSkipped[fast_state] = %d, want 1", s.StaleSkipped["fast_state"])
	}
	if s.DecodeErrors != 1 {
		t.Errorf("DecodeErrors = %d, want 1", s.DecodeErrors)
	}
	if s.Reconnects != 3 {
		t.Errorf("Reconnects = %d, want 3", s.Reconnects)
	}
	if s.LoopIterations["servo"] != 2 {
		t.Errorf("LoopIterations[servo] = %d, want 2", s.LoopIterations["servo"])
	}
	if s.LoopRates["servo"] != 14.2 {
		t.Errorf("LoopRates[servo] = %v, want 14.2", s.LoopRates["servo"])
	}
}

func TestCollector_Dimensions(t *testing.T) {
	c := NewCollector("stretch", "cbor", "redis")
	s := c.Snapshot()

	if s.Process != "stretch" {
		t.Errorf("Process = %q, want %q", s.Process, "stretch")
	}
	if s.Codec != "cbor" {
		t.Errorf("Codec = %q, want %q", s.Codec, "cbor")
	}
	if s.Backend != "redis" {
		t.Errorf("Backend = %q, want %q", s.Backend, "redis")
	}
}

func TestCollector_AbsorbChannelStats(t *testing.T) {
	c := NewCollector("stretchd", "msgpack", "file")

	c.AbsorbChannelStats("fast_state", 100, 92, 0, 8)
	c.AbsorbChannelStats("servo", 50, 45, 0, 5)

	s := c.Snapshot()

	if s.FramesPublished["fast_state"] != 100 {
		t.Errorf("FramesPublished[fast_state] = %d, want 100", s.FramesPublished["fast_state"])
	}
	if s.FramesDelivered["fast_state"] != 92 {
		t.Errorf("FramesDelivered[fast_state] = %d, want 92", s.FramesDelivered["fast_state"])
	}
	if s.FramesConflated["fast_state"] != 8 {
		t.Errorf("FramesConflated[fast_state] = %d, want 8", s.FramesConflated["fast_state"])
	}
	if s.FramesPublished["servo"] != 50 {
		t.Errorf("FramesPublished[servo] = %d, want 50", s.FramesPublished["servo"])
	}
}

func TestCollector_AbsorbOverwritesNotAccumulates(t *testing.T) {
	// Absorb is called with full snapshots; a second call replaces the
	// first rather than adding to it.
	c := NewCollector("stretchd", "msgpack", "file")

	c.AbsorbChannelStats("servo", 10, 10, 0, 0)
	c.AbsorbChannelStats("servo", 25, 20, 0, 5)

	s := c.Snapshot()
	if s.FramesPublished["servo"] != 25 {
		t.Errorf("FramesPublished[servo] = %d, want 25", s.FramesPublished["servo"])
	}
	if s.FramesConflated["servo"] != 5 {
		t.Errorf("FramesConflated[servo] = %d, want 5", s.FramesConflated["servo"])
	}
}

func TestCollector_SnapshotImmutability(t *testing.T) {
	c := NewCollector("stretchd", "msgpack", "file")
	c.IncCommandApplied()
	c.IncFrameIngested("servo")

	s1 := c.Snapshot()

	// Mutate collector after snapshot
	c.IncCommandApplied()
	c.IncFrameIngested("servo")
	c.IncFrameIngested("servo")

	// s1 should be unchanged
	if s1.CommandsApplied != 1 {
		t.Errorf("s1.CommandsApplied = %d, want 1 (snapshot should be frozen)", s1.CommandsApplied)
	}
	if s1.FramesIngested["servo"] != 1 {
		t.Errorf("s1.FramesIngested[servo] = %d, want 1 (snapshot should be frozen)", s1.FramesIngested["servo"])
	}

	// New snapshot should reflect mutations
	s2 := c.Snapshot()
	if s2.CommandsApplied != 2 {
		t.Errorf("s2.CommandsApplied = %d, want 2", s2.CommandsApplied)
	}
	if s2.FramesIngested["servo"] != 3 {
		t.Errorf("s2.FramesIngested[servo] = %d, want 3", s2.FramesIngested["servo"])
	}
}

func TestCollector_SnapshotMapIsolation(t *testing.T) {
	c := NewCollector("stretchd", "msgpack", "file")
	c.IncStaleSkipped("fast_state")

	s := c.Snapshot()

	// Mutate the snapshot's map
	s.StaleSkipped["fast_state"] = 999
	s.StaleSkipped["injected"] = 1

	// Collector should be unaffected
	s2 := c.Snapshot()
	if s2.StaleSkipped["fast_state"] != 1 {
		t.Errorf("StaleSkipped[fast_state] = %d, want 1 (collector should be isolated from snapshot mutation)",
			s2.StaleSkipped["fast_state"])
	}
	if _, exists := s2.StaleSkipped["injected"]; exists {
		t.Error("StaleSkipped should not contain injected key from snapshot mutation")
	}
}

func TestCollector_NilReceiverSafety(t *testing.T) {
	var c *Collector

	// None of these should panic
	c.IncCommandApplied()
	c.IncCommandStale()
	c.IncCommandRejected()
	c.IncCommandMalformed()
	c.IncFrameIngested("servo")
	c.IncStaleSkipped("servo")
	c.IncDecodeError()
	c.IncReconnect()
	c.IncLoopIteration("servo")
	c.RecordLoopRate("servo", 15.0)
	c.AbsorbChannelStats("servo", 1, 1, 0, 0)

	s := c.Snapshot()
	if s.CommandsApplied != 0 {
		t.Errorf("nil collector snapshot CommandsApplied = %d, want 0", s.CommandsApplied)
	}
	if s.FramesIngested != nil {
		t.Errorf("nil collector snapshot FramesIngested should be nil, got %v", s.FramesIngested)
	}
}

func TestCollector_ConcurrentAccess(t *testing.T) {
	c := NewCollector("stretchd", "msgpack", "file")
	const goroutines = 10
	const iterations = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for range goroutines {
		go func() {
			defer wg.Done()
			for range iterations {
				c.IncCommandApplied()
				c.IncFrameIngested("fast_state")
				c.IncLoopIteration("fast_state")
			}
		}()
	}

	wg.Wait()

	s := c.Snapshot()
	want := int64(goroutines * iterations)

	if s.CommandsApplied != want {
		t.Errorf("CommandsApplied = %d, want %d", s.CommandsApplied, want)
	}
	if s.FramesIngested["fast_state"] != want {
		t.Errorf("FramesIngested[fast_state] = %d, want %d", s.FramesIngested["fast_state"], want)
	}
	if s.LoopIterations["fast_state"] != want {
		t.Errorf("LoopIterations[fast_state] = %d, want %d", s.LoopIterations["fast_state"], want)
	}
}

func TestCollector_ZeroValueSnapshot(t *testing.T) {
	c := NewCollector("stretchd", "msgpack", "file")
	s := c.Snapshot()

	if s.CommandsApplied != 0 || s.CommandsStale != 0 || s.CommandsMalformed != 0 {
		t.Error("fresh collector should have zero command counters")
	}
	if s.DecodeErrors != 0 || s.Reconnects != 0 {
		t.Error("fresh collector should have zero transport counters")
	}
	if len(s.FramesIngested) != 0 || len(s.StaleSkipped) != 0 {
		t.Errorf("fresh collector ingestion maps should be empty, got %v / %v", s.FramesIngested, s.StaleSkipped)
	}
	if len(s.FramesPublished) != 0 {
		t.Errorf("fresh collector FramesPublished should be empty, got %v", s.FramesPublished)
	}
}
