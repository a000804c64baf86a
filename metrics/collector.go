// Package metrics provides process-wide counters for both stretch
// binaries.
//
// The Collector accumulates counters while a daemon or client runs. It
// is a leaf package with no internal dependencies. Channel delivery
// counters are absorbed from channel stats snapshots at shutdown rather
// than recorded live, avoiding double-counting.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after
// creation.
type Snapshot struct {
	// Command consumer
	CommandsApplied   int64
	CommandsStale     int64
	CommandsRejected  int64
	CommandsMalformed int64

	// Client ingestion, keyed by frame kind
	FramesIngested map[string]int64
	StaleSkipped   map[string]int64

	// Transport health
	DecodeErrors int64
	Reconnects   int64

	// Telemetry recording
	RecordWriteSuccess int64
	RecordWriteFailure int64

	// Loop diagnostics, keyed by loop name
	LoopIterations map[string]int64
	LoopRates      map[string]float64

	// Channel delivery, keyed by frame kind (absorbed from channel stats)
	FramesPublished map[string]int64
	FramesDelivered map[string]int64
	FramesDropped   map[string]int64
	FramesConflated map[string]int64

	// Dimensions (informational, set at construction)
	Process string
	Codec   string
	Backend string
}

// Collector accumulates counters for one process.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe
// so optional instrumentation costs nothing to omit.
type Collector struct {
	mu sync.Mutex

	// Command consumer
	commandsApplied   int64
	commandsStale     int64
	commandsRejected  int64
	commandsMalformed int64

	// Client ingestion
	framesIngested map[string]int64
	staleSkipped   map[string]int64

	// Transport health
	decodeErrors int64
	reconnects   int64

	// Telemetry recording
	recordWriteSuccess int64
	recordWriteFailure int64

	// Loop diagnostics
	loopIterations map[string]int64
	loopRates      map[string]float64

	// Channel delivery (set via AbsorbChannelStats)
	framesPublished map[string]int64
	framesDelivered map[string]int64
	framesDropped   map[string]int64
	framesConflated map[string]int64

	// Dimensions
	process string
	codec   string
	backend string
}

// NewCollector creates a Collector with dimension labels: the process
// name (stretchd or stretch), the wire codec, and the map store backend.
func NewCollector(process, codec, backend string) *Collector {
	return &Collector{
		framesIngested:  make(map[string]int64),
		staleSkipped:    make(map[string]int64),
		loopIterations:  make(map[string]int64),
		loopRates:       make(map[string]float64),
		framesPublished: make(map[string]int64),
		framesDelivered: make(map[string]int64),
		framesDropped:   make(map[string]int64),
		framesConflated: make(map[string]int64),
		process:         process,
		codec:           codec,
		backend:         backend,
	}
}

// --- Command consumer ---

// IncCommandApplied records a command applied to the driver.
func (c *Collector) IncCommandApplied() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.commandsApplied++
	c.mu.Unlock()
}

// IncCommandStale records a command discarded by the staleness rule.
func (c *Collector) IncCommandStale() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.commandsStale++
	c.mu.Unlock()
}

// IncCommandRejected records a command dropped by a failed
// precondition, such as a mode mismatch.
func (c *Collector) IncCommandRejected() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.commandsRejected++
	c.mu.Unlock()
}

// IncCommandMalformed records a command dropped for failing validation.
func (c *Collector) IncCommandMalformed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.commandsMalformed++
	c.mu.Unlock()
}

// --- Client ingestion ---
// Keys are frame kind strings so this package stays free of
// dependencies on the types package.

// IncFrameIngested records a frame accepted into the latest-frame cache.
func (c *Collector) IncFrameIngested(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesIngested[kind]++
	c.mu.Unlock()
}

// IncStaleSkipped records a frame rejected by the monotonicity guard.
func (c *Collector) IncStaleSkipped(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.staleSkipped[kind]++
	c.mu.Unlock()
}

// --- Transport health ---

// IncDecodeError records a frame that failed to decode.
func (c *Collector) IncDecodeError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.decodeErrors++
	c.mu.Unlock()
}

// IncReconnect records a dial retry.
func (c *Collector) IncReconnect() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.reconnects++
	c.mu.Unlock()
}

// --- Telemetry recording ---

// IncRecordWriteSuccess records a frame appended to a recording sink.
func (c *Collector) IncRecordWriteSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.recordWriteSuccess++
	c.mu.Unlock()
}

// IncRecordWriteFailure records a failed recording sink append.
func (c *Collector) IncRecordWriteFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.recordWriteFailure++
	c.mu.Unlock()
}

// --- Loop diagnostics ---

// IncLoopIteration records one iteration of the named loop.
func (c *Collector) IncLoopIteration(loop string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.loopIterations[loop]++
	c.mu.Unlock()
}

// RecordLoopRate stores the most recent achieved rate for the named loop.
func (c *Collector) RecordLoopRate(loop string, hz float64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.loopRates[loop] = hz
	c.mu.Unlock()
}

// --- Channel delivery (absorbed from channel stats) ---

// AbsorbChannelStats copies one channel's delivery counters into the
// collector. Called with each channel's final stats snapshot at
// shutdown, or periodically from the fast-state loop for live views.
func (c *Collector) AbsorbChannelStats(kind string, published, delivered, dropped, conflated int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesPublished[kind] = published
	c.framesDelivered[kind] = delivered
	c.framesDropped[kind] = dropped
	c.framesConflated[kind] = conflated
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all counters.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		CommandsApplied:   c.commandsApplied,
		CommandsStale:     c.commandsStale,
		CommandsRejected:  c.commandsRejected,
		CommandsMalformed: c.commandsMalformed,

		FramesIngested: copyCounts(c.framesIngested),
		StaleSkipped:   copyCounts(c.staleSkipped),

		DecodeErrors: c.decodeErrors,
		Reconnects:   c.reconnects,

		RecordWriteSuccess: c.recordWriteSuccess,
		RecordWriteFailure: c.recordWriteFailure,

		LoopIterations: copyCounts(c.loopIterations),
		LoopRates:      copyRates(c.loopRates),

		FramesPublished: copyCounts(c.framesPublished),
		FramesDelivered: copyCounts(c.framesDelivered),
		FramesDropped:   copyCounts(c.framesDropped),
		FramesConflated: copyCounts(c.framesConflated),

		Process: c.process,
		Codec:   c.codec,
		Backend: c.backend,
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func copyRates(src map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
