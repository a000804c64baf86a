package mapstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// DefaultMaxArchiveSize bounds a reassembled archive (1 GiB).
const DefaultMaxArchiveSize = 1 << 30

// Manifest is the commit record of a chunked archive. It declares how
// many chunks exist and what the reassembled bytes must hash to; a
// backend that can read the manifest but not reproduce its declared
// size and checksum holds a corrupt archive.
type Manifest struct {
	// Name is the map's storage name.
	Name string `json:"name"`
	// Chunks is the chunk count. Zero for an empty archive.
	Chunks int `json:"chunks"`
	// Size is the total archive size in bytes.
	Size int64 `json:"size"`
	// Checksum is the hex sha256 of the whole archive.
	Checksum string `json:"checksum"`
	// SavedAt is when the archive was written.
	SavedAt time.Time `json:"saved_at"`
}

// Chunk is one numbered piece of an archive. Seq starts at 1.
type Chunk struct {
	Seq  int
	Data []byte
}

// SplitArchive cuts data into chunks of at most chunkSize bytes and
// builds the matching manifest. Empty data yields zero chunks.
func SplitArchive(name string, data []byte, chunkSize int) (Manifest, []Chunk) {
	if chunkSize <= 0 {
		chunkSize = 1 << 20
	}
	var chunks []Chunk
	for off := 0; off < len(data); off += chunkSize {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		buf := make([]byte, end-off)
		copy(buf, data[off:end])
		chunks = append(chunks, Chunk{Seq: len(chunks) + 1, Data: buf})
	}
	sum := sha256.Sum256(data)
	return Manifest{
		Name:     name,
		Chunks:   len(chunks),
		Size:     int64(len(data)),
		Checksum: hex.EncodeToString(sum[:]),
		SavedAt:  time.Now().UTC(),
	}, chunks
}

// Accumulator reassembles a chunked archive. Chunks must arrive with
// strictly increasing seq starting at 1; the manifest may arrive
// before, between, or after the chunks. Safe for concurrent use.
type Accumulator struct {
	mu       sync.Mutex
	name     string
	manifest *Manifest
	buf      []byte
	nextSeq  int
	maxSize  int64
}

// NewAccumulator creates an accumulator for the named archive. A
// maxSize of zero applies DefaultMaxArchiveSize.
func NewAccumulator(name string, maxSize int64) *Accumulator {
	if maxSize <= 0 {
		maxSize = DefaultMaxArchiveSize
	}
	return &Accumulator{name: name, nextSeq: 1, maxSize: maxSize}
}

// SetManifest records the commit record. Rejects a manifest whose
// declared size exceeds the accumulator bound, a second manifest, or
// one that already contradicts the chunks received so far.
func (a *Accumulator) SetManifest(m Manifest) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.manifest != nil {
		return a.corrupt("assemble", fmt.Errorf("duplicate manifest"))
	}
	if m.Size > a.maxSize {
		return a.corrupt("assemble", fmt.Errorf("declared size %d exceeds bound %d", m.Size, a.maxSize))
	}
	if m.Chunks < 0 || m.Size < 0 {
		return a.corrupt("assemble", fmt.Errorf("negative chunk count or size"))
	}
	if a.nextSeq-1 > m.Chunks {
		return a.corrupt("assemble", fmt.Errorf("received %d chunks, manifest declares %d", a.nextSeq-1, m.Chunks))
	}
	a.manifest = &m
	return nil
}

// AddChunk appends the next chunk. Rejects out-of-order seq, chunks
// past the declared count, and growth past the size bound.
func (a *Accumulator) AddChunk(c Chunk) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c.Seq != a.nextSeq {
		return a.corrupt("assemble", fmt.Errorf("expected chunk seq %d, got %d", a.nextSeq, c.Seq))
	}
	if a.manifest != nil && c.Seq > a.manifest.Chunks {
		return a.corrupt("assemble", fmt.Errorf("chunk %d past declared count %d", c.Seq, a.manifest.Chunks))
	}
	if int64(len(a.buf))+int64(len(c.Data)) > a.maxSize {
		return a.corrupt("assemble", fmt.Errorf("archive exceeds bound %d", a.maxSize))
	}
	a.buf = append(a.buf, c.Data...)
	a.nextSeq++
	return nil
}

// Complete reports whether the manifest has arrived and every declared
// chunk has been added.
func (a *Accumulator) Complete() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.manifest != nil && a.nextSeq-1 == a.manifest.Chunks
}

// Bytes verifies the completed archive against the manifest's declared
// size and checksum and returns the reassembled data.
func (a *Accumulator) Bytes() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.manifest == nil {
		return nil, a.corrupt("assemble", fmt.Errorf("no manifest"))
	}
	if got := a.nextSeq - 1; got != a.manifest.Chunks {
		return nil, a.corrupt("assemble", fmt.Errorf("have %d of %d chunks", got, a.manifest.Chunks))
	}
	if int64(len(a.buf)) != a.manifest.Size {
		return nil, a.corrupt("assemble", fmt.Errorf("size %d, manifest declares %d", len(a.buf), a.manifest.Size))
	}
	sum := sha256.Sum256(a.buf)
	if hex.EncodeToString(sum[:]) != a.manifest.Checksum {
		return nil, a.corrupt("assemble", fmt.Errorf("checksum mismatch"))
	}
	out := make([]byte, len(a.buf))
	copy(out, a.buf)
	return out, nil
}

func (a *Accumulator) corrupt(op string, err error) error {
	return &StoreError{Kind: ErrCorrupt, Op: op, Name: a.name, Err: err}
}
