package client

import (
	"sync"

	"github.com/fazildgr8/stretch-ai/types"
)

// frameCache holds the latest frame per kind. Single writer per kind
// (that kind's ingest loop), many readers. Frames are immutable after
// decode, so handing out the stored pointer is a coherent snapshot.
type frameCache struct {
	mu     sync.RWMutex
	latest map[types.FrameKind]types.Frame
}

func newFrameCache() *frameCache {
	return &frameCache{latest: make(map[types.FrameKind]types.Frame)}
}

// put stores f unless a frame of the same kind with a higher step is
// already cached. A frame at the same step replaces the cached one; a
// lower step is refused so readers never observe a step regression.
func (c *frameCache) put(f types.Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.latest[f.Kind()]; ok && f.Step() < cur.Step() {
		return false
	}
	c.latest[f.Kind()] = f
	return true
}

// get returns the latest frame of the kind, if any has arrived.
func (c *frameCache) get(kind types.FrameKind) (types.Frame, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.latest[kind]
	return f, ok
}
