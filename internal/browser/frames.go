package browser

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto/target"
)

// FrameState is where an out-of-process frame is in its lifecycle.
type FrameState int

const (
	// FrameUnknown is a target the registry has never seen.
	FrameUnknown FrameState = iota
	// FrameTracked is a frame that was discovered and is being attached.
	FrameTracked
	// FramePatched is a frame that received the script. It is never patched again.
	FramePatched
)

func (s FrameState) String() string {
	switch s {
	case FrameTracked:
		return "tracked"
	case FramePatched:
		return "patched"
	default:
		return "unknown"
	}
}

type frame struct {
	state  FrameState
	cancel context.CancelFunc
}

// FrameRegistry records which out-of-process frames have been handled.
// Every transition happens at most once per target.
type FrameRegistry struct {
	mu     sync.Mutex
	frames map[target.ID]*frame
}

func NewFrameRegistry() *FrameRegistry {
	return &FrameRegistry{frames: make(map[target.ID]*frame)}
}

// Track moves id from unknown to tracked. It reports false when id was
// already known, in which case the caller must not attach again.
func (r *FrameRegistry) Track(id target.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.frames[id]; ok {
		return false
	}
	r.frames[id] = &frame{state: FrameTracked}
	return true
}

// MarkPatched moves id from tracked to patched and keeps cancel for
// Forget. It reports false for any other starting state.
func (r *FrameRegistry) MarkPatched(id target.ID, cancel context.CancelFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.frames[id]
	if !ok || f.state != FrameTracked {
		return false
	}
	f.state = FramePatched
	f.cancel = cancel
	return true
}

// State returns the current state of id.
func (r *FrameRegistry) State(id target.ID) FrameState {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.frames[id]; ok {
		return f.state
	}
	return FrameUnknown
}

// Forget drops id and releases its attachment. A destroyed target id is
// never reused by the browser, so forgetting it cannot cause a re-patch.
func (r *FrameRegistry) Forget(id target.ID) {
	r.mu.Lock()
	f, ok := r.frames[id]
	delete(r.frames, id)
	r.mu.Unlock()

	if ok && f.cancel != nil {
		f.cancel()
	}
}

// Len returns the number of frames currently known.
func (r *FrameRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// Close releases every attachment.
func (r *FrameRegistry) Close() {
	r.mu.Lock()
	frames := r.frames
	r.frames = make(map[target.ID]*frame)
	r.mu.Unlock()

	for _, f := range frames {
		if f.cancel != nil {
			f.cancel()
		}
	}
}
