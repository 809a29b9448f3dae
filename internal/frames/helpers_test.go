package frames

import (
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/xpbridge/internal/mainloop"
	"github.com/danmuck/xpbridge/internal/profiling"
)

type fakeRenderer struct {
	mu       sync.Mutex
	textures []Texture
	fail     bool
	astc     bool
}

func (r *fakeRenderer) ApplyTexture(tex Texture) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("renderer rejected texture")
	}
	r.textures = append(r.textures, tex)
	return nil
}

func (r *fakeRenderer) UpdateFov(float64, float64) {}

func (r *fakeRenderer) SupportsFormat(f Format) bool {
	return f == FormatRGBA8 || (f == FormatASTC && r.astc)
}

func (r *fakeRenderer) got() []Texture {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Texture, len(r.textures))
	copy(out, r.textures)
	return out
}

type fakeCursor struct {
	ready    bool
	textures []Texture
}

func (c *fakeCursor) Ready() bool { return c.ready }

func (c *fakeCursor) ApplyTexture(tex Texture) error {
	c.textures = append(c.textures, tex)
	return nil
}

func (c *fakeCursor) UpdateCursorPosition(float64, float64) {}

// countingScheduler tracks how many scheduled actions are waiting to run.
type countingScheduler struct {
	q           *mainloop.Queue
	inflight    atomic.Int64
	maxInflight atomic.Int64
}

func (s *countingScheduler) Enqueue(fn mainloop.Action) {
	n := s.inflight.Add(1)
	for {
		cur := s.maxInflight.Load()
		if n <= cur || s.maxInflight.CompareAndSwap(cur, n) {
			break
		}
	}
	s.q.Enqueue(func() {
		s.inflight.Add(-1)
		fn()
	})
}

type harness struct {
	queue    *mainloop.Queue
	profiler *profiling.Aggregator
	ctx      *ApplyContext
	renderer *fakeRenderer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	q := mainloop.NewQueue()
	prof := profiling.New(true, time.Minute)
	ctx, err := NewApplyContext(q, prof)
	if err != nil {
		t.Fatalf("new apply context: %v", err)
	}
	r := &fakeRenderer{}
	ctx.UpdateTargets(r, nil)
	return &harness{queue: q, profiler: prof, ctx: ctx, renderer: r}
}

func (h *harness) drainAll() {
	for h.queue.Len() > 0 {
		h.queue.Drain()
	}
}

func rawFrame(w, h int32, fill byte) []byte {
	buf := make([]byte, 8+int(w)*int(h)*4)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(w))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h))
	for i := 8; i < len(buf); i++ {
		buf[i] = fill
	}
	return buf
}
