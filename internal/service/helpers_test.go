package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/capitalize-ai/mchat/internal/capability"
	"github.com/capitalize-ai/mchat/internal/model"
	"github.com/capitalize-ai/mchat/pkg/logger"
)

// fakeClock advances by step on every Now call. In manual mode timers only
// fire on release.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	step    time.Duration
	manual  bool
	pending []chan time.Time
	delays  []time.Duration
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start, step: time.Millisecond}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	c.delays = append(c.delays, d)
	if c.manual {
		c.pending = append(c.pending, ch)
		return ch
	}
	c.now = c.now.Add(d)
	ch <- c.now
	return ch
}

// release fires every waiting timer.
func (c *fakeClock) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.pending {
		ch <- c.now
	}
	c.pending = nil
}

func (c *fakeClock) waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *fakeClock) requested() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.delays...)
}

type fixedRandom struct {
	fraction float64
	index    int
}

func (r fixedRandom) Float64() float64 { return r.fraction }

func (r fixedRandom) Intn(n int) int { return r.index % n }

type sequentialIDs struct {
	mu sync.Mutex
	n  int
}

func (s *sequentialIDs) next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%03d", s.n)
}

var testStart = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

var testIdentity = model.Identity{ID: "1", Email: "demo@example.com", Name: "Demo User"}

func newTestSession(clock *fakeClock, opts Options) *Session {
	ids := &sequentialIDs{}
	opts.Clock = clock
	if opts.Random == nil {
		opts.Random = fixedRandom{fraction: 0, index: 3}
	}
	opts.NewID = ids.next
	opts.Location = time.UTC
	opts.Logger = logger.NewNop()
	return NewSession(testIdentity, opts)
}

type recordingExporter struct {
	mu    sync.Mutex
	blobs []capability.Blob
}

func (e *recordingExporter) Export(_ context.Context, blob capability.Blob) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.blobs = append(e.blobs, blob)
	return nil
}

type scriptedSpeech struct {
	heard  string
	spoken []string
}

func (s *scriptedSpeech) Listen(context.Context) (string, error) { return s.heard, nil }

func (s *scriptedSpeech) Speak(_ context.Context, text string) error {
	s.spoken = append(s.spoken, text)
	return nil
}
