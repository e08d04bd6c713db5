package render

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Loop schedules frames until stopped. The desktop host calls Tick from its
// own update callback; headless hosts call Run.
type Loop struct {
	paused  atomic.Bool
	stopped atomic.Bool
	frames  atomic.Uint64
	stopCh  chan struct{}
	once    sync.Once
}

func NewLoop() *Loop {
	return &Loop{stopCh: make(chan struct{})}
}

// Stop ends the loop. It is safe to call more than once and from any
// goroutine.
func (l *Loop) Stop() {
	l.once.Do(func() {
		l.stopped.Store(true)
		close(l.stopCh)
	})
}

func (l *Loop) Stopped() bool {
	return l.stopped.Load()
}

// Done is closed once Stop has been called.
func (l *Loop) Done() <-chan struct{} {
	return l.stopCh
}

// SetPaused suspends frames without stopping the loop.
func (l *Loop) SetPaused(paused bool) {
	l.paused.Store(paused)
}

func (l *Loop) Paused() bool {
	return l.paused.Load()
}

// Frames returns how many ticks have run their frame function. Paused ticks
// are not counted.
func (l *Loop) Frames() uint64 {
	return l.frames.Load()
}

// Tick runs frame once unless the loop is paused. It reports false once the
// loop has been stopped.
func (l *Loop) Tick(frame func()) bool {
	if l.Stopped() {
		return false
	}
	if l.Paused() {
		return true
	}
	frame()
	l.frames.Add(1)
	return !l.Stopped()
}

// Run calls frame every interval until Stop is called or ctx is done. Each
// iteration waits in exactly one place.
func (l *Loop) Run(ctx context.Context, interval time.Duration, frame func(now time.Time)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stopCh:
			return nil
		case now := <-ticker.C:
			l.Tick(func() { frame(now) })
		}
	}
}
