package analysis

import (
	"sync"
	"time"
)

// progressTracker drives the simulated per-user progress counter and doubles
// as the busy flag that keeps submissions mutually exclusive. The percentage
// is presentation feedback only; it does not measure real request progress.
type progressTracker struct {
	mu      sync.Mutex
	tick    time.Duration
	step    int
	entries map[int64]*progressEntry
}

type progressEntry struct {
	percent int
	done    chan struct{}
}

func newProgressTracker(tick time.Duration, step int) *progressTracker {
	if tick <= 0 {
		tick = 500 * time.Millisecond
	}
	if step <= 0 {
		step = 10
	}
	return &progressTracker{
		tick:    tick,
		step:    step,
		entries: make(map[int64]*progressEntry),
	}
}

// begin claims the busy flag for a user. The second return is false when an
// analysis is already in flight; otherwise the returned release function must
// be called exactly once when the analysis settles.
func (t *progressTracker) begin(userID int64) (func(), bool) {
	t.mu.Lock()
	if _, busy := t.entries[userID]; busy {
		t.mu.Unlock()
		return nil, false
	}
	entry := &progressEntry{done: make(chan struct{})}
	t.entries[userID] = entry
	t.mu.Unlock()

	go t.advanceLoop(userID, entry.done)

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(entry.done)
			t.mu.Lock()
			delete(t.entries, userID)
			t.mu.Unlock()
		})
	}
	return release, true
}

func (t *progressTracker) advanceLoop(userID int64, done <-chan struct{}) {
	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			t.mu.Lock()
			if entry, ok := t.entries[userID]; ok && entry.percent < 100 {
				entry.percent += t.step
				if entry.percent > 100 {
					entry.percent = 100
				}
			}
			t.mu.Unlock()
		}
	}
}

// snapshot reports the current cosmetic progress for a user.
func (t *progressTracker) snapshot(userID int64) Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[userID]
	if !ok {
		return Progress{}
	}
	return Progress{Analyzing: true, Percent: entry.percent}
}
