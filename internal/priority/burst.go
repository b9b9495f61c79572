package priority

import (
	"sync"
	"time"
)

const (
	// maxTimestampsPerSource caps each sliding window.
	maxTimestampsPerSource = 10
	// maxTrackedSources bounds the tracker under notification floods.
	maxTrackedSources = 100
	// sourceStaleAfter is the idle age at which a source is evictable.
	sourceStaleAfter = time.Hour
)

// sourceWindow is the per-source burst state: a bounded, oldest-first
// ring of recent event timestamps plus the last "island shown" mark
// used for fast-dismiss detection. All times are monotonic ms.
type sourceWindow struct {
	ts       []int64
	lastSeen int64
	shownAt  int64 // 0 when unset
}

// burstTracker answers "is this source currently bursting?" for the
// priority engine. Safe for concurrent use.
type burstTracker struct {
	mu      sync.Mutex
	windows map[string]*sourceWindow
}

func newBurstTracker() *burstTracker {
	return &burstTracker{windows: map[string]*sourceWindow{}}
}

func (t *burstTracker) window(source string, nowMono int64) *sourceWindow {
	w, ok := t.windows[source]
	if !ok {
		if len(t.windows) >= maxTrackedSources {
			t.evictOldestLocked()
		}
		w = &sourceWindow{}
		t.windows[source] = w
	}
	w.lastSeen = nowMono
	return w
}

// record appends the timestamp and returns how many recorded events
// fall within the window ending now (the new one included).
func (t *burstTracker) record(source string, nowMono int64, window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	w := t.window(source, nowMono)
	w.ts = append(w.ts, nowMono)
	if len(w.ts) > maxTimestampsPerSource {
		w.ts = w.ts[len(w.ts)-maxTimestampsPerSource:]
	}
	return countWithin(w.ts, nowMono, window)
}

// countWithinWindow reports the current in-window count without
// recording a new event (bias gates re-check against lower thresholds).
func (t *burstTracker) countWithinWindow(source string, nowMono int64, window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[source]
	if !ok {
		return 0
	}
	return countWithin(w.ts, nowMono, window)
}

func countWithin(ts []int64, nowMono int64, window time.Duration) int {
	cutoff := nowMono - window.Milliseconds()
	n := 0
	for _, v := range ts {
		if v > cutoff {
			n++
		}
	}
	return n
}

func (t *burstTracker) markShown(source string, nowMono int64) {
	t.mu.Lock()
	t.window(source, nowMono).shownAt = nowMono
	t.mu.Unlock()
}

// takeShown returns the last shown mark for the source and clears it.
func (t *burstTracker) takeShown(source string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.windows[source]
	if !ok {
		return 0
	}
	at := w.shownAt
	w.shownAt = 0
	return at
}

func (t *burstTracker) clear(source string) {
	t.mu.Lock()
	delete(t.windows, source)
	t.mu.Unlock()
}

func (t *burstTracker) clearAll() {
	t.mu.Lock()
	t.windows = map[string]*sourceWindow{}
	t.mu.Unlock()
}

// evictStale drops sources idle longer than sourceStaleAfter and
// returns how many were removed.
func (t *burstTracker) evictStale(nowMono int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := nowMono - sourceStaleAfter.Milliseconds()
	n := 0
	for src, w := range t.windows {
		if w.lastSeen < cutoff {
			delete(t.windows, src)
			n++
		}
	}
	return n
}

// evictOldestLocked removes the least recently seen source. Caller
// holds t.mu.
func (t *burstTracker) evictOldestLocked() {
	var (
		oldestSrc string
		oldestAt  int64 = 1<<63 - 1
	)
	for src, w := range t.windows {
		if w.lastSeen < oldestAt {
			oldestAt = w.lastSeen
			oldestSrc = src
		}
	}
	if oldestSrc != "" {
		delete(t.windows, oldestSrc)
	}
}

func (t *burstTracker) trackedSources() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.windows)
}
