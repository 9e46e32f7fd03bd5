package characteriser

import (
	"sync"
	"time"
)

// A wallClock measures how long each kernel invocation was observed for,
// keyed by invocation UID.
type wallClock struct {
	mu         sync.Mutex
	startTimes map[string]time.Time
}

func (w *wallClock) init() {
	w.startTimes = make(map[string]time.Time)
}

func (w *wallClock) start(uid string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, found := w.startTimes[uid]; found {
		panic("walltime already started for " + uid)
	}
	w.startTimes[uid] = time.Now()
}

// stop returns the seconds elapsed since start for the UID and forgets it.
func (w *wallClock) stop(uid string) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	startTime, found := w.startTimes[uid]
	if !found {
		panic("walltime stopped before it was started for " + uid)
	}
	delete(w.startTimes, uid)
	return time.Since(startTime).Seconds()
}
