package chaos

import (
	"maps"
	"sync"
	"time"
)

// Stats counts dispatch outcomes since the Dispatcher was created or last
// reset.
type Stats struct {
	Dispatches     int64            `json:"dispatches"`
	Untracked      int64            `json:"untracked"`
	Passed         int64            `json:"passed"`
	ErrorsInjected int64            `json:"errorsInjected"`
	ErrorsByLabel  map[string]int64 `json:"errorsByLabel"`
	DelaysInjected int64            `json:"delaysInjected"`
	TotalDelay     time.Duration    `json:"totalDelay"`
}

// NewStats returns zeroed stats.
func NewStats() *Stats {
	return &Stats{ErrorsByLabel: make(map[string]int64)}
}

type statsTracker struct {
	mu    sync.Mutex
	stats *Stats
}

func newStatsTracker() *statsTracker {
	return &statsTracker{stats: NewStats()}
}

func (t *statsTracker) record(d Decision) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.Dispatches++
	switch d.Outcome {
	case OutcomeUntracked:
		t.stats.Untracked++
	case OutcomePass:
		t.stats.Passed++
	case OutcomeError:
		t.stats.ErrorsInjected++
		t.stats.ErrorsByLabel[d.FaultLabel()]++
	case OutcomeDelay:
		t.stats.DelaysInjected++
		t.stats.TotalDelay += d.Delay
	}
}

// snapshot returns a copy safe to hand to callers.
func (t *statsTracker) snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := *t.stats
	out.ErrorsByLabel = maps.Clone(t.stats.ErrorsByLabel)
	return out
}

func (t *statsTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats = NewStats()
}
