// Package escalation implements CLIP's retry-escalation tracker
// (component F, spec.md §4.F): it notices when a client retries the same
// call over and over (a classic symptom of a response still being too
// large) and escalates the compression budget instead of returning the
// same oversized summary every time.
//
// DESIGN: modeled on the teacher's MetricsCollector atomic-counter/window
// style (internal/monitoring/metrics.go) combined with the teacher's
// TTL-keyed map pattern used elsewhere for per-session state. Entries are
// plain mutex-guarded map values rather than atomics, since each entry
// carries multiple fields that must update together.
package escalation

import (
	"math"
	"sync"
	"time"

	"github.com/samteezy/clip/internal/config"
)

type entry struct {
	count     int
	firstSeen time.Time
	lastSeen  time.Time
}

// Tracker maintains per-(qualified_tool, args_hash) retry state.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{entries: make(map[string]*entry)}
}

// RecordAndFactor records a call for key under policy and returns the
// escalation factor to apply to maxOutputTokens for this call (spec.md
// §4.F). If policy.Enabled is false, it always returns 1.0 without
// touching tracker state.
func (t *Tracker) RecordAndFactor(key string, policy config.RetryEscalation) float64 {
	if !policy.Enabled {
		return 1.0
	}

	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok || now.Sub(e.firstSeen) > policy.Window {
		t.entries[key] = &entry{count: 1, firstSeen: now, lastSeen: now}
		return 1.0
	}

	e.count++
	e.lastSeen = now

	factor := math.Pow(policy.TokenMultiplier, float64(e.count-1))
	cap := float64(policy.CapLevels)
	if cap <= 0 {
		cap = 1
	}
	capFactor := math.Pow(policy.TokenMultiplier, cap-1)
	if factor > capFactor {
		factor = capFactor
	}
	return factor
}

// Sweep removes entries whose window has fully elapsed, bounding memory
// for tools that are no longer being retried.
func (t *Tracker) Sweep(window time.Duration) {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, e := range t.entries {
		if now.Sub(e.lastSeen) > window {
			delete(t.entries, k)
		}
	}
}

// Len reports the number of tracked keys, for diagnostics.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
