package cache

import (
	"time"

	"github.com/killindicator/extension/pkg/core"
)

// Markers remembers which entities already showed a kill confirmation so the
// second claimant for the same kill is suppressed. Expired markers are swept
// lazily whenever the registry is touched.
//
// Markers is not safe for concurrent use; the owning session serialises access.
type Markers struct {
	lifetime int64 // ms
	shown    map[core.EntityID]int64
}

// NewMarkers creates an empty registry whose markers live for lifetime.
func NewMarkers(lifetime time.Duration) *Markers {
	return &Markers{
		lifetime: lifetime.Milliseconds(),
		shown:    make(map[core.EntityID]int64),
	}
}

// TryClaim records a marker for id at now and returns true when no unexpired
// marker exists. Otherwise it returns false and consumes the existing marker.
func (m *Markers) TryClaim(id core.EntityID, now int64) bool {
	m.Sweep(now)
	if _, ok := m.shown[id]; ok {
		delete(m.shown, id)
		return false
	}
	m.shown[id] = now
	return true
}

// Claimed reports whether id holds an unexpired marker at now.
func (m *Markers) Claimed(id core.EntityID, now int64) bool {
	at, ok := m.shown[id]
	return ok && !m.expired(at, now)
}

// Sweep removes every marker older than the lifetime and returns how many
// were dropped.
func (m *Markers) Sweep(now int64) int {
	n := 0
	for id, at := range m.shown {
		if m.expired(at, now) {
			delete(m.shown, id)
			n++
		}
	}
	return n
}

// Reset drops every marker.
func (m *Markers) Reset() {
	m.shown = make(map[core.EntityID]int64)
}

// Len returns the number of markers held, expired or not.
func (m *Markers) Len() int {
	return len(m.shown)
}

func (m *Markers) expired(at, now int64) bool {
	return now-at >= m.lifetime
}
