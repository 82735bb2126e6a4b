// Package shadow keeps a client's predicted view of enemy health.
package shadow

import "github.com/killindicator/extension/pkg/core"

// Record is the most recent locally observed hit on one entity.
type Record struct {
	Entity           core.EntityID
	Time             int64     // monotonic ms of the last hit
	LocalHitPosition core.Vec3 // relative to the entity
	Item             *core.Item

	// Health is the predicted residual health. Valid only when HasHealth.
	Health    float32
	HasHealth bool
	// Indicated is set once a local confirmation fired for this life.
	Indicated bool
}

// Tracker holds one Record per entity. It is not safe for concurrent use;
// the owning session serialises access.
type Tracker struct {
	records map[core.EntityID]*Record
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{records: make(map[core.EntityID]*Record)}
}

// OnDamage upserts the record for id. Time, position and item are overwritten
// with the latest values; predicted health is left alone.
func (t *Tracker) OnDamage(id core.EntityID, time int64, localHit core.Vec3, item *core.Item) Record {
	r := t.get(id)
	r.Time = time
	r.LocalHitPosition = localHit
	r.Item = item
	return *r
}

// Predict folds one hit into the predicted health of id and returns the new
// value. The prediction is first synced down to engineHealth when the engine
// reports less than we expected, so hits we never saw still count.
func (t *Tracker) Predict(id core.EntityID, engineHealth, damage float32) float32 {
	r := t.get(id)
	if !r.HasHealth || engineHealth < r.Health {
		r.Health = engineHealth
		r.HasHealth = true
	}
	r.Health -= damage
	return r.Health
}

// MarkIndicated flags that a local confirmation fired for id. It returns false
// if one had already fired, or if id is not tracked.
func (t *Tracker) MarkIndicated(id core.EntityID) bool {
	r, ok := t.records[id]
	if !ok || r.Indicated {
		return false
	}
	r.Indicated = true
	return true
}

// Peek returns a copy of the record for id without removing it.
func (t *Tracker) Peek(id core.EntityID) (Record, bool) {
	r, ok := t.records[id]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Take removes and returns the record for id.
func (t *Tracker) Take(id core.EntityID) (Record, bool) {
	r, ok := t.records[id]
	if !ok {
		return Record{}, false
	}
	delete(t.records, id)
	return *r, true
}

// ClearAll drops every record.
func (t *Tracker) ClearAll() {
	t.records = make(map[core.EntityID]*Record)
}

// Len returns the number of tracked entities.
func (t *Tracker) Len() int {
	return len(t.records)
}

func (t *Tracker) get(id core.EntityID) *Record {
	r, ok := t.records[id]
	if !ok {
		r = &Record{Entity: id}
		t.records[id] = r
	}
	return r
}
