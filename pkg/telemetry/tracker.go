package telemetry

import "time"

// DefaultWindow is the default staleness window.
const DefaultWindow = time.Second

// Tracker exposes store readings only while fresh.
type Tracker struct {
	Store  *Store
	Window time.Duration
}

// NewTracker creates a Tracker over a store.
func NewTracker(store *Store, window time.Duration) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{Store: store, Window: window}
}

// Read gets an attribute of a slot if fresh.
func (t *Tracker) Read(slot int, attr Attr, now time.Time) (float64, bool) {
	target := t.Store.Slot(slot)
	v := target.Attr(attr)
	if !v.Fresh(now, t.Window) {
		return 0, false
	}
	return v.V, true
}

// Direction gets the direction of a slot, DirectionNone if stale.
func (t *Tracker) Direction(slot int, now time.Time) Direction {
	if v, ok := t.Read(slot, AttrDirection, now); ok {
		return Direction(v)
	}
	return DirectionNone
}

// TargetNumber gets the number of targets in the last report if fresh.
func (t *Tracker) TargetNumber(now time.Time) (int, bool) {
	v := t.Store.TargetNumber()
	if !v.Fresh(now, t.Window) {
		return 0, false
	}
	return int(v.V), true
}

// HasTowardsTarget indicates any fresh target is approaching.
// It's unknown when no report is fresh.
func (t *Tracker) HasTowardsTarget(now time.Time) (bool, bool) {
	if _, ok := t.TargetNumber(now); !ok {
		return false, false
	}
	for i, n := 0, t.Store.Len(); i < n; i++ {
		if t.Direction(i, now) == DirectionApproaching {
			return true, true
		}
	}
	return false, true
}

// Alarm gets the alarm flag of the last report if fresh.
func (t *Tracker) Alarm(now time.Time) (bool, bool) {
	v := t.Store.Alarm()
	if !v.Fresh(now, t.Window) {
		return false, false
	}
	return v.V != 0, true
}
