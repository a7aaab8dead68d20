package telemetry

import "time"

// Reading is a fresh-or-unknown value.
type Reading struct {
	Value float64
	Known bool
}

// TargetReading is the fresh view of a slot.
type TargetReading struct {
	Slot      int
	Attrs     [numAttrs]Reading
	Direction Direction
}

// Fresh indicates any attribute is known.
func (r *TargetReading) Fresh() bool {
	for _, a := range r.Attrs {
		if a.Known {
			return true
		}
	}
	return false
}

// Attr gets the reading of an attribute.
func (r *TargetReading) Attr(a Attr) Reading {
	return r.Attrs[a]
}

// Snapshot is the fresh view of all slots at a time.
type Snapshot struct {
	Time             time.Time
	TargetNumber     Reading
	HasTowardsTarget Reading
	Alarm            Reading
	Targets          []TargetReading
}

func boolReading(b, known bool) Reading {
	if b {
		return Reading{Value: 1, Known: known}
	}
	return Reading{Known: known}
}

// Snapshot reads all slots at now.
func (t *Tracker) Snapshot(now time.Time) *Snapshot {
	s := &Snapshot{Time: now, Targets: make([]TargetReading, t.Store.Len())}
	n, ok := t.TargetNumber(now)
	s.TargetNumber = Reading{Value: float64(n), Known: ok}
	s.HasTowardsTarget = boolReading(t.HasTowardsTarget(now))
	s.Alarm = boolReading(t.Alarm(now))
	for i := range s.Targets {
		r := &s.Targets[i]
		r.Slot = i
		for _, a := range Attrs {
			v, known := t.Read(i, a, now)
			r.Attrs[a] = Reading{Value: v, Known: known}
		}
		r.Direction = Direction(r.Attrs[AttrDirection].Value)
	}
	return s
}

// FreshTargets returns readings of slots with any fresh attribute.
func (s *Snapshot) FreshTargets() []TargetReading {
	var targets []TargetReading
	for _, r := range s.Targets {
		if r.Fresh() {
			targets = append(targets, r)
		}
	}
	return targets
}
