package telemetry

import (
	"sync"

	"github.com/golang/glog"
)

// Store holds target slots written by the decoder and read by facades.
type Store struct {
	lock         sync.RWMutex
	slots        []Target
	targetNumber Value
	alarm        Value
}

// NewStore creates a Store with n slots.
func NewStore(n int) *Store {
	return &Store{slots: make([]Target, n)}
}

// Len returns the number of slots.
func (s *Store) Len() int {
	return len(s.slots)
}

// Slot returns a copy of a slot.
func (s *Store) Slot(i int) (t Target) {
	s.lock.RLock()
	if i >= 0 && i < len(s.slots) {
		t = s.slots[i]
	}
	s.lock.RUnlock()
	return
}

// TargetNumber returns the number of valid targets of the last report.
func (s *Store) TargetNumber() Value {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.targetNumber
}

// Alarm returns the alarm flag of the last report as 0 or 1.
func (s *Store) Alarm() Value {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.alarm
}

// Apply writes a report into slots in place.
// Slots of invalid records and slots beyond the records are cleared,
// and records beyond the slots are dropped.
func (s *Store) Apply(r *Report) *Updates {
	records := r.Records
	if len(records) > len(s.slots) {
		glog.Warningf("report has %d targets, dropped %d beyond %d slots",
			len(records), len(records)-len(s.slots), len(s.slots))
		records = records[:len(s.slots)]
	}
	u := &Updates{store: s}
	var alarm float64
	if r.Alarm {
		alarm = 1
	}
	s.lock.Lock()
	for i := range records {
		rec := &records[i]
		if !rec.Valid() {
			glog.V(2).Infof("target %d: %v", i+1, rec.Invalid)
			s.slots[i].clear()
			continue
		}
		s.slots[i].set(rec, r.At)
		u.slots = append(u.slots, i)
	}
	for i := len(records); i < len(s.slots); i++ {
		s.slots[i].clear()
	}
	s.targetNumber = Value{V: float64(len(u.slots)), At: r.At}
	s.alarm = Value{V: alarm, At: r.At}
	s.lock.Unlock()
	return u
}

// Updates iterates slots written by one Apply.
// Targets are read from the store when visited.
type Updates struct {
	store *Store
	slots []int
	pos   int
}

// Len returns the number of updated slots.
func (u *Updates) Len() int {
	return len(u.slots)
}

// Next returns the next updated slot.
func (u *Updates) Next() (slot int, t Target, ok bool) {
	if u.pos >= len(u.slots) {
		return -1, t, false
	}
	slot = u.slots[u.pos]
	u.pos++
	return slot, u.store.Slot(slot), true
}

// Reset restarts the iteration.
func (u *Updates) Reset() {
	u.pos = 0
}
