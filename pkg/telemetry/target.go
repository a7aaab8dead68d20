package telemetry

import (
	"fmt"
	"strings"
	"time"
)

// Attr identifies a target attribute.
type Attr int

// Target attributes.
const (
	AttrAngle Attr = iota
	AttrDistance
	AttrSpeed
	AttrSignalStrength
	AttrDirection
	AttrX
	AttrY
	numAttrs
)

// Attrs lists all numeric and enum attributes.
var Attrs = []Attr{AttrAngle, AttrDistance, AttrSpeed, AttrSignalStrength, AttrDirection, AttrX, AttrY}

// PolarAttrs are the attributes of sensors measuring angle and distance.
var PolarAttrs = []Attr{AttrAngle, AttrDistance, AttrSpeed, AttrSignalStrength, AttrDirection}

var attrNames = [numAttrs]string{"angle", "distance", "speed", "signal_strength", "direction", "x", "y"}

// String implements fmt.Stringer.
func (a Attr) String() string {
	if a >= 0 && a < numAttrs {
		return attrNames[a]
	}
	return fmt.Sprintf("attr(%d)", int(a))
}

// Direction is the moving direction of a target.
type Direction int

// Directions.
const (
	DirectionNone Direction = iota
	DirectionApproaching
	DirectionReceding
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case DirectionApproaching:
		return "approaching"
	case DirectionReceding:
		return "receding"
	}
	return "none"
}

// ParseDirection parses the result of Direction.String.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "none", "":
		return DirectionNone, nil
	case "approaching":
		return DirectionApproaching, nil
	case "receding":
		return DirectionReceding, nil
	}
	return DirectionNone, fmt.Errorf("invalid direction %q", s)
}

// Value is a reading with its update time.
type Value struct {
	V  float64
	At time.Time
}

// Fresh indicates the value was updated within window before now.
func (v Value) Fresh(now time.Time, window time.Duration) bool {
	return !v.At.IsZero() && now.Sub(v.At) < window
}

// Target is a slot of target attributes.
type Target struct {
	attrs [numAttrs]Value
}

// Attr gets the stored value of an attribute.
func (t *Target) Attr(a Attr) Value {
	return t.attrs[a]
}

// Direction gets the stored direction.
func (t *Target) Direction() Direction {
	return Direction(t.attrs[AttrDirection].V)
}

// Empty indicates the slot never received data or was cleared.
func (t *Target) Empty() bool {
	for _, v := range t.attrs {
		if !v.At.IsZero() {
			return false
		}
	}
	return true
}

func (t *Target) set(r *Record, at time.Time) {
	t.attrs[AttrAngle] = Value{V: r.Angle, At: at}
	t.attrs[AttrDistance] = Value{V: r.Distance, At: at}
	t.attrs[AttrSpeed] = Value{V: r.Speed, At: at}
	t.attrs[AttrSignalStrength] = Value{V: r.SignalStrength, At: at}
	t.attrs[AttrDirection] = Value{V: float64(r.Direction), At: at}
	if r.Cartesian {
		t.attrs[AttrX] = Value{V: r.X, At: at}
		t.attrs[AttrY] = Value{V: r.Y, At: at}
	} else {
		t.attrs[AttrX], t.attrs[AttrY] = Value{}, Value{}
	}
	for _, a := range r.Unset {
		t.attrs[a] = Value{}
	}
}

func (t *Target) clear() {
	t.attrs = [numAttrs]Value{}
}
