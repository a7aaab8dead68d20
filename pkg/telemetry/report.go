package telemetry

import (
	"fmt"
	"time"
)

// Record is one decoded target record in a report.
type Record struct {
	Angle          float64
	Distance       float64
	Speed          float64
	SignalStrength float64
	Direction      Direction
	// X and Y are the position in meters, only kept if Cartesian is set.
	X         float64
	Y         float64
	Cartesian bool
	// Unset lists attributes the sensor doesn't measure.
	Unset []Attr
	// Invalid is set when the record failed validation.
	Invalid error
}

// Valid indicates the record passed validation.
func (r *Record) Valid() bool {
	return r.Invalid == nil
}

// Report is a decoded report frame.
type Report struct {
	At      time.Time
	Alarm   bool
	Records []Record
}

// ValidCount counts valid records.
func (r *Report) ValidCount() (n int) {
	for i := range r.Records {
		if r.Records[i].Valid() {
			n++
		}
	}
	return
}

// Decoder decodes report frame data.
type Decoder interface {
	Decode(data []byte, at time.Time) (*Report, error)
}

// DecodeFunc is func type of Decoder.
type DecodeFunc func(data []byte, at time.Time) (*Report, error)

// Decode implements Decoder.
func (f DecodeFunc) Decode(data []byte, at time.Time) (*Report, error) {
	return f(data, at)
}

// OutOfRangeError describes a record rejected by validation.
type OutOfRangeError struct {
	Attr  Attr
	Value float64
	Min   float64
	Max   float64
}

// Error implements error.
func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s %v out of range [%v, %v]", e.Attr, e.Value, e.Min, e.Max)
}

// Bounds limits valid readings.
type Bounds struct {
	MinDistance float64
	MaxDistance float64
	MaxSpeed    float64
	MaxAngle    float64
}

// Check validates a record and returns an OutOfRangeError if any.
func (b *Bounds) Check(r *Record) error {
	if r.Distance < b.MinDistance || r.Distance > b.MaxDistance {
		return &OutOfRangeError{Attr: AttrDistance, Value: r.Distance, Min: b.MinDistance, Max: b.MaxDistance}
	}
	if r.Speed < 0 || r.Speed > b.MaxSpeed {
		return &OutOfRangeError{Attr: AttrSpeed, Value: r.Speed, Min: 0, Max: b.MaxSpeed}
	}
	if r.Angle < -b.MaxAngle || r.Angle > b.MaxAngle {
		return &OutOfRangeError{Attr: AttrAngle, Value: r.Angle, Min: -b.MaxAngle, Max: b.MaxAngle}
	}
	return nil
}
