package ld2451

import (
	"errors"
	"time"

	"github.com/robotalks/radar.go/pkg/telemetry"
)

// recordSize is the size of a target record in a report.
const recordSize = 5

// ErrTruncatedReport indicates a report shorter than its target count.
var ErrTruncatedReport = errors.New("truncated report")

// Decoder decodes report frames:
//
//	count(1) alarm(1) [angle(1) distance(1) direction(1) speed(1) snr(1)] * count
//
// angle is offset by 0x80 in degrees, distance in meters, speed in km/h.
// direction is 0 for moving away and 1 for approaching.
// An empty frame means no targets.
type Decoder struct {
	Bounds telemetry.Bounds
}

// Decode implements telemetry.Decoder.
func (d *Decoder) Decode(data []byte, at time.Time) (*telemetry.Report, error) {
	r := &telemetry.Report{At: at}
	if len(data) == 0 {
		return r, nil
	}
	if len(data) < 2 {
		return nil, ErrTruncatedReport
	}
	count := int(data[0])
	r.Alarm = data[1] != 0
	if len(data) < 2+count*recordSize {
		return nil, ErrTruncatedReport
	}
	r.Records = make([]telemetry.Record, count)
	for i := range r.Records {
		p := data[2+i*recordSize:]
		rec := &r.Records[i]
		rec.Angle = float64(int(p[0]) - 0x80)
		rec.Distance = float64(p[1])
		rec.Direction = telemetry.DirectionReceding
		if p[2] != 0 {
			rec.Direction = telemetry.DirectionApproaching
		}
		rec.Speed = float64(p[3])
		rec.SignalStrength = float64(p[4])
		rec.Invalid = d.Bounds.Check(rec)
	}
	return r, nil
}
