// Package msgs defines the report messages published by radar daemons.
package msgs

import (
	"time"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/radar.go/pkg/telemetry"
)

// Bits of Target.Known, indexed by telemetry.Attr.
const (
	KnownAngle          uint32 = 1 << telemetry.AttrAngle
	KnownDistance       uint32 = 1 << telemetry.AttrDistance
	KnownSpeed          uint32 = 1 << telemetry.AttrSpeed
	KnownSignalStrength uint32 = 1 << telemetry.AttrSignalStrength
	KnownDirection      uint32 = 1 << telemetry.AttrDirection
	KnownX              uint32 = 1 << telemetry.AttrX
	KnownY              uint32 = 1 << telemetry.AttrY
)

// TargetReport is the fresh view of a device at a time.
type TargetReport struct {
	Device                string    `protobuf:"bytes,1,opt,name=device,proto3" json:"device,omitempty"`
	Model                 string    `protobuf:"bytes,2,opt,name=model,proto3" json:"model,omitempty"`
	TimeMs                int64     `protobuf:"varint,3,opt,name=time_ms,proto3" json:"time_ms,omitempty"`
	TargetNumber          uint32    `protobuf:"varint,4,opt,name=target_number,proto3" json:"target_number,omitempty"`
	TargetNumberKnown     bool      `protobuf:"varint,5,opt,name=target_number_known,proto3" json:"target_number_known,omitempty"`
	HasTowardsTarget      bool      `protobuf:"varint,6,opt,name=has_towards_target,proto3" json:"has_towards_target,omitempty"`
	HasTowardsTargetKnown bool      `protobuf:"varint,7,opt,name=has_towards_target_known,proto3" json:"has_towards_target_known,omitempty"`
	Alarm                 bool      `protobuf:"varint,8,opt,name=alarm,proto3" json:"alarm,omitempty"`
	Targets               []*Target `protobuf:"bytes,9,rep,name=targets,proto3" json:"targets,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *TargetReport) ProtoMessage() {}

// Reset implements proto.Message.
func (m *TargetReport) Reset() { *m = TargetReport{} }

// String implements proto.Message.
func (m *TargetReport) String() string { return proto.CompactTextString(m) }

// Time converts TimeMs.
func (m *TargetReport) Time() time.Time {
	return time.Unix(0, m.TimeMs*int64(time.Millisecond))
}

// Target is a fresh slot. Attributes not in Known are stale or unset.
type Target struct {
	Slot           uint32  `protobuf:"varint,1,opt,name=slot,proto3" json:"slot,omitempty"`
	Angle          float64 `protobuf:"fixed64,2,opt,name=angle,proto3" json:"angle,omitempty"`
	Distance       float64 `protobuf:"fixed64,3,opt,name=distance,proto3" json:"distance,omitempty"`
	Speed          float64 `protobuf:"fixed64,4,opt,name=speed,proto3" json:"speed,omitempty"`
	SignalStrength float64 `protobuf:"fixed64,5,opt,name=signal_strength,proto3" json:"signal_strength,omitempty"`
	Direction      uint32  `protobuf:"varint,6,opt,name=direction,proto3" json:"direction,omitempty"`
	Known          uint32  `protobuf:"varint,7,opt,name=known,proto3" json:"known,omitempty"`
	X              float64 `protobuf:"fixed64,8,opt,name=x,proto3" json:"x,omitempty"`
	Y              float64 `protobuf:"fixed64,9,opt,name=y,proto3" json:"y,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Target) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Target) Reset() { *m = Target{} }

// String implements proto.Message.
func (m *Target) String() string { return proto.CompactTextString(m) }

// Has tells whether an attribute is known.
func (m *Target) Has(a telemetry.Attr) bool {
	return m.Known&(1<<a) != 0
}

// NewTargetReport builds a report from a snapshot. Only fresh slots are included.
func NewTargetReport(device, model string, s *telemetry.Snapshot) *TargetReport {
	m := &TargetReport{
		Device:                device,
		Model:                 model,
		TimeMs:                s.Time.UnixNano() / int64(time.Millisecond),
		TargetNumber:          uint32(s.TargetNumber.Value),
		TargetNumberKnown:     s.TargetNumber.Known,
		HasTowardsTarget:      s.HasTowardsTarget.Known && s.HasTowardsTarget.Value != 0,
		HasTowardsTargetKnown: s.HasTowardsTarget.Known,
		Alarm:                 s.Alarm.Known && s.Alarm.Value != 0,
	}
	for _, r := range s.FreshTargets() {
		t := &Target{Slot: uint32(r.Slot)}
		for _, a := range telemetry.Attrs {
			reading := r.Attr(a)
			if !reading.Known {
				continue
			}
			t.Known |= 1 << a
			switch a {
			case telemetry.AttrAngle:
				t.Angle = reading.Value
			case telemetry.AttrDistance:
				t.Distance = reading.Value
			case telemetry.AttrSpeed:
				t.Speed = reading.Value
			case telemetry.AttrSignalStrength:
				t.SignalStrength = reading.Value
			case telemetry.AttrDirection:
				t.Direction = uint32(reading.Value)
			case telemetry.AttrX:
				t.X = reading.Value
			case telemetry.AttrY:
				t.Y = reading.Value
			}
		}
		m.Targets = append(m.Targets, t)
	}
	return m
}

// Encode serializes a report.
func Encode(m *TargetReport) ([]byte, error) {
	return proto.Marshal(m)
}

// Decode parses a report.
func Decode(data []byte) (*TargetReport, error) {
	m := &TargetReport{}
	if err := proto.Unmarshal(data, m); err != nil {
		return nil, err
	}
	return m, nil
}
