package sim

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/robotalks/radar.go/pkg/comm"
)

// LD2413 simulates an LD2413 module.
type LD2413 struct {
	*Module

	MinDistance    uint16
	MaxDistance    uint16
	ReportInterval uint16
	Calibrated     int
}

// NewLD2413 creates a simulated LD2413.
func NewLD2413(name string, rw io.ReadWriter) *LD2413 {
	m := &LD2413{
		Module:         NewModule(name, rw, comm.KindCommand),
		MinDistance:    150,
		MaxDistance:    10500,
		ReportInterval: 1000,
	}
	setter := func(p *uint16, min, max uint16) CommandFunc {
		return func(v []byte) (uint16, []byte) {
			if len(v) < 2 {
				return 1, nil
			}
			val := binary.LittleEndian.Uint16(v)
			if val < min || val > max {
				return 1, nil
			}
			*p = val
			return 0, nil
		}
	}
	m.Handlers[0x0074] = setter(&m.MinDistance, 150, 10500)
	m.Handlers[0x0075] = setter(&m.MaxDistance, 150, 10500)
	m.Handlers[0x0071] = setter(&m.ReportInterval, 50, 65535)
	m.Handlers[0x0070] = func([]byte) (uint16, []byte) {
		return 0, binary.LittleEndian.AppendUint16(nil, m.ReportInterval)
	}
	m.Handlers[0x0072] = func([]byte) (uint16, []byte) {
		m.Calibrated++
		return 0, nil
	}
	m.Handlers[0x0000] = func([]byte) (uint16, []byte) {
		// the reply is a version text without status.
		return binary.LittleEndian.Uint16([]byte("V1")), []byte(".03.5\x00")
	}
	return m
}

// ReportDistance sends a distance in mm.
func (m *LD2413) ReportDistance(mm float32) error {
	return m.Report(binary.LittleEndian.AppendUint32(nil, math.Float32bits(mm)))
}
