package sim

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/robotalks/radar.go/pkg/comm"
)

// LD2451 simulates the parameter registers of an LD2451 module.
type LD2451 struct {
	*Module

	Sensitivity [2]byte
	DetectRange [4]byte
	BaudRate    uint16
}

// NewLD2451 creates a simulated LD2451 with factory settings.
func NewLD2451(name string, rw io.ReadWriter) *LD2451 {
	m := &LD2451{
		Module:      NewModule(name, rw, comm.KindReport),
		Sensitivity: [2]byte{1, 3},
		DetectRange: [4]byte{255, 2, 0, 1},
		BaudRate:    5,
	}
	m.Handlers[0x0003] = func(v []byte) (uint16, []byte) {
		if len(v) < 2 || v[0] < 1 || v[0] > 10 || v[1] > 8 {
			return 1, nil
		}
		copy(m.Sensitivity[:], v)
		return 0, nil
	}
	m.Handlers[0x0013] = func([]byte) (uint16, []byte) {
		return 0, []byte{m.Sensitivity[0], m.Sensitivity[1], 0, 0}
	}
	m.Handlers[0x0002] = func(v []byte) (uint16, []byte) {
		if len(v) < 4 || v[0] < 10 || v[1] > 2 || v[2] > 120 {
			return 1, nil
		}
		copy(m.DetectRange[:], v)
		return 0, nil
	}
	m.Handlers[0x0012] = func([]byte) (uint16, []byte) {
		return 0, m.DetectRange[:]
	}
	m.Handlers[0x00a0] = func([]byte) (uint16, []byte) {
		return 0, []byte{0x51, 0x24, 0x02, 0x01, 0x16, 0x07, 0x24, 0x03}
	}
	m.Handlers[0x00a1] = func(v []byte) (uint16, []byte) {
		if len(v) < 2 {
			return 1, nil
		}
		idx := binary.LittleEndian.Uint16(v)
		if idx < 1 || idx > 8 {
			return 1, nil
		}
		m.BaudRate = idx
		return 0, nil
	}
	m.Handlers[0x00a2] = func([]byte) (uint16, []byte) {
		m.Sensitivity = [2]byte{1, 3}
		m.DetectRange = [4]byte{255, 2, 0, 1}
		m.BaudRate = 5
		return 0, nil
	}
	m.Handlers[0x00a3] = func([]byte) (uint16, []byte) {
		// the module restarts in normal mode.
		m.inConfig = false
		return 0, nil
	}
	return m
}

// EncodeLD2451Report encodes observations into report frame data.
func EncodeLD2451Report(alarm bool, obs ...Observation) []byte {
	if len(obs) == 0 {
		return nil
	}
	data := make([]byte, 2, 2+len(obs)*5)
	data[0] = byte(len(obs))
	if alarm {
		data[1] = 1
	}
	for _, o := range obs {
		var towards byte
		if o.Towards {
			towards = 1
		}
		data = append(data,
			clampByte(math.Round(o.Angle)+0x80),
			clampByte(math.Round(o.Distance)),
			towards,
			clampByte(math.Round(o.Speed)),
			clampByte(math.Round(o.SignalStrength)),
		)
	}
	return data
}

// ReportScene sends the observations of a scene.
func (m *LD2451) ReportScene(s *Scene) error {
	obs := s.Observe()
	var alarm bool
	for _, o := range obs {
		alarm = alarm || o.Towards
	}
	return m.Report(EncodeLD2451Report(alarm, obs...))
}

func clampByte(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
