package sim

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/robotalks/radar.go/pkg/comm"
)

// LD2460 simulates an LD2460 module. It has no configuration mode and
// acknowledges settings with 1.
type LD2460 struct {
	*Module

	InstallParams [4]byte
	Mode          byte
	DetectRange   [5]byte
	Sensitivity   byte
	BaudRate      byte
	Upload        bool
	Restarts      int
}

var ld2460Factory = LD2460{
	// 2.6m, 30°.
	InstallParams: [4]byte{0x04, 0x01, 0xb8, 0x0b},
	Mode:          1,
	// 6m, -45°, 45°.
	DetectRange: [5]byte{60, 0x3e, 0xfe, 0xc2, 0x01},
	Sensitivity: 1,
	BaudRate:    4,
	Upload:      true,
}

func (m *LD2460) factory() {
	m.InstallParams = ld2460Factory.InstallParams
	m.Mode = ld2460Factory.Mode
	m.DetectRange = ld2460Factory.DetectRange
	m.Sensitivity = ld2460Factory.Sensitivity
	m.BaudRate = ld2460Factory.BaudRate
	m.Upload = ld2460Factory.Upload
}

var (
	ack  = []byte{0x01}
	nack = []byte{0x00}
)

// NewLD2460 creates a simulated LD2460 with factory settings.
func NewLD2460(name string, rw io.ReadWriter) *LD2460 {
	m := &LD2460{Module: NewModule(name, rw, comm.KindReport)}
	m.Layout = comm.LayoutTotal
	m.factory()
	m.Handlers[0x06] = func(v []byte) (uint16, []byte) {
		if len(v) < 1 {
			return 0, nack
		}
		m.Upload = v[0] != 0
		return 0, v[:1]
	}
	m.Handlers[0x07] = func(v []byte) (uint16, []byte) {
		if len(v) < 4 {
			return 0, nack
		}
		copy(m.InstallParams[:], v)
		return 0, ack
	}
	m.Handlers[0x08] = func([]byte) (uint16, []byte) {
		return 0, append([]byte(nil), m.InstallParams[:]...)
	}
	m.Handlers[0x09] = func(v []byte) (uint16, []byte) {
		if len(v) < 1 || v[0] < 1 || v[0] > 2 {
			return 0, nack
		}
		m.Mode = v[0]
		return 0, ack
	}
	m.Handlers[0x0a] = func([]byte) (uint16, []byte) {
		return 0, []byte{m.Mode}
	}
	m.Handlers[0x0b] = func([]byte) (uint16, []byte) {
		return 0, []byte{0x01, 24, 7, 1, 2}
	}
	m.Handlers[0x0d] = func([]byte) (uint16, []byte) {
		m.Restarts++
		return 0, nil
	}
	m.Handlers[0x0e] = func(v []byte) (uint16, []byte) {
		if len(v) < 1 || v[0] > 7 {
			return 0, nack
		}
		m.BaudRate = v[0]
		return 0, ack
	}
	m.Handlers[0x10] = func([]byte) (uint16, []byte) {
		m.factory()
		return 0, ack
	}
	m.Handlers[0x11] = func(v []byte) (uint16, []byte) {
		if len(v) < 5 || int16(binary.LittleEndian.Uint16(v[1:])) > int16(binary.LittleEndian.Uint16(v[3:])) {
			return 0, nack
		}
		copy(m.DetectRange[:], v)
		return 0, ack
	}
	m.Handlers[0x12] = func([]byte) (uint16, []byte) {
		return 0, append([]byte(nil), m.DetectRange[:]...)
	}
	m.Handlers[0x13] = func(v []byte) (uint16, []byte) {
		if len(v) < 1 || v[0] < 1 || v[0] > 3 {
			return 0, nack
		}
		m.Sensitivity = v[0]
		return 0, ack
	}
	m.Handlers[0x14] = func([]byte) (uint16, []byte) {
		return 0, []byte{m.Sensitivity}
	}
	return m
}

// Uploading indicates targets are uploaded.
func (m *LD2460) Uploading() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.Upload
}

// ReportXY uploads target positions in meters if uploading is enabled.
func (m *LD2460) ReportXY(xy ...[2]float64) error {
	if !m.Uploading() {
		return nil
	}
	data := make([]byte, 1, 1+len(xy)*4)
	data[0] = 0x04
	for _, p := range xy {
		data = binary.LittleEndian.AppendUint16(data, uint16(int16(math.Round(p[0]*10))))
		data = binary.LittleEndian.AppendUint16(data, uint16(int16(math.Round(p[1]*10))))
	}
	return m.Report(data)
}

// ReportScene uploads the positions of objects within the detection distance.
func (m *LD2460) ReportScene(s *Scene) error {
	m.lock.Lock()
	maxDist := float64(m.DetectRange[0]) / 10
	m.lock.Unlock()
	var xy [][2]float64
	for _, o := range s.Observe() {
		if o.Distance > maxDist || len(xy) >= 5 {
			continue
		}
		rad := o.Angle * math.Pi / 180
		xy = append(xy, [2]float64{o.Distance * math.Sin(rad), o.Distance * math.Cos(rad)})
	}
	return m.ReportXY(xy...)
}
