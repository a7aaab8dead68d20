package ld2460

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/robotalks/radar.go/pkg/telemetry"
)

// Commands. Queries carry a single 0x01 byte.
const (
	CmdReport           uint16 = 0x04
	CmdEnableUpload     uint16 = 0x06
	CmdSetInstallParams uint16 = 0x07
	CmdGetInstallParams uint16 = 0x08
	CmdSetMode          uint16 = 0x09
	CmdGetMode          uint16 = 0x0a
	CmdGetVersion       uint16 = 0x0b
	CmdRestart          uint16 = 0x0d
	CmdSetBaudRate      uint16 = 0x0e
	CmdFactoryReset     uint16 = 0x10
	CmdSetDetectRange   uint16 = 0x11
	CmdGetDetectRange   uint16 = 0x12
	CmdSetSensitivity   uint16 = 0x13
	CmdGetSensitivity   uint16 = 0x14
)

var query = []byte{0x01}

// targetSize is the size of a target in a report.
const targetSize = 4

var (
	// ErrTruncatedReport indicates a report not made of whole targets.
	ErrTruncatedReport = errors.New("truncated report")
	// ErrShortReply indicates a reply without the expected value.
	ErrShortReply = errors.New("reply too short")
	// ErrRejected indicates the module answered a setting with failure.
	ErrRejected = errors.New("rejected by module")
)

// Decoder decodes upload frames:
//
//	cmd(1)=0x04 [x(2) y(2)] * n
//
// x and y are signed little-endian in 0.1 meters. Targets after
// MaxTargets are ignored.
type Decoder struct {
	Bounds telemetry.Bounds
}

// Decode implements telemetry.Decoder.
func (d *Decoder) Decode(data []byte, at time.Time) (*telemetry.Report, error) {
	if len(data) < 1 || uint16(data[0]) != CmdReport {
		return nil, fmt.Errorf("not an upload frame")
	}
	data = data[1:]
	if len(data)%targetSize != 0 {
		return nil, ErrTruncatedReport
	}
	count := min(len(data)/targetSize, MaxTargets)
	r := &telemetry.Report{At: at, Records: make([]telemetry.Record, count)}
	for i := range r.Records {
		p := data[i*targetSize:]
		rec := &r.Records[i]
		rec.X = float64(int16(binary.LittleEndian.Uint16(p))) / 10
		rec.Y = float64(int16(binary.LittleEndian.Uint16(p[2:]))) / 10
		rec.Cartesian = true
		rec.Distance = math.Hypot(rec.X, rec.Y)
		rec.Angle = math.Atan2(rec.X, rec.Y) * 180 / math.Pi
		rec.Unset = unsetAttrs
		rec.Invalid = d.Bounds.Check(rec)
	}
	return r, nil
}

var unsetAttrs = []telemetry.Attr{telemetry.AttrSpeed, telemetry.AttrSignalStrength, telemetry.AttrDirection}

// EncodeReport encodes target positions in meters into upload frame data.
func EncodeReport(xy ...[2]float64) []byte {
	data := make([]byte, 1, 1+len(xy)*targetSize)
	data[0] = byte(CmdReport)
	for _, p := range xy {
		data = binary.LittleEndian.AppendUint16(data, uint16(int16(math.Round(p[0]*10))))
		data = binary.LittleEndian.AppendUint16(data, uint16(int16(math.Round(p[1]*10))))
	}
	return data
}

func (p InstallParams) encode() []byte {
	data := binary.LittleEndian.AppendUint16(nil, uint16(math.Round(p.Height*100)))
	return binary.LittleEndian.AppendUint16(data, uint16(math.Round(p.Angle*100)))
}

func decodeInstallParams(v []byte) (InstallParams, error) {
	if len(v) < 4 {
		return InstallParams{}, ErrShortReply
	}
	return InstallParams{
		Height: float64(binary.LittleEndian.Uint16(v)) / 100,
		Angle:  float64(binary.LittleEndian.Uint16(v[2:])) / 100,
	}, nil
}

func (r DetectRange) encode() []byte {
	data := []byte{byte(math.Round(r.Distance * 10))}
	data = binary.LittleEndian.AppendUint16(data, uint16(int16(math.Round(r.StartAngle*10))))
	return binary.LittleEndian.AppendUint16(data, uint16(int16(math.Round(r.EndAngle*10))))
}

func decodeDetectRange(v []byte) (DetectRange, error) {
	if len(v) < 5 {
		return DetectRange{}, ErrShortReply
	}
	return DetectRange{
		Distance:   float64(v[0]) / 10,
		StartAngle: float64(int16(binary.LittleEndian.Uint16(v[1:]))) / 10,
		EndAngle:   float64(int16(binary.LittleEndian.Uint16(v[3:]))) / 10,
	}, nil
}

// decodeVersion formats year, month, major and minor after the leading byte.
func decodeVersion(v []byte) (string, error) {
	if len(v) < 5 {
		return "", ErrShortReply
	}
	return fmt.Sprintf("20%02d-%02d V%d.%d", v[1], v[2], v[3], v[4]), nil
}

// checkAck checks the result byte of a setting reply, 0 is failure.
func checkAck(code uint16, v []byte) error {
	if len(v) > 0 && v[0] == 0 {
		return fmt.Errorf("command 0x%02x: %w", code, ErrRejected)
	}
	return nil
}
