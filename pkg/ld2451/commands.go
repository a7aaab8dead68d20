package ld2451

import (
	"encoding/binary"
	"fmt"
)

// Command words.
const (
	CmdSetDetectRange uint16 = 0x0002
	CmdSetSensitivity uint16 = 0x0003
	CmdGetDetectRange uint16 = 0x0012
	CmdGetSensitivity uint16 = 0x0013
	CmdGetVersion     uint16 = 0x00a0
	CmdSetBaudRate    uint16 = 0x00a1
	CmdFactoryReset   uint16 = 0x00a2
	CmdRestart        uint16 = 0x00a3
)

// FirmwareType is reported by the version command.
const FirmwareType uint16 = 0x2451

func (s Sensitivity) encode() []byte {
	return []byte{s.ValidTrigs, s.SignalThreshold, 0, 0}
}

func decodeSensitivity(v []byte) (s Sensitivity, err error) {
	if len(v) < 2 {
		return s, fmt.Errorf("sensitivity reply too short: % x", v)
	}
	return Sensitivity{ValidTrigs: v[0], SignalThreshold: v[1]}, nil
}

func (r DetectRange) encode() []byte {
	return []byte{r.MaxDistance, byte(r.Direction), r.MinSpeed, r.NoTargetDelay}
}

func decodeDetectRange(v []byte) (r DetectRange, err error) {
	if len(v) < 4 {
		return r, fmt.Errorf("detect range reply too short: % x", v)
	}
	return DetectRange{
		MaxDistance:   v[0],
		Direction:     DetectDirection(v[1]),
		MinSpeed:      v[2],
		NoTargetDelay: v[3],
	}, nil
}

func (b BaudRate) encode() []byte {
	return binary.LittleEndian.AppendUint16(nil, uint16(b))
}

// decodeVersion decodes firmware type(2) major(2) minor(4).
func decodeVersion(v []byte) (string, error) {
	if len(v) < 8 {
		return "", fmt.Errorf("version reply too short: % x", v)
	}
	if fwType := binary.LittleEndian.Uint16(v); fwType != FirmwareType {
		return "", fmt.Errorf("unexpected firmware type %04x", fwType)
	}
	return fmt.Sprintf("V%d.%02d.%02X%02X%02X%02X", v[3], v[2], v[7], v[6], v[5], v[4]), nil
}
