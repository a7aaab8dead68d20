// Package ld2413 implements the HLK-LD2413 liquid level radar.
package ld2413

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/radar.go/pkg/comm"
	"github.com/robotalks/radar.go/pkg/device"
	"github.com/robotalks/radar.go/pkg/telemetry"
)

// Model is the model name.
const Model = "ld2413"

// Command words.
const (
	CmdGetVersion        uint16 = 0x0000
	CmdGetReportInterval uint16 = 0x0070
	CmdSetReportInterval uint16 = 0x0071
	CmdUpdateThreshold   uint16 = 0x0072
	CmdSetMinDistance    uint16 = 0x0074
	CmdSetMaxDistance    uint16 = 0x0075
)

// ErrBadReport indicates a report which is not a 4-byte distance.
var ErrBadReport = errors.New("bad distance report")

// unsetAttrs are not measured by the module.
var unsetAttrs = []telemetry.Attr{
	telemetry.AttrAngle,
	telemetry.AttrSpeed,
	telemetry.AttrSignalStrength,
	telemetry.AttrDirection,
}

// Decoder decodes the distance report, a little-endian float32 in mm.
// Reports use command frame markers.
type Decoder struct {
	Bounds telemetry.Bounds
}

// Decode implements telemetry.Decoder.
func (d *Decoder) Decode(data []byte, at time.Time) (*telemetry.Report, error) {
	if len(data) != 4 {
		return nil, ErrBadReport
	}
	bits := binary.LittleEndian.Uint32(data)
	// a late ACK has zero status bytes on top which decode as a denormal.
	if bits != 0 && bits&0x7f800000 == 0 {
		return nil, ErrBadReport
	}
	dist := float64(math.Float32frombits(bits))
	if math.IsNaN(dist) || math.IsInf(dist, 0) {
		return nil, ErrBadReport
	}
	rec := telemetry.Record{Distance: dist, Unset: unsetAttrs}
	rec.Invalid = d.Bounds.Check(&rec)
	return &telemetry.Report{At: at, Records: []telemetry.Record{rec}}, nil
}

// Component is an LD2413 module on a byte stream.
type Component struct {
	*device.Engine
	Config Config
}

// New creates a Component. The config must be validated.
func New(name string, rw io.ReadWriter, conf Config) *Component {
	return &Component{
		Config: conf,
		Engine: device.NewEngine(rw, device.Options{
			Name:       name,
			Decoder:    &Decoder{Bounds: conf.Bounds()},
			ReportKind: comm.KindCommand,
			Slots:      1,
			Window:     conf.Window(),
		}),
	}
}

// DeviceName returns the name of the component.
func (c *Component) DeviceName() string {
	return c.Name
}

// Model returns the model name.
func (c *Component) Model() string {
	return Model
}

// Setup applies configured parameters and reads the firmware version.
func (c *Component) Setup(ctx context.Context) error {
	err := c.WithConfig(ctx, func(ctx context.Context) error {
		if c.Config.MinDistance != 0 {
			if err := c.setU16(ctx, CmdSetMinDistance, c.Config.MinDistance); err != nil {
				return fmt.Errorf("set min distance: %w", err)
			}
		}
		if err := c.setU16(ctx, CmdSetMaxDistance, c.Config.MaxDistance); err != nil {
			return fmt.Errorf("set max distance: %w", err)
		}
		if err := c.setU16(ctx, CmdSetReportInterval, uint16(c.Config.ReportInterval/time.Millisecond)); err != nil {
			return fmt.Errorf("set report interval: %w", err)
		}
		ver, err := c.readVersion(ctx)
		if err != nil {
			return fmt.Errorf("read version: %w", err)
		}
		c.SetFirmware(ver)
		return nil
	})
	if err == nil {
		glog.Infof("%s: setup done, firmware %s", c.Name, c.Firmware())
	}
	return err
}

func (c *Component) setU16(ctx context.Context, code, val uint16) error {
	_, err := c.Seq.Do(ctx, code, binary.LittleEndian.AppendUint16(nil, val))
	return err
}

// SetMinDistance sets the min distance in mm.
func (c *Component) SetMinDistance(ctx context.Context, mm uint16) error {
	if err := ValidateDistance(mm); err != nil {
		return err
	}
	_, err := c.Do(ctx, CmdSetMinDistance, binary.LittleEndian.AppendUint16(nil, mm))
	return err
}

// SetMaxDistance sets the max distance in mm.
func (c *Component) SetMaxDistance(ctx context.Context, mm uint16) error {
	if err := ValidateDistance(mm); err != nil {
		return err
	}
	_, err := c.Do(ctx, CmdSetMaxDistance, binary.LittleEndian.AppendUint16(nil, mm))
	return err
}

// SetReportInterval sets how often the module reports.
func (c *Component) SetReportInterval(ctx context.Context, d time.Duration) error {
	if err := ValidateReportInterval(d); err != nil {
		return err
	}
	_, err := c.Do(ctx, CmdSetReportInterval, binary.LittleEndian.AppendUint16(nil, uint16(d/time.Millisecond)))
	return err
}

// GetReportInterval reads the report interval.
func (c *Component) GetReportInterval(ctx context.Context) (time.Duration, error) {
	reply, err := c.Do(ctx, CmdGetReportInterval, nil)
	if err != nil {
		return 0, err
	}
	var ms uint32
	switch {
	case len(reply.Value) >= 4:
		ms = binary.LittleEndian.Uint32(reply.Value)
	case len(reply.Value) >= 2:
		ms = uint32(binary.LittleEndian.Uint16(reply.Value))
	default:
		return 0, fmt.Errorf("report interval reply too short: % x", reply.Value)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// UpdateThreshold recalibrates the threshold against the current environment.
func (c *Component) UpdateThreshold(ctx context.Context) error {
	_, err := c.Do(ctx, CmdUpdateThreshold, nil)
	return err
}

// Version reads the firmware version.
func (c *Component) Version(ctx context.Context) (string, error) {
	var ver string
	err := c.WithConfig(ctx, func(ctx context.Context) (err error) {
		ver, err = c.readVersion(ctx)
		return
	})
	if err == nil {
		c.SetFirmware(ver)
	}
	return ver, err
}

// readVersion decodes the version reply, a text without ACK status.
func (c *Component) readVersion(ctx context.Context) (string, error) {
	reply, err := c.Seq.Do(ctx, CmdGetVersion, nil)
	var cmdErr *comm.CommandError
	if err != nil && !errors.As(err, &cmdErr) {
		return "", err
	}
	raw := binary.LittleEndian.AppendUint16(nil, reply.Status)
	raw = append(raw, reply.Value...)
	return strings.TrimSpace(string(bytes.Trim(raw, "\x00"))), nil
}

// Restart is not supported by the module, it only re-applies the configuration.
func (c *Component) Restart(ctx context.Context) error {
	return c.Setup(ctx)
}

// FactoryReset restores the default distance limits and report interval.
func (c *Component) FactoryReset(ctx context.Context) error {
	defaults := DefaultConfig()
	return c.WithConfig(ctx, func(ctx context.Context) error {
		if err := c.setU16(ctx, CmdSetMinDistance, MinDistanceLimit); err != nil {
			return err
		}
		if err := c.setU16(ctx, CmdSetMaxDistance, defaults.MaxDistance); err != nil {
			return err
		}
		return c.setU16(ctx, CmdSetReportInterval, uint16(defaults.ReportInterval/time.Millisecond))
	})
}

// Distance gets the fresh distance in mm.
func (c *Component) Distance() (float64, bool) {
	return c.Read(0, telemetry.AttrDistance)
}

// Run implements Runnable: it pumps the link and sets up the module,
// retrying until setup succeeds.
func (c *Component) Run(ctx context.Context) error {
	return c.RunSetup(ctx, c.Setup)
}
