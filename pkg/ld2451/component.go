// Package ld2451 implements the HLK-LD2451 vehicle detection radar.
package ld2451

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/radar.go/pkg/comm"
	"github.com/robotalks/radar.go/pkg/device"
	"github.com/robotalks/radar.go/pkg/telemetry"
)

// Model is the model name.
const Model = "ld2451"

// Component is an LD2451 module on a byte stream.
type Component struct {
	*device.Engine

	lock   sync.RWMutex
	config Config
}

// New creates a Component. The config must be validated.
func New(name string, rw io.ReadWriter, conf Config) *Component {
	c := &Component{config: conf}
	c.Engine = device.NewEngine(rw, device.Options{
		Name:       name,
		Decoder:    telemetry.DecodeFunc(c.decode),
		ReportKind: comm.KindReport,
		Slots:      conf.MaxTargets,
		Window:     conf.Timeout,
	})
	return c
}

// decode validates reports against the current distance range.
func (c *Component) decode(data []byte, at time.Time) (*telemetry.Report, error) {
	conf := c.Config()
	d := Decoder{Bounds: conf.Bounds()}
	return d.Decode(data, at)
}

// DeviceName returns the name of the component.
func (c *Component) DeviceName() string {
	return c.Name
}

// Model returns the model name.
func (c *Component) Model() string {
	return Model
}

// Config gets the current configuration.
func (c *Component) Config() Config {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.config
}

func (c *Component) updateConfig(fn func(*Config)) {
	c.lock.Lock()
	fn(&c.config)
	c.lock.Unlock()
}

// Setup applies the configured parameters and reads the firmware version.
func (c *Component) Setup(ctx context.Context) error {
	conf := c.Config()
	err := c.WithConfig(ctx, func(ctx context.Context) error {
		if err := c.setSensitivity(ctx, conf.Sensitivity()); err != nil {
			return fmt.Errorf("set sensitivity: %w", err)
		}
		if err := c.setDetectRange(ctx, conf.DetectRange()); err != nil {
			return fmt.Errorf("set detect range: %w", err)
		}
		ver, err := c.readVersion(ctx)
		if err != nil {
			return fmt.Errorf("read version: %w", err)
		}
		c.SetFirmware(ver)
		return nil
	})
	if err != nil {
		return err
	}
	glog.Infof("%s: setup done, firmware %s", c.Name, c.Firmware())
	return nil
}

// Reset restores factory settings. It takes effect after restart.
func (c *Component) Reset(ctx context.Context) error {
	_, err := c.Do(ctx, CmdFactoryReset, nil)
	return err
}

// FactoryReset is the same as Reset.
func (c *Component) FactoryReset(ctx context.Context) error {
	return c.Reset(ctx)
}

// Restart reboots the module.
// The module restarts in normal mode, so configuration mode is considered left.
func (c *Component) Restart(ctx context.Context) error {
	err := c.WithConfig(ctx, func(ctx context.Context) error {
		_, err := c.Seq.Do(ctx, CmdRestart, nil)
		if err == nil {
			c.Seq.Reset()
		}
		return err
	})
	if err == nil {
		glog.Infof("%s: restarted", c.Name)
	}
	return err
}

// SetSensitivity validates and sets sensitivity.
func (c *Component) SetSensitivity(ctx context.Context, s Sensitivity) error {
	if err := s.Validate(); err != nil {
		return err
	}
	err := c.WithConfig(ctx, func(ctx context.Context) error {
		return c.setSensitivity(ctx, s)
	})
	if err == nil {
		c.updateConfig(func(conf *Config) { conf.ValidTrigs, conf.SignalThreshold = s.ValidTrigs, s.SignalThreshold })
	}
	return err
}

func (c *Component) setSensitivity(ctx context.Context, s Sensitivity) error {
	_, err := c.Seq.Do(ctx, CmdSetSensitivity, s.encode())
	return err
}

// GetSensitivity reads sensitivity from the module.
func (c *Component) GetSensitivity(ctx context.Context) (Sensitivity, error) {
	reply, err := c.Do(ctx, CmdGetSensitivity, nil)
	if err != nil {
		return Sensitivity{}, err
	}
	return decodeSensitivity(reply.Value)
}

// SetDetectRange validates and sets target detection parameters.
func (c *Component) SetDetectRange(ctx context.Context, r DetectRange) error {
	if err := r.Validate(); err != nil {
		return err
	}
	err := c.WithConfig(ctx, func(ctx context.Context) error {
		return c.setDetectRange(ctx, r)
	})
	if err == nil {
		c.updateConfig(func(conf *Config) {
			conf.MaxDistance, conf.Direction = r.MaxDistance, r.Direction
			conf.MinSpeed, conf.NoTargetDelay = r.MinSpeed, r.NoTargetDelay
		})
	}
	return err
}

func (c *Component) setDetectRange(ctx context.Context, r DetectRange) error {
	_, err := c.Seq.Do(ctx, CmdSetDetectRange, r.encode())
	return err
}

// GetDetectRange reads target detection parameters from the module.
func (c *Component) GetDetectRange(ctx context.Context) (DetectRange, error) {
	reply, err := c.Do(ctx, CmdGetDetectRange, nil)
	if err != nil {
		return DetectRange{}, err
	}
	return decodeDetectRange(reply.Value)
}

// SetBaudRate sets the baud rate, effective after restart.
func (c *Component) SetBaudRate(ctx context.Context, b BaudRate) error {
	if b.Rate() == 0 {
		return fmt.Errorf("invalid baud rate index %d", b)
	}
	_, err := c.Do(ctx, CmdSetBaudRate, b.encode())
	if err == nil {
		c.updateConfig(func(conf *Config) { conf.BaudRate = b })
		glog.Infof("%s: baud rate set to %d, restart to take effect", c.Name, b.Rate())
	}
	return err
}

// BaudRate implements device.BaudRateSetter.
func (c *Component) BaudRate() string {
	return c.Config().BaudRate.String()
}

// BaudRates implements device.BaudRateSetter.
func (c *Component) BaudRates() []string {
	rates := make([]string, len(baudRates))
	for i, r := range baudRates {
		rates[i] = strconv.Itoa(r)
	}
	return rates
}

// SetBaudRateString implements device.BaudRateSetter.
func (c *Component) SetBaudRateString(ctx context.Context, rate string) error {
	b, err := ParseBaudRate(rate)
	if err != nil {
		return err
	}
	return c.SetBaudRate(ctx, b)
}

// Version reads the firmware version from the module.
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

func (c *Component) readVersion(ctx context.Context) (string, error) {
	reply, err := c.Seq.Do(ctx, CmdGetVersion, nil)
	if err != nil {
		return "", err
	}
	return decodeVersion(reply.Value)
}

// Angle gets the fresh angle of a target slot in degrees.
func (c *Component) Angle(slot int) (float64, bool) {
	return c.Read(slot, telemetry.AttrAngle)
}

// Distance gets the fresh distance of a target slot in meters.
func (c *Component) Distance(slot int) (float64, bool) {
	return c.Read(slot, telemetry.AttrDistance)
}

// Speed gets the fresh speed of a target slot in km/h.
func (c *Component) Speed(slot int) (float64, bool) {
	return c.Read(slot, telemetry.AttrSpeed)
}

// SignalStrength gets the fresh signal strength of a target slot.
func (c *Component) SignalStrength(slot int) (float64, bool) {
	return c.Read(slot, telemetry.AttrSignalStrength)
}

// Direction gets the fresh direction of a target slot.
func (c *Component) Direction(slot int) telemetry.Direction {
	return c.Tracker.Direction(slot, c.Time())
}

// HasTowardsTarget indicates any fresh target is approaching.
func (c *Component) HasTowardsTarget() (bool, bool) {
	return c.Tracker.HasTowardsTarget(c.Time())
}

// Run implements Runnable: it pumps the link and sets up the module,
// retrying until setup succeeds.
func (c *Component) Run(ctx context.Context) error {
	return c.RunSetup(ctx, c.Setup)
}
