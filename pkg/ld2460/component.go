// Package ld2460 implements the HLK-LD2460 human positioning radar.
//
// Unlike other modules, LD2460 has no configuration mode. Commands are
// exchanged while targets are uploaded.
package ld2460

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/radar.go/pkg/comm"
	"github.com/robotalks/radar.go/pkg/device"
	"github.com/robotalks/radar.go/pkg/telemetry"
)

// Model is the model name.
const Model = "ld2460"

// ErrNoConfigMode is returned when switching configuration mode.
var ErrNoConfigMode = errors.New("ld2460 has no configuration mode")

// Component is an LD2460 module on a byte stream.
type Component struct {
	*device.Engine

	lock   sync.RWMutex
	config Config
}

// New creates a Component. The config must be validated.
func New(name string, rw io.ReadWriter, conf Config) *Component {
	return &Component{
		config: conf,
		Engine: device.NewEngine(rw, device.Options{
			Name:       name,
			Decoder:    &Decoder{Bounds: conf.Bounds()},
			ReportKind: comm.KindReport,
			Slots:      MaxTargets,
			Window:     conf.Timeout,
			Layout:     comm.LayoutTotal,
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

// EnableConfig implements device.Device, always ErrNoConfigMode.
func (c *Component) EnableConfig(context.Context) error {
	return ErrNoConfigMode
}

// DisableConfig implements device.Device. It's a no-op.
func (c *Component) DisableConfig(context.Context) error {
	return nil
}

// InConfig is always false.
func (c *Component) InConfig() bool {
	return false
}

func (c *Component) set(ctx context.Context, code uint16, value []byte) error {
	reply, err := c.Exchange(ctx, code, value)
	if err != nil {
		return err
	}
	return checkAck(code, reply.Value)
}

func (c *Component) get(ctx context.Context, code uint16) ([]byte, error) {
	reply, err := c.Exchange(ctx, code, query)
	if err != nil {
		return nil, err
	}
	return reply.Value, nil
}

// Setup applies the configured parameters and reads the firmware version.
func (c *Component) Setup(ctx context.Context) error {
	conf := c.Config()
	err := c.WithSession(ctx, func(ctx context.Context) error {
		if err := c.set(ctx, CmdSetInstallParams, conf.InstallParams().encode()); err != nil {
			return fmt.Errorf("set install params: %w", err)
		}
		if err := c.set(ctx, CmdSetMode, []byte{byte(conf.Mode)}); err != nil {
			return fmt.Errorf("set mode: %w", err)
		}
		if err := c.set(ctx, CmdSetDetectRange, conf.DetectRange().encode()); err != nil {
			return fmt.Errorf("set detect range: %w", err)
		}
		if err := c.set(ctx, CmdSetSensitivity, []byte{byte(conf.Sensitivity)}); err != nil {
			return fmt.Errorf("set sensitivity: %w", err)
		}
		if _, err := c.Version(ctx); err != nil {
			return fmt.Errorf("read version: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	glog.Infof("%s: setup done, firmware %s", c.Name, c.Firmware())
	return nil
}

// EnableUpload turns target uploading on or off.
func (c *Component) EnableUpload(ctx context.Context, enable bool) error {
	var v byte
	if enable {
		v = 1
	}
	_, err := c.Exchange(ctx, CmdEnableUpload, []byte{v})
	return err
}

// Restart reboots the module. No reply is expected.
func (c *Component) Restart(ctx context.Context) error {
	err := c.Send(ctx, CmdRestart, query)
	if err == nil {
		glog.Infof("%s: restarted", c.Name)
	}
	return err
}

// FactoryReset restores factory settings and restarts the module.
func (c *Component) FactoryReset(ctx context.Context) error {
	return c.WithSession(ctx, func(ctx context.Context) error {
		if err := c.set(ctx, CmdFactoryReset, query); err != nil {
			return err
		}
		return c.Restart(ctx)
	})
}

// SetInstallParams validates and sets the mounting geometry.
func (c *Component) SetInstallParams(ctx context.Context, p InstallParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := c.set(ctx, CmdSetInstallParams, p.encode()); err != nil {
		return err
	}
	c.updateConfig(func(conf *Config) { conf.Height, conf.Angle = p.Height, p.Angle })
	return nil
}

// GetInstallParams reads the mounting geometry from the module.
func (c *Component) GetInstallParams(ctx context.Context) (InstallParams, error) {
	v, err := c.get(ctx, CmdGetInstallParams)
	if err != nil {
		return InstallParams{}, err
	}
	return decodeInstallParams(v)
}

// SetMode sets the installation mode.
func (c *Component) SetMode(ctx context.Context, m Mode) error {
	if _, ok := modeNames[m]; !ok {
		return fmt.Errorf("invalid mode %d", m)
	}
	if err := c.set(ctx, CmdSetMode, []byte{byte(m)}); err != nil {
		return err
	}
	c.updateConfig(func(conf *Config) { conf.Mode = m })
	return nil
}

// GetMode reads the installation mode from the module.
func (c *Component) GetMode(ctx context.Context) (Mode, error) {
	v, err := c.get(ctx, CmdGetMode)
	if err != nil {
		return 0, err
	}
	if len(v) < 1 {
		return 0, ErrShortReply
	}
	m := Mode(v[0])
	if _, ok := modeNames[m]; !ok {
		return 0, fmt.Errorf("invalid mode %d", v[0])
	}
	return m, nil
}

// SetDetectRange validates and sets the detection area.
func (c *Component) SetDetectRange(ctx context.Context, r DetectRange) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if err := c.set(ctx, CmdSetDetectRange, r.encode()); err != nil {
		return err
	}
	c.updateConfig(func(conf *Config) {
		conf.DetectDistance, conf.DetectStartAngle, conf.DetectEndAngle = r.Distance, r.StartAngle, r.EndAngle
	})
	return nil
}

// GetDetectRange reads the detection area from the module.
func (c *Component) GetDetectRange(ctx context.Context) (DetectRange, error) {
	v, err := c.get(ctx, CmdGetDetectRange)
	if err != nil {
		return DetectRange{}, err
	}
	return decodeDetectRange(v)
}

// SetSensitivity sets the sensitivity level.
func (c *Component) SetSensitivity(ctx context.Context, s Sensitivity) error {
	if _, ok := sensitivityNames[s]; !ok {
		return fmt.Errorf("invalid sensitivity %d", s)
	}
	if err := c.set(ctx, CmdSetSensitivity, []byte{byte(s)}); err != nil {
		return err
	}
	c.updateConfig(func(conf *Config) { conf.Sensitivity = s })
	return nil
}

// GetSensitivity reads the sensitivity level from the module.
func (c *Component) GetSensitivity(ctx context.Context) (Sensitivity, error) {
	v, err := c.get(ctx, CmdGetSensitivity)
	if err != nil {
		return 0, err
	}
	if len(v) < 1 {
		return 0, ErrShortReply
	}
	s := Sensitivity(v[0])
	if _, ok := sensitivityNames[s]; !ok {
		return 0, fmt.Errorf("invalid sensitivity %d", v[0])
	}
	return s, nil
}

// SetBaudRate sets the baud rate, effective after restart.
func (c *Component) SetBaudRate(ctx context.Context, b BaudRate) error {
	if b.Rate() == 0 {
		return fmt.Errorf("invalid baud rate index %d", b)
	}
	if err := c.set(ctx, CmdSetBaudRate, []byte{byte(b)}); err != nil {
		return err
	}
	c.updateConfig(func(conf *Config) { conf.BaudRate = b })
	glog.Infof("%s: baud rate set to %d, restart to take effect", c.Name, b.Rate())
	return nil
}

// BaudRates implements device.BaudRateSetter.
func (c *Component) BaudRates() []string {
	rates := make([]string, len(baudRates))
	for i, r := range baudRates {
		rates[i] = strconv.Itoa(r)
	}
	return rates
}

// BaudRate implements device.BaudRateSetter.
func (c *Component) BaudRate() string {
	return c.Config().BaudRate.String()
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
	v, err := c.get(ctx, CmdGetVersion)
	if err != nil {
		return "", err
	}
	ver, err := decodeVersion(v)
	if err == nil {
		c.SetFirmware(ver)
	}
	return ver, err
}

// X gets the fresh lateral position of a target slot in meters.
func (c *Component) X(slot int) (float64, bool) {
	return c.Read(slot, telemetry.AttrX)
}

// Y gets the fresh forward position of a target slot in meters.
func (c *Component) Y(slot int) (float64, bool) {
	return c.Read(slot, telemetry.AttrY)
}

// Run implements Runnable: it pumps the link and sets up the module,
// retrying until setup succeeds.
func (c *Component) Run(ctx context.Context) error {
	return c.RunSetup(ctx, c.Setup)
}
