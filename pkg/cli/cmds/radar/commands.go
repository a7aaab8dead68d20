package radar

import (
	"context"
	"fmt"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/radar.go/pkg/cli/sh"
	"github.com/robotalks/radar.go/pkg/device"
	"github.com/robotalks/radar.go/pkg/telemetry"
)

// Target is the printable form of a fresh slot.
type Target struct {
	Slot           int      `json:"slot"`
	Angle          *float64 `json:"angle,omitempty"`
	Distance       *float64 `json:"distance,omitempty"`
	Speed          *float64 `json:"speed,omitempty"`
	SignalStrength *float64 `json:"signal_strength,omitempty"`
	Direction      string   `json:"direction,omitempty"`
	X              *float64 `json:"x,omitempty"`
	Y              *float64 `json:"y,omitempty"`
}

func optional(r telemetry.Reading) *float64 {
	if r.Known {
		return &r.Value
	}
	return nil
}

func (t *Target) String() string {
	s := fmt.Sprintf("#%d", t.Slot+1)
	for _, f := range []struct {
		name string
		val  *float64
	}{
		{"angle", t.Angle},
		{"distance", t.Distance},
		{"speed", t.Speed},
		{"snr", t.SignalStrength},
		{"x", t.X},
		{"y", t.Y},
	} {
		if f.val != nil {
			s += fmt.Sprintf(" %s=%g", f.name, *f.val)
		}
	}
	if t.Direction != "" {
		s += " " + t.Direction
	}
	return s
}

func run(fn func(ctx context.Context, dev device.Device) error) func(c *ishell.Context) {
	return sh.MustBeConnected(func(c *ishell.Context) {
		dev := sh.DeviceFrom(c)
		if sh.Do(c, func(ctx context.Context) error { return fn(ctx, dev) }) == nil {
			sh.Print(c, nil)
		}
	})
}

var (
	// ConfigEnableCmd enters configuration mode.
	ConfigEnableCmd = ishell.Cmd{
		Name: "config.enable",
		Help: "",
		Func: run(func(ctx context.Context, dev device.Device) error {
			return dev.EnableConfig(ctx)
		}),
	}

	// ConfigDisableCmd leaves configuration mode.
	ConfigDisableCmd = ishell.Cmd{
		Name: "config.disable",
		Help: "",
		Func: run(func(ctx context.Context, dev device.Device) error {
			return dev.DisableConfig(ctx)
		}),
	}

	// RestartCmd restarts the module.
	RestartCmd = ishell.Cmd{
		Name: "restart",
		Help: "",
		Func: run(func(ctx context.Context, dev device.Device) error {
			return dev.Restart(ctx)
		}),
	}

	// ResetCmd restores factory settings.
	ResetCmd = ishell.Cmd{
		Name: "reset",
		Help: "",
		Func: run(func(ctx context.Context, dev device.Device) error {
			return dev.FactoryReset(ctx)
		}),
	}

	// SetupCmd writes the default parameters.
	SetupCmd = ishell.Cmd{
		Name: "setup",
		Help: "",
		Func: run(func(ctx context.Context, dev device.Device) error {
			return dev.Setup(ctx)
		}),
	}

	// VersionCmd reads the firmware version.
	VersionCmd = ishell.Cmd{
		Name:    "version",
		Aliases: []string{"ver"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			var ver string
			err := sh.Do(c, func(ctx context.Context) (err error) {
				ver, err = sh.DeviceFrom(c).Version(ctx)
				return
			})
			if err == nil {
				sh.Print(c, ver)
			}
		}),
	}

	// BaudCmd sets the baud rate, effective after restart.
	BaudCmd = ishell.Cmd{
		Name: "baud",
		Help: "RATE",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			setter, ok := sh.DeviceFrom(c).(device.BaudRateSetter)
			if !ok {
				c.Err(fmt.Errorf("baud rate not supported"))
				return
			}
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("RATE required, one of %v", setter.BaudRates()))
				return
			}
			if sh.Do(c, func(ctx context.Context) error {
				return setter.SetBaudRateString(ctx, c.Args[0])
			}) == nil {
				sh.Print(c, nil)
			}
		}),
	}

	// ParamCmd lists the tunable parameters or sets one of them.
	ParamCmd = ishell.Cmd{
		Name:    "param",
		Aliases: []string{"p"},
		Help:    "[KEY VALUE]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			setter, ok := sh.DeviceFrom(c).(device.ParamSetter)
			if !ok {
				c.Err(fmt.Errorf("parameters not supported"))
				return
			}
			if len(c.Args) == 0 {
				sh.Print(c, setter.ParamValues())
				return
			}
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("VALUE required"))
				return
			}
			if sh.Do(c, func(ctx context.Context) error {
				return setter.SetParam(ctx, c.Args[0], c.Args[1])
			}) == nil {
				sh.Print(c, nil)
			}
		}),
	}

	// TargetsCmd prints fresh targets.
	TargetsCmd = ishell.Cmd{
		Name:    "targets",
		Aliases: []string{"t"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			s := sh.DeviceFrom(c).Snapshot()
			targets := []*Target{}
			for _, r := range s.FreshTargets() {
				t := &Target{
					Slot:           r.Slot,
					Angle:          optional(r.Attr(telemetry.AttrAngle)),
					Distance:       optional(r.Attr(telemetry.AttrDistance)),
					Speed:          optional(r.Attr(telemetry.AttrSpeed)),
					SignalStrength: optional(r.Attr(telemetry.AttrSignalStrength)),
					X:              optional(r.Attr(telemetry.AttrX)),
					Y:              optional(r.Attr(telemetry.AttrY)),
				}
				if r.Attr(telemetry.AttrDirection).Known {
					t.Direction = r.Direction.String()
				}
				targets = append(targets, t)
			}
			if sh.ShellFrom(c).OutputJSON {
				sh.Print(c, targets)
				return
			}
			if len(targets) == 0 {
				c.Println("No targets")
				return
			}
			for _, t := range targets {
				c.Println(t.String())
			}
		}),
	}
)

func init() {
	sh.AddCmds(
		&ConfigEnableCmd,
		&ConfigDisableCmd,
		&RestartCmd,
		&ResetCmd,
		&SetupCmd,
		&VersionCmd,
		&BaudCmd,
		&ParamCmd,
		&TargetsCmd,
	)
}
