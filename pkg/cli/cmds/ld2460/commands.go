package ld2460

import (
	"context"
	"fmt"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/radar.go/pkg/cli/sh"
	"github.com/robotalks/radar.go/pkg/ld2460"
)

func component(fn func(c *ishell.Context, comp *ld2460.Component)) func(c *ishell.Context) {
	return sh.MustBeConnected(func(c *ishell.Context) {
		comp, ok := sh.DeviceFrom(c).(*ld2460.Component)
		if !ok {
			c.Err(fmt.Errorf("not an %s module", ld2460.Model))
			return
		}
		fn(c, comp)
	})
}

func parseFloats(names []string, args []string) ([]float64, error) {
	if len(args) < len(names) {
		return nil, fmt.Errorf("%v required", names)
	}
	vals := make([]float64, len(names))
	for i, name := range names {
		v, err := strconv.ParseFloat(args[i], 64)
		if err != nil {
			return nil, fmt.Errorf("Invalid %s: %v", name, err)
		}
		vals[i] = v
	}
	return vals, nil
}

var (
	// InstallCmd reads or sets the mounting geometry.
	InstallCmd = ishell.Cmd{
		Name: "install",
		Help: "[HEIGHT(m) ANGLE(°)]",
		Func: component(func(c *ishell.Context, comp *ld2460.Component) {
			if len(c.Args) == 0 {
				var p ld2460.InstallParams
				if sh.Do(c, func(ctx context.Context) (err error) {
					p, err = comp.GetInstallParams(ctx)
					return
				}) == nil {
					sh.Print(c, map[string]interface{}{"height": p.Height, "angle": p.Angle})
				}
				return
			}
			vals, err := parseFloats([]string{"HEIGHT", "ANGLE"}, c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			if sh.Do(c, func(ctx context.Context) error {
				return comp.SetInstallParams(ctx, ld2460.InstallParams{Height: vals[0], Angle: vals[1]})
			}) == nil {
				sh.Print(c, nil)
			}
		}),
	}

	// ModeCmd reads or sets the installation mode.
	ModeCmd = ishell.Cmd{
		Name: "mode",
		Help: "[side|top]",
		Func: component(func(c *ishell.Context, comp *ld2460.Component) {
			if len(c.Args) == 0 {
				var m ld2460.Mode
				if sh.Do(c, func(ctx context.Context) (err error) {
					m, err = comp.GetMode(ctx)
					return
				}) == nil {
					sh.Print(c, m.String())
				}
				return
			}
			m, err := ld2460.ParseMode(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			if sh.Do(c, func(ctx context.Context) error { return comp.SetMode(ctx, m) }) == nil {
				sh.Print(c, nil)
			}
		}),
	}

	// AreaCmd reads or sets the detection area.
	AreaCmd = ishell.Cmd{
		Name: "area",
		Help: "[DISTANCE(m) START(°) END(°)]",
		Func: component(func(c *ishell.Context, comp *ld2460.Component) {
			if len(c.Args) == 0 {
				var r ld2460.DetectRange
				if sh.Do(c, func(ctx context.Context) (err error) {
					r, err = comp.GetDetectRange(ctx)
					return
				}) == nil {
					sh.Print(c, map[string]interface{}{
						"detect_distance":    r.Distance,
						"detect_start_angle": r.StartAngle,
						"detect_end_angle":   r.EndAngle,
					})
				}
				return
			}
			vals, err := parseFloats([]string{"DISTANCE", "START", "END"}, c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			r := ld2460.DetectRange{Distance: vals[0], StartAngle: vals[1], EndAngle: vals[2]}
			if sh.Do(c, func(ctx context.Context) error { return comp.SetDetectRange(ctx, r) }) == nil {
				sh.Print(c, nil)
			}
		}),
	}

	// SensitivityCmd reads or sets the sensitivity level.
	SensitivityCmd = ishell.Cmd{
		Name:    "level",
		Aliases: []string{"lvl"},
		Help:    "[high|medium|low]",
		Func: component(func(c *ishell.Context, comp *ld2460.Component) {
			if len(c.Args) == 0 {
				var s ld2460.Sensitivity
				if sh.Do(c, func(ctx context.Context) (err error) {
					s, err = comp.GetSensitivity(ctx)
					return
				}) == nil {
					sh.Print(c, s.String())
				}
				return
			}
			s, err := ld2460.ParseSensitivity(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			if sh.Do(c, func(ctx context.Context) error { return comp.SetSensitivity(ctx, s) }) == nil {
				sh.Print(c, nil)
			}
		}),
	}

	// UploadCmd turns target uploading on or off.
	UploadCmd = ishell.Cmd{
		Name: "upload",
		Help: "on|off",
		Func: component(func(c *ishell.Context, comp *ld2460.Component) {
			if len(c.Args) < 1 || (c.Args[0] != "on" && c.Args[0] != "off") {
				c.Err(fmt.Errorf("on or off required"))
				return
			}
			enable := c.Args[0] == "on"
			if sh.Do(c, func(ctx context.Context) error { return comp.EnableUpload(ctx, enable) }) == nil {
				sh.Print(c, nil)
			}
		}),
	}
)

func init() {
	sh.AddCmds(&InstallCmd, &ModeCmd, &AreaCmd, &SensitivityCmd, &UploadCmd)
}
