package ld2451

import (
	"context"
	"fmt"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/radar.go/pkg/cli/sh"
	"github.com/robotalks/radar.go/pkg/ld2451"
)

func component(fn func(c *ishell.Context, comp *ld2451.Component)) func(c *ishell.Context) {
	return sh.MustBeConnected(func(c *ishell.Context) {
		comp, ok := sh.DeviceFrom(c).(*ld2451.Component)
		if !ok {
			c.Err(fmt.Errorf("not an %s module", ld2451.Model))
			return
		}
		fn(c, comp)
	})
}

func parseUint8(name, s string) (uint8, error) {
	val, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("Invalid %s: %v", name, err)
	}
	return uint8(val), nil
}

var (
	// SensitivityCmd reads or sets sensitivity.
	SensitivityCmd = ishell.Cmd{
		Name:    "sensitivity",
		Aliases: []string{"sens"},
		Help:    "[TRIGS(1-10) THRESHOLD(0-8)]",
		Func: component(func(c *ishell.Context, comp *ld2451.Component) {
			if len(c.Args) == 0 {
				var s ld2451.Sensitivity
				if sh.Do(c, func(ctx context.Context) (err error) {
					s, err = comp.GetSensitivity(ctx)
					return
				}) == nil {
					sh.Print(c, map[string]interface{}{
						"valid_trigs":      s.ValidTrigs,
						"signal_threshold": s.SignalThreshold,
					})
				}
				return
			}
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("TRIGS THRESHOLD required"))
				return
			}
			var s ld2451.Sensitivity
			var err error
			if s.ValidTrigs, err = parseUint8("TRIGS", c.Args[0]); err != nil {
				c.Err(err)
				return
			}
			if s.SignalThreshold, err = parseUint8("THRESHOLD", c.Args[1]); err != nil {
				c.Err(err)
				return
			}
			if sh.Do(c, func(ctx context.Context) error {
				return comp.SetSensitivity(ctx, s)
			}) == nil {
				sh.Print(c, nil)
			}
		}),
	}

	// RangeCmd reads or sets target detection parameters.
	RangeCmd = ishell.Cmd{
		Name: "range",
		Help: "[MAX(m) DIR(away|towards|both) MINSPEED(km/h) DELAY(s)]",
		Func: component(func(c *ishell.Context, comp *ld2451.Component) {
			if len(c.Args) == 0 {
				var r ld2451.DetectRange
				if sh.Do(c, func(ctx context.Context) (err error) {
					r, err = comp.GetDetectRange(ctx)
					return
				}) == nil {
					sh.Print(c, map[string]interface{}{
						"max_distance":    r.MaxDistance,
						"direction":       r.Direction.String(),
						"min_speed":       r.MinSpeed,
						"no_target_delay": r.NoTargetDelay,
					})
				}
				return
			}
			if len(c.Args) < 4 {
				c.Err(fmt.Errorf("MAX DIR MINSPEED DELAY required"))
				return
			}
			var r ld2451.DetectRange
			var err error
			if r.MaxDistance, err = parseUint8("MAX", c.Args[0]); err != nil {
				c.Err(err)
				return
			}
			if r.Direction, err = ld2451.ParseDirection(c.Args[1]); err != nil {
				c.Err(err)
				return
			}
			if r.MinSpeed, err = parseUint8("MINSPEED", c.Args[2]); err != nil {
				c.Err(err)
				return
			}
			if r.NoTargetDelay, err = parseUint8("DELAY", c.Args[3]); err != nil {
				c.Err(err)
				return
			}
			if sh.Do(c, func(ctx context.Context) error {
				return comp.SetDetectRange(ctx, r)
			}) == nil {
				sh.Print(c, nil)
			}
		}),
	}
)

func init() {
	sh.AddCmds(&SensitivityCmd, &RangeCmd)
}
