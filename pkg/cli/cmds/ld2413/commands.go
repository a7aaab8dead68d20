package ld2413

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/radar.go/pkg/cli/sh"
	"github.com/robotalks/radar.go/pkg/ld2413"
)

func component(fn func(c *ishell.Context, comp *ld2413.Component)) func(c *ishell.Context) {
	return sh.MustBeConnected(func(c *ishell.Context) {
		comp, ok := sh.DeviceFrom(c).(*ld2413.Component)
		if !ok {
			c.Err(fmt.Errorf("not an %s module", ld2413.Model))
			return
		}
		fn(c, comp)
	})
}

var (
	// DistanceCmd sets the min and max distance.
	DistanceCmd = ishell.Cmd{
		Name: "distance",
		Help: "MIN(mm) MAX(mm)",
		Func: component(func(c *ishell.Context, comp *ld2413.Component) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("MIN MAX required"))
				return
			}
			var vals [2]uint16
			for i, arg := range c.Args[:2] {
				val, err := strconv.ParseUint(arg, 10, 16)
				if err != nil {
					c.Err(fmt.Errorf("Invalid distance %q: %v", arg, err))
					return
				}
				vals[i] = uint16(val)
			}
			if vals[0] >= vals[1] {
				c.Err(fmt.Errorf("MIN must be less than MAX"))
				return
			}
			if sh.Do(c, func(ctx context.Context) error {
				if err := comp.SetMinDistance(ctx, vals[0]); err != nil {
					return err
				}
				return comp.SetMaxDistance(ctx, vals[1])
			}) == nil {
				sh.Print(c, nil)
			}
		}),
	}

	// IntervalCmd reads or sets the report interval.
	IntervalCmd = ishell.Cmd{
		Name: "interval",
		Help: "[DURATION]",
		Func: component(func(c *ishell.Context, comp *ld2413.Component) {
			if len(c.Args) == 0 {
				var d time.Duration
				if sh.Do(c, func(ctx context.Context) (err error) {
					d, err = comp.GetReportInterval(ctx)
					return
				}) == nil {
					sh.Print(c, d.String())
				}
				return
			}
			d, err := time.ParseDuration(c.Args[0])
			if err != nil {
				c.Err(fmt.Errorf("Invalid DURATION: %v", err))
				return
			}
			if sh.Do(c, func(ctx context.Context) error {
				return comp.SetReportInterval(ctx, d)
			}) == nil {
				sh.Print(c, nil)
			}
		}),
	}

	// ThresholdCmd recalibrates the threshold.
	ThresholdCmd = ishell.Cmd{
		Name: "threshold",
		Help: "",
		Func: component(func(c *ishell.Context, comp *ld2413.Component) {
			if sh.Do(c, comp.UpdateThreshold) == nil {
				sh.Print(c, nil)
			}
		}),
	}
)

func init() {
	sh.AddCmds(&DistanceCmd, &IntervalCmd, &ThresholdCmd)
}
