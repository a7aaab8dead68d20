package ld2451

import (
	"context"
	"fmt"
	"strconv"

	"github.com/robotalks/radar.go/pkg/device"
)

var params = []device.Param{
	device.NumberParam("valid_trigs", 1, 10, 1, ""),
	device.NumberParam("signal_threshold", 0, 8, 1, ""),
	device.NumberParam("max_distance", 10, 255, 1, "m"),
	device.ChoiceParam("direction", DetectAway.String(), DetectTowards.String(), DetectBoth.String()),
	device.NumberParam("min_speed", 0, MaxSpeed, 1, "km/h"),
	device.NumberParam("no_target_delay", 0, 255, 1, "s"),
}

// Params implements device.ParamSetter.
func (c *Component) Params() []device.Param {
	return params
}

// ParamValues implements device.ParamSetter.
func (c *Component) ParamValues() map[string]string {
	conf := c.Config()
	return map[string]string{
		"valid_trigs":      strconv.Itoa(int(conf.ValidTrigs)),
		"signal_threshold": strconv.Itoa(int(conf.SignalThreshold)),
		"max_distance":     strconv.Itoa(int(conf.MaxDistance)),
		"direction":        conf.Direction.String(),
		"min_speed":        strconv.Itoa(int(conf.MinSpeed)),
		"no_target_delay":  strconv.Itoa(int(conf.NoTargetDelay)),
	}
}

// SetParam implements device.ParamSetter. A parameter is written together
// with the current values of others sharing the same command.
func (c *Component) SetParam(ctx context.Context, key, value string) error {
	p, ok := device.FindParam(params, key)
	if !ok {
		return fmt.Errorf("unknown parameter %q", key)
	}
	conf := c.Config()
	s, r := conf.Sensitivity(), conf.DetectRange()
	if key == "direction" {
		d, err := ParseDirection(value)
		if err != nil {
			return err
		}
		r.Direction = d
		return c.SetDetectRange(ctx, r)
	}
	v, err := p.ParseNumber(value)
	if err != nil {
		return err
	}
	if v != float64(uint8(v)) {
		return fmt.Errorf("%s must be an integer, got %v", key, v)
	}
	switch key {
	case "valid_trigs":
		s.ValidTrigs = uint8(v)
		return c.SetSensitivity(ctx, s)
	case "signal_threshold":
		s.SignalThreshold = uint8(v)
		return c.SetSensitivity(ctx, s)
	case "max_distance":
		if uint8(v) < conf.MinDistance {
			return &RangeError{Param: key, Value: int(v), Min: int(conf.MinDistance), Max: 255}
		}
		r.MaxDistance = uint8(v)
	case "min_speed":
		r.MinSpeed = uint8(v)
	case "no_target_delay":
		r.NoTargetDelay = uint8(v)
	}
	return c.SetDetectRange(ctx, r)
}
