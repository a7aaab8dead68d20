package ld2460

import (
	"context"
	"fmt"
	"strconv"

	"github.com/robotalks/radar.go/pkg/device"
)

var params = []device.Param{
	device.NumberParam("height", 0, MaxHeight, 0.01, "m"),
	device.NumberParam("angle", 0, MaxInstallAngle, 0.01, "°"),
	device.ChoiceParam("mode", ModeSide.String(), ModeTop.String()),
	device.NumberParam("detect_distance", 0, MaxDetectDistance, 0.1, "m"),
	device.NumberParam("detect_start_angle", -MaxDetectAngle, MaxDetectAngle, 0.1, "°"),
	device.NumberParam("detect_end_angle", -MaxDetectAngle, MaxDetectAngle, 0.1, "°"),
	device.ChoiceParam("sensitivity", SensitivityHigh.String(), SensitivityMedium.String(), SensitivityLow.String()),
}

// Params implements device.ParamSetter.
func (c *Component) Params() []device.Param {
	return params
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParamValues implements device.ParamSetter.
func (c *Component) ParamValues() map[string]string {
	conf := c.Config()
	return map[string]string{
		"height":             formatFloat(conf.Height),
		"angle":              formatFloat(conf.Angle),
		"mode":               conf.Mode.String(),
		"detect_distance":    formatFloat(conf.DetectDistance),
		"detect_start_angle": formatFloat(conf.DetectStartAngle),
		"detect_end_angle":   formatFloat(conf.DetectEndAngle),
		"sensitivity":        conf.Sensitivity.String(),
	}
}

// SetParam implements device.ParamSetter. Parameters sharing a command
// are written together with the current values of the others.
func (c *Component) SetParam(ctx context.Context, key, value string) error {
	p, ok := device.FindParam(params, key)
	if !ok {
		return fmt.Errorf("unknown parameter %q", key)
	}
	switch key {
	case "mode":
		m, err := ParseMode(value)
		if err != nil {
			return err
		}
		return c.SetMode(ctx, m)
	case "sensitivity":
		s, err := ParseSensitivity(value)
		if err != nil {
			return err
		}
		return c.SetSensitivity(ctx, s)
	}
	v, err := p.ParseNumber(value)
	if err != nil {
		return err
	}
	conf := c.Config()
	ip, dr := conf.InstallParams(), conf.DetectRange()
	switch key {
	case "height":
		ip.Height = v
		return c.SetInstallParams(ctx, ip)
	case "angle":
		ip.Angle = v
		return c.SetInstallParams(ctx, ip)
	case "detect_distance":
		dr.Distance = v
	case "detect_start_angle":
		dr.StartAngle = v
	case "detect_end_angle":
		dr.EndAngle = v
	}
	return c.SetDetectRange(ctx, dr)
}
