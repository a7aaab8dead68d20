package device

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	fx "github.com/robotalks/radar.go/pkg/framework"
	"github.com/robotalks/radar.go/pkg/telemetry"
)

// Device is the facade-facing view of a radar component.
type Device interface {
	fx.Runnable

	DeviceName() string
	Model() string
	Available() bool
	InConfig() bool
	Firmware() string
	Snapshot() *telemetry.Snapshot

	Setup(ctx context.Context) error
	EnableConfig(ctx context.Context) error
	DisableConfig(ctx context.Context) error
	Restart(ctx context.Context) error
	FactoryReset(ctx context.Context) error
	Version(ctx context.Context) (string, error)
}

// BaudRateSetter is implemented by devices with a configurable baud rate.
type BaudRateSetter interface {
	BaudRates() []string
	// BaudRate is the configured rate, one of BaudRates.
	BaudRate() string
	SetBaudRateString(ctx context.Context, rate string) error
}

// Param describes a tunable parameter. It's a choice if Options is set,
// otherwise a number in [Min, Max].
type Param struct {
	Key     string
	Options []string
	Min     float64
	Max     float64
	Step    float64
	Unit    string
}

// ParamSetter is implemented by devices with tunable parameters.
type ParamSetter interface {
	Params() []Param
	// ParamValues gets current values by Param.Key.
	ParamValues() map[string]string
	// SetParam validates and writes a parameter to the module.
	SetParam(ctx context.Context, key, value string) error
}

// NumberParam creates a numeric Param.
func NumberParam(key string, min, max, step float64, unit string) Param {
	return Param{Key: key, Min: min, Max: max, Step: step, Unit: unit}
}

// ChoiceParam creates a Param of options.
func ChoiceParam(key string, options ...string) Param {
	return Param{Key: key, Options: options}
}

// FindParam looks up a Param by key.
func FindParam(params []Param, key string) (Param, bool) {
	for _, p := range params {
		if p.Key == key {
			return p, true
		}
	}
	return Param{}, false
}

// ParseNumber parses the value of a numeric Param and checks its range.
func (p *Param) ParseNumber(value string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", p.Key, value)
	}
	if v < p.Min || v > p.Max {
		return 0, fmt.Errorf("%s must be in range [%v, %v], got %v", p.Key, p.Min, p.Max, v)
	}
	return v, nil
}
