package ld2460

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/robotalks/radar.go/pkg/telemetry"
)

// MaxTargets is the max number of targets reported by the module.
const MaxTargets = 5

// Mode is the installation mode.
type Mode uint8

// Installation modes, encoded as the module expects.
const (
	ModeSide Mode = 0x01
	ModeTop  Mode = 0x02
)

var modeNames = map[Mode]string{
	ModeSide: "side",
	ModeTop:  "top",
}

// String implements fmt.Stringer.
func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ParseMode parses side or top.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return ModeSide, fmt.Errorf("invalid mode %q, must be side or top", s)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *Mode) UnmarshalYAML(node *yaml.Node) (err error) {
	*m, err = ParseMode(node.Value)
	return
}

// MarshalYAML implements yaml.Marshaler.
func (m Mode) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

// Sensitivity is the detection sensitivity level.
type Sensitivity uint8

// Sensitivity levels.
const (
	SensitivityHigh   Sensitivity = 0x01
	SensitivityMedium Sensitivity = 0x02
	SensitivityLow    Sensitivity = 0x03
)

var sensitivityNames = map[Sensitivity]string{
	SensitivityHigh:   "high",
	SensitivityMedium: "medium",
	SensitivityLow:    "low",
}

// String implements fmt.Stringer.
func (s Sensitivity) String() string {
	if name, ok := sensitivityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("sensitivity(%d)", uint8(s))
}

// ParseSensitivity parses high, medium or low.
func ParseSensitivity(s string) (Sensitivity, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for v, name := range sensitivityNames {
		if name == s {
			return v, nil
		}
	}
	return SensitivityHigh, fmt.Errorf("invalid sensitivity %q, must be high, medium or low", s)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Sensitivity) UnmarshalYAML(node *yaml.Node) (err error) {
	*s, err = ParseSensitivity(node.Value)
	return
}

// MarshalYAML implements yaml.Marshaler.
func (s Sensitivity) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// BaudRate is the index of a baud rate understood by the module.
type BaudRate uint8

// Baud rates.
const (
	BaudRate9600 BaudRate = iota
	BaudRate19200
	BaudRate38400
	BaudRate57600
	BaudRate115200
	BaudRate230400
	BaudRate256000
	BaudRate460800
)

var baudRates = []int{9600, 19200, 38400, 57600, 115200, 230400, 256000, 460800}

// Rate returns the rate in bps, 0 if invalid.
func (b BaudRate) Rate() int {
	if int(b) < len(baudRates) {
		return baudRates[b]
	}
	return 0
}

// String implements fmt.Stringer.
func (b BaudRate) String() string {
	return strconv.Itoa(b.Rate())
}

// ParseBaudRate parses a rate in bps like 115200.
func ParseBaudRate(s string) (BaudRate, error) {
	rate, err := strconv.Atoi(strings.TrimSpace(s))
	if err == nil {
		for i, r := range baudRates {
			if r == rate {
				return BaudRate(i), nil
			}
		}
	}
	return 0, fmt.Errorf("invalid baud rate %q", s)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *BaudRate) UnmarshalYAML(node *yaml.Node) (err error) {
	*b, err = ParseBaudRate(node.Value)
	return
}

// MarshalYAML implements yaml.Marshaler.
func (b BaudRate) MarshalYAML() (interface{}, error) {
	return b.Rate(), nil
}

// Parameter ranges.
const (
	MaxHeight         = 10.0
	MaxInstallAngle   = 90.0
	MaxDetectDistance = 25.5
	MaxDetectAngle    = 90.0
)

// RangeError reports a parameter out of its valid range.
type RangeError struct {
	Param string
	Value float64
	Min   float64
	Max   float64
}

// Error implements error.
func (e *RangeError) Error() string {
	return fmt.Sprintf("%s must be in range [%v, %v], got %v", e.Param, e.Min, e.Max, e.Value)
}

func checkRange(param string, val, min, max float64) error {
	if math.IsNaN(val) || val < min || val > max {
		return &RangeError{Param: param, Value: val, Min: min, Max: max}
	}
	return nil
}

// InstallParams is the mounting geometry.
type InstallParams struct {
	// Height in meters.
	Height float64
	// Angle in degrees.
	Angle float64
}

// Validate checks ranges.
func (p InstallParams) Validate() error {
	if err := checkRange("height", p.Height, 0, MaxHeight); err != nil {
		return err
	}
	return checkRange("angle", p.Angle, 0, MaxInstallAngle)
}

// DetectRange is the detection area.
type DetectRange struct {
	// Distance in meters.
	Distance float64
	// StartAngle and EndAngle are in degrees.
	StartAngle float64
	EndAngle   float64
}

// Validate checks ranges.
func (r DetectRange) Validate() error {
	if err := checkRange("detect_distance", r.Distance, 0, MaxDetectDistance); err != nil {
		return err
	}
	if err := checkRange("detect_start_angle", r.StartAngle, -MaxDetectAngle, MaxDetectAngle); err != nil {
		return err
	}
	return checkRange("detect_end_angle", r.EndAngle, r.StartAngle, MaxDetectAngle)
}

// Config is the configuration of an LD2460 component.
type Config struct {
	Height           float64     `yaml:"height"`
	Angle            float64     `yaml:"angle"`
	Mode             Mode        `yaml:"mode"`
	DetectDistance   float64     `yaml:"detect_distance"`
	DetectStartAngle float64     `yaml:"detect_start_angle"`
	DetectEndAngle   float64     `yaml:"detect_end_angle"`
	Sensitivity      Sensitivity `yaml:"sensitivity"`
	BaudRate         BaudRate    `yaml:"baud_rate"`
	// Timeout is the staleness window of readings.
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Height:           2.6,
		Angle:            30,
		Mode:             ModeSide,
		DetectDistance:   6,
		DetectStartAngle: -45,
		DetectEndAngle:   45,
		Sensitivity:      SensitivityHigh,
		BaudRate:         BaudRate115200,
		Timeout:          telemetry.DefaultWindow,
	}
}

// InstallParams extracts the mounting geometry.
func (c *Config) InstallParams() InstallParams {
	return InstallParams{Height: c.Height, Angle: c.Angle}
}

// DetectRange extracts the detection area.
func (c *Config) DetectRange() DetectRange {
	return DetectRange{Distance: c.DetectDistance, StartAngle: c.DetectStartAngle, EndAngle: c.DetectEndAngle}
}

// Bounds returns telemetry validation bounds.
func (c *Config) Bounds() telemetry.Bounds {
	return telemetry.Bounds{
		MaxDistance: MaxDetectDistance,
		MaxAngle:    180,
	}
}

// Validate checks all parameters.
func (c *Config) Validate() error {
	if err := c.InstallParams().Validate(); err != nil {
		return err
	}
	if err := c.DetectRange().Validate(); err != nil {
		return err
	}
	if _, ok := modeNames[c.Mode]; !ok {
		return fmt.Errorf("invalid mode %d", c.Mode)
	}
	if _, ok := sensitivityNames[c.Sensitivity]; !ok {
		return fmt.Errorf("invalid sensitivity %d", c.Sensitivity)
	}
	if c.BaudRate.Rate() == 0 {
		return fmt.Errorf("invalid baud rate index %d", c.BaudRate)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}
