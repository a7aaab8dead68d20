package ld2451

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/robotalks/radar.go/pkg/telemetry"
)

// MaxTargets is the max number of targets reported by the module.
const MaxTargets = 20

// MaxSpeed is the max valid speed in km/h.
const MaxSpeed = 120

// DetectDirection selects which moving directions are detected.
type DetectDirection uint8

// Detection directions, encoded as the module expects.
const (
	DetectAway    DetectDirection = 0x00
	DetectTowards DetectDirection = 0x01
	DetectBoth    DetectDirection = 0x02
)

var detectDirectionNames = map[DetectDirection]string{
	DetectAway:    "away",
	DetectTowards: "towards",
	DetectBoth:    "both",
}

// String implements fmt.Stringer.
func (d DetectDirection) String() string {
	if name, ok := detectDirectionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("direction(%d)", uint8(d))
}

// ParseDirection parses away, towards or both.
func ParseDirection(s string) (DetectDirection, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d, name := range detectDirectionNames {
		if name == s {
			return d, nil
		}
	}
	return DetectBoth, fmt.Errorf("invalid direction %q, must be away, towards or both", s)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *DetectDirection) UnmarshalYAML(node *yaml.Node) (err error) {
	*d, err = ParseDirection(node.Value)
	return
}

// MarshalYAML implements yaml.Marshaler.
func (d DetectDirection) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// BaudRate is the index of a baud rate understood by the module.
type BaudRate uint16

// Baud rates.
const (
	BaudRate9600 BaudRate = iota + 1
	BaudRate19200
	BaudRate38400
	BaudRate57600
	BaudRate115200
	BaudRate230400
	BaudRate256000
	BaudRate460800
)

var baudRates = []int{9600, 19200, 38400, 57600, 115200, 230400, 256000, 460800}

// BaudRates lists supported rates in bps.
func BaudRates() []int {
	return append([]int(nil), baudRates...)
}

// Rate returns the rate in bps, 0 if invalid.
func (b BaudRate) Rate() int {
	if b >= BaudRate9600 && b <= BaudRate460800 {
		return baudRates[b-1]
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
				return BaudRate(i + 1), nil
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

// RangeError reports a parameter out of its valid range.
type RangeError struct {
	Param string
	Value int
	Min   int
	Max   int
}

// Error implements error.
func (e *RangeError) Error() string {
	return fmt.Sprintf("%s must be in range [%d, %d], got %d", e.Param, e.Min, e.Max, e.Value)
}

func checkRange(param string, val, min, max int) error {
	if val < min || val > max {
		return &RangeError{Param: param, Value: val, Min: min, Max: max}
	}
	return nil
}

// Sensitivity is the parameter of the sensitivity command.
type Sensitivity struct {
	ValidTrigs      uint8
	SignalThreshold uint8
}

// Validate checks ranges.
func (s Sensitivity) Validate() error {
	if err := checkRange("valid_trigs", int(s.ValidTrigs), 1, 10); err != nil {
		return err
	}
	return checkRange("signal_threshold", int(s.SignalThreshold), 0, 8)
}

// DetectRange is the parameter of the target detection command.
type DetectRange struct {
	MaxDistance   uint8
	Direction     DetectDirection
	MinSpeed      uint8
	NoTargetDelay uint8
}

// Validate checks ranges.
func (r DetectRange) Validate() error {
	if err := checkRange("max_distance", int(r.MaxDistance), 10, 255); err != nil {
		return err
	}
	if _, ok := detectDirectionNames[r.Direction]; !ok {
		return fmt.Errorf("invalid direction %d", r.Direction)
	}
	return checkRange("min_speed", int(r.MinSpeed), 0, MaxSpeed)
}

// Config is the configuration of an LD2451 component.
type Config struct {
	ValidTrigs      uint8           `yaml:"valid_trigs"`
	SignalThreshold uint8           `yaml:"signal_threshold"`
	MaxDistance     uint8           `yaml:"max_distance"`
	MinDistance     uint8           `yaml:"min_distance"`
	Direction       DetectDirection `yaml:"direction"`
	MinSpeed        uint8           `yaml:"min_speed"`
	NoTargetDelay   uint8           `yaml:"no_target_delay"`
	BaudRate        BaudRate        `yaml:"baud_rate"`
	// Timeout is the staleness window of readings.
	Timeout time.Duration `yaml:"timeout"`
	// MaxTargets is the number of target slots.
	MaxTargets int `yaml:"max_targets"`
}

// DefaultConfig returns the factory configuration.
func DefaultConfig() Config {
	return Config{
		ValidTrigs:      1,
		SignalThreshold: 3,
		MaxDistance:     255,
		Direction:       DetectBoth,
		NoTargetDelay:   1,
		BaudRate:        BaudRate115200,
		Timeout:         telemetry.DefaultWindow,
		MaxTargets:      MaxTargets,
	}
}

// Sensitivity extracts sensitivity parameters.
func (c *Config) Sensitivity() Sensitivity {
	return Sensitivity{ValidTrigs: c.ValidTrigs, SignalThreshold: c.SignalThreshold}
}

// DetectRange extracts target detection parameters.
func (c *Config) DetectRange() DetectRange {
	return DetectRange{
		MaxDistance:   c.MaxDistance,
		Direction:     c.Direction,
		MinSpeed:      c.MinSpeed,
		NoTargetDelay: c.NoTargetDelay,
	}
}

// Bounds returns telemetry validation bounds.
func (c *Config) Bounds() telemetry.Bounds {
	return telemetry.Bounds{
		MinDistance: float64(c.MinDistance),
		MaxDistance: float64(c.MaxDistance),
		MaxSpeed:    MaxSpeed,
		MaxAngle:    90,
	}
}

// Validate checks all parameters. It's called once when config is loaded.
func (c *Config) Validate() error {
	if err := c.Sensitivity().Validate(); err != nil {
		return err
	}
	if err := c.DetectRange().Validate(); err != nil {
		return err
	}
	if c.MinDistance > c.MaxDistance {
		return &RangeError{Param: "min_distance", Value: int(c.MinDistance), Min: 0, Max: int(c.MaxDistance)}
	}
	if c.BaudRate.Rate() == 0 {
		return fmt.Errorf("invalid baud rate index %d", c.BaudRate)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return checkRange("max_targets", c.MaxTargets, 1, MaxTargets)
}
