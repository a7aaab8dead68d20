package ld2413

import (
	"fmt"
	"time"

	"github.com/robotalks/radar.go/pkg/telemetry"
)

// Distance limits in mm.
const (
	MinDistanceLimit = 150
	MaxDistanceLimit = 10500
)

// Report interval limits.
const (
	MinReportInterval = 50 * time.Millisecond
	MaxReportInterval = 65535 * time.Millisecond
)

// Config is the configuration of an LD2413 component.
type Config struct {
	// MinDistance in mm, 0 keeps the module setting.
	MinDistance uint16 `yaml:"min_distance"`
	// MaxDistance in mm.
	MaxDistance    uint16        `yaml:"max_distance"`
	ReportInterval time.Duration `yaml:"report_interval"`
	// Timeout is the staleness window, twice the report interval if zero.
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxDistance:    MaxDistanceLimit,
		ReportInterval: 20 * time.Second,
	}
}

// Window returns the staleness window.
func (c *Config) Window() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 2 * c.ReportInterval
}

// Bounds returns telemetry validation bounds in mm.
func (c *Config) Bounds() telemetry.Bounds {
	return telemetry.Bounds{
		MinDistance: float64(c.MinDistance),
		MaxDistance: float64(c.MaxDistance),
	}
}

// Validate checks all parameters.
func (c *Config) Validate() error {
	if err := ValidateDistance(c.MaxDistance); err != nil {
		return fmt.Errorf("max_distance: %w", err)
	}
	if c.MinDistance != 0 {
		if err := ValidateDistance(c.MinDistance); err != nil {
			return fmt.Errorf("min_distance: %w", err)
		}
		if c.MinDistance >= c.MaxDistance {
			return fmt.Errorf("min_distance %d must be less than max_distance %d", c.MinDistance, c.MaxDistance)
		}
	}
	if err := ValidateReportInterval(c.ReportInterval); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}

// ValidateDistance checks a distance limit in mm.
func ValidateDistance(mm uint16) error {
	if mm < MinDistanceLimit || mm > MaxDistanceLimit {
		return fmt.Errorf("distance %d mm out of range [%d, %d]", mm, MinDistanceLimit, MaxDistanceLimit)
	}
	return nil
}

// ValidateReportInterval checks the report interval.
func ValidateReportInterval(d time.Duration) error {
	if d < MinReportInterval || d > MaxReportInterval {
		return fmt.Errorf("report_interval %v out of range [%v, %v]", d, MinReportInterval, MaxReportInterval)
	}
	return nil
}
