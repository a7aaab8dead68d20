// Package env assembles radar devices and facades from flags,
// environment variables and a YAML file.
package env

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/robotalks/radar.go/pkg/comm/transport"
	"github.com/robotalks/radar.go/pkg/ld2413"
	"github.com/robotalks/radar.go/pkg/ld2451"
	"github.com/robotalks/radar.go/pkg/ld2460"
)

// OpenFunc opens a byte stream by URL.
type OpenFunc func(url string) (io.ReadWriteCloser, error)

// DeviceConfig configures a radar module.
type DeviceConfig struct {
	Name  string `yaml:"name"`
	Model string `yaml:"model"`
	// Port is a transport URL, e.g. serial:///dev/ttyUSB0?baud=115200.
	// A serial port without baud uses the baud rate of the model config.
	Port   string        `yaml:"port"`
	LD2451 ld2451.Config `yaml:"ld2451"`
	LD2413 ld2413.Config `yaml:"ld2413"`
	LD2460 ld2460.Config `yaml:"ld2460"`
}

// NewDeviceConfig creates a DeviceConfig with defaults of all models.
func NewDeviceConfig(name, model, port string) DeviceConfig {
	return DeviceConfig{
		Name:   name,
		Model:  model,
		Port:   port,
		LD2451: ld2451.DefaultConfig(),
		LD2413: ld2413.DefaultConfig(),
		LD2460: ld2460.DefaultConfig(),
	}
}

// PortURL gets Port with the configured baud rate added.
func (c *DeviceConfig) PortURL() string {
	baud := transport.DefaultBaudRate
	switch c.Model {
	case ld2451.Model:
		baud = c.LD2451.BaudRate.Rate()
	case ld2460.Model:
		baud = c.LD2460.BaudRate.Rate()
	}
	return transport.WithBaud(c.Port, baud)
}

// UnmarshalYAML implements yaml.Unmarshaler, starting from defaults.
func (c *DeviceConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain DeviceConfig
	conf := plain(NewDeviceConfig("", ld2451.Model, ""))
	if err := value.Decode(&conf); err != nil {
		return err
	}
	*c = DeviceConfig(conf)
	return nil
}

// Validate checks the device configuration.
func (c *DeviceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("device name is required")
	}
	if c.Port == "" {
		return fmt.Errorf("%s: port is required", c.Name)
	}
	var err error
	switch c.Model {
	case ld2451.Model:
		err = c.LD2451.Validate()
	case ld2413.Model:
		err = c.LD2413.Validate()
	case ld2460.Model:
		err = c.LD2460.Validate()
	default:
		err = fmt.Errorf("unknown model %q", c.Model)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", c.Name, err)
	}
	return nil
}

// Config provides options to set up devices and facades.
type Config struct {
	// ID identifies this host in Home Assistant, the machine ID by default.
	ID string `yaml:"id"`
	// MQTTBrokerURL specifies the MQTT broker, facades are disabled if empty.
	// e.g. mqtt://host:port/topic-prefix/
	MQTTBrokerURL   string        `yaml:"mqtt"`
	DiscoveryPrefix string        `yaml:"discovery_prefix"`
	Interval        time.Duration `yaml:"interval"`
	// Reports enables the protobuf report stream.
	Reports bool `yaml:"reports"`
	// RecordPath is the SQLite file for detection history.
	RecordPath string `yaml:"record"`
	// Retention is how long detections are kept, forever if zero.
	Retention time.Duration  `yaml:"retention"`
	Devices   []DeviceConfig `yaml:"devices"`

	// ConfigFile is the YAML file to load.
	ConfigFile string `yaml:"-"`
	// Port adds a single device when no devices are configured.
	Port  string `yaml:"-"`
	Model string `yaml:"-"`
	// Open overrides transport.Open.
	Open OpenFunc `yaml:"-"`
}

var defaultConfig = Config{
	MQTTBrokerURL:   "mqtt://localhost:1883/radar/",
	DiscoveryPrefix: "homeassistant",
	Interval:        time.Second,
	Retention:       7 * 24 * time.Hour,
	Model:           ld2451.Model,
}

func init() {
	if val := os.Getenv("RADAR_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if val := os.Getenv("RADAR_PORT"); val != "" {
		defaultConfig.Port = val
	}
	if val := os.Getenv("RADAR_ID"); val != "" {
		defaultConfig.ID = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.ConfigFile, "config", defaultConfig.ConfigFile, "YAML config file")
	flag.StringVar(&defaultConfig.ID, "id", defaultConfig.ID, "Node ID")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL")
	flag.StringVar(&defaultConfig.Port, "port", defaultConfig.Port, "Transport URL of a single device")
	flag.StringVar(&defaultConfig.Model, "model", defaultConfig.Model, "Model of the single device")
	flag.StringVar(&defaultConfig.RecordPath, "record", defaultConfig.RecordPath, "SQLite file to record detections")
	flag.DurationVar(&defaultConfig.Retention, "retention", defaultConfig.Retention, "How long recorded detections are kept, 0 to keep forever")
	flag.BoolVar(&defaultConfig.Reports, "reports", defaultConfig.Reports, "Publish protobuf reports")
	flag.DurationVar(&defaultConfig.Interval, "interval", defaultConfig.Interval, "Publishing interval")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Load merges a YAML document into the config.
func (c *Config) Load(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// LoadFile merges a YAML file into the config.
func (c *Config) LoadFile(fn string) error {
	f, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := c.Load(f); err != nil {
		return fmt.Errorf("load %s: %w", fn, err)
	}
	return nil
}

// Resolve loads ConfigFile and fills in defaults.
func (c *Config) Resolve() error {
	if c.ConfigFile != "" {
		if err := c.LoadFile(c.ConfigFile); err != nil {
			return err
		}
	}
	if len(c.Devices) == 0 && c.Port != "" {
		c.Devices = append(c.Devices, NewDeviceConfig("radar", c.Model, c.Port))
	}
	if c.ID == "" {
		c.ID = MachineID()
	}
	if c.Open == nil {
		c.Open = transport.Open
	}
	return c.Validate()
}

// Validate checks the config.
func (c *Config) Validate() error {
	if len(c.Devices) == 0 {
		return fmt.Errorf("at least one device is required")
	}
	names := make(map[string]bool)
	for i := range c.Devices {
		dc := &c.Devices[i]
		if err := dc.Validate(); err != nil {
			return err
		}
		if names[dc.Name] {
			return fmt.Errorf("duplicated device name %q", dc.Name)
		}
		names[dc.Name] = true
	}
	if c.Interval < 0 {
		return fmt.Errorf("interval must not be negative")
	}
	if c.Retention < 0 {
		return fmt.Errorf("retention must not be negative")
	}
	return nil
}
