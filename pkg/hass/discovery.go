// Package hass exposes radar devices to Home Assistant over MQTT.
package hass

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/robotalks/radar.go/pkg/telemetry"
)

// Payloads.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
	PayloadOn      = "ON"
	PayloadOff     = "OFF"
	PayloadPress   = "PRESS"
	// StateUnknown is what Home Assistant takes as an unknown state.
	StateUnknown = "None"
)

// DeviceInfo identifies the device in Home Assistant.
type DeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	SwVersion    string   `json:"sw_version,omitempty"`
}

// Availability is an availability topic.
type Availability struct {
	Topic string `json:"topic"`
}

// Config is the discovery payload of an entity.
type Config struct {
	Name              string         `json:"name"`
	UniqueID          string         `json:"unique_id"`
	ObjectID          string         `json:"object_id,omitempty"`
	StateTopic        string         `json:"state_topic,omitempty"`
	CommandTopic      string         `json:"command_topic,omitempty"`
	Availability      []Availability `json:"availability,omitempty"`
	AvailabilityMode  string         `json:"availability_mode,omitempty"`
	DeviceClass       string         `json:"device_class,omitempty"`
	StateClass        string         `json:"state_class,omitempty"`
	UnitOfMeasurement string         `json:"unit_of_measurement,omitempty"`
	EntityCategory    string         `json:"entity_category,omitempty"`
	Icon              string         `json:"icon,omitempty"`
	PayloadOn         string         `json:"payload_on,omitempty"`
	PayloadOff        string         `json:"payload_off,omitempty"`
	PayloadPress      string         `json:"payload_press,omitempty"`
	Options           []string       `json:"options,omitempty"`
	Min               *float64       `json:"min,omitempty"`
	Max               *float64       `json:"max,omitempty"`
	Step              *float64       `json:"step,omitempty"`
	Mode              string         `json:"mode,omitempty"`
	Device            *DeviceInfo    `json:"device"`
}

// Component platforms.
const (
	PlatformSensor       = "sensor"
	PlatformBinarySensor = "binary_sensor"
	PlatformButton       = "button"
	PlatformNumber       = "number"
	PlatformSelect       = "select"
	PlatformSwitch       = "switch"
)

// Entity is a Home Assistant entity of a device.
type Entity struct {
	Platform string
	// Key is unique within the device and used in topics.
	Key    string
	Config Config
}

// Topic gets the discovery topic.
func (e *Entity) Topic(discoveryPrefix, nodeID string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", discoveryPrefix, e.Platform, nodeID, e.Key)
}

// Payload encodes the discovery config.
func (e *Entity) Payload() ([]byte, error) {
	return json.Marshal(&e.Config)
}

// Units per attribute, overridable per device.
var defaultUnits = map[telemetry.Attr]string{
	telemetry.AttrAngle:          "°",
	telemetry.AttrDistance:       "m",
	telemetry.AttrSpeed:          "km/h",
	telemetry.AttrSignalStrength: "",
	telemetry.AttrX:              "m",
	telemetry.AttrY:              "m",
}

var deviceClasses = map[telemetry.Attr]string{
	telemetry.AttrDistance: "distance",
	telemetry.AttrSpeed:    "speed",
	telemetry.AttrX:        "distance",
	telemetry.AttrY:        "distance",
}

// TargetKey is the entity key of a slot attribute, e.g. target_1_distance.
func TargetKey(slot int, attr telemetry.Attr) string {
	return fmt.Sprintf("target_%d_%s", slot+1, attr)
}

func humanize(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
