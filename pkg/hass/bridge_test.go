package hass

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/radar.go/pkg/device"
	fx "github.com/robotalks/radar.go/pkg/framework"
	"github.com/robotalks/radar.go/pkg/mqtt"
	"github.com/robotalks/radar.go/pkg/msgs"
	"github.com/robotalks/radar.go/pkg/telemetry"
)

type published struct {
	topic   string
	payload string
	retain  bool
}

type testPublisher struct {
	prefix   string
	pubs     []published
	handlers map[string]mqtt.Handler
}

func (p *testPublisher) FullTopic(topic string) string { return p.prefix + topic }

func (p *testPublisher) PubWith(topic string, payload []byte, qos byte, retain bool) paho.Token {
	return p.PubFull(p.FullTopic(topic), payload, qos, retain)
}

func (p *testPublisher) PubFull(topic string, payload []byte, qos byte, retain bool) paho.Token {
	p.pubs = append(p.pubs, published{topic: topic, payload: string(payload), retain: retain})
	return &paho.DummyToken{}
}

func (p *testPublisher) Sub(topic string, handler mqtt.Handler) *mqtt.Subscription {
	if p.handlers == nil {
		p.handlers = make(map[string]mqtt.Handler)
	}
	p.handlers[topic] = handler
	return &mqtt.Subscription{}
}

func (p *testPublisher) last(topic string) (string, bool) {
	for i := len(p.pubs) - 1; i >= 0; i-- {
		if p.pubs[i].topic == topic {
			return p.pubs[i].payload, true
		}
	}
	return "", false
}

func (p *testPublisher) count(topic string) (n int) {
	for _, pub := range p.pubs {
		if pub.topic == topic {
			n++
		}
	}
	return
}

type testDevice struct {
	store    *telemetry.Store
	tracker  *telemetry.Tracker
	now      time.Time
	inConfig bool
	commands []string
	baud     string
	params   map[string]string
}

func newTestDevice(now time.Time) *testDevice {
	store := telemetry.NewStore(2)
	return &testDevice{
		store:   store,
		tracker: telemetry.NewTracker(store, time.Second),
		now:     now,
		baud:    "115200",
		params:  map[string]string{"max_distance": "100", "direction": "both"},
	}
}

func (d *testDevice) Run(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }
func (d *testDevice) DeviceName() string { return "front" }
func (d *testDevice) Model() string { return "ld2451" }
func (d *testDevice) Available() bool { return true }
func (d *testDevice) InConfig() bool { return d.inConfig }
func (d *testDevice) Firmware() string { return "V1.02.03240716" }
func (d *testDevice) Snapshot() *telemetry.Snapshot { return d.tracker.Snapshot(d.now) }
func (d *testDevice) Setup(context.Context) error { return nil }
func (d *testDevice) Version(context.Context) (string, error) { return d.Firmware(), nil }
func (d *testDevice) BaudRates() []string { return []string{"9600", "115200"} }
func (d *testDevice) BaudRate() string { return d.baud }

var testParams = []device.Param{
	device.NumberParam("max_distance", 10, 255, 1, "m"),
	device.ChoiceParam("direction", "away", "towards", "both"),
}

func (d *testDevice) Params() []device.Param { return testParams }

func (d *testDevice) ParamValues() map[string]string {
	values := make(map[string]string)
	for k, v := range d.params {
		values[k] = v
	}
	return values
}

func (d *testDevice) SetParam(_ context.Context, key, value string) error {
	p, _ := device.FindParam(testParams, key)
	if len(p.Options) == 0 {
		if _, err := p.ParseNumber(value); err != nil {
			return err
		}
	}
	d.commands = append(d.commands, key+" "+value)
	d.params[key] = value
	return nil
}

func (d *testDevice) EnableConfig(context.Context) error {
	d.commands = append(d.commands, "enable")
	d.inConfig = true
	return nil
}

func (d *testDevice) DisableConfig(context.Context) error {
	d.commands = append(d.commands, "disable")
	d.inConfig = false
	return nil
}

func (d *testDevice) Restart(context.Context) error {
	d.commands = append(d.commands, "restart")
	return nil
}

func (d *testDevice) FactoryReset(context.Context) error {
	d.commands = append(d.commands, "factory_reset")
	return nil
}

func (d *testDevice) SetBaudRateString(_ context.Context, rate string) error {
	d.commands = append(d.commands, "baud "+rate)
	d.baud = rate
	return nil
}

type bridgeTestCtx struct {
	pub    *testPublisher
	dev    *testDevice
	bridge *Bridge
	loop   *fx.Loop
}

func newBridgeTestCtx() *bridgeTestCtx {
	now := time.Unix(1700000000, 0)
	c := &bridgeTestCtx{
		pub:  &testPublisher{prefix: "radar/"},
		dev:  newTestDevice(now),
		loop: fx.NewLoop(),
	}
	c.bridge = NewBridge(c.pub, "node1", &Node{
		Device: c.dev,
		Attrs:  []telemetry.Attr{telemetry.AttrDistance, telemetry.AttrDirection},
		Alarm:  true,
	})
	c.bridge.Reports = true
	c.loop.Add(c.bridge)
	return c
}

func (c *bridgeTestCtx) tick() {
	c.loop.RunIteration(context.Background(), c.dev.now)
}

func TestBridgeDiscovery(t *testing.T) {
	c := newBridgeTestCtx()
	c.tick()

	payload, ok := c.pub.last("homeassistant/sensor/node1_front/target_1_distance/config")
	require.True(t, ok)
	var conf Config
	require.NoError(t, json.Unmarshal([]byte(payload), &conf))
	require.Equal(t, "radar/front/target_1_distance", conf.StateTopic)
	require.Equal(t, "m", conf.UnitOfMeasurement)
	require.Equal(t, "node1_front_target_1_distance", conf.UniqueID)
	require.Len(t, conf.Availability, 2)
	require.Equal(t, "radar/status", conf.Availability[0].Topic)
	require.Equal(t, "LD2451", conf.Device.Model)

	payload, ok = c.pub.last("homeassistant/select/node1_front/baud_rate/config")
	require.True(t, ok)
	require.NoError(t, json.Unmarshal([]byte(payload), &conf))
	require.Equal(t, []string{"9600", "115200"}, conf.Options)
	require.Equal(t, "radar/front/baud_rate/set", conf.CommandTopic)

	_, ok = c.pub.last("homeassistant/button/node1_front/restart/config")
	require.True(t, ok)
	_, ok = c.pub.last("homeassistant/sensor/node1_front/target_2_direction/config")
	require.True(t, ok)

	status, _ := c.pub.last("radar/status")
	require.Equal(t, PayloadOnline, status)
}

func TestBridgeStates(t *testing.T) {
	c := newBridgeTestCtx()
	c.tick()
	state, _ := c.pub.last("radar/front/target_number")
	require.Equal(t, StateUnknown, state)
	state, _ = c.pub.last("radar/front/target_1_distance")
	require.Equal(t, StateUnknown, state)
	state, _ = c.pub.last("radar/front/version")
	require.Equal(t, "V1.02.03240716", state)

	c.dev.store.Apply(&telemetry.Report{At: c.dev.now, Alarm: true, Records: []telemetry.Record{
		{Distance: 12, Speed: 30, Direction: telemetry.DirectionApproaching},
	}})
	c.dev.now = c.dev.now.Add(200 * time.Millisecond)
	c.tick()
	state, _ = c.pub.last("radar/front/target_number")
	require.Equal(t, "1", state)
	state, _ = c.pub.last("radar/front/target_1_distance")
	require.Equal(t, "12", state)
	state, _ = c.pub.last("radar/front/target_1_direction")
	require.Equal(t, "approaching", state)
	state, _ = c.pub.last("radar/front/has_towards_target")
	require.Equal(t, PayloadOn, state)
	state, _ = c.pub.last("radar/front/alarm")
	require.Equal(t, PayloadOn, state)

	report, ok := c.pub.last("radar/front/report")
	require.True(t, ok)
	m, err := msgs.Decode([]byte(report))
	require.NoError(t, err)
	require.Len(t, m.Targets, 1)
	require.Equal(t, 12.0, m.Targets[0].Distance)

	// unchanged states are not republished.
	n := c.pub.count("radar/front/target_1_distance")
	c.tick()
	require.Equal(t, n, c.pub.count("radar/front/target_1_distance"))

	c.dev.now = c.dev.now.Add(time.Second)
	c.tick()
	state, _ = c.pub.last("radar/front/target_1_distance")
	require.Equal(t, StateUnknown, state)
	state, _ = c.pub.last("radar/front/has_towards_target")
	require.Equal(t, StateUnknown, state)

	// reconnect republishes everything.
	discovery := c.pub.count("homeassistant/switch/node1_front/config_mode/config")
	c.bridge.OnConnect(nil)
	n = c.pub.count("radar/front/target_1_distance")
	c.tick()
	require.Equal(t, discovery+1, c.pub.count("homeassistant/switch/node1_front/config_mode/config"))
	require.Equal(t, n+1, c.pub.count("radar/front/target_1_distance"))
}

func TestBridgeCommands(t *testing.T) {
	c := newBridgeTestCtx()
	c.tick()
	handler := c.pub.handlers["front/+/set"]
	require.NotNil(t, handler)

	testCases := []struct {
		topic   string
		payload string
		command string
	}{
		{"front/config_mode/set", PayloadOn, "enable"},
		{"front/config_mode/set", PayloadOff, "disable"},
		{"front/restart/set", PayloadPress, "restart"},
		{"front/factory_reset/set", PayloadPress, "factory_reset"},
		{"front/baud_rate/set", "9600", "baud 9600"},
		{"front/max_distance/set", "80", "max_distance 80"},
		{"front/direction/set", "away", "direction away"},
	}
	for _, tc := range testCases {
		t.Run(tc.topic+" "+tc.payload, func(t *testing.T) {
			c.dev.commands = nil
			handler(tc.topic, []byte(tc.payload))
			// commands only run in the loop.
			require.Empty(t, c.dev.commands)
			c.tick()
			require.Equal(t, []string{tc.command}, c.dev.commands)
		})
	}
	state, _ := c.pub.last("radar/front/baud_rate")
	require.Equal(t, "9600", state)
	state, _ = c.pub.last("radar/front/max_distance")
	require.Equal(t, "80", state)
	state, _ = c.pub.last("radar/front/direction")
	require.Equal(t, "away", state)

	// out of range values are not applied.
	c.dev.commands = nil
	handler("front/max_distance/set", []byte("300"))
	c.tick()
	require.Empty(t, c.dev.commands)
	state, _ = c.pub.last("radar/front/max_distance")
	require.Equal(t, "80", state)

	c.dev.commands = nil
	handler("front/unknown/set", []byte("x"))
	handler("front/config_mode/set", []byte("maybe"))
	c.tick()
	require.Empty(t, c.dev.commands)
	require.True(t, strings.HasPrefix(humanize("has_towards_target"), "Has Towards"))
}

func TestBridgeSettingsStates(t *testing.T) {
	c := newBridgeTestCtx()
	c.tick()

	state, ok := c.pub.last("radar/front/baud_rate")
	require.True(t, ok)
	require.Equal(t, "115200", state)
	state, _ = c.pub.last("radar/front/max_distance")
	require.Equal(t, "100", state)
	state, _ = c.pub.last("radar/front/direction")
	require.Equal(t, "both", state)

	// republished after reconnect.
	n := c.pub.count("radar/front/baud_rate")
	c.bridge.OnConnect(nil)
	c.tick()
	require.Equal(t, n+1, c.pub.count("radar/front/baud_rate"))
}

func TestBridgeParamEntities(t *testing.T) {
	c := newBridgeTestCtx()
	c.tick()

	payload, ok := c.pub.last("homeassistant/number/node1_front/max_distance/config")
	require.True(t, ok)
	var conf Config
	require.NoError(t, json.Unmarshal([]byte(payload), &conf))
	require.Equal(t, "radar/front/max_distance/set", conf.CommandTopic)
	require.Equal(t, "radar/front/max_distance", conf.StateTopic)
	require.NotNil(t, conf.Min)
	require.NotNil(t, conf.Max)
	require.NotNil(t, conf.Step)
	require.Equal(t, 10.0, *conf.Min)
	require.Equal(t, 255.0, *conf.Max)
	require.Equal(t, 1.0, *conf.Step)
	require.Equal(t, "m", conf.UnitOfMeasurement)
	require.Equal(t, "box", conf.Mode)
	require.Equal(t, "config", conf.EntityCategory)

	payload, ok = c.pub.last("homeassistant/select/node1_front/direction/config")
	require.True(t, ok)
	conf = Config{}
	require.NoError(t, json.Unmarshal([]byte(payload), &conf))
	require.Equal(t, []string{"away", "towards", "both"}, conf.Options)
	require.Nil(t, conf.Min)
}
