package hass

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/robotalks/radar.go/pkg/device"
	fx "github.com/robotalks/radar.go/pkg/framework"
	"github.com/robotalks/radar.go/pkg/mqtt"
	"github.com/robotalks/radar.go/pkg/msgs"
	"github.com/robotalks/radar.go/pkg/telemetry"
)

// DefaultDiscoveryPrefix is the Home Assistant discovery prefix.
const DefaultDiscoveryPrefix = "homeassistant"

// StatusTopic is the bridge availability, also used as the MQTT will.
const StatusTopic = "status"

// Publisher is the part of mqtt.Queue used by the bridge.
type Publisher interface {
	FullTopic(topic string) string
	PubWith(topic string, payload []byte, qos byte, retain bool) paho.Token
	PubFull(fullTopic string, payload []byte, qos byte, retain bool) paho.Token
	Sub(topic string, handler mqtt.Handler) *mqtt.Subscription
}

// Command is posted to the loop when a command topic receives a message.
type Command struct {
	Device  string
	Key     string
	Payload string
}

type reconnected struct{}

// Node is a device exposed by the bridge.
type Node struct {
	Device device.Device
	// Attrs are exposed per target slot.
	Attrs []telemetry.Attr
	// Units overrides the default unit of attributes.
	Units map[telemetry.Attr]string
	// Alarm exposes the alarm flag of reports.
	Alarm bool

	entities []*Entity
	states   map[string]string
}

// Bridge publishes discovery, availability and states of nodes, and
// executes commands inside the loop.
type Bridge struct {
	Queue           Publisher
	DiscoveryPrefix string
	NodeID          string
	// Reports enables publishing msgs.TargetReport per tick.
	Reports bool
	Nodes   []*Node

	loop      fx.LoopControl
	announced bool
}

// NewBridge creates a Bridge.
func NewBridge(q Publisher, nodeID string, nodes ...*Node) *Bridge {
	return &Bridge{
		Queue:           q,
		DiscoveryPrefix: DefaultDiscoveryPrefix,
		NodeID:          nodeID,
		Nodes:           nodes,
	}
}

// AddToLoop implements LoopAdder.
func (b *Bridge) AddToLoop(loop *fx.Loop) {
	b.Attach(loop)
	loop.AddController(fx.PrLvCommand, fx.ControlFunc(b.Execute))
	loop.AddController(fx.PrLvPublish, fx.ControlFunc(b.Publish))
}

// Attach subscribes command topics which post to loop.
func (b *Bridge) Attach(loop fx.LoopControl) {
	b.loop = loop
	for _, n := range b.Nodes {
		name := n.Device.DeviceName()
		b.Queue.Sub(name+"/+/set", func(topic string, payload []byte) {
			parts := strings.Split(topic, "/")
			if len(parts) != 3 {
				return
			}
			loop.PostMessage(&Command{Device: name, Key: parts[1], Payload: string(payload)})
			loop.TriggerNext()
		})
	}
}

// OnConnect is a mqtt.ConnectHandler which republishes everything.
func (b *Bridge) OnConnect(*mqtt.Queue) {
	if b.loop != nil {
		b.loop.PostMessage(reconnected{})
		b.loop.TriggerNext()
	}
}

func (b *Bridge) node(name string) *Node {
	for _, n := range b.Nodes {
		if n.Device.DeviceName() == name {
			return n
		}
	}
	return nil
}

// Execute consumes commands posted to the loop.
func (b *Bridge) Execute(ctx fx.ControlContext) error {
	var errs fx.AggregatedError
	ctx.ProcessMessages(func(msg fx.Message) bool {
		switch m := msg.(type) {
		case reconnected:
			b.announced = false
		case *Command:
			n := b.node(m.Device)
			if n == nil {
				return false
			}
			errs.Add(b.execute(ctx.Context(), n, m))
		default:
			return false
		}
		return true
	})
	return errs.Aggregate()
}

func (b *Bridge) execute(ctx context.Context, n *Node, cmd *Command) error {
	dev := n.Device
	glog.Infof("%s: command %s %q", dev.DeviceName(), cmd.Key, cmd.Payload)
	var err error
	switch cmd.Key {
	case "restart":
		err = dev.Restart(ctx)
	case "factory_reset":
		err = dev.FactoryReset(ctx)
	case "config_mode":
		switch cmd.Payload {
		case PayloadOn:
			err = dev.EnableConfig(ctx)
		case PayloadOff:
			err = dev.DisableConfig(ctx)
		default:
			err = fmt.Errorf("invalid payload %q", cmd.Payload)
		}
	case "baud_rate":
		setter, ok := dev.(device.BaudRateSetter)
		if !ok {
			err = fmt.Errorf("baud rate not supported")
			break
		}
		if err = setter.SetBaudRateString(ctx, cmd.Payload); err == nil {
			b.setState(n, "baud_rate", cmd.Payload)
		}
	default:
		setter, ok := dev.(device.ParamSetter)
		if !ok {
			err = fmt.Errorf("unknown command")
			break
		}
		if _, ok := device.FindParam(setter.Params(), cmd.Key); !ok {
			err = fmt.Errorf("unknown command")
			break
		}
		if err = setter.SetParam(ctx, cmd.Key, cmd.Payload); err == nil {
			b.setState(n, cmd.Key, setter.ParamValues()[cmd.Key])
		}
	}
	if err != nil {
		return fmt.Errorf("%s: command %s: %w", dev.DeviceName(), cmd.Key, err)
	}
	return nil
}

// Publish publishes discovery once and then states on change.
func (b *Bridge) Publish(ctx fx.ControlContext) error {
	if !b.announced {
		b.announce()
	}
	for _, n := range b.Nodes {
		b.publishNode(n)
	}
	return nil
}

func (b *Bridge) announce() {
	for _, n := range b.Nodes {
		n.states = make(map[string]string)
		n.entities = b.Entities(n)
		for _, e := range n.entities {
			payload, err := e.Payload()
			if err != nil {
				glog.Errorf("%s: discovery %s: %v", n.Device.DeviceName(), e.Key, err)
				continue
			}
			b.Queue.PubFull(e.Topic(b.DiscoveryPrefix, b.NodeID+"_"+n.Device.DeviceName()), payload, 1, true)
		}
		b.publishSettings(n)
	}
	b.Queue.PubWith(StatusTopic, []byte(PayloadOnline), 1, true)
	b.announced = true
}

// publishSettings publishes the states of select and number entities,
// which only change on commands.
func (b *Bridge) publishSettings(n *Node) {
	if setter, ok := n.Device.(device.BaudRateSetter); ok {
		b.setState(n, "baud_rate", setter.BaudRate())
	}
	if setter, ok := n.Device.(device.ParamSetter); ok {
		values := setter.ParamValues()
		for _, p := range setter.Params() {
			if v, ok := values[p.Key]; ok {
				b.setState(n, p.Key, v)
			}
		}
	}
}

func (b *Bridge) setState(n *Node, key, state string) {
	if n.states == nil {
		n.states = make(map[string]string)
	}
	if prev, ok := n.states[key]; ok && prev == state {
		return
	}
	n.states[key] = state
	b.Queue.PubWith(n.Device.DeviceName()+"/"+key, []byte(state), 1, true)
}

func numberState(r telemetry.Reading) string {
	if !r.Known {
		return StateUnknown
	}
	return strconv.FormatFloat(r.Value, 'f', -1, 64)
}

func binaryState(r telemetry.Reading) string {
	if !r.Known {
		return StateUnknown
	}
	if r.Value != 0 {
		return PayloadOn
	}
	return PayloadOff
}

func (b *Bridge) publishNode(n *Node) {
	dev := n.Device
	avail := PayloadOffline
	if dev.Available() {
		avail = PayloadOnline
	}
	b.setState(n, "availability", avail)
	configMode := PayloadOff
	if dev.InConfig() {
		configMode = PayloadOn
	}
	b.setState(n, "config_mode", configMode)
	if ver := dev.Firmware(); ver != "" {
		b.setState(n, "version", ver)
	}

	s := dev.Snapshot()
	b.setState(n, "target_number", numberState(s.TargetNumber))
	b.setState(n, "has_towards_target", binaryState(s.HasTowardsTarget))
	if n.Alarm {
		b.setState(n, "alarm", binaryState(s.Alarm))
	}
	for _, t := range s.Targets {
		for _, a := range n.Attrs {
			r := t.Attr(a)
			state := numberState(r)
			if a == telemetry.AttrDirection && r.Known {
				state = telemetry.Direction(r.Value).String()
			}
			b.setState(n, TargetKey(t.Slot, a), state)
		}
	}

	if b.Reports {
		payload, err := msgs.Encode(msgs.NewTargetReport(dev.DeviceName(), dev.Model(), s))
		if err != nil {
			glog.Errorf("%s: encode report: %v", dev.DeviceName(), err)
			return
		}
		b.Queue.PubWith(dev.DeviceName()+"/report", payload, 0, false)
	}
}

// Entities builds the discovery configs of a node.
func (b *Bridge) Entities(n *Node) []*Entity {
	dev := n.Device
	name := dev.DeviceName()
	info := &DeviceInfo{
		Identifiers:  []string{b.NodeID + "_" + name},
		Name:         name,
		Manufacturer: "HLK",
		Model:        strings.ToUpper(dev.Model()),
		SwVersion:    dev.Firmware(),
	}
	avail := []Availability{
		{Topic: b.Queue.FullTopic(StatusTopic)},
		{Topic: b.Queue.FullTopic(name + "/availability")},
	}
	newEntity := func(platform, key string) *Entity {
		e := &Entity{Platform: platform, Key: key, Config: Config{
			Name:             humanize(key),
			UniqueID:         b.NodeID + "_" + name + "_" + key,
			ObjectID:         name + "_" + key,
			StateTopic:       b.Queue.FullTopic(name + "/" + key),
			Availability:     avail,
			AvailabilityMode: "all",
			Device:           info,
		}}
		return e
	}
	withCommand := func(e *Entity) *Entity {
		e.Config.CommandTopic = b.Queue.FullTopic(name + "/" + e.Key + "/set")
		return e
	}

	var entities []*Entity
	e := newEntity(PlatformSensor, "target_number")
	e.Config.StateClass = "measurement"
	entities = append(entities, e)

	e = newEntity(PlatformBinarySensor, "has_towards_target")
	e.Config.DeviceClass = "moving"
	e.Config.PayloadOn, e.Config.PayloadOff = PayloadOn, PayloadOff
	entities = append(entities, e)

	if n.Alarm {
		e = newEntity(PlatformBinarySensor, "alarm")
		e.Config.DeviceClass = "safety"
		e.Config.PayloadOn, e.Config.PayloadOff = PayloadOn, PayloadOff
		entities = append(entities, e)
	}

	slots := len(dev.Snapshot().Targets)
	for slot := 0; slot < slots; slot++ {
		for _, a := range n.Attrs {
			e = newEntity(PlatformSensor, TargetKey(slot, a))
			if a != telemetry.AttrDirection {
				e.Config.StateClass = "measurement"
				e.Config.DeviceClass = deviceClasses[a]
				unit, ok := n.Units[a]
				if !ok {
					unit = defaultUnits[a]
				}
				e.Config.UnitOfMeasurement = unit
			}
			entities = append(entities, e)
		}
	}

	e = newEntity(PlatformSensor, "version")
	e.Config.EntityCategory = "diagnostic"
	e.Config.Icon = "mdi:chip"
	entities = append(entities, e)

	for _, key := range []string{"restart", "factory_reset"} {
		e = withCommand(newEntity(PlatformButton, key))
		e.Config.StateTopic = ""
		e.Config.EntityCategory = "config"
		e.Config.PayloadPress = PayloadPress
		if key == "restart" {
			e.Config.DeviceClass = "restart"
		}
		entities = append(entities, e)
	}

	e = withCommand(newEntity(PlatformSwitch, "config_mode"))
	e.Config.EntityCategory = "config"
	e.Config.PayloadOn, e.Config.PayloadOff = PayloadOn, PayloadOff
	entities = append(entities, e)

	if setter, ok := dev.(device.BaudRateSetter); ok {
		e = withCommand(newEntity(PlatformSelect, "baud_rate"))
		e.Config.EntityCategory = "config"
		e.Config.Options = setter.BaudRates()
		entities = append(entities, e)
	}
	if setter, ok := dev.(device.ParamSetter); ok {
		for _, p := range setter.Params() {
			if len(p.Options) > 0 {
				e = withCommand(newEntity(PlatformSelect, p.Key))
				e.Config.Options = p.Options
			} else {
				e = withCommand(newEntity(PlatformNumber, p.Key))
				lo, hi, step := p.Min, p.Max, p.Step
				e.Config.Min, e.Config.Max, e.Config.Step = &lo, &hi, &step
				e.Config.UnitOfMeasurement = p.Unit
				e.Config.Mode = "box"
			}
			e.Config.EntityCategory = "config"
			entities = append(entities, e)
		}
	}
	return entities
}
