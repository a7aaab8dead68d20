package env

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/radar.go/pkg/device"
	fx "github.com/robotalks/radar.go/pkg/framework"
	"github.com/robotalks/radar.go/pkg/hass"
	"github.com/robotalks/radar.go/pkg/ld2413"
	"github.com/robotalks/radar.go/pkg/ld2451"
	"github.com/robotalks/radar.go/pkg/ld2460"
	"github.com/robotalks/radar.go/pkg/mqtt"
	"github.com/robotalks/radar.go/pkg/record"
	"github.com/robotalks/radar.go/pkg/telemetry"
)

// Env holds devices and facades created from Config.
type Env struct {
	Config   *Config
	Devices  []device.Device
	Queue    *mqtt.Queue
	Bridge   *hass.Bridge
	Recorder *record.Recorder

	closers []io.Closer
}

// NewDevice creates the component of a device config over a byte stream.
func NewDevice(dc *DeviceConfig, rw io.ReadWriter) (device.Device, *hass.Node) {
	switch dc.Model {
	case ld2413.Model:
		return ld2413.New(dc.Name, rw, dc.LD2413), &hass.Node{
			Attrs: []telemetry.Attr{telemetry.AttrDistance},
			Units: map[telemetry.Attr]string{telemetry.AttrDistance: "mm"},
		}
	case ld2460.Model:
		return ld2460.New(dc.Name, rw, dc.LD2460), &hass.Node{
			Attrs: []telemetry.Attr{telemetry.AttrX, telemetry.AttrY, telemetry.AttrDistance, telemetry.AttrAngle},
		}
	default:
		return ld2451.New(dc.Name, rw, dc.LD2451), &hass.Node{
			Attrs: telemetry.PolarAttrs,
			Alarm: true,
		}
	}
}

// NewEnv creates Env from a resolved config.
func (c *Config) NewEnv() (*Env, error) {
	if c.Open == nil {
		if err := c.Resolve(); err != nil {
			return nil, err
		}
	}
	env := &Env{Config: c}
	var nodes []*hass.Node
	for i := range c.Devices {
		dc := &c.Devices[i]
		port := dc.PortURL()
		rw, err := c.Open(port)
		if err != nil {
			env.Close()
			return nil, fmt.Errorf("%s: open %s: %w", dc.Name, port, err)
		}
		env.closers = append(env.closers, rw)
		dev, node := NewDevice(dc, rw)
		node.Device = dev
		env.Devices = append(env.Devices, dev)
		nodes = append(nodes, node)
		glog.Infof("%s: %s on %s", dc.Name, dc.Model, port)
	}

	if c.MQTTBrokerURL != "" {
		opts, prefix, err := mqtt.ClientOptionsFromURL(c.MQTTBrokerURL)
		if err != nil {
			env.Close()
			return nil, fmt.Errorf("invalid MQTT URL: %w", err)
		}
		if opts.ClientID == "" {
			opts.SetClientID("radar-" + c.ID)
		}
		opts.SetWill(prefix+hass.StatusTopic, hass.PayloadOffline, 1, true)
		env.Queue = mqtt.NewQueue(opts, prefix)
		env.Bridge = hass.NewBridge(env.Queue, c.ID, nodes...)
		env.Bridge.Reports = c.Reports
		if c.DiscoveryPrefix != "" {
			env.Bridge.DiscoveryPrefix = c.DiscoveryPrefix
		}
		env.Queue.OnConnect = env.Bridge.OnConnect
	}

	if c.RecordPath != "" {
		rec, err := record.Open(c.RecordPath)
		if err != nil {
			env.Close()
			return nil, fmt.Errorf("open record: %w", err)
		}
		rec.Retention = c.Retention
		for _, dev := range env.Devices {
			rec.Sources = append(rec.Sources, dev)
		}
		env.Recorder = rec
		env.closers = append(env.closers, rec)
	}
	return env, nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv() *Env {
	env, err := c.NewEnv()
	if err != nil {
		log.Fatalln(err)
	}
	return env
}

// Close releases transports and the recorder.
func (e *Env) Close() error {
	var errs fx.AggregatedError
	for _, c := range e.closers {
		errs.Add(c.Close())
	}
	e.closers = nil
	return errs.Aggregate()
}

// AddToLoop adds devices and facades to loop.
func (e *Env) AddToLoop(loop *fx.Loop) {
	if e.Config.Interval > 0 {
		loop.Interval = e.Config.Interval
	}
	for _, dev := range e.Devices {
		loop.AddRunnable(fx.NamedRun(dev.DeviceName(), dev))
	}
	if e.Bridge != nil {
		loop.Add(e.Bridge)
		loop.AddRunnable(fx.NamedRun("mqtt", &connector{queue: e.Queue}))
	}
	if e.Recorder != nil {
		loop.Add(e.Recorder)
	}
}

// connector keeps connecting the queue until it succeeds.
type connector struct {
	queue *mqtt.Queue
}

func (c *connector) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		err := mqtt.Wait(ctx, c.queue.Connect())
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		glog.Warningf("mqtt connect: %v, retry in %v", err, backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
	<-ctx.Done()
	c.queue.PubRetained(hass.StatusTopic, []byte(hass.PayloadOffline)).WaitTimeout(time.Second)
	c.queue.Close()
	return ctx.Err()
}

// EngineOf gets the protocol engine of a device created by NewDevice.
func EngineOf(dev device.Device) *device.Engine {
	switch d := dev.(type) {
	case *ld2451.Component:
		return d.Engine
	case *ld2413.Component:
		return d.Engine
	case *ld2460.Component:
		return d.Engine
	}
	return nil
}
