package ld2413

import (
	"context"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/radar.go/pkg/comm"
	"github.com/robotalks/radar.go/pkg/comm/transport"
	"github.com/robotalks/radar.go/pkg/sim"
	"github.com/robotalks/radar.go/pkg/telemetry"
)

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{name: "default", modify: func(*Config) {}, ok: true},
		{name: "max too large", modify: func(c *Config) { c.MaxDistance = 10501 }},
		{name: "max too small", modify: func(c *Config) { c.MaxDistance = 100 }},
		{name: "min set", modify: func(c *Config) { c.MinDistance = 300 }, ok: true},
		{name: "min above max", modify: func(c *Config) { c.MinDistance, c.MaxDistance = 2000, 1000 }},
		{name: "interval too short", modify: func(c *Config) { c.ReportInterval = 10 * time.Millisecond }},
		{name: "interval too long", modify: func(c *Config) { c.ReportInterval = time.Minute + 6*time.Second }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conf := DefaultConfig()
			tc.modify(&conf)
			if tc.ok {
				require.NoError(t, conf.Validate())
			} else {
				require.Error(t, conf.Validate())
			}
		})
	}
	conf := DefaultConfig()
	require.Equal(t, 40*time.Second, conf.Window())
	conf.Timeout = time.Second
	require.Equal(t, time.Second, conf.Window())
}

func distanceBytes(mm float32) []byte {
	return binary.LittleEndian.AppendUint32(nil, math.Float32bits(mm))
}

func TestDecoder(t *testing.T) {
	d := &Decoder{Bounds: telemetry.Bounds{MinDistance: 150, MaxDistance: 3000}}
	at := time.Now()

	r, err := d.Decode(distanceBytes(1234.5), at)
	require.NoError(t, err)
	require.Len(t, r.Records, 1)
	require.True(t, r.Records[0].Valid())
	require.Equal(t, 1234.5, r.Records[0].Distance)

	r, err = d.Decode(distanceBytes(5000), at)
	require.NoError(t, err)
	require.False(t, r.Records[0].Valid())

	_, err = d.Decode([]byte{1, 2}, at)
	require.Equal(t, ErrBadReport, err)
	_, err = d.Decode(distanceBytes(float32(math.NaN())), at)
	require.Equal(t, ErrBadReport, err)
	_, err = d.Decode([]byte{0x74, 0x01, 0x00, 0x00}, at)
	require.Equal(t, ErrBadReport, err)
}

type componentTestCtx struct {
	comp      *Component
	module    *sim.LD2413
	reportsCh chan *telemetry.Report
}

func newComponentTestCtx(t *testing.T, conf Config) *componentTestCtx {
	host, dev := transport.Pipe()
	c := &componentTestCtx{
		comp:      New("tank", host, conf),
		module:    sim.NewLD2413("sim", dev),
		reportsCh: make(chan *telemetry.Report, 4),
	}
	c.comp.Seq.ConfigTimeout = 100 * time.Millisecond
	c.comp.Seq.CommandTimeout = 100 * time.Millisecond
	c.comp.OnReport = func(r *telemetry.Report, _ *telemetry.Updates) {
		c.reportsCh <- r
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go c.comp.Engine.Run(ctx)
	go c.module.Run(ctx)
	return c
}

func TestComponentSetup(t *testing.T) {
	conf := DefaultConfig()
	conf.MinDistance, conf.MaxDistance, conf.ReportInterval = 300, 4000, 500*time.Millisecond
	c := newComponentTestCtx(t, conf)
	ctx := context.Background()
	require.NoError(t, c.comp.Setup(ctx))
	require.Equal(t, []uint16{
		comm.CmdEnableConfig,
		CmdSetMinDistance,
		CmdSetMaxDistance,
		CmdSetReportInterval,
		CmdGetVersion,
		comm.CmdDisableConfig,
	}, c.module.Received())
	require.Equal(t, uint16(300), c.module.MinDistance)
	require.Equal(t, uint16(4000), c.module.MaxDistance)

	interval, err := c.comp.GetReportInterval(ctx)
	require.NoError(t, err)
	require.Equal(t, 500*time.Millisecond, interval)

	ver, err := c.comp.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, "V1.03.5", ver)
}

func TestComponentCommands(t *testing.T) {
	c := newComponentTestCtx(t, DefaultConfig())
	ctx := context.Background()
	require.NoError(t, c.comp.SetMaxDistance(ctx, 2000))
	require.NoError(t, c.comp.SetMinDistance(ctx, 200))
	require.NoError(t, c.comp.SetReportInterval(ctx, time.Second))
	require.NoError(t, c.comp.UpdateThreshold(ctx))
	require.Equal(t, uint16(2000), c.module.MaxDistance)
	require.Equal(t, uint16(200), c.module.MinDistance)
	require.Equal(t, uint16(1000), c.module.ReportInterval)
	require.Equal(t, 1, c.module.Calibrated)

	n := len(c.module.Received())
	require.Error(t, c.comp.SetMaxDistance(ctx, 20000))
	require.Error(t, c.comp.SetReportInterval(ctx, time.Millisecond))
	require.Len(t, c.module.Received(), n)

	require.NoError(t, c.comp.FactoryReset(ctx))
	require.Equal(t, uint16(10500), c.module.MaxDistance)
	require.False(t, c.comp.InConfig())
}

func TestComponentTelemetry(t *testing.T) {
	conf := DefaultConfig()
	conf.Timeout = time.Second
	c := newComponentTestCtx(t, conf)
	require.NoError(t, c.module.ReportDistance(856.25))
	var r *telemetry.Report
	select {
	case r = <-c.reportsCh:
	case <-time.After(time.Second):
		t.Fatal("report not received")
	}
	dist, ok := c.comp.Distance()
	require.True(t, ok)
	require.Equal(t, 856.25, dist)
	_, ok = c.comp.Read(0, telemetry.AttrAngle)
	require.False(t, ok)

	c.comp.Now = func() time.Time { return r.At.Add(1001 * time.Millisecond) }
	_, ok = c.comp.Distance()
	require.False(t, ok)
}
