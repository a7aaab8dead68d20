package ld2460

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/radar.go/pkg/comm"
	"github.com/robotalks/radar.go/pkg/comm/transport"
	"github.com/robotalks/radar.go/pkg/sim"
	"github.com/robotalks/radar.go/pkg/telemetry"
)

type componentTestCtx struct {
	t         *testing.T
	comp      *Component
	module    *sim.LD2460
	reportsCh chan *telemetry.Report
}

func newComponentTestCtx(t *testing.T, conf Config) *componentTestCtx {
	host, dev := transport.Pipe()
	c := &componentTestCtx{
		t:         t,
		comp:      New("test", host, conf),
		module:    sim.NewLD2460("sim", dev),
		reportsCh: make(chan *telemetry.Report, 4),
	}
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

func (c *componentTestCtx) expectReport() *telemetry.Report {
	select {
	case r := <-c.reportsCh:
		return r
	case <-time.After(time.Second):
		c.t.Fatal("report not received")
	}
	return nil
}

func TestComponentSetup(t *testing.T) {
	conf := DefaultConfig()
	conf.Height, conf.Angle, conf.Mode = 3.2, 45, ModeTop
	conf.DetectDistance, conf.DetectStartAngle, conf.DetectEndAngle = 8, -30, 60
	conf.Sensitivity = SensitivityLow
	c := newComponentTestCtx(t, conf)
	ctx := context.Background()

	require.NoError(t, c.comp.Setup(ctx))
	require.Equal(t, []uint16{
		CmdSetInstallParams,
		CmdSetMode,
		CmdSetDetectRange,
		CmdSetSensitivity,
		CmdGetVersion,
	}, c.module.Received())
	require.Equal(t, "2024-07 V1.2", c.comp.Firmware())
	require.False(t, c.comp.InConfig())
	require.Equal(t, comm.StateIdle, c.comp.Seq.State())

	ip, err := c.comp.GetInstallParams(ctx)
	require.NoError(t, err)
	require.Equal(t, InstallParams{Height: 3.2, Angle: 45}, ip)
	m, err := c.comp.GetMode(ctx)
	require.NoError(t, err)
	require.Equal(t, ModeTop, m)
	dr, err := c.comp.GetDetectRange(ctx)
	require.NoError(t, err)
	require.Equal(t, DetectRange{Distance: 8, StartAngle: -30, EndAngle: 60}, dr)
	s, err := c.comp.GetSensitivity(ctx)
	require.NoError(t, err)
	require.Equal(t, SensitivityLow, s)
}

func TestComponentNoConfigMode(t *testing.T) {
	c := newComponentTestCtx(t, DefaultConfig())
	ctx := context.Background()
	require.Equal(t, ErrNoConfigMode, c.comp.EnableConfig(ctx))
	require.NoError(t, c.comp.DisableConfig(ctx))
	require.Empty(t, c.module.Received())
}

func TestComponentTelemetry(t *testing.T) {
	c := newComponentTestCtx(t, DefaultConfig())
	require.NoError(t, c.module.ReportXY([2]float64{1.5, 2}, [2]float64{-0.3, 4}))
	r := c.expectReport()
	require.Equal(t, 2, r.ValidCount())

	n, ok := c.comp.TargetNumber()
	require.True(t, ok)
	require.Equal(t, 2, n)
	x, ok := c.comp.X(0)
	require.True(t, ok)
	require.Equal(t, 1.5, x)
	y, ok := c.comp.Y(1)
	require.True(t, ok)
	require.Equal(t, 4.0, y)
	dist, ok := c.comp.Read(0, telemetry.AttrDistance)
	require.True(t, ok)
	require.InDelta(t, 2.5, dist, 1e-9)
	_, ok = c.comp.Read(0, telemetry.AttrSpeed)
	require.False(t, ok)

	// reports keep coming while commands are exchanged.
	_, err := c.comp.Version(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.module.ReportXY([2]float64{0, 1}))
	r = c.expectReport()
	require.Len(t, r.Records, 1)
	n, _ = c.comp.TargetNumber()
	require.Equal(t, 1, n)
	_, ok = c.comp.X(1)
	require.False(t, ok)
}

func TestComponentUpload(t *testing.T) {
	c := newComponentTestCtx(t, DefaultConfig())
	ctx := context.Background()
	require.NoError(t, c.comp.EnableUpload(ctx, false))
	require.False(t, c.module.Uploading())
	require.NoError(t, c.comp.EnableUpload(ctx, true))
	require.True(t, c.module.Uploading())
}

func TestComponentRejected(t *testing.T) {
	c := newComponentTestCtx(t, DefaultConfig())
	ctx := context.Background()
	// the module rejects a start angle after the end angle.
	err := c.comp.set(ctx, CmdSetDetectRange, DetectRange{Distance: 5, StartAngle: 40, EndAngle: 10}.encode())
	require.ErrorIs(t, err, ErrRejected)

	var rangeErr *RangeError
	require.ErrorAs(t, c.comp.SetDetectRange(ctx, DetectRange{Distance: 30}), &rangeErr)
	require.Equal(t, "detect_distance", rangeErr.Param)
	require.Equal(t, []uint16{CmdSetDetectRange}, c.module.Received())
}

func TestComponentRestartAndReset(t *testing.T) {
	c := newComponentTestCtx(t, DefaultConfig())
	ctx := context.Background()
	require.NoError(t, c.comp.SetSensitivity(ctx, SensitivityMedium))
	require.NoError(t, c.comp.FactoryReset(ctx))
	require.Eventually(t, func() bool {
		return c.module.Count(CmdRestart) == 1
	}, time.Second, 5*time.Millisecond)
	s, err := c.comp.GetSensitivity(ctx)
	require.NoError(t, err)
	require.Equal(t, SensitivityHigh, s)
	require.Equal(t, []uint16{CmdSetSensitivity, CmdFactoryReset, CmdRestart, CmdGetSensitivity}, c.module.Received())
}

func TestComponentBaudRate(t *testing.T) {
	c := newComponentTestCtx(t, DefaultConfig())
	ctx := context.Background()
	require.Equal(t, "115200", c.comp.BaudRate())
	require.Len(t, c.comp.BaudRates(), 8)
	require.NoError(t, c.comp.SetBaudRateString(ctx, "256000"))
	require.Equal(t, "256000", c.comp.BaudRate())
	require.Error(t, c.comp.SetBaudRateString(ctx, "1200"))
}

func TestComponentParams(t *testing.T) {
	c := newComponentTestCtx(t, DefaultConfig())
	ctx := context.Background()

	testCases := []struct {
		key   string
		value string
		err   bool
	}{
		{key: "height", value: "2.8"},
		{key: "angle", value: "15"},
		{key: "mode", value: "Top"},
		{key: "detect_distance", value: "7.5"},
		{key: "detect_start_angle", value: "-60"},
		{key: "detect_end_angle", value: "30"},
		{key: "sensitivity", value: "medium"},
		{key: "height", value: "12", err: true},
		{key: "detect_end_angle", value: "-70", err: true},
		{key: "mode", value: "ceiling", err: true},
		{key: "baud_rate", value: "9600", err: true},
	}
	for _, tc := range testCases {
		t.Run(tc.key+" "+tc.value, func(t *testing.T) {
			err := c.comp.SetParam(ctx, tc.key, tc.value)
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
	require.Equal(t, map[string]string{
		"height":             "2.8",
		"angle":              "15",
		"mode":               "top",
		"detect_distance":    "7.5",
		"detect_start_angle": "-60",
		"detect_end_angle":   "30",
		"sensitivity":        "medium",
	}, c.comp.ParamValues())

	dr, err := c.comp.GetDetectRange(ctx)
	require.NoError(t, err)
	require.Equal(t, DetectRange{Distance: 7.5, StartAngle: -60, EndAngle: 30}, dr)
}
