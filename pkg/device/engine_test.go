package device

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/radar.go/pkg/comm"
	"github.com/robotalks/radar.go/pkg/comm/transport"
	"github.com/robotalks/radar.go/pkg/sim"
	"github.com/robotalks/radar.go/pkg/telemetry"
)

var errBadLength = errors.New("bad length")

// oneByteDistance decodes reports carrying a single distance byte.
var oneByteDistance = telemetry.DecodeFunc(func(data []byte, at time.Time) (*telemetry.Report, error) {
	if len(data) != 1 {
		return nil, errBadLength
	}
	return &telemetry.Report{At: at, Records: []telemetry.Record{{Distance: float64(data[0])}}}, nil
})

type engineTestCtx struct {
	engine    *Engine
	module    *sim.Module
	reportsCh chan *telemetry.Report
}

func newEngineTestCtx(t *testing.T) *engineTestCtx {
	host, dev := transport.Pipe()
	c := &engineTestCtx{
		engine: NewEngine(host, Options{
			Name:       "test",
			Decoder:    oneByteDistance,
			ReportKind: comm.KindReport,
			Slots:      2,
			Window:     time.Second,
		}),
		module:    sim.NewModule("sim", dev, comm.KindReport),
		reportsCh: make(chan *telemetry.Report, 4),
	}
	c.module.Handlers[0x0012] = func([]byte) (uint16, []byte) { return 0, []byte{7} }
	c.engine.Seq.ConfigTimeout = 100 * time.Millisecond
	c.engine.Seq.CommandTimeout = 100 * time.Millisecond
	c.engine.OnReport = func(r *telemetry.Report, _ *telemetry.Updates) { c.reportsCh <- r }
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go c.engine.Run(ctx)
	go c.module.Run(ctx)
	return c
}

func (c *engineTestCtx) expectReport(t *testing.T) *telemetry.Report {
	select {
	case r := <-c.reportsCh:
		return r
	case <-time.After(time.Second):
		t.Fatal("report not received")
	}
	return nil
}

func TestEngineReports(t *testing.T) {
	c := newEngineTestCtx(t)
	require.NoError(t, c.module.Report([]byte{1, 2}))
	require.NoError(t, c.module.Report([]byte{42}))
	c.expectReport(t)
	dist, ok := c.engine.Read(0, telemetry.AttrDistance)
	require.True(t, ok)
	require.Equal(t, 42.0, dist)
	reports, errs := c.engine.Stats()
	require.Equal(t, uint64(1), reports)
	require.Equal(t, uint64(1), errs)
	n, ok := c.engine.TargetNumber()
	require.True(t, ok)
	require.Equal(t, 1, n)
}

func TestEngineWithConfig(t *testing.T) {
	c := newEngineTestCtx(t)
	ctx := context.Background()

	reply, err := c.engine.Do(ctx, 0x0012, nil)
	require.NoError(t, err)
	require.Equal(t, []byte{7}, reply.Value)
	require.False(t, c.engine.InConfig())
	require.Equal(t, []uint16{comm.CmdEnableConfig, 0x0012, comm.CmdDisableConfig}, c.module.Received())

	// stays in configuration mode when entered explicitly.
	require.NoError(t, c.engine.EnableConfig(ctx))
	_, err = c.engine.Do(ctx, 0x0012, nil)
	require.NoError(t, err)
	require.True(t, c.engine.InConfig())
	require.NoError(t, c.engine.DisableConfig(ctx))
	require.Equal(t, 2, c.module.Count(comm.CmdDisableConfig))
}

func TestEngineWithConfigErrors(t *testing.T) {
	c := newEngineTestCtx(t)
	ctx := context.Background()

	errFn := errors.New("fn failed")
	err := c.engine.WithConfig(ctx, func(context.Context) error { return errFn })
	require.Equal(t, errFn, err)
	require.False(t, c.engine.InConfig())

	c.module.Mute(comm.CmdDisableConfig, true)
	err = c.engine.WithConfig(ctx, func(context.Context) error { return errFn })
	require.ErrorIs(t, err, errFn)
	require.ErrorIs(t, err, comm.ErrConfigExitTimeout)
	require.False(t, c.engine.InConfig())

	c.module.Mute(comm.CmdEnableConfig, true)
	var called bool
	err = c.engine.WithConfig(ctx, func(context.Context) error { called = true; return nil })
	require.ErrorIs(t, err, comm.ErrConfigEntryTimeout)
	require.False(t, called)
}

func TestEngineFirmware(t *testing.T) {
	e := NewEngine(nil, Options{Name: "x", Slots: 1})
	require.Empty(t, e.Firmware())
	e.SetFirmware("V1.02")
	require.Equal(t, "V1.02", e.Firmware())
}

func TestEngineConcurrentSessions(t *testing.T) {
	c := newEngineTestCtx(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var otherErr error
	started := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-started
		_, otherErr = c.engine.Do(ctx, 0x0012, nil)
	}()

	err := c.engine.WithConfig(ctx, func(ctx context.Context) error {
		close(started)
		for i := 0; i < 200; i++ {
			reply, err := c.engine.Seq.Do(ctx, 0x0012, nil)
			if err != nil {
				return err
			}
			if reply.Value[0] != 7 {
				return errors.New("unexpected reply")
			}
		}
		// nested calls join the session.
		_, err := c.engine.Do(ctx, 0x0012, nil)
		return err
	})
	require.NoError(t, err)
	wg.Wait()
	require.NoError(t, otherErr)
	require.False(t, c.engine.InConfig())
	require.Equal(t, 2, c.module.Count(comm.CmdEnableConfig))
	require.Equal(t, 2, c.module.Count(comm.CmdDisableConfig))
	require.Equal(t, 202, c.module.Count(0x0012))
}

func TestEngineSessionCancel(t *testing.T) {
	c := newEngineTestCtx(t)
	hold := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- c.engine.WithConfig(context.Background(), func(context.Context) error {
			<-hold
			return nil
		})
	}()
	require.Eventually(t, c.engine.InConfig, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.engine.Do(ctx, 0x0012, nil)
	require.Equal(t, context.DeadlineExceeded, err)
	close(hold)
	require.NoError(t, <-done)
}

func TestEngineRunSetupRetry(t *testing.T) {
	host, _ := transport.Pipe()
	e := NewEngine(host, Options{Name: "retry", Decoder: oneByteDistance, Slots: 1})
	e.SetupBackoff = 5 * time.Millisecond
	var calls int32
	errSetup := errors.New("setup failed")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- e.RunSetup(ctx, func(context.Context) error {
			if atomic.AddInt32(&calls, 1) < 3 {
				return errSetup
			}
			return nil
		})
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 3 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
	cancel()
	select {
	case err := <-done:
		require.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("run not stopped")
	}
}
