// Package device wires a radar module's protocol stack together.
package device

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/radar.go/pkg/comm"
	fx "github.com/robotalks/radar.go/pkg/framework"
	"github.com/robotalks/radar.go/pkg/telemetry"
)

// ReportHandler is notified after a report is applied to the store.
type ReportHandler func(*telemetry.Report, *telemetry.Updates)

// Engine owns the link, sequencer and telemetry of one module.
type Engine struct {
	Name    string
	Seq     *comm.Sequencer
	Store   *telemetry.Store
	Tracker *telemetry.Tracker
	Decoder telemetry.Decoder
	// ReportKind is the frame kind carrying reports.
	ReportKind comm.Kind
	OnReport   ReportHandler
	// Now is the clock, time.Now if nil.
	Now func() time.Time
	// SetupBackoff is the first delay before retrying a failed setup.
	SetupBackoff time.Duration

	// session is held through a whole configuration session.
	session  chan struct{}
	lock     sync.RWMutex
	reports  uint64
	errors   uint64
	firmware string
}

// Options configures a new Engine.
type Options struct {
	Name       string
	Decoder    telemetry.Decoder
	ReportKind comm.Kind
	Slots      int
	Window     time.Duration
	// Layout is the framing on the wire.
	Layout comm.Layout
}

// Setup backoff bounds.
const (
	DefaultSetupBackoff = time.Second
	MaxSetupBackoff     = 30 * time.Second
)

type sessionKey struct{}

// NewEngine creates an Engine over a byte stream.
func NewEngine(rw io.ReadWriter, opts Options) *Engine {
	store := telemetry.NewStore(opts.Slots)
	link := comm.NewLink(rw)
	link.Layout = opts.Layout
	e := &Engine{
		Name:         opts.Name,
		Seq:          comm.NewSequencer(link),
		Store:        store,
		Tracker:      telemetry.NewTracker(store, opts.Window),
		Decoder:      opts.Decoder,
		ReportKind:   opts.ReportKind,
		SetupBackoff: DefaultSetupBackoff,
		session:      make(chan struct{}, 1),
	}
	e.Seq.Handler = e
	return e
}

// Time returns current time from the engine clock.
func (e *Engine) Time() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Firmware returns the firmware version read last time.
func (e *Engine) Firmware() string {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.firmware
}

// SetFirmware caches the firmware version.
func (e *Engine) SetFirmware(ver string) {
	e.lock.Lock()
	e.firmware = ver
	e.lock.Unlock()
}

// Available indicates the transport is still usable.
func (e *Engine) Available() bool {
	return e.Seq.Available()
}

// Stats returns the number of reports applied and rejected.
func (e *Engine) Stats() (reports, errors uint64) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.reports, e.errors
}

// HandleFrame implements comm.FrameHandler for frames received in normal mode.
func (e *Engine) HandleFrame(ctx context.Context, f *comm.Frame) {
	if f.Kind != e.ReportKind {
		glog.V(2).Infof("%s: ignore %s frame in normal mode", e.Name, f.Kind)
		return
	}
	rep, err := e.Decoder.Decode(f.Data, e.Time())
	e.lock.Lock()
	if err != nil {
		e.errors++
	} else {
		e.reports++
	}
	e.lock.Unlock()
	if err != nil {
		glog.Warningf("%s: discard report: %v", e.Name, err)
		return
	}
	updates := e.Store.Apply(rep)
	if h := e.OnReport; h != nil {
		h(rep, updates)
	}
}

// lockSession waits for the session. The returned context carries the
// ownership, so calls nested in the session don't wait again.
func (e *Engine) lockSession(ctx context.Context) (context.Context, func(), error) {
	if ctx.Value(sessionKey{}) == e {
		return ctx, func() {}, nil
	}
	select {
	case e.session <- struct{}{}:
	case <-ctx.Done():
		return ctx, nil, ctx.Err()
	}
	return context.WithValue(ctx, sessionKey{}, e), func() { <-e.session }, nil
}

// WithConfig runs fn in configuration mode. If not already in configuration
// mode, it's entered before fn and left after fn. Sessions from concurrent
// callers are serialized.
func (e *Engine) WithConfig(ctx context.Context, fn func(context.Context) error) error {
	ctx, unlock, err := e.lockSession(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	if e.Seq.State() == comm.StateInConfig {
		return fn(ctx)
	}
	if err := e.Seq.EnterConfig(ctx); err != nil {
		return err
	}
	var errs fx.AggregatedError
	errs.Add(fn(ctx))
	if ctx.Err() == nil {
		errs.Add(e.Seq.LeaveConfig(ctx))
	} else {
		e.Seq.Reset()
	}
	if len(errs.Errors) == 1 {
		return errs.Errors[0]
	}
	return errs.Aggregate()
}

// Do sends a command, wrapped in configuration mode if needed.
func (e *Engine) Do(ctx context.Context, code uint16, value []byte) (reply *comm.Reply, err error) {
	err = e.WithConfig(ctx, func(ctx context.Context) error {
		reply, err = e.Seq.Do(ctx, code, value)
		return err
	})
	return
}

// WithSession runs fn holding the session, for command sequences of
// modules without configuration mode.
func (e *Engine) WithSession(ctx context.Context, fn func(context.Context) error) error {
	ctx, unlock, err := e.lockSession(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	return fn(ctx)
}

// Send writes a command which has no reply.
func (e *Engine) Send(ctx context.Context, code uint16, value []byte) error {
	_, unlock, err := e.lockSession(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	link := e.Seq.Link()
	return link.Send(link.Layout.EncodeCommand(code, value))
}

// Exchange sends a command in normal mode for modules without
// configuration mode.
func (e *Engine) Exchange(ctx context.Context, code uint16, value []byte) (*comm.Reply, error) {
	_, unlock, err := e.lockSession(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return e.Seq.Exchange(ctx, code, value)
}

// EnableConfig enters configuration mode.
func (e *Engine) EnableConfig(ctx context.Context) error {
	ctx, unlock, err := e.lockSession(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	return e.Seq.EnterConfig(ctx)
}

// DisableConfig leaves configuration mode.
func (e *Engine) DisableConfig(ctx context.Context) error {
	ctx, unlock, err := e.lockSession(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	return e.Seq.LeaveConfig(ctx)
}

// InConfig indicates configuration mode.
func (e *Engine) InConfig() bool {
	return e.Seq.InConfig()
}

// Snapshot reads all slots now.
func (e *Engine) Snapshot() *telemetry.Snapshot {
	return e.Tracker.Snapshot(e.Time())
}

// TargetNumber gets the fresh number of targets.
func (e *Engine) TargetNumber() (int, bool) {
	return e.Tracker.TargetNumber(e.Time())
}

// Read gets a fresh attribute of a slot.
func (e *Engine) Read(slot int, attr telemetry.Attr) (float64, bool) {
	return e.Tracker.Read(slot, attr, e.Time())
}

// RunSetup pumps the link like Run and calls setup until it succeeds.
// Retries back off from SetupBackoff up to MaxSetupBackoff, and stop when
// the link is no longer usable.
func (e *Engine) RunSetup(ctx context.Context, setup func(context.Context) error) error {
	errCh := make(chan error, 1)
	go func() { errCh <- e.Run(ctx) }()
	backoff := e.SetupBackoff
	if backoff <= 0 {
		backoff = DefaultSetupBackoff
	}
	for {
		err := setup(ctx)
		if err == nil || ctx.Err() != nil || !e.Available() {
			break
		}
		glog.Warningf("%s: setup failed: %v, retry in %v", e.Name, err, backoff)
		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return <-errCh
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, MaxSetupBackoff)
	}
	return <-errCh
}

// Run implements Runnable.
func (e *Engine) Run(ctx context.Context) error {
	glog.Infof("%s: started", e.Name)
	err := e.Seq.Run(ctx)
	if err != nil && err != context.Canceled {
		glog.Errorf("%s: stopped: %v", e.Name, err)
	}
	return err
}
