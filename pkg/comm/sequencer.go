package comm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang/glog"
)

// Commands shared by all modules to switch configuration mode.
const (
	CmdEnableConfig  uint16 = 0x00ff
	CmdDisableConfig uint16 = 0x00fe
)

// Default timeouts.
const (
	DefaultConfigTimeout  = 500 * time.Millisecond
	DefaultCommandTimeout = 500 * time.Millisecond
)

// State is the session state of a Sequencer.
type State int

// Session states.
const (
	StateIdle State = iota
	StateAwaitingConfigAck
	StateInConfig
	StateAwaitingReply
	StateAwaitingConfigExitAck
	// StateExchanging is a command outside configuration mode, used by
	// modules without one.
	StateExchanging
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingConfigAck:
		return "awaiting-config-ack"
	case StateInConfig:
		return "in-config"
	case StateAwaitingReply:
		return "awaiting-reply"
	case StateAwaitingConfigExitAck:
		return "awaiting-config-exit-ack"
	case StateExchanging:
		return "exchanging"
	}
	return "unknown"
}

// Sequencer issues commands one at a time and correlates replies.
// Frames received in normal mode are forwarded to Handler.
type Sequencer struct {
	Handler        FrameHandler
	ConfigTimeout  time.Duration
	CommandTimeout time.Duration

	link    *Link
	cmdLock sync.Mutex
	lock    sync.Mutex
	state   State
	pending *pendingCommand
}

type pendingCommand struct {
	code    uint16
	replyCh chan *Reply
}

// NewSequencer creates a Sequencer and takes over frames from the link.
func NewSequencer(link *Link) *Sequencer {
	s := &Sequencer{
		ConfigTimeout:  DefaultConfigTimeout,
		CommandTimeout: DefaultCommandTimeout,
		link:           link,
	}
	link.Handler = s
	return s
}

// Link gets wrapped Link.
func (s *Sequencer) Link() *Link {
	return s.link
}

// Available indicates the transport is still usable.
func (s *Sequencer) Available() bool {
	return s.link.Available()
}

// State gets the current session state.
func (s *Sequencer) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

// InConfig indicates the module is in configuration mode.
func (s *Sequencer) InConfig() bool {
	state := s.State()
	return state != StateIdle && state != StateExchanging
}

// Reset abandons any outstanding command and returns to idle.
func (s *Sequencer) Reset() {
	s.lock.Lock()
	s.state, s.pending = StateIdle, nil
	s.lock.Unlock()
}

func (s *Sequencer) setState(state State) {
	s.lock.Lock()
	s.state = state
	s.lock.Unlock()
}

// EnterConfig switches the module into configuration mode.
// It's a no-op if already in configuration mode.
func (s *Sequencer) EnterConfig(ctx context.Context) error {
	s.cmdLock.Lock()
	defer s.cmdLock.Unlock()
	s.lock.Lock()
	if s.state == StateInConfig {
		s.lock.Unlock()
		return nil
	}
	s.state = StateAwaitingConfigAck
	s.lock.Unlock()

	reply, err := s.roundTrip(ctx, CmdEnableConfig, []byte{0x01, 0x00}, s.ConfigTimeout, ErrConfigEntryTimeout)
	if err == nil {
		err = reply.Err()
	}
	if err != nil {
		s.Reset()
		if err == ErrConfigEntryTimeout {
			glog.Warningf("enter config: %v", err)
		}
		return err
	}
	s.setState(StateInConfig)
	glog.V(2).Info("config mode entered")
	return nil
}

// LeaveConfig switches the module back to normal mode.
// The session returns to idle even if the module doesn't acknowledge.
func (s *Sequencer) LeaveConfig(ctx context.Context) error {
	s.cmdLock.Lock()
	defer s.cmdLock.Unlock()
	s.lock.Lock()
	if s.state == StateIdle {
		s.lock.Unlock()
		return nil
	}
	s.state = StateAwaitingConfigExitAck
	s.lock.Unlock()

	reply, err := s.roundTrip(ctx, CmdDisableConfig, nil, s.ConfigTimeout, ErrConfigExitTimeout)
	s.Reset()
	if err != nil {
		if err == ErrConfigExitTimeout {
			glog.Warningf("leave config: %v, assume normal mode", err)
		}
		return err
	}
	glog.V(2).Info("config mode left")
	return reply.Err()
}

// Do sends a command in configuration mode and waits for its reply.
// A reply with non-zero status is returned together with a CommandError.
func (s *Sequencer) Do(ctx context.Context, code uint16, value []byte) (*Reply, error) {
	s.cmdLock.Lock()
	defer s.cmdLock.Unlock()
	s.lock.Lock()
	if s.state != StateInConfig {
		s.lock.Unlock()
		return nil, ErrNotInConfig
	}
	s.state = StateAwaitingReply
	s.lock.Unlock()

	reply, err := s.roundTrip(ctx, code, value, s.CommandTimeout, ErrCommandTimeout)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, ErrUnavailable) {
			s.Reset()
		} else {
			glog.Warningf("command 0x%04x: %v", code, err)
			s.setState(StateInConfig)
		}
		return nil, err
	}
	s.setState(StateInConfig)
	return reply, reply.Err()
}

// Exchange sends a command in normal mode and waits for its reply.
// Reports keep being forwarded meanwhile.
func (s *Sequencer) Exchange(ctx context.Context, code uint16, value []byte) (*Reply, error) {
	s.cmdLock.Lock()
	defer s.cmdLock.Unlock()
	s.lock.Lock()
	if s.state != StateIdle {
		s.lock.Unlock()
		return nil, ErrInConfig
	}
	s.state = StateExchanging
	s.lock.Unlock()

	reply, err := s.roundTrip(ctx, code, value, s.CommandTimeout, ErrCommandTimeout)
	s.Reset()
	if err != nil {
		if err == ErrCommandTimeout {
			glog.Warningf("command 0x%04x: %v", code, err)
		}
		return nil, err
	}
	return reply, reply.Err()
}

func (s *Sequencer) roundTrip(ctx context.Context, code uint16, value []byte, timeout time.Duration, timeoutErr error) (*Reply, error) {
	cmd := &pendingCommand{code: code, replyCh: make(chan *Reply, 1)}
	s.lock.Lock()
	s.pending = cmd
	s.lock.Unlock()
	defer func() {
		s.lock.Lock()
		if s.pending == cmd {
			s.pending = nil
		}
		s.lock.Unlock()
	}()

	if err := s.link.Send(s.link.Layout.EncodeCommand(code, value)); err != nil {
		return nil, err
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case reply := <-cmd.replyCh:
		return reply, nil
	case <-timer.C:
		return nil, timeoutErr
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// HandleFrame implements FrameHandler.
func (s *Sequencer) HandleFrame(ctx context.Context, f *Frame) {
	if f.Kind == KindReport {
		if s.InConfig() {
			glog.V(4).Info("drop report frame in config mode")
			return
		}
		s.forward(ctx, f)
		return
	}

	layout := s.link.Layout
	code, value, err := layout.DecodeCommand(f)
	if err != nil {
		glog.Warningf("discard frame: %v", err)
		return
	}
	s.lock.Lock()
	state, cmd := s.state, s.pending
	if state == StateIdle {
		s.lock.Unlock()
		s.forward(ctx, f)
		return
	}
	if cmd == nil {
		s.lock.Unlock()
		glog.V(2).Infof("discard unsolicited reply 0x%04x", code)
		return
	}
	if want := layout.ReplyCode(cmd.code); code != want {
		s.lock.Unlock()
		glog.Warningf("discard reply: %v", &CommandMismatch{Want: want, Got: code})
		return
	}
	s.pending = nil
	s.lock.Unlock()
	cmd.replyCh <- layout.DecodeReply(code, value)
}

func (s *Sequencer) forward(ctx context.Context, f *Frame) {
	if h := s.Handler; h != nil {
		h.HandleFrame(ctx, f)
	}
}

// Run wraps Link.Run to implement Runnable.
func (s *Sequencer) Run(ctx context.Context) error {
	return s.link.Run(ctx)
}
