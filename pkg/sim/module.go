// Package sim simulates radar modules speaking the UART protocol.
package sim

import (
	"context"
	"encoding/binary"
	"io"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/radar.go/pkg/comm"
)

// CommandFunc handles a command in configuration mode and returns
// the ACK status and reply value. Modules using comm.LayoutTotal have no
// configuration mode, the status isn't sent and a nil value means no reply.
type CommandFunc func(value []byte) (status uint16, reply []byte)

// Module is a simulated module on the device side of a byte stream.
type Module struct {
	Name       string
	ReadWriter io.ReadWriter
	Handlers   map[uint16]CommandFunc
	ReportKind comm.Kind
	Layout     comm.Layout

	lock     sync.Mutex
	writeMu  sync.Mutex
	inConfig bool
	received []uint16
	muted    map[uint16]bool
}

// NewModule creates a Module with handlers for configuration mode.
func NewModule(name string, rw io.ReadWriter, reportKind comm.Kind) *Module {
	return &Module{
		Name:       name,
		ReadWriter: rw,
		Handlers:   make(map[uint16]CommandFunc),
		ReportKind: reportKind,
		muted:      make(map[uint16]bool),
	}
}

// Mute drops replies to a command, simulating a lost ACK.
func (m *Module) Mute(code uint16, mute bool) {
	m.lock.Lock()
	m.muted[code] = mute
	m.lock.Unlock()
}

// InConfig indicates the module is in configuration mode.
func (m *Module) InConfig() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.inConfig
}

// Received returns command words received so far.
func (m *Module) Received() []uint16 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]uint16(nil), m.received...)
}

// Count counts how many times a command was received.
func (m *Module) Count(code uint16) (n int) {
	for _, c := range m.Received() {
		if c == code {
			n++
		}
	}
	return
}

// Report sends a report frame unless in configuration mode.
func (m *Module) Report(data []byte) error {
	if m.InConfig() {
		return nil
	}
	return m.write(&comm.Frame{Kind: m.ReportKind, Layout: m.Layout, Data: data})
}

func (m *Module) write(f *comm.Frame) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_, err := f.WriteTo(m.ReadWriter)
	return err
}

func (m *Module) reply(code, status uint16, value []byte) error {
	if m.Layout == comm.LayoutTotal {
		return m.write(m.Layout.EncodeCommand(code, value))
	}
	data := binary.LittleEndian.AppendUint16(nil, status)
	return m.write(comm.EncodeCommand(code|comm.ReplyFlag, append(data, value...)))
}

func (m *Module) handleCommand(code uint16, value []byte) error {
	m.lock.Lock()
	m.received = append(m.received, code)
	inConfig := m.inConfig
	var status uint16
	var reply []byte
	respond := true
	switch {
	case m.Layout == comm.LayoutTotal:
		if h := m.Handlers[code]; h != nil {
			status, reply = h(value)
		}
		respond = reply != nil
	case code == comm.CmdEnableConfig:
		m.inConfig = true
		// protocol version and buffer size.
		reply = []byte{0x01, 0x00, 0x40, 0x00}
	case code == comm.CmdDisableConfig:
		m.inConfig = false
	default:
		if h := m.Handlers[code]; !inConfig {
			respond = false
		} else if h == nil {
			status = 1
		} else {
			status, reply = h(value)
		}
	}
	if m.muted[code] {
		respond = false
	}
	m.lock.Unlock()
	if !respond {
		glog.V(2).Infof("%s: no reply to 0x%04x", m.Name, code)
		return nil
	}
	return m.reply(code, status, reply)
}

// Run reads commands until the stream fails or the context is canceled.
func (m *Module) Run(ctx context.Context) error {
	link := comm.NewLink(m.ReadWriter)
	link.Layout = m.Layout
	link.Handler = comm.HandleFrameFunc(func(ctx context.Context, f *comm.Frame) {
		if f.Kind != comm.KindCommand {
			return
		}
		code, value, err := m.Layout.DecodeCommand(f)
		if err != nil {
			return
		}
		if err := m.handleCommand(code, value); err != nil {
			glog.Warningf("%s: reply 0x%04x: %v", m.Name, code, err)
		}
	})
	return link.Run(ctx)
}
