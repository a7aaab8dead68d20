package comm

import (
	"encoding/binary"
	"io"
)

// Kind identifies the frame type by its markers.
type Kind int

// Frame kinds.
const (
	KindCommand Kind = iota
	KindReport
)

// MaxFrameData is the upper bound of the length field accepted by the parser.
const MaxFrameData = 256

// Layout is the framing between the markers.
type Layout int

// Frame layouts.
const (
	// LayoutLength frames carry a 2-byte data length after the head marker.
	LayoutLength Layout = iota
	// LayoutTotal frames carry a 1-byte command and a 2-byte length of the
	// whole frame, markers included. The command is the first byte of Data.
	LayoutTotal
)

// totalOverhead is the size of a LayoutTotal frame without data.
const totalOverhead = 11

// String implements fmt.Stringer.
func (l Layout) String() string {
	if l == LayoutTotal {
		return "total"
	}
	return "length"
}

// headerSize is the number of bytes between the head marker and data.
func (l Layout) headerSize() int {
	if l == LayoutTotal {
		return 3
	}
	return 2
}

// EncodeCommand builds a command frame of the layout.
func (l Layout) EncodeCommand(code uint16, value []byte) *Frame {
	if l == LayoutTotal {
		data := make([]byte, 1, len(value)+1)
		data[0] = byte(code)
		return &Frame{Kind: KindCommand, Layout: l, Data: append(data, value...)}
	}
	return EncodeCommand(code, value)
}

// DecodeCommand extracts the command and value from a frame of the layout.
func (l Layout) DecodeCommand(f *Frame) (code uint16, value []byte, err error) {
	if l == LayoutTotal {
		if len(f.Data) < 1 {
			return 0, nil, ErrShortCommand
		}
		return uint16(f.Data[0]), f.Data[1:], nil
	}
	return DecodeCommand(f)
}

// ReplyCode is the command in the reply to code.
func (l Layout) ReplyCode(code uint16) uint16 {
	if l == LayoutTotal {
		return code
	}
	return code | ReplyFlag
}

// DecodeReply decodes the value of a reply frame. LayoutTotal replies
// carry no ACK status.
func (l Layout) DecodeReply(code uint16, value []byte) *Reply {
	if l == LayoutTotal {
		return &Reply{Code: code, Value: value}
	}
	return DecodeReply(code, value)
}

// ReplyFlag is set in the command word of a reply.
const ReplyFlag uint16 = 0x0100

var (
	commandHead = [4]byte{0xfd, 0xfc, 0xfb, 0xfa}
	commandTail = [4]byte{0x04, 0x03, 0x02, 0x01}
	reportHead  = [4]byte{0xf4, 0xf3, 0xf2, 0xf1}
	reportTail  = [4]byte{0xf8, 0xf7, 0xf6, 0xf5}
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindReport:
		return "report"
	}
	return "unknown"
}

func (k Kind) head() []byte {
	if k == KindReport {
		return reportHead[:]
	}
	return commandHead[:]
}

func (k Kind) tail() []byte {
	if k == KindReport {
		return reportTail[:]
	}
	return commandTail[:]
}

// Frame is a complete frame without markers and length.
type Frame struct {
	Kind   Kind
	Layout Layout
	Data   []byte
}

// Bytes returns encoded bytes for sending.
func (f *Frame) Bytes() []byte {
	b := make([]byte, 0, len(f.Data)+totalOverhead)
	b = append(b, f.Kind.head()...)
	if f.Layout == LayoutTotal && len(f.Data) > 0 {
		b = append(b, f.Data[0])
		b = binary.LittleEndian.AppendUint16(b, uint16(len(f.Data)-1+totalOverhead))
		b = append(b, f.Data[1:]...)
	} else {
		b = binary.LittleEndian.AppendUint16(b, uint16(len(f.Data)))
		b = append(b, f.Data...)
	}
	return append(b, f.Kind.tail()...)
}

// WriteTo writes encoded bytes in a single write.
func (f *Frame) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(f.Bytes())
	return int64(n), err
}

// EncodeCommand builds a command frame from a command word and its value.
func EncodeCommand(code uint16, value []byte) *Frame {
	data := make([]byte, 2, len(value)+2)
	binary.LittleEndian.PutUint16(data, code)
	return &Frame{Kind: KindCommand, Data: append(data, value...)}
}

// DecodeCommand extracts the command word and value from a command frame.
func DecodeCommand(f *Frame) (code uint16, value []byte, err error) {
	if len(f.Data) < 2 {
		return 0, nil, ErrShortCommand
	}
	return binary.LittleEndian.Uint16(f.Data), f.Data[2:], nil
}

// Reply is a decoded reply to a command.
type Reply struct {
	// Code is the command word of the request, without ReplyFlag.
	Code   uint16
	Status uint16
	Value  []byte
}

// Err returns a CommandError if the ACK status is not success.
func (r *Reply) Err() error {
	if r.Status != 0 {
		return &CommandError{Code: r.Code, Status: r.Status}
	}
	return nil
}

// DecodeReply decodes reply data after the command word.
func DecodeReply(code uint16, value []byte) *Reply {
	r := &Reply{Code: code &^ ReplyFlag}
	if len(value) >= 2 {
		r.Status = binary.LittleEndian.Uint16(value)
		r.Value = value[2:]
	} else {
		r.Value = value
	}
	return r
}
