package comm

import "encoding/binary"

// ParseResult is the result after one parsing step.
type ParseResult struct {
	// Frame is set when a complete frame is received.
	Frame *Frame
	// Err reports a discarded frame. The parser is already resynchronized.
	Err error
}

type parseState int

const (
	stateHead parseState = iota
	stateLen
	stateData
	stateTail
)

// Parser assembles frames from received bytes.
type Parser struct {
	Layout Layout

	state  parseState
	kind   Kind
	pos    int
	lenBuf [3]byte
	data   []byte
	// raw keeps bytes of the pending frame from its head marker.
	raw []byte
}

// Receiving indicates a partial frame is pending.
func (p *Parser) Receiving() bool {
	return p.state != stateHead || p.pos > 0
}

// Reset drops any partial frame.
func (p *Parser) Reset() {
	p.state, p.pos, p.data = stateHead, 0, nil
	p.raw = p.raw[:0]
}

// Parse consumes one byte and returns frames completed or discarded by it.
// When a frame is discarded, the bytes after its first marker byte are
// scanned again, so a bogus header can't swallow the frames following it.
func (p *Parser) Parse(b byte) (results []ParseResult) {
	p.parse(b, &results)
	return
}

func (p *Parser) parse(b byte, results *[]ParseResult) {
	if p.state == stateHead {
		p.parseHead(b)
		return
	}
	p.raw = append(p.raw, b)
	switch p.state {
	case stateLen:
		p.lenBuf[p.pos] = b
		if p.pos++; p.pos < p.Layout.headerSize() {
			return
		}
		p.startData(results)
	case stateData:
		p.data[p.pos] = b
		if p.pos++; p.pos >= len(p.data) {
			p.state, p.pos = stateTail, 0
		}
	case stateTail:
		if b != p.kind.tail()[p.pos] {
			p.reject(&FrameSyncError{Kind: p.kind, Reason: "end marker mismatch"}, results)
			return
		}
		if p.pos++; p.pos >= 4 {
			*results = append(*results, ParseResult{Frame: &Frame{Kind: p.kind, Layout: p.Layout, Data: p.data}})
			p.Reset()
		}
	}
}

func (p *Parser) startData(results *[]ParseResult) {
	var code []byte
	size := int(binary.LittleEndian.Uint16(p.lenBuf[p.Layout.headerSize()-2:]))
	if p.Layout == LayoutTotal {
		if size < totalOverhead {
			p.reject(&FrameSyncError{Kind: p.kind, Reason: "invalid frame length"}, results)
			return
		}
		code, size = p.lenBuf[:1], size-totalOverhead
	}
	if size > MaxFrameData {
		p.reject(ErrFrameTooLong, results)
		return
	}
	p.data = make([]byte, len(code)+size)
	p.pos = copy(p.data, code)
	if p.pos >= len(p.data) {
		p.state, p.pos = stateTail, 0
	} else {
		p.state = stateData
	}
}

// reject discards the pending frame and rescans its bytes after the
// first marker byte.
func (p *Parser) reject(err error, results *[]ParseResult) {
	*results = append(*results, ParseResult{Err: err})
	replay := append([]byte(nil), p.raw[1:]...)
	p.Reset()
	for _, b := range replay {
		p.parse(b, results)
	}
}

func (p *Parser) parseHead(b byte) {
	if p.pos > 0 && b == p.kind.head()[p.pos] {
		p.raw = append(p.raw, b)
		if p.pos++; p.pos >= 4 {
			p.state, p.pos = stateLen, 0
		}
		return
	}
	// a mismatching byte may begin a new header.
	switch b {
	case commandHead[0]:
		p.kind, p.pos = KindCommand, 1
	case reportHead[0]:
		p.kind, p.pos = KindReport, 1
	default:
		p.pos = 0
	}
	p.raw = append(p.raw[:0], b)
}
