package comm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type parseOutcome struct {
	frames []*Frame
	errs   []error
}

func parseAll(p *Parser, in ...[]byte) (out parseOutcome) {
	for _, chunk := range in {
		for _, b := range chunk {
			for _, pr := range p.Parse(b) {
				if pr.Frame != nil {
					out.frames = append(out.frames, pr.Frame)
				}
				if pr.Err != nil {
					out.errs = append(out.errs, pr.Err)
				}
			}
		}
	}
	return
}

func reportBytes(data ...byte) []byte {
	return (&Frame{Kind: KindReport, Data: data}).Bytes()
}

func commandBytes(code uint16, value ...byte) []byte {
	return EncodeCommand(code, value).Bytes()
}

func TestParser(t *testing.T) {
	testCases := []struct {
		name   string
		in     [][]byte
		frames []*Frame
		errs   int
	}{
		{
			name: "garbage before frames",
			in: [][]byte{
				{0x00, 0x11, 0xfd, 0x22, 0xf4, 0xf3, 0x99},
				reportBytes(1, 0, 0x80, 10, 1, 20, 50),
				{0xaa, 0xbb},
				commandBytes(0x01ff, 0, 0),
			},
			frames: []*Frame{
				{Kind: KindReport, Data: []byte{1, 0, 0x80, 10, 1, 20, 50}},
				{Kind: KindCommand, Data: []byte{0xff, 0x01, 0, 0}},
			},
		},
		{
			name: "header restarts from offending byte",
			in: [][]byte{
				{0xfd, 0xfc},
				commandBytes(0x01fe, 0, 0),
			},
			frames: []*Frame{{Kind: KindCommand, Data: []byte{0xfe, 0x01, 0, 0}}},
		},
		{
			name: "report header inside command header",
			in: [][]byte{
				{0xfd, 0xfc, 0xfb},
				reportBytes(),
			},
			frames: []*Frame{{Kind: KindReport, Data: []byte{}}},
		},
		{
			name: "empty report",
			in:   [][]byte{reportBytes()},
			frames: []*Frame{{Kind: KindReport, Data: []byte{}}},
		},
		{
			name: "frame too long",
			in: [][]byte{
				{0xf4, 0xf3, 0xf2, 0xf1, 0x01, 0x01},
				reportBytes(0, 0),
			},
			frames: []*Frame{{Kind: KindReport, Data: []byte{0, 0}}},
			errs:   1,
		},
		{
			name: "end marker mismatch",
			in: [][]byte{
				{0xf4, 0xf3, 0xf2, 0xf1, 0x01, 0x00, 0x07, 0xf8, 0xf7, 0x00},
				reportBytes(3),
			},
			frames: []*Frame{{Kind: KindReport, Data: []byte{3}}},
			errs:   1,
		},
		{
			name: "end marker mismatch starts new header",
			in: [][]byte{
				{0xf4, 0xf3, 0xf2, 0xf1, 0x01, 0x00, 0x07, 0xf8},
				commandBytes(0x01a3, 0, 0),
			},
			frames: []*Frame{{Kind: KindCommand, Data: []byte{0xa3, 0x01, 0, 0}}},
			errs:   1,
		},
		{
			name: "truncated header inside garbage",
			in: [][]byte{
				reportBytes(1),
				{0xf4, 0xf3, 0xf2, 0xf1, 0x10, 0x00, 0x01},
				reportBytes(2),
				reportBytes(3),
			},
			frames: []*Frame{
				{Kind: KindReport, Data: []byte{1}},
				{Kind: KindReport, Data: []byte{2}},
				{Kind: KindReport, Data: []byte{3}},
			},
			errs: 1,
		},
		{
			name: "frame inside rejected too long frame",
			in: [][]byte{
				{0xfd, 0xfc, 0xfb, 0xfa, 0xf4, 0xf3},
				{0xf2, 0xf1, 0x00, 0x00, 0xf8, 0xf7, 0xf6, 0xf5},
			},
			frames: []*Frame{{Kind: KindReport, Data: []byte{}}},
			errs:   1,
		},
		{
			name: "truncated frame never emitted",
			in: [][]byte{
				{0xfd, 0xfc, 0xfb, 0xfa, 0x04, 0x00, 0xff, 0x01},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var p Parser
			out := parseAll(&p, tc.in...)
			require.Equal(t, tc.frames, out.frames)
			require.Len(t, out.errs, tc.errs)
		})
	}
}

func TestParserTotalLayout(t *testing.T) {
	testCases := []struct {
		name   string
		in     [][]byte
		frames []*Frame
		errs   int
	}{
		{
			name: "command",
			in:   [][]byte{{0xfd, 0xfc, 0xfb, 0xfa, 0x0a, 0x0c, 0x00, 0x01, 0x04, 0x03, 0x02, 0x01}},
			frames: []*Frame{
				{Kind: KindCommand, Layout: LayoutTotal, Data: []byte{0x0a, 0x01}},
			},
		},
		{
			name: "report after garbage",
			in: [][]byte{
				{0x55, 0xf4, 0x00},
				{0xf4, 0xf3, 0xf2, 0xf1, 0x04, 0x0f, 0x00, 0x0a, 0x00, 0x14, 0x00, 0xf8, 0xf7, 0xf6, 0xf5},
			},
			frames: []*Frame{
				{Kind: KindReport, Layout: LayoutTotal, Data: []byte{0x04, 0x0a, 0x00, 0x14, 0x00}},
			},
		},
		{
			name: "length below overhead",
			in: [][]byte{
				{0xf4, 0xf3, 0xf2, 0xf1, 0x04, 0x05, 0x00},
				{0xfd, 0xfc, 0xfb, 0xfa, 0x0d, 0x0b, 0x00, 0x04, 0x03, 0x02, 0x01},
			},
			frames: []*Frame{
				{Kind: KindCommand, Layout: LayoutTotal, Data: []byte{0x0d}},
			},
			errs: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := Parser{Layout: LayoutTotal}
			out := parseAll(&p, tc.in...)
			require.Equal(t, tc.frames, out.frames)
			require.Len(t, out.errs, tc.errs)
		})
	}
}

func TestParserErrors(t *testing.T) {
	var p Parser
	out := parseAll(&p, []byte{0xf4, 0xf3, 0xf2, 0xf1, 0x01, 0x00, 0x07, 0x00})
	require.Len(t, out.errs, 1)
	var syncErr *FrameSyncError
	require.ErrorAs(t, out.errs[0], &syncErr)
	require.Equal(t, KindReport, syncErr.Kind)

	out = parseAll(&p, []byte{0xfd, 0xfc, 0xfb, 0xfa, 0xff, 0xff})
	require.Equal(t, []error{ErrFrameTooLong}, out.errs)
	require.False(t, p.Receiving())
}

func TestParserReset(t *testing.T) {
	var p Parser
	out := parseAll(&p, []byte{0xfd, 0xfc, 0xfb, 0xfa, 0x04, 0x00, 0xff})
	require.Empty(t, out.frames)
	require.True(t, p.Receiving())
	p.Reset()
	require.False(t, p.Receiving())
	out = parseAll(&p, []byte{0x01, 0x00, 0x00}, commandBytes(0x01ff, 0, 0))
	require.Len(t, out.frames, 1)
}
