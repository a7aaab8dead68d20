package transport

import "io"

// PipeEnd is one end of an in-memory byte stream.
type PipeEnd struct {
	io.Reader
	io.Writer

	r *io.PipeReader
	w *io.PipeWriter
}

// Close closes both directions.
func (p *PipeEnd) Close() error {
	p.w.Close()
	return p.r.Close()
}

// Pipe creates a connected pair of byte streams, e.g. host and simulated module.
func Pipe() (*PipeEnd, *PipeEnd) {
	r1, w1 := io.Pipe()
	r2, w2 := io.Pipe()
	return &PipeEnd{Reader: r1, Writer: w2, r: r1, w: w2},
		&PipeEnd{Reader: r2, Writer: w1, r: r2, w: w1}
}
