package comm

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
)

// FrameHandler is called when a frame is received.
type FrameHandler interface {
	HandleFrame(context.Context, *Frame)
}

// HandleFrameFunc is func type of FrameHandler.
type HandleFrameFunc func(context.Context, *Frame)

// HandleFrame implements FrameHandler.
func (f HandleFrameFunc) HandleFrame(ctx context.Context, frame *Frame) {
	f(ctx, frame)
}

// DefaultFrameTimeout is the max gap between bytes of a single frame.
const DefaultFrameTimeout = 100 * time.Millisecond

// Link sends and receives frames over a byte stream.
type Link struct {
	ReadWriter io.ReadWriter
	Handler    FrameHandler
	// Layout is the framing of both directions.
	Layout Layout
	// FrameTimeout drops a partial frame if no more bytes arrive in time.
	FrameTimeout time.Duration
	// ReadSize is the max number of bytes read at once.
	ReadSize int

	sendLock  sync.Mutex
	parseLock sync.Mutex
	parser    Parser
	err       error
	lock      sync.RWMutex
}

// NewLink creates a Link.
func NewLink(rw io.ReadWriter) *Link {
	return &Link{
		ReadWriter:   rw,
		FrameTimeout: DefaultFrameTimeout,
		ReadSize:     64,
	}
}

// Available indicates the transport is still usable.
func (l *Link) Available() bool {
	return l.Err() == nil
}

// Err returns the transport failure if any.
func (l *Link) Err() error {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.err
}

func (l *Link) fail(err error) {
	l.lock.Lock()
	if l.err == nil {
		l.err = err
		glog.Errorf("link unavailable: %v", err)
	}
	l.lock.Unlock()
}

// Send writes a frame.
func (l *Link) Send(f *Frame) error {
	if !l.Available() {
		return ErrUnavailable
	}
	l.sendLock.Lock()
	defer l.sendLock.Unlock()
	if glog.V(4) {
		glog.Infof("send % x", f.Bytes())
	}
	if _, err := f.WriteTo(l.ReadWriter); err != nil {
		l.fail(err)
		return ErrUnavailable
	}
	return nil
}

// Feed parses bytes delivered by a push-style transport.
// It returns true if a partial frame is pending.
func (l *Link) Feed(ctx context.Context, p []byte) bool {
	l.parseLock.Lock()
	l.parser.Layout = l.Layout
	var frames []*Frame
	for _, b := range p {
		for _, pr := range l.parser.Parse(b) {
			if pr.Err != nil {
				glog.Warningf("discard frame: %v", pr.Err)
			}
			if pr.Frame != nil {
				frames = append(frames, pr.Frame)
			}
		}
	}
	receiving := l.parser.Receiving()
	l.parseLock.Unlock()

	if h := l.Handler; h != nil {
		for _, f := range frames {
			if glog.V(4) {
				glog.Infof("recv %s frame % x", f.Kind, f.Data)
			}
			h.HandleFrame(ctx, f)
		}
	}
	return receiving
}

// Expire drops a partial frame.
func (l *Link) Expire() {
	l.parseLock.Lock()
	if l.parser.Receiving() {
		glog.V(2).Info("partial frame expired")
	}
	l.parser.Reset()
	l.parseLock.Unlock()
}

// Run reads from the stream until the context is canceled or read fails.
// The stream is closed on return if it implements io.Closer.
func (l *Link) Run(ctx context.Context) error {
	chunkCh, errCh := make(chan []byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if closer, ok := l.ReadWriter.(io.Closer); ok {
		defer closer.Close()
	}
	go l.readLoop(subCtx, chunkCh, errCh)

	var frameTimer <-chan time.Time
	for {
		select {
		case chunk := <-chunkCh:
			if l.Feed(ctx, chunk) && l.FrameTimeout > 0 {
				frameTimer = time.After(l.FrameTimeout)
			} else {
				frameTimer = nil
			}
		case <-frameTimer:
			l.Expire()
			frameTimer = nil
		case err := <-errCh:
			l.fail(err)
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Link) readLoop(ctx context.Context, chunkCh chan []byte, errCh chan error) {
	size := l.ReadSize
	if size <= 0 {
		size = 64
	}
	buf := make([]byte, size)
	for {
		n, err := l.ReadWriter.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case chunkCh <- chunk:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			errCh <- err
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}
