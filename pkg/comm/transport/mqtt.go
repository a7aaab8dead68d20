package transport

import (
	"context"
	"io"
	"sync"

	"github.com/robotalks/radar.go/pkg/mqtt"
)

// Topics used by an MQTT serial bridge, relative to the URL prefix.
const (
	MQTTRxTopic = "rx"
	MQTTTxTopic = "tx"
)

// MQTTStream exchanges bytes with a serial bridge over MQTT.
type MQTTStream struct {
	Queue *mqtt.Queue

	sub     *mqtt.Subscription
	chunkCh chan []byte
	pending []byte
	closeCh chan struct{}
	once    sync.Once
}

// NewMQTTStream creates a stream over a Queue and subscribes the rx topic.
func NewMQTTStream(q *mqtt.Queue) *MQTTStream {
	s := &MQTTStream{
		Queue:   q,
		chunkCh: make(chan []byte, 16),
		closeCh: make(chan struct{}),
	}
	s.sub = q.Sub(MQTTRxTopic, s.handleMsg)
	return s
}

// DialMQTT connects to the broker and creates the stream.
func DialMQTT(brokerURL string) (*MQTTStream, error) {
	q, err := mqtt.NewQueueFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	s := NewMQTTStream(q)
	ctx, cancel := context.WithTimeout(context.Background(), DialTimeout)
	defer cancel()
	if err := mqtt.Wait(ctx, q.Connect()); err != nil {
		q.Close()
		return nil, err
	}
	return s, nil
}

func (s *MQTTStream) handleMsg(_ string, payload []byte) {
	chunk := make([]byte, len(payload))
	copy(chunk, payload)
	select {
	case s.chunkCh <- chunk:
	case <-s.closeCh:
	}
}

// Read implements io.Reader.
func (s *MQTTStream) Read(p []byte) (int, error) {
	if len(s.pending) == 0 {
		select {
		case s.pending = <-s.chunkCh:
		case <-s.closeCh:
			return 0, io.EOF
		}
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// Write implements io.Writer.
func (s *MQTTStream) Write(p []byte) (int, error) {
	token := s.Queue.Pub(MQTTTxTopic, p)
	token.Wait()
	if err := token.Error(); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close implements io.Closer.
func (s *MQTTStream) Close() error {
	s.once.Do(func() {
		close(s.closeCh)
		s.sub.Close()
		s.Queue.Close()
	})
	return nil
}
