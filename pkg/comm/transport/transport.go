// Package transport opens byte streams to radar modules.
package transport

import (
	"fmt"
	"io"
	"net/url"
)

// Open opens a byte stream by URL. Supported schemes:
//
//	serial:///dev/ttyUSB0?baud=115200
//	tcp://host:port
//	ws://host:port/path
//	mqtt://host:1883/prefix/  (subscribes prefix+"rx", publishes prefix+"tx")
func Open(rawURL string) (io.ReadWriteCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid transport URL: %w", err)
	}
	var rw io.ReadWriteCloser
	switch u.Scheme {
	case "serial", "":
		rw, err = OpenSerial(u)
	case "tcp":
		rw, err = DialTCP(u)
	case "ws", "wss":
		rw, err = DialWebsocket(u)
	case "mqtt", "mqtts":
		rw, err = DialMQTT(rawURL)
	default:
		return nil, fmt.Errorf("unknown transport URL scheme: %q", u.Scheme)
	}
	if err != nil {
		return nil, err
	}
	return rw, nil
}
