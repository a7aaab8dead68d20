package transport

import (
	"net"
	"net/url"
	"time"

	"golang.org/x/net/websocket"
)

// DialTimeout bounds connecting to network bridges.
const DialTimeout = 5 * time.Second

// DialTCP connects to a serial-over-TCP bridge (e.g. ser2net).
func DialTCP(u *url.URL) (net.Conn, error) {
	return net.DialTimeout("tcp", u.Host, DialTimeout)
}

// DialWebsocket connects to a serial-over-websocket bridge.
// Bytes are exchanged as binary frames.
func DialWebsocket(u *url.URL) (*websocket.Conn, error) {
	origin := "http://localhost/"
	if u.Scheme == "wss" {
		origin = "https://localhost/"
	}
	conn, err := websocket.Dial(u.String(), "", origin)
	if err != nil {
		return nil, err
	}
	conn.PayloadType = websocket.BinaryFrame
	return conn, nil
}
