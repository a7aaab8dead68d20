package transport

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/tarm/serial"
)

// DefaultBaudRate is the factory baud rate of the modules.
const DefaultBaudRate = 115200

// SerialReadTimeout bounds each read so the port can be closed.
const SerialReadTimeout = 100 * time.Millisecond

// WithBaud adds baud to a serial URL which doesn't specify one.
// Other URLs are returned unchanged.
func WithBaud(rawURL string, baud int) string {
	u, err := url.Parse(rawURL)
	if err != nil || baud <= 0 || (u.Scheme != "serial" && u.Scheme != "") {
		return rawURL
	}
	q := u.Query()
	if q.Get("baud") != "" {
		return rawURL
	}
	q.Set("baud", strconv.Itoa(baud))
	u.RawQuery = q.Encode()
	return u.String()
}

// SerialConfig builds the port config (8N1) from a serial URL.
func SerialConfig(u *url.URL) (*serial.Config, error) {
	name := u.Host + u.Path
	if name == "" {
		name = u.Opaque
	}
	if name == "" {
		return nil, fmt.Errorf("serial port name missing")
	}
	baud := DefaultBaudRate
	if val := u.Query().Get("baud"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil || n < 4800 || n > 921600 {
			return nil, fmt.Errorf("invalid baud rate %q", val)
		}
		baud = n
	}
	return &serial.Config{
		Name:        name,
		Baud:        baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: SerialReadTimeout,
	}, nil
}

// SerialPort is a serial port where read timeouts are not errors.
type SerialPort struct {
	*serial.Port
}

// OpenSerial opens a serial port from URL.
func OpenSerial(u *url.URL) (*SerialPort, error) {
	conf, err := SerialConfig(u)
	if err != nil {
		return nil, err
	}
	port, err := serial.OpenPort(conf)
	if err != nil {
		return nil, err
	}
	return &SerialPort{Port: port}, nil
}

// Read implements io.Reader.
func (p *SerialPort) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if n == 0 && err == io.EOF {
		// read timeout.
		return 0, nil
	}
	return n, err
}
