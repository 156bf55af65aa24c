package modem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"go.bug.st/serial"
)

//go:generate go tool mockgen -source=transport.go -destination=mock_transport.go -package=modem

// Transport represents an established, bidirectional byte stream to a modem.
//
// A Transport is assumed to be already connected and ready for use. It provides
// the low-level I/O primitives required to send AT commands and receive responses.
// Typical implementations include TCP connections to the router's AT service,
// serial ports, or in-memory fakes used for testing.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer opens a Transport to a modem.
//
// Dialer abstracts how the modem connection is created (for example, via the
// router's TCP AT port, a serial port, or test double). A new Transport is
// dialled for every reconnection attempt.
type Dialer interface {
	// Dial is responsible for creating and returning a connected Transport. It may
	// perform blocking operations and should respect cancellation and deadlines
	// provided by the context. Dial returns an error if the transport cannot be
	// established.
	Dial(ctx context.Context) (Transport, error)
}

// readDeadliner is implemented by transports whose reads can be interrupted.
type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// TCPDialer connects to a modem that exposes its AT interface on a TCP port.
type TCPDialer struct {
	// Address is the host:port of the AT service (e.g. "192.168.8.1:20249")
	Address string
}

// Dial opens the TCP connection. The connect attempt is bounded by ctx.
func (d TCPDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("modem: context is nil")
	}
	if d.Address == "" {
		return nil, errors.New("modem: remote address is required")
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", d.Address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.Address, err)
	}
	return conn, nil
}

// SerialDialer opens a modem attached to a local serial port.
type SerialDialer struct {
	// PortName is the path of the serial device (e.g. "/dev/ttyUSB2")
	PortName string
	// Mode configures the line; 115200 8N1 is used when nil
	Mode *serial.Mode
}

// Dial opens the serial port.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("modem: context is nil")
	}
	if d.PortName == "" {
		return nil, errors.New("modem: serial port name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.Mode
	if mode == nil {
		mode = &serial.Mode{
			BaudRate: 115200,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		}
	}

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", d.PortName, err)
	}
	return &serialTransport{Port: port}, nil
}

// serialTransport adds read deadlines to a serial port so blocked reads
// honour context cancellation.
type serialTransport struct {
	serial.Port
}

func (s *serialTransport) SetReadDeadline(t time.Time) error {
	if t.IsZero() {
		return s.Port.SetReadTimeout(serial.NoTimeout)
	}
	d := time.Until(t)
	if d <= 0 {
		d = time.Millisecond
	}
	return s.Port.SetReadTimeout(d)
}

// Read maps the serial driver's timeout (0 bytes, nil error) onto the
// net package's deadline error so callers see a single failure shape.
func (s *serialTransport) Read(p []byte) (int, error) {
	n, err := s.Port.Read(p)
	if n == 0 && err == nil {
		return 0, &net.OpError{Op: "read", Net: "serial", Err: os.ErrDeadlineExceeded}
	}
	return n, err
}
