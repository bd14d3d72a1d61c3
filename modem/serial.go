package modem

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the RAK3172 factory UART speed.
	DefaultBaudRate = 115200
	// DefaultSerialPoll bounds how long a single non-blocking read waits on
	// the OS before reporting no data.
	DefaultSerialPoll = 10 * time.Millisecond

	serialReadBuffer = 512
)

// SerialDialer opens the modem over a serial port using go.bug.st/serial.
type SerialDialer struct {
	PortName string
	BaudRate int
	// Mode overrides BaudRate and the 8N1 framing when set.
	Mode *serial.Mode
	// PollTimeout is the OS read timeout backing HasData.
	PollTimeout time.Duration
}

func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if d.PortName == "" {
		return nil, errors.New("modem: serial port name is required")
	}
	if ctx == nil {
		return nil, errors.New("modem: context is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.Mode
	if mode == nil {
		baud := d.BaudRate
		if baud <= 0 {
			baud = DefaultBaudRate
		}
		mode = &serial.Mode{
			BaudRate: baud,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		}
	}

	poll := d.PollTimeout
	if poll <= 0 {
		poll = DefaultSerialPoll
	}

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", d.PortName, err)
	}
	if err := port.SetReadTimeout(poll); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", d.PortName, err)
	}

	return &serialTransport{port: port, buf: make([]byte, serialReadBuffer)}, nil
}

// serialTransport adapts a blocking serial.Port with a short read timeout to
// the non-blocking Transport contract. HasData reads ahead into pending.
type serialTransport struct {
	port    serial.Port
	buf     []byte
	pending []byte
	err     error
}

func (t *serialTransport) HasData() bool {
	if len(t.pending) > 0 || t.err != nil {
		return true
	}
	n, err := t.port.Read(t.buf)
	if n > 0 {
		t.pending = append(t.pending, t.buf[:n]...)
	}
	if err != nil {
		t.err = err
	}
	return len(t.pending) > 0 || t.err != nil
}

func (t *serialTransport) ReadAvailable() ([]byte, error) {
	if !t.HasData() {
		return nil, nil
	}
	if len(t.pending) > 0 {
		data := t.pending
		t.pending = nil
		return data, nil
	}
	err := t.err
	t.err = nil
	return nil, err
}

func (t *serialTransport) Write(p []byte) (int, error) {
	return t.port.Write(p)
}

func (t *serialTransport) Flush() error {
	return t.port.Drain()
}

func (t *serialTransport) Close() error {
	return t.port.Close()
}
