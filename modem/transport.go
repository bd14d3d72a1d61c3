package modem

import (
	"context"
)

// Transport represents an established, bidirectional byte stream to the
// LoRaWAN modem.
//
// A Transport is assumed to be already connected and ready for use. Reads
// never block: HasData polls for pending input and ReadAvailable returns
// whatever has arrived, possibly nothing. Typical implementations include
// serial ports and the in-process RAK3172 emulator used for testing.
//
//go:generate go tool mockgen -destination=mock_transport.go -package=modem . Transport,Dialer
type Transport interface {
	// HasData reports whether ReadAvailable would return bytes or an error.
	HasData() bool
	// ReadAvailable returns zero or more bytes immediately available.
	ReadAvailable() ([]byte, error)
	// Write sends p to the modem.
	Write(p []byte) (int, error)
	// Flush blocks until written bytes have left the output buffer.
	Flush() error
	// Close releases the underlying connection.
	Close() error
}

// Dialer opens a Transport to the modem.
//
// Dialer abstracts how the modem connection is created (for example, via a
// serial port or the emulator) and is intended to be used during modem
// construction only. Once a Transport is obtained, the Dialer is no longer
// needed.
type Dialer interface {
	// Dial is responsible for creating and returning a connected Transport. It may
	// perform blocking operations and should respect cancellation and deadlines
	// provided by the context. Dial returns an error if the transport cannot be
	// established.
	Dial(ctx context.Context) (Transport, error)
}
