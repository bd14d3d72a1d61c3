package modem

import "errors"

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when an operation is attempted on a Modem
	// that has no transport.
	//
	// This can occur if the Dialer returned no transport or if the Modem was
	// not created via New.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned when Close is called on a Modem that has
	// already been closed, or when it is used afterwards.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrTimeout is returned when the expected marker did not arrive
	// within the command's deadline.
	ErrTimeout = errors.New("command timed out")

	// ErrInvalidEncoding is reported when transport bytes are not valid
	// UTF-8. The offending bytes are dropped and reading continues.
	ErrInvalidEncoding = errors.New("invalid UTF-8 from modem")

	// ErrCommandInFlight is returned when a command or poll is started while
	// another command window is still open.
	ErrCommandInFlight = errors.New("another command is in flight")
)
