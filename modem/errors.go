package modem

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when an operation is attempted on a Modem
	// that has no transport.
	//
	// This can occur if the Dialer returned neither a transport nor an error,
	// or if the Modem was not created via New.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned when an operation is attempted on a Modem
	// that has already been closed.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrEmptyCommand is returned when Send is called with a blank command.
	ErrEmptyCommand = errors.New("empty command")

	// ErrPeerClosed is returned by Send when the remote end closed the
	// stream before a final result code arrived.
	//
	// The partial response read so far is returned alongside the error.
	// The link is unusable afterwards and must be re-established. It
	// matches io.EOF with errors.Is.
	ErrPeerClosed = fmt.Errorf("peer closed connection: %w", io.EOF)
)
