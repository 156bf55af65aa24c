package modem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"i4.energy/across/atbridge/at"
)

// Modem is one connected AT link to a cellular modem.
//
// It sends a single command at a time and frames the reply by content,
// since the stream carries no length prefix. A Modem is not safe for
// concurrent use; the bridge serialises commands before they reach it.
type Modem struct {
	// transport provides the physical connection to the modem (TCP, serial, etc.)
	transport Transport
	// config contains the link configuration
	config Config
	// logger traces commands and responses
	logger *slog.Logger
	// closed indicates if the modem has been shut down
	closed bool
}

// New dials the configured transport and returns a ready Modem.
//
// The dial is bounded by ctx; callers apply their connect timeout there.
func New(ctx context.Context, config Config) (*Modem, error) {
	if config.dialer == nil {
		return nil, ErrNoDialer
	}
	config.setDefaults()

	transport, err := config.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, ErrNotInitialized
	}

	return &Modem{
		transport: transport,
		config:    config,
		logger:    config.logger,
	}, nil
}

// Send writes cmd terminated by a carriage return and reads until the
// accumulated text is a complete response under the configured framing.
//
// When the peer closes the stream first, the partial text is returned
// together with ErrPeerClosed. Any other read or write failure aborts the
// exchange and is returned wrapped. If the transport supports read
// deadlines, cancelling ctx interrupts a blocked read.
func (m *Modem) Send(ctx context.Context, cmd string) (string, error) {
	if m.closed {
		return "", ErrAlreadyClosed
	}
	if m.transport == nil {
		return "", ErrNotInitialized
	}

	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return "", ErrEmptyCommand
	}

	// Apply per-command timeout if context has none
	if _, ok := ctx.Deadline(); !ok && m.config.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.readTimeout)
		defer cancel()
	}

	if rd, ok := m.transport.(readDeadliner); ok {
		deadline, _ := ctx.Deadline()
		if err := rd.SetReadDeadline(deadline); err != nil {
			return "", fmt.Errorf("set read deadline: %w", err)
		}
		stop := context.AfterFunc(ctx, func() {
			_ = rd.SetReadDeadline(time.Now())
		})
		defer stop()
	}

	m.logger.Debug("Sending command", "command", cmd)
	if _, err := m.transport.Write([]byte(cmd + at.CR)); err != nil {
		return "", fmt.Errorf("write command %q: %w", cmd, err)
	}

	var acc []byte
	buf := make([]byte, m.config.bufferSize)
	for {
		n, err := m.transport.Read(buf)
		if n > 0 {
			acc = append(acc, buf[:n]...)
			response := strings.ToValidUTF8(string(acc), "")
			if at.Complete(response, m.config.framing) {
				m.logger.Debug("Received response", "command", cmd, "response", response)
				return response, nil
			}
		}
		if err == nil {
			continue
		}

		response := strings.ToValidUTF8(string(acc), "")
		switch {
		case errors.Is(err, io.EOF):
			m.logger.Warn("Peer closed before final result", "command", cmd, "received", len(acc))
			return response, ErrPeerClosed
		case ctx.Err() != nil:
			return response, fmt.Errorf("read response to %q: %w", cmd, ctx.Err())
		case errors.Is(err, os.ErrDeadlineExceeded):
			return response, fmt.Errorf("read response to %q: %w", cmd, context.DeadlineExceeded)
		default:
			return response, fmt.Errorf("read response to %q: %w", cmd, err)
		}
	}
}

// Close releases the transport. After calling Close, the modem cannot be reused.
func (m *Modem) Close() error {
	if m.closed {
		return ErrAlreadyClosed
	}

	m.closed = true

	if m.transport != nil {
		return m.transport.Close()
	}

	return nil
}
