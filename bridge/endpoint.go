// Package bridge relays AT commands from a local Unix socket to a modem
// link and keeps that relay alive across transport failures.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"i4.energy/across/atbridge/at"
)

const (
	DefaultSocketPath        = "/tmp/at_socket.sock"
	DefaultIdleTimeout       = 120 * time.Second
	DefaultClientReadTimeout = 5 * time.Second

	// maxCommandSize bounds the single read that takes a client command.
	maxCommandSize = 1024
)

var (
	// ErrIdleTimeout is returned by Serve when no client connected within
	// the idle window.
	ErrIdleTimeout = errors.New("no client connected within idle timeout")
)

// Sender forwards one command to the modem and returns its raw response.
type Sender interface {
	Send(ctx context.Context, cmd string) (string, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, cmd string) (string, error)

func (f SenderFunc) Send(ctx context.Context, cmd string) (string, error) {
	return f(ctx, cmd)
}

// EndpointConfig configures the local command endpoint.
type EndpointConfig struct {
	// Path is the Unix socket path
	Path string
	// IdleTimeout bounds the wait for the next client
	IdleTimeout time.Duration
	// ClientReadTimeout bounds the read of a client's command
	ClientReadTimeout time.Duration
	Logger            *slog.Logger
}

func (c *EndpointConfig) setDefaults() {
	if c.Path == "" {
		c.Path = DefaultSocketPath
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.ClientReadTimeout <= 0 {
		c.ClientReadTimeout = DefaultClientReadTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
}

// Endpoint is the local side of the bridge. It services one client
// connection at a time: one command in, one response out, then close.
type Endpoint struct {
	listener  *net.UnixListener
	config    EndpointConfig
	logger    *slog.Logger
	closeOnce sync.Once
	closeErr  error
}

// Listen removes a socket file left behind by an earlier run and binds a
// fresh listener at config.Path.
func Listen(config EndpointConfig) (*Endpoint, error) {
	config.setDefaults()

	if err := removeStale(config.Path); err != nil {
		return nil, err
	}

	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: config.Path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", config.Path, err)
	}
	l.SetUnlinkOnClose(true)

	config.Logger.Debug("Listening for local clients", "path", config.Path)

	return &Endpoint{
		listener: l,
		config:   config,
		logger:   config.Logger,
	}, nil
}

func removeStale(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("remove stale socket %s: %w", path, err)
}

// Path returns the socket path the endpoint listens on.
func (e *Endpoint) Path() string {
	return e.config.Path
}

// Serve accepts clients until an error ends the session.
//
// It returns ErrIdleTimeout when no client connects within the idle window,
// the sender's error when forwarding a command fails, and ctx.Err() when
// ctx is cancelled. Failures confined to one client are logged and do not
// end the session.
func (e *Endpoint) Serve(ctx context.Context, sender Sender) error {
	stop := context.AfterFunc(ctx, func() {
		_ = e.listener.SetDeadline(time.Now())
	})
	defer stop()

	for {
		if err := e.listener.SetDeadline(time.Now().Add(e.config.IdleTimeout)); err != nil {
			return fmt.Errorf("set accept deadline: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := e.listener.AcceptUnix()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return ErrIdleTimeout
			}
			return fmt.Errorf("accept: %w", err)
		}

		if err := e.handle(ctx, conn, sender); err != nil {
			return err
		}
	}
}

func (e *Endpoint) handle(ctx context.Context, conn *net.UnixConn, sender Sender) error {
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(e.config.ClientReadTimeout)); err != nil {
		e.logger.Warn("Failed to set client read deadline", "error", err)
		return nil
	}

	buf := make([]byte, maxCommandSize)
	n, err := conn.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		e.logger.Warn("Failed to read client command", "error", err)
		return nil
	}

	cmd, _, _ := strings.Cut(string(buf[:n]), "\n")
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		e.logger.Debug("Client sent no command")
		return nil
	}

	e.logger.Info("Forwarding command", "command", cmd)
	resp, sendErr := sender.Send(ctx, cmd)
	if resp == "" {
		resp = at.NoResponse
	}

	if _, err := io.WriteString(conn, resp); err != nil {
		e.logger.Warn("Failed to reply to client", "command", cmd, "error", err)
	}

	if sendErr != nil {
		return fmt.Errorf("forward %q: %w", cmd, sendErr)
	}
	return nil
}

// Close stops listening and removes the socket file.
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		e.closeErr = e.listener.Close()
	})
	return e.closeErr
}
