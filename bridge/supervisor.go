package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

const (
	DefaultRetryDelay     = 3 * time.Second
	DefaultConnectTimeout = 60 * time.Second
)

// State is the supervisor's connection state.
type State int32

const (
	Disconnected State = iota
	Connecting
	Bridging
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Bridging:
		return "bridging"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Link is an established connection to the modem.
type Link interface {
	Sender
	Close() error
}

// Connector establishes a Link. ctx carries the connect timeout.
type Connector interface {
	Connect(ctx context.Context) (Link, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context) (Link, error)

func (f ConnectorFunc) Connect(ctx context.Context) (Link, error) {
	return f(ctx)
}

// Server relays commands to a Link until it fails or times out.
type Server interface {
	Serve(ctx context.Context, sender Sender) error
	Close() error
}

// Binder creates a fresh local Server for each supervisor iteration.
type Binder interface {
	Bind() (Server, error)
}

// BinderFunc adapts a function to Binder.
type BinderFunc func() (Server, error)

func (f BinderFunc) Bind() (Server, error) {
	return f()
}

// EndpointBinder binds an Endpoint with the given configuration.
func EndpointBinder(config EndpointConfig) Binder {
	return BinderFunc(func() (Server, error) {
		return Listen(config)
	})
}

// Supervisor keeps the bridge running. Each iteration connects to the
// modem, binds the local endpoint and serves until an error or idle
// timeout; both resources are then released and, after RetryDelay, the
// next iteration starts. Run only returns when its context ends.
type Supervisor struct {
	Connector Connector
	Binder    Binder

	// RetryDelay separates the end of one iteration from the next connect
	RetryDelay time.Duration
	// ConnectTimeout bounds establishing the link
	ConnectTimeout time.Duration
	Logger         *slog.Logger
	// OnStateChange, if set, is called on every state transition
	OnStateChange func(State)

	state atomic.Int32
}

// State returns the current connection state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

func (s *Supervisor) setState(state State) {
	if State(s.state.Swap(int32(state))) == state {
		return
	}
	s.logger().Debug("Bridge state changed", "state", state)
	if s.OnStateChange != nil {
		s.OnStateChange(state)
	}
}

func (s *Supervisor) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}

// Run supervises the bridge until ctx is cancelled and returns ctx.Err().
func (s *Supervisor) Run(ctx context.Context) error {
	if s.Connector == nil || s.Binder == nil {
		return errors.New("bridge: supervisor needs a connector and a binder")
	}

	retryDelay := s.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}

	for {
		err := s.iterate(ctx)
		s.setState(Disconnected)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		s.logger().Warn("Bridge down, retrying", "error", err, "retry_delay", retryDelay)

		timer := time.NewTimer(retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Supervisor) iterate(ctx context.Context) error {
	s.setState(Connecting)

	connectTimeout := s.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	link, err := s.Connector.Connect(connectCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if err := link.Close(); err != nil {
			s.logger().Debug("Failed to close link", "error", err)
		}
	}()

	server, err := s.Binder.Bind()
	if err != nil {
		return fmt.Errorf("bind: %w", err)
	}
	defer func() {
		if err := server.Close(); err != nil {
			s.logger().Debug("Failed to close endpoint", "error", err)
		}
	}()

	s.logger().Info("Bridge established")
	s.setState(Bridging)

	return server.Serve(ctx, link)
}
