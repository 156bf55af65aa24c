package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.bug.st/serial"

	"i4.energy/across/atbridge/bridge"
	"i4.energy/across/atbridge/modem"
	"i4.energy/across/atbridge/store"
	"i4.energy/across/atbridge/workflow"
)

// App carries what every command needs: the resolved configuration, the
// process logger and the signal-bound context.
type App struct {
	Context context.Context
	Config  *Config
	Logger  *slog.Logger
	Out     io.Writer
}

// Client returns a client of the local bridge socket.
func (a *App) Client() *bridge.Client {
	return &bridge.Client{
		Path:    a.Config.SocketPath,
		Timeout: a.Config.ClientTimeout.Duration(),
	}
}

// Orchestrator returns an orchestrator sending through the local bridge.
// recorder may be nil.
func (a *App) Orchestrator(recorder workflow.Recorder) *workflow.Orchestrator {
	opts := []workflow.Option{
		workflow.WithFraming(a.Config.FramingMode()),
		workflow.WithRetryDelay(a.Config.CommandRetryDelay.Duration()),
		workflow.WithScanPollDelay(a.Config.ScanPollDelay.Duration()),
		workflow.WithLogger(a.Logger.With("component", "workflow")),
	}
	if recorder != nil {
		opts = append(opts, workflow.WithRecorder(recorder))
	}
	return workflow.New(a.Client(), opts...)
}

// OpenHistory opens the scan history when one is configured. Failing to
// open it, for example while another process holds the database, only
// disables recording.
func (a *App) OpenHistory() *store.Store {
	if a.Config.HistoryDir == "" {
		return nil
	}
	s, err := store.Open(store.Config{
		Dir:    a.Config.HistoryDir,
		Logger: a.Logger.With("component", "store"),
	})
	if err != nil {
		a.Logger.Warn("Scan history unavailable", "dir", a.Config.HistoryDir, "error", err)
		return nil
	}
	return s
}

// dialer selects the modem link: the serial port when one is configured,
// the TCP endpoint otherwise.
func (a *App) dialer() modem.Dialer {
	if a.Config.SerialPort != "" {
		return modem.SerialDialer{
			PortName: a.Config.SerialPort,
			Mode: &serial.Mode{
				BaudRate: a.Config.BaudRate,
				DataBits: 8,
				Parity:   serial.NoParity,
				StopBits: serial.OneStopBit,
			},
		}
	}
	return modem.TCPDialer{Address: a.Config.RemoteAddress}
}

// connector dials a fresh modem link for every supervisor iteration.
func (a *App) connector() bridge.Connector {
	dialer := a.dialer()
	logger := a.Logger.With("component", "modem")

	return bridge.ConnectorFunc(func(ctx context.Context) (bridge.Link, error) {
		config, err := modem.NewConfigBuilder().
			WithDialer(dialer).
			WithFraming(a.Config.FramingMode()).
			WithReadTimeout(a.Config.CommandTimeout.Duration()).
			WithLogger(logger).
			Build()
		if err != nil {
			return nil, err
		}

		m, err := modem.New(ctx, config)
		if err != nil {
			return nil, err
		}
		return m, nil
	})
}

// Serve runs the bridge until the process is signalled.
func (a *App) Serve() error {
	logger := a.Logger

	notifier := newNotifier(logger.With("component", "systemd"))
	supervisor := &bridge.Supervisor{
		Connector: a.connector(),
		Binder: bridge.EndpointBinder(bridge.EndpointConfig{
			Path:        a.Config.SocketPath,
			IdleTimeout: a.Config.IdleTimeout.Duration(),
			Logger:      logger.With("component", "endpoint"),
		}),
		RetryDelay:     a.Config.RetryDelay.Duration(),
		ConnectTimeout: a.Config.ConnectTimeout.Duration(),
		Logger:         logger.With("component", "supervisor"),
		OnStateChange:  notifier.StateChanged,
	}

	var httpServer *http.Server
	if a.Config.StatusAddress != "" {
		history := a.OpenHistory()
		if history != nil {
			defer history.Close()
		}

		server := &Server{
			Logger:   logger.With("component", "server"),
			State:    supervisor.State,
			Workflow: a.Orchestrator(recorderOf(history)),
			History:  history,
		}
		httpServer = &http.Server{
			Addr:         a.Config.StatusAddress,
			Handler:      server,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 10 * time.Minute,
			IdleTimeout:  60 * time.Second,
		}

		go func() {
			logger.Info("Starting HTTP server", "address", httpServer.Addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server failed", "error", err)
			}
		}()
	}

	logger.Info("Starting AT bridge",
		"socket", a.Config.SocketPath,
		"remote", a.Config.RemoteAddress,
		"serial_port", a.Config.SerialPort,
		"framing", a.Config.FramingMode())

	err := supervisor.Run(a.Context)
	notifier.Stopping()

	if httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		logger.Info("Closing HTTP server")
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("Failed to gracefully shutdown server", "error", err)
		}
	}

	if errors.Is(err, context.Canceled) {
		logger.Info("AT bridge stopped")
		return nil
	}
	return err
}

// recorderOf avoids handing a typed nil store to the orchestrator.
func recorderOf(s *store.Store) workflow.Recorder {
	if s == nil {
		return nil
	}
	return s
}
