package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"i4.energy/across/atbridge/at"
)

// Duration is a time.Duration written as a Go duration string ("120s")
// in the configuration file.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the time.Duration value
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config holds the application configuration
type Config struct {
	// RemoteAddress is the modem's AT TCP endpoint (e.g. "192.168.8.1:20249")
	RemoteAddress string `yaml:"remote_address"`
	// SerialPort, when set, replaces the TCP link with a serial port (e.g. "/dev/ttyUSB2")
	SerialPort string `yaml:"serial_port"`
	// BaudRate is the baud rate for the serial link
	BaudRate int `yaml:"baud_rate"`
	// SocketPath is the local Unix socket clients send commands to
	SocketPath string `yaml:"socket_path"`
	// IdleTimeout is how long the bridge waits for a client before reconnecting
	IdleTimeout Duration `yaml:"idle_timeout"`
	// RetryDelay separates reconnect attempts
	RetryDelay Duration `yaml:"retry_delay"`
	// ConnectTimeout bounds establishing the modem link
	ConnectTimeout Duration `yaml:"connect_timeout"`
	// CommandTimeout bounds one modem response; zero waits indefinitely
	CommandTimeout Duration `yaml:"command_timeout"`
	// ClientTimeout bounds one exchange of a control client with the bridge; zero waits indefinitely
	ClientTimeout Duration `yaml:"client_timeout"`
	// Framing is the response completion rule: "line" or "substring"
	Framing string `yaml:"framing"`
	// CommandRetryDelay separates attempts of a command that must return OK
	CommandRetryDelay Duration `yaml:"command_retry_delay"`
	// ScanPollDelay separates cell scan polls
	ScanPollDelay Duration `yaml:"scan_poll_delay"`
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string `yaml:"log_level"`
	// LogFile, when set, also writes logs to a rotated file
	LogFile string `yaml:"log_file"`
	// LogJSON switches the log format from text to JSON
	LogJSON bool `yaml:"log_json"`
	// HistoryDir is the cell scan history database; empty disables history
	HistoryDir string `yaml:"history_dir"`
	// StatusAddress is the bind address of the status HTTP server; empty disables it
	StatusAddress string `yaml:"status_address"`
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	if _, ok := at.ParseFraming(config.Framing); !ok {
		return nil, fmt.Errorf("unknown framing %q (want line or substring)", config.Framing)
	}

	return config, nil
}

// FramingMode returns the parsed framing; LoadConfig has validated it.
func (c *Config) FramingMode() at.Framing {
	f, _ := at.ParseFraming(c.Framing)
	return f
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.RemoteAddress = "192.168.8.1:20249"
		c.BaudRate = 115200
		c.SocketPath = "/tmp/at_socket.sock"
		c.IdleTimeout = Duration(120 * time.Second)
		c.RetryDelay = Duration(3 * time.Second)
		c.ConnectTimeout = Duration(60 * time.Second)
		c.Framing = at.FramingLine.String()
		c.CommandRetryDelay = Duration(2 * time.Second)
		c.ScanPollDelay = Duration(2 * time.Second)
		c.LogLevel = "info"
		return nil
	}
}

// WithFile overlays the keys present in a YAML file. An empty path is a
// no-op.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
		return nil
	}
}

// WithEnv loads configuration from ATBRIDGE_* environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		strs := map[string]*string{
			"ATBRIDGE_REMOTE_ADDRESS": &c.RemoteAddress,
			"ATBRIDGE_SERIAL_PORT":    &c.SerialPort,
			"ATBRIDGE_SOCKET_PATH":    &c.SocketPath,
			"ATBRIDGE_FRAMING":        &c.Framing,
			"ATBRIDGE_LOG_LEVEL":      &c.LogLevel,
			"ATBRIDGE_LOG_FILE":       &c.LogFile,
			"ATBRIDGE_HISTORY_DIR":    &c.HistoryDir,
			"ATBRIDGE_STATUS_ADDRESS": &c.StatusAddress,
		}
		for name, dst := range strs {
			if v := os.Getenv(name); v != "" {
				*dst = v
			}
		}

		durations := map[string]*Duration{
			"ATBRIDGE_IDLE_TIMEOUT":        &c.IdleTimeout,
			"ATBRIDGE_RETRY_DELAY":         &c.RetryDelay,
			"ATBRIDGE_CONNECT_TIMEOUT":     &c.ConnectTimeout,
			"ATBRIDGE_COMMAND_TIMEOUT":     &c.CommandTimeout,
			"ATBRIDGE_CLIENT_TIMEOUT":      &c.ClientTimeout,
			"ATBRIDGE_COMMAND_RETRY_DELAY": &c.CommandRetryDelay,
			"ATBRIDGE_SCAN_POLL_DELAY":     &c.ScanPollDelay,
		}
		for name, dst := range durations {
			v := os.Getenv(name)
			if v == "" {
				continue
			}
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = Duration(d)
		}

		if baud := os.Getenv("ATBRIDGE_BAUD_RATE"); baud != "" {
			b, err := strconv.Atoi(baud)
			if err != nil {
				return fmt.Errorf("ATBRIDGE_BAUD_RATE: %w", err)
			}
			c.BaudRate = b
		}

		if v := os.Getenv("ATBRIDGE_LOG_JSON"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("ATBRIDGE_LOG_JSON: %w", err)
			}
			c.LogJSON = b
		}

		return nil
	}
}

// WithCLI applies the global command-line flags that were given
func WithCLI(cli *CLI) ConfigOption {
	return func(c *Config) error {
		if cli.Remote != "" {
			c.RemoteAddress = cli.Remote
		}
		if cli.SerialPort != "" {
			c.SerialPort = cli.SerialPort
		}
		if cli.BaudRate != 0 {
			c.BaudRate = cli.BaudRate
		}
		if cli.Socket != "" {
			c.SocketPath = cli.Socket
		}
		if cli.Framing != "" {
			c.Framing = cli.Framing
		}
		if cli.ClientTimeout != 0 {
			c.ClientTimeout = Duration(cli.ClientTimeout)
		}
		if cli.LogLevel != "" {
			c.LogLevel = cli.LogLevel
		}
		if cli.LogFile != "" {
			c.LogFile = cli.LogFile
		}
		if cli.LogJSON {
			c.LogJSON = true
		}
		if cli.HistoryDir != "" {
			c.HistoryDir = cli.HistoryDir
		}
		return nil
	}
}
