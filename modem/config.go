package modem

import (
	"log/slog"
	"time"

	"i4.energy/across/atbridge/at"
)

const (
	// DefaultBufferSize is the size of a single transport read.
	DefaultBufferSize = 8 * 1024
)

// Config holds the settings of a Modem link. Build it with NewConfigBuilder.
type Config struct {
	dialer      Dialer
	framing     at.Framing
	readTimeout time.Duration
	bufferSize  int
	logger      *slog.Logger
}

// ConfigBuilder assembles a Config step by step.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder returns a builder preloaded with defaults.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		config: Config{
			framing:    at.FramingLine,
			bufferSize: DefaultBufferSize,
		},
	}
}

// WithDialer sets how the transport is opened. Required.
func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	return b
}

// WithFraming selects how the end of a response is detected.
func (b *ConfigBuilder) WithFraming(f at.Framing) *ConfigBuilder {
	b.config.framing = f
	return b
}

// WithReadTimeout bounds every Send that carries no context deadline.
// Zero waits for the modem indefinitely.
func (b *ConfigBuilder) WithReadTimeout(d time.Duration) *ConfigBuilder {
	b.config.readTimeout = d
	return b
}

// WithBufferSize sets the size of a single transport read.
func (b *ConfigBuilder) WithBufferSize(n int) *ConfigBuilder {
	b.config.bufferSize = n
	return b
}

// WithLogger sets the logger used for command tracing.
func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.logger = l
	return b
}

// Build validates the configuration.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	c.setDefaults()
	return c, nil
}

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.bufferSize <= 0 {
		c.bufferSize = DefaultBufferSize
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
}
