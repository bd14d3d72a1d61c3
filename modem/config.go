package modem

import (
	"time"

	"go.uber.org/zap"

	"i4.energy/across/currentmon/indicator"
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultSettleDelay  = 100 * time.Millisecond
	DefaultATTimeout    = 5 * time.Second
	DefaultDrainLimit   = 4096
)

// Config holds the Modem settings. Build one with NewConfigBuilder.
type Config struct {
	dialer       Dialer
	pollInterval time.Duration
	settleDelay  time.Duration
	atTimeout    time.Duration
	drainLimit   int
	indicator    indicator.Indicator
	logger       *zap.Logger
}

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}
	if c.settleDelay < 0 {
		c.settleDelay = 0
	}
	if c.atTimeout <= 0 {
		c.atTimeout = DefaultATTimeout
	}
	if c.drainLimit <= 0 {
		c.drainLimit = DefaultDrainLimit
	}
	if c.indicator == nil {
		c.indicator = indicator.Nop{}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
}

// ConfigBuilder assembles a Config.
type ConfigBuilder struct {
	config      Config
	settleDelay *time.Duration
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	return b
}

// WithPollInterval sets the yield between transport polls while a command
// waits for its marker.
func (b *ConfigBuilder) WithPollInterval(d time.Duration) *ConfigBuilder {
	b.config.pollInterval = d
	return b
}

// WithSettleDelay sets the pause before residual input is drained ahead of
// each command. Zero disables it.
func (b *ConfigBuilder) WithSettleDelay(d time.Duration) *ConfigBuilder {
	b.settleDelay = &d
	return b
}

// WithATTimeout sets the timeout used for commands that carry none.
func (b *ConfigBuilder) WithATTimeout(d time.Duration) *ConfigBuilder {
	b.config.atTimeout = d
	return b
}

// WithDrainLimit bounds how many residual bytes one drain discards.
func (b *ConfigBuilder) WithDrainLimit(n int) *ConfigBuilder {
	b.config.drainLimit = n
	return b
}

func (b *ConfigBuilder) WithIndicator(ind indicator.Indicator) *ConfigBuilder {
	b.config.indicator = ind
	return b
}

func (b *ConfigBuilder) WithLogger(l *zap.Logger) *ConfigBuilder {
	b.config.logger = l
	return b
}

func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	if b.settleDelay != nil {
		c.settleDelay = *b.settleDelay
	} else {
		c.settleDelay = DefaultSettleDelay
	}
	c.setDefaults()
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
