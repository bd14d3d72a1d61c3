package modem

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"i4.energy/across/currentmon/at"
	"i4.energy/across/currentmon/indicator"
)

// Modem represents a RAK3172-class LoRaWAN modem that communicates via AT
// commands. It owns the transport exclusively and runs at most one command
// at a time: a command writes its line, then polls the transport until the
// expected marker shows up in the response or the deadline passes.
type Modem struct {
	// transport provides the physical connection to the modem
	transport Transport
	// frames decodes transport bytes into text
	frames FrameReader
	// indicator is signalled while a command is on the wire
	indicator indicator.Indicator
	logger    *zap.Logger

	pollInterval time.Duration
	settleDelay  time.Duration
	atTimeout    time.Duration
	drainLimit   int

	// pending holds unsolicited text not yet split into complete lines
	pending string
	// busy is set while a command window is open
	busy   atomic.Bool
	closed bool
}

// Command is one AT exchange: the line to send, the substring that marks
// success, and how long to wait for it.
type Command struct {
	Text    string
	Marker  string
	Timeout time.Duration
}

// Expect builds a Command waiting for marker.
func Expect(text, marker string, timeout time.Duration) Command {
	return Command{Text: text, Marker: marker, Timeout: timeout}
}

// ExpectOK builds a Command waiting for "OK".
func ExpectOK(text string, timeout time.Duration) Command {
	return Expect(text, at.OK, timeout)
}

// New creates a new Modem instance with the given configuration and dials
// its transport. Returns an error if the configuration has no Dialer or the
// transport cannot be established.
func New(ctx context.Context, config Config) (*Modem, error) {
	if err := config.validate(); err != nil {
		return nil, err
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
		transport:    transport,
		indicator:    config.indicator,
		logger:       config.logger,
		pollInterval: config.pollInterval,
		settleDelay:  config.settleDelay,
		atTimeout:    config.atTimeout,
		drainLimit:   config.drainLimit,
	}, nil
}

// Execute sends cmd and waits for its marker.
//
// Residual input from earlier traffic is drained first. The transmit
// indicator is lit for the duration of the exchange. On success the
// accumulated response is returned. When the deadline passes first the
// partial response is returned with an error wrapping ErrTimeout; if the
// modem answered with an error code the message names it. Cancelling ctx
// aborts the wait with ctx.Err(); it is meant for shutdown only, the
// deadline is what ends a stuck exchange.
func (m *Modem) Execute(ctx context.Context, cmd Command) (string, error) {
	if err := m.usable(); err != nil {
		return "", err
	}
	if !m.busy.CompareAndSwap(false, true) {
		return "", ErrCommandInFlight
	}
	defer m.busy.Store(false)

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = m.atTimeout
	}
	logger := m.logger.With(zap.String("command", at.Redact(cmd.Text)))

	if err := m.drain(ctx); err != nil {
		return "", err
	}

	m.indicator.Set(indicator.Transmit, true)
	defer m.indicator.Set(indicator.Transmit, false)

	logger.Debug("Sending command", zap.String("marker", cmd.Marker), zap.Duration("timeout", timeout))
	if _, err := m.transport.Write([]byte(cmd.Text + at.CRLF)); err != nil {
		return "", fmt.Errorf("write command %q: %w", at.Redact(cmd.Text), err)
	}

	start := time.Now()
	deadline := start.Add(timeout)
	var response strings.Builder

	for {
		now := time.Now()
		if !now.Before(deadline) {
			break
		}

		if m.transport.HasData() {
			chunk, err := m.transport.ReadAvailable()
			if err != nil {
				return response.String(), fmt.Errorf("read response to %q: %w", at.Redact(cmd.Text), err)
			}
			text, err := m.frames.Decode(chunk)
			if err != nil {
				logger.Warn("Dropped undecodable response bytes", zap.Error(err))
			}
			if text == "" {
				continue
			}
			logger.Debug("Response chunk", zap.String("data", strings.TrimSpace(text)))
			response.WriteString(text)

			acc := response.String()
			if i := strings.Index(acc, cmd.Marker); i >= 0 {
				m.keepTrailing(acc[i+len(cmd.Marker):])
				logger.Debug("Command succeeded", zap.Duration("elapsed", time.Since(start)))
				return acc, nil
			}
			continue
		}

		if err := sleep(ctx, min(m.pollInterval, deadline.Sub(now))); err != nil {
			return response.String(), err
		}
	}

	acc := response.String()
	err := fmt.Errorf("%w waiting for %q after %s", ErrTimeout, cmd.Marker, timeout)
	if code, ok := at.ErrorCode(acc); ok {
		err = fmt.Errorf("%w waiting for %q after %s: modem reported %s", ErrTimeout, cmd.Marker, timeout, code)
	}
	logger.Warn("Command timed out", zap.String("marker", cmd.Marker), zap.Error(err))
	return acc, err
}

// Poll reads whatever the modem has sent outside a command window and
// returns the complete lines received so far. It never blocks; a line cut
// by a read boundary is returned once its remainder arrives.
func (m *Modem) Poll() ([]string, error) {
	if err := m.usable(); err != nil {
		return nil, err
	}
	if !m.busy.CompareAndSwap(false, true) {
		return nil, ErrCommandInFlight
	}
	defer m.busy.Store(false)

	if m.transport.HasData() {
		chunk, err := m.transport.ReadAvailable()
		if err != nil {
			return nil, fmt.Errorf("read unsolicited data: %w", err)
		}
		text, err := m.frames.Decode(chunk)
		if err != nil {
			m.logger.Warn("Dropped undecodable unsolicited bytes", zap.Error(err))
		}
		m.pending += text
	}

	lines, rest := at.SplitLines(m.pending)
	m.pending = rest
	return lines, nil
}

// Drain waits the settle delay and discards residual input, such as the
// modem's boot banner. Discarded bytes are logged.
func (m *Modem) Drain(ctx context.Context) error {
	if err := m.usable(); err != nil {
		return err
	}
	if !m.busy.CompareAndSwap(false, true) {
		return ErrCommandInFlight
	}
	defer m.busy.Store(false)
	return m.drain(ctx)
}

func (m *Modem) drain(ctx context.Context) error {
	if err := sleep(ctx, m.settleDelay); err != nil {
		return err
	}

	discarded := len(m.pending)
	for discarded < m.drainLimit && m.transport.HasData() {
		chunk, err := m.transport.ReadAvailable()
		if err != nil {
			m.logger.Warn("Read failed while draining", zap.Error(err))
			break
		}
		if len(chunk) == 0 {
			break
		}
		discarded += len(chunk)
	}
	m.pending = ""
	m.frames.Reset()

	if discarded > 0 {
		m.logger.Debug("Cleared residual bytes", zap.Int("bytes", discarded))
	}
	return nil
}

// keepTrailing saves the text that followed the marker's line so events
// arriving in the same chunk as a reply are not lost to Poll.
func (m *Modem) keepTrailing(after string) {
	if i := strings.IndexByte(after, '\n'); i >= 0 {
		m.pending = after[i+1:]
		return
	}
	m.pending = ""
}

// Flush blocks until written commands have left the transport.
func (m *Modem) Flush() error {
	if err := m.usable(); err != nil {
		return err
	}
	return m.transport.Flush()
}

// Close shuts down the modem and releases the transport. After calling
// Close(), the modem cannot be reused.
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

func (m *Modem) usable() error {
	if m.closed {
		return ErrAlreadyClosed
	}
	if m.transport == nil {
		return ErrNotInitialized
	}
	return nil
}

// IsTimeout reports whether err is a command timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
