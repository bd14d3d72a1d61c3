package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"i4.energy/across/currentmon/at"
	"i4.energy/across/currentmon/indicator"
	"i4.energy/across/currentmon/modem"
	"i4.energy/across/currentmon/payload"
)

const (
	failureBlinks = 5
	errorBlinks   = 3
)

// Config wires a Controller to its collaborators. Modem and Sensor are
// required.
type Config struct {
	Modem        Executor
	Sensor       Sensor
	Indicator    indicator.Indicator
	Actuator     Actuator
	Publisher    Publisher
	Logger       *zap.Logger
	Provisioning Provisioning
	Timings      Timings
}

// Controller owns the modem session. Bringup and Run must be called from a
// single goroutine; Snapshot is safe from any goroutine.
type Controller struct {
	modem        Executor
	sensor       Sensor
	indicator    indicator.Indicator
	actuator     Actuator
	publisher    Publisher
	logger       *zap.Logger
	provisioning Provisioning
	timings      Timings

	mu     sync.Mutex
	status Status
}

// New validates the configuration and returns an idle Controller.
func New(config Config) (*Controller, error) {
	if config.Modem == nil {
		return nil, errors.New("session: modem is required")
	}
	if config.Sensor == nil {
		return nil, errors.New("session: sensor is required")
	}
	if err := config.Provisioning.Validate(); err != nil {
		return nil, err
	}
	if config.Indicator == nil {
		config.Indicator = indicator.Nop{}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &Controller{
		modem:        config.Modem,
		sensor:       config.Sensor,
		indicator:    config.Indicator,
		actuator:     config.Actuator,
		publisher:    config.Publisher,
		logger:       config.Logger,
		provisioning: config.Provisioning,
		timings:      config.Timings.withDefaults(),
		status:       Status{State: Uninitialized, Since: time.Now()},
	}, nil
}

// Run brings the modem up and then cycles until ctx is done. A bring-up
// failure is returned as is; otherwise Run returns ctx.Err().
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Bringup(ctx); err != nil {
		return err
	}

	for {
		if err := c.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.cycleFailed(ctx, err)
		}
		if err := c.wait(ctx); err != nil {
			return err
		}
	}
}

// Bringup probes the modem, writes the provisioning parameters and joins
// the network. A phase failure leaves the session in a terminal state with
// the failure indication held.
func (c *Controller) Bringup(ctx context.Context) error {
	err := c.bringup(ctx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	c.recordError(err)
	c.logger.Error("Bring-up failed", zap.Stringer("state", c.State()), zap.Error(err))
	indicator.AllOff(c.indicator)
	indicator.Blink(ctx, c.indicator, indicator.WaitJoin, failureBlinks, c.timings.FailureBlink)
	c.indicator.Set(indicator.WaitJoin, true)
	return err
}

func (c *Controller) bringup(ctx context.Context) error {
	if err := c.probe(ctx); err != nil {
		return err
	}
	if err := c.configure(ctx); err != nil {
		return err
	}
	return c.join(ctx)
}

func (c *Controller) probe(ctx context.Context) error {
	c.setState(ProbingReadiness)
	c.indicator.Set(indicator.WaitJoin, true)

	c.logger.Info("Waiting for modem to be ready", zap.Duration("boot_delay", c.timings.BootDelay))
	if err := sleep(ctx, c.timings.BootDelay); err != nil {
		return err
	}
	if err := c.modem.Drain(ctx); err != nil {
		return fmt.Errorf("clear boot output: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.timings.ProbeAttempts; attempt++ {
		c.logger.Info("Probing modem", zap.Int("attempt", attempt))
		_, err := c.modem.Execute(ctx, modem.ExpectOK(at.CmdAt, c.timings.ProbeTimeout))
		if err == nil {
			c.logger.Info("Modem is ready")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
		c.logger.Warn("Probe failed", zap.Int("attempt", attempt), zap.Error(err))

		if attempt < c.timings.ProbeAttempts {
			if err := sleep(ctx, c.timings.ProbeDelay); err != nil {
				return err
			}
		}
	}

	c.setState(ReadinessFailed)
	return fmt.Errorf("%w after %d attempts: %w", ErrReadinessFailed, c.timings.ProbeAttempts, lastErr)
}

func (c *Controller) configure(ctx context.Context) error {
	c.setState(ConfiguringParameters)
	c.indicator.Set(indicator.Activity, true)
	defer c.indicator.Set(indicator.Activity, false)

	for _, param := range c.provisioning.Commands() {
		c.logger.Info("Setting parameter", zap.String("parameter", param.Name))
		if _, err := c.modem.Execute(ctx, modem.ExpectOK(param.Text, c.timings.ConfigTimeout)); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.setState(ConfigurationFailed)
			return fmt.Errorf("%w: %s: %w", ErrConfigurationFailed, param.Name, err)
		}
		if err := sleep(ctx, c.timings.SettleDelay); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) join(ctx context.Context) error {
	c.setState(Joining)
	c.logger.Info("Joining network", zap.String("dev_addr", c.provisioning.DevAddr.String()))

	if _, err := c.modem.Execute(ctx, modem.ExpectOK(at.CmdJoin, c.timings.JoinTimeout)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.setState(JoinFailed)
		return fmt.Errorf("%w: %w", ErrJoinFailed, err)
	}

	c.indicator.Set(indicator.WaitJoin, false)
	c.setState(Joined)
	c.logger.Info("Joined network")
	return nil
}

// RunCycle samples the sensor, sends the reading and listens for a
// downlink. A failed send is logged and skips the listen window without
// failing the cycle. Panics are recovered into the returned error.
func (c *Controller) RunCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v", r)
		}
	}()

	cycle := c.nextCycle()
	logger := c.logger.With(zap.Uint64("cycle", cycle))

	amps, err := c.sensor.ReadCurrent()
	if err != nil {
		return fmt.Errorf("read current: %w", err)
	}
	p, err := payload.Encode(amps)
	if err != nil {
		return fmt.Errorf("encode current %v: %w", amps, err)
	}
	if p.Saturated {
		logger.Warn("Current outside payload range, saturated", zap.Float64("current_a", amps), zap.Int16("current_ma", p.MilliAmps))
	}
	c.recordReading(p)

	m := Measurement{
		Cycle:     cycle,
		Current:   amps,
		Payload:   p,
		DevAddr:   c.provisioning.DevAddr.String(),
		Timestamp: time.Now(),
	}
	c.publish(ctx, logger, m)

	c.setState(Sending)
	text := at.CmdSend + strconv.Itoa(at.DefaultUplinkFPort) + at.SendPortSeparator + p.Hex()
	logger.Info("Sending payload", zap.String("payload", p.Hex()), zap.Float64("current_a", amps))
	if _, err := c.modem.Execute(ctx, modem.ExpectOK(text, c.timings.SendTimeout)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.update(func(s *Status) {
			s.SendFailures++
			s.LastError = err.Error()
		})
		c.setState(Joined)
		logger.Error("Failed to send payload", zap.Error(err))
		return nil
	}
	c.update(func(s *Status) { s.Sent++ })
	logger.Info("Payload sent")

	return c.listen(ctx, logger)
}

func (c *Controller) listen(ctx context.Context, logger *zap.Logger) error {
	c.setState(Listening)
	c.indicator.Set(indicator.WaitJoin, true)
	defer c.indicator.Set(indicator.WaitJoin, false)

	logger.Info("Listening for downlink", zap.Duration("window", c.timings.ListenWindow))
	deadline := time.Now().Add(c.timings.ListenWindow)
	for {
		lines, err := c.modem.Poll()
		if err != nil {
			return fmt.Errorf("poll for downlink: %w", err)
		}
		for _, line := range lines {
			event := at.ClassifyEvent(line)
			switch event.Kind {
			case at.EventTransmitConfirmed:
				c.update(func(s *Status) { s.TxConfirmed++ })
				logger.Info("Uplink transmission confirmed")
			case at.EventDownlink:
				c.handleDownlink(ctx, logger, event)
				return nil
			default:
				logger.Debug("Ignoring modem output", zap.String("line", event.Raw))
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		if err := sleep(ctx, min(c.timings.ListenPoll, remaining)); err != nil {
			return err
		}
	}

	logger.Info("No downlink received")
	return nil
}

func (c *Controller) handleDownlink(ctx context.Context, logger *zap.Logger, event at.Event) {
	logger = logger.With(zap.String("downlink", event.Payload))

	if c.actuator == nil {
		logger.Warn("Downlink received without an output to drive")
		return
	}
	cmd, err := Dispatch(ctx, c.actuator, event.Payload, c.timings.DownlinkBlink)
	c.update(func(s *Status) {
		s.Downlinks++
		s.LastDownlink = event.Payload
		if cmd == payload.CommandUnknown {
			s.UnknownDownlinks++
		}
	})

	switch {
	case cmd == payload.CommandUnknown:
		logger.Warn("Unrecognized downlink command")
	case err != nil:
		logger.Error("Failed to apply downlink command", zap.Stringer("command", cmd), zap.Error(err))
	default:
		logger.Info("Applied downlink command", zap.Stringer("command", cmd))
	}
}

func (c *Controller) publish(ctx context.Context, logger *zap.Logger, m Measurement) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, m); err != nil {
		logger.Warn("Failed to publish measurement", zap.Error(err))
	}
}

func (c *Controller) cycleFailed(ctx context.Context, err error) {
	c.recordError(err)
	c.setState(Joined)
	c.logger.Error("Cycle failed", zap.Error(err))
	indicator.Blink(ctx, c.indicator, indicator.WaitJoin, errorBlinks, c.timings.ErrorBlink)
}

// wait idles until the next cycle, pulsing the activity light at the start
// of each chunk.
func (c *Controller) wait(ctx context.Context) error {
	c.setState(Waiting)
	if c.timings.CycleInterval <= 0 {
		return ctx.Err()
	}

	for remaining := c.timings.CycleInterval; remaining > 0; {
		chunk := min(c.timings.PulseEvery, remaining)
		pulse := min(c.timings.PulseLength, chunk)

		c.indicator.Set(indicator.Activity, true)
		err := sleep(ctx, pulse)
		c.indicator.Set(indicator.Activity, false)
		if err != nil {
			return err
		}
		if err := sleep(ctx, chunk-pulse); err != nil {
			return err
		}
		remaining -= chunk
	}
	return nil
}

// State returns the current phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status.State
}

// Snapshot returns a copy of the session status.
func (c *Controller) Snapshot() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.status
	if s.LastReading != nil {
		r := *s.LastReading
		r.Warnings = append([]string(nil), r.Warnings...)
		s.LastReading = &r
	}
	return s
}

func (c *Controller) setState(state State) {
	c.mu.Lock()
	prev := c.status.State
	if prev != state {
		c.status.State = state
		c.status.Since = time.Now()
	}
	c.mu.Unlock()

	if prev != state {
		c.logger.Debug("State changed", zap.Stringer("from", prev), zap.Stringer("to", state))
	}
}

func (c *Controller) nextCycle() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Cycle++
	return c.status.Cycle
}

func (c *Controller) recordReading(p payload.Payload) {
	reading, err := payload.Decode(p.Bytes())
	if err != nil {
		return
	}
	c.update(func(s *Status) {
		s.LastReading = &reading
		s.LastReadingAt = time.Now()
	})
}

func (c *Controller) recordError(err error) {
	c.update(func(s *Status) { s.LastError = err.Error() })
}

func (c *Controller) update(fn func(*Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.status)
}
