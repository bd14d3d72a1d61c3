package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"i4.energy/across/currentmon/payload"
)

// BlinkPulses is how many times a blink downlink pulses the output.
const BlinkPulses = 3

// Dispatch applies a downlink payload to the actuator: "01" switches it on,
// "02" off, and "04" pulses it BlinkPulses times with the given on and off
// time. Any other payload leaves the actuator untouched and yields
// payload.CommandUnknown.
func Dispatch(ctx context.Context, act Actuator, data string, period time.Duration) (payload.Command, error) {
	cmd := payload.ParseDownlink(data)
	switch cmd {
	case payload.CommandOn:
		return cmd, set(act, true)
	case payload.CommandOff:
		return cmd, set(act, false)
	case payload.CommandBlink:
		for i := 0; i < BlinkPulses; i++ {
			if err := set(act, true); err != nil {
				return cmd, err
			}
			if err := sleep(ctx, period); err != nil {
				return cmd, errors.Join(err, set(act, false))
			}
			if err := set(act, false); err != nil {
				return cmd, err
			}
			if err := sleep(ctx, period); err != nil {
				return cmd, err
			}
		}
		return cmd, nil
	default:
		return cmd, nil
	}
}

func set(act Actuator, on bool) error {
	if err := act.Set(on); err != nil {
		return fmt.Errorf("set output %t: %w", on, err)
	}
	return nil
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
