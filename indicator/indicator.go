// Package indicator drives the status lights: one light per channel, set
// fire-and-forget, plus the output LED switched by downlink commands.
package indicator

import (
	"context"
	"time"
)

// Channel names a status light.
type Channel int

const (
	// Transmit is lit while a command is on the wire.
	Transmit Channel = iota
	// WaitJoin is lit while waiting on the modem, while listening for a
	// downlink, and held on after a bring-up failure.
	WaitJoin
	// Activity is lit during configuration and pulsed between cycles.
	Activity
)

// Channels lists every channel in self-test order.
var Channels = []Channel{WaitJoin, Activity, Transmit}

func (c Channel) String() string {
	switch c {
	case Transmit:
		return "transmit"
	case WaitJoin:
		return "wait_join"
	case Activity:
		return "activity"
	default:
		return "unknown"
	}
}

// Indicator sets a status light. Failures are not reported to the caller.
//
//go:generate go tool mockgen -destination=mock_indicator.go -package=indicator . Indicator
type Indicator interface {
	Set(ch Channel, on bool)
}

// Nop is an Indicator without lights.
type Nop struct{}

func (Nop) Set(Channel, bool) {}

// Blink flashes ch n times with the given on and off durations and leaves
// it off. It returns early when ctx is done.
func Blink(ctx context.Context, ind Indicator, ch Channel, n int, period time.Duration) {
	for i := 0; i < n; i++ {
		ind.Set(ch, true)
		if !sleep(ctx, period) {
			ind.Set(ch, false)
			return
		}
		ind.Set(ch, false)
		if !sleep(ctx, period) {
			return
		}
	}
}

// SelfTest lights every channel once in turn.
func SelfTest(ctx context.Context, ind Indicator, period time.Duration) {
	for _, ch := range Channels {
		Blink(ctx, ind, ch, 1, period)
	}
}

// AllOff switches every channel off.
func AllOff(ind Indicator) {
	for _, ch := range Channels {
		ind.Set(ch, false)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
