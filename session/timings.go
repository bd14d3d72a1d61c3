package session

import "time"

// Timings are the per-phase delays and timeouts of a session.
type Timings struct {
	BootDelay     time.Duration `yaml:"boot_delay"`
	ProbeAttempts int           `yaml:"probe_attempts"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`
	ProbeDelay    time.Duration `yaml:"probe_delay"`
	ConfigTimeout time.Duration `yaml:"config_timeout"`
	SettleDelay   time.Duration `yaml:"settle_delay"`
	JoinTimeout   time.Duration `yaml:"join_timeout"`
	SendTimeout   time.Duration `yaml:"send_timeout"`
	ListenWindow  time.Duration `yaml:"listen_window"`
	ListenPoll    time.Duration `yaml:"listen_poll"`
	CycleInterval time.Duration `yaml:"cycle_interval"`
	// PulseEvery splits the cycle wait into chunks, each starting with an
	// Activity pulse of PulseLength.
	PulseEvery  time.Duration `yaml:"pulse_every"`
	PulseLength time.Duration `yaml:"pulse_length"`
	// DownlinkBlink is the on and off time of a blink downlink pulse.
	DownlinkBlink time.Duration `yaml:"downlink_blink"`
	// FailureBlink and ErrorBlink pace the bring-up failure and cycle
	// error indications.
	FailureBlink time.Duration `yaml:"failure_blink"`
	ErrorBlink   time.Duration `yaml:"error_blink"`
}

// DefaultTimings returns the timings the RAK3172 firmware is known to work
// with.
func DefaultTimings() Timings {
	return Timings{
		BootDelay:     3 * time.Second,
		ProbeAttempts: 5,
		ProbeTimeout:  3 * time.Second,
		ProbeDelay:    time.Second,
		ConfigTimeout: 3 * time.Second,
		SettleDelay:   500 * time.Millisecond,
		JoinTimeout:   10 * time.Second,
		SendTimeout:   10 * time.Second,
		ListenWindow:  15 * time.Second,
		ListenPoll:    100 * time.Millisecond,
		CycleInterval: 60 * time.Second,
		PulseEvery:    10 * time.Second,
		PulseLength:   time.Second,
		DownlinkBlink: 300 * time.Millisecond,
		FailureBlink:  200 * time.Millisecond,
		ErrorBlink:    100 * time.Millisecond,
	}
}

// NoDelay turns off a delay, wait or blink pace. A zero field takes its
// default instead.
const NoDelay time.Duration = -1

// withDefaults fills every zero field from DefaultTimings. Negative delays
// become zero; timeouts must be positive.
func (t Timings) withDefaults() Timings {
	d := DefaultTimings()
	if t.ProbeAttempts <= 0 {
		t.ProbeAttempts = d.ProbeAttempts
	}
	timeout(&t.ProbeTimeout, d.ProbeTimeout)
	timeout(&t.ConfigTimeout, d.ConfigTimeout)
	timeout(&t.JoinTimeout, d.JoinTimeout)
	timeout(&t.SendTimeout, d.SendTimeout)
	timeout(&t.ListenPoll, d.ListenPoll)

	delay(&t.BootDelay, d.BootDelay)
	delay(&t.ProbeDelay, d.ProbeDelay)
	delay(&t.SettleDelay, d.SettleDelay)
	delay(&t.ListenWindow, d.ListenWindow)
	delay(&t.CycleInterval, d.CycleInterval)
	delay(&t.PulseEvery, d.PulseEvery)
	delay(&t.PulseLength, d.PulseLength)
	delay(&t.DownlinkBlink, d.DownlinkBlink)
	delay(&t.FailureBlink, d.FailureBlink)
	delay(&t.ErrorBlink, d.ErrorBlink)

	if t.PulseEvery <= 0 || t.PulseEvery > t.CycleInterval {
		t.PulseEvery = t.CycleInterval
	}
	if t.PulseLength > t.PulseEvery {
		t.PulseLength = t.PulseEvery
	}
	return t
}

func timeout(v *time.Duration, def time.Duration) {
	if *v <= 0 {
		*v = def
	}
}

func delay(v *time.Duration, def time.Duration) {
	switch {
	case *v == 0:
		*v = def
	case *v < 0:
		*v = 0
	}
}
