// Package session drives a RAK3172 modem through bring-up and the periodic
// measure, send and listen cycle of the current monitor.
package session

import (
	"context"
	"time"

	"i4.energy/across/currentmon/modem"
	"i4.energy/across/currentmon/payload"
)

// Executor runs AT commands. *modem.Modem implements it.
//
//go:generate go tool mockgen -destination=mock_session.go -package=session . Executor,Sensor,Actuator,Publisher
type Executor interface {
	Execute(ctx context.Context, cmd modem.Command) (string, error)
	Poll() ([]string, error)
	Drain(ctx context.Context) error
}

// Sensor produces one current sample in amperes.
type Sensor interface {
	ReadCurrent() (float64, error)
}

// Actuator is the output switched by downlink commands.
type Actuator interface {
	Set(on bool) error
}

// Publisher mirrors measurements to a secondary channel.
type Publisher interface {
	Publish(ctx context.Context, m Measurement) error
}

// Measurement is one sampled and encoded reading.
type Measurement struct {
	Cycle     uint64
	Current   float64
	Payload   payload.Payload
	DevAddr   string
	Timestamp time.Time
}

// Status is a point-in-time view of the session.
type Status struct {
	State            State            `json:"state"`
	Since            time.Time        `json:"since"`
	Cycle            uint64           `json:"cycle"`
	LastReading      *payload.Reading `json:"last_reading,omitempty"`
	LastReadingAt    time.Time        `json:"last_reading_at,omitzero"`
	LastDownlink     string           `json:"last_downlink,omitempty"`
	LastError        string           `json:"last_error,omitempty"`
	Sent             uint64           `json:"sent"`
	SendFailures     uint64           `json:"send_failures"`
	TxConfirmed      uint64           `json:"tx_confirmed"`
	Downlinks        uint64           `json:"downlinks"`
	UnknownDownlinks uint64           `json:"unknown_downlinks"`
}
