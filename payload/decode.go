package payload

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	StatusLowCurrent  = "Low current or no load detected"
	StatusHighCurrent = "High current detected"
	StatusNormal      = "Normal operation"
)

var (
	rangeLimit    = decimal.NewFromInt(30)
	highThreshold = decimal.NewFromInt(20)
	lowThreshold  = decimal.New(1, -1)
)

// Reading is a decoded uplink as the network-side application sees it.
type Reading struct {
	MilliAmps int16    `json:"current_ma"`
	Amps      float64  `json:"current_a"`
	Formatted string   `json:"current_formatted"`
	Status    string   `json:"status"`
	Warnings  []string `json:"warnings,omitempty"`
}

// Decode interprets the first two bytes of an uplink as a big-endian signed
// milliampere count. Extra bytes are ignored.
func Decode(b []byte) (Reading, error) {
	if len(b) < Size {
		return Reading{}, ErrShortPayload
	}

	milli := int16(binary.BigEndian.Uint16(b))
	amps := decimal.New(int64(milli), -3)

	r := Reading{
		MilliAmps: milli,
		Amps:      amps.InexactFloat64(),
		Formatted: amps.StringFixed(3) + " A",
	}

	if amps.Abs().GreaterThan(rangeLimit) {
		r.Warnings = append(r.Warnings, "Current value exceeds typical WCS6800 range (±30A)")
	}

	switch {
	case amps.Abs().LessThan(lowThreshold):
		r.Status = StatusLowCurrent
	case amps.GreaterThan(highThreshold):
		r.Status = StatusHighCurrent
		r.Warnings = append(r.Warnings, "High current detected - check load")
	default:
		r.Status = StatusNormal
	}

	return r, nil
}

// DecodeHex decodes the hex form carried in AT+SEND.
func DecodeHex(s string) (Reading, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return Reading{}, fmt.Errorf("decode hex payload %q: %w", s, err)
	}
	return Decode(b)
}
