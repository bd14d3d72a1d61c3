// Package payload implements the 2-byte uplink format carrying a current
// reading in milliamperes, and the single-byte downlink command set.
package payload

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Size is the encoded uplink length in bytes.
const Size = 2

var (
	milliPerUnit = decimal.NewFromInt(1000)
	maxMilli     = decimal.NewFromInt(math.MaxInt16)
	minMilli     = decimal.NewFromInt(math.MinInt16)
)

// Payload is an encoded current reading.
type Payload struct {
	MilliAmps int16
	// Saturated reports whether the reading was clamped to the int16 range.
	Saturated bool
}

// Encode converts a current in amperes to milliamperes rounded half away
// from zero, saturated to [-32768, 32767]. The multiplication is done in
// decimal so readings such as 1.234 A land on 1234 mA exactly.
func Encode(amps float64) (Payload, error) {
	switch {
	case math.IsNaN(amps):
		return Payload{}, ErrNotFinite
	case math.IsInf(amps, 1):
		return Payload{MilliAmps: math.MaxInt16, Saturated: true}, nil
	case math.IsInf(amps, -1):
		return Payload{MilliAmps: math.MinInt16, Saturated: true}, nil
	}

	milli := decimal.NewFromFloat(amps).Mul(milliPerUnit).Round(0)
	switch {
	case milli.GreaterThan(maxMilli):
		return Payload{MilliAmps: math.MaxInt16, Saturated: true}, nil
	case milli.LessThan(minMilli):
		return Payload{MilliAmps: math.MinInt16, Saturated: true}, nil
	}
	return Payload{MilliAmps: int16(milli.IntPart())}, nil
}

// Bytes returns the big-endian wire form.
func (p Payload) Bytes() []byte {
	b := make([]byte, Size)
	binary.BigEndian.PutUint16(b, uint16(p.MilliAmps))
	return b
}

// Hex returns the wire form as an uppercase hex string, as used in
// AT+SEND.
func (p Payload) Hex() string {
	return strings.ToUpper(hex.EncodeToString(p.Bytes()))
}

// Amps returns the encoded value converted back to amperes.
func (p Payload) Amps() float64 {
	return decimal.New(int64(p.MilliAmps), -3).InexactFloat64()
}

func (p Payload) String() string {
	return fmt.Sprintf("%s (%d mA)", p.Hex(), p.MilliAmps)
}
