package sensor

import (
	"math"
	"math/rand/v2"
)

// Simulated produces counts for a load drawing Amps, varied uniformly by up
// to Jitter amperes, as seen through Converter.
type Simulated struct {
	Converter Converter
	Amps      float64
	Jitter    float64
}

func (s Simulated) ReadRaw() (int, error) {
	if err := s.Converter.validate(); err != nil {
		return 0, err
	}
	amps := s.Amps
	if s.Jitter > 0 {
		amps += s.Jitter * (2*rand.Float64() - 1)
	}
	v := s.Converter.OffsetVoltage + amps*s.Converter.Sensitivity
	count := math.Round(v / s.Converter.RefVoltage * s.Converter.MaxCount)
	return int(max(0, min(count, s.Converter.MaxCount))), nil
}
