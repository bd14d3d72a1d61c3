// Package sensor reads the WCS6800 Hall-effect current sensor through an
// analog-to-digital converter.
package sensor

import (
	"errors"
	"fmt"
)

const (
	DefaultMaxCount      = 4095
	DefaultRefVoltage    = 3.3
	DefaultOffsetVoltage = 1.65
	// DefaultSensitivity is in volts per ampere.
	DefaultSensitivity = 0.0429

	// CheckMinVoltage and CheckMaxVoltage bound a plausible idle output.
	CheckMinVoltage = 0.5
	CheckMaxVoltage = 3.0
)

var (
	ErrNoSource         = errors.New("sensor: no sample source")
	ErrOutOfRange       = errors.New("sensor: output voltage out of range")
	ErrInvalidConverter = errors.New("sensor: invalid converter")
)

// RawSource yields one raw ADC count.
type RawSource interface {
	ReadRaw() (int, error)
}

// Converter turns ADC counts into volts and volts into amperes.
type Converter struct {
	MaxCount      float64
	RefVoltage    float64
	OffsetVoltage float64
	Sensitivity   float64
}

// DefaultConverter matches a 12-bit ADC referenced to 3.3V.
func DefaultConverter() Converter {
	return Converter{
		MaxCount:      DefaultMaxCount,
		RefVoltage:    DefaultRefVoltage,
		OffsetVoltage: DefaultOffsetVoltage,
		Sensitivity:   DefaultSensitivity,
	}
}

func (c Converter) Voltage(count int) float64 {
	return float64(count) / c.MaxCount * c.RefVoltage
}

func (c Converter) Current(voltage float64) float64 {
	return (voltage - c.OffsetVoltage) / c.Sensitivity
}

func (c Converter) validate() error {
	if c.MaxCount <= 0 || c.RefVoltage <= 0 || c.Sensitivity == 0 {
		return ErrInvalidConverter
	}
	return nil
}

// WCS6800 converts raw samples into current.
type WCS6800 struct {
	Source    RawSource
	Converter Converter
}

// ReadVoltage samples the sensor output in volts.
func (s *WCS6800) ReadVoltage() (float64, error) {
	if s.Source == nil {
		return 0, ErrNoSource
	}
	if err := s.Converter.validate(); err != nil {
		return 0, err
	}
	count, err := s.Source.ReadRaw()
	if err != nil {
		return 0, fmt.Errorf("read adc: %w", err)
	}
	return s.Converter.Voltage(count), nil
}

// ReadCurrent samples the sensor and returns amperes.
func (s *WCS6800) ReadCurrent() (float64, error) {
	v, err := s.ReadVoltage()
	if err != nil {
		return 0, err
	}
	return s.Converter.Current(v), nil
}

// Check samples the output once and verifies it lies within
// [CheckMinVoltage, CheckMaxVoltage]. The measured voltage is returned
// either way.
func (s *WCS6800) Check() (float64, error) {
	v, err := s.ReadVoltage()
	if err != nil {
		return 0, err
	}
	if v < CheckMinVoltage || v > CheckMaxVoltage {
		return v, fmt.Errorf("%w: %.3fV outside [%.1fV, %.1fV]", ErrOutOfRange, v, CheckMinVoltage, CheckMaxVoltage)
	}
	return v, nil
}
