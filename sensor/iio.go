package sensor

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// IIO reads raw samples from a Linux Industrial I/O sysfs channel such as
// /sys/bus/iio/devices/iio:device0/in_voltage0_raw.
type IIO struct {
	Path string
	// Shift right-shifts each sample, e.g. 4 to map a 16-bit reading onto
	// the 12-bit scale of the converter.
	Shift uint
}

func (s IIO) ReadRaw() (int, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return 0, err
	}
	raw, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", s.Path, err)
	}
	if raw < 0 {
		return 0, fmt.Errorf("parse %s: negative sample %d", s.Path, raw)
	}
	return raw >> s.Shift, nil
}
