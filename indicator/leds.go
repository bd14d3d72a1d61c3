package indicator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// DefaultLEDRoot is where Linux exposes LED class devices.
const DefaultLEDRoot = "/sys/class/leds"

// LED is a single Linux LED class device switched through its brightness
// attribute.
type LED struct {
	// Path is the brightness file, e.g. /sys/class/leds/user/brightness.
	Path string
}

// NewLED returns the LED named name under root.
func NewLED(root, name string) LED {
	if root == "" {
		root = DefaultLEDRoot
	}
	return LED{Path: filepath.Join(root, name, "brightness")}
}

// Set switches the LED on or off.
func (l LED) Set(on bool) error {
	if l.Path == "" {
		return errors.New("indicator: LED path is empty")
	}
	value := []byte("0")
	if on {
		value = []byte("1")
	}
	if err := os.WriteFile(l.Path, value, 0o644); err != nil {
		return fmt.Errorf("set LED %s: %w", l.Path, err)
	}
	return nil
}

// LEDs maps each status channel to an LED. Channels without an LED are
// ignored; write failures are logged at debug level and dropped.
type LEDs struct {
	leds   map[Channel]LED
	logger *zap.Logger
}

// NewLEDs builds an Indicator from LED names keyed by channel.
func NewLEDs(root string, names map[Channel]string, logger *zap.Logger) *LEDs {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &LEDs{leds: make(map[Channel]LED, len(names)), logger: logger}
	for ch, name := range names {
		if name == "" {
			continue
		}
		l.leds[ch] = NewLED(root, name)
	}
	return l
}

func (l *LEDs) Set(ch Channel, on bool) {
	led, ok := l.leds[ch]
	if !ok {
		return
	}
	if err := led.Set(on); err != nil {
		l.logger.Debug("Status light write failed", zap.Stringer("channel", ch), zap.Error(err))
	}
}
