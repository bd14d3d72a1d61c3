package payload

import (
	"strings"
)

// Command is a downlink instruction for the output actuator.
type Command byte

const (
	CommandUnknown Command = 0x00
	CommandOn      Command = 0x01
	CommandOff     Command = 0x02
	CommandBlink   Command = 0x04
)

func (c Command) String() string {
	switch c {
	case CommandOn:
		return "on"
	case CommandOff:
		return "off"
	case CommandBlink:
		return "blink"
	default:
		return "unknown"
	}
}

// ParseDownlink maps a received downlink payload to a Command. Only the exact
// two-digit forms "01", "02" and "04" are recognized.
func ParseDownlink(payload string) Command {
	switch strings.TrimSpace(payload) {
	case "01":
		return CommandOn
	case "02":
		return CommandOff
	case "04":
		return CommandBlink
	default:
		return CommandUnknown
	}
}

// EncodeDownlink returns the downlink bytes for a command name, accepting the
// aliases the network-side codec accepts.
func EncodeDownlink(name string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "on", "turn_on", "1":
		return []byte{byte(CommandOn)}, nil
	case "off", "turn_off", "0":
		return []byte{byte(CommandOff)}, nil
	case "blink", "flash", "toggle":
		return []byte{byte(CommandBlink)}, nil
	default:
		return nil, ErrUnknownCommand
	}
}
