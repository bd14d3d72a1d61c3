package session

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/brocaar/lorawan"

	"i4.energy/across/currentmon/at"
)

// JoinMode selects how the modem activates on the network.
type JoinMode string

const (
	// JoinABP activates by personalization with preloaded session keys.
	JoinABP JoinMode = "abp"
)

// DefaultBand is the region the deployed devices operate in.
const DefaultBand = "IN865"

// bands maps region names to RAK3172 AT+BAND indexes.
var bands = map[string]int{
	"EU433":   0,
	"CN470":   1,
	"RU864":   2,
	"IN865":   3,
	"EU868":   4,
	"US915":   5,
	"AU915":   6,
	"KR920":   7,
	"AS923-1": 8,
	"AS923-2": 9,
	"AS923-3": 10,
	"AS923-4": 11,
}

// BandIndex resolves a region name or a bare RAK3172 band index.
func BandIndex(band string) (int, bool) {
	band = strings.ToUpper(strings.TrimSpace(band))
	if i, ok := bands[band]; ok {
		return i, true
	}
	if i, err := strconv.Atoi(band); err == nil {
		for _, known := range bands {
			if known == i {
				return i, true
			}
		}
	}
	return 0, false
}

// Provisioning holds the network parameters written to the modem during
// bring-up.
type Provisioning struct {
	DevAddr  lorawan.DevAddr
	NwkSKey  lorawan.AES128Key
	AppSKey  lorawan.AES128Key
	JoinMode JoinMode
	Class    string
	Band     string
}

// ParseProvisioning builds a validated Provisioning from its textual form.
// Device address and keys are hex strings.
func ParseProvisioning(devAddr, nwkSKey, appSKey, class, band string) (Provisioning, error) {
	var p Provisioning
	if err := p.DevAddr.UnmarshalText([]byte(strings.TrimSpace(devAddr))); err != nil {
		return Provisioning{}, fmt.Errorf("%w: device address: %v", ErrInvalidProvisioning, err)
	}
	if err := p.NwkSKey.UnmarshalText([]byte(strings.TrimSpace(nwkSKey))); err != nil {
		return Provisioning{}, fmt.Errorf("%w: network session key: %v", ErrInvalidProvisioning, err)
	}
	if err := p.AppSKey.UnmarshalText([]byte(strings.TrimSpace(appSKey))); err != nil {
		return Provisioning{}, fmt.Errorf("%w: application session key: %v", ErrInvalidProvisioning, err)
	}
	p.JoinMode = JoinABP
	p.Class = strings.ToUpper(strings.TrimSpace(class))
	p.Band = strings.ToUpper(strings.TrimSpace(band))
	if err := p.Validate(); err != nil {
		return Provisioning{}, err
	}
	return p, nil
}

// Validate checks the parameters the modem would reject.
func (p Provisioning) Validate() error {
	if p.JoinMode != JoinABP {
		return fmt.Errorf("%w: join mode %q is not supported", ErrInvalidProvisioning, p.JoinMode)
	}
	switch p.Class {
	case "A", "B", "C":
	default:
		return fmt.Errorf("%w: device class %q", ErrInvalidProvisioning, p.Class)
	}
	if _, ok := BandIndex(p.Band); !ok {
		return fmt.Errorf("%w: band %q", ErrInvalidProvisioning, p.Band)
	}
	return nil
}

// Parameter is one provisioning command.
type Parameter struct {
	// Name describes the parameter in logs and errors.
	Name string
	Text string
}

// Commands returns one command per parameter in the order the modem is
// configured: join mode, class, band, device address, application session
// key, network session key. The receiver must have passed Validate.
func (p Provisioning) Commands() []Parameter {
	band, _ := BandIndex(p.Band)
	return []Parameter{
		{Name: "join mode", Text: at.CmdJoinABP},
		{Name: "device class", Text: at.CmdClass + p.Class},
		{Name: "band", Text: at.CmdBand + strconv.Itoa(band)},
		{Name: "device address", Text: at.CmdDevAddr + p.DevAddr.String()},
		{Name: "application session key", Text: at.CmdAppSKey + p.AppSKey.String()},
		{Name: "network session key", Text: at.CmdNwkSKey + p.NwkSKey.String()},
	}
}
