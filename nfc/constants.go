package nfc

import (
	"fmt"
	"time"
)

// Detection timing defaults
const (
	DefaultSenseTimeout = 1 * time.Second
	DefaultStopTimeout  = 2 * time.Second
	DefaultErrorBackoff = 100 * time.Millisecond
	SensePollInterval   = 100 * time.Millisecond
	DeviceEnumRetries   = 3 // Number of retries for device enumeration
)

// PortAutoDetect is the port selector that asks the driver to pick the first
// reader it can find.
const PortAutoDetect = "usb"

// IsAutoDetectPort reports whether port selects auto-detection.
func IsAutoDetectPort(port string) bool {
	return port == "" || port == PortAutoDetect
}

// TagType represents the type of an activated tag as a string.
type TagType string

// Constants for common tag types
const (
	TagTypeType4   TagType = "Type4"
	TagTypeUnknown TagType = "Unknown"
)

// SakISO14443_4 is the SEL_RES bit advertising ISO14443-4 compliance.
const SakISO14443_4 = 0x20

// ModulationType identifies the RF modulation used when sensing.
type ModulationType int

const (
	ISO14443a ModulationType = iota + 1
	ISO14443b
	Felica
)

// BaudRate identifies the RF bit rate used when sensing.
type BaudRate int

const (
	Nbr106 BaudRate = 106
	Nbr212 BaudRate = 212
	Nbr424 BaudRate = 424
)

// Modulation selects the target family a Device senses for.
type Modulation struct {
	Type     ModulationType
	BaudRate BaudRate
}

// Modulation106A is 106 kbps Type A, the Mifare / Type 4 configuration.
var Modulation106A = Modulation{Type: ISO14443a, BaudRate: Nbr106}

func (m Modulation) String() string {
	var t string
	switch m.Type {
	case ISO14443a:
		t = "A"
	case ISO14443b:
		t = "B"
	case Felica:
		t = "F"
	default:
		t = "?"
	}
	return fmt.Sprintf("%d%s", m.BaudRate, t)
}
