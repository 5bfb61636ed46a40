package nfc

import (
	"context"
	"time"
)

// Device represents an open session with an NFC reader.
//
// A Device is obtained from a Manager. Every method other than Close and
// String returns ErrDeviceClosed once the device has been closed.
//
// Example:
//
//	manager := nfc.NewLibnfcManager()
//	device, err := manager.OpenDevice("usb")
//	defer device.Close()
//	target, err := device.Sense(ctx, nfc.Modulation106A, time.Second)
type Device interface {
	// Sense waits up to timeout for one target. It returns (nil, nil) when no
	// target is in the field or ctx is cancelled.
	Sense(ctx context.Context, mod Modulation, timeout time.Duration) (Target, error)

	// Activate selects target for APDU exchange.
	Activate(target Target) (ActivatedTag, error)

	// Close releases the reader. Calling Close more than once is safe.
	Close() error

	String() string
}

// ActivatedTag is a target that has been selected for APDU exchange.
type ActivatedTag interface {
	Type() TagType
	Transceive(tx []byte) ([]byte, error)
}
