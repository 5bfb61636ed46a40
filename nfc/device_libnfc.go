package nfc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/clausecker/nfc/v2"
)

// libnfcDevice implements Device using an nfc.Device from libnfc.
type libnfcDevice struct {
	mu     sync.Mutex
	device nfc.Device
	name   string
	closed bool
}

func newLibnfcDevice(dev nfc.Device) *libnfcDevice {
	return &libnfcDevice{device: dev, name: dev.String()}
}

func (d *libnfcDevice) String() string {
	return d.name
}

func (d *libnfcDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.device.Close()
}

func toLibnfcModulation(mod Modulation) nfc.Modulation {
	m := nfc.Modulation{Type: nfc.ISO14443a, BaudRate: nfc.Nbr106}
	switch mod.Type {
	case ISO14443b:
		m.Type = nfc.ISO14443b
	case Felica:
		m.Type = nfc.Felica
	}
	switch mod.BaudRate {
	case Nbr212:
		m.BaudRate = nfc.Nbr212
	case Nbr424:
		m.BaudRate = nfc.Nbr424
	}
	return m
}

// Sense polls the field until a Type A target shows up, timeout elapses or
// ctx is cancelled.
func (d *libnfcDevice) Sense(ctx context.Context, mod Modulation, timeout time.Duration) (Target, error) {
	deadline := time.Now().Add(timeout)
	m := toLibnfcModulation(mod)

	for {
		target, err := d.listOnce(m)
		if err != nil || target != nil {
			return target, err
		}
		if !time.Now().Before(deadline) {
			return nil, nil
		}

		wait := SensePollInterval
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return nil, nil
		case <-time.After(wait):
		}
	}
}

func (d *libnfcDevice) listOnce(m nfc.Modulation) (Target, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDeviceClosed
	}

	targets, err := d.device.InitiatorListPassiveTargets(m)
	if err != nil {
		return nil, NewSenseError("libnfc.Sense", err)
	}
	for _, t := range targets {
		isoA, ok := t.(*nfc.ISO14443aTarget)
		if !ok {
			continue
		}
		if isoA.UIDLen == 0 || int(isoA.UIDLen) > len(isoA.UID) {
			continue
		}
		info := &TargetInfo{
			ID:      append([]byte(nil), isoA.UID[:isoA.UIDLen]...),
			SelRes:  isoA.Sak,
			SensRes: isoA.Atqa,
		}
		if isoA.AtsLen > 0 && int(isoA.AtsLen) <= len(isoA.Ats) {
			info.ATS = append([]byte(nil), isoA.Ats[:isoA.AtsLen]...)
		}
		return info, nil
	}
	return nil, nil
}

// Activate reselects target by UID so that the following exchange goes to it.
func (d *libnfcDevice) Activate(target Target) (ActivatedTag, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDeviceClosed
	}
	if !SupportsISO14443_4(target) {
		return nil, NewActivationError("libnfc.Activate", ErrNotISO14443_4)
	}

	mod := nfc.Modulation{Type: nfc.ISO14443a, BaudRate: nfc.Nbr106}
	if _, err := d.device.InitiatorSelectPassiveTarget(mod, target.UID()); err != nil {
		return nil, NewActivationError("libnfc.Activate", err)
	}
	return &libnfcTag{dev: d}, nil
}

func (d *libnfcDevice) transceive(tx []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDeviceClosed
	}

	var rx [262]byte // Max buffer size for NFC
	count, err := d.device.InitiatorTransceiveBytes(tx, rx[:], 0)
	if err != nil {
		return nil, NewTransceiveError("libnfc.Transceive", err)
	}
	if count < 0 || count > len(rx) {
		return nil, Errorf(ErrCodeInvalidData, "libnfc.Transceive", "unexpected response length %d", count)
	}
	return append([]byte(nil), rx[:count]...), nil
}

// libnfcTag is an ISO14443-4 target selected on a libnfcDevice.
type libnfcTag struct {
	dev *libnfcDevice
}

func (t *libnfcTag) Type() TagType { return TagTypeType4 }

func (t *libnfcTag) Transceive(tx []byte) ([]byte, error) {
	return t.dev.transceive(tx)
}

func (t *libnfcTag) String() string {
	return fmt.Sprintf("Type4 tag on %s", t.dev.name)
}
