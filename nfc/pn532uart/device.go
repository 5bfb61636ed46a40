// Package pn532uart drives an NXP PN532 attached to a serial port through
// go-pn532, without libnfc. Only what presence detection needs is exposed:
// single target 106 kbps Type A polling and APDU exchange with ISO14443-4
// targets.
package pn532uart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pn532 "github.com/ZaparooProject/go-pn532"
	"github.com/dotside-studios/nfc-presence-agent/nfc"
)

const (
	exchangeTimeout = time.Second
	minListTimeout  = 50 * time.Millisecond
)

// Device is an open PN532 session. It implements nfc.Device.
//
// pn532.Device is not safe for concurrent use; mu serialises every command.
type Device struct {
	mu       sync.Mutex
	pn       *pn532.Device
	name     string
	firmware string
	closed   bool

	// PollInterval is the pause between empty InListPassiveTarget rounds.
	PollInterval time.Duration
}

// Firmware returns the firmware version reported when the device was opened.
func (d *Device) Firmware() string {
	return d.firmware
}

func (d *Device) String() string {
	if d.firmware == "" {
		return "PN532 on " + d.name
	}
	return fmt.Sprintf("PN532 v%s on %s", d.firmware, d.name)
}

// Close releases the serial port. Calling Close more than once is safe.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.pn.Close()
}

// Sense polls with InListPassiveTarget until a target answers, timeout
// elapses or ctx is cancelled.
func (d *Device) Sense(ctx context.Context, mod nfc.Modulation, timeout time.Duration) (nfc.Target, error) {
	if mod != nfc.Modulation106A {
		return nil, nfc.NewNotSupportedError("pn532uart.Sense " + mod.String())
	}

	deadline := time.Now().Add(timeout)
	for {
		target, err := d.listOnce(ctx, deadline)
		if ctx.Err() != nil {
			return nil, nil
		}
		if err != nil || target != nil {
			return target, err
		}
		if !time.Now().Before(deadline) {
			return nil, nil
		}

		wait := d.PollInterval
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

func (d *Device) listOnce(ctx context.Context, deadline time.Time) (nfc.Target, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, nfc.ErrDeviceClosed
	}

	timeout := time.Until(deadline)
	if timeout < minListTimeout {
		timeout = minListTimeout
	}
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// MaxTg 1, BrTy 0x00 (106 kbps Type A)
	tags, err := d.pn.InListPassiveTargetContext(pollCtx, 1, 0x00)
	if err != nil {
		// An unanswered poll means an empty field, not a broken reader.
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, nil
		}
		return nil, nfc.NewSenseError("pn532uart.Sense", err)
	}
	if len(tags) == 0 {
		return nil, nil
	}
	return toTarget(tags[0])
}

// toTarget copies a go-pn532 detection into an nfc.TargetInfo.
func toTarget(tag *pn532.DetectedTag) (*nfc.TargetInfo, error) {
	if len(tag.UIDBytes) == 0 {
		return nil, nfc.Errorf(nfc.ErrCodeInvalidData, "InListPassiveTarget", "target without UID")
	}
	info := &nfc.TargetInfo{
		ID:     append([]byte(nil), tag.UIDBytes...),
		SelRes: tag.SAK,
		Tg:     1,
	}
	copy(info.SensRes[:], tag.ATQ)
	return info, nil
}

// Activate hands out an exchange handle for target. The PN532 already ran
// RATS during InListPassiveTarget, so this only checks the target is
// ISO14443-4 compliant.
func (d *Device) Activate(target nfc.Target) (nfc.ActivatedTag, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, nfc.ErrDeviceClosed
	}
	if !nfc.SupportsISO14443_4(target) {
		return nil, nfc.NewActivationError("pn532uart.Activate", nfc.ErrNotISO14443_4)
	}
	return &tag{dev: d}, nil
}

func (d *Device) exchange(tx []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, nfc.ErrDeviceClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), exchangeTimeout)
	defer cancel()

	resp, err := d.pn.SendDataExchangeContext(ctx, tx)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, nfc.NewTransceiveError("pn532uart.Transceive", fmt.Errorf("%w: %v", nfc.ErrTimeout, err))
	}
	if err != nil {
		return nil, nfc.NewTransceiveError("pn532uart.Transceive", err)
	}
	return append([]byte(nil), resp...), nil
}

// tag is a target activated on a Device. go-pn532 always exchanges with
// logical target 1, the only one a single-target poll can produce.
type tag struct {
	dev *Device
}

func (t *tag) Type() nfc.TagType { return nfc.TagTypeType4 }

func (t *tag) Transceive(tx []byte) ([]byte, error) {
	return t.dev.exchange(tx)
}
