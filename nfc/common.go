package nfc

import (
	"encoding/hex"
	"strings"
)

// Target is a token found by a single Sense call. It is only valid until the
// next Sense on the same device.
type Target interface {
	// UID returns the anti-collision identifier reported by the reader.
	UID() []byte
	// Sak returns the SEL_RES byte.
	Sak() byte
}

// TargetInfo is a plain Target used by drivers that decode the reader's
// response themselves and by tests.
type TargetInfo struct {
	ID      []byte
	SelRes  byte
	SensRes [2]byte
	ATS     []byte

	// Tg is the driver-assigned logical target number, if any.
	Tg byte
}

func (t *TargetInfo) UID() []byte { return t.ID }
func (t *TargetInfo) Sak() byte   { return t.SelRes }

// SupportsISO14443_4 reports whether the target advertised ISO14443-4 in its SAK.
func SupportsISO14443_4(t Target) bool {
	return t.Sak()&SakISO14443_4 != 0
}

// FormatUID renders bytes the way UIDs, identities and AIDs are reported:
// uppercase hex.
func FormatUID(uid []byte) string {
	return strings.ToUpper(hex.EncodeToString(uid))
}
