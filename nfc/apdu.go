package nfc

import (
	"errors"
	"fmt"
)

// APDU status words
const (
	SW1Success = 0x90
	SW2Success = 0x00
)

// APDU command class and instructions used by the identity resolver
const (
	CLAStandard   = 0x00 // Standard ISO7816-4
	INSSelectFile = 0xA4 // Select file
)

// DefaultAID is the proprietary application identifier that HCE apps register
// to hand out a custom identity.
var DefaultAID = []byte{0xF0, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01}

// APDUResponse represents a parsed APDU response
type APDUResponse struct {
	Data []byte
	SW1  byte
	SW2  byte
}

// IsSuccess returns true if the response indicates success (SW1=90, SW2=00)
func (r APDUResponse) IsSuccess() bool {
	return r.SW1 == SW1Success && r.SW2 == SW2Success
}

// Error returns an error if the response is not successful
func (r APDUResponse) Error() error {
	if r.IsSuccess() {
		return nil
	}
	return fmt.Errorf("APDU error: SW1=%02X SW2=%02X", r.SW1, r.SW2)
}

// ParseAPDUResponse parses a raw response into APDUResponse
func ParseAPDUResponse(raw []byte) (APDUResponse, error) {
	if len(raw) < 2 {
		return APDUResponse{}, errors.New("response too short")
	}
	return APDUResponse{
		Data: raw[:len(raw)-2],
		SW1:  raw[len(raw)-2],
		SW2:  raw[len(raw)-1],
	}, nil
}

// BuildAPDU constructs an APDU command
func BuildAPDU(cla, ins, p1, p2 byte, data []byte, le *byte) []byte {
	cmd := []byte{cla, ins, p1, p2}

	if len(data) > 0 {
		cmd = append(cmd, byte(len(data)))
		cmd = append(cmd, data...)
	}

	if le != nil {
		cmd = append(cmd, *le)
	}

	return cmd
}

// SelectByAIDAPDU returns the SELECT (by DF name) APDU for aid, Le=00.
func SelectByAIDAPDU(aid []byte) []byte {
	le := byte(0x00)
	return BuildAPDU(CLAStandard, INSSelectFile, 0x04, 0x00, aid, &le)
}
