package nfc

import (
	"bytes"
	"testing"
)

func TestFormatUID(t *testing.T) {
	tests := []struct {
		uid      []byte
		expected string
	}{
		{[]byte{0x04, 0xa1, 0xb2, 0xc3}, "04A1B2C3"},
		{[]byte{0x0f}, "0F"},
		{nil, ""},
	}

	for _, tt := range tests {
		if got := FormatUID(tt.uid); got != tt.expected {
			t.Errorf("FormatUID(%x) = %q, want %q", tt.uid, got, tt.expected)
		}
	}
}

func TestSupportsISO14443_4(t *testing.T) {
	tests := []struct {
		name     string
		sak      byte
		expected bool
	}{
		{"phone or Type 4", 0x20, true},
		{"DESFire", 0x24, true},
		{"MIFARE Classic 1K", 0x08, false},
		{"Ultralight", 0x00, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := &TargetInfo{ID: []byte{0x01}, SelRes: tt.sak}
			if got := SupportsISO14443_4(target); got != tt.expected {
				t.Errorf("SupportsISO14443_4(sak=%02X) = %v, want %v", tt.sak, got, tt.expected)
			}
		})
	}
}

func TestSelectByAIDAPDU(t *testing.T) {
	expected := []byte{0x00, 0xA4, 0x04, 0x00, 0x07, 0xF0, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00}
	if got := SelectByAIDAPDU(DefaultAID); !bytes.Equal(got, expected) {
		t.Errorf("SelectByAIDAPDU() = % X, want % X", got, expected)
	}
}

func TestParseAPDUResponse(t *testing.T) {
	resp, err := ParseAPDUResponse([]byte{0xAA, 0xBB, 0x90, 0x00})
	if err != nil {
		t.Fatalf("ParseAPDUResponse() failed: %v", err)
	}
	if !resp.IsSuccess() || resp.Error() != nil {
		t.Errorf("Expected success, got SW %02X%02X", resp.SW1, resp.SW2)
	}
	if !bytes.Equal(resp.Data, []byte{0xAA, 0xBB}) {
		t.Errorf("Expected data AABB, got % X", resp.Data)
	}

	resp, err = ParseAPDUResponse([]byte{0x6A, 0x82})
	if err != nil {
		t.Fatalf("ParseAPDUResponse() failed: %v", err)
	}
	if resp.IsSuccess() || resp.SW1 != 0x6A || resp.SW2 != 0x82 || resp.Error() == nil {
		t.Errorf("Expected 6A82 failure, got %02X%02X", resp.SW1, resp.SW2)
	}

	if _, err := ParseAPDUResponse([]byte{0x90}); err == nil {
		t.Error("Expected error for one-byte response")
	}
}
