package nfc

import (
	"errors"
	"fmt"
	"testing"
)

func TestNFCError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *NFCError
		expected string
	}{
		{
			name: "with op and message",
			err: &NFCError{
				Code:    ErrCodeNotSupported,
				Op:      "Transceive",
				Message: "operation not supported",
			},
			expected: "Transceive: operation not supported",
		},
		{
			name: "with op, message, and cause",
			err: &NFCError{
				Code:    ErrCodeSenseFailed,
				Op:      "Sense",
				Message: "sense failed",
				Cause:   errors.New("connection lost"),
			},
			expected: "Sense: sense failed: connection lost",
		},
		{
			name: "message only",
			err: &NFCError{
				Code:    ErrCodeNotSupported,
				Message: "not supported",
			},
			expected: "not supported",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("NFCError.Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestNFCError_Unwrap(t *testing.T) {
	err := NewOpenError("OpenDevice", "usb", ErrReaderUnavailable)

	if !errors.Is(err, ErrReaderUnavailable) {
		t.Errorf("errors.Is(%v, ErrReaderUnavailable) = false, want true", err)
	}

	errNoCause := NewNotSupportedError("Activate")
	if unwrapped := errNoCause.Unwrap(); unwrapped != nil {
		t.Errorf("NFCError.Unwrap() = %v, want nil", unwrapped)
	}
}

func TestNFCError_Is(t *testing.T) {
	err1 := &NFCError{Code: ErrCodeNotSupported, Message: "test"}
	err2 := &NFCError{Code: ErrCodeNotSupported, Message: "different message"}
	err3 := &NFCError{Code: ErrCodeTransceiveFailed, Message: "test"}

	if !errors.Is(err1, err2) {
		t.Error("errors with the same code should match")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match")
	}

	wrapped := fmt.Errorf("resolve: %w", err3)
	if !errors.Is(wrapped, &NFCError{Code: ErrCodeTransceiveFailed}) {
		t.Error("wrapped error should match by code")
	}
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, 0},
		{"plain error", errors.New("boom"), 0},
		{"activation", NewActivationError("Activate", ErrNotISO14443_4), ErrCodeActivationFailed},
		{"wrapped sense", fmt.Errorf("iteration: %w", NewSenseError("Sense", ErrTimeout)), ErrCodeSenseFailed},
		{"formatted", Errorf(ErrCodeInvalidData, "SelectAID", "bad length %d", 1), ErrCodeInvalidData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetErrorCode(tt.err); got != tt.want {
				t.Errorf("GetErrorCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsDeviceClosedError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		closed bool
	}{
		{"nil", nil, false},
		{"closed sentinel", ErrDeviceClosed, true},
		{"closed wrapped", NewTransceiveError("Transceive", ErrDeviceClosed), true},
		{"libusb vanished", errors.New("libusb: No such device"), true},
		{"libnfc unplugged", NewSenseError("libnfc.Sense", errors.New("input / output error")), true},
		{"serial unplugged", errors.New("read /dev/ttyUSB0: input/output error"), true},
		{"timeout sentinel", ErrTimeout, false},
		{"other", errors.New("checksum mismatch"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDeviceClosedError(tt.err); got != tt.closed {
				t.Errorf("IsDeviceClosedError() = %v, want %v", got, tt.closed)
			}
		})
	}
}
