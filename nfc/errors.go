package nfc

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a specific type of NFC error for programmatic handling.
type ErrorCode int

const (
	// Reader errors (100-199)
	ErrCodeNotSupported ErrorCode = iota + 100
	ErrCodeOpenFailed
	ErrCodeSenseFailed
	ErrCodeActivationFailed
	ErrCodeTransceiveFailed
	ErrCodeInvalidData
)

// Sentinel errors for device operations
var (
	// ErrDeviceClosed is returned by any operation on a device after Close.
	ErrDeviceClosed = errors.New("device closed")

	// ErrReaderUnavailable is returned when no reader driver is available on this host.
	ErrReaderUnavailable = errors.New("NFC reader driver unavailable")

	// ErrNoDeviceFound is returned when auto-detection finds no usable reader.
	ErrNoDeviceFound = errors.New("no NFC devices found")

	// ErrTimeout indicates a timeout occurred during device communication
	ErrTimeout = errors.New("device operation timed out")

	// ErrNotISO14443_4 is returned when a target cannot be activated for APDU exchange.
	ErrNotISO14443_4 = errors.New("target does not support ISO14443-4")
)

// NFCError provides structured error information for programmatic handling.
type NFCError struct {
	Code    ErrorCode
	Op      string // Operation that failed (e.g., "Sense", "Transceive")
	Message string // Human-readable message
	Cause   error  // Underlying error
}

func (e *NFCError) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *NFCError) Unwrap() error {
	return e.Cause
}

func (e *NFCError) Is(target error) bool {
	if t, ok := target.(*NFCError); ok {
		return e.Code == t.Code
	}
	return false
}

// NewNotSupportedError creates an error for unsupported operations.
func NewNotSupportedError(op string) *NFCError {
	return &NFCError{
		Code:    ErrCodeNotSupported,
		Op:      op,
		Message: "operation not supported",
	}
}

// NewOpenError creates an error for a reader that could not be opened.
func NewOpenError(op, port string, cause error) *NFCError {
	return &NFCError{
		Code:    ErrCodeOpenFailed,
		Op:      op,
		Message: fmt.Sprintf("failed to open reader %q", port),
		Cause:   cause,
	}
}

// NewSenseError creates an error for a failed poll attempt.
func NewSenseError(op string, cause error) *NFCError {
	return &NFCError{
		Code:    ErrCodeSenseFailed,
		Op:      op,
		Message: "sense failed",
		Cause:   cause,
	}
}

// NewActivationError creates an error for a target that refused activation.
func NewActivationError(op string, cause error) *NFCError {
	return &NFCError{
		Code:    ErrCodeActivationFailed,
		Op:      op,
		Message: "activation failed",
		Cause:   cause,
	}
}

// NewTransceiveError creates an error for transceive failures.
func NewTransceiveError(op string, cause error) *NFCError {
	return &NFCError{
		Code:    ErrCodeTransceiveFailed,
		Op:      op,
		Message: "transceive failed",
		Cause:   cause,
	}
}

// IsDeviceClosedError checks if an error indicates the device was closed or
// has gone away, so that no further command can succeed without reopening.
func IsDeviceClosedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDeviceClosed) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "device closed") ||
		strings.Contains(errStr, "no such device") ||
		strings.Contains(errStr, "input / output error") ||
		strings.Contains(errStr, "input/output error") ||
		strings.Contains(errStr, "port has been closed")
}

// GetErrorCode extracts the ErrorCode from an error if it's an NFCError.
// Returns 0 if the error is not an NFCError.
func GetErrorCode(err error) ErrorCode {
	var nfcErr *NFCError
	if errors.As(err, &nfcErr) {
		return nfcErr.Code
	}
	return 0
}

// Errorf creates an NFCError with a formatted message.
func Errorf(code ErrorCode, op, format string, args ...interface{}) *NFCError {
	return &NFCError{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}
