package nfc

import (
	"errors"
	"fmt"
	"testing"
)

func TestMockManager_ListDevices(t *testing.T) {
	manager := NewMockManager()
	manager.DevicesList = []string{"mock:usb:001", "mock:usb:002", "mock:usb:003"}

	devices, err := manager.ListDevices()
	if err != nil {
		t.Errorf("ListDevices() failed: %v", err)
	}

	if len(devices) != 3 {
		t.Errorf("Expected 3 devices, got %d", len(devices))
	}

	expectedDevices := []string{"mock:usb:001", "mock:usb:002", "mock:usb:003"}
	for i, device := range devices {
		if device != expectedDevices[i] {
			t.Errorf("Expected device %d to be '%s', got '%s'", i, expectedDevices[i], device)
		}
	}

	devices[0] = "changed"
	if manager.DevicesList[0] != "mock:usb:001" {
		t.Error("ListDevices() should return a copy")
	}
}

func TestMockManager_ListDevicesError(t *testing.T) {
	manager := NewMockManager()
	expectedErr := fmt.Errorf("no devices found")
	manager.ListDevicesError = expectedErr

	_, err := manager.ListDevices()
	if err != expectedErr {
		t.Errorf("Expected error '%v', got '%v'", expectedErr, err)
	}
}

func TestMockManager_OpenDevice(t *testing.T) {
	manager := NewMockManager()
	manager.MockDevice.Close()

	device, err := manager.OpenDevice("/dev/ttyUSB0")
	if err != nil {
		t.Fatalf("OpenDevice() failed: %v", err)
	}
	if device == nil {
		t.Fatal("Expected device to be non-nil")
	}

	if manager.MockDevice.IsClosed() {
		t.Error("OpenDevice() should reopen a closed mock device")
	}
	if manager.MockDevice.Port != "/dev/ttyUSB0" {
		t.Errorf("Expected port '/dev/ttyUSB0', got '%s'", manager.MockDevice.Port)
	}
}

func TestMockManager_OpenDeviceError(t *testing.T) {
	manager := NewMockManager()
	expectedErr := fmt.Errorf("device busy")
	manager.SetOpenError(expectedErr)

	_, err := manager.OpenDevice("usb")
	if !errors.Is(err, expectedErr) {
		t.Errorf("Expected error wrapping '%v', got '%v'", expectedErr, err)
	}
	if GetErrorCode(err) != ErrCodeOpenFailed {
		t.Errorf("Expected ErrCodeOpenFailed, got %v", GetErrorCode(err))
	}

	manager.SetOpenError(nil)
	if _, err := manager.OpenDevice("usb"); err != nil {
		t.Errorf("OpenDevice() after clearing error failed: %v", err)
	}
}

func TestMockManager_CallLog(t *testing.T) {
	manager := NewMockManager()

	manager.ListDevices()
	manager.OpenDevice("usb")

	callLog := manager.GetCallLog()
	expectedCalls := []string{"ListDevices", "OpenDevice(usb)"}
	if len(callLog) != len(expectedCalls) {
		t.Fatalf("Expected %d calls, got %d", len(expectedCalls), len(callLog))
	}
	for i, call := range callLog {
		if call != expectedCalls[i] {
			t.Errorf("Expected call %d to be '%s', got '%s'", i, expectedCalls[i], call)
		}
	}

	manager.ClearCallLog()
	if len(manager.GetCallLog()) != 0 {
		t.Error("Expected call log to be empty after clear")
	}
}

func TestUnavailableManager(t *testing.T) {
	manager := NewUnavailableManager("no driver")

	_, err := manager.OpenDevice("usb")
	if !errors.Is(err, ErrReaderUnavailable) {
		t.Errorf("Expected ErrReaderUnavailable, got %v", err)
	}
	if _, err := manager.ListDevices(); !errors.Is(err, ErrReaderUnavailable) {
		t.Errorf("Expected ErrReaderUnavailable, got %v", err)
	}
}

func TestLibnfcConnString(t *testing.T) {
	tests := map[string]string{
		"usb":             "",
		"":                "",
		"/dev/ttyUSB0":    "pn532_uart:/dev/ttyUSB0",
		"pn532_uart:COM3": "pn532_uart:COM3",
		"acr122_usb:":     "acr122_usb:",
	}

	for port, expected := range tests {
		if got := libnfcConnString(port); got != expected {
			t.Errorf("libnfcConnString(%q) = %q, want %q", port, got, expected)
		}
	}
}
