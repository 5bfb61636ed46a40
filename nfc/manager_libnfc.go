package nfc

import (
	"fmt"
	"strings"
	"time"

	"github.com/clausecker/nfc/v2"
	log "github.com/sirupsen/logrus"
)

// libnfcManager implements Manager on top of libnfc.
type libnfcManager struct{}

// NewLibnfcManager creates a Manager backed by libnfc.
//
// Example:
//
//	manager := nfc.NewLibnfcManager()
func NewLibnfcManager() Manager {
	return &libnfcManager{}
}

// libnfcConnString maps a port selector onto a libnfc connection string.
func libnfcConnString(port string) string {
	switch {
	case IsAutoDetectPort(port):
		return ""
	case strings.HasPrefix(port, "/dev/"):
		return "pn532_uart:" + port
	default:
		return port
	}
}

func (m *libnfcManager) OpenDevice(port string) (Device, error) {
	conn := libnfcConnString(port)
	dev, err := nfc.Open(conn)
	if err != nil {
		return nil, NewOpenError("libnfc.OpenDevice", port, err)
	}
	if err := dev.InitiatorInit(); err != nil {
		dev.Close()
		return nil, NewOpenError("libnfc.InitiatorInit", port, err)
	}
	// Without this libnfc retries selection forever and Sense never returns.
	if err := dev.SetPropertyBool(nfc.InfiniteSelect, false); err != nil {
		logger.WithField("port", port).Warnf("Could not disable infinite select: %v", err)
	}
	logger.WithFields(log.Fields{"port": port, "device": dev.String()}).Info("Opened libnfc reader")
	return newLibnfcDevice(dev), nil
}

func (m *libnfcManager) ListDevices() ([]string, error) {
	var devices []string
	var err error
	for i := 0; i < DeviceEnumRetries; i++ {
		devices, err = nfc.ListDevices()
		if err == nil {
			return devices, nil
		}
		time.Sleep(time.Millisecond * 100)
	}
	return nil, fmt.Errorf("failed to list NFC devices after %d retries: %w", DeviceEnumRetries, err)
}
