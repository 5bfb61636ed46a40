package pn532uart

import (
	"context"
	"fmt"
	"strings"
	"time"

	pn532 "github.com/ZaparooProject/go-pn532"
	"github.com/ZaparooProject/go-pn532/transport/uart"
	"github.com/dotside-studios/nfc-presence-agent/nfc"
	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// ConnPrefix is the libnfc-style prefix accepted in front of a port name.
const ConnPrefix = "pn532_uart:"

const initTimeout = 2 * time.Second

// Manager opens PN532 readers on serial ports. It implements nfc.Manager.
type Manager struct {
	// OpenTransport opens the PN532 transport on a serial port. Tests replace
	// it with an in-memory transport.
	OpenTransport func(name string) (pn532.Transport, error)

	// ListPorts enumerates candidate serial ports for auto-detection.
	ListPorts func() ([]string, error)
}

// NewManager creates a Manager using the host's serial ports.
func NewManager() *Manager {
	return &Manager{
		OpenTransport: openUART,
		ListPorts:     serial.GetPortsList,
	}
}

func openUART(name string) (pn532.Transport, error) {
	t, err := uart.New(name)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// OpenDevice opens the PN532 on port. "usb" or "" tries every serial port
// and keeps the first one that answers.
func (m *Manager) OpenDevice(port string) (nfc.Device, error) {
	if nfc.IsAutoDetectPort(port) {
		return m.autoDetect()
	}
	dev, err := m.open(strings.TrimPrefix(port, ConnPrefix))
	if err != nil {
		return nil, err
	}
	return dev, nil
}

func (m *Manager) open(name string) (*Device, error) {
	t, err := m.OpenTransport(name)
	if err != nil {
		return nil, nfc.NewOpenError("pn532uart.OpenDevice", name, err)
	}

	pd, err := pn532.New(t, pn532.WithTimeout(exchangeTimeout))
	if err != nil {
		t.Close()
		return nil, nfc.NewOpenError("pn532uart.OpenDevice", name, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := pd.InitContext(ctx); err != nil {
		pd.Close()
		return nil, nfc.NewOpenError("pn532uart.OpenDevice", name, err)
	}

	dev := &Device{pn: pd, name: name, PollInterval: nfc.SensePollInterval}
	if fw, err := pd.GetFirmwareVersionContext(ctx); err == nil {
		dev.firmware = fw.Version
	}
	log.WithFields(log.Fields{"port": name, "firmware": dev.firmware}).Info("PN532 initialised")
	return dev, nil
}

func (m *Manager) autoDetect() (nfc.Device, error) {
	names, err := m.ListPorts()
	if err != nil {
		return nil, nfc.NewOpenError("pn532uart.OpenDevice", nfc.PortAutoDetect, err)
	}
	for _, name := range names {
		dev, err := m.open(name)
		if err != nil {
			log.WithField("port", name).Debugf("No PN532 answering: %v", err)
			continue
		}
		return dev, nil
	}
	return nil, nfc.NewOpenError("pn532uart.OpenDevice", nfc.PortAutoDetect, nfc.ErrNoDeviceFound)
}

// ListDevices tries every serial port and returns the ones with a PN532,
// as connection strings accepted by OpenDevice.
func (m *Manager) ListDevices() ([]string, error) {
	names, err := m.ListPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	var found []string
	for _, name := range names {
		dev, err := m.open(name)
		if err != nil {
			continue
		}
		dev.Close()
		found = append(found, ConnPrefix+name)
	}
	return found, nil
}
