package pn532uart

import (
	"errors"
	"sync"
	"time"

	pn532 "github.com/ZaparooProject/go-pn532"
)

const (
	cmdGetFirmwareVersion  = 0x02
	cmdSAMConfiguration    = 0x14
	cmdInDataExchange      = 0x40
	cmdInListPassiveTarget = 0x4A
)

var errNoAnswer = errors.New("no answer from PN532")

// fakeTransport answers PN532 commands from canned state. Responses carry
// the response code but no TFI, like the real UART transport.
type fakeTransport struct {
	mu sync.Mutex

	commands []byte
	closed   bool

	// targets is consumed by InListPassiveTarget, one per poll. Each entry is
	// Tg SENS_RES(2) SEL_RES NFCIDLength NFCID...; empty means no target.
	targets [][]byte
	// exchange answers InDataExchange with [status, data...].
	exchange func(apdu []byte) []byte
	// exchanged records the APDUs passed to InDataExchange.
	exchanged [][]byte
	// deaf transports fail every command.
	deaf bool
}

var _ pn532.Transport = (*fakeTransport)(nil)

func newFakeTransport() *fakeTransport {
	return &fakeTransport{}
}

func (f *fakeTransport) SendCommand(cmd byte, args []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.commands = append(f.commands, cmd)
	if f.closed {
		return nil, errors.New("port closed")
	}
	if f.deaf {
		return nil, errNoAnswer
	}

	switch cmd {
	case cmdGetFirmwareVersion:
		return []byte{0x03, 0x32, 0x01, 0x06, 0x07}, nil
	case cmdSAMConfiguration:
		return []byte{0x15}, nil
	case cmdInListPassiveTarget:
		if len(f.targets) == 0 {
			return []byte{0x4B, 0x00}, nil
		}
		t := f.targets[0]
		f.targets = f.targets[1:]
		return append([]byte{0x4B, 0x01}, t...), nil
	case cmdInDataExchange:
		apdu := append([]byte(nil), args[1:]...)
		f.exchanged = append(f.exchanged, apdu)
		resp := []byte{0x01}
		if f.exchange != nil {
			resp = f.exchange(apdu)
		}
		return append([]byte{0x41}, resp...), nil
	default:
		return []byte{cmd + 1}, nil
	}
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) SetTimeout(time.Duration) error { return nil }

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}

func (f *fakeTransport) Type() pn532.TransportType { return pn532.TransportMock }

func (f *fakeTransport) AddTarget(t []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets = append(f.targets, t)
}

func (f *fakeTransport) Commands() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.commands...)
}

func (f *fakeTransport) Exchanged() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.exchanged...)
}

func (f *fakeTransport) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
