package nfc

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SenseResult is one scripted outcome of MockDevice.Sense.
type SenseResult struct {
	Target Target
	Err    error
}

// Present scripts a sense that finds a target with the given UID and SAK.
func Present(uid []byte, sak byte) SenseResult {
	return SenseResult{Target: &TargetInfo{ID: uid, SelRes: sak}}
}

// Absent scripts a sense that finds nothing.
func Absent() SenseResult {
	return SenseResult{}
}

// SenseFailure scripts a sense that fails with err.
func SenseFailure(err error) SenseResult {
	return SenseResult{Err: err}
}

// MockDevice is a test implementation of Device that simulates NFC hardware.
//
// Sense consumes SenseResults in order. Once the queue is empty Sense either
// repeats the last result (HoldLast) or behaves like an empty field, waiting
// out the timeout. Drained is closed the first time Sense finds the queue
// empty, which means every scripted result has been handled by the caller.
//
// Example:
//
//	mock := NewMockDevice()
//	mock.SenseResults = []SenseResult{Present(uid, 0x08), Absent()}
//	<-mock.Drained()
type MockDevice struct {
	// DeviceName is the simulated device name returned by String()
	DeviceName string

	// Port is the port the device was opened on
	Port string

	// SenseResults is the scripted queue consumed by Sense()
	SenseResults []SenseResult

	// HoldLast makes Sense repeat the last result once the queue is empty
	HoldLast bool

	// HoldDelay is how long a held result takes to "sense"
	HoldDelay time.Duration

	// Tags maps an uppercase hex UID to the tag returned by Activate()
	Tags map[string]*MockTag

	// ActivateError, if set, will be returned by Activate()
	ActivateError error

	// CloseError, if set, will be returned by the first Close()
	CloseError error

	// CallLog tracks all method calls for verification in tests
	CallLog []string

	closed    bool
	last      *SenseResult
	drained   chan struct{}
	drainOnce sync.Once

	mu sync.Mutex
}

// NewMockDevice creates a new MockDevice with default values.
func NewMockDevice() *MockDevice {
	return &MockDevice{
		DeviceName: "Mock NFC Reader",
		Port:       "mock:usb:001",
		HoldDelay:  5 * time.Millisecond,
		Tags:       make(map[string]*MockTag),
		CallLog:    make([]string, 0),
		drained:    make(chan struct{}),
	}
}

// AddTag registers tag as the activation result for uid.
func (m *MockDevice) AddTag(uid []byte, tag *MockTag) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Tags == nil {
		m.Tags = make(map[string]*MockTag)
	}
	m.Tags[FormatUID(uid)] = tag
}

// Script appends results to the sense queue.
func (m *MockDevice) Script(results ...SenseResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SenseResults = append(m.SenseResults, results...)
}

// Drained returns a channel closed once the sense queue has been consumed.
func (m *MockDevice) Drained() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.drained == nil {
		m.drained = make(chan struct{})
	}
	return m.drained
}

// Sense returns the next scripted result.
func (m *MockDevice) Sense(ctx context.Context, mod Modulation, timeout time.Duration) (Target, error) {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, fmt.Sprintf("Sense(%s)", mod))

	if m.closed {
		m.mu.Unlock()
		return nil, ErrDeviceClosed
	}

	if len(m.SenseResults) > 0 {
		r := m.SenseResults[0]
		m.SenseResults = m.SenseResults[1:]
		m.last = &r
		m.mu.Unlock()
		return r.Target, r.Err
	}

	if m.drained == nil {
		m.drained = make(chan struct{})
	}
	m.drainOnce.Do(func() { close(m.drained) })

	if m.HoldLast && m.last != nil {
		r := *m.last
		delay := m.HoldDelay
		m.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, nil
		case <-time.After(delay):
		}
		return r.Target, r.Err
	}
	m.mu.Unlock()

	select {
	case <-ctx.Done():
	case <-time.After(timeout):
	}
	return nil, nil
}

// Activate returns the tag registered for the target's UID.
func (m *MockDevice) Activate(target Target) (ActivatedTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	uid := FormatUID(target.UID())
	m.CallLog = append(m.CallLog, fmt.Sprintf("Activate(%s)", uid))

	if m.closed {
		return nil, ErrDeviceClosed
	}

	if m.ActivateError != nil {
		return nil, NewActivationError("mock.Activate", m.ActivateError)
	}

	tag, ok := m.Tags[uid]
	if !ok {
		return nil, NewActivationError("mock.Activate", ErrNotISO14443_4)
	}
	return tag, nil
}

// Close simulates closing the device. Only the first call is logged.
func (m *MockDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.CallLog = append(m.CallLog, "Close")
	m.closed = true
	return m.CloseError
}

// IsClosed reports whether Close has been called since the last open.
func (m *MockDevice) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closed
}

// String returns the simulated device name.
func (m *MockDevice) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.DeviceName
}

// GetCallLog returns a copy of the call log for verification.
func (m *MockDevice) GetCallLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	logCopy := make([]string, len(m.CallLog))
	copy(logCopy, m.CallLog)
	return logCopy
}

// CountCalls returns how many logged calls start with prefix.
func (m *MockDevice) CountCalls(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.CallLog {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (m *MockDevice) reopen(port string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = false
	m.Port = port
}

// MockTag is a test implementation of ActivatedTag.
type MockTag struct {
	// TagType is returned by Type(); defaults to TagTypeType4
	TagType TagType

	// TransceiveFunc allows custom transceive behavior for testing
	// If nil, returns Response or Error
	TransceiveFunc func([]byte) ([]byte, error)

	// Response is the default response for Transceive calls
	Response []byte

	// Error, if set, will be returned by Transceive()
	Error error

	// Sent records every frame passed to Transceive
	Sent [][]byte

	mu sync.Mutex
}

// NewMockType4Tag creates a Type 4 tag answering every command with resp.
func NewMockType4Tag(resp []byte) *MockTag {
	return &MockTag{TagType: TagTypeType4, Response: resp}
}

func (t *MockTag) Type() TagType {
	if t.TagType == "" {
		return TagTypeType4
	}
	return t.TagType
}

func (t *MockTag) Transceive(tx []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Sent = append(t.Sent, append([]byte(nil), tx...))

	if t.TransceiveFunc != nil {
		return t.TransceiveFunc(tx)
	}
	if t.Error != nil {
		return nil, NewTransceiveError("mock.Transceive", t.Error)
	}
	return t.Response, nil
}

// Transmissions returns how many frames were sent to the tag.
func (t *MockTag) Transmissions() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.Sent)
}
