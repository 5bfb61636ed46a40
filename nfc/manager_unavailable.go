package nfc

// unavailableManager is used when no reader driver was configured or the
// configured driver cannot run on this host.
type unavailableManager struct {
	reason string
}

// NewUnavailableManager returns a Manager whose every open fails with
// ErrReaderUnavailable. reason is attached to the error for the logs.
func NewUnavailableManager(reason string) Manager {
	return &unavailableManager{reason: reason}
}

func (m *unavailableManager) OpenDevice(port string) (Device, error) {
	return nil, &NFCError{
		Code:    ErrCodeOpenFailed,
		Op:      "OpenDevice",
		Message: m.message(),
		Cause:   ErrReaderUnavailable,
	}
}

func (m *unavailableManager) ListDevices() ([]string, error) {
	return nil, ErrReaderUnavailable
}

func (m *unavailableManager) message() string {
	if m.reason == "" {
		return "no reader driver"
	}
	return m.reason
}
