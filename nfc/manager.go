package nfc

// Manager handles NFC device discovery.
//
// Manager provides methods to list available NFC readers and open connections
// to devices.
//
// Example:
//
//	manager := nfc.NewLibnfcManager()
//	devices, _ := manager.ListDevices()
//	device, _ := manager.OpenDevice(devices[0])
type Manager interface {
	// OpenDevice opens a session on port. "usb" or "" selects the first
	// reader the driver can find.
	OpenDevice(port string) (Device, error)
	ListDevices() ([]string, error)
}
