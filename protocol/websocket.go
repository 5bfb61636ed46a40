package protocol

import "time"

// WebSocket message type constants
const (
	WSTypeTokenArrived = "tokenArrived"
	WSTypeTokenRemoved = "tokenRemoved"
	WSTypeDeviceStatus = "deviceStatus"
	WSTypeReaderError  = "readerError"
)

// WebSocketMessage is the generic message envelope for WebSocket communication.
type WebSocketMessage struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// TokenPayload is broadcast when a token arrives or leaves.
type TokenPayload struct {
	UID string `json:"uid"`
	At  string `json:"at"` // RFC3339 format
}

// DeviceStatusPayload is the payload for device status updates.
type DeviceStatusPayload struct {
	Connected    bool   `json:"connected"`
	State        string `json:"state"`
	Message      string `json:"message"`
	TokenPresent bool   `json:"tokenPresent"`
}

// ReaderErrorPayload reports a reader failure to clients.
type ReaderErrorPayload struct {
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

// NewTokenMessage wraps an event as a tokenArrived or tokenRemoved message.
func NewTokenMessage(ev Event) WebSocketMessage {
	typ := WSTypeTokenArrived
	if ev.Kind == EventRemoval {
		typ = WSTypeTokenRemoved
	}
	return WebSocketMessage{
		ID:      ev.ID,
		Type:    typ,
		Payload: TokenPayload{UID: ev.UID, At: ev.At.Format(time.RFC3339)},
	}
}
