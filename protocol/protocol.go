// Package protocol provides the presence event types shared by the server,
// the journal and external consumers.
// This package is designed to be importable without pulling in server dependencies.
package protocol

import (
	"time"

	"github.com/google/uuid"
)

// EventKind distinguishes arrival from removal.
type EventKind string

const (
	EventArrival EventKind = "arrival"
	EventRemoval EventKind = "removal"
)

// Event is one presence edge as recorded and published by the agent.
type Event struct {
	// ID is a random UUID, unique per event
	ID   string    `json:"id"`
	Kind EventKind `json:"kind"`

	// UID is the token identity; for removals, the identity that left
	UID string `json:"uid,omitempty"`

	// Reader is the port selector of the reader that saw the event
	Reader string    `json:"reader,omitempty"`
	At     time.Time `json:"at"`
}

// NewEvent creates an event stamped with a fresh ID and the current time.
func NewEvent(kind EventKind, uid, reader string) Event {
	return Event{
		ID:     uuid.New().String(),
		Kind:   kind,
		UID:    uid,
		Reader: reader,
		At:     time.Now().UTC(),
	}
}

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	Status    string `json:"status"` // "ok" or "unavailable"
	Connected bool   `json:"connected"`
	State     string `json:"state"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"` // RFC3339 format
}

// TokenResponse is returned by GET /api/v1/token.
type TokenResponse struct {
	Present bool   `json:"present"`
	UID     string `json:"uid,omitempty"`
}

// EventsResponse is returned by GET /api/v1/events.
type EventsResponse struct {
	Events []Event `json:"events"`
}

// ErrorResponse is the body of any non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}
