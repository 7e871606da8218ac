// Package sse streams table changes and presence to connected clients and
// drives the identity connect/disconnect hooks from those connections.
package sse

import (
	"time"

	"github.com/headercal/headercal-server/internal/domain"
	"github.com/headercal/headercal-server/internal/id"
)

// EventType represents the type of an Event.
type EventType string

// Change operations. Event types are "<table>.<op>".
const (
	OpCreated = "created"
	OpUpdated = "updated"
	OpDeleted = "deleted"
)

// Table names as they appear in change events.
const (
	TableIdentity     = "identity"
	TableUser         = "user"
	TableLabel        = "range_label"
	TableAvailability = "range_availability"
)

const (
	// EventConnected is the first event on every stream.
	EventConnected EventType = "connected"
	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event is one message pushed to clients.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// Credential restricts delivery to connections of one identity.
	// Empty means broadcast.
	Credential string `json:"-"`
}

// ChangeEventData carries the row affected by a committed change. For
// deletes it is the row as it was before removal.
type ChangeEventData struct {
	Table string `json:"table"`
	Op    string `json:"op"`
	Row   any    `json:"row"`
}

// ConnectedEventData is the payload of the connected event.
type ConnectedEventData struct {
	ConnectionID string `json:"connection_id"`
	Identity     string `json:"identity"`
	Transport    string `json:"transport"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

func newEvent(t EventType, data any) Event {
	return Event{
		ID:        id.EventID(),
		Type:      t,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// NewChangeEvent creates a "<table>.<op>" event.
func NewChangeEvent(table, op string, row any) Event {
	return newEvent(EventType(table+"."+op), ChangeEventData{Table: table, Op: op, Row: row})
}

// NewUserEvent creates a user change event.
func NewUserEvent(op string, u *domain.User) Event {
	return NewChangeEvent(TableUser, op, u)
}

// NewIdentityEvent creates an identity change event.
func NewIdentityEvent(op string, i *domain.Identity) Event {
	return NewChangeEvent(TableIdentity, op, i)
}

// NewLabelEvent creates a range label change event.
func NewLabelEvent(op string, l *domain.RangeLabel) Event {
	return NewChangeEvent(TableLabel, op, l)
}

// NewAvailabilityEvent creates a range availability change event.
func NewAvailabilityEvent(op string, a *domain.RangeAvailability) Event {
	return NewChangeEvent(TableAvailability, op, a)
}

// NewConnectedEvent creates the greeting sent to a new connection.
func NewConnectedEvent(c *Client) Event {
	e := newEvent(EventConnected, ConnectedEventData{
		ConnectionID: c.ID,
		Identity:     c.Credential,
		Transport:    c.Transport,
	})
	e.Credential = c.Credential
	return e
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return newEvent(EventHeartbeat, HeartbeatEventData{ServerTime: time.Now()})
}
