package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Event types pushed to clients.
const (
	EventProgressUpdated = "progress.updated"
	EventAuthChanged     = "auth.changed"
	EventRoleChanged     = "role.changed"
	EventContentChanged  = "content.changed"
)

var (
	ErrBusClosed     = errors.New("event bus closed")
	ErrBufferFull    = errors.New("event bus buffer full")
	ErrNotConfigured = errors.New("event bus not initialized")
)

// Event is the envelope carried by every bus and websocket frame.
// An empty UserID addresses every connected client.
type Event struct {
	Type      string          `json:"type"`
	UserID    string          `json:"user_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent marshals data into an event stamped with the current time.
func NewEvent(eventType, userID string, data interface{}) (Event, error) {
	e := Event{Type: eventType, UserID: userID, Timestamp: time.Now().UTC()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Event{}, err
		}
		e.Data = raw
	}
	return e, nil
}

// Bus fans events out to local subscribers, and across instances when backed by redis.
type Bus interface {
	Publish(ctx context.Context, e Event) error
	// Subscribe registers fn and returns the function that removes it.
	Subscribe(fn func(Event)) (unsubscribe func())
	Close() error
}
