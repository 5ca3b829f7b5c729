// Package protocol translates between the JSON wire surface and the
// domain: it validates client events into commands, runs game commands
// through the rules engine, and projects stored records back into
// outbound server events.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Server event types.
const (
	EventLobbyState       = "lobby.state"
	EventGameState        = "game.state"
	EventGamePrivateState = "game.private_state"
	EventActionRejected   = "action.rejected"
	EventSystemNotice     = "system.notice"
)

// EventVersion is the wire schema version stamped on every server event.
const EventVersion = 1

// Ordering sequences events within one broker publish. Sequence is
// strictly increasing per recipient inside a publish; clients treat a
// non-monotonic sequence as stale.
type Ordering struct {
	Sequence    uint64 `json:"sequence"`
	EmittedAtMs int64  `json:"emittedAtMs"`
}

// Event is one server-to-client message.
type Event struct {
	Version  int             `json:"version"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Ordering *Ordering       `json:"ordering,omitempty"`
}

// NewEvent builds an unordered event around a JSON-encodable payload.
func NewEvent(eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encoding %s payload: %w", eventType, err)
	}
	return Event{Version: EventVersion, Type: eventType, Payload: raw}, nil
}

// Clone returns a copy with its own payload and ordering memory, so
// recipients can never share mutable bytes.
func (e Event) Clone() Event {
	out := e
	if e.Payload != nil {
		out.Payload = append(json.RawMessage(nil), e.Payload...)
	}
	if e.Ordering != nil {
		ord := *e.Ordering
		out.Ordering = &ord
	}
	return out
}
