// Package broker fans domain events out to connected sessions through
// room-scoped subscriptions. It knows nothing about transports: sessions
// register a sink and the broker delivers independent event copies to it.
package broker

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/decred/slog"

	"fun-euchre/internal/ident"
	"fun-euchre/internal/protocol"
)

// RoomID is a typed subscription group: "lobby:<id>" or "game:<id>".
type RoomID string

func LobbyRoom(id ident.LobbyID) RoomID { return RoomID("lobby:" + id.String()) }
func GameRoom(id ident.GameID) RoomID   { return RoomID("game:" + id.String()) }

// SourceDomainTransition is the only publish source the broker accepts.
// It marks events produced by an authoritative state transition.
const SourceDomainTransition = "domain-transition"

// ErrUnauthorizedSource rejects publishes from anything but the domain.
var ErrUnauthorizedSource = errors.New("UNAUTHORIZED_SOURCE: publish requires the domain-transition source")

// Sink receives events for one session. Sends may block briefly (a slow
// websocket writer); errors mean the event was dropped for that session.
type Sink interface {
	Send(ev protocol.Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev protocol.Event) error

func (f SinkFunc) Send(ev protocol.Event) error { return f(ev) }

// Delivery reports the outcome of one publish.
type Delivery struct {
	DeliveredSessionIDs []ident.SessionID
	DeliveredEventCount int
}

// Broker is the fanout hub. All three maps are guarded by one mutex;
// delivery happens outside the domain lanes, so a slow sink never stalls
// command processing on other games.
type Broker struct {
	mu      sync.Mutex
	sinks   map[ident.SessionID]Sink
	members map[RoomID]map[ident.SessionID]struct{}
	rooms   map[ident.SessionID]map[RoomID]struct{}
	nowMs   func() int64
	log     slog.Logger
}

// New builds an empty broker. A nil clock uses wall time.
func New(nowMs func() int64, log slog.Logger) *Broker {
	if nowMs == nil {
		nowMs = func() int64 { return time.Now().UnixMilli() }
	}
	return &Broker{
		sinks:   make(map[ident.SessionID]Sink),
		members: make(map[RoomID]map[ident.SessionID]struct{}),
		rooms:   make(map[ident.SessionID]map[RoomID]struct{}),
		nowMs:   nowMs,
		log:     log,
	}
}

// ConnectSession registers a session's sink, replacing any previous sink
// and clearing its prior room memberships.
func (b *Broker) ConnectSession(sessionID ident.SessionID, sink Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.leaveAllLocked(sessionID)
	b.sinks[sessionID] = sink
	b.log.Debugf("broker: session %s connected", sessionID)
}

// DisconnectSession drops the session's sink and leaves all rooms.
func (b *Broker) DisconnectSession(sessionID ident.SessionID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.leaveAllLocked(sessionID)
	delete(b.sinks, sessionID)
	b.log.Debugf("broker: session %s disconnected", sessionID)
}

func (b *Broker) leaveAllLocked(sessionID ident.SessionID) {
	for room := range b.rooms[sessionID] {
		delete(b.members[room], sessionID)
		if len(b.members[room]) == 0 {
			delete(b.members, room)
		}
	}
	delete(b.rooms, sessionID)
}

// JoinRoom subscribes a connected session to a room. Unknown sessions are
// a no-op; re-joins are idempotent.
func (b *Broker) JoinRoom(sessionID ident.SessionID, room RoomID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sinks[sessionID]; !ok {
		return
	}
	if b.members[room] == nil {
		b.members[room] = make(map[ident.SessionID]struct{})
	}
	b.members[room][sessionID] = struct{}{}
	if b.rooms[sessionID] == nil {
		b.rooms[sessionID] = make(map[RoomID]struct{})
	}
	b.rooms[sessionID][room] = struct{}{}
}

// LeaveRoom unsubscribes a session from a room; no-op when absent.
func (b *Broker) LeaveRoom(sessionID ident.SessionID, room RoomID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.members[room], sessionID)
	if len(b.members[room]) == 0 {
		delete(b.members, room)
	}
	delete(b.rooms[sessionID], room)
}

// Rooms returns the rooms a session is subscribed to.
func (b *Broker) Rooms(sessionID ident.SessionID) []RoomID {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]RoomID, 0, len(b.rooms[sessionID]))
	for room := range b.rooms[sessionID] {
		out = append(out, room)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Publish delivers events to every member of a room in input order. Each
// recipient gets a fresh deep copy of each event stamped with a
// strictly-increasing per-publish sequence. Only the domain-transition
// source may publish.
func (b *Broker) Publish(source string, room RoomID, events []protocol.Event) (Delivery, error) {
	if source != SourceDomainTransition {
		return Delivery{}, ErrUnauthorizedSource
	}

	b.mu.Lock()
	recipients := make([]ident.SessionID, 0, len(b.members[room]))
	for sessionID := range b.members[room] {
		recipients = append(recipients, sessionID)
	}
	sort.Slice(recipients, func(i, j int) bool { return recipients[i] < recipients[j] })
	sinks := make([]Sink, len(recipients))
	for i, sessionID := range recipients {
		sinks[i] = b.sinks[sessionID]
	}
	b.mu.Unlock()

	now := b.nowMs()
	var delivery Delivery
	var seq uint64
	for i, sessionID := range recipients {
		delivered := false
		for _, ev := range events {
			seq++
			dup := ev.Clone()
			dup.Ordering = &protocol.Ordering{Sequence: seq, EmittedAtMs: now}
			if err := sinks[i].Send(dup); err != nil {
				b.log.Warnf("broker: dropping event %s for session %s: %v", ev.Type, sessionID, err)
				continue
			}
			delivered = true
			delivery.DeliveredEventCount++
		}
		if delivered {
			delivery.DeliveredSessionIDs = append(delivery.DeliveredSessionIDs, sessionID)
		}
	}
	return delivery, nil
}

// DeliverToSession sends events to exactly one session, used for per-seat
// private projections that must not reach the whole room.
func (b *Broker) DeliverToSession(sessionID ident.SessionID, events []protocol.Event) Delivery {
	b.mu.Lock()
	sink, ok := b.sinks[sessionID]
	b.mu.Unlock()
	if !ok {
		return Delivery{}
	}

	now := b.nowMs()
	var delivery Delivery
	var seq uint64
	for _, ev := range events {
		seq++
		dup := ev.Clone()
		dup.Ordering = &protocol.Ordering{Sequence: seq, EmittedAtMs: now}
		if err := sink.Send(dup); err != nil {
			b.log.Warnf("broker: dropping event %s for session %s: %v", ev.Type, sessionID, err)
			continue
		}
		delivery.DeliveredEventCount++
	}
	if delivery.DeliveredEventCount > 0 {
		delivery.DeliveredSessionIDs = []ident.SessionID{sessionID}
	}
	return delivery
}

// DisconnectAll drops every sink and membership, used on shutdown.
func (b *Broker) DisconnectAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = make(map[ident.SessionID]Sink)
	b.members = make(map[RoomID]map[ident.SessionID]struct{})
	b.rooms = make(map[ident.SessionID]map[RoomID]struct{})
}
