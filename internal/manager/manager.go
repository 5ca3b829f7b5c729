// Package manager serializes command application per game. Every game gets
// one lane goroutine with a FIFO mailbox, so two commands for the same game
// can never interleave, while distinct games proceed in parallel.
package manager

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/decred/slog"

	"fun-euchre/euchre"
	"fun-euchre/internal/ident"
	"fun-euchre/internal/protocol"
	"fun-euchre/internal/store"
)

// RequestHistorySize bounds the per-game duplicate-suppression window.
const RequestHistorySize = 512

// Result is the outcome of one submitted game command.
type Result struct {
	// Outbound is published to the whole game room: an authoritative
	// game.state or a single action.rejected. Never empty.
	Outbound []protocol.Event

	// Private carries per-seat projections, computed after every state
	// change so each seated player sees its own hand.
	Private map[euchre.Seat]protocol.Event

	// Persisted reports that the game store was updated (and a snapshot
	// checkpoint requested).
	Persisted bool
}

type laneRequest struct {
	cmd  protocol.Command
	resp chan Result
}

// lane is one game's mailbox. mu guards closed so a submit can never
// race a teardown's close of the requests channel.
type lane struct {
	mu       sync.Mutex
	closed   bool
	requests chan laneRequest
	history  *lru.Cache[string, struct{}]
}

// submit enqueues a request unless the lane has been torn down.
func (ln *lane) submit(req laneRequest) bool {
	ln.mu.Lock()
	defer ln.mu.Unlock()
	if ln.closed {
		return false
	}
	ln.requests <- req
	return true
}

// shutdown closes the mailbox exactly once. The lane goroutine drains
// what was already enqueued and exits.
func (ln *lane) shutdown() {
	ln.mu.Lock()
	defer ln.mu.Unlock()
	if !ln.closed {
		ln.closed = true
		close(ln.requests)
	}
}

// Manager owns the lanes and routes submissions onto them.
type Manager struct {
	mu     sync.Mutex
	lanes  map[ident.GameID]*lane
	closed bool

	games      *store.GameStore
	adapter    *protocol.Adapter
	checkpoint func()
	log        slog.Logger
	wg         sync.WaitGroup
}

// New builds a manager over the game table. checkpoint is invoked after
// every persisting mutation; nil disables checkpoint requests.
func New(games *store.GameStore, adapter *protocol.Adapter, checkpoint func(), log slog.Logger) *Manager {
	if checkpoint == nil {
		checkpoint = func() {}
	}
	return &Manager{
		lanes:      make(map[ident.GameID]*lane),
		games:      games,
		adapter:    adapter,
		checkpoint: checkpoint,
		log:        log,
	}
}

// SubmitEvent runs one command through the game's lane and blocks until it
// has been applied. Submissions for the same game are processed strictly
// in arrival order.
func (m *Manager) SubmitEvent(gameID ident.GameID, cmd protocol.Command) Result {
	for {
		ln := m.laneFor(gameID)
		if ln == nil {
			return m.rejectResult(cmd.RequestID, euchre.NewReject(euchre.CodeInvalidState, "server is shutting down"))
		}
		req := laneRequest{cmd: cmd, resp: make(chan Result, 1)}
		if ln.submit(req) {
			return <-req.resp
		}
		// The lane was torn down between lookup and submit; take a fresh
		// one (or the shutdown reject once the manager is closed).
	}
}

func (m *Manager) laneFor(gameID ident.GameID) *lane {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	if ln, ok := m.lanes[gameID]; ok {
		return ln
	}
	history, _ := lru.New[string, struct{}](RequestHistorySize)
	ln := &lane{
		requests: make(chan laneRequest, 16),
		history:  history,
	}
	m.lanes[gameID] = ln
	m.wg.Add(1)
	go m.run(gameID, ln)
	return ln
}

func (m *Manager) run(gameID ident.GameID, ln *lane) {
	defer m.wg.Done()
	for req := range ln.requests {
		req.resp <- m.process(gameID, ln, req.cmd)
	}
}

func (m *Manager) process(gameID ident.GameID, ln *lane, cmd protocol.Command) Result {
	rec, ok := m.games.GetByID(gameID)
	if !ok {
		// The game is gone (pruned or never existed); its request history
		// is useless now.
		ln.history.Purge()
		return m.rejectResult(cmd.RequestID, euchre.NewReject(euchre.CodeInvalidState, "game %s not found", gameID))
	}

	if cmd.RequestID != "" {
		if _, dup := ln.history.Get(cmd.RequestID); dup {
			res := m.rejectResult(cmd.RequestID, euchre.NewReject(euchre.CodeInvalidAction, "Duplicate requestId"))
			// The current state rides along so a retrying client resyncs.
			if ev, err := protocol.ToGameStateEvent(rec); err == nil {
				res.Outbound = append(res.Outbound, ev)
			} else {
				m.log.Errorf("game %s: projecting state for duplicate %q: %v", gameID, cmd.RequestID, err)
			}
			return res
		}
	}

	res, err := m.adapter.ApplyToGame(rec.GameID, rec.LobbyID, rec.State, cmd)
	if err != nil {
		m.log.Errorf("game %s: assembling outbound events: %v", gameID, err)
		return m.rejectResult(cmd.RequestID, euchre.NewReject(euchre.CodeInvalidState, "internal projection failure"))
	}

	if cmd.RequestID != "" {
		ln.history.Add(cmd.RequestID, struct{}{})
	}

	out := Result{Outbound: res.Outbound}
	if res.Changed {
		rec.State = res.State
		rec = m.games.Upsert(rec)
		m.checkpoint()
		out.Persisted = true
		out.Private = m.privateProjections(rec)
	}
	return out
}

func (m *Manager) privateProjections(rec store.GameRecord) map[euchre.Seat]protocol.Event {
	out := make(map[euchre.Seat]protocol.Event, 4)
	for _, seat := range euchre.Seats() {
		ev, err := protocol.ToGamePrivateStateEvent(rec, seat)
		if err != nil {
			m.log.Errorf("game %s: private projection for %s: %v", rec.GameID, seat, err)
			continue
		}
		out[seat] = ev
	}
	return out
}

func (m *Manager) rejectResult(requestID string, rej *euchre.Reject) Result {
	ev, err := protocol.ToRejectedEvent(requestID, rej)
	if err != nil {
		m.log.Errorf("encoding reject event: %v", err)
		return Result{}
	}
	return Result{Outbound: []protocol.Event{ev}}
}

// DropLane tears down a pruned game's lane and request history.
func (m *Manager) DropLane(gameID ident.GameID) {
	m.mu.Lock()
	ln, ok := m.lanes[gameID]
	if ok {
		delete(m.lanes, gameID)
	}
	m.mu.Unlock()
	if ok {
		ln.shutdown()
	}
}

// Close stops every lane and waits for in-flight commands to drain.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	lanes := m.lanes
	m.lanes = make(map[ident.GameID]*lane)
	m.mu.Unlock()

	for _, ln := range lanes {
		ln.shutdown()
	}
	m.wg.Wait()
}
