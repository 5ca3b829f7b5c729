package lifecycle

import (
	"fmt"
	"sync"
	"time"

	"github.com/decred/slog"

	"fun-euchre/euchre"
	"fun-euchre/internal/broker"
	"fun-euchre/internal/ident"
	"fun-euchre/internal/manager"
	"fun-euchre/internal/protocol"
	"fun-euchre/internal/store"
)

// Sweeper walks the stores on a fixed interval: it forfeits games whose
// disconnected players overran the reconnect grace window, prunes expired
// sessions, games, and lobbies, and checkpoints when anything changed.
type Sweeper struct {
	lobbies  *store.LobbyStore
	games    *store.GameStore
	sessions *store.SessionStore
	broker   *broker.Broker
	manager  *manager.Manager
	ckpt     *Checkpointer

	intervalMs int64
	nowMs      func() int64
	log        slog.Logger

	quit chan struct{}
	done chan struct{}
	once sync.Once
}

// NewSweeper builds a stopped sweeper; call Run to start ticking.
func NewSweeper(lobbies *store.LobbyStore, games *store.GameStore, sessions *store.SessionStore,
	b *broker.Broker, m *manager.Manager, ckpt *Checkpointer,
	intervalMs int64, nowMs func() int64, log slog.Logger) *Sweeper {
	if nowMs == nil {
		nowMs = func() int64 { return time.Now().UnixMilli() }
	}
	return &Sweeper{
		lobbies:    lobbies,
		games:      games,
		sessions:   sessions,
		broker:     b,
		manager:    m,
		ckpt:       ckpt,
		intervalMs: intervalMs,
		nowMs:      nowMs,
		log:        log,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run ticks until Stop is called. It yields within one tick on shutdown.
func (s *Sweeper) Run() {
	defer close(s.done)
	ticker := time.NewTicker(time.Duration(s.intervalMs) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.SweepOnce()
		case <-s.quit:
			return
		}
	}
}

// Stop halts the tick loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.once.Do(func() {
		close(s.quit)
		<-s.done
	})
}

// SweepOnce runs one full sweep and reports whether anything changed.
func (s *Sweeper) SweepOnce() bool {
	now := s.nowMs()
	changed := false

	if s.forfeitOverdue(now) {
		changed = true
	}
	if s.pruneSessions() {
		changed = true
	}
	if s.pruneGames(now) {
		changed = true
	}
	if s.pruneLobbies(now) {
		changed = true
	}

	if changed && s.ckpt != nil {
		s.ckpt.Request()
	}
	return changed
}

// forfeitOverdue resolves every active game whose disconnected player is
// past the reconnect deadline. Each forfeit produces exactly one publish
// carrying the notice and the terminal game state.
func (s *Sweeper) forfeitOverdue(now int64) bool {
	changed := false
	for _, session := range s.sessions.ListRecords() {
		if session.Connected || session.ReconnectByMs == nil || now <= *session.ReconnectByMs {
			continue
		}
		if session.GameID == "" {
			continue
		}
		game, ok := s.games.GetByID(session.GameID)
		if !ok || game.State.Phase == euchre.PhaseCompleted {
			continue
		}
		lobby, ok := s.lobbies.GetByID(game.LobbyID)
		if !ok {
			continue
		}
		seat, seated := lobby.SeatOf(session.PlayerID)
		if !seated {
			continue
		}

		game.State = euchre.ResolveForfeit(game.State, seat.Team())
		game = s.games.Upsert(game)
		changed = true

		winner := *game.State.Winner
		s.log.Infof("game %s: %s forfeited by %s leaving, %s wins",
			game.GameID, seat, session.PlayerID, winner)

		events, err := s.forfeitEvents(game, winner)
		if err != nil {
			s.log.Errorf("game %s: assembling forfeit events: %v", game.GameID, err)
			continue
		}
		if _, err := s.broker.Publish(broker.SourceDomainTransition, broker.GameRoom(game.GameID), events); err != nil {
			s.log.Errorf("game %s: publishing forfeit: %v", game.GameID, err)
		}
	}
	return changed
}

func (s *Sweeper) forfeitEvents(game store.GameRecord, winner euchre.Team) ([]protocol.Event, error) {
	notice, err := protocol.ToNoticeEvent(fmt.Sprintf("%s wins by forfeit", winner))
	if err != nil {
		return nil, err
	}
	stateEv, err := protocol.ToGameStateEvent(game)
	if err != nil {
		return nil, err
	}
	return []protocol.Event{notice, stateEv}, nil
}

func (s *Sweeper) pruneSessions() bool {
	removed := s.sessions.PruneExpired()
	for _, rec := range removed {
		s.broker.DisconnectSession(rec.SessionID)
		s.log.Debugf("pruned session %s (player %s)", rec.SessionID, rec.PlayerID)
	}
	return len(removed) > 0
}

// pruneGames deletes expired games that no retained session still
// references, tearing down their lanes with them.
func (s *Sweeper) pruneGames(now int64) bool {
	referenced := make(map[ident.GameID]bool)
	for _, session := range s.sessions.ListRecords() {
		if session.GameID != "" {
			referenced[session.GameID] = true
		}
	}

	changed := false
	for _, game := range s.games.ListRecords() {
		if !s.games.IsExpired(game, now) || referenced[game.GameID] {
			continue
		}
		s.games.DeleteByID(game.GameID)
		if s.manager != nil {
			s.manager.DropLane(game.GameID)
		}
		s.log.Debugf("pruned game %s", game.GameID)
		changed = true
	}
	return changed
}

// pruneLobbies deletes expired lobbies, but never while a non-completed
// game or a retained session still references them.
func (s *Sweeper) pruneLobbies(now int64) bool {
	blocked := make(map[ident.LobbyID]bool)
	for _, game := range s.games.ListRecords() {
		if game.State.Phase != euchre.PhaseCompleted {
			blocked[game.LobbyID] = true
		}
	}
	for _, session := range s.sessions.ListRecords() {
		blocked[session.LobbyID] = true
	}

	changed := false
	for _, lobby := range s.lobbies.ListRecords() {
		if !s.lobbies.IsExpired(lobby, now) || blocked[lobby.LobbyID] {
			continue
		}
		s.lobbies.DeleteByID(lobby.LobbyID)
		s.log.Debugf("pruned lobby %s", lobby.LobbyID)
		changed = true
	}
	return changed
}
