package lifecycle

import (
	"encoding/json"
	"math/rand"
	"os"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/decred/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fun-euchre/card"
	"fun-euchre/euchre"
	"fun-euchre/internal/broker"
	"fun-euchre/internal/ident"
	"fun-euchre/internal/protocol"
	"fun-euchre/internal/store"
)

func testLogger() slog.Logger {
	log := slog.NewBackend(os.Stderr).Logger("TEST")
	log.SetLevel(slog.LevelOff)
	return log
}

type world struct {
	lobbies  *store.LobbyStore
	games    *store.GameStore
	sessions *store.SessionStore
	broker   *broker.Broker
	sweeper  *Sweeper
	clock    *int64
}

func newWorld(t *testing.T) *world {
	t.Helper()
	clock := int64(0)
	now := func() int64 { return clock }
	log := testLogger()

	w := &world{
		lobbies:  store.NewLobbyStore(now, nil),
		games:    store.NewGameStore(now, 300_000, nil),
		sessions: store.NewSessionStore(now, 60_000, 300_000, nil, log),
		broker:   broker.New(now, log),
		clock:    &clock,
	}
	w.sweeper = NewSweeper(w.lobbies, w.games, w.sessions, w.broker, nil, nil, 1_000, now, log)
	return w
}

// seatedGame seeds a full lobby, a dealt game, and four connected sessions.
func seatedGame(t *testing.T, w *world) (store.LobbyRecord, store.GameRecord, []store.SessionRecord) {
	t.Helper()
	lobby := store.NewLobbyRecord("lobby_l1", "player_n", "North")
	for _, p := range []struct {
		id   ident.PlayerID
		name string
	}{{"player_e", "East"}, {"player_s", "South"}, {"player_w", "West"}} {
		_, rej := lobby.Join(p.id, p.name)
		require.Nil(t, rej)
	}
	require.Nil(t, lobby.Start("player_n"))
	lobby = w.lobbies.Upsert(lobby)

	engine := euchre.NewEngine(rand.New(rand.NewSource(5)))
	state, rej := engine.Apply(euchre.NewState(10, euchre.North), euchre.Action{
		Type: euchre.ActionDealHand, Deck: card.Deck(),
	})
	require.Nil(t, rej)
	game := w.games.Upsert(store.GameRecord{GameID: "game_g1", LobbyID: lobby.LobbyID, State: state})

	var sessions []store.SessionRecord
	for i, playerID := range []ident.PlayerID{"player_n", "player_e", "player_s", "player_w"} {
		rec := w.sessions.Upsert(store.SessionRecord{
			SessionID:      ident.SessionID("session_" + string(rune('a'+i))),
			PlayerID:       playerID,
			LobbyID:        lobby.LobbyID,
			GameID:         game.GameID,
			ReconnectToken: ident.Token("rt1.t" + string(rune('a'+i)) + ".s"),
			Connected:      true,
		})
		sessions = append(sessions, rec)
	}
	return lobby, game, sessions
}

type roomCollector struct {
	mu     sync.Mutex
	events []protocol.Event
}

func (c *roomCollector) Send(ev protocol.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *roomCollector) snapshot() []protocol.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Event(nil), c.events...)
}

func TestSweepForfeitsOverdueDisconnect(t *testing.T) {
	w := newWorld(t)
	_, game, sessions := seatedGame(t, w)

	// North's partner stays; east (teamB) walks away.
	east := sessions[1]
	east.Connected = false
	*w.clock = 100
	east = w.sessions.Upsert(east)
	require.NotNil(t, east.ReconnectByMs)

	listener := &roomCollector{}
	w.broker.ConnectSession(sessions[0].SessionID, listener)
	w.broker.JoinRoom(sessions[0].SessionID, broker.GameRoom(game.GameID))

	*w.clock = *east.ReconnectByMs + 1
	assert.True(t, w.sweeper.SweepOnce())

	got, ok := w.games.GetByID(game.GameID)
	require.True(t, ok)
	assert.Equal(t, euchre.PhaseCompleted, got.State.Phase)
	require.NotNil(t, got.State.Winner)
	assert.Equal(t, euchre.TeamA, *got.State.Winner)
	assert.Equal(t, 10, got.State.Scores.Get(euchre.TeamA))

	events := listener.snapshot()
	require.Len(t, events, 2, "one notice and one terminal state in one publish")
	assert.Equal(t, protocol.EventSystemNotice, events[0].Type)
	var notice protocol.NoticePayload
	require.NoError(t, json.Unmarshal(events[0].Payload, &notice))
	assert.Regexp(t, regexp.MustCompile(`(?i)forfeit`), notice.Message)

	var gs protocol.GameStatePayload
	require.Equal(t, protocol.EventGameState, events[1].Type)
	require.NoError(t, json.Unmarshal(events[1].Payload, &gs))
	assert.Equal(t, euchre.PhaseCompleted, gs.Phase)

	// A second sweep finds the game completed and emits nothing further.
	assert.False(t, w.sweeper.SweepOnce())
	assert.Len(t, listener.snapshot(), 2)
}

func TestSweepLeavesGraceWindowAlone(t *testing.T) {
	w := newWorld(t)
	_, game, sessions := seatedGame(t, w)

	east := sessions[1]
	east.Connected = false
	*w.clock = 100
	east = w.sessions.Upsert(east)

	*w.clock = *east.ReconnectByMs - 1
	assert.False(t, w.sweeper.SweepOnce())

	got, ok := w.games.GetByID(game.GameID)
	require.True(t, ok)
	assert.Equal(t, euchre.PhaseRound1, got.State.Phase, "still inside the grace window")
}

func TestSweepPrunesExpiredSessionsAndMemberships(t *testing.T) {
	w := newWorld(t)
	lobby, game, sessions := seatedGame(t, w)
	_ = lobby

	east := sessions[1]
	east.Connected = false
	*w.clock = 0
	w.sessions.Upsert(east)

	collector := &roomCollector{}
	w.broker.ConnectSession(east.SessionID, collector)
	w.broker.JoinRoom(east.SessionID, broker.GameRoom(game.GameID))

	*w.clock = 300_001
	require.True(t, w.sweeper.SweepOnce())

	_, ok := w.sessions.GetByID(east.SessionID)
	assert.False(t, ok)
	assert.Empty(t, w.broker.Rooms(east.SessionID), "broker membership dropped with the session")
}

func TestSweepPrunesUnreferencedGamesAndLobbies(t *testing.T) {
	clock := int64(0)
	now := func() int64 { return clock }
	log := testLogger()
	lobbyTTL := int64(1_000)
	lobbies := store.NewLobbyStore(now, &lobbyTTL)
	games := store.NewGameStore(now, 10_000, nil)
	sessions := store.NewSessionStore(now, 60_000, 5_000, nil, log)
	b := broker.New(now, log)
	sw := NewSweeper(lobbies, games, sessions, b, nil, nil, 1_000, now, log)

	lobby := lobbies.Upsert(store.NewLobbyRecord("lobby_l1", "player_n", "North"))
	winner := euchre.TeamA
	games.Upsert(store.GameRecord{
		GameID:  "game_g1",
		LobbyID: lobby.LobbyID,
		State:   euchre.State{Phase: euchre.PhaseCompleted, TargetScore: 10, Winner: &winner},
	})
	sessions.Upsert(store.SessionRecord{
		SessionID: "session_a", PlayerID: "player_n", LobbyID: lobby.LobbyID,
		GameID: "game_g1", ReconnectToken: "rt1.a.b", Connected: false,
	})

	// While the session is retained, everything stays.
	clock = 4_000
	sw.SweepOnce()
	_, ok := games.GetByID("game_g1")
	assert.True(t, ok, "retained session still references the game")

	// Session ages out first, then the game and lobby go.
	clock = 20_000
	require.True(t, sw.SweepOnce())
	_, ok = games.GetByID("game_g1")
	assert.False(t, ok)
	_, ok = lobbies.GetByID("lobby_l1")
	assert.False(t, ok)
}

func TestLobbyWithActiveGameNotPruned(t *testing.T) {
	clock := int64(0)
	now := func() int64 { return clock }
	log := testLogger()
	lobbyTTL := int64(1_000)
	lobbies := store.NewLobbyStore(now, &lobbyTTL)
	games := store.NewGameStore(now, 1_000_000, nil)
	sessions := store.NewSessionStore(now, 60_000, 300_000, nil, log)
	sw := NewSweeper(lobbies, games, sessions, broker.New(now, log), nil, nil, 1_000, now, log)

	lobby := lobbies.Upsert(store.NewLobbyRecord("lobby_l1", "player_n", "North"))
	games.Upsert(store.GameRecord{
		GameID: "game_g1", LobbyID: lobby.LobbyID,
		State: euchre.NewState(10, euchre.North),
	})

	clock = 5_000
	sw.SweepOnce()
	_, ok := lobbies.GetByID("lobby_l1")
	assert.True(t, ok, "active game pins its lobby")
}

func TestCheckpointerCoalescesRequests(t *testing.T) {
	var writes atomic.Int64
	gate := make(chan struct{})
	c := NewCheckpointer(func() error {
		<-gate
		writes.Add(1)
		return nil
	}, testLogger())

	// While the first write is blocked, further requests collapse into one.
	c.Request()
	time.Sleep(10 * time.Millisecond)
	for i := 0; i < 10; i++ {
		c.Request()
	}
	close(gate)
	c.Close()

	assert.LessOrEqual(t, writes.Load(), int64(2))
	assert.GreaterOrEqual(t, writes.Load(), int64(1))
}

func TestCheckpointerNilSave(t *testing.T) {
	c := NewCheckpointer(nil, testLogger())
	c.Request()
	c.Close()
}

func TestSweeperRunStops(t *testing.T) {
	w := newWorld(t)
	go w.sweeper.Run()
	time.Sleep(5 * time.Millisecond)
	done := make(chan struct{})
	go func() {
		w.sweeper.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop within a tick")
	}
}
