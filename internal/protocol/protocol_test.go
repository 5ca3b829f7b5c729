package protocol

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fun-euchre/card"
	"fun-euchre/euchre"
	"fun-euchre/internal/store"
)

func TestToDomainCommandPlayCard(t *testing.T) {
	cmd, rej := ToDomainCommand(ClientEvent{
		RequestID: "req-1",
		Type:      "game.play_card",
		GameID:    "game_g1",
		PlayerID:  "player_p1",
		Actor:     "east",
		Card:      "hearts:A",
	})
	require.Nil(t, rej)
	assert.Equal(t, CmdGamePlayCard, cmd.Type)
	assert.Equal(t, euchre.ActionPlayCard, cmd.Action.Type)
	assert.Equal(t, euchre.East, cmd.Action.Actor)
	assert.Equal(t, card.Card{Suit: card.Hearts, Rank: card.Ace}, cmd.Action.Card)
}

func TestToDomainCommandCallTrumpAlone(t *testing.T) {
	cmd, rej := ToDomainCommand(ClientEvent{
		Type:     "game.call_trump",
		GameID:   "game_g1",
		PlayerID: "player_p1",
		Actor:    "south",
		Trump:    "spades",
		Alone:    true,
	})
	require.Nil(t, rej)
	assert.Equal(t, euchre.ActionCallTrump, cmd.Action.Type)
	assert.Equal(t, card.Spades, cmd.Action.Trump)
	assert.True(t, cmd.Action.Alone)
}

func TestToDomainCommandRejectsMalformedInput(t *testing.T) {
	cases := []ClientEvent{
		{Type: "game.play_card", GameID: "bad id", PlayerID: "player_p1", Actor: "east", Card: "hearts:A"},
		{Type: "game.play_card", GameID: "game_g1", PlayerID: "player_p1", Actor: "middle", Card: "hearts:A"},
		{Type: "game.play_card", GameID: "game_g1", PlayerID: "player_p1", Actor: "east", Card: "hearts:2"},
		{Type: "game.call_trump", GameID: "game_g1", PlayerID: "player_p1", Actor: "east", Trump: "stars"},
		{Type: "game.pass", PlayerID: "player_p1", Actor: "east"},
		{Type: "lobby.create"},
		{Type: "lobby.update_name", LobbyID: "lobby_l1", PlayerID: "player_p1"},
		{Type: "lobby.teleport"},
	}
	for _, ev := range cases {
		_, rej := ToDomainCommand(ev)
		require.NotNil(t, rej, "event %+v must be rejected", ev)
		assert.Equal(t, euchre.CodeInvalidAction, rej.Code)
	}
}

func TestToDomainCommandLobbyJoinBranches(t *testing.T) {
	_, rej := ToDomainCommand(ClientEvent{Type: "lobby.join", LobbyID: "lobby_l1"})
	require.NotNil(t, rej, "fresh join needs a display name")

	cmd, rej := ToDomainCommand(ClientEvent{Type: "lobby.join", LobbyID: "lobby_l1", ReconnectToken: "rt1.a.b"})
	require.Nil(t, rej, "reconnect join carries no display name")
	assert.Equal(t, CmdLobbyJoin, cmd.Type)

	cmd, rej = ToDomainCommand(ClientEvent{Type: "lobby.join", LobbyID: "lobby_l1", DisplayName: "East"})
	require.Nil(t, rej)
	assert.Equal(t, "East", cmd.DisplayName)
}

func dealtGameRecord(t *testing.T) store.GameRecord {
	t.Helper()
	engine := euchre.NewEngine(rand.New(rand.NewSource(3)))
	state, rej := engine.Apply(euchre.NewState(10, euchre.North), euchre.Action{
		Type: euchre.ActionDealHand, Deck: card.Deck(),
	})
	require.Nil(t, rej)
	return store.GameRecord{GameID: "game_g1", LobbyID: "lobby_l1", State: state}
}

func TestGameStateProjectionHidesHands(t *testing.T) {
	ev, err := ToGameStateEvent(dealtGameRecord(t))
	require.NoError(t, err)
	assert.Equal(t, EventVersion, ev.Version)
	assert.Equal(t, EventGameState, ev.Type)

	var generic map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(ev.Payload, &generic))
	assert.NotContains(t, generic, "hands")
	assert.NotContains(t, generic, "kitty")

	var payload GameStatePayload
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.Equal(t, euchre.PhaseRound1, payload.Phase)
	assert.Equal(t, "game_g1", payload.GameID)
	for _, seat := range euchre.Seats() {
		assert.Equal(t, euchre.HandSize, payload.HandSizes[seat])
	}
	require.NotNil(t, payload.Upcard)
}

func TestPrivateStateProjection(t *testing.T) {
	rec := dealtGameRecord(t)
	ev, err := ToGamePrivateStateEvent(rec, euchre.East)
	require.NoError(t, err)
	assert.Equal(t, EventGamePrivateState, ev.Type)

	var payload GamePrivateStatePayload
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.Equal(t, euchre.East, payload.Seat)
	assert.ElementsMatch(t, rec.State.Hands[euchre.East], payload.Hand)
	assert.False(t, payload.SittingOut)
	assert.Empty(t, payload.LegalPlays, "no legal plays during bidding")
}

func TestPrivateStateLegalPlaysOnTurn(t *testing.T) {
	rec := dealtGameRecord(t)
	engine := euchre.NewEngine(nil)
	state, rej := engine.Apply(rec.State, euchre.Action{Type: euchre.ActionOrderUp, Actor: euchre.East})
	require.Nil(t, rej)
	rec.State = state

	ev, err := ToGamePrivateStateEvent(rec, euchre.East)
	require.NoError(t, err)
	var payload GamePrivateStatePayload
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.NotEmpty(t, payload.LegalPlays, "leader sees the playable cards")
}

func TestLobbyStateProjection(t *testing.T) {
	rec := store.NewLobbyRecord("lobby_l1", "player_host", "Host")
	_, rej := rec.Join("player_2", "East")
	require.Nil(t, rej)

	ev, err := ToLobbyStateEvent(rec)
	require.NoError(t, err)
	var payload LobbyStatePayload
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))

	assert.Equal(t, "lobby_l1", payload.LobbyID)
	assert.Equal(t, store.LobbyWaiting, payload.Phase)
	require.Len(t, payload.Seats, 4)
	assert.Equal(t, "Host", payload.Seats[0].DisplayName)
	assert.Equal(t, "East", payload.Seats[1].DisplayName)
	assert.Empty(t, payload.Seats[2].PlayerID)
}

func TestApplyToGameRejectEmitsSingleEvent(t *testing.T) {
	adapter := NewAdapter(euchre.NewEngine(nil))
	rec := dealtGameRecord(t)

	// South tries to pass when it is east's turn to bid.
	res, err := adapter.ApplyToGame(rec.GameID, rec.LobbyID, rec.State, Command{
		RequestID: "req-7",
		Action:    euchre.Action{Type: euchre.ActionPass, Actor: euchre.South},
	})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, rec.State, res.State, "rejects leave state untouched")
	require.Len(t, res.Outbound, 1)
	assert.Equal(t, EventActionRejected, res.Outbound[0].Type)

	var payload RejectedPayload
	require.NoError(t, json.Unmarshal(res.Outbound[0].Payload, &payload))
	assert.Equal(t, "req-7", payload.RequestID)
	assert.Equal(t, euchre.CodeNotYourTurn, payload.Code)
}

func TestApplyToGameSuccess(t *testing.T) {
	adapter := NewAdapter(euchre.NewEngine(nil))
	rec := dealtGameRecord(t)

	res, err := adapter.ApplyToGame(rec.GameID, rec.LobbyID, rec.State, Command{
		Action: euchre.Action{Type: euchre.ActionPass, Actor: euchre.East},
	})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	require.Len(t, res.Outbound, 1)
	assert.Equal(t, EventGameState, res.Outbound[0].Type)
	assert.Equal(t, euchre.South, res.State.Bidding.Turn)
}

// After the last card of a hand, scoring and the next deal happen inside
// the same command so clients never see an intermediate score phase.
func TestApplyToGameChainsScoreAndDeal(t *testing.T) {
	adapter := NewAdapter(euchre.NewEngine(rand.New(rand.NewSource(11))))
	trump := card.Hearts
	maker := euchre.North
	state := euchre.State{
		Phase:      euchre.PhasePlay,
		HandNumber: 1,
		Dealer:     euchre.West,
		Turn:       euchre.North,
		Trump:      &trump,
		Maker:      &maker,
		Hands: map[euchre.Seat][]card.Card{
			euchre.North: {{Suit: card.Hearts, Rank: card.Ace}},
			euchre.East:  {{Suit: card.Clubs, Rank: card.Nine}},
			euchre.South: {{Suit: card.Spades, Rank: card.Nine}},
			euchre.West:  {{Suit: card.Diamonds, Rank: card.Nine}},
		},
		Trick:       &euchre.Trick{Number: 5, Leader: euchre.North, Turn: euchre.North},
		TricksWon:   euchre.TeamTally{TeamA: 2, TeamB: 2},
		Scores:      euchre.TeamTally{TeamA: 2, TeamB: 2},
		TargetScore: 10,
	}

	var res ApplyResult
	var err error
	for _, play := range []struct {
		seat euchre.Seat
		c    card.Card
	}{
		{euchre.North, card.Card{Suit: card.Hearts, Rank: card.Ace}},
		{euchre.East, card.Card{Suit: card.Clubs, Rank: card.Nine}},
		{euchre.South, card.Card{Suit: card.Spades, Rank: card.Nine}},
		{euchre.West, card.Card{Suit: card.Diamonds, Rank: card.Nine}},
	} {
		res, err = adapter.ApplyToGame("game_g1", "lobby_l1", state, Command{
			Action: euchre.Action{Type: euchre.ActionPlayCard, Actor: play.seat, Card: play.c},
		})
		require.NoError(t, err)
		state = res.State
	}

	assert.Equal(t, euchre.PhaseRound1, state.Phase, "score and next deal are chained")
	assert.Equal(t, 2, state.HandNumber)
	assert.Equal(t, euchre.North, state.Dealer, "deal rotated from west")
	assert.Equal(t, 3, state.Scores.Get(euchre.TeamA), "makers took 3 tricks for 1 point")
	require.Len(t, res.Outbound, 1)
	assert.Equal(t, EventGameState, res.Outbound[0].Type)
}

func TestApplyToGameCompletedGameNotRedealt(t *testing.T) {
	adapter := NewAdapter(euchre.NewEngine(rand.New(rand.NewSource(11))))
	trump := card.Hearts
	maker := euchre.North
	state := euchre.State{
		Phase:      euchre.PhasePlay,
		HandNumber: 1,
		Dealer:     euchre.West,
		Turn:       euchre.North,
		Trump:      &trump,
		Maker:      &maker,
		Hands: map[euchre.Seat][]card.Card{
			euchre.North: {{Suit: card.Hearts, Rank: card.Ace}},
			euchre.East:  {{Suit: card.Clubs, Rank: card.Nine}},
			euchre.South: {{Suit: card.Spades, Rank: card.Nine}},
			euchre.West:  {{Suit: card.Diamonds, Rank: card.Nine}},
		},
		Trick:       &euchre.Trick{Number: 5, Leader: euchre.North, Turn: euchre.North},
		TricksWon:   euchre.TeamTally{TeamA: 2, TeamB: 2},
		Scores:      euchre.TeamTally{TeamA: 9, TeamB: 2},
		TargetScore: 10,
	}

	for _, play := range []struct {
		seat euchre.Seat
		c    card.Card
	}{
		{euchre.North, card.Card{Suit: card.Hearts, Rank: card.Ace}},
		{euchre.East, card.Card{Suit: card.Clubs, Rank: card.Nine}},
		{euchre.South, card.Card{Suit: card.Spades, Rank: card.Nine}},
		{euchre.West, card.Card{Suit: card.Diamonds, Rank: card.Nine}},
	} {
		res, err := adapter.ApplyToGame("game_g1", "lobby_l1", state, Command{
			Action: euchre.Action{Type: euchre.ActionPlayCard, Actor: play.seat, Card: play.c},
		})
		require.NoError(t, err)
		state = res.State
	}

	assert.Equal(t, euchre.PhaseCompleted, state.Phase)
	require.NotNil(t, state.Winner)
	assert.Equal(t, euchre.TeamA, *state.Winner)
	assert.Equal(t, 10, state.Scores.Get(euchre.TeamA))
}

func TestEventCloneIsolatesPayload(t *testing.T) {
	ev, err := ToNoticeEvent("hello")
	require.NoError(t, err)
	ev.Ordering = &Ordering{Sequence: 1, EmittedAtMs: 5}

	dup := ev.Clone()
	dup.Payload[0] = 'X'
	dup.Ordering.Sequence = 99

	assert.Equal(t, byte('{'), ev.Payload[0])
	assert.Equal(t, uint64(1), ev.Ordering.Sequence)
}
