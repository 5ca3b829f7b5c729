// Package runtime wires the command surface together: lobby handlers run
// against the stores directly, game commands route through the per-game
// lanes, and every authoritative transition is fanned out via the broker.
package runtime

import (
	"time"

	"github.com/decred/slog"

	"fun-euchre/euchre"
	"fun-euchre/internal/broker"
	"fun-euchre/internal/ident"
	"fun-euchre/internal/manager"
	"fun-euchre/internal/protocol"
	"fun-euchre/internal/store"
)

// Identity is the credential bundle returned to a client that created or
// joined a lobby.
type Identity struct {
	LobbyID        ident.LobbyID   `json:"lobbyId"`
	PlayerID       ident.PlayerID  `json:"playerId"`
	SessionID      ident.SessionID `json:"sessionId"`
	ReconnectToken ident.Token     `json:"reconnectToken"`
}

// Response is the outcome of one dispatched command. Reject and Outbound
// are mutually exclusive except for game commands, whose rejects travel as
// action.rejected events inside Outbound.
type Response struct {
	Outbound []protocol.Event
	Identity *Identity
	Reject   *euchre.Reject
}

// Stores bundles the three tables the dispatcher operates on.
type Stores struct {
	Lobbies  *store.LobbyStore
	Games    *store.GameStore
	Sessions *store.SessionStore
}

// Dispatcher implements the lobby and game command handlers.
type Dispatcher struct {
	stores     Stores
	issuer     *ident.Issuer
	broker     *broker.Broker
	manager    *manager.Manager
	checkpoint func()
	nowMs      func() int64
	log        slog.Logger
}

// New builds a dispatcher. A nil checkpoint disables snapshot requests;
// a nil clock uses wall time.
func New(stores Stores, issuer *ident.Issuer, b *broker.Broker, m *manager.Manager, checkpoint func(), nowMs func() int64, log slog.Logger) *Dispatcher {
	if checkpoint == nil {
		checkpoint = func() {}
	}
	if nowMs == nil {
		nowMs = func() int64 { return time.Now().UnixMilli() }
	}
	return &Dispatcher{
		stores:     stores,
		issuer:     issuer,
		broker:     b,
		manager:    m,
		checkpoint: checkpoint,
		nowMs:      nowMs,
		log:        log,
	}
}

// Dispatch routes a validated command to its handler.
func (d *Dispatcher) Dispatch(cmd protocol.Command) Response {
	switch cmd.Type {
	case protocol.CmdLobbyCreate:
		return d.createLobby(cmd)
	case protocol.CmdLobbyJoin:
		return d.joinLobby(cmd)
	case protocol.CmdLobbyUpdateName:
		return d.updateName(cmd)
	case protocol.CmdLobbyStart:
		return d.startGame(cmd)
	case protocol.CmdGamePlayCard, protocol.CmdGamePass, protocol.CmdGameOrderUp, protocol.CmdGameCallTrump:
		return d.gameCommand(cmd)
	default:
		return Response{Reject: euchre.NewReject(euchre.CodeInvalidAction, "unknown command type %q", cmd.Type)}
	}
}

func (d *Dispatcher) createLobby(cmd protocol.Command) Response {
	lobbyID := ident.NewLobbyID()
	playerID := ident.NewPlayerID()
	sessionID := ident.NewSessionID()

	token, err := d.issuer.Issue(sessionID, lobbyID, playerID)
	if err != nil {
		d.log.Errorf("issuing reconnect token: %v", err)
		return Response{Reject: euchre.NewReject(euchre.CodeInvalidState, "could not issue reconnect token")}
	}

	lobby := d.stores.Lobbies.Upsert(store.NewLobbyRecord(lobbyID, playerID, cmd.DisplayName))
	d.stores.Sessions.Upsert(store.SessionRecord{
		SessionID:      sessionID,
		PlayerID:       playerID,
		LobbyID:        lobbyID,
		ReconnectToken: token,
		Connected:      true,
	})
	d.checkpoint()
	d.broker.JoinRoom(sessionID, broker.LobbyRoom(lobbyID))

	d.log.Infof("lobby %s created by %s (%q)", lobbyID, playerID, cmd.DisplayName)
	return d.lobbyResponse(lobby, nil, &Identity{
		LobbyID:        lobbyID,
		PlayerID:       playerID,
		SessionID:      sessionID,
		ReconnectToken: token,
	})
}

func (d *Dispatcher) joinLobby(cmd protocol.Command) Response {
	if cmd.ReconnectToken != "" {
		return d.rejoinLobby(cmd)
	}

	lobby, ok := d.stores.Lobbies.GetByID(cmd.LobbyID)
	if !ok {
		return Response{Reject: euchre.NewReject(euchre.CodeInvalidState, "lobby %s not found", cmd.LobbyID)}
	}

	playerID := ident.NewPlayerID()
	sessionID := ident.NewSessionID()
	token, err := d.issuer.Issue(sessionID, lobby.LobbyID, playerID)
	if err != nil {
		d.log.Errorf("issuing reconnect token: %v", err)
		return Response{Reject: euchre.NewReject(euchre.CodeInvalidState, "could not issue reconnect token")}
	}

	seat, rej := lobby.Join(playerID, cmd.DisplayName)
	if rej != nil {
		return Response{Reject: rej}
	}
	lobby = d.stores.Lobbies.Upsert(lobby)

	session := store.SessionRecord{
		SessionID:      sessionID,
		PlayerID:       playerID,
		LobbyID:        lobby.LobbyID,
		ReconnectToken: token,
		Connected:      true,
	}
	game, hasGame := d.stores.Games.GetByLobby(lobby.LobbyID)
	if hasGame {
		session.GameID = game.GameID
	}
	d.stores.Sessions.Upsert(session)
	d.checkpoint()

	d.bindRooms(sessionID, lobby.LobbyID, session.GameID)
	d.log.Infof("player %s (%q) joined lobby %s at %s", playerID, cmd.DisplayName, lobby.LobbyID, seat)

	var gameRec *store.GameRecord
	if hasGame {
		gameRec = &game
	}
	return d.lobbyResponse(lobby, gameRec, &Identity{
		LobbyID:        lobby.LobbyID,
		PlayerID:       playerID,
		SessionID:      sessionID,
		ReconnectToken: token,
	})
}

func (d *Dispatcher) rejoinLobby(cmd protocol.Command) Response {
	claims, vErr := d.issuer.Verify(cmd.ReconnectToken, ident.Expect{LobbyID: cmd.LobbyID})
	if vErr != nil {
		d.log.Warnf("reconnect to lobby %s failed: %s", cmd.LobbyID, vErr.Kind)
		return Response{Reject: euchre.NewReject(euchre.CodeUnauthorized, "reconnect token rejected")}
	}

	session, ok := d.stores.Sessions.GetByToken(cmd.ReconnectToken)
	if !ok || session.SessionID != claims.SessionID || session.PlayerID != claims.PlayerID || session.LobbyID != claims.LobbyID {
		return Response{Reject: euchre.NewReject(euchre.CodeUnauthorized, "reconnect token does not match a live session")}
	}
	if !session.Connected && session.ReconnectByMs != nil && d.nowMs() > *session.ReconnectByMs {
		return Response{Reject: euchre.NewReject(euchre.CodeInvalidState, "reconnect window has expired")}
	}

	lobby, ok := d.stores.Lobbies.GetByID(session.LobbyID)
	if !ok {
		return Response{Reject: euchre.NewReject(euchre.CodeInvalidState, "lobby %s not found", session.LobbyID)}
	}

	session.Connected = true
	lobby.SetConnected(session.PlayerID, true)
	lobby = d.stores.Lobbies.Upsert(lobby)
	game, hasGame := d.stores.Games.GetByLobby(lobby.LobbyID)
	if hasGame {
		session.GameID = game.GameID
	}
	session = d.stores.Sessions.Upsert(session)
	d.checkpoint()

	d.bindRooms(session.SessionID, lobby.LobbyID, session.GameID)
	d.log.Infof("player %s reconnected to lobby %s", session.PlayerID, lobby.LobbyID)

	var gameRec *store.GameRecord
	if hasGame {
		gameRec = &game
	}
	return d.lobbyResponse(lobby, gameRec, &Identity{
		LobbyID:        session.LobbyID,
		PlayerID:       session.PlayerID,
		SessionID:      session.SessionID,
		ReconnectToken: session.ReconnectToken,
	})
}

func (d *Dispatcher) updateName(cmd protocol.Command) Response {
	lobby, ok := d.stores.Lobbies.GetByID(cmd.LobbyID)
	if !ok {
		return Response{Reject: euchre.NewReject(euchre.CodeInvalidState, "lobby %s not found", cmd.LobbyID)}
	}
	if rej := lobby.UpdateDisplayName(cmd.PlayerID, cmd.DisplayName); rej != nil {
		return Response{Reject: rej}
	}
	lobby = d.stores.Lobbies.Upsert(lobby)
	d.checkpoint()
	return d.lobbyResponse(lobby, nil, nil)
}

func (d *Dispatcher) startGame(cmd protocol.Command) Response {
	lobby, ok := d.stores.Lobbies.GetByID(cmd.LobbyID)
	if !ok {
		return Response{Reject: euchre.NewReject(euchre.CodeInvalidState, "lobby %s not found", cmd.LobbyID)}
	}
	if rej := lobby.Start(cmd.PlayerID); rej != nil {
		return Response{Reject: rej}
	}

	gameID := ident.NewGameID()
	d.stores.Games.Upsert(store.GameRecord{
		GameID:  gameID,
		LobbyID: lobby.LobbyID,
		State:   euchre.NewState(euchre.DefaultTargetScore, euchre.North),
	})
	lobby = d.stores.Lobbies.Upsert(lobby)

	// Bind every seated player's session to the game room and record the
	// game on the session.
	for _, sa := range lobby.SeatedPlayers() {
		session, ok := d.stores.Sessions.GetByPlayer(sa.PlayerID)
		if !ok {
			continue
		}
		session.GameID = gameID
		d.stores.Sessions.Upsert(session)
		d.broker.JoinRoom(session.SessionID, broker.GameRoom(gameID))
	}

	// The opening deal runs through the game lane like any other command.
	res := d.manager.SubmitEvent(gameID, protocol.Command{
		RequestID: cmd.RequestID,
		Action:    euchre.Action{Type: euchre.ActionDealHand},
	})
	d.checkpoint()
	d.publishGame(gameID, res)

	lobbyEv, err := protocol.ToLobbyStateEvent(lobby)
	if err != nil {
		d.log.Errorf("lobby projection: %v", err)
		return Response{Reject: euchre.NewReject(euchre.CodeInvalidState, "internal projection failure")}
	}
	if _, err := d.broker.Publish(broker.SourceDomainTransition, broker.LobbyRoom(lobby.LobbyID), []protocol.Event{lobbyEv}); err != nil {
		d.log.Errorf("publishing lobby state: %v", err)
	}

	d.log.Infof("lobby %s started game %s", lobby.LobbyID, gameID)
	return Response{Outbound: append([]protocol.Event{lobbyEv}, res.Outbound...)}
}

func (d *Dispatcher) gameCommand(cmd protocol.Command) Response {
	game, ok := d.stores.Games.GetByID(cmd.GameID)
	if ok {
		lobby, hasLobby := d.stores.Lobbies.GetByID(game.LobbyID)
		if !hasLobby {
			return Response{Reject: euchre.NewReject(euchre.CodeInvalidState, "lobby for game %s not found", cmd.GameID)}
		}
		seat, seated := lobby.SeatOf(cmd.PlayerID)
		if !seated {
			return Response{Reject: euchre.NewReject(euchre.CodeUnauthorized, "player is not seated in this game")}
		}
		if seat != cmd.Action.Actor {
			return Response{Reject: euchre.NewReject(euchre.CodeUnauthorized, "actor seat does not belong to player")}
		}
	}

	res := d.manager.SubmitEvent(cmd.GameID, cmd)
	d.publishGame(cmd.GameID, res)
	return Response{Outbound: res.Outbound}
}

// publishGame fans a lane result out: the public outbound to the game
// room, and each seat's private projection to that seat's session only.
func (d *Dispatcher) publishGame(gameID ident.GameID, res manager.Result) {
	if len(res.Outbound) > 0 {
		if _, err := d.broker.Publish(broker.SourceDomainTransition, broker.GameRoom(gameID), res.Outbound); err != nil {
			d.log.Errorf("publishing to game %s: %v", gameID, err)
		}
	}
	if len(res.Private) == 0 {
		return
	}
	game, ok := d.stores.Games.GetByID(gameID)
	if !ok {
		return
	}
	lobby, ok := d.stores.Lobbies.GetByID(game.LobbyID)
	if !ok {
		return
	}
	for seat, ev := range res.Private {
		sa := lobby.Seats[seat]
		if sa.PlayerID == "" {
			continue
		}
		session, ok := d.stores.Sessions.GetByPlayer(sa.PlayerID)
		if !ok {
			continue
		}
		d.broker.DeliverToSession(session.SessionID, []protocol.Event{ev})
	}
}

// lobbyResponse projects and publishes lobby (and optional game) state.
func (d *Dispatcher) lobbyResponse(lobby store.LobbyRecord, game *store.GameRecord, identity *Identity) Response {
	lobbyEv, err := protocol.ToLobbyStateEvent(lobby)
	if err != nil {
		d.log.Errorf("lobby projection: %v", err)
		return Response{Reject: euchre.NewReject(euchre.CodeInvalidState, "internal projection failure")}
	}
	outbound := []protocol.Event{lobbyEv}
	if game != nil {
		gameEv, err := protocol.ToGameStateEvent(*game)
		if err != nil {
			d.log.Errorf("game projection: %v", err)
		} else {
			outbound = append(outbound, gameEv)
		}
	}
	if _, err := d.broker.Publish(broker.SourceDomainTransition, broker.LobbyRoom(lobby.LobbyID), outbound); err != nil {
		d.log.Errorf("publishing lobby state: %v", err)
	}
	return Response{Outbound: outbound, Identity: identity}
}

// bindRooms subscribes a session to its lobby room and, when a game
// exists, its game room.
func (d *Dispatcher) bindRooms(sessionID ident.SessionID, lobbyID ident.LobbyID, gameID ident.GameID) {
	d.broker.JoinRoom(sessionID, broker.LobbyRoom(lobbyID))
	if gameID != "" {
		d.broker.JoinRoom(sessionID, broker.GameRoom(gameID))
	}
}

// MarkConnected records a live transport for the session: the session and
// its lobby seat flip to connected and the lobby room sees fresh state.
func (d *Dispatcher) MarkConnected(sessionID ident.SessionID) {
	d.setConnected(sessionID, true)
}

// MarkDisconnected records the transport loss; the reconnect grace window
// starts from the session store's clock.
func (d *Dispatcher) MarkDisconnected(sessionID ident.SessionID) {
	d.setConnected(sessionID, false)
}

func (d *Dispatcher) setConnected(sessionID ident.SessionID, connected bool) {
	session, ok := d.stores.Sessions.GetByID(sessionID)
	if !ok {
		return
	}
	if session.Connected == connected {
		return
	}
	session.Connected = connected
	d.stores.Sessions.Upsert(session)

	lobby, ok := d.stores.Lobbies.GetByID(session.LobbyID)
	if !ok {
		return
	}
	lobby.SetConnected(session.PlayerID, connected)
	lobby = d.stores.Lobbies.Upsert(lobby)
	d.checkpoint()

	lobbyEv, err := protocol.ToLobbyStateEvent(lobby)
	if err != nil {
		d.log.Errorf("lobby projection: %v", err)
		return
	}
	if _, err := d.broker.Publish(broker.SourceDomainTransition, broker.LobbyRoom(lobby.LobbyID), []protocol.Event{lobbyEv}); err != nil {
		d.log.Errorf("publishing lobby state: %v", err)
	}
}

// SessionIdentity reloads the identity bundle for a verified session, used
// by the websocket handshake.
func (d *Dispatcher) SessionIdentity(sessionID ident.SessionID) (store.SessionRecord, bool) {
	return d.stores.Sessions.GetByID(sessionID)
}

// Now returns the dispatcher's clock reading, used by the websocket
// handshake to check reconnect deadlines.
func (d *Dispatcher) Now() int64 {
	return d.nowMs()
}

// CatchupEvents assembles the full current view for a freshly subscribed
// session: lobby state, game state, and the session's private seat state.
func (d *Dispatcher) CatchupEvents(sessionID ident.SessionID) []protocol.Event {
	session, ok := d.stores.Sessions.GetByID(sessionID)
	if !ok {
		return nil
	}
	var events []protocol.Event

	lobby, hasLobby := d.stores.Lobbies.GetByID(session.LobbyID)
	if hasLobby {
		if ev, err := protocol.ToLobbyStateEvent(lobby); err == nil {
			events = append(events, ev)
		} else {
			d.log.Errorf("lobby projection: %v", err)
		}
	}
	if session.GameID == "" {
		return events
	}
	game, hasGame := d.stores.Games.GetByID(session.GameID)
	if !hasGame {
		return events
	}
	if ev, err := protocol.ToGameStateEvent(game); err == nil {
		events = append(events, ev)
	} else {
		d.log.Errorf("game projection: %v", err)
	}
	if hasLobby {
		if seat, seated := lobby.SeatOf(session.PlayerID); seated {
			if ev, err := protocol.ToGamePrivateStateEvent(game, seat); err == nil {
				events = append(events, ev)
			} else {
				d.log.Errorf("private projection: %v", err)
			}
		}
	}
	return events
}
