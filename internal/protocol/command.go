package protocol

import (
	"fun-euchre/card"
	"fun-euchre/euchre"
	"fun-euchre/internal/ident"
)

// CommandType selects the dispatcher handler a validated command targets.
type CommandType string

const (
	CmdLobbyCreate     CommandType = "lobby.create"
	CmdLobbyJoin       CommandType = "lobby.join"
	CmdLobbyUpdateName CommandType = "lobby.update_name"
	CmdLobbyStart      CommandType = "lobby.start"
	CmdGamePlayCard    CommandType = "game.play_card"
	CmdGamePass        CommandType = "game.pass"
	CmdGameOrderUp     CommandType = "game.order_up"
	CmdGameCallTrump   CommandType = "game.call_trump"
)

// IsGameCommand reports whether the command routes through a game lane.
func (c CommandType) IsGameCommand() bool {
	switch c {
	case CmdGamePlayCard, CmdGamePass, CmdGameOrderUp, CmdGameCallTrump:
		return true
	}
	return false
}

// ClientEvent is the decoded request envelope. Which fields are required
// depends on Type; ToDomainCommand enforces that.
type ClientEvent struct {
	RequestID      string `json:"requestId"`
	Type           string `json:"type"`
	LobbyID        string `json:"lobbyId,omitempty"`
	GameID         string `json:"gameId,omitempty"`
	PlayerID       string `json:"playerId,omitempty"`
	SessionID      string `json:"sessionId,omitempty"`
	ReconnectToken string `json:"reconnectToken,omitempty"`
	DisplayName    string `json:"displayName,omitempty"`
	Actor          string `json:"actor,omitempty"`
	Card           string `json:"card,omitempty"`
	Trump          string `json:"trump,omitempty"`
	Alone          bool   `json:"alone,omitempty"`
}

// Command is a validated client request with all ids and enums parsed.
type Command struct {
	Type           CommandType
	RequestID      string
	LobbyID        ident.LobbyID
	GameID         ident.GameID
	PlayerID       ident.PlayerID
	SessionID      ident.SessionID
	ReconnectToken ident.Token
	DisplayName    string
	Action         euchre.Action
}

func invalidf(format string, args ...any) *euchre.Reject {
	return euchre.NewReject(euchre.CodeInvalidAction, format, args...)
}

// ToDomainCommand validates a client event into exactly one command.
// Malformed ids and enum fields yield INVALID_ACTION.
func ToDomainCommand(ev ClientEvent) (Command, *euchre.Reject) {
	cmd := Command{
		Type:        CommandType(ev.Type),
		RequestID:   ev.RequestID,
		DisplayName: ev.DisplayName,
	}

	var err error
	if ev.LobbyID != "" {
		if cmd.LobbyID, err = ident.ParseLobbyID(ev.LobbyID); err != nil {
			return Command{}, invalidf("lobbyId is malformed")
		}
	}
	if ev.GameID != "" {
		if cmd.GameID, err = ident.ParseGameID(ev.GameID); err != nil {
			return Command{}, invalidf("gameId is malformed")
		}
	}
	if ev.PlayerID != "" {
		if cmd.PlayerID, err = ident.ParsePlayerID(ev.PlayerID); err != nil {
			return Command{}, invalidf("playerId is malformed")
		}
	}
	if ev.SessionID != "" {
		if cmd.SessionID, err = ident.ParseSessionID(ev.SessionID); err != nil {
			return Command{}, invalidf("sessionId is malformed")
		}
	}
	if ev.ReconnectToken != "" {
		if cmd.ReconnectToken, err = ident.ParseToken(ev.ReconnectToken); err != nil {
			return Command{}, invalidf("reconnectToken is malformed")
		}
	}

	switch cmd.Type {
	case CmdLobbyCreate:
		if cmd.DisplayName == "" {
			return Command{}, invalidf("displayName is required")
		}
		return cmd, nil

	case CmdLobbyJoin:
		if cmd.LobbyID == "" {
			return Command{}, invalidf("lobbyId is required")
		}
		if cmd.ReconnectToken == "" && cmd.DisplayName == "" {
			return Command{}, invalidf("displayName is required for a fresh join")
		}
		return cmd, nil

	case CmdLobbyUpdateName:
		if cmd.LobbyID == "" || cmd.PlayerID == "" || cmd.DisplayName == "" {
			return Command{}, invalidf("lobbyId, playerId, and displayName are required")
		}
		return cmd, nil

	case CmdLobbyStart:
		if cmd.LobbyID == "" || cmd.PlayerID == "" {
			return Command{}, invalidf("lobbyId and playerId are required")
		}
		return cmd, nil

	case CmdGamePlayCard, CmdGamePass, CmdGameOrderUp, CmdGameCallTrump:
		if cmd.GameID == "" || cmd.PlayerID == "" {
			return Command{}, invalidf("gameId and playerId are required")
		}
		actor, parseErr := euchre.ParseSeat(ev.Actor)
		if parseErr != nil {
			return Command{}, invalidf("actor seat is malformed")
		}
		action, rej := gameAction(cmd.Type, actor, ev)
		if rej != nil {
			return Command{}, rej
		}
		cmd.Action = action
		return cmd, nil

	default:
		return Command{}, invalidf("unknown command type %q", ev.Type)
	}
}

func gameAction(cmdType CommandType, actor euchre.Seat, ev ClientEvent) (euchre.Action, *euchre.Reject) {
	switch cmdType {
	case CmdGamePlayCard:
		c, err := card.Parse(ev.Card)
		if err != nil {
			return euchre.Action{}, invalidf("card is malformed")
		}
		return euchre.Action{Type: euchre.ActionPlayCard, Actor: actor, Card: c}, nil

	case CmdGamePass:
		return euchre.Action{Type: euchre.ActionPass, Actor: actor}, nil

	case CmdGameOrderUp:
		return euchre.Action{Type: euchre.ActionOrderUp, Actor: actor, Alone: ev.Alone}, nil

	case CmdGameCallTrump:
		trump, err := card.ParseSuit(ev.Trump)
		if err != nil {
			return euchre.Action{}, invalidf("trump suit is malformed")
		}
		return euchre.Action{Type: euchre.ActionCallTrump, Actor: actor, Trump: trump, Alone: ev.Alone}, nil
	}
	return euchre.Action{}, invalidf("unknown game command %q", cmdType)
}
