// Package ident defines the typed identifiers the runtime passes between
// components and the signed reconnect tokens that let a dropped client
// reattach to its session.
package ident

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// Identifiers are opaque printable-ASCII strings, non-empty and bounded.
// Minted values embed a UUID so they are unique for the process lifetime.
var idPattern = regexp.MustCompile(`^[\x21-\x7e]{1,64}$`)

type (
	LobbyID   string
	GameID    string
	PlayerID  string
	SessionID string
)

func (id LobbyID) String() string   { return string(id) }
func (id GameID) String() string    { return string(id) }
func (id PlayerID) String() string  { return string(id) }
func (id SessionID) String() string { return string(id) }

func NewLobbyID() LobbyID     { return LobbyID("lobby_" + uuid.NewString()) }
func NewGameID() GameID       { return GameID("game_" + uuid.NewString()) }
func NewPlayerID() PlayerID   { return PlayerID("player_" + uuid.NewString()) }
func NewSessionID() SessionID { return SessionID("session_" + uuid.NewString()) }

func validateID(kind, raw string) error {
	if !idPattern.MatchString(raw) {
		return fmt.Errorf("invalid %s id: %q", kind, raw)
	}
	return nil
}

func ParseLobbyID(raw string) (LobbyID, error) {
	if err := validateID("lobby", raw); err != nil {
		return "", err
	}
	return LobbyID(raw), nil
}

func ParseGameID(raw string) (GameID, error) {
	if err := validateID("game", raw); err != nil {
		return "", err
	}
	return GameID(raw), nil
}

func ParsePlayerID(raw string) (PlayerID, error) {
	if err := validateID("player", raw); err != nil {
		return "", err
	}
	return PlayerID(raw), nil
}

func ParseSessionID(raw string) (SessionID, error) {
	if err := validateID("session", raw); err != nil {
		return "", err
	}
	return SessionID(raw), nil
}
