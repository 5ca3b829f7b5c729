package protocol

import (
	"fun-euchre/card"
	"fun-euchre/euchre"
	"fun-euchre/internal/ident"
	"fun-euchre/internal/store"
)

// LobbySeatView is one seat in a lobby.state payload.
type LobbySeatView struct {
	Seat        euchre.Seat `json:"seat"`
	Team        euchre.Team `json:"team"`
	PlayerID    string      `json:"playerId,omitempty"`
	DisplayName string      `json:"displayName,omitempty"`
	Connected   bool        `json:"connected"`
}

// LobbyStatePayload is the lobby.state payload.
type LobbyStatePayload struct {
	LobbyID      string           `json:"lobbyId"`
	HostPlayerID string           `json:"hostPlayerId"`
	Phase        store.LobbyPhase `json:"phase"`
	Seats        []LobbySeatView  `json:"seats"`
}

// GameStatePayload is the public game.state payload: hands and kitty are
// withheld, with hand sizes published instead.
type GameStatePayload struct {
	GameID         string              `json:"gameId"`
	LobbyID        string              `json:"lobbyId"`
	Phase          euchre.Phase        `json:"phase"`
	HandNumber     int                 `json:"handNumber"`
	Dealer         euchre.Seat         `json:"dealer"`
	Turn           euchre.Seat         `json:"turn"`
	Trump          *card.Suit          `json:"trump,omitempty"`
	Maker          *euchre.Seat        `json:"maker,omitempty"`
	Alone          bool                `json:"alone"`
	PartnerSitsOut *euchre.Seat        `json:"partnerSitsOut,omitempty"`
	Upcard         *card.Card          `json:"upcard,omitempty"`
	HandSizes      map[euchre.Seat]int `json:"handSizes,omitempty"`
	TrickNumber    int                 `json:"trickNumber"`
	Bidding        *euchre.Bidding     `json:"bidding,omitempty"`
	Trick          *euchre.Trick       `json:"trick,omitempty"`
	TricksWon      euchre.TeamTally    `json:"tricksWon"`
	Scores         euchre.TeamTally    `json:"scores"`
	TargetScore    int                 `json:"targetScore"`
	Winner         *euchre.Team        `json:"winner,omitempty"`
}

// GamePrivateStatePayload is one seat's game.private_state payload.
type GamePrivateStatePayload struct {
	GameID     string      `json:"gameId"`
	Seat       euchre.Seat `json:"seat"`
	Hand       []card.Card `json:"hand"`
	LegalPlays []card.Card `json:"legalPlays,omitempty"`
	SittingOut bool        `json:"sittingOut"`
}

// RejectedPayload is the action.rejected payload.
type RejectedPayload struct {
	RequestID string `json:"requestId,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// NoticePayload is the system.notice payload.
type NoticePayload struct {
	Message string `json:"message"`
}

// ToLobbyStateEvent projects a lobby record. The projection owns all of
// its memory; mutating it never touches the stored record.
func ToLobbyStateEvent(rec store.LobbyRecord) (Event, error) {
	payload := LobbyStatePayload{
		LobbyID:      rec.LobbyID.String(),
		HostPlayerID: rec.HostPlayerID.String(),
		Phase:        rec.Phase,
		Seats:        make([]LobbySeatView, 0, 4),
	}
	for _, sa := range rec.Seats {
		payload.Seats = append(payload.Seats, LobbySeatView{
			Seat:        sa.Seat,
			Team:        sa.Team,
			PlayerID:    sa.PlayerID.String(),
			DisplayName: sa.DisplayName,
			Connected:   sa.Connected,
		})
	}
	return NewEvent(EventLobbyState, payload)
}

// ToGameStateEvent projects the public view of a game record.
func ToGameStateEvent(rec store.GameRecord) (Event, error) {
	s := rec.State.Clone()
	payload := GameStatePayload{
		GameID:         rec.GameID.String(),
		LobbyID:        rec.LobbyID.String(),
		Phase:          s.Phase,
		HandNumber:     s.HandNumber,
		Dealer:         s.Dealer,
		Turn:           s.Turn,
		Trump:          s.Trump,
		Maker:          s.Maker,
		Alone:          s.Alone,
		PartnerSitsOut: s.PartnerSitsOut,
		Upcard:         s.Upcard,
		TrickNumber:    trickNumber(s),
		Bidding:        s.Bidding,
		Trick:          s.Trick,
		TricksWon:      s.TricksWon,
		Scores:         s.Scores,
		TargetScore:    s.TargetScore,
		Winner:         s.Winner,
	}
	if s.Hands != nil {
		payload.HandSizes = make(map[euchre.Seat]int, len(s.Hands))
		for seat, hand := range s.Hands {
			payload.HandSizes[seat] = len(hand)
		}
	}
	return NewEvent(EventGameState, payload)
}

// trickNumber derives the current trick counter: the open trick's number
// during play, otherwise the count of resolved tricks in the hand.
func trickNumber(s euchre.State) int {
	if s.Trick != nil {
		return s.Trick.Number
	}
	return s.TricksWon.Total()
}

// ToGamePrivateStateEvent projects one seat's hand and, when it is that
// seat's turn to play, the legal plays.
func ToGamePrivateStateEvent(rec store.GameRecord, seat euchre.Seat) (Event, error) {
	s := rec.State.Clone()
	payload := GamePrivateStatePayload{
		GameID:     rec.GameID.String(),
		Seat:       seat,
		Hand:       append([]card.Card(nil), s.Hands[seat]...),
		SittingOut: s.PartnerSitsOut != nil && seat == *s.PartnerSitsOut,
	}
	if s.Phase == euchre.PhasePlay && !payload.SittingOut && s.Trick != nil && s.Trick.Turn == seat {
		payload.LegalPlays = euchre.LegalPlays(s.Hands[seat], s.Trick, *s.Trump)
	}
	return NewEvent(EventGamePrivateState, payload)
}

// ToRejectedEvent wraps a structured reject for the wire.
func ToRejectedEvent(requestID string, rej *euchre.Reject) (Event, error) {
	return NewEvent(EventActionRejected, RejectedPayload{
		RequestID: requestID,
		Code:      rej.Code,
		Message:   rej.Message,
	})
}

// ToNoticeEvent wraps a human-readable announcement.
func ToNoticeEvent(message string) (Event, error) {
	return NewEvent(EventSystemNotice, NoticePayload{Message: message})
}

// Adapter runs validated game commands through the rules engine and
// assembles the outbound events.
type Adapter struct {
	engine *euchre.Engine
}

// NewAdapter wraps a rules engine.
func NewAdapter(engine *euchre.Engine) *Adapter {
	return &Adapter{engine: engine}
}

// ApplyResult is the outcome of one game command.
type ApplyResult struct {
	State    euchre.State
	Changed  bool
	Outbound []Event
}

// ApplyToGame applies a command to a game state and always produces a
// non-empty outbound list: the authoritative game.state on success, or a
// single action.rejected on failure. After a hand's last trick the score
// and the next deal are chained in, so clients always receive a state
// that is waiting on a player.
func (a *Adapter) ApplyToGame(gameID ident.GameID, lobbyID ident.LobbyID, state euchre.State, cmd Command) (ApplyResult, error) {
	next, rej := a.engine.Apply(state, cmd.Action)
	if rej != nil {
		ev, err := ToRejectedEvent(cmd.RequestID, rej)
		if err != nil {
			return ApplyResult{}, err
		}
		return ApplyResult{State: state, Outbound: []Event{ev}}, nil
	}

	if next.Phase == euchre.PhaseScore {
		scored, scoreRej := a.engine.Apply(next, euchre.Action{Type: euchre.ActionScoreHand})
		if scoreRej == nil {
			next = scored
		}
	}
	if next.Phase == euchre.PhaseDeal {
		dealt, dealRej := a.engine.Apply(next, euchre.Action{Type: euchre.ActionDealHand})
		if dealRej == nil {
			next = dealt
		}
	}

	ev, err := ToGameStateEvent(store.GameRecord{GameID: gameID, LobbyID: lobbyID, State: next})
	if err != nil {
		return ApplyResult{}, err
	}
	return ApplyResult{State: next, Changed: true, Outbound: []Event{ev}}, nil
}
