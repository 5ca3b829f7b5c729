package euchre

import (
	"fmt"

	"fun-euchre/card"
)

// Phase is the hand lifecycle stage.
type Phase string

const (
	PhaseDeal      Phase = "deal"
	PhaseRound1    Phase = "round1_bidding"
	PhaseRound2    Phase = "round2_bidding"
	PhasePlay      Phase = "play"
	PhaseScore     Phase = "score"
	PhaseCompleted Phase = "completed"
)

// DefaultTargetScore is the first-to score that completes a game.
const DefaultTargetScore = 10

// TricksPerHand is the number of tricks in one dealt hand.
const TricksPerHand = 5

// HandSize is the number of cards dealt to each seat.
const HandSize = 5

// Bidding tracks an in-progress bidding round. Round 1 proposes the upcard
// suit; round 2 opens after four passes and excludes the turned-down suit.
type Bidding struct {
	Round          int        `json:"round"`
	Turn           Seat       `json:"turn"`
	Passes         int        `json:"passes"`
	TurnedDownSuit *card.Suit `json:"turnedDownSuit,omitempty"`
}

// Play is one card committed to the current trick.
type Play struct {
	Seat Seat      `json:"seat"`
	Card card.Card `json:"card"`
}

// Trick is the in-progress trick. Number counts 1..5 within a hand.
type Trick struct {
	Number int    `json:"number"`
	Leader Seat   `json:"leader"`
	Turn   Seat   `json:"turn"`
	Plays  []Play `json:"plays"`
}

// State is the authoritative game state the engine transitions. Exactly one
// of Bidding/Trick is set during the bidding and play phases respectively.
type State struct {
	Phase          Phase                  `json:"phase"`
	HandNumber     int                    `json:"handNumber"`
	Dealer         Seat                   `json:"dealer"`
	Turn           Seat                   `json:"turn"`
	Trump          *card.Suit             `json:"trump,omitempty"`
	Maker          *Seat                  `json:"maker,omitempty"`
	Alone          bool                   `json:"alone"`
	PartnerSitsOut *Seat                  `json:"partnerSitsOut,omitempty"`
	Hands          map[Seat][]card.Card   `json:"hands,omitempty"`
	Upcard         *card.Card             `json:"upcard,omitempty"`
	Kitty          []card.Card            `json:"kitty,omitempty"`
	Bidding        *Bidding               `json:"bidding,omitempty"`
	Trick          *Trick                 `json:"trick,omitempty"`
	TricksWon      TeamTally              `json:"tricksWon"`
	Scores         TeamTally              `json:"scores"`
	TargetScore    int                    `json:"targetScore"`
	Winner         *Team                  `json:"winner,omitempty"`
}

// NewState returns the pre-deal state of a fresh game.
func NewState(targetScore int, dealer Seat) State {
	if targetScore <= 0 {
		targetScore = DefaultTargetScore
	}
	return State{
		Phase:       PhaseDeal,
		Dealer:      dealer,
		Turn:        dealer.Next(),
		TargetScore: targetScore,
	}
}

// Clone returns a deep copy; mutating the copy never touches the original.
func (s State) Clone() State {
	out := s
	out.Trump = cloneSuitPtr(s.Trump)
	out.Maker = cloneSeatPtr(s.Maker)
	out.PartnerSitsOut = cloneSeatPtr(s.PartnerSitsOut)
	out.Upcard = cloneCardPtr(s.Upcard)
	out.Winner = cloneTeamPtr(s.Winner)
	out.Kitty = cloneCards(s.Kitty)
	if s.Hands != nil {
		out.Hands = make(map[Seat][]card.Card, len(s.Hands))
		for seat, hand := range s.Hands {
			out.Hands[seat] = cloneCards(hand)
		}
	}
	if s.Bidding != nil {
		bidding := *s.Bidding
		bidding.TurnedDownSuit = cloneSuitPtr(s.Bidding.TurnedDownSuit)
		out.Bidding = &bidding
	}
	if s.Trick != nil {
		trick := *s.Trick
		trick.Plays = append([]Play(nil), s.Trick.Plays...)
		out.Trick = &trick
	}
	return out
}

// ActiveSeats returns the seats participating in play, skipping the
// sitting-out partner of a lone maker.
func (s State) ActiveSeats() []Seat {
	seats := make([]Seat, 0, 4)
	for _, seat := range Seats() {
		if s.PartnerSitsOut != nil && seat == *s.PartnerSitsOut {
			continue
		}
		seats = append(seats, seat)
	}
	return seats
}

// NextActiveSeat returns the first participating seat after from.
func (s State) NextActiveSeat(from Seat) Seat {
	seat := from.Next()
	for s.PartnerSitsOut != nil && seat == *s.PartnerSitsOut {
		seat = seat.Next()
	}
	return seat
}

// ActionType selects the engine transition an Action requests.
type ActionType int

const (
	ActionDealHand ActionType = iota
	ActionPass
	ActionOrderUp
	ActionCallTrump
	ActionPlayCard
	ActionScoreHand
)

func (a ActionType) String() string {
	switch a {
	case ActionDealHand:
		return "deal_hand"
	case ActionPass:
		return "pass"
	case ActionOrderUp:
		return "order_up"
	case ActionCallTrump:
		return "call_trump"
	case ActionPlayCard:
		return "play_card"
	case ActionScoreHand:
		return "score_hand"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Action is a flat request to the engine; only the fields relevant to the
// Type are read.
type Action struct {
	Type  ActionType
	Actor Seat
	Deck  []card.Card // deal_hand: optional supplied ordering
	Card  card.Card   // play_card
	Trump card.Suit   // call_trump
	Alone bool        // order_up / call_trump
}

func cloneCards(cards []card.Card) []card.Card {
	if cards == nil {
		return nil
	}
	return append([]card.Card(nil), cards...)
}

func cloneSuitPtr(p *card.Suit) *card.Suit {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneSeatPtr(p *Seat) *Seat {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneCardPtr(p *card.Card) *card.Card {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTeamPtr(p *Team) *Team {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
