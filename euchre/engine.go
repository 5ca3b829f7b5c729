package euchre

import (
	"math/rand"
	"time"

	"fun-euchre/card"
)

// Engine applies actions to game states. It carries no game state itself;
// the random source is only consulted when a deal supplies no deck, so a
// seeded engine plus supplied decks replays a game exactly.
type Engine struct {
	rng *rand.Rand
}

// NewEngine returns an engine over the given source. A nil source falls
// back to a time-seeded one.
func NewEngine(rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{rng: rng}
}

// Apply validates and applies one action, returning either the successor
// state or a structured reject. The input state is never mutated.
func (e *Engine) Apply(s State, a Action) (State, *Reject) {
	next := s.Clone()
	if next.Phase == PhaseCompleted {
		return s, rejectInvalidState("game is completed")
	}

	var rej *Reject
	switch a.Type {
	case ActionDealHand:
		rej = e.applyDealHand(&next, a)
	case ActionPass:
		rej = e.applyPass(&next, a)
	case ActionOrderUp:
		rej = e.applyOrderUp(&next, a)
	case ActionCallTrump:
		rej = e.applyCallTrump(&next, a)
	case ActionPlayCard:
		rej = e.applyPlayCard(&next, a)
	case ActionScoreHand:
		rej = e.applyScoreHand(&next, a)
	default:
		rej = rejectInvalidAction("unsupported action %s", a.Type)
	}
	if rej != nil {
		return s, rej
	}
	return next, nil
}

func (e *Engine) applyDealHand(s *State, a Action) *Reject {
	if s.Phase != PhaseDeal {
		return rejectInvalidState("cannot deal during %s", s.Phase)
	}
	deck := a.Deck
	if len(deck) == 0 {
		deck = card.Shuffle(card.Deck(), e.rng)
	} else if !card.IsFullDeck(deck) {
		return rejectInvalidAction("supplied deck is not a 24-card euchre deck")
	}
	e.dealFrom(s, deck)
	return nil
}

// dealFrom distributes a validated deck: five cards to each seat starting
// left of the dealer, the final four form the kitty with the upcard on top.
func (e *Engine) dealFrom(s *State, deck []card.Card) {
	s.HandNumber++
	s.Hands = make(map[Seat][]card.Card, 4)
	seat := s.Dealer.Next()
	for i := 0; i < 4; i++ {
		hand := append([]card.Card(nil), deck[i*HandSize:(i+1)*HandSize]...)
		s.Hands[seat] = hand
		seat = seat.Next()
	}
	kitty := append([]card.Card(nil), deck[4*HandSize:]...)
	upcard := kitty[0]

	s.Kitty = kitty
	s.Upcard = &upcard
	s.Trump = nil
	s.Maker = nil
	s.Alone = false
	s.PartnerSitsOut = nil
	s.Trick = nil
	s.TricksWon = TeamTally{}
	s.Winner = nil
	s.Bidding = &Bidding{Round: 1, Turn: s.Dealer.Next()}
	s.Turn = s.Dealer.Next()
	s.Phase = PhaseRound1
}

// beginPlay closes bidding and opens the first trick, led by the first
// active seat left of the dealer.
func (s *State) beginPlay(trump card.Suit, maker Seat, alone bool) {
	s.Trump = &trump
	s.Maker = &maker
	s.Alone = alone
	if alone {
		partner := maker.Partner()
		s.PartnerSitsOut = &partner
	}
	s.Bidding = nil
	leader := s.NextActiveSeat(s.Dealer)
	s.Trick = &Trick{Number: 1, Leader: leader, Turn: leader}
	s.Turn = leader
	s.Phase = PhasePlay
}
